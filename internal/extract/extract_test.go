package extract_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rubriq/rubriq/internal/extract"
)

func TestExtractPlainText(t *testing.T) {
	res := extract.Extract("tarea_1.txt", []byte("Ejercicio 1\nDesarrollo completo."))
	require.True(t, res.Success)
	assert.Contains(t, res.FullText, "Ejercicio 1")
}

func TestExtractEmptyTextFails(t *testing.T) {
	res := extract.Extract("tarea.txt", []byte("   \n  "))
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Error)
}

func TestExtractInvalidUTF8Fails(t *testing.T) {
	res := extract.Extract("tarea.txt", []byte{0xff, 0xfe, 0x01})
	assert.False(t, res.Success)
}

const notebookJSON = `{
  "cells": [
    {"cell_type": "markdown", "source": ["# Ejercicio 3\n", "Agrupamiento con KMeans"]},
    {"cell_type": "code", "source": "from sklearn.cluster import KMeans\nmodel = KMeans(n_clusters=3)",
     "outputs": [{"output_type": "stream", "text": ["KMeans(n_clusters=3)\n"]}]},
    {"cell_type": "code", "source": "model.inertia_",
     "outputs": [{"output_type": "execute_result", "data": {"text/plain": "123.45"}}]}
  ]
}`

func TestExtractNotebook(t *testing.T) {
	res := extract.Extract("entrega.ipynb", []byte(notebookJSON))
	require.True(t, res.Success)
	assert.Contains(t, res.FullText, "# Ejercicio 3")
	assert.Contains(t, res.FullText, "from sklearn.cluster import KMeans")
	assert.Contains(t, res.FullText, "KMeans(n_clusters=3)")
	assert.Contains(t, res.FullText, "123.45")
}

func TestExtractNotebookMalformed(t *testing.T) {
	res := extract.Extract("entrega.ipynb", []byte("not a notebook"))
	assert.False(t, res.Success)
}

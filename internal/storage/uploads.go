package storage

import (
	"path"
	"strings"

	"github.com/google/uuid"
)

// UploadKey builds the blob key for a submission file. The random component
// keeps repeated uploads of the same filename from clobbering each other.
func UploadKey(course, userID, filename string) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	return path.Join("uploads", slug(course), slug(userID), uuid.NewString()+"-"+base)
}

// ContentTypeFor maps a stored submission key to the media type served back
// to reviewers. Notebooks are JSON underneath but have a registered type of
// their own.
func ContentTypeFor(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".ipynb":
		return "application/x-ipynb+json"
	case ".pdf":
		return "application/pdf"
	case ".md":
		return "text/markdown; charset=utf-8"
	case ".txt":
		return "text/plain; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}

func slug(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, " ", "-")
	s = strings.ReplaceAll(s, "/", "-")
	if s == "" {
		return "unknown"
	}
	return s
}

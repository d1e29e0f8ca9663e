// internal/api/http/assets.go
package http

import (
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/rubriq/rubriq/internal/storage"
)

// MountAssets serves archived submission files back to reviewers. The key is
// whatever follows /assets/ and is produced by storage.UploadKey at upload
// time.
func MountAssets(r chi.Router, bs storage.BlobStore) {
	r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
		rc, err := bs.Get(key)
		if err != nil {
			http.Error(w, "submission not found", http.StatusNotFound)
			return
		}
		defer rc.Close()
		w.Header().Set("Content-Type", storage.ContentTypeFor(key))
		w.Header().Set("Content-Disposition", `inline; filename="`+path.Base(key)+`"`)
		_, _ = io.Copy(w, rc)
	})
}

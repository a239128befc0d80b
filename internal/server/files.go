package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"photo-explorer/internal/logging"
	"photo-explorer/internal/media"
	"photo-explorer/internal/storage"
)

type disposition string

const (
	dispositionInline     disposition = "inline"
	dispositionAttachment disposition = "attachment"
)

var quoteEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// contentDisposition renders `<disposition>; filename="<name>"`.
func contentDisposition(d disposition, name string) string {
	return string(d) + `; filename="` + quoteEscaper.Replace(name) + `"`
}

// explorerHandler handles GET /file/explorer with the JSON listing of every
// stored original.
func (s *Server) explorerHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records, err := s.svc.List(r.Context())
		if err != nil {
			logging.ErrorContext(r.Context(), "list_failed", nil, err)
			http.Error(w, "list failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(records)
	}
}

// fileHandler handles GET /file/view/{fileName} and
// GET /file/download/{fileName}. Inline responses carry the image content
// type; attachments are always application/octet-stream.
func (s *Server) fileHandler(d disposition) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("fileName")

		data, err := s.svc.Read(r.Context(), name)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				http.Error(w, "not found", http.StatusNotFound)
				return
			}
			logging.ErrorContext(r.Context(), "read_failed", map[string]any{"file": name}, err)
			http.Error(w, "read failed", http.StatusInternalServerError)
			return
		}

		contentType := "application/octet-stream"
		if d == dispositionInline {
			contentType = media.ContentTypeFor(media.Extension(name))
		}

		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Disposition", contentDisposition(d, name))
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)

		s.metrics.RecordFileRead(string(d))
	}
}

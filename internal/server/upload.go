package server

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"photo-explorer/internal/explorer"
	"photo-explorer/internal/logging"
	"photo-explorer/internal/media"
	"photo-explorer/internal/storage"
)

const uploadFormField = "file"

// uploadResp is the JSON response returned after a successful file upload.
type uploadResp struct {
	Status string `json:"status"`
}

// uploadHandler handles POST /file/upload. It streams the first multipart
// part named "file" that carries a filename into the upload pipeline.
// Other parts are skipped.
func (s *Server) uploadHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		if s.maxUploadBytes > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
		}

		mr, err := r.MultipartReader()
		if err != nil {
			s.metrics.RecordUploadError(reasonBadMultipart, time.Since(start))
			http.Error(w, "bad multipart", http.StatusBadRequest)
			return
		}

		part, err := nextFilePart(mr)
		if err != nil {
			status, msg, reason := http.StatusBadRequest, "bad multipart", reasonBadMultipart
			if isTooLarge(err) {
				status, msg, reason = http.StatusRequestEntityTooLarge, "file too large", reasonTooLarge
			}
			s.metrics.RecordUploadError(reason, time.Since(start))
			http.Error(w, msg, status)
			return
		}
		if part == nil {
			s.metrics.RecordUploadError(reasonMissingFile, time.Since(start))
			http.Error(w, "missing file", http.StatusBadRequest)
			return
		}
		defer func() { _ = part.Close() }()

		res, err := s.svc.Upload(r.Context(), part.Header.Get("Content-Type"), part.FileName(), part)
		if err != nil {
			status, msg, reason := classifyUploadError(err)
			if status >= http.StatusInternalServerError {
				logging.ErrorContext(r.Context(), "upload_failed", map[string]any{
					"file":   part.FileName(),
					"reason": reason,
				}, err)
			}
			s.metrics.RecordUploadError(reason, time.Since(start))
			http.Error(w, msg, status)
			return
		}

		s.metrics.RecordUpload(res.Size, time.Since(start), res.ThumbnailDuration)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(uploadResp{Status: "SUCCESS"})
	}
}

// nextFilePart returns the first part named uploadFormField that has a
// filename, or nil when the body has none.
func nextFilePart(mr *multipart.Reader) (*multipart.Part, error) {
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		if part.FormName() == uploadFormField && part.FileName() != "" {
			return part, nil
		}
		_ = part.Close()
	}
}

// classifyUploadError maps pipeline errors to a status code, a response
// body and a metrics reason.
func classifyUploadError(err error) (status int, msg, reason string) {
	switch {
	case isTooLarge(err):
		return http.StatusRequestEntityTooLarge, "file too large", reasonTooLarge
	case errors.Is(err, media.ErrUnsupportedFileType):
		return http.StatusBadRequest, "unsupported file type", reasonUnsupported
	case errors.Is(err, storage.ErrInvalidName):
		return http.StatusBadRequest, "invalid file name", reasonInvalidName
	case errors.Is(err, explorer.ErrMissingOriginal):
		return http.StatusInternalServerError, "original file does not exist", reasonMissingOrig
	case errors.Is(err, explorer.ErrTransferFailure):
		return http.StatusInternalServerError, "upload failed", reasonTransfer
	case errors.Is(err, explorer.ErrThumbnailFailure):
		return http.StatusInternalServerError, "thumbnail failed", reasonThumbnail
	default:
		return http.StatusInternalServerError, "upload failed", reasonOther
	}
}

func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}

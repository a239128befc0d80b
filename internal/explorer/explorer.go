// Package explorer implements the photo explorer operations on top of a
// storage backend: the upload pipeline (classify, persist, thumbnail), the
// directory listing and whole-file reads for view and download.
package explorer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"photo-explorer/internal/logging"
	"photo-explorer/internal/media"
	"photo-explorer/internal/storage"
	"photo-explorer/internal/worker"
)

// MaxDepth bounds how far below the upload root the listing descends.
const MaxDepth = 10

// placeholderDimension is reported for image height and width. Dimensions
// are not extracted from the files.
const placeholderDimension = "0"

var (
	// ErrMissingOriginal means the original vanished between persisting it
	// and generating its thumbnail.
	ErrMissingOriginal = errors.New("original file does not exist")
	// ErrTransferFailure wraps failures writing the original to storage.
	ErrTransferFailure = errors.New("transfer to storage failed")
	// ErrThumbnailFailure wraps failures decoding, resizing or saving the
	// thumbnail of a persisted original.
	ErrThumbnailFailure = errors.New("thumbnail generation failed")
)

// FileRecord is one entry of the listing.
type FileRecord struct {
	FileName          string `json:"fileName"`
	FileExtensions    string `json:"fileExtensions"`
	ThumbnailFileName string `json:"thumbnailFileName"`
	FileSize          int64  `json:"fileSize"`
	ImageHeight       string `json:"imageHeight"`
	ImageWidth        string `json:"imageWidth"`
}

// NewFileRecord derives a listing entry from a stored file's name and size.
func NewFileRecord(name string, size int64) FileRecord {
	return FileRecord{
		FileName:          name,
		FileExtensions:    media.Extension(name),
		ThumbnailFileName: media.ThumbnailName(name),
		FileSize:          size,
		ImageHeight:       placeholderDimension,
		ImageWidth:        placeholderDimension,
	}
}

// UploadResult reports what an accepted upload wrote.
type UploadResult struct {
	FileName          string
	Size              int64
	ThumbnailFileName string
	ThumbnailDuration time.Duration
}

type Options struct {
	// SerializeUploads makes concurrent uploads of the same file name run
	// one after another, so an original and its thumbnail always come from
	// the same upload. Without it the last writer wins independently for
	// each of the two files.
	SerializeUploads bool
	// SpoolDir holds upload bodies while they are received. Empty means
	// os.TempDir().
	SpoolDir string
}

type Service struct {
	store    storage.Store
	pool     *worker.Pool
	thumbs   *media.Thumbnailer
	locks    *keyedMutex
	spoolDir string
}

func NewService(store storage.Store, pool *worker.Pool, thumbs *media.Thumbnailer, opts Options) *Service {
	s := &Service{store: store, pool: pool, thumbs: thumbs, spoolDir: opts.SpoolDir}
	if opts.SerializeUploads {
		s.locks = newKeyedMutex()
	}
	return s
}

// Upload runs the pipeline for one file part. Nothing is written when the
// part is rejected. The body is received into a spool file before the name
// lock or a worker slot is taken, so a slow client only occupies its own
// request. A failure after the original is persisted leaves the original in
// place.
func (s *Service) Upload(ctx context.Context, contentType, filename string, body io.Reader) (UploadResult, error) {
	logging.InfoContext(ctx, "upload_received", map[string]any{
		"file":         filename,
		"content_type": contentType,
	})

	up, err := media.Classify(contentType, filename)
	if err != nil {
		logging.WarnContext(ctx, "upload_rejected", map[string]any{"file": filename, "reason": err.Error()})
		return UploadResult{}, err
	}
	if err := storage.ValidateName(up.Filename); err != nil {
		return UploadResult{}, err
	}

	spool, err := s.spool(ctx, body)
	if err != nil {
		logging.WarnContext(ctx, "upload_receive_failed", map[string]any{"file": up.Filename, "error": err.Error()})
		return UploadResult{}, fmt.Errorf("%w: %w", ErrTransferFailure, err)
	}
	defer spool.remove()

	if s.locks != nil {
		unlock, err := s.locks.Lock(ctx, up.Filename)
		if err != nil {
			return UploadResult{}, err
		}
		defer unlock()
	}

	logging.InfoContext(ctx, "upload_persisting", map[string]any{"file": up.Filename, "location": s.store.Location()})
	size, err := worker.Run(ctx, s.pool, func(ctx context.Context) (int64, error) {
		return s.store.Save(ctx, up.Filename, spool.f, up.ContentType)
	})
	if err != nil {
		logging.ErrorContext(ctx, "upload_persist_failed", map[string]any{"file": up.Filename}, err)
		return UploadResult{}, fmt.Errorf("%w: %w", ErrTransferFailure, err)
	}

	result := UploadResult{
		FileName:          up.Filename,
		Size:              size,
		ThumbnailFileName: media.ThumbnailName(up.Filename),
	}

	start := time.Now()
	err = s.pool.Do(ctx, func(ctx context.Context) error {
		return s.createThumbnail(ctx, up, result.ThumbnailFileName)
	})
	result.ThumbnailDuration = time.Since(start)
	if err != nil {
		logging.ErrorContext(ctx, "thumbnail_failed", map[string]any{"file": up.Filename}, err)
		return result, err
	}

	logging.InfoContext(ctx, "upload_complete", map[string]any{
		"file":         up.Filename,
		"bytes":        size,
		"thumbnail":    result.ThumbnailFileName,
		"thumbnail_ms": result.ThumbnailDuration.Milliseconds(),
	})
	return result, nil
}

type spoolFile struct {
	f *os.File
}

func (sf spoolFile) remove() {
	_ = sf.f.Close()
	_ = os.Remove(sf.f.Name())
}

// spool copies body to a temporary file and rewinds it.
func (s *Service) spool(ctx context.Context, body io.Reader) (spoolFile, error) {
	f, err := os.CreateTemp(s.spoolDir, "px-upload-*")
	if err != nil {
		return spoolFile{}, fmt.Errorf("create spool file: %w", err)
	}
	sf := spoolFile{f: f}
	if _, err := io.Copy(f, ctxReader{ctx: ctx, r: body}); err != nil {
		sf.remove()
		return spoolFile{}, fmt.Errorf("receive body: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		sf.remove()
		return spoolFile{}, fmt.Errorf("rewind spool file: %w", err)
	}
	return sf, nil
}

// ctxReader stops reading once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// createThumbnail re-reads the persisted original rather than the request
// body, so the thumbnail always matches what is stored.
func (s *Service) createThumbnail(ctx context.Context, up media.Upload, thumbName string) error {
	rc, err := s.store.Open(ctx, up.Filename)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrMissingOriginal, up.Filename)
		}
		return fmt.Errorf("%w: open original: %w", ErrThumbnailFailure, err)
	}
	defer func() { _ = rc.Close() }()

	var buf bytes.Buffer
	if err := s.thumbs.Generate(rc, up.Ext, &buf); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrThumbnailFailure, up.Filename, err)
	}
	if _, err := s.store.Save(ctx, thumbName, &buf, up.ContentType); err != nil {
		return fmt.Errorf("%w: save %s: %w", ErrThumbnailFailure, thumbName, err)
	}
	return nil
}

// List returns every stored original, ordered by file name. Thumbnails are
// recognised by name and skipped.
func (s *Service) List(ctx context.Context) ([]FileRecord, error) {
	return worker.Run(ctx, s.pool, func(ctx context.Context) ([]FileRecord, error) {
		records := make([]FileRecord, 0)
		err := s.store.Walk(ctx, MaxDepth, func(o storage.Object) error {
			if media.IsThumbnail(o.Name) {
				return nil
			}
			records = append(records, NewFileRecord(o.Name, o.Size))
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", s.store.Location(), err)
		}
		sort.SliceStable(records, func(i, j int) bool {
			return records[i].FileName < records[j].FileName
		})
		return records, nil
	})
}

// Read loads a stored file fully into memory. Unknown or invalid names
// yield storage.ErrNotFound.
func (s *Service) Read(ctx context.Context, name string) ([]byte, error) {
	return worker.Run(ctx, s.pool, func(ctx context.Context) ([]byte, error) {
		return storage.ReadFile(ctx, s.store, name)
	})
}

// Check reports whether the storage backend is usable.
func (s *Service) Check(ctx context.Context) error {
	return s.store.Check(ctx)
}

// Location describes where files are stored.
func (s *Service) Location() string {
	return s.store.Location()
}

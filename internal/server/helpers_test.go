package server

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"mime/multipart"
	"net/textproto"
	"testing"

	"photo-explorer/internal/explorer"
	"photo-explorer/internal/media"
	"photo-explorer/internal/storage"
	"photo-explorer/internal/worker"
)

// newTestServer returns a server backed by a fresh temp directory.
func newTestServer(t *testing.T, mutate func(*Config)) (*Server, string) {
	t.Helper()

	dir := t.TempDir()
	resolver, err := storage.NewResolver(dir)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	svc := explorer.NewService(storage.NewDisk(resolver), worker.NewPool(2), media.NewThumbnailer(),
		explorer.Options{SerializeUploads: true})

	cfg := Config{
		Addr:    "127.0.0.1:0",
		Service: svc,
		Build:   BuildInfo{Version: "test", Commit: "abc123"},
		Workers: 2,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	srv, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() {
		if srv.limiter != nil {
			srv.limiter.Close()
		}
	})
	return srv, dir
}

// jpegBytes encodes a w x h JPEG.
func jpegBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: 100, B: uint8(y), A: 255})
		}
	}
	var buf bytes.Buffer
	if err := media.Encode(&buf, img, "jpg"); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

// multipartBody builds a body with a single part. An empty filename makes
// it a plain form field.
func multipartBody(t *testing.T, field, filename, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	if filename != "" {
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	} else {
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q`, field))
	}
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	part, err := mw.CreatePart(h)
	if err != nil {
		t.Fatalf("CreatePart: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

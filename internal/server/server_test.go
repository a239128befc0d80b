package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"photo-explorer/internal/explorer"
)

func TestNew_RequiresService(t *testing.T) {
	if _, err := New(Config{Addr: ":0"}); err == nil {
		t.Fatal("expected error without service")
	}
}

// TestServer_UploadListViewDownload drives the whole flow over a real
// listener.
func TestServer_UploadListViewDownload(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	client := &http.Client{Timeout: 30 * time.Second}
	original := jpegBytes(t, 400, 300)

	// Upload
	body, ct := multipartBody(t, "file", "cat.jpg", "image/jpeg", original)
	resp, err := client.Post(ts.URL+"/file/upload", ct, body)
	if err != nil {
		t.Fatal(err)
	}
	var status uploadResp
	_ = json.NewDecoder(resp.Body).Decode(&status)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || status.Status != "SUCCESS" {
		t.Fatalf("upload: %d %+v", resp.StatusCode, status)
	}

	// List
	resp, err = client.Get(ts.URL + "/file/explorer")
	if err != nil {
		t.Fatal(err)
	}
	var records []explorer.FileRecord
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if len(records) != 1 {
		t.Fatalf("records = %+v, want only cat.jpg", records)
	}
	if r := records[0]; r.FileName != "cat.jpg" || r.ThumbnailFileName != "cat.thumbnail.jpg" || r.FileSize != int64(len(original)) {
		t.Errorf("record = %+v", r)
	}

	// View original
	resp, err = client.Get(ts.URL + "/file/view/cat.jpg")
	if err != nil {
		t.Fatal(err)
	}
	got, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !bytes.Equal(got, original) {
		t.Fatalf("view: status %d, %d bytes", resp.StatusCode, len(got))
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("view Content-Type = %q", ct)
	}

	// View thumbnail
	resp, err = client.Get(ts.URL + "/file/view/cat.thumbnail.jpg")
	if err != nil {
		t.Fatal(err)
	}
	thumb, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	cfg, format, err := image.DecodeConfig(bytes.NewReader(thumb))
	if err != nil {
		t.Fatalf("thumbnail: %v", err)
	}
	if format != "jpeg" || cfg.Width != 100 || cfg.Height != 75 {
		t.Errorf("thumbnail = %s %dx%d, want jpeg 100x75", format, cfg.Width, cfg.Height)
	}

	// Download
	resp, err = client.Get(ts.URL + "/file/download/cat.jpg")
	if err != nil {
		t.Fatal(err)
	}
	got, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	if !bytes.Equal(got, original) {
		t.Error("download bytes differ from upload")
	}
	if cd := resp.Header.Get("Content-Disposition"); cd != `attachment; filename="cat.jpg"` {
		t.Errorf("Content-Disposition = %q", cd)
	}
}

func TestServer_CORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/file/upload", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "X-Custom-Header")
	rr := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rr, req)

	if rr.Code >= 300 {
		t.Fatalf("preflight status = %d", rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Allow-Origin = %q", got)
	}
	if got := rr.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Errorf("Allow-Credentials = %q", got)
	}
	if got := rr.Header().Get("Access-Control-Allow-Methods"); !strings.Contains(got, http.MethodPost) {
		t.Errorf("Allow-Methods = %q", got)
	}
}

func TestServer_CORSSimpleRequest(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/file/explorer", nil)
	req.Header.Set("Origin", "https://photos.example.com")
	rr := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rr, req)

	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://photos.example.com" {
		t.Errorf("Allow-Origin = %q", got)
	}
}

func TestServer_RequestID(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/live", nil)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	generated := rr.Header().Get("X-Request-Id")
	if len(generated) != 36 {
		t.Errorf("generated request id = %q, want a uuid", generated)
	}

	req = httptest.NewRequest(http.MethodGet, "/live", nil)
	req.Header.Set("X-Request-Id", "client-supplied")
	rr = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	if got := rr.Header().Get("X-Request-Id"); got != "client-supplied" {
		t.Errorf("request id = %q, want client-supplied", got)
	}
}

func TestServer_Metrics(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	h := srv.Handler()

	body, ct := multipartBody(t, "file", "cat.jpg", "image/jpeg", jpegBytes(t, 20, 20))
	req := httptest.NewRequest(http.MethodPost, "/file/upload", body)
	req.Header.Set("Content-Type", ct)
	h.ServeHTTP(httptest.NewRecorder(), req)

	body, ct = multipartBody(t, "file", "clip.mp4", "video/mp4", []byte("x"))
	req = httptest.NewRequest(http.MethodPost, "/file/upload", body)
	req.Header.Set("Content-Type", ct)
	h.ServeHTTP(httptest.NewRecorder(), req)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/file/download/cat.jpg", nil))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rr.Code)
	}

	out := rr.Body.String()
	for _, want := range []string{
		"px_uploads_total 1",
		`px_upload_errors_total{reason="unsupported_type"} 1`,
		`px_file_reads_total{disposition="attachment"} 1`,
		`px_http_requests_total{code="2xx"}`,
		`px_http_requests_total{code="4xx"} 1`,
		`px_build_info{commit="abc123",version="test"} 1`,
		"px_thumbnail_duration_seconds_count 1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestServer_StartShutdown(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/live")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if err := <-errCh; err != nil {
		t.Errorf("Serve returned %v after shutdown", err)
	}
}

func TestNew_ServerTimeouts(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	if srv.httpServer.ReadTimeout != defaultReadTimeout || srv.httpServer.IdleTimeout != defaultIdleTimeout {
		t.Errorf("defaults: ReadTimeout = %s, IdleTimeout = %s", srv.httpServer.ReadTimeout, srv.httpServer.IdleTimeout)
	}

	srv, _ = newTestServer(t, func(c *Config) {
		c.ReadTimeout = 7 * time.Second
		c.IdleTimeout = 9 * time.Second
	})
	if srv.httpServer.ReadTimeout != 7*time.Second || srv.httpServer.IdleTimeout != 9*time.Second {
		t.Errorf("configured: ReadTimeout = %s, IdleTimeout = %s", srv.httpServer.ReadTimeout, srv.httpServer.IdleTimeout)
	}
}

func TestServer_StalledUploadTimesOut(t *testing.T) {
	srv, dir := newTestServer(t, func(c *Config) { c.ReadTimeout = 300 * time.Millisecond })

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})

	// Announce a body and send only its first part.
	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	head := "--b\r\nContent-Disposition: form-data; name=\"file\"; filename=\"slow.png\"\r\nContent-Type: image/png\r\n\r\npartial"
	fmt.Fprintf(conn, "POST /file/upload HTTP/1.1\r\nHost: test\r\nContent-Type: multipart/form-data; boundary=b\r\nContent-Length: %d\r\n\r\n%s",
		len(head)+4096, head)

	// Other requests are served while the upload stalls.
	client := &http.Client{Timeout: 2 * time.Second}
	for _, path := range []string{"/file/explorer", "/live"} {
		resp, err := client.Get("http://" + ln.Addr().String() + path)
		if err != nil {
			t.Fatalf("GET %s during stalled upload: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s = %d", path, resp.StatusCode)
		}
	}

	// The server gives up on the stalled body and closes the connection.
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, err := io.ReadAll(conn); err != nil {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			t.Fatalf("connection not closed after read timeout: %v", err)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "slow.png")); !os.IsNotExist(err) {
		t.Errorf("stalled upload was stored, stat err = %v", err)
	}
}

package server

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"photo-explorer/internal/logging"
)

const requestIDHeader = "X-Request-Id"

// requestIDMiddleware ensures every request has a request id.
// If the client supplies X-Request-Id, we keep it; otherwise we generate one.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if rid == "" || len(rid) > 128 {
			rid = uuid.NewString()
		}
		ctx := logging.ContextWithRequestID(r.Context(), rid)
		w.Header().Set(requestIDHeader, rid)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// accessLogMiddleware logs one line per request and counts it by status.
func accessLogMiddleware(m *Metrics, trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			lrw := &loggingResponseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(lrw, r)

			logging.InfoContext(r.Context(), "request", map[string]any{
				"method":  r.Method,
				"path":    r.URL.Path,
				"status":  lrw.status,
				"ms":      time.Since(start).Milliseconds(),
				"bytes":   lrw.size,
				"ip":      getClientIP(r, trustProxy),
				"ua":      r.UserAgent(),
				"referer": r.Referer(),
			})
			m.RecordRequest(lrw.status)
		})
	}
}

// getClientIP returns the host part of RemoteAddr. With trustProxy set,
// X-Forwarded-For and then X-Real-IP take precedence; clients can forge
// both, so they are only honoured behind a proxy that rewrites them.
func getClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		return proxyClientIP(r)
	}
	return remoteHost(r)
}

func proxyClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	return remoteHost(r)
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type loggingResponseWriter struct {
	http.ResponseWriter
	status      int
	size        int
	wroteHeader bool
}

func (w *loggingResponseWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *loggingResponseWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	n, err := w.ResponseWriter.Write(b)
	w.size += n
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *loggingResponseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

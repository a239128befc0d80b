// Package server implements the HTTP surface of the photo explorer. It
// wires the upload, listing, view and download routes to the explorer
// service, wraps them in request-id, access-log, CORS and rate-limit
// middleware, and serves health and Prometheus metrics endpoints.
package server

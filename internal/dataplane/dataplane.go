// Package dataplane adapts the standard library's net/http listener into
// the pipeline's transport-agnostic httpmsg types (spec §1: the listener
// is a black-box connection source; this is the concrete net/http edge
// that production deployments actually need).
package dataplane

import (
	"io"
	"net"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/dev-console/proxyd/internal/httpmsg"
	"github.com/dev-console/proxyd/internal/pipeline"
)

// Handler builds the net/http.Handler that fronts the pipeline. Bodies are
// buffered in full (spec §1 non-goal: no chunked streaming); maxBodyBytes
// caps how much of the request body is read before the request is
// rejected with 413.
func Handler(p *pipeline.Pipeline, maxBodyBytes int64, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &handler{pipeline: p, maxBodyBytes: maxBodyBytes, logger: logger}
}

type handler struct {
	pipeline     *pipeline.Pipeline
	maxBodyBytes int64
	logger       *zap.Logger
}

func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r, h.maxBodyBytes)
	if err != nil {
		http.Error(w, "request body exceeds configured limit", http.StatusRequestEntityTooLarge)
		return
	}

	req := httpmsg.Request{
		Method:   r.Method,
		URL:      r.URL.RequestURI(),
		Headers:  r.Header.Clone(),
		Body:     body,
		ClientIP: clientIP(r),
	}

	resp := h.pipeline.Handle(r.Context(), req)
	writeResponse(w, resp)
}

func readBody(r *http.Request, limit int64) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	defer r.Body.Close()
	if limit <= 0 {
		return io.ReadAll(r.Body)
	}
	limited := http.MaxBytesReader(nil, r.Body, limit)
	return io.ReadAll(limited)
}

// clientIP prefers the first hop of X-Forwarded-For (common when proxyd
// itself sits behind a local dev reverse proxy) and falls back to the
// connection's remote address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if first, _, ok := strings.Cut(fwd, ","); ok {
			return strings.TrimSpace(first)
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeResponse(w http.ResponseWriter, resp httpmsg.Response) {
	for k, vs := range resp.Headers {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	status := resp.Status
	if status == 0 {
		status = http.StatusBadGateway
	}
	w.WriteHeader(status)
	if len(resp.Body) > 0 {
		_, _ = w.Write(resp.Body)
	}
}

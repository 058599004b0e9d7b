// Package upstream implements the pipeline's collaborator for forwarding
// admitted, unmocked requests to the real backend (spec §4.8 step
// "forward to upstream"). Connection failures synthesize a 502 exchange
// rather than propagating a transport error, per spec §7.
package upstream

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/dev-console/proxyd/internal/httpmsg"
)

// ReasonHeader carries a short diagnostic string on synthesized 502s so
// developers can see why upstream wasn't reached without digging through
// logs.
const ReasonHeader = "X-Proxyd-Upstream-Error"

// Upstream forwards a request to the real backend.
type Upstream interface {
	Forward(ctx context.Context, req httpmsg.Request) httpmsg.Response
}

// Client is the http.Client-backed Upstream used in production.
type Client struct {
	base       string
	httpClient *http.Client
}

// New builds a Client that forwards requests to baseURL (e.g.
// "http://localhost:9000") with the given per-request timeout.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		base:       baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Forward sends req to the upstream base URL and adapts the result back
// into an httpmsg.Response. A connection error or timeout synthesizes a
// 502 with ReasonHeader set instead of returning an error — the pipeline
// always has a response to record (spec §7).
func (c *Client) Forward(ctx context.Context, req httpmsg.Request) httpmsg.Response {
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.base+req.URL, newBodyReader(req.Body))
	if err != nil {
		return errorResponse(err)
	}
	httpReq.Header = req.Headers.Clone()

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return errorResponse(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errorResponse(err)
	}
	return httpmsg.Response{Status: resp.StatusCode, Headers: resp.Header.Clone(), Body: body}
}

func errorResponse(err error) httpmsg.Response {
	h := make(http.Header)
	h.Set(ReasonHeader, classify(err))
	return httpmsg.Response{Status: http.StatusBadGateway, Headers: h, Body: []byte("upstream unreachable")}
}

func classify(err error) string {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	return "connection_failed"
}

func newBodyReader(body []byte) io.Reader {
	if len(body) == 0 {
		return nil
	}
	return bytes.NewReader(body)
}

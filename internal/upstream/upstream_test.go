package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dev-console/proxyd/internal/httpmsg"
)

func TestForwardSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/hello", r.URL.Path)
		w.WriteHeader(201)
		w.Write([]byte("created"))
	}))
	defer srv.Close()

	c := New(srv.URL, 5*time.Second)
	resp := c.Forward(context.Background(), httpmsg.Request{Method: "GET", URL: "/hello"})
	assert.Equal(t, 201, resp.Status)
	assert.Equal(t, "created", string(resp.Body))
}

func TestForwardConnectionFailureSynthesizes502(t *testing.T) {
	c := New("http://127.0.0.1:1", 200*time.Millisecond)
	resp := c.Forward(context.Background(), httpmsg.Request{Method: "GET", URL: "/x"})
	require.Equal(t, http.StatusBadGateway, resp.Status)
	assert.NotEmpty(t, resp.Headers.Get(ReasonHeader))
}

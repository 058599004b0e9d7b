package httpmsg

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCloneDoesNotAliasHeadersOrBody(t *testing.T) {
	orig := Response{
		Status:  200,
		Headers: http.Header{"X-A": {"1"}},
		Body:    []byte("hello"),
	}
	clone := orig.Clone()

	clone.Headers.Set("X-A", "2")
	clone.Body[0] = 'H'

	assert.Equal(t, "1", orig.Headers.Get("X-A"))
	assert.Equal(t, byte('h'), orig.Body[0])
	assert.Equal(t, "2", clone.Headers.Get("X-A"))
}

func TestCloneOfEmptyResponse(t *testing.T) {
	clone := Response{}.Clone()
	assert.Equal(t, 0, clone.Status)
	assert.Empty(t, clone.Body)
	assert.Empty(t, clone.Headers)
}

package mock

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dev-console/proxyd/internal/httpmsg"
	"github.com/dev-console/proxyd/internal/matcher"
	"github.com/dev-console/proxyd/internal/mockrule"
)

func TestS1MockShortCircuit(t *testing.T) {
	store := mockrule.NewStore()
	rule, err := mockrule.New("r1", "ping", 0,
		matcher.Spec{Kind: matcher.Exact, URLPattern: "/api/ping"},
		httpmsg.Response{Status: 418, Headers: http.Header{}, Body: []byte("pong")}, 0)
	require.NoError(t, err)
	require.NoError(t, store.Insert(rule))

	m := New(store)
	match, ok := m.FirstMatch("GET", "/api/ping")
	require.True(t, ok)
	assert.Equal(t, 418, match.Response.Status)
	assert.Equal(t, "pong", string(match.Response.Body))
}

func TestS2PriorityTieBreak(t *testing.T) {
	store := mockrule.NewStore()
	a, err := mockrule.New("A", "a", 10, matcher.Spec{Kind: matcher.Exact, URLPattern: "/x"},
		httpmsg.Response{Status: 200, Body: []byte("A")}, 0)
	require.NoError(t, err)
	b, err := mockrule.New("B", "b", 10, matcher.Spec{Kind: matcher.Exact, URLPattern: "/x"},
		httpmsg.Response{Status: 200, Body: []byte("B")}, 0)
	require.NoError(t, err)
	require.NoError(t, store.Insert(a))
	require.NoError(t, store.Insert(b))

	m := New(store)
	match, ok := m.FirstMatch("GET", "/x")
	require.True(t, ok)
	assert.Equal(t, "A", string(match.Response.Body))
}

func TestMockMiss(t *testing.T) {
	m := New(mockrule.NewStore())
	_, ok := m.FirstMatch("GET", "/nope")
	assert.False(t, ok)
}

func TestDisabledRuleNeverMatches(t *testing.T) {
	store := mockrule.NewStore()
	rule, err := mockrule.New("r1", "", 0, matcher.Spec{Kind: matcher.Exact, URLPattern: "/x"},
		httpmsg.Response{Status: 200}, 0)
	require.NoError(t, err)
	require.NoError(t, store.Insert(rule))
	_, _ = store.ToggleByID("r1")

	m := New(store)
	_, ok := m.FirstMatch("GET", "/x")
	assert.False(t, ok)
}

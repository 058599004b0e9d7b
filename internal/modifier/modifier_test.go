package modifier

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dev-console/proxyd/internal/httpmsg"
	"github.com/dev-console/proxyd/internal/matcher"
	"github.com/dev-console/proxyd/internal/modifierrule"
)

func TestS4ModifierStack(t *testing.T) {
	store := modifierrule.NewStore()

	rule1, err := modifierrule.New("r1", "force-500", 100,
		matcher.Spec{Kind: matcher.Exact, URLPattern: "/x"}, nil,
		[]modifierrule.Modification{{Kind: modifierrule.ChangeStatus, NewStatus: 500}})
	require.NoError(t, err)

	rule2, err := modifierrule.New("r2", "annotate", 50,
		matcher.Spec{Kind: matcher.Exact, URLPattern: "/x"}, nil,
		[]modifierrule.Modification{
			{Kind: modifierrule.AddHeader, HeaderName: "X-Env", HeaderValue: "test"},
			{Kind: modifierrule.ReplaceBody, Pattern: "error", Replacement: "failure"},
		})
	require.NoError(t, err)

	require.NoError(t, store.Insert(rule1))
	require.NoError(t, store.Insert(rule2))

	m := New(store, nil)
	resp := httpmsg.Response{Status: 200, Headers: http.Header{}, Body: []byte("error occurred")}
	out, err := m.Apply(context.Background(), "GET", "/x", 200, resp)
	require.NoError(t, err)

	assert.Equal(t, 500, out.Status)
	assert.Equal(t, "test", out.Headers.Get("X-Env"))
	assert.Equal(t, "failure occurred", string(out.Body))
}

func TestReplaceBodyRegex(t *testing.T) {
	store := modifierrule.NewStore()
	rule, err := modifierrule.New("r1", "", 0, matcher.Spec{Kind: matcher.Exact, URLPattern: "/x"}, nil,
		[]modifierrule.Modification{{Kind: modifierrule.ReplaceBody, Pattern: `\d+`, Replacement: "N", UseRegex: true}})
	require.NoError(t, err)
	require.NoError(t, store.Insert(rule))

	m := New(store, nil)
	resp := httpmsg.Response{Status: 200, Headers: http.Header{}, Body: []byte("id=42 id=7")}
	out, err := m.Apply(context.Background(), "GET", "/x", 200, resp)
	require.NoError(t, err)
	assert.Equal(t, "id=N id=N", string(out.Body))
}

func TestReplaceBodyInvalidRegexRejectedAtInsert(t *testing.T) {
	_, err := modifierrule.New("r1", "", 0, matcher.Spec{Kind: matcher.Exact, URLPattern: "/x"}, nil,
		[]modifierrule.Modification{{Kind: modifierrule.ReplaceBody, Pattern: "(", UseRegex: true}})
	require.Error(t, err)
}

func TestModifyJSONSetsNestedField(t *testing.T) {
	store := modifierrule.NewStore()
	rule, err := modifierrule.New("r1", "", 0, matcher.Spec{Kind: matcher.Exact, URLPattern: "/x"}, nil,
		[]modifierrule.Modification{{Kind: modifierrule.ModifyJSON, JSONPath: "meta.env", JSONValue: "prod"}})
	require.NoError(t, err)
	require.NoError(t, store.Insert(rule))

	m := New(store, nil)
	resp := httpmsg.Response{Status: 200, Headers: http.Header{}, Body: []byte(`{"ok":true}`)}
	out, err := m.Apply(context.Background(), "GET", "/x", 200, resp)
	require.NoError(t, err)
	assert.Contains(t, string(out.Body), `"env":"prod"`)
}

func TestModifyJSONNonJSONBodyIsNoOp(t *testing.T) {
	store := modifierrule.NewStore()
	rule, err := modifierrule.New("r1", "", 0, matcher.Spec{Kind: matcher.Exact, URLPattern: "/x"}, nil,
		[]modifierrule.Modification{{Kind: modifierrule.ModifyJSON, JSONPath: "a.b", JSONValue: 1}})
	require.NoError(t, err)
	require.NoError(t, store.Insert(rule))

	m := New(store, nil)
	resp := httpmsg.Response{Status: 200, Headers: http.Header{}, Body: []byte("not json")}
	out, err := m.Apply(context.Background(), "GET", "/x", 200, resp)
	require.NoError(t, err)
	assert.Equal(t, "not json", string(out.Body))
}

func TestStatusAllowListRespectsDynamicChange(t *testing.T) {
	store := modifierrule.NewStore()
	// rule1 forces status to 500, runs first (higher priority).
	rule1, err := modifierrule.New("r1", "", 100, matcher.Spec{Kind: matcher.Exact, URLPattern: "/x"}, nil,
		[]modifierrule.Modification{{Kind: modifierrule.ChangeStatus, NewStatus: 500}})
	require.NoError(t, err)
	// rule2 only applies to 5xx, runs second — sees the status rule1 produced.
	rule2, err := modifierrule.New("r2", "", 50, matcher.Spec{Kind: matcher.Exact, URLPattern: "/x"}, []int{500},
		[]modifierrule.Modification{{Kind: modifierrule.AddHeader, HeaderName: "X-Err", HeaderValue: "1"}})
	require.NoError(t, err)
	require.NoError(t, store.Insert(rule1))
	require.NoError(t, store.Insert(rule2))

	m := New(store, nil)
	resp := httpmsg.Response{Status: 200, Headers: http.Header{}, Body: []byte("")}
	out, err := m.Apply(context.Background(), "GET", "/x", 200, resp)
	require.NoError(t, err)
	assert.Equal(t, "1", out.Headers.Get("X-Err"))
}

func TestRemoveHeaderCaseInsensitive(t *testing.T) {
	store := modifierrule.NewStore()
	rule, err := modifierrule.New("r1", "", 0, matcher.Spec{Kind: matcher.Exact, URLPattern: "/x"}, nil,
		[]modifierrule.Modification{{Kind: modifierrule.RemoveHeader, HeaderName: "x-trace"}})
	require.NoError(t, err)
	require.NoError(t, store.Insert(rule))

	m := New(store, nil)
	h := http.Header{}
	h.Set("X-Trace", "abc")
	resp := httpmsg.Response{Status: 200, Headers: h, Body: []byte("")}
	out, err := m.Apply(context.Background(), "GET", "/x", 200, resp)
	require.NoError(t, err)
	assert.Empty(t, out.Headers.Get("X-Trace"))
}

func TestInjectDelayCancellation(t *testing.T) {
	store := modifierrule.NewStore()
	rule, err := modifierrule.New("r1", "", 0, matcher.Spec{Kind: matcher.Exact, URLPattern: "/x"}, nil,
		[]modifierrule.Modification{{Kind: modifierrule.InjectDelay, DelayMS: 5000}})
	require.NoError(t, err)
	require.NoError(t, store.Insert(rule))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := New(store, nil)
	_, err = m.Apply(ctx, "GET", "/x", 200, httpmsg.Response{Status: 200, Headers: http.Header{}})
	require.Error(t, err)
}

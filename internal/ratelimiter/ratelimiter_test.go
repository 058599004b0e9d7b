package ratelimiter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dev-console/proxyd/internal/httpmsg"
	"github.com/dev-console/proxyd/internal/matcher"
	"github.com/dev-console/proxyd/internal/ratelimitrule"
)

func TestS3RateLimit(t *testing.T) {
	store := ratelimitrule.NewStore()
	rule, err := ratelimitrule.New("rl1", "limited", 0,
		matcher.Spec{Kind: matcher.Exact, URLPattern: "/limited"},
		ratelimitrule.KeyType{Kind: ratelimitrule.KeyClientIP},
		ratelimitrule.Limit{MaxRequests: 2, WindowSeconds: 60, BurstSize: 0},
		ratelimitrule.ResponseTemplate{Status: 429, Body: "slow down"})
	require.NoError(t, err)
	require.NoError(t, store.Insert(rule))

	rl := New(store, time.Hour)
	defer rl.Stop()

	req := httpmsg.Request{Method: "GET", URL: "/limited", ClientIP: "1.2.3.4"}

	d1, matched := rl.Check(context.Background(), req)
	require.True(t, matched)
	assert.True(t, d1.Admitted)

	d2, _ := rl.Check(context.Background(), req)
	assert.True(t, d2.Admitted)

	d3, _ := rl.Check(context.Background(), req)
	assert.False(t, d3.Admitted)
	assert.Equal(t, 429, d3.Response.Status)
	assert.Equal(t, "slow down", string(d3.Response.Body))

	rl.ResetRule("rl1")
	d4, _ := rl.Check(context.Background(), req)
	assert.True(t, d4.Admitted)
}

func TestDifferentKeysGetIndependentBuckets(t *testing.T) {
	store := ratelimitrule.NewStore()
	rule, err := ratelimitrule.New("rl1", "", 0, matcher.Spec{Kind: matcher.Exact, URLPattern: "/x"},
		ratelimitrule.KeyType{Kind: ratelimitrule.KeyClientIP},
		ratelimitrule.Limit{MaxRequests: 1, WindowSeconds: 60}, ratelimitrule.ResponseTemplate{Status: 429})
	require.NoError(t, err)
	require.NoError(t, store.Insert(rule))

	rl := New(store, time.Hour)
	defer rl.Stop()

	d1, _ := rl.Check(context.Background(), httpmsg.Request{Method: "GET", URL: "/x", ClientIP: "a"})
	d2, _ := rl.Check(context.Background(), httpmsg.Request{Method: "GET", URL: "/x", ClientIP: "b"})
	assert.True(t, d1.Admitted)
	assert.True(t, d2.Admitted)
}

func TestMissingHeaderKeyCollapsesToMissing(t *testing.T) {
	store := ratelimitrule.NewStore()
	rule, err := ratelimitrule.New("rl1", "", 0, matcher.Spec{Kind: matcher.Exact, URLPattern: "/x"},
		ratelimitrule.KeyType{Kind: ratelimitrule.KeyHeader, HeaderName: "X-Org"},
		ratelimitrule.Limit{MaxRequests: 1, WindowSeconds: 60}, ratelimitrule.ResponseTemplate{Status: 429})
	require.NoError(t, err)
	require.NoError(t, store.Insert(rule))
	key := rule.DeriveKey(httpmsg.Request{Headers: map[string][]string{}})
	assert.Equal(t, "missing", key)
}

func TestFirstMatchOnlyNoCumulative(t *testing.T) {
	store := ratelimitrule.NewStore()
	strict, err := ratelimitrule.New("strict", "", 100, matcher.Spec{Kind: matcher.Exact, URLPattern: "/x"},
		ratelimitrule.KeyType{Kind: ratelimitrule.KeyGlobal},
		ratelimitrule.Limit{MaxRequests: 1, WindowSeconds: 60}, ratelimitrule.ResponseTemplate{Status: 429})
	require.NoError(t, err)
	loose, err := ratelimitrule.New("loose", "", 1, matcher.Spec{Kind: matcher.Exact, URLPattern: "/x"},
		ratelimitrule.KeyType{Kind: ratelimitrule.KeyGlobal},
		ratelimitrule.Limit{MaxRequests: 1000, WindowSeconds: 60}, ratelimitrule.ResponseTemplate{Status: 429})
	require.NoError(t, err)
	require.NoError(t, store.Insert(strict))
	require.NoError(t, store.Insert(loose))

	rl := New(store, time.Hour)
	defer rl.Stop()
	req := httpmsg.Request{Method: "GET", URL: "/x"}
	d1, _ := rl.Check(context.Background(), req)
	assert.True(t, d1.Admitted)
	d2, _ := rl.Check(context.Background(), req)
	assert.False(t, d2.Admitted) // strict rule denies; loose rule never consulted
}

func TestStats(t *testing.T) {
	store := ratelimitrule.NewStore()
	rule, err := ratelimitrule.New("rl1", "", 0, matcher.Spec{Kind: matcher.Exact, URLPattern: "/x"},
		ratelimitrule.KeyType{Kind: ratelimitrule.KeyClientIP},
		ratelimitrule.Limit{MaxRequests: 5, WindowSeconds: 60}, ratelimitrule.ResponseTemplate{Status: 429})
	require.NoError(t, err)
	require.NoError(t, store.Insert(rule))

	rl := New(store, time.Hour)
	defer rl.Stop()
	_, _ = rl.Check(context.Background(), httpmsg.Request{Method: "GET", URL: "/x", ClientIP: "a"})
	_, _ = rl.Check(context.Background(), httpmsg.Request{Method: "GET", URL: "/x", ClientIP: "b"})

	stats := rl.Stats()
	assert.Equal(t, 2, stats.TotalBuckets)
	assert.Equal(t, 1, stats.ActiveLimits)
}

func TestEvictsIdleBuckets(t *testing.T) {
	store := ratelimitrule.NewStore()
	rule, err := ratelimitrule.New("rl1", "", 0, matcher.Spec{Kind: matcher.Exact, URLPattern: "/x"},
		ratelimitrule.KeyType{Kind: ratelimitrule.KeyClientIP},
		ratelimitrule.Limit{MaxRequests: 1, WindowSeconds: 1}, ratelimitrule.ResponseTemplate{Status: 429})
	require.NoError(t, err)
	require.NoError(t, store.Insert(rule))

	rl := New(store, 20*time.Millisecond)
	defer rl.Stop()
	_, _ = rl.Check(context.Background(), httpmsg.Request{Method: "GET", URL: "/x", ClientIP: "a"})
	require.Equal(t, 1, rl.Stats().TotalBuckets)

	time.Sleep(2500 * time.Millisecond) // > 2*window (2s), sweep should have run
	assert.Equal(t, 0, rl.Stats().TotalBuckets)
}

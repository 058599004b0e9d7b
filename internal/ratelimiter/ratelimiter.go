// Package ratelimiter implements the RateLimiter component (spec §4.3):
// for each request, the first enabled matching rule (in priority order)
// gates admission through a per-(rule,key) token bucket. Admission math is
// delegated to golang.org/x/time/rate, which implements exactly the
// capacity/refill-rate token bucket spec §3 describes; this package adds
// the idle-eviction sweep and stats surface x/time/rate does not provide.
package ratelimiter

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/dev-console/proxyd/internal/httpmsg"
	"github.com/dev-console/proxyd/internal/ratelimitrule"
	"github.com/dev-console/proxyd/internal/util"
)

const bucketKeySep = "\x00"

// bucket is one (rule, derived-key) token bucket.
type bucket struct {
	limiter       *rate.Limiter
	windowSeconds int
	lastUsedNano  atomic.Int64
}

func (b *bucket) touch() { b.lastUsedNano.Store(time.Now().UnixNano()) }

// Decision is the outcome of checking one request against the rate
// limiter.
type Decision struct {
	Admitted bool
	Rule     *ratelimitrule.Rule
	Response httpmsg.Response
	DelayMS  int
}

// RateLimiter evaluates a ratelimitrule.Store against incoming requests.
type RateLimiter struct {
	store   *ratelimitrule.Store
	buckets sync.Map // string -> *bucket

	sweepInterval time.Duration
	stopOnce      sync.Once
	stopCh        chan struct{}
}

// New builds a RateLimiter backed by store and starts its background
// eviction sweep at sweepInterval (spec §4.3 recommends ~60s).
func New(store *ratelimitrule.Store, sweepInterval time.Duration) *RateLimiter {
	if sweepInterval <= 0 {
		sweepInterval = 60 * time.Second
	}
	rl := &RateLimiter{store: store, sweepInterval: sweepInterval, stopCh: make(chan struct{})}
	util.SafeGo(rl.sweepLoop)
	return rl
}

// Stop halts the background eviction sweep.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

func (rl *RateLimiter) sweepLoop() {
	ticker := time.NewTicker(rl.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.evictIdle()
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *RateLimiter) evictIdle() {
	now := time.Now()
	rl.buckets.Range(func(key, value any) bool {
		b := value.(*bucket)
		idleFor := now.Sub(time.Unix(0, b.lastUsedNano.Load()))
		if idleFor > 2*time.Duration(b.windowSeconds)*time.Second {
			rl.buckets.Delete(key)
		}
		return true
	})
}

// Check consults rules in priority order and returns the first enabled
// match's admission decision. Only the first matching rule applies — no
// cumulative limiting (spec §4.3).
func (rl *RateLimiter) Check(ctx context.Context, req httpmsg.Request) (Decision, bool) {
	for _, r := range rl.store.ListSorted() {
		if !r.Matches(req.Method, req.URL) {
			continue
		}
		return rl.checkRule(r, req), true
	}
	return Decision{}, false
}

func (rl *RateLimiter) checkRule(r *ratelimitrule.Rule, req httpmsg.Request) Decision {
	key := r.ID() + bucketKeySep + r.DeriveKey(req)
	b := rl.bucketFor(r, key)
	b.touch()

	if b.limiter.AllowN(time.Now(), 1) {
		return Decision{Admitted: true, Rule: r}
	}

	resp := httpmsg.Response{
		Status:  r.Response.Status,
		Headers: cloneHeader(r.Response.Headers),
		Body:    []byte(r.Response.Body),
	}
	return Decision{Admitted: false, Rule: r, Response: resp, DelayMS: r.Response.DelayMS}
}

func (rl *RateLimiter) bucketFor(r *ratelimitrule.Rule, key string) *bucket {
	if existing, ok := rl.buckets.Load(key); ok {
		return existing.(*bucket)
	}
	capacity := r.Limit.MaxRequests + r.Limit.BurstSize
	refillPerSecond := float64(r.Limit.MaxRequests) / float64(r.Limit.WindowSeconds)
	fresh := &bucket{
		limiter:       rate.NewLimiter(rate.Limit(refillPerSecond), capacity),
		windowSeconds: r.Limit.WindowSeconds,
	}
	actual, _ := rl.buckets.LoadOrStore(key, fresh)
	return actual.(*bucket)
}

// ResetRule removes every bucket tracked for ruleID (spec §4.3
// reset_rule).
func (rl *RateLimiter) ResetRule(ruleID string) {
	prefix := ruleID + bucketKeySep
	rl.buckets.Range(func(key, _ any) bool {
		if strings.HasPrefix(key.(string), prefix) {
			rl.buckets.Delete(key)
		}
		return true
	})
}

// Stats is the GET /api/rate-limits/stats payload.
type Stats struct {
	TotalBuckets int `json:"total_buckets"`
	ActiveLimits int `json:"active_limits"`
}

// Stats reports total_buckets and active_limits (spec §4.3).
func (rl *RateLimiter) Stats() Stats {
	total := 0
	ruleIDs := make(map[string]struct{})
	rl.buckets.Range(func(key, _ any) bool {
		total++
		k := key.(string)
		if idx := strings.Index(k, bucketKeySep); idx >= 0 {
			ruleIDs[k[:idx]] = struct{}{}
		}
		return true
	})
	return Stats{TotalBuckets: total, ActiveLimits: len(ruleIDs)}
}

func cloneHeader(h map[string][]string) map[string][]string {
	if h == nil {
		return map[string][]string{}
	}
	out := make(map[string][]string, len(h))
	for k, v := range h {
		vs := make([]string, len(v))
		copy(vs, v)
		out[k] = vs
	}
	return out
}

// Package latency implements the LatencyInjector component (spec §4.4):
// unlike the mock and modifier families, every enabled matching rule for a
// direction contributes its sampled delay — latency stacks, it does not
// short-circuit.
package latency

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/dev-console/proxyd/internal/latencyrule"
	"github.com/dev-console/proxyd/internal/util"
)

func msToDuration(ms int64) time.Duration { return time.Duration(ms) * time.Millisecond }

// RuleStats accumulates per-rule (or global) delay statistics (spec §4.4,
// testable property 7: total = Σ per_rule.total, min ≤ avg ≤ max).
type RuleStats struct {
	Hits  int64
	Total int64
	Min   int64
	Max   int64
}

// Avg derives the mean from Hits and Total; zero hits reports zero.
func (s RuleStats) Avg() float64 {
	if s.Hits == 0 {
		return 0
	}
	return float64(s.Total) / float64(s.Hits)
}

func (s *RuleStats) record(ms int64) {
	if s.Hits == 0 || ms < s.Min {
		s.Min = ms
	}
	if ms > s.Max {
		s.Max = ms
	}
	s.Hits++
	s.Total += ms
}

// Injector samples and applies additive delay for a latencyrule.Store.
type Injector struct {
	store *latencyrule.Store

	mu       sync.Mutex
	perRule  map[string]*RuleStats
	global   RuleStats
}

// New builds an Injector backed by store.
func New(store *latencyrule.Store) *Injector {
	return &Injector{store: store, perRule: make(map[string]*RuleStats)}
}

// Sample evaluates every enabled rule matching method+url for direction,
// sums their sampled delays, suspends for that total, and updates stats.
// It returns the number of milliseconds actually suspended for, or an
// error if ctx was cancelled mid-suspension (spec §4.4 Cancellation).
func (inj *Injector) Sample(ctx context.Context, method, url string, direction latencyrule.Direction) (int, error) {
	var total int64
	type hit struct {
		id string
		ms int64
	}
	var hits []hit

	for _, rule := range inj.store.ListSorted() {
		if !rule.Matches(method, url, direction) {
			continue
		}
		ms := sampleDelay(rule.Delay)
		hits = append(hits, hit{id: rule.ID(), ms: ms})
		total += ms
	}

	if total > 0 {
		if !util.SleepCancellable(ctx, msToDuration(total)) {
			return 0, ctx.Err()
		}
	}

	if len(hits) > 0 {
		inj.mu.Lock()
		for _, h := range hits {
			stats, ok := inj.perRule[h.id]
			if !ok {
				stats = &RuleStats{}
				inj.perRule[h.id] = stats
			}
			stats.record(h.ms)
			inj.global.record(h.ms)
		}
		inj.mu.Unlock()
	}

	return int(total), nil
}

// Stats returns a snapshot of the global aggregate and every per-rule
// RuleStats seen so far.
func (inj *Injector) Stats() (global RuleStats, perRule map[string]RuleStats) {
	inj.mu.Lock()
	defer inj.mu.Unlock()
	out := make(map[string]RuleStats, len(inj.perRule))
	for id, s := range inj.perRule {
		out[id] = *s
	}
	return inj.global, out
}

// ResetStats zeroes every counter (spec §4.4 reset_stats).
func (inj *Injector) ResetStats() {
	inj.mu.Lock()
	defer inj.mu.Unlock()
	inj.global = RuleStats{}
	inj.perRule = make(map[string]*RuleStats)
}

// sampleDelay draws one delay sample per the rule's DelayConfig.
func sampleDelay(cfg latencyrule.DelayConfig) int64 {
	switch cfg.Kind {
	case latencyrule.Fixed:
		return int64(cfg.DelayMS)
	case latencyrule.Random:
		if cfg.MaxMS <= cfg.MinMS {
			return int64(cfg.MinMS)
		}
		return int64(cfg.MinMS + rand.Intn(cfg.MaxMS-cfg.MinMS+1))
	case latencyrule.Normal:
		sample := cfg.MeanMS + rand.NormFloat64()*cfg.StdDevMS
		return int64(math.Max(0, math.Round(sample)))
	case latencyrule.Spike:
		if rand.Float64() < cfg.Probability {
			return int64(cfg.SpikeMS)
		}
		return int64(cfg.BaseMS)
	default:
		return 0
	}
}

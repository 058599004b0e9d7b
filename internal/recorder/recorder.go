// Package recorder implements the Recorder + query layer (spec §4.7): a
// bounded in-memory ring of captured Exchanges with filtered query,
// incremental aggregate stats, and dashboard analytics rollups.
package recorder

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Exchange is one captured request/response (spec §3). Finalized once at
// Append, never mutated afterward.
type Exchange struct {
	ID             string
	StartedAt      time.Time
	Method         string
	URL            string
	RequestHeaders map[string][]string
	RequestBody    []byte
	HasResponse    bool
	Status         int
	ResponseHeaders map[string][]string
	ResponseBody    []byte
	DurationMS      int64
	Synthetic       bool // true for mock hits (spec §4.6)
}

// NewID generates the sortable, time-prefixed identifier spec §3
// requires: unix-nanos base32 (extended-hex alphabet, so lexicographic
// order follows numeric order), dash, 4 hex digits from 2 random bytes for
// intra-tick uniqueness.
func NewID() string {
	now := time.Now().UnixNano()
	ts := strings.ToLower(base32.HexEncoding.WithPadding(base32.NoPadding).EncodeToString(int64ToBytes(now)))
	var rnd [2]byte
	_, _ = rand.Read(rnd[:])
	return fmt.Sprintf("%s-%x", ts, rnd)
}

func int64ToBytes(v int64) []byte {
	b := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
	return b
}

// Filter narrows a Query to exchanges matching every populated field
// (spec §4.7 Query).
type Filter struct {
	Search      string // substring over URL and decoded bodies
	Method      string
	Status      int // 0 means unconstrained
	MinDuration int64
	MaxDuration int64     // 0 means unconstrained
	Since       time.Time // zero means unconstrained
}

func (f Filter) matches(e *Exchange) bool {
	if f.Method != "" && !strings.EqualFold(f.Method, e.Method) {
		return false
	}
	if !f.Since.IsZero() && e.StartedAt.Before(f.Since) {
		return false
	}
	if f.Status != 0 && e.Status != f.Status {
		return false
	}
	if f.MinDuration != 0 && e.DurationMS < f.MinDuration {
		return false
	}
	if f.MaxDuration != 0 && e.DurationMS > f.MaxDuration {
		return false
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(e.URL), needle) &&
			!strings.Contains(strings.ToLower(string(e.RequestBody)), needle) &&
			!strings.Contains(strings.ToLower(string(e.ResponseBody)), needle) {
			return false
		}
	}
	return true
}

// Stats is the incrementally maintained aggregate (spec §4.7).
type Stats struct {
	Total      int64
	Count2xx   int64
	Count3xx   int64
	Count4xx   int64
	Count5xx   int64
	sumDuration int64
	MinDuration int64
	MaxDuration int64
}

// AvgDuration derives the mean from the running sum; zero total reports
// zero (spec testable property 7's min ≤ avg ≤ max analogue for the
// recorder).
func (s Stats) AvgDuration() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.sumDuration) / float64(s.Total)
}

func (s *Stats) record(e *Exchange) {
	if s.Total == 0 || e.DurationMS < s.MinDuration {
		s.MinDuration = e.DurationMS
	}
	if e.DurationMS > s.MaxDuration {
		s.MaxDuration = e.DurationMS
	}
	s.Total++
	s.sumDuration += e.DurationMS
	switch {
	case e.Status >= 200 && e.Status < 300:
		s.Count2xx++
	case e.Status >= 300 && e.Status < 400:
		s.Count3xx++
	case e.Status >= 400 && e.Status < 500:
		s.Count4xx++
	case e.Status >= 500 && e.Status < 600:
		s.Count5xx++
	}
}

// EndpointStats is one row of the analytics top-endpoints table.
type EndpointStats struct {
	Path          string
	Count         int64
	ErrorCount    int64
	TotalDuration int64
}

func (e EndpointStats) AvgDuration() float64 {
	if e.Count == 0 {
		return 0
	}
	return float64(e.TotalDuration) / float64(e.Count)
}

// TimelinePoint is one sample of the last-~1h activity timeline.
type TimelinePoint struct {
	Timestamp time.Time
	Method    string
	Status    int
	Duration  int64
}

const maxTimelinePoints = 10000

// Recorder is the bounded capture ring plus its derived views.
type Recorder struct {
	mu       sync.RWMutex
	capacity int
	ring     []*Exchange // logical order: oldest at head after wraparound bookkeeping
	start    int         // index of oldest element within ring once full
	size     int

	stats    Stats
	timeline []TimelinePoint
}

// New constructs a Recorder bounded to capacity entries (spec §4.7
// default 10000, configurable).
func New(capacity int) *Recorder {
	if capacity <= 0 {
		capacity = 10000
	}
	return &Recorder{capacity: capacity, ring: make([]*Exchange, 0, capacity)}
}

// Size returns the number of exchanges currently held.
func (r *Recorder) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.size
}

// Capacity returns the configured ring capacity.
func (r *Recorder) Capacity() int { return r.capacity }

// Append adds e to the ring, evicting the oldest entry if at capacity
// (spec §4.7, testable property 4).
func (r *Recorder) Append(e *Exchange) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.ring) < r.capacity {
		r.ring = append(r.ring, e)
	} else {
		r.ring[r.start] = e
		r.start = (r.start + 1) % r.capacity
	}
	if r.size < r.capacity {
		r.size++
	}
	r.stats.record(e)
	r.appendTimeline(e)
}

func (r *Recorder) appendTimeline(e *Exchange) {
	r.timeline = append(r.timeline, TimelinePoint{
		Timestamp: e.StartedAt,
		Method:    e.Method,
		Status:    e.Status,
		Duration:  e.DurationMS,
	})
	cutoff := time.Now().Add(-1 * time.Hour)
	i := 0
	for i < len(r.timeline) && r.timeline[i].Timestamp.Before(cutoff) {
		i++
	}
	if i > 0 {
		r.timeline = append([]TimelinePoint{}, r.timeline[i:]...)
	}
	if len(r.timeline) > maxTimelinePoints {
		r.timeline = r.timeline[len(r.timeline)-maxTimelinePoints:]
	}
}

// orderedLocked returns every live exchange oldest-first. Caller must hold
// at least a read lock.
func (r *Recorder) orderedLocked() []*Exchange {
	out := make([]*Exchange, 0, r.size)
	if len(r.ring) < r.capacity {
		out = append(out, r.ring...)
		return out
	}
	for i := 0; i < r.capacity; i++ {
		out = append(out, r.ring[(r.start+i)%r.capacity])
	}
	return out
}

// Query returns exchanges matching filter, newest-first (spec §4.7,
// scenario S6).
func (r *Recorder) Query(filter Filter) []*Exchange {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ordered := r.orderedLocked()
	out := make([]*Exchange, 0, len(ordered))
	for i := len(ordered) - 1; i >= 0; i-- {
		if filter.matches(ordered[i]) {
			out = append(out, ordered[i])
		}
	}
	return out
}

// Get returns the single exchange with id, if still present in the ring.
func (r *Recorder) Get(id string) (*Exchange, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.ring {
		if e != nil && e.ID == id {
			return e, true
		}
	}
	return nil, false
}

// Clear empties the ring and resets stats; a full rescan is only ever
// needed after this (spec §4.7).
func (r *Recorder) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ring = make([]*Exchange, 0, r.capacity)
	r.start = 0
	r.size = 0
	r.stats = Stats{}
	r.timeline = nil
}

// Stats returns a snapshot of the incrementally maintained aggregate.
func (r *Recorder) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stats
}

// Analytics is the dashboard rollup payload (spec §4.7).
type Analytics struct {
	MethodHistogram map[string]int64
	StatusHistogram map[int]int64
	TopEndpoints    []EndpointStats
	Timeline        []TimelinePoint
}

// Analytics computes method/status histograms, the top-10 endpoints by
// count, and the recent timeline, over the exchanges currently in the
// ring.
func (r *Recorder) Analytics() Analytics {
	r.mu.RLock()
	defer r.mu.RUnlock()

	methodHist := make(map[string]int64)
	statusHist := make(map[int]int64)
	byPath := make(map[string]*EndpointStats)

	for _, e := range r.orderedLocked() {
		methodHist[e.Method]++
		statusHist[e.Status]++
		es, ok := byPath[e.URL]
		if !ok {
			es = &EndpointStats{Path: e.URL}
			byPath[e.URL] = es
		}
		es.Count++
		es.TotalDuration += e.DurationMS
		if e.Status >= 400 {
			es.ErrorCount++
		}
	}

	top := make([]EndpointStats, 0, len(byPath))
	for _, es := range byPath {
		top = append(top, *es)
	}
	sort.Slice(top, func(i, j int) bool { return top[i].Count > top[j].Count })
	if len(top) > 10 {
		top = top[:10]
	}

	timeline := make([]TimelinePoint, len(r.timeline))
	copy(timeline, r.timeline)

	return Analytics{
		MethodHistogram: methodHist,
		StatusHistogram: statusHist,
		TopEndpoints:    top,
		Timeline:        timeline,
	}
}

// Package rulestore implements the generic ordered rule registry shared by
// all four policy families (mock, modifier, rate-limit, latency). It owns
// CRUD, enable/disable toggling, priority ordering, and the
// reader/writer discipline described by spec §4.2: many concurrent readers
// of ListSorted during request handling, writers serialized per family.
package rulestore

import (
	"errors"
	"sort"
	"sync"
)

// ErrConflict is returned by Insert when the id is already in use. The
// control plane maps it to HTTP 409.
var ErrConflict = errors.New("rule id already exists")

// Rule is the minimal surface every rule family must implement so the
// store can order and toggle it without knowing the family's payload.
// setSeq is unexported and declared in this package; embedding Base gives
// every family type the promoted method for free.
type Rule interface {
	ID() string
	Priority() int
	IsEnabled() bool
	SetEnabled(bool)
	Seq() uint64
	setSeq(uint64)
}

// Base holds the identity fields common to every rule family (spec §3):
// stable id, name, enabled flag, priority, plus the insertion sequence
// used to break priority ties deterministically. A creation timestamp,
// where a family records one, lives on the family type (CreatedAt).
type Base struct {
	Id        string
	Name      string
	Enabled   bool
	Priority_ int
	seq       uint64
}

func (b *Base) ID() string         { return b.Id }
func (b *Base) Priority() int      { return b.Priority_ }
func (b *Base) IsEnabled() bool    { return b.Enabled }
func (b *Base) SetEnabled(e bool)  { b.Enabled = e }
func (b *Base) Seq() uint64        { return b.seq }
func (b *Base) setSeq(seq uint64)  { b.seq = seq }

// Store is a generic keyed registry of rules of type T. Zero value is not
// usable; construct with New.
type Store[T Rule] struct {
	mu      sync.RWMutex
	byID    map[string]T
	nextSeq uint64
}

// New constructs an empty Store.
func New[T Rule]() *Store[T] {
	return &Store[T]{byID: make(map[string]T)}
}

// Insert adds a new rule. Returns ErrConflict if the id is already taken.
func (s *Store[T]) Insert(rule T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[rule.ID()]; exists {
		return ErrConflict
	}
	rule.setSeq(s.nextSeq)
	s.nextSeq++
	s.byID[rule.ID()] = rule
	return nil
}

// ReplaceByID atomically swaps the rule stored under id for replacement.
// The insertion sequence of the original rule is preserved so priority
// tie-breaks remain stable across an edit (spec §8 property 2).
func (s *Store[T]) ReplaceByID(id string, replacement T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	replacement.setSeq(existing.Seq())
	s.byID[id] = replacement
	return nil
}

// DeleteByID removes a rule. Returns ErrNotFound if absent.
func (s *Store[T]) DeleteByID(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return ErrNotFound
	}
	delete(s.byID, id)
	return nil
}

// ToggleByID flips the enabled flag of a rule in place.
func (s *Store[T]) ToggleByID(id string) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rule, ok := s.byID[id]
	if !ok {
		var zero T
		return zero, ErrNotFound
	}
	rule.SetEnabled(!rule.IsEnabled())
	return rule, nil
}

// GetByID returns the rule stored under id, visible whether or not it is
// enabled (disabled rules remain visible via CRUD per spec §3).
func (s *Store[T]) GetByID(id string) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rule, ok := s.byID[id]
	return rule, ok
}

// ListAll returns every rule, enabled or not, in insertion order. Used by
// control-plane list endpoints.
func (s *Store[T]) ListAll() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]T, 0, len(s.byID))
	for _, rule := range s.byID {
		out = append(out, rule)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq() < out[j].Seq() })
	return out
}

// ListSorted returns enabled rules ordered by descending priority, ties
// broken by ascending insertion sequence (spec §4.2, testable property 1).
// The returned slice is a fresh copy: readers never observe a half-edited
// rule set because the snapshot is built under a single read lock.
func (s *Store[T]) ListSorted() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]T, 0, len(s.byID))
	for _, rule := range s.byID {
		if rule.IsEnabled() {
			out = append(out, rule)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority() != out[j].Priority() {
			return out[i].Priority() > out[j].Priority()
		}
		return out[i].Seq() < out[j].Seq()
	})
	return out
}

// Clear removes every rule from the store.
func (s *Store[T]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID = make(map[string]T)
}

// Len returns the total number of rules, enabled or not.
func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// ErrNotFound is returned by operations addressing a rule id that does not
// exist.
var ErrNotFound = errors.New("rule not found")

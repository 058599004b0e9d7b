// Package latencyrule implements the LatencyRule family (spec §3, §4.4):
// a MatchSpec, a direction the delay applies to, and one of four sampling
// strategies.
package latencyrule

import (
	"github.com/dev-console/proxyd/internal/matcher"
	"github.com/dev-console/proxyd/internal/ruleerr"
	"github.com/dev-console/proxyd/internal/rulestore"
)

// Direction names which leg of the exchange a latency rule delays. Both is
// only ever a rule's ApplyTo value; Sample is always called with Request
// or Response.
type Direction string

const (
	Request  Direction = "request"
	Response Direction = "response"
	Both     Direction = "both"
)

// DelayKind names the sampling strategy.
type DelayKind string

const (
	Fixed  DelayKind = "fixed"
	Random DelayKind = "random"
	Normal DelayKind = "normal"
	Spike  DelayKind = "spike"
)

// DelayConfig is the closed union of sampling strategies (spec §4.4).
type DelayConfig struct {
	Kind DelayKind

	// Fixed
	DelayMS int

	// Random
	MinMS int
	MaxMS int

	// Normal
	MeanMS   float64
	StdDevMS float64

	// Spike
	BaseMS      int
	SpikeMS     int
	Probability float64
}

// Rule is one latency rule.
type Rule struct {
	rulestore.Base
	Spec      matcher.Spec
	ApplyTo   Direction
	Delay     DelayConfig

	compiled *matcher.Matcher
}

// New validates spec and delay, returning ruleerr.ValidationFailed for an
// inverted random range or an out-of-[0,1] spike probability (spec §4.4).
func New(id, name string, priority int, spec matcher.Spec, applyTo Direction, delay DelayConfig) (*Rule, error) {
	compiled, err := matcher.Compile(spec)
	if err != nil {
		return nil, err
	}
	if applyTo != Request && applyTo != Response && applyTo != Both {
		return nil, ruleerr.New(ruleerr.ValidationFailed, "apply_to must be \"request\", \"response\", or \"both\"")
	}
	switch delay.Kind {
	case Fixed:
		if delay.DelayMS < 0 {
			return nil, ruleerr.New(ruleerr.ValidationFailed, "delay_ms must be >= 0")
		}
	case Random:
		if delay.MinMS > delay.MaxMS {
			return nil, ruleerr.New(ruleerr.ValidationFailed, "min_ms must be <= max_ms")
		}
	case Normal:
		if delay.StdDevMS < 0 {
			return nil, ruleerr.New(ruleerr.ValidationFailed, "std_dev_ms must be >= 0")
		}
	case Spike:
		if delay.Probability < 0 || delay.Probability > 1 {
			return nil, ruleerr.New(ruleerr.ValidationFailed, "probability must be in [0,1]")
		}
	default:
		return nil, ruleerr.New(ruleerr.ValidationFailed, "unknown delay kind")
	}
	return &Rule{
		Base:     rulestore.Base{Id: id, Name: name, Enabled: true, Priority_: priority},
		Spec:     spec,
		ApplyTo:  applyTo,
		Delay:    delay,
		compiled: compiled,
	}, nil
}

// Matches reports whether this rule covers direction (Both covers either)
// and whether its MatchSpec accepts method+url.
func (r *Rule) Matches(method, url string, direction Direction) bool {
	if r.ApplyTo != direction && r.ApplyTo != Both {
		return false
	}
	return r.compiled.Matches(method, url)
}

// Store is the generic registry specialized for latency rules.
type Store = rulestore.Store[*Rule]

// NewStore constructs an empty latency rule store.
func NewStore() *Store { return rulestore.New[*Rule]() }

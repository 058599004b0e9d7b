// Package modifierrule implements the ModifierRule family (spec §3, §4.5):
// a MatchSpec extended with an optional status allow-list, plus an ordered
// list of Modifications applied to the upstream response.
package modifierrule

import (
	"regexp"
	"time"

	"github.com/dev-console/proxyd/internal/matcher"
	"github.com/dev-console/proxyd/internal/ruleerr"
	"github.com/dev-console/proxyd/internal/rulestore"
)

// Kind discriminates the closed set of Modification variants.
type Kind string

const (
	ReplaceBody  Kind = "replace_body"
	AddHeader    Kind = "add_header"
	RemoveHeader Kind = "remove_header"
	ChangeStatus Kind = "change_status"
	InjectDelay  Kind = "inject_delay"
	ModifyJSON   Kind = "modify_json"
)

// Modification is one step of a ModifierRule's ordered transformation
// list. Only the fields relevant to Kind are populated.
type Modification struct {
	Kind Kind

	// ReplaceBody
	Pattern     string
	Replacement string
	UseRegex    bool

	// AddHeader / RemoveHeader
	HeaderName  string
	HeaderValue string

	// ChangeStatus
	NewStatus int

	// InjectDelay
	DelayMS int

	// ModifyJSON
	JSONPath  string
	JSONValue any

	compiledRegex *regexp.Regexp
}

// CompiledRegex returns the pattern compiled at rule insert time, or nil
// when UseRegex is false. The hot path never recompiles.
func (m *Modification) CompiledRegex() *regexp.Regexp { return m.compiledRegex }

// Rule is one modifier rule.
type Rule struct {
	rulestore.Base
	Spec            matcher.Spec
	StatusAllowList []int
	Modifications   []Modification
	CreatedAt       time.Time

	compiled *matcher.Matcher
}

// New validates spec and every ReplaceBody modification's regex (when
// UseRegex is set), compiling each exactly once. Any invalid regex fails
// the whole insert with ruleerr.InvalidPattern — no rule enters the store.
func New(id, name string, priority int, spec matcher.Spec, statusAllowList []int, mods []Modification) (*Rule, error) {
	compiled, err := matcher.Compile(spec)
	if err != nil {
		return nil, err
	}
	out := make([]Modification, len(mods))
	for i, m := range mods {
		if m.Kind == ReplaceBody && m.UseRegex {
			re, err := regexp.Compile(m.Pattern)
			if err != nil {
				return nil, ruleerr.Wrap(ruleerr.InvalidPattern, "invalid regex in replace-body modification", err)
			}
			m.compiledRegex = re
		}
		out[i] = m
	}
	return &Rule{
		Base:            rulestore.Base{Id: id, Name: name, Enabled: true, Priority_: priority},
		Spec:            spec,
		StatusAllowList: statusAllowList,
		Modifications:   out,
		CreatedAt:       time.Now(),
		compiled:        compiled,
	}, nil
}

// Matches reports whether the rule applies to method+url at the given
// response status (spec §4.5 step 1).
func (r *Rule) Matches(method, url string, status int) bool {
	return r.compiled.Matches(method, url) && matcher.StatusAllowed(status, r.StatusAllowList)
}

// MatchesRoute reports whether the rule's MatchSpec accepts method+url,
// independent of status. Used by the Modifier to collect route-eligible
// rules before evaluating each one's status allow-list against the
// (possibly already-mutated) current status.
func (r *Rule) MatchesRoute(method, url string) bool {
	return r.compiled.Matches(method, url)
}

// Store is the generic registry specialized for modifier rules.
type Store = rulestore.Store[*Rule]

// NewStore constructs an empty modifier rule store.
func NewStore() *Store { return rulestore.New[*Rule]() }

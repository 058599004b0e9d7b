// Package mockrule implements the MockRule family (spec §3, §4.6): a
// MatchSpec plus a synthetic response and optional fixed pre-response
// delay, short-circuiting the pipeline on first match.
package mockrule

import (
	"time"

	"github.com/dev-console/proxyd/internal/httpmsg"
	"github.com/dev-console/proxyd/internal/matcher"
	"github.com/dev-console/proxyd/internal/rulestore"
)

// Rule is one mock rule.
type Rule struct {
	rulestore.Base
	Spec       matcher.Spec
	Response   httpmsg.Response
	PreDelayMS int // 0 means no pre-response delay
	CreatedAt  time.Time

	compiled *matcher.Matcher
}

// New validates and compiles spec, returning ruleerr.InvalidPattern if the
// spec's regex (when Kind is Regex) does not compile.
func New(id, name string, priority int, spec matcher.Spec, resp httpmsg.Response, preDelayMS int) (*Rule, error) {
	compiled, err := matcher.Compile(spec)
	if err != nil {
		return nil, err
	}
	return &Rule{
		Base:       rulestore.Base{Id: id, Name: name, Enabled: true, Priority_: priority},
		Spec:       spec,
		Response:   resp,
		PreDelayMS: preDelayMS,
		CreatedAt:  time.Now(),
		compiled:   compiled,
	}, nil
}

// Matches reports whether this rule's MatchSpec accepts method+url.
func (r *Rule) Matches(method, url string) bool {
	return r.compiled.Matches(method, url)
}

// Store is the generic registry specialized for mock rules.
type Store = rulestore.Store[*Rule]

// NewStore constructs an empty mock rule store.
func NewStore() *Store { return rulestore.New[*Rule]() }

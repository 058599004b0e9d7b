// Package mock implements the Mock component (spec §4.6): scans mock
// rules in priority order and short-circuits on the first enabled match.
package mock

import (
	"github.com/dev-console/proxyd/internal/httpmsg"
	"github.com/dev-console/proxyd/internal/mockrule"
)

// Mock evaluates a mockrule.Store against incoming requests.
type Mock struct {
	store *mockrule.Store
}

// New builds a Mock backed by store.
func New(store *mockrule.Store) *Mock {
	return &Mock{store: store}
}

// Match is the first matching rule, carried alongside its response so the
// pipeline can apply PreDelayMS before emitting it.
type Match struct {
	Rule     *mockrule.Rule
	Response httpmsg.Response
}

// FirstMatch scans enabled rules in priority order and returns the first
// one whose MatchSpec accepts method+url, or ok=false on a miss.
func (m *Mock) FirstMatch(method, url string) (Match, bool) {
	for _, rule := range m.store.ListSorted() {
		if rule.Matches(method, url) {
			return Match{Rule: rule, Response: rule.Response.Clone()}, true
		}
	}
	return Match{}, false
}

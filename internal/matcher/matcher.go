// Package matcher compiles and evaluates the URL/method/status predicates
// shared by every rule family. A MatchSpec is compiled once, at rule
// insert, into a Matcher; the hot request path only ever calls Matches.
package matcher

import (
	"regexp"
	"strings"

	"github.com/dev-console/proxyd/internal/ruleerr"
)

// Kind names how URLPattern is compared against the request URL.
type Kind string

const (
	Exact    Kind = "exact"
	Contains Kind = "contains"
	Prefix   Kind = "prefix"
	Suffix   Kind = "suffix"
	Regex    Kind = "regex"
)

// Spec is the common predicate shared by all rule families.
type Spec struct {
	// Method, when empty, matches any HTTP method.
	Method string
	URLPattern string
	Kind       Kind
}

// Matcher is a compiled Spec. It is immutable once built and safe for
// concurrent use by many readers.
type Matcher struct {
	spec     Spec
	method   string // uppercased, empty means "any"
	re       *regexp.Regexp
}

// Compile validates and compiles spec. A Regex kind with an invalid pattern
// fails with ruleerr.InvalidPattern; the caller must not insert the rule.
func Compile(spec Spec) (*Matcher, error) {
	m := &Matcher{
		spec:   spec,
		method: strings.ToUpper(spec.Method),
	}
	if spec.Kind == Regex {
		// Full-match semantics (spec): anchor so rule authors don't have to
		// remember to wrap their own pattern in ^...$.
		re, err := regexp.Compile(`\A(?:` + spec.URLPattern + `)\z`)
		if err != nil {
			return nil, ruleerr.Wrap(ruleerr.InvalidPattern, "invalid regex in match spec", err)
		}
		m.re = re
	}
	return m, nil
}

// Matches reports whether method+url satisfy the compiled spec.
func (m *Matcher) Matches(method, url string) bool {
	if m.method != "" && !strings.EqualFold(m.method, method) {
		return false
	}
	switch m.spec.Kind {
	case Exact:
		return url == m.spec.URLPattern
	case Contains:
		return strings.Contains(url, m.spec.URLPattern)
	case Prefix:
		return strings.HasPrefix(url, m.spec.URLPattern)
	case Suffix:
		return strings.HasSuffix(url, m.spec.URLPattern)
	case Regex:
		return m.re.MatchString(url)
	default:
		return false
	}
}

// Spec returns the underlying predicate the Matcher was compiled from.
func (m *Matcher) Spec() Spec { return m.spec }

// StatusAllowed reports whether status is permitted by an optional
// allow-list. A nil or empty list allows any status.
func StatusAllowed(status int, allowList []int) bool {
	if len(allowList) == 0 {
		return true
	}
	for _, s := range allowList {
		if s == status {
			return true
		}
	}
	return false
}

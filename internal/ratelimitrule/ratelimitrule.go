// Package ratelimitrule implements the RateLimitRule family (spec §3,
// §4.3): a MatchSpec, a key derivation strategy, a token-bucket Limit, and
// the response template served on denial.
package ratelimitrule

import (
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/dev-console/proxyd/internal/httpmsg"
	"github.com/dev-console/proxyd/internal/matcher"
	"github.com/dev-console/proxyd/internal/ruleerr"
	"github.com/dev-console/proxyd/internal/rulestore"
	"github.com/dev-console/proxyd/internal/util"
)

// KeyKind names how the rate-limit bucket key is derived from a request.
// Wire names follow spec §6: the literal strings "global"|"ipaddress", or
// an object-tagged {header:{name}} / {custom:{pattern}}.
type KeyKind string

const (
	KeyGlobal   KeyKind = "global"
	KeyClientIP KeyKind = "ipaddress"
	KeyHeader   KeyKind = "header"
	KeyCustom   KeyKind = "custom"
)

// KeyType is the closed union describing key derivation.
type KeyType struct {
	Kind          KeyKind
	HeaderName    string // set when Kind == KeyHeader
	CustomPattern string // set when Kind == KeyCustom
}

// Limit is the token-bucket configuration (spec §3 Bucket).
type Limit struct {
	MaxRequests   int
	WindowSeconds int
	BurstSize     int
}

// ResponseTemplate is served verbatim on denial.
type ResponseTemplate struct {
	Status  int
	Headers http.Header
	Body    string
	DelayMS int
}

// Rule is one rate-limit rule.
type Rule struct {
	rulestore.Base
	Spec      matcher.Spec
	Key       KeyType
	Limit     Limit
	Response  ResponseTemplate
	CreatedAt time.Time

	compiled *matcher.Matcher
}

// New validates spec and Limit, returning ruleerr.ValidationFailed when
// MaxRequests or WindowSeconds are non-positive (spec §4.2 failure
// taxonomy).
func New(id, name string, priority int, spec matcher.Spec, key KeyType, limit Limit, resp ResponseTemplate) (*Rule, error) {
	compiled, err := matcher.Compile(spec)
	if err != nil {
		return nil, err
	}
	if limit.MaxRequests <= 0 {
		return nil, ruleerr.New(ruleerr.ValidationFailed, "max_requests must be > 0")
	}
	if limit.WindowSeconds <= 0 {
		return nil, ruleerr.New(ruleerr.ValidationFailed, "window_seconds must be > 0")
	}
	if limit.BurstSize < 0 {
		return nil, ruleerr.New(ruleerr.ValidationFailed, "burst_size must be >= 0")
	}
	return &Rule{
		Base:      rulestore.Base{Id: id, Name: name, Enabled: true, Priority_: priority},
		Spec:      spec,
		Key:       key,
		Limit:     limit,
		Response:  resp,
		CreatedAt: time.Now(),
		compiled:  compiled,
	}, nil
}

// Matches reports whether this rule's MatchSpec accepts method+url.
func (r *Rule) Matches(method, url string) bool { return r.compiled.Matches(method, url) }

// customTokenRe finds {name} or {name:arg} placeholders.
var customTokenRe = regexp.MustCompile(`\{([a-zA-Z_]+)(?::([^}]*))?\}`)

// DeriveKey computes the bucket key for req under this rule's KeyType
// (spec §4.3). A missing header for Header kind yields "missing"; a
// custom pattern that cannot be fully resolved collapses to its own
// literal text rather than failing the request.
func (r *Rule) DeriveKey(req httpmsg.Request) string {
	switch r.Key.Kind {
	case KeyGlobal:
		return "global"
	case KeyClientIP:
		return req.ClientIP
	case KeyHeader:
		v := req.Headers.Get(r.Key.HeaderName)
		if v == "" {
			return "missing"
		}
		return v
	case KeyCustom:
		return renderCustomKey(r.Key.CustomPattern, req)
	default:
		return "global"
	}
}

func renderCustomKey(pattern string, req httpmsg.Request) string {
	ok := true
	rendered := customTokenRe.ReplaceAllStringFunc(pattern, func(token string) string {
		m := customTokenRe.FindStringSubmatch(token)
		switch m[1] {
		case "client_ip":
			return req.ClientIP
		case "method":
			return req.Method
		case "path":
			return util.ExtractURLPath(req.URL)
		case "header":
			return req.Headers.Get(m[2])
		default:
			ok = false
			return token
		}
	})
	if !ok {
		return pattern
	}
	return strings.TrimSpace(rendered)
}

// Store is the generic registry specialized for rate-limit rules.
type Store = rulestore.Store[*Rule]

// NewStore constructs an empty rate-limit rule store.
func NewStore() *Store { return rulestore.New[*Rule]() }

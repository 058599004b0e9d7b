// wire.go — JSON wire shapes for the control-plane REST surface (spec §6)
// and their conversion to/from the internal rule-family types. Field
// names are snake_case on the wire per spec; internal Go types stay
// idiomatic Go.
package controlplane

import (
	"github.com/bytedance/sonic"

	"github.com/dev-console/proxyd/internal/httpmsg"
	"github.com/dev-console/proxyd/internal/latencyrule"
	"github.com/dev-console/proxyd/internal/matcher"
	"github.com/dev-console/proxyd/internal/modifierrule"
	"github.com/dev-console/proxyd/internal/mockrule"
	"github.com/dev-console/proxyd/internal/ratelimitrule"
	"github.com/dev-console/proxyd/internal/ruleerr"
)

// matchSpecWire is the wire shape of a MatchSpec.
type matchSpecWire struct {
	Method      string `json:"method,omitempty"`
	URLPattern  string `json:"url_pattern"`
	URLMatchType string `json:"url_match_type"`
}

var wireToKind = map[string]matcher.Kind{
	"exact":      matcher.Exact,
	"contains":   matcher.Contains,
	"startswith": matcher.Prefix,
	"endswith":   matcher.Suffix,
	"regex":      matcher.Regex,
}

var kindToWire = map[matcher.Kind]string{
	matcher.Exact:    "exact",
	matcher.Contains: "contains",
	matcher.Prefix:   "startswith",
	matcher.Suffix:   "endswith",
	matcher.Regex:    "regex",
}

func (w matchSpecWire) toSpec() (matcher.Spec, error) {
	kind, ok := wireToKind[w.URLMatchType]
	if !ok {
		return matcher.Spec{}, ruleerr.New(ruleerr.ValidationFailed, "unknown url_match_type: "+w.URLMatchType)
	}
	return matcher.Spec{Method: w.Method, URLPattern: w.URLPattern, Kind: kind}, nil
}

func fromSpec(s matcher.Spec) matchSpecWire {
	return matchSpecWire{Method: s.Method, URLPattern: s.URLPattern, URLMatchType: kindToWire[s.Kind]}
}

// responseWire is the wire shape of a synthetic response (mock body,
// rate-limit template).
type responseWire struct {
	Status  int                 `json:"status"`
	Headers map[string][]string `json:"headers,omitempty"`
	Body    string              `json:"body,omitempty"`
	DelayMS int                 `json:"delay_ms,omitempty"`
}

// mockRuleWire is the POST/PUT body and GET representation of a MockRule.
type mockRuleWire struct {
	ID         string        `json:"id,omitempty"`
	Name       string        `json:"name,omitempty"`
	Priority   int           `json:"priority"`
	Enabled    bool          `json:"enabled"`
	MatchSpec  matchSpecWire `json:"match_spec"`
	Response   responseWire  `json:"response"`
	PreDelayMS int           `json:"pre_delay_ms,omitempty"`
}

func mockRuleToWire(r *mockrule.Rule) mockRuleWire {
	return mockRuleWire{
		ID: r.ID(), Name: r.Name, Priority: r.Priority(), Enabled: r.IsEnabled(),
		MatchSpec: fromSpec(r.Spec),
		Response: responseWire{
			Status: r.Response.Status, Headers: map[string][]string(r.Response.Headers),
			Body: string(r.Response.Body),
		},
		PreDelayMS: r.PreDelayMS,
	}
}

func (w mockRuleWire) toRule(id string) (*mockrule.Rule, error) {
	spec, err := w.MatchSpec.toSpec()
	if err != nil {
		return nil, err
	}
	resp := httpmsg.Response{Status: w.Response.Status, Headers: w.Response.Headers, Body: []byte(w.Response.Body)}
	return mockrule.New(id, w.Name, w.Priority, spec, resp, w.PreDelayMS)
}

// modificationWire is the wire shape of one Modification step.
type modificationWire struct {
	Kind        string `json:"kind"`
	Pattern     string `json:"pattern,omitempty"`
	Replacement string `json:"replacement,omitempty"`
	UseRegex    bool   `json:"use_regex,omitempty"`
	HeaderName  string `json:"header_name,omitempty"`
	HeaderValue string `json:"header_value,omitempty"`
	NewStatus   int    `json:"new_status,omitempty"`
	DelayMS     int    `json:"delay_ms,omitempty"`
	JSONPath    string `json:"json_path,omitempty"`
	JSONValue   any    `json:"json_value,omitempty"`
}

var modKindWire = map[modifierrule.Kind]string{
	modifierrule.ReplaceBody:  "replace_body",
	modifierrule.AddHeader:    "add_header",
	modifierrule.RemoveHeader: "remove_header",
	modifierrule.ChangeStatus: "change_status",
	modifierrule.InjectDelay:  "inject_delay",
	modifierrule.ModifyJSON:   "modify_json",
}

var wireModKind = map[string]modifierrule.Kind{
	"replace_body":  modifierrule.ReplaceBody,
	"add_header":    modifierrule.AddHeader,
	"remove_header": modifierrule.RemoveHeader,
	"change_status": modifierrule.ChangeStatus,
	"inject_delay":  modifierrule.InjectDelay,
	"modify_json":   modifierrule.ModifyJSON,
}

func (w modificationWire) toModification() (modifierrule.Modification, error) {
	kind, ok := wireModKind[w.Kind]
	if !ok {
		return modifierrule.Modification{}, ruleerr.New(ruleerr.ValidationFailed, "unknown modification kind: "+w.Kind)
	}
	return modifierrule.Modification{
		Kind: kind, Pattern: w.Pattern, Replacement: w.Replacement, UseRegex: w.UseRegex,
		HeaderName: w.HeaderName, HeaderValue: w.HeaderValue, NewStatus: w.NewStatus,
		DelayMS: w.DelayMS, JSONPath: w.JSONPath, JSONValue: w.JSONValue,
	}, nil
}

func modificationToWire(m modifierrule.Modification) modificationWire {
	return modificationWire{
		Kind: modKindWire[m.Kind], Pattern: m.Pattern, Replacement: m.Replacement, UseRegex: m.UseRegex,
		HeaderName: m.HeaderName, HeaderValue: m.HeaderValue, NewStatus: m.NewStatus,
		DelayMS: m.DelayMS, JSONPath: m.JSONPath, JSONValue: m.JSONValue,
	}
}

// modifierRuleWire is the POST/PUT body and GET representation of a
// ModifierRule.
type modifierRuleWire struct {
	ID              string             `json:"id,omitempty"`
	Name            string             `json:"name,omitempty"`
	Priority        int                `json:"priority"`
	Enabled         bool               `json:"enabled"`
	MatchSpec       matchSpecWire      `json:"match_spec"`
	StatusAllowList []int              `json:"status_allow_list,omitempty"`
	Modifications   []modificationWire `json:"modifications"`
}

func modifierRuleToWire(r *modifierrule.Rule) modifierRuleWire {
	mods := make([]modificationWire, len(r.Modifications))
	for i, m := range r.Modifications {
		mods[i] = modificationToWire(m)
	}
	return modifierRuleWire{
		ID: r.ID(), Name: r.Name, Priority: r.Priority(), Enabled: r.IsEnabled(),
		MatchSpec: fromSpec(r.Spec), StatusAllowList: r.StatusAllowList, Modifications: mods,
	}
}

func (w modifierRuleWire) toRule(id string) (*modifierrule.Rule, error) {
	spec, err := w.MatchSpec.toSpec()
	if err != nil {
		return nil, err
	}
	mods := make([]modifierrule.Modification, len(w.Modifications))
	for i, mw := range w.Modifications {
		m, err := mw.toModification()
		if err != nil {
			return nil, err
		}
		mods[i] = m
	}
	return modifierrule.New(id, w.Name, w.Priority, spec, w.StatusAllowList, mods)
}

// keyTypeWire is the tagged-union wire shape: "global"|"ipaddress", or
// {header:{name}} / {custom:{pattern}}.
type keyTypeWire struct {
	raw any
}

func (k *keyTypeWire) UnmarshalJSON(b []byte) error {
	var s string
	if err := sonic.Unmarshal(b, &s); err == nil {
		k.raw = s
		return nil
	}
	var obj map[string]map[string]string
	if err := sonic.Unmarshal(b, &obj); err != nil {
		return err
	}
	k.raw = obj
	return nil
}

func (k keyTypeWire) MarshalJSON() ([]byte, error) {
	return sonic.Marshal(k.raw)
}

func (k keyTypeWire) toKeyType() (ratelimitrule.KeyType, error) {
	switch v := k.raw.(type) {
	case string:
		switch v {
		case "global":
			return ratelimitrule.KeyType{Kind: ratelimitrule.KeyGlobal}, nil
		case "ipaddress":
			return ratelimitrule.KeyType{Kind: ratelimitrule.KeyClientIP}, nil
		}
	case map[string]map[string]string:
		if h, ok := v["header"]; ok {
			return ratelimitrule.KeyType{Kind: ratelimitrule.KeyHeader, HeaderName: h["name"]}, nil
		}
		if c, ok := v["custom"]; ok {
			return ratelimitrule.KeyType{Kind: ratelimitrule.KeyCustom, CustomPattern: c["pattern"]}, nil
		}
	}
	return ratelimitrule.KeyType{}, ruleerr.New(ruleerr.ValidationFailed, "invalid key_type")
}

func keyTypeToWire(k ratelimitrule.KeyType) keyTypeWire {
	switch k.Kind {
	case ratelimitrule.KeyGlobal:
		return keyTypeWire{raw: "global"}
	case ratelimitrule.KeyClientIP:
		return keyTypeWire{raw: "ipaddress"}
	case ratelimitrule.KeyHeader:
		return keyTypeWire{raw: map[string]map[string]string{"header": {"name": k.HeaderName}}}
	case ratelimitrule.KeyCustom:
		return keyTypeWire{raw: map[string]map[string]string{"custom": {"pattern": k.CustomPattern}}}
	default:
		return keyTypeWire{raw: "global"}
	}
}

// rateLimitRuleWire is the POST/PUT body and GET representation of a
// RateLimitRule.
type rateLimitRuleWire struct {
	ID            string        `json:"id,omitempty"`
	Name          string        `json:"name,omitempty"`
	Priority      int           `json:"priority"`
	Enabled       bool          `json:"enabled"`
	MatchSpec     matchSpecWire `json:"match_spec"`
	KeyType       keyTypeWire   `json:"key_type"`
	MaxRequests   int           `json:"max_requests"`
	WindowSeconds int           `json:"window_seconds"`
	BurstSize     int           `json:"burst_size,omitempty"`
	Response      responseWire  `json:"response"`
}

func rateLimitRuleToWire(r *ratelimitrule.Rule) rateLimitRuleWire {
	return rateLimitRuleWire{
		ID: r.ID(), Name: r.Name, Priority: r.Priority(), Enabled: r.IsEnabled(),
		MatchSpec: fromSpec(r.Spec), KeyType: keyTypeToWire(r.Key),
		MaxRequests: r.Limit.MaxRequests, WindowSeconds: r.Limit.WindowSeconds, BurstSize: r.Limit.BurstSize,
		Response: responseWire{
			Status: r.Response.Status, Headers: map[string][]string(r.Response.Headers),
			Body: r.Response.Body, DelayMS: r.Response.DelayMS,
		},
	}
}

func (w rateLimitRuleWire) toRule(id string) (*ratelimitrule.Rule, error) {
	spec, err := w.MatchSpec.toSpec()
	if err != nil {
		return nil, err
	}
	key, err := w.KeyType.toKeyType()
	if err != nil {
		return nil, err
	}
	limit := ratelimitrule.Limit{MaxRequests: w.MaxRequests, WindowSeconds: w.WindowSeconds, BurstSize: w.BurstSize}
	resp := ratelimitrule.ResponseTemplate{
		Status: w.Response.Status, Headers: w.Response.Headers, Body: w.Response.Body, DelayMS: w.Response.DelayMS,
	}
	return ratelimitrule.New(id, w.Name, w.Priority, spec, key, limit, resp)
}

// delayConfigWire is the tagged DelayConfig wire shape.
type delayConfigWire struct {
	Type        string  `json:"type"`
	DelayMS     int     `json:"delay_ms,omitempty"`
	MinMS       int     `json:"min_ms,omitempty"`
	MaxMS       int     `json:"max_ms,omitempty"`
	MeanMS      float64 `json:"mean_ms,omitempty"`
	StdDevMS    float64 `json:"std_dev_ms,omitempty"`
	BaseMS      int     `json:"base_ms,omitempty"`
	SpikeMS     int     `json:"spike_ms,omitempty"`
	Probability float64 `json:"probability,omitempty"`
}

var delayKindWire = map[latencyrule.DelayKind]string{
	latencyrule.Fixed:  "fixed",
	latencyrule.Random: "random",
	latencyrule.Normal: "normal",
	latencyrule.Spike:  "spike",
}

var wireDelayKind = map[string]latencyrule.DelayKind{
	"fixed": latencyrule.Fixed, "random": latencyrule.Random,
	"normal": latencyrule.Normal, "spike": latencyrule.Spike,
}

func (w delayConfigWire) toDelayConfig() (latencyrule.DelayConfig, error) {
	kind, ok := wireDelayKind[w.Type]
	if !ok {
		return latencyrule.DelayConfig{}, ruleerr.New(ruleerr.ValidationFailed, "unknown delay type: "+w.Type)
	}
	return latencyrule.DelayConfig{
		Kind: kind, DelayMS: w.DelayMS, MinMS: w.MinMS, MaxMS: w.MaxMS,
		MeanMS: w.MeanMS, StdDevMS: w.StdDevMS, BaseMS: w.BaseMS, SpikeMS: w.SpikeMS, Probability: w.Probability,
	}, nil
}

func delayConfigToWire(d latencyrule.DelayConfig) delayConfigWire {
	return delayConfigWire{
		Type: delayKindWire[d.Kind], DelayMS: d.DelayMS, MinMS: d.MinMS, MaxMS: d.MaxMS,
		MeanMS: d.MeanMS, StdDevMS: d.StdDevMS, BaseMS: d.BaseMS, SpikeMS: d.SpikeMS, Probability: d.Probability,
	}
}

// latencyRuleWire is the POST/PUT body and GET representation of a
// LatencyRule.
type latencyRuleWire struct {
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Priority  int             `json:"priority"`
	Enabled   bool            `json:"enabled"`
	MatchSpec matchSpecWire   `json:"match_spec"`
	ApplyTo   string          `json:"apply_to"`
	Delay     delayConfigWire `json:"delay"`
}

func latencyRuleToWire(r *latencyrule.Rule) latencyRuleWire {
	return latencyRuleWire{
		ID: r.ID(), Name: r.Name, Priority: r.Priority(), Enabled: r.IsEnabled(),
		MatchSpec: fromSpec(r.Spec), ApplyTo: string(r.ApplyTo), Delay: delayConfigToWire(r.Delay),
	}
}

func (w latencyRuleWire) toRule(id string) (*latencyrule.Rule, error) {
	spec, err := w.MatchSpec.toSpec()
	if err != nil {
		return nil, err
	}
	delay, err := w.Delay.toDelayConfig()
	if err != nil {
		return nil, err
	}
	return latencyrule.New(id, w.Name, w.Priority, spec, latencyrule.Direction(w.ApplyTo), delay)
}

// exchangeWire is the GET /api/recordings representation of an Exchange.
type exchangeWire struct {
	ID              string              `json:"id"`
	StartedAt       string              `json:"started_at"`
	Method          string              `json:"method"`
	URL             string              `json:"url"`
	RequestHeaders  map[string][]string `json:"request_headers,omitempty"`
	RequestBody     string              `json:"request_body,omitempty"`
	HasResponse     bool                `json:"has_response"`
	Status          int                 `json:"status,omitempty"`
	ResponseHeaders map[string][]string `json:"response_headers,omitempty"`
	ResponseBody    string              `json:"response_body,omitempty"`
	DurationMS      int64               `json:"duration_ms"`
	Synthetic       bool                `json:"synthetic,omitempty"`
}

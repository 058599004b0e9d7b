// Package modifier implements the Modifier component (spec §4.5): ordered
// response transformations, applied with dynamic status propagation so a
// change-status modification affects which later rules' status allow-list
// admits them, exactly as spec'd.
package modifier

import (
	"context"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/dev-console/proxyd/internal/httpmsg"
	"github.com/dev-console/proxyd/internal/matcher"
	"github.com/dev-console/proxyd/internal/modifierrule"
	"github.com/dev-console/proxyd/internal/ruleerr"
	"github.com/dev-console/proxyd/internal/util"
)

// Modifier applies a modifierrule.Store's rules to upstream responses.
type Modifier struct {
	store   *modifierrule.Store
	logger  *zap.Logger
	skipped atomic.Uint64
}

// New builds a Modifier backed by store. logger may be nil, in which case
// a no-op logger is used.
func New(store *modifierrule.Store, logger *zap.Logger) *Modifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Modifier{store: store, logger: logger}
}

// Apply runs every matching rule's modifications over resp in priority
// order, returning the transformed response. The only error it can return
// is context cancellation during an inject-delay pause (spec §7:
// cancellation is propagated, not wrapped); every other per-modification
// failure is logged and skipped, leaving the response in a consistent
// state (spec §4.5 Failure).
func (m *Modifier) Apply(ctx context.Context, method, url string, status int, resp httpmsg.Response) (httpmsg.Response, error) {
	current := resp.Clone()
	currentStatus := status

	for _, rule := range m.store.ListSorted() {
		if !rule.MatchesRoute(method, url) {
			continue
		}
		if !matcher.StatusAllowed(currentStatus, rule.StatusAllowList) {
			continue
		}
		for i := range rule.Modifications {
			newStatus, cancelled := m.applyOne(ctx, &rule.Modifications[i], &current, currentStatus)
			if cancelled {
				return current, ruleerr.New(ruleerr.Cancelled, "modifier inject-delay cancelled")
			}
			currentStatus = newStatus
		}
	}
	current.Status = currentStatus
	return current, nil
}

// applyOne applies a single modification, recovering from any panic in
// user-supplied rule data (e.g. a regex that compiled fine but explodes on
// a pathological body). It returns the status to carry forward and
// whether the caller's context was cancelled mid-delay.
func (m *Modifier) applyOne(ctx context.Context, mod *modifierrule.Modification, resp *httpmsg.Response, status int) (newStatus int, cancelled bool) {
	newStatus = status
	defer func() {
		if r := recover(); r != nil {
			m.skipped.Add(1)
			m.logger.Warn("modifier rule panicked, skipping modification",
				zap.Any("panic", r), zap.String("kind", string(mod.Kind)))
		}
	}()

	switch mod.Kind {
	case modifierrule.ReplaceBody:
		replaceBody(mod, resp)
	case modifierrule.AddHeader:
		resp.Headers.Add(mod.HeaderName, mod.HeaderValue)
	case modifierrule.RemoveHeader:
		resp.Headers.Del(mod.HeaderName)
	case modifierrule.ChangeStatus:
		newStatus = mod.NewStatus
	case modifierrule.InjectDelay:
		if !util.SleepCancellable(ctx, time.Duration(mod.DelayMS)*time.Millisecond) {
			cancelled = true
		}
	case modifierrule.ModifyJSON:
		if err := setJSONField(resp, mod.JSONPath, mod.JSONValue); err != nil {
			m.logger.Debug("modify-json no-op", zap.Error(err), zap.String("path", mod.JSONPath))
		}
	}
	return newStatus, cancelled
}

// replaceBody performs the body/regex or literal substring replace-all.
// Non-UTF-8 bodies are passed through unchanged (spec §4.5).
func replaceBody(mod *modifierrule.Modification, resp *httpmsg.Response) {
	if !utf8.Valid(resp.Body) {
		return
	}
	text := string(resp.Body)
	if mod.UseRegex {
		if re := mod.CompiledRegex(); re != nil {
			text = re.ReplaceAllString(text, mod.Replacement)
		}
	} else {
		text = strings.ReplaceAll(text, mod.Pattern, mod.Replacement)
	}
	resp.Body = []byte(text)
}

// setJSONField walks a dotted path into the response body (parsed as a
// JSON object), creating intermediate objects as needed, and sets the
// leaf to value. A non-JSON or non-object body is a documented no-op.
func setJSONField(resp *httpmsg.Response, path string, value any) error {
	var doc map[string]any
	if err := sonic.Unmarshal(resp.Body, &doc); err != nil {
		return err
	}
	segments := strings.Split(path, ".")
	cursor := doc
	for _, seg := range segments[:len(segments)-1] {
		next, ok := cursor[seg].(map[string]any)
		if !ok {
			next = make(map[string]any)
			cursor[seg] = next
		}
		cursor = next
	}
	cursor[segments[len(segments)-1]] = value

	out, err := sonic.Marshal(doc)
	if err != nil {
		return err
	}
	resp.Body = out
	return nil
}

// SkippedCount reports how many modifications were skipped due to a panic,
// for the /metrics surface.
func (m *Modifier) SkippedCount() uint64 { return m.skipped.Load() }

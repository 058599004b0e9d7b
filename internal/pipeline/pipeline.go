// Package pipeline orchestrates one request through every policy stage
// (spec §4.8): rate-limit gate, request-side latency, mock short-circuit,
// upstream proxying, response modification, response-side latency, and
// recording. State machine: Admitted → RequestDelayed →
// {Mocked | Forwarded → Modified} → ResponseDelayed → Recorded, with the
// rate-limit gate, checked before any other stage, able to short-circuit
// into Rejected.
package pipeline

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/dev-console/proxyd/internal/httpmsg"
	"github.com/dev-console/proxyd/internal/latency"
	"github.com/dev-console/proxyd/internal/latencyrule"
	"github.com/dev-console/proxyd/internal/metrics"
	"github.com/dev-console/proxyd/internal/mock"
	"github.com/dev-console/proxyd/internal/modifier"
	"github.com/dev-console/proxyd/internal/ratelimiter"
	"github.com/dev-console/proxyd/internal/recorder"
	"github.com/dev-console/proxyd/internal/upstream"
	"github.com/dev-console/proxyd/internal/util"
)

// Pipeline wires every policy component into one per-request orchestrator.
type Pipeline struct {
	rateLimiter *ratelimiter.RateLimiter
	latency     *latency.Injector
	mock        *mock.Mock
	modifier    *modifier.Modifier
	upstream    upstream.Upstream
	recorder    *recorder.Recorder
	logger      *zap.Logger
	metrics     *metrics.Metrics
}

// New builds a Pipeline from its collaborators. logger may be nil; metrics
// are attached separately with WithMetrics.
func New(rl *ratelimiter.RateLimiter, inj *latency.Injector, m *mock.Mock, mod *modifier.Modifier, up upstream.Upstream, rec *recorder.Recorder, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{rateLimiter: rl, latency: inj, mock: m, modifier: mod, upstream: up, recorder: rec, logger: logger}
}

// WithMetrics attaches a Metrics handle that Handle will feed on every
// call. Returns p for chaining at construction time.
func (p *Pipeline) WithMetrics(m *metrics.Metrics) *Pipeline {
	p.metrics = m
	return p
}

// Handle runs req through the full pipeline, always recording an exchange
// (even a partial one on cancellation — spec §5) and returning the
// response to write back to the client.
func (p *Pipeline) Handle(ctx context.Context, req httpmsg.Request) httpmsg.Response {
	t0 := time.Now()
	exchange := &recorder.Exchange{
		ID:             recorder.NewID(),
		StartedAt:      t0,
		Method:         req.Method,
		URL:            req.URL,
		RequestHeaders: req.Headers,
		RequestBody:    req.Body,
	}

	resp, synthetic, err := p.run(ctx, req)

	exchange.DurationMS = time.Since(t0).Milliseconds()
	if p.metrics != nil {
		p.metrics.PipelineDuration.Observe(time.Since(t0).Seconds())
	}
	if err != nil {
		// Cancellation: record what we have, with no response (spec §5).
		p.recorder.Append(exchange)
		return httpmsg.Response{}
	}

	exchange.HasResponse = true
	exchange.Status = resp.Status
	exchange.ResponseHeaders = resp.Headers
	exchange.ResponseBody = resp.Body
	exchange.Synthetic = synthetic
	p.recorder.Append(exchange)
	if p.metrics != nil {
		p.metrics.RequestsTotal.WithLabelValues(req.Method, strconv.Itoa(resp.Status)).Inc()
		if synthetic {
			p.metrics.MockHits.Inc()
		}
	}
	return resp
}

// run executes the Admitted/RequestDelayed/Mocked|Forwarded+Modified/
// ResponseDelayed stages, returning ctx.Err() if cancelled during any
// suspension.
func (p *Pipeline) run(ctx context.Context, req httpmsg.Request) (httpmsg.Response, bool, error) {
	if decision, matched := p.rateLimiter.Check(ctx, req); matched && !decision.Admitted {
		if p.metrics != nil {
			p.metrics.RateLimitDenials.WithLabelValues(decision.Rule.ID()).Inc()
		}
		if !util.SleepCancellable(ctx, time.Duration(decision.DelayMS)*time.Millisecond) {
			return httpmsg.Response{}, false, ctx.Err()
		}
		return decision.Response, false, nil
	}

	if _, err := p.latency.Sample(ctx, req.Method, req.URL, latencyrule.Request); err != nil {
		return httpmsg.Response{}, false, err
	}

	if match, ok := p.mock.FirstMatch(req.Method, req.URL); ok {
		if !util.SleepCancellable(ctx, time.Duration(match.Rule.PreDelayMS)*time.Millisecond) {
			return httpmsg.Response{}, false, ctx.Err()
		}
		if _, err := p.latency.Sample(ctx, req.Method, req.URL, latencyrule.Response); err != nil {
			return httpmsg.Response{}, false, err
		}
		return match.Response, true, nil
	}

	resp := p.upstream.Forward(ctx, req)
	modified, err := p.modifier.Apply(ctx, req.Method, req.URL, resp.Status, resp)
	if err != nil {
		return httpmsg.Response{}, false, err
	}

	if _, err := p.latency.Sample(ctx, req.Method, req.URL, latencyrule.Response); err != nil {
		return httpmsg.Response{}, false, err
	}
	return modified, false, nil
}

// Replay re-issues the request captured by an existing exchange and
// records the result as a new exchange (spec §6 POST
// /api/recordings/{id}/replay). Replays are subject to the same rate
// limits as any other request (spec §9 default).
func (p *Pipeline) Replay(ctx context.Context, e *recorder.Exchange) httpmsg.Response {
	req := httpmsg.Request{
		Method:  e.Method,
		URL:     e.URL,
		Headers: e.RequestHeaders,
		Body:    e.RequestBody,
	}
	return p.Handle(ctx, req)
}

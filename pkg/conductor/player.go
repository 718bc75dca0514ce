package conductor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/virtuoso/pkg/assertion"
	"github.com/aretw0/virtuoso/pkg/domain"
	"github.com/aretw0/virtuoso/pkg/matcher"
	"github.com/aretw0/virtuoso/pkg/ports"
)

// player executes the stanzas of one account.
type player struct {
	run     *Run
	account domain.AccountReference
	sub     ports.Subscription

	// inbound messages not consumed by a cue, oldest first
	backlog []string
	// last cue match, or else the latest inbound message
	capture    string
	hasCapture bool
	cueMatched bool
}

func (p *player) play(stanzas []domain.Stanza) {
	defer p.sub.Close()

	c := p.run.conductor
	ctx := p.run.ctx
	aborted := false

	for _, st := range stanzas {
		if ctx.Err() != nil {
			// Sealing fills in the rest.
			return
		}
		if aborted {
			p.report(st, domain.StanzaResult{
				StanzaID: st.ID,
				Status:   domain.ResultSkipped,
				Error:    &domain.StanzaError{Message: "skipped after an earlier error on " + p.account.Alias},
			})
			continue
		}

		p.run.agg.Begin(st.ID)
		if c.hooks.OnStanzaStart != nil {
			c.hooks.OnStanzaStart(ctx, &domain.StanzaEvent{
				Timestamp:     c.now(),
				PerformanceID: p.run.ID(),
				Account:       p.account.Alias,
				Stanza:        st,
			})
		}

		start := c.now()
		res := p.execute(ctx, st)
		res.StanzaID = st.ID
		if res.Status == domain.ResultPassed && len(st.Assertions) > 0 {
			p.checkAttached(st, &res)
		}
		res.Duration = c.now().Sub(start).Milliseconds()

		if res.Error != nil && res.Error.Kind == domain.ErrorKindCancelled {
			// Left in flight so the seal marks it cancelled.
			return
		}
		p.report(st, res)
		if res.Status == domain.ResultError {
			aborted = true
		}
	}
}

func (p *player) report(st domain.Stanza, res domain.StanzaResult) {
	c := p.run.conductor
	if err := p.run.agg.Record(res); err != nil {
		return
	}

	log := c.logger.With(
		"performance_id", p.run.ID(),
		"account", p.account.Alias,
		"stanza_id", st.ID,
		"type", st.Type,
		"status", res.Status,
	)
	if res.Error != nil {
		log.Warn("stanza finished", "err", res.Error)
	} else {
		log.Debug("stanza finished")
	}

	if c.hooks.OnStanzaResult != nil {
		r := res
		c.hooks.OnStanzaResult(p.run.ctx, &domain.StanzaEvent{
			Timestamp:     c.now(),
			PerformanceID: p.run.ID(),
			Account:       p.account.Alias,
			Stanza:        st,
			Result:        &r,
		})
	}
}

func (p *player) execute(ctx context.Context, st domain.Stanza) domain.StanzaResult {
	switch data := st.Data.(type) {
	case domain.ConnectData:
		return p.connect(ctx)
	case domain.DisconnectData:
		return p.disconnect(ctx)
	case domain.SendData:
		return p.send(ctx, data)
	case domain.CueData:
		return p.cue(ctx, data)
	case domain.AssertData:
		return p.assert(st, data)
	default:
		return errorResult(domain.ErrorKindConnection, "unsupported stanza", fmt.Sprintf("%T", st.Data))
	}
}

func (p *player) connect(ctx context.Context) domain.StanzaResult {
	c := p.run.conductor
	if err := c.manager.Open(ctx, p.account); err != nil {
		if ctx.Err() != nil {
			return cancelled()
		}
		return errorResult(domain.ErrorKindConnection, "failed to open connection", err.Error())
	}

	waitCtx, cancel := context.WithTimeout(ctx, c.connectTimeout)
	defer cancel()

	for {
		if c.manager.Status(p.account) == domain.StatusConnected {
			p.drainStatus()
			return domain.StanzaResult{Status: domain.ResultPassed}
		}

		ev, err := p.sub.Next(waitCtx)
		if err != nil {
			switch {
			case ctx.Err() != nil:
				return cancelled()
			case errors.Is(err, context.DeadlineExceeded):
				return errorResult(domain.ErrorKindConnection, "connect timed out",
					fmt.Sprintf("no connected status within %s", c.connectTimeout))
			default:
				return errorResult(domain.ErrorKindConnection, "event stream closed", err.Error())
			}
		}

		switch ev.Kind {
		case domain.EventMessage:
			p.observe(ev.Payload)
		case domain.EventStatus:
			switch ev.Status {
			case domain.StatusConnected:
				return domain.StanzaResult{Status: domain.ResultPassed}
			case domain.StatusError:
				return errorResult(domain.ErrorKindConnection, "connection failed", ev.Error)
			}
		}
	}
}

// drainStatus consumes events already queued without blocking, keeping messages.
func (p *player) drainStatus() {
	for {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		ev, err := p.sub.Next(ctx)
		if err != nil {
			return
		}
		if ev.Kind == domain.EventMessage {
			p.observe(ev.Payload)
		}
	}
}

func (p *player) disconnect(ctx context.Context) domain.StanzaResult {
	if err := p.run.conductor.manager.Close(ctx, p.account); err != nil {
		if ctx.Err() != nil {
			return cancelled()
		}
		return errorResult(domain.ErrorKindConnection, "failed to close connection", err.Error())
	}
	return domain.StanzaResult{Status: domain.ResultPassed}
}

func (p *player) send(ctx context.Context, data domain.SendData) domain.StanzaResult {
	c := p.run.conductor
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return cancelled()
		}
	}

	if err := c.manager.Send(ctx, p.account, data.XML); err != nil {
		if ctx.Err() != nil {
			return cancelled()
		}
		msg := "failed to send"
		if errors.Is(err, domain.ErrNotConnected) {
			msg = "account is not connected"
		}
		res := errorResult(domain.ErrorKindConnection, msg, err.Error())
		res.SentXML = data.XML
		return res
	}
	return domain.StanzaResult{Status: domain.ResultPassed, SentXML: data.XML}
}

func (p *player) cue(ctx context.Context, data domain.CueData) domain.StanzaResult {
	m, err := matcher.Cue(data)
	if err != nil {
		// Validation rejects this before a run starts.
		return errorResult(domain.ErrorKindConnection, "invalid cue", err.Error())
	}
	accept := func(payload string) bool {
		if data.CorrelatedID != "" {
			if id, ok := matcher.ExtractID(payload); !ok || id != data.CorrelatedID {
				return false
			}
		}
		return m.Match(payload).Matched
	}

	for i, payload := range p.backlog {
		if accept(payload) {
			p.backlog = append(p.backlog[:i], p.backlog[i+1:]...)
			return p.matched(payload)
		}
	}

	timeout := time.Duration(data.Timeout) * time.Millisecond
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for {
		ev, err := p.sub.Next(waitCtx)
		if err != nil {
			switch {
			case ctx.Err() != nil:
				return cancelled()
			case errors.Is(err, context.DeadlineExceeded):
				return domain.StanzaResult{
					Status: domain.ResultFailed,
					Error: &domain.StanzaError{
						Kind:    domain.ErrorKindTimeout,
						Message: fmt.Sprintf("no matching message within %dms", data.Timeout),
						Details: string(data.MatchType) + ": " + data.MatchExpression,
					},
				}
			default:
				return errorResult(domain.ErrorKindConnection, "event stream closed", err.Error())
			}
		}
		if ev.Kind != domain.EventMessage {
			continue
		}
		if accept(ev.Payload) {
			p.latest(ev.Payload)
			return p.matched(ev.Payload)
		}
		p.observe(ev.Payload)
	}
}

func (p *player) matched(payload string) domain.StanzaResult {
	p.capture = payload
	p.hasCapture = true
	p.cueMatched = true
	return domain.StanzaResult{Status: domain.ResultPassed, ReceivedXML: payload}
}

func (p *player) assert(st domain.Stanza, data domain.AssertData) domain.StanzaResult {
	a := assertion.FromAssertData(st, data)
	if !p.hasCapture {
		return domain.StanzaResult{
			Status: domain.ResultFailed,
			AssertionResults: []domain.AssertionResult{{
				AssertionID: a.ID,
				Expected:    data.Expected,
				Error:       "no captured message to assert on",
			}},
			Error: &domain.StanzaError{Kind: domain.ErrorKindAssertion, Message: "no captured message to assert on"},
		}
	}

	result := assertion.Evaluate(a, p.capture)
	res := domain.StanzaResult{
		Status:           domain.ResultPassed,
		ReceivedXML:      p.capture,
		AssertionResults: []domain.AssertionResult{result},
	}
	if !result.Passed {
		res.Status = domain.ResultFailed
		res.Error = assertionError(result)
	}
	return res
}

// checkAttached evaluates st.Assertions against the stanza's context value.
func (p *player) checkAttached(st domain.Stanza, res *domain.StanzaResult) {
	var subject string
	switch st.Type {
	case domain.StanzaCue:
		subject = res.ReceivedXML
	case domain.StanzaSend:
		subject = res.SentXML
	default:
		subject = p.capture
	}

	var failed []domain.AssertionResult
	for _, a := range st.Assertions {
		r := assertion.Evaluate(a, subject)
		res.AssertionResults = append(res.AssertionResults, r)
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	if len(failed) > 0 {
		res.Status = domain.ResultFailed
		res.Error = assertionError(failed...)
		res.Error.Message = fmt.Sprintf("%d of %d assertions failed", len(failed), len(st.Assertions))
	}
}

// observe buffers an unconsumed message and makes it the latest capture
// unless a cue already matched.
func (p *player) observe(payload string) {
	p.backlog = append(p.backlog, payload)
	p.latest(payload)
}

func (p *player) latest(payload string) {
	if !p.cueMatched {
		p.capture = payload
		p.hasCapture = true
	}
}

func assertionError(results ...domain.AssertionResult) *domain.StanzaError {
	first := results[0]
	details := fmt.Sprintf("expected %v, got %q", first.Expected, first.Actual)
	if first.Error != "" {
		details = first.Error
	}
	return &domain.StanzaError{Kind: domain.ErrorKindAssertion, Message: "assertion failed", Details: details}
}

func errorResult(kind domain.ErrorKind, msg, details string) domain.StanzaResult {
	return domain.StanzaResult{
		Status: domain.ResultError,
		Error:  &domain.StanzaError{Kind: kind, Message: msg, Details: details},
	}
}

func cancelled() domain.StanzaResult {
	return domain.StanzaResult{
		Status: domain.ResultSkipped,
		Error:  &domain.StanzaError{Kind: domain.ErrorKindCancelled, Message: "interrupted by stop"},
	}
}

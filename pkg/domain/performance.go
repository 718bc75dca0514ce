package domain

import "time"

// PerformanceStatus is the overall verdict of a playback run.
type PerformanceStatus string

const (
	PerformanceRunning PerformanceStatus = "running"
	PerformancePassed  PerformanceStatus = "passed"
	PerformanceFailed  PerformanceStatus = "failed"
	PerformanceError   PerformanceStatus = "error"
	PerformanceStopped PerformanceStatus = "stopped"
)

// ResultStatus is the outcome of one stanza.
type ResultStatus string

const (
	ResultPassed  ResultStatus = "passed"
	ResultFailed  ResultStatus = "failed"
	ResultError   ResultStatus = "error"
	ResultSkipped ResultStatus = "skipped"
)

// ErrorKind classifies a StanzaError.
type ErrorKind string

const (
	ErrorKindConnection ErrorKind = "connection"
	ErrorKindTimeout    ErrorKind = "timeout"
	ErrorKindAssertion  ErrorKind = "assertion"
	ErrorKindCancelled  ErrorKind = "cancelled"
)

// Performance is the recorded outcome of playing a Composition.
// Only the Conductor mutates it while running; it is immutable once sealed.
type Performance struct {
	ID            string            `json:"id"`
	CompositionID string            `json:"compositionId"`
	Status        PerformanceStatus `json:"status"`
	StartTime     time.Time         `json:"startTime"`
	EndTime       time.Time         `json:"endTime"`
	// Duration is in milliseconds.
	Duration      int64          `json:"duration"`
	StanzaResults []StanzaResult `json:"stanzaResults"`
	Summary       Summary        `json:"summary"`
	Created       time.Time      `json:"created,omitzero"`
	Updated       time.Time      `json:"updated,omitzero"`
}

// Summary counts results by outcome. Failed includes error results.
type Summary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// StanzaResult is the outcome of one executed (or skipped) Stanza.
type StanzaResult struct {
	StanzaID string       `json:"stanzaId"`
	Status   ResultStatus `json:"status"`
	// Duration is in milliseconds.
	Duration         int64             `json:"duration"`
	SentXML          string            `json:"sentXml,omitempty"`
	ReceivedXML      string            `json:"receivedXml,omitempty"`
	AssertionResults []AssertionResult `json:"assertionResults,omitempty"`
	Error            *StanzaError      `json:"error,omitempty"`
}

// StanzaError describes why a stanza did not pass.
type StanzaError struct {
	Kind    ErrorKind `json:"kind,omitempty"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
}

func (e *StanzaError) Error() string {
	if e.Details == "" {
		return e.Message
	}
	return e.Message + ": " + e.Details
}

// Terminal reports whether the status is a sealed verdict.
func (s PerformanceStatus) Terminal() bool {
	switch s {
	case PerformancePassed, PerformanceFailed, PerformanceError, PerformanceStopped:
		return true
	}
	return false
}

// Clone returns a copy that shares no slices with p.
func (p *Performance) Clone() *Performance {
	out := *p
	out.StanzaResults = make([]StanzaResult, len(p.StanzaResults))
	for i, r := range p.StanzaResults {
		if r.AssertionResults != nil {
			r.AssertionResults = append([]AssertionResult(nil), r.AssertionResults...)
		}
		if r.Error != nil {
			e := *r.Error
			r.Error = &e
		}
		out.StanzaResults[i] = r
	}
	return &out
}

// EntityID implements Entity.
func (p *Performance) EntityID() string { return p.ID }

// SetEntityID implements Entity.
func (p *Performance) SetEntityID(id string) { p.ID = id }

// Stamps implements Entity.
func (p *Performance) Stamps() (created, updated time.Time) { return p.Created, p.Updated }

// Stamp implements Entity.
func (p *Performance) Stamp(created, updated time.Time) {
	p.Created = created
	p.Updated = updated
}

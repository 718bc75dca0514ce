package composer

import (
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/virtuoso/pkg/domain"
	"github.com/aretw0/virtuoso/pkg/matcher"
)

// DefaultCueTimeout is used for cues inferred from correlated responses.
const DefaultCueTimeout = 5 * time.Second

// Recorder is a thread-safe Composer.
type Recorder struct {
	mu    sync.Mutex
	state State

	// known accounts, filled by add-account commands and helper calls
	known map[string]domain.AccountReference
	// ids generated by recorded sends that await a response
	pending map[string]struct{}

	cueTimeout time.Duration
	now        func() time.Time
	logger     *slog.Logger
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithCueTimeout sets the timeout of inferred cues.
func WithCueTimeout(d time.Duration) RecorderOption {
	return func(r *Recorder) {
		if d > 0 {
			r.cueTimeout = d
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) {
		r.now = now
	}
}

// WithLogger sets the Recorder logger.
func WithLogger(logger *slog.Logger) RecorderOption {
	return func(r *Recorder) {
		r.logger = logger
	}
}

// NewRecorder returns an idle Recorder.
func NewRecorder(opts ...RecorderOption) *Recorder {
	r := &Recorder{
		state:      Initial(),
		known:      make(map[string]domain.AccountReference),
		pending:    make(map[string]struct{}),
		cueTimeout: DefaultCueTimeout,
		now:        time.Now,
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// State returns a copy of the current state.
func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Recording reports whether the Recorder is capturing.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.Recording
}

// Start begins a recording. It is a no-op while already recording.
func (r *Recorder) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.state.Recording {
		clear(r.pending)
	}
	r.state = Reduce(r.state, Start{At: r.now()})
}

// Stop ends the recording and returns the Composition, if anything was recorded.
func (r *Recorder) Stop(meta Meta) (*domain.Composition, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	comp, ok := Build(r.state, meta, r.now())
	r.state = Reduce(r.state, Stop{})
	clear(r.pending)
	if ok {
		r.logger.Info("recording stopped", "composition_id", comp.ID, "stanzas", len(comp.Stanzas))
	}
	return comp, ok
}

// Cancel discards the recording.
func (r *Recorder) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = Reduce(r.state, Cancel{})
	clear(r.pending)
}

// Connect records a connect stanza.
func (r *Recorder) Connect(account domain.AccountReference) {
	r.add(account, "Connect "+account.Alias, domain.ConnectData{})
}

// Disconnect records a disconnect stanza.
func (r *Recorder) Disconnect(account domain.AccountReference) {
	r.add(account, "Disconnect "+account.Alias, domain.DisconnectData{})
}

// Send records a send stanza. A root id attribute is remembered so that the
// matching response becomes a correlated cue.
func (r *Recorder) Send(account domain.AccountReference, xml string) {
	data := domain.SendData{XML: xml}
	id, hasID := matcher.ExtractID(xml)
	if hasID {
		data.GeneratedIDs = map[string]string{"id": id}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.addLocked(account, "Send from "+account.Alias, data) && hasID {
		r.pending[id] = struct{}{}
	}
}

// Cue records a wait condition.
func (r *Recorder) Cue(account domain.AccountReference, cue domain.CueData) {
	desc := cue.Description
	if desc == "" {
		desc = "Wait for " + string(cue.MatchType) + " " + cue.MatchExpression
	}
	r.add(account, desc, cue)
}

// Assert records an inline assertion.
func (r *Recorder) Assert(account domain.AccountReference, a domain.AssertData) {
	r.add(account, "Assert "+string(a.AssertionType)+" "+a.Expression, a)
}

// ObserveCommand records an outgoing boundary command.
func (r *Recorder) ObserveCommand(cmd domain.Command) {
	switch cmd.Kind {
	case domain.CommandAddAccount:
		r.mu.Lock()
		r.known[cmd.AccountID] = domain.AccountReference{Alias: cmd.AccountID, JID: cmd.JID}
		r.mu.Unlock()
	case domain.CommandRemoveAccount:
		r.mu.Lock()
		delete(r.known, cmd.AccountID)
		r.mu.Unlock()
	case domain.CommandConnectAccount:
		r.Connect(r.account(cmd.AccountID, cmd.JID))
	case domain.CommandSendStanza:
		r.Send(r.account(cmd.AccountID, cmd.JID), cmd.Payload)
	case domain.CommandDisconnectAccount:
		r.Disconnect(r.account(cmd.AccountID, cmd.JID))
	}
}

// ObserveInbound records a stanza-response whose id answers a recorded send.
func (r *Recorder) ObserveInbound(ev domain.Inbound) {
	if ev.Kind != domain.InboundStanzaResponse {
		return
	}
	id, ok := matcher.ExtractID(ev.Payload)
	if !ok {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, waiting := r.pending[id]; !waiting || !r.state.Recording {
		return
	}
	delete(r.pending, id)

	account := r.accountLocked(ev.AccountID, "")
	r.addLocked(account, "Wait for response "+id, domain.CueData{
		Description:     "Response to " + id,
		MatchType:       domain.MatchID,
		MatchExpression: id,
		Timeout:         r.cueTimeout.Milliseconds(),
		CorrelatedID:    id,
	})
}

func (r *Recorder) account(alias, jid string) domain.AccountReference {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.accountLocked(alias, jid)
}

func (r *Recorder) accountLocked(alias, jid string) domain.AccountReference {
	if known, ok := r.known[alias]; ok && (jid == "" || known.JID == jid) {
		return known
	}
	return domain.AccountReference{Alias: alias, JID: jid}
}

func (r *Recorder) add(account domain.AccountReference, description string, data domain.StanzaData) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.addLocked(account, description, data)
}

func (r *Recorder) addLocked(account domain.AccountReference, description string, data domain.StanzaData) bool {
	if !r.state.Recording {
		return false
	}
	if _, ok := r.known[account.Alias]; !ok {
		r.known[account.Alias] = account
	}
	stanza := domain.Stanza{
		ID:           domain.NewID(domain.PrefixStanza),
		Type:         data.StanzaType(),
		AccountAlias: account.Alias,
		Description:  description,
		Data:         data,
	}
	r.state = Reduce(r.state, AddStanza{Stanza: stanza, Account: &account})
	r.logger.Debug("stanza recorded", "account", account.Alias, "stanza_id", stanza.ID, "type", stanza.Type)
	return true
}

package http

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/virtuoso"
	"github.com/aretw0/virtuoso/internal/testutils"
	"github.com/aretw0/virtuoso/pkg/adapters/bridge"
	"github.com/aretw0/virtuoso/pkg/adapters/loopback"
	"github.com/aretw0/virtuoso/pkg/composer"
	"github.com/aretw0/virtuoso/pkg/domain"
	"github.com/aretw0/virtuoso/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine(t *testing.T, opts ...virtuoso.Option) *virtuoso.Engine {
	t.Helper()
	e, err := virtuoso.New(loopback.New(), opts...)
	require.NoError(t, err)
	return e
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealthAndInfo(t *testing.T) {
	h := NewHandler(newEngine(t))

	w := do(t, h, "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	w = do(t, h, "GET", "/info", nil)
	var info map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, "virtuoso-http", info["app"])
	assert.Equal(t, strings.TrimSpace(virtuoso.Version), info["version"])

	w = do(t, h, "OPTIONS", "/compositions", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCompositionLifecycle(t *testing.T) {
	engine := newEngine(t)
	h := NewHandler(engine)

	comp := testutils.NewScript("", "alice").
		Connect("alice").
		Send("alice", `<iq type="get" id="p1" to="example.com"><ping xmlns="urn:xmpp:ping"/></iq>`).
		CorrelatedCue("alice", domain.MatchID, "p1", "p1", time.Second).
		Disconnect("alice").
		Build()

	w := do(t, h, "POST", "/compositions", comp)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var saved domain.Composition
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &saved))
	assert.Regexp(t, `^comp_`, saved.ID)
	require.Len(t, saved.Stanzas, 4)
	assert.IsType(t, domain.CueData{}, saved.Stanzas[2].Data)

	w = do(t, h, "GET", "/compositions/"+saved.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, h, "GET", "/compositions", nil)
	assert.Contains(t, w.Body.String(), saved.ID)

	w = do(t, h, "POST", "/compositions/"+saved.ID+"/play", nil)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	var started map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &started))
	perfID := started["performanceId"]
	require.NotEmpty(t, perfID)

	require.Eventually(t, func() bool {
		p, ok := engine.Performances.Get(context.Background(), perfID)
		return ok && p.Status != domain.PerformanceRunning
	}, 2*time.Second, 10*time.Millisecond)

	w = do(t, h, "GET", "/performances/"+perfID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var perf domain.Performance
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &perf))
	assert.Equal(t, domain.PerformancePassed, perf.Status)
	assert.Equal(t, domain.Summary{Total: 4, Passed: 4}, perf.Summary)

	w = do(t, h, "GET", "/performances", nil)
	assert.Contains(t, w.Body.String(), perfID)

	w = do(t, h, "POST", "/performances/"+perfID+"/stop", nil)
	assert.Equal(t, http.StatusConflict, w.Code, "finished runs cannot be stopped")

	w = do(t, h, "DELETE", "/compositions/"+saved.ID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(t, h, "DELETE", "/compositions/"+saved.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestInvalidComposition(t *testing.T) {
	h := NewHandler(newEngine(t))

	comp := testutils.NewScript("comp_bad", "alice").
		Cue("mallory", domain.MatchRegex, "(", 0).
		Build()

	for _, path := range []string{"/compositions", "/compositions/validate"} {
		w := do(t, h, "POST", path, comp)
		require.Equal(t, http.StatusUnprocessableEntity, w.Code, path)
		var body struct {
			Error   string   `json:"error"`
			Details []string `json:"details"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.GreaterOrEqual(t, len(body.Details), 2, path)
	}

	req := httptest.NewRequest("POST", "/compositions", strings.NewReader("{"))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestNotFound(t *testing.T) {
	h := NewHandler(newEngine(t))

	assert.Equal(t, http.StatusNotFound, do(t, h, "GET", "/compositions/nope", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, "POST", "/compositions/nope/play", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, "GET", "/performances/nope", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, "GET", "/events", nil).Code, "bridge routes are optional")
}

func TestTemplates(t *testing.T) {
	h := NewHandler(newEngine(t))

	w := do(t, h, "GET", "/templates", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Templates []domain.Template `json:"templates"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Templates, len(domain.BuiltinTemplates))
}

func TestEvents_IngestStatus(t *testing.T) {
	broadcaster := bridge.NewBroadcaster(8)
	mgr := bridge.New(broadcaster)
	engine, err := virtuoso.New(mgr)
	require.NoError(t, err)
	h := NewHandler(engine, WithBridge(mgr, broadcaster))

	_, err = mgr.Subscribe(domain.AccountReference{Alias: "alice", JID: "alice@example.com"})
	require.NoError(t, err)

	w := do(t, h, "POST", "/events", domain.Inbound{Kind: domain.InboundAccountStatus, AccountID: "alice", Status: "connected"})
	assert.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	assert.Equal(t, domain.StatusConnected, mgr.Status(domain.AccountReference{Alias: "alice"}))

	w = do(t, h, "POST", "/events", domain.Inbound{Kind: domain.InboundStanzaResponse, AccountID: "ghost", Payload: "<message/>"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCommands_Stream(t *testing.T) {
	broadcaster := bridge.NewBroadcaster(8)
	mgr := bridge.New(broadcaster)
	engine, err := virtuoso.New(mgr)
	require.NoError(t, err)
	srv := httptest.NewServer(NewHandler(engine, WithBridge(mgr, broadcaster)))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, "GET", srv.URL+"/commands", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: ping\n", line)

	require.Eventually(t, func() bool { return broadcaster.Listeners() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, mgr.Open(ctx, domain.AccountReference{Alias: "alice", JID: "alice@example.com"}))

	var events []string
	for len(events) < 2 {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "event: ") {
			events = append(events, strings.TrimSpace(strings.TrimPrefix(line, "event: ")))
		}
	}
	assert.Equal(t, []string{string(domain.CommandAddAccount), string(domain.CommandConnectAccount)}, events)
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)
	engine := newEngine(t, virtuoso.WithMetrics(metrics))
	h := NewHandler(engine, WithGatherer(reg))

	comp := testutils.NewScript("comp_m", "alice").Connect("alice").Disconnect("alice").Build()
	_, err := engine.Play(context.Background(), comp)
	require.NoError(t, err)

	w := do(t, h, "GET", "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "virtuoso_performances_total")
	assert.Contains(t, w.Body.String(), "virtuoso_stanzas_total")
}

func TestRecording(t *testing.T) {
	engine := newEngine(t)
	rec := composer.NewRecorder()
	h := NewHandler(engine, WithRecorder(rec))

	w := do(t, h, "POST", "/recording/stop", nil)
	assert.Equal(t, http.StatusConflict, w.Code, "stop while idle records nothing")

	require.Equal(t, http.StatusNoContent, do(t, h, "POST", "/recording/start", nil).Code)
	alice := domain.AccountReference{Alias: "alice", JID: "alice@example.com"}
	rec.Connect(alice)
	rec.Send(alice, `<presence/>`)

	w = do(t, h, "GET", "/recording", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var state struct {
		Recording bool            `json:"recording"`
		Stanzas   []domain.Stanza `json:"stanzas"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &state))
	assert.True(t, state.Recording)
	assert.Len(t, state.Stanzas, 2)

	w = do(t, h, "POST", "/recording/stop", composer.Meta{Name: "recorded", Tags: []string{"smoke"}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var comp domain.Composition
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &comp))
	assert.Equal(t, "recorded", comp.Name)

	stored, ok := engine.Compositions.Get(context.Background(), comp.ID)
	require.True(t, ok)
	assert.Len(t, stored.Stanzas, 2)

	require.Equal(t, http.StatusNoContent, do(t, h, "POST", "/recording/start", nil).Code)
	require.Equal(t, http.StatusNoContent, do(t, h, "POST", "/recording/cancel", nil).Code)
	assert.False(t, rec.Recording())
}

package graph_test

import (
	"strings"
	"testing"
	"time"

	"github.com/aretw0/virtuoso/internal/presentation/graph"
	"github.com/aretw0/virtuoso/internal/testutils"
	"github.com/aretw0/virtuoso/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func TestGenerateMermaid(t *testing.T) {
	comp := testutils.NewScript("comp_1", "alice", "bob-2").
		Connect("alice").
		Send("alice", `<?xml version="1.0"?><message to="bob-2@example.com"><body>hi</body></message>`).
		Cue("bob-2", domain.MatchXPath, "//message[@type='chat']", 2*time.Second).
		Assert("bob-2", domain.AssertEquals, "//body", "hi").
		Disconnect("alice").
		Build()

	out := graph.GenerateMermaid(comp, nil)

	tests := []struct {
		name     string
		contains string
	}{
		{"header", "sequenceDiagram\n"},
		{"account lanes", "participant alice as alice@example.com"},
		{"sanitized alias", "participant bob_2 as bob-2@example.com"},
		{"server lane", "participant Server\n"},
		{"connect", "alice->>+Server: connect"},
		{"send shows root element", "alice->>Server: send #lt;message#gt;"},
		{"cue flows back", "Server-->>bob_2: cue xpath //message[@type='chat'] (2000ms)"},
		{"assert note", "Note over bob_2: assert equals //body = hi"},
		{"disconnect", "alice->>-Server: disconnect"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, out, tt.contains)
		})
	}
	assert.NotContains(t, out, "rect")
}

func TestGenerateMermaid_Overlay(t *testing.T) {
	comp := testutils.NewScript("comp_1", "alice").
		Connect("alice").
		Cue("alice", domain.MatchContains, "pong", time.Second).
		Disconnect("alice").
		Build()
	perf := &domain.Performance{StanzaResults: []domain.StanzaResult{
		{StanzaID: "s1", Status: domain.ResultPassed},
		{StanzaID: "s2", Status: domain.ResultFailed},
	}}

	out := graph.GenerateMermaid(comp, graph.NewOverlay(perf))

	assert.Equal(t, 2, strings.Count(out, "    rect "), "only stanzas with results are highlighted")
	assert.Contains(t, out, "rect rgb(220, 252, 231)\n        alice->>+Server: connect\n    end\n")
	assert.Contains(t, out, "rect rgb(255, 237, 213)\n")
	assert.Contains(t, out, "\n    alice->>-Server: disconnect\n")
}

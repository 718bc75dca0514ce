package tui

import (
	"bytes"
	"testing"

	"github.com/aretw0/virtuoso/internal/testutils"
	"github.com/aretw0/virtuoso/pkg/domain"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePerformance() *domain.Performance {
	return &domain.Performance{
		ID:            "perf_1",
		CompositionID: "comp_1",
		Status:        domain.PerformanceFailed,
		Duration:      1500,
		Summary:       domain.Summary{Total: 3, Passed: 1, Failed: 1, Skipped: 1},
		StanzaResults: []domain.StanzaResult{
			{StanzaID: "s1", Status: domain.ResultPassed, Duration: 12},
			{StanzaID: "s2", Status: domain.ResultFailed, Duration: 1000,
				Error:       &domain.StanzaError{Kind: domain.ErrorKindTimeout, Message: "no matching message", Details: "waited 1s"},
				ReceivedXML: "<message><body>nope</body></message>",
			},
			{StanzaID: "s3", Status: domain.ResultSkipped},
		},
	}
}

func TestMarkdown(t *testing.T) {
	comp := testutils.NewScript("comp_1", "alice").
		Connect("alice").
		Cue("alice", domain.MatchContains, "hi", 0).
		Disconnect("alice").
		Build()
	comp.Name = "Greeting | smoke"

	md := Markdown(samplePerformance(), comp)
	assert.Contains(t, md, "# Greeting | smoke")
	assert.Contains(t, md, "Performance `perf_1` **failed** in 1.5s")
	assert.Contains(t, md, "3 stanzas: 1 passed, 1 failed, 1 skipped")
	assert.Contains(t, md, "| 2 | cue | alice | cue | failed | 1000ms |")
	assert.Contains(t, md, "## Problems")
	assert.Contains(t, md, "no matching message: waited 1s")
	assert.Contains(t, md, "<body>nope</body>")
	assert.NotContains(t, md, "### s3", "skipped stanzas are not problems")
}

func TestMarkdown_WithoutComposition(t *testing.T) {
	perf := samplePerformance()
	perf.StanzaResults[1].AssertionResults = []domain.AssertionResult{
		{AssertionID: "a1", Passed: false, Expected: "hi", Actual: "nope"},
		{AssertionID: "a2", Passed: true},
	}

	md := Markdown(perf, nil)
	assert.Contains(t, md, "# comp_1")
	assert.Contains(t, md, "| 1 | s1 |")
	assert.Contains(t, md, "assertion `a1`: expected `hi`, got `nope`")
	assert.NotContains(t, md, "`a2`")
}

func TestReport_PlainWhenNotTerminal(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Report(&buf, samplePerformance(), nil))
	assert.Equal(t, Markdown(samplePerformance(), nil), buf.String())
	assert.False(t, IsTerminal(&buf))
	assert.Equal(t, defaultWidth, Width(&buf))
}

func TestBadge(t *testing.T) {
	assert.Equal(t, "[PASSED]", Badge(termenv.Ascii, "passed"))
	assert.Equal(t, "[WEIRD]", Badge(termenv.TrueColor, "weird"))
	colored := Badge(termenv.TrueColor, "error")
	assert.Contains(t, colored, "ERROR")
	assert.Contains(t, colored, "\x1b[")
}

func TestNewRenderer(t *testing.T) {
	out, err := NewRenderer(80)("# Title")
	require.NoError(t, err)
	assert.Contains(t, out, "Title")
}

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf, "1.2.3\n")
	assert.Contains(t, buf.String(), "v1.2.3\n")
	assert.NotContains(t, buf.String(), "\x1b[", "buffers are not terminals")
}

package tui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aretw0/virtuoso/pkg/domain"
	"github.com/muesli/termenv"
)

var badgeColors = map[string]string{
	"passed":  "#22c55e",
	"failed":  "#f97316",
	"error":   "#ef4444",
	"stopped": "#a78bfa",
	"skipped": "#94a3b8",
	"running": "#38bdf8",
}

// Badge renders a status label, colored for the given profile.
func Badge(p termenv.Profile, status string) string {
	label := strings.ToUpper(status)
	color, ok := badgeColors[status]
	if !ok || p == termenv.Ascii {
		return "[" + label + "]"
	}
	return termenv.String(" " + label + " ").Bold().Foreground(p.Color("#0f172a")).Background(p.Color(color)).String()
}

// Markdown formats a performance report. comp may be nil, in which case stanzas are
// listed by id only.
func Markdown(perf *domain.Performance, comp *domain.Composition) string {
	var b strings.Builder

	title := perf.CompositionID
	if comp != nil && comp.Name != "" {
		title = comp.Name
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "Performance `%s` **%s** in %s\n\n", perf.ID, perf.Status, time.Duration(perf.Duration)*time.Millisecond)
	s := perf.Summary
	fmt.Fprintf(&b, "%d stanzas: %d passed, %d failed, %d skipped\n\n", s.Total, s.Passed, s.Failed, s.Skipped)

	stanzas := map[string]domain.Stanza{}
	if comp != nil {
		for _, st := range comp.Stanzas {
			stanzas[st.ID] = st
		}
	}

	b.WriteString("| # | Stanza | Account | Type | Status | Time |\n")
	b.WriteString("|---|--------|---------|------|--------|------|\n")
	for i, r := range perf.StanzaResults {
		st := stanzas[r.StanzaID]
		name := r.StanzaID
		if st.Description != "" {
			name = st.Description
		}
		fmt.Fprintf(&b, "| %d | %s | %s | %s | %s | %dms |\n", i+1, escapeCell(name), st.AccountAlias, st.Type, r.Status, r.Duration)
	}

	var problems []domain.StanzaResult
	for _, r := range perf.StanzaResults {
		if r.Status == domain.ResultFailed || r.Status == domain.ResultError {
			problems = append(problems, r)
		}
	}
	if len(problems) > 0 {
		b.WriteString("\n## Problems\n\n")
		for _, r := range problems {
			fmt.Fprintf(&b, "### %s (%s)\n\n", r.StanzaID, r.Status)
			if r.Error != nil {
				fmt.Fprintf(&b, "- %s\n", r.Error.Error())
			}
			for _, a := range r.AssertionResults {
				if a.Passed {
					continue
				}
				fmt.Fprintf(&b, "- assertion `%s`: expected `%s`, got `%s`", a.AssertionID, a.Expected, a.Actual)
				if a.Error != "" {
					fmt.Fprintf(&b, " (%s)", a.Error)
				}
				b.WriteString("\n")
			}
			if r.ReceivedXML != "" {
				fmt.Fprintf(&b, "\n```xml\n%s\n```\n", r.ReceivedXML)
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}

// Report writes the performance report to w. Terminals get glamour styling and a
// colored verdict badge; anything else gets plain markdown.
func Report(w io.Writer, perf *domain.Performance, comp *domain.Composition) error {
	md := Markdown(perf, comp)
	if !IsTerminal(w) {
		_, err := io.WriteString(w, md)
		return err
	}

	out, err := NewRenderer(Width(w))(md)
	if err != nil {
		out = md
	}
	badge := Badge(termenv.NewOutput(w).Profile, string(perf.Status))
	_, err = fmt.Fprintf(w, "%s\n%s", badge, out)
	return err
}

package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/virtuoso/pkg/domain"
)

// ServerParticipant is the lane standing for the XMPP server.
const ServerParticipant = "Server"

// Overlay carries performance results to color the diagram with.
type Overlay struct {
	Results map[string]domain.ResultStatus
}

// NewOverlay indexes the results of perf by stanza id.
func NewOverlay(perf *domain.Performance) *Overlay {
	o := &Overlay{Results: make(map[string]domain.ResultStatus, len(perf.StanzaResults))}
	for _, r := range perf.StanzaResults {
		o.Results[r.StanzaID] = r.Status
	}
	return o
}

var overlayFills = map[domain.ResultStatus]string{
	domain.ResultPassed:  "rgb(220, 252, 231)",
	domain.ResultFailed:  "rgb(255, 237, 213)",
	domain.ResultError:   "rgb(254, 226, 226)",
	domain.ResultSkipped: "rgb(241, 245, 249)",
}

// GenerateMermaid produces a Mermaid sequence diagram of a composition:
// one lane per account plus the server. Sends and connects flow to the server,
// cues flow back, and assertions are notes over the account.
// With an overlay, each stanza is wrapped in a rect colored by its result.
func GenerateMermaid(comp *domain.Composition, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("sequenceDiagram\n")

	for _, acc := range comp.Accounts {
		fmt.Fprintf(&sb, "    participant %s as %s\n", sanitizeMermaidID(acc.Alias), escapeLabel(acc.JID))
	}
	fmt.Fprintf(&sb, "    participant %s\n", ServerParticipant)

	for _, st := range comp.Stanzas {
		line := stanzaLine(st)
		if overlay == nil {
			sb.WriteString("    " + line + "\n")
			continue
		}
		status, ok := overlay.Results[st.ID]
		fill, known := overlayFills[status]
		if !ok || !known {
			sb.WriteString("    " + line + "\n")
			continue
		}
		fmt.Fprintf(&sb, "    rect %s\n", fill)
		sb.WriteString("        " + line + "\n")
		sb.WriteString("    end\n")
	}

	return sb.String()
}

func stanzaLine(st domain.Stanza) string {
	who := sanitizeMermaidID(st.AccountAlias)
	switch d := st.Data.(type) {
	case domain.ConnectData:
		return fmt.Sprintf("%s->>+%s: connect", who, ServerParticipant)
	case domain.DisconnectData:
		return fmt.Sprintf("%s->>-%s: disconnect", who, ServerParticipant)
	case domain.SendData:
		return fmt.Sprintf("%s->>%s: send %s", who, ServerParticipant, escapeLabel(rootElement(d.XML)))
	case domain.CueData:
		label := fmt.Sprintf("cue %s %s (%dms)", d.MatchType, d.MatchExpression, d.Timeout)
		return fmt.Sprintf("%s-->>%s: %s", ServerParticipant, who, escapeLabel(label))
	case domain.AssertData:
		label := fmt.Sprintf("assert %s %s", d.AssertionType, d.Expression)
		if d.Expected != "" {
			label += " = " + d.Expected
		}
		return fmt.Sprintf("Note over %s: %s", who, escapeLabel(label))
	default:
		return fmt.Sprintf("Note over %s: %s", who, escapeLabel(st.Description))
	}
}

// rootElement returns the name of the first element in payload, e.g. "<iq>".
func rootElement(payload string) string {
	s := strings.TrimSpace(payload)
	for strings.HasPrefix(s, "<?") || strings.HasPrefix(s, "<!--") {
		end := strings.Index(s, ">")
		if end < 0 {
			return "payload"
		}
		s = strings.TrimSpace(s[end+1:])
	}
	if !strings.HasPrefix(s, "<") {
		return "payload"
	}
	name := strings.FieldsFunc(s[1:], func(r rune) bool {
		return r == ' ' || r == '>' || r == '/' || r == '\n' || r == '\t'
	})
	if len(name) == 0 {
		return "payload"
	}
	return "<" + name[0] + ">"
}

// escapeLabel keeps labels from breaking Mermaid syntax.
func escapeLabel(s string) string {
	r := strings.NewReplacer(";", "#59;", "#", "#35;", "\n", " ", "<", "#lt;", ">", "#gt;")
	return r.Replace(s)
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "@", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}

package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Id prefixes used by NewID.
const (
	PrefixComposition = "comp"
	PrefixPerformance = "perf"
	PrefixStanza      = "stanza"
	PrefixTemplate    = "tpl"
)

// NewID returns "<prefix>_<unix-millis>_<6 random chars>".
// Collisions within a session are practically impossible; the ids are not meant to be globally unique.
func NewID(prefix string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	return fmt.Sprintf("%s_%d_%s", prefix, time.Now().UnixMilli(), suffix)
}

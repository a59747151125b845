package orders

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewNumber builds a human-readable order number:
// ORD-<UTC second timestamp>-<8 random hex chars>. The timestamp alone can
// collide under concurrent creation in the same second, so the repo retries
// with a fresh number on a unique-constraint conflict.
func NewNumber() string {
	ts := time.Now().UTC().Format("20060102150405")
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("ORD-%s-%s", ts, suffix)
}

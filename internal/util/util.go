// Package util holds small internal helpers shared across packages. It lives
// in internal to avoid committing to public API stability prematurely.
package util

import (
	"fmt"

	"github.com/google/uuid"
)

// NewID generates a new unique identifier for events, runs and sessions.
func NewID() string { return uuid.NewString() }

// Truncate shortens s to at most n runes, appending an ellipsis when content
// was cut. n must be positive.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

// HumanSize renders a byte count in a compact human-readable form. Sizes are
// rendered in KB above 1024 bytes; the output is deterministic for a given
// input, which matters for prompt-prefix stability.
func HumanSize(n int64) string {
	if n < 1024 {
		return fmt.Sprintf("%dB", n)
	}
	return fmt.Sprintf("%.1fKB", float64(n)/1024)
}

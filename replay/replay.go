package replay

import (
	"context"
	"time"

	"github.com/hupe1980/sessionmesh/core"
)

const (
	// defaultGap stands in for unknown inter-event gaps.
	defaultGap = 100 * time.Millisecond
	// maxGap caps the pause before any single event.
	maxGap = 2 * time.Second
)

// Item is one timeline entry: the event plus the pause to take before
// presenting it.
type Item struct {
	Event  core.Event    `json:"event"`
	Offset time.Duration `json:"offset"`
}

// BuildTimeline converts the log into a paced timeline. The pause before
// each event is the recorded gap to its predecessor, scaled by 1/speed and
// capped at two seconds. Gaps that are missing or non-positive fall back to
// a 100ms default. A speed of zero or less yields an instant timeline with
// all offsets zero.
func BuildTimeline(log *core.EventLog, speed float64) []Item {
	events := log.Events()
	items := make([]Item, len(events))
	var prev time.Time
	for i, ev := range events {
		gap := defaultGap
		if i > 0 && ev.CreatedAt.After(prev) {
			gap = ev.CreatedAt.Sub(prev)
		}
		prev = ev.CreatedAt

		var offset time.Duration
		if speed > 0 {
			offset = time.Duration(float64(gap) / speed)
			if offset > maxGap {
				offset = maxGap
			}
		}
		items[i] = Item{Event: ev, Offset: offset}
	}
	return items
}

// Cursor steps through a timeline. It is restartable via Reset and is not
// safe for concurrent use.
type Cursor struct {
	items []Item
	pos   int
}

// NewCursor positions a cursor at the start of the timeline.
func NewCursor(items []Item) *Cursor {
	return &Cursor{items: items}
}

// Next returns the next item, or false when the timeline is exhausted.
func (c *Cursor) Next() (Item, bool) {
	if c.pos >= len(c.items) {
		return Item{}, false
	}
	item := c.items[c.pos]
	c.pos++
	return item, true
}

// Reset rewinds the cursor to the start for another pass.
func (c *Cursor) Reset() { c.pos = 0 }

// Remaining returns the number of items not yet consumed.
func (c *Cursor) Remaining() int { return len(c.items) - c.pos }

// Play delivers the remaining items to fn, sleeping each item's offset
// first. It stops early when fn returns an error or the context is done.
func (c *Cursor) Play(ctx context.Context, fn func(Item) error) error {
	for {
		item, ok := c.Next()
		if !ok {
			return nil
		}
		if item.Offset > 0 {
			timer := time.NewTimer(item.Offset)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(item); err != nil {
			return err
		}
	}
}

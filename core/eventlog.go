package core

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/sessionmesh/internal/util"
	"github.com/hupe1980/sessionmesh/logging"
)

// Subscriber receives every event synchronously after it is stored. A
// returned error is reported through the log's logger but never propagated to
// the appender, so one bad listener cannot break logging.
type Subscriber interface {
	OnEvent(ev Event) error
}

// SubscriberFunc adapts a plain function to the Subscriber interface.
type SubscriberFunc func(ev Event) error

// OnEvent implements Subscriber.
func (f SubscriberFunc) OnEvent(ev Event) error { return f(ev) }

// Subscription is the handle returned by Subscribe. Unsubscribe is idempotent
// and safe to call concurrently with appends.
type Subscription struct {
	log *EventLog
	id  int64
}

// Unsubscribe removes the subscriber from the log.
func (s *Subscription) Unsubscribe() {
	if s == nil || s.log == nil {
		return
	}
	s.log.unsubscribe(s.id)
}

type subEntry struct {
	id  int64
	sub Subscriber
}

// EventLogOptions configure construction of an EventLog.
type EventLogOptions struct {
	// Logger receives subscriber failure reports. Defaults to NoOpLogger.
	Logger logging.Logger
}

// EventLog is the append-only, ordered record of everything that happened in
// one session. Append order is the sole ordering authority: every stored
// event carries a strictly increasing sequence number assigned under the
// log's lock, making appends linearizable. Reads (Recent, Events, Snapshot)
// take a consistent view and never observe a partially stored event.
//
// Events are never mutated or removed after appending. Failed attempts stay
// visible for inspection and replay.
type EventLog struct {
	mu      sync.RWMutex
	events  []Event
	nextSeq int64
	subs    []subEntry
	nextSub int64
	logger  logging.Logger
}

// NewEventLog constructs an empty log.
func NewEventLog(optFns ...func(o *EventLogOptions)) *EventLog {
	opts := EventLogOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &EventLog{nextSeq: 1, nextSub: 1, logger: opts.Logger}
}

// Append assigns the next sequence number, stores the event and notifies
// subscribers synchronously in registration order. Missing ID or CreatedAt
// fields are filled in. The stored event is returned.
func (l *EventLog) Append(ev Event) Event {
	l.mu.Lock()
	if ev.ID == "" {
		ev.ID = util.NewID()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC().Truncate(time.Microsecond)
	}
	ev.Seq = l.nextSeq
	l.nextSeq++
	l.events = append(l.events, ev)
	subs := make([]subEntry, len(l.subs))
	copy(subs, l.subs)
	l.mu.Unlock()

	for _, entry := range subs {
		l.notify(entry, ev)
	}
	return ev
}

// notify delivers one event to one subscriber, containing panics and errors.
func (l *EventLog) notify(entry subEntry, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("event subscriber panicked", "seq", ev.Seq, "panic", fmt.Sprint(r))
		}
	}()
	if err := entry.sub.OnEvent(ev); err != nil {
		l.logger.Error("event subscriber failed", "seq", ev.Seq, "error", err.Error())
	}
}

// Subscribe registers a subscriber and returns its unsubscribe handle.
// Subscribers are notified in registration order.
func (l *EventLog) Subscribe(sub Subscriber) *Subscription {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := l.nextSub
	l.nextSub++
	l.subs = append(l.subs, subEntry{id: id, sub: sub})
	return &Subscription{log: l, id: id}
}

func (l *EventLog) unsubscribe(id int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, entry := range l.subs {
		if entry.id == id {
			l.subs = append(l.subs[:i], l.subs[i+1:]...)
			return
		}
	}
}

// Recent returns the last n events in order, or all events if fewer exist.
// The returned slice is a copy and safe for caller mutation.
func (l *EventLog) Recent(n int) []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if n <= 0 || len(l.events) == 0 {
		return []Event{}
	}
	if n > len(l.events) {
		n = len(l.events)
	}
	out := make([]Event, n)
	copy(out, l.events[len(l.events)-n:])
	return out
}

// Events returns a copy of the full event sequence.
func (l *EventLog) Events() []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}

// Len reports the number of stored events.
func (l *EventLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}

// Last returns the most recent event, if any.
func (l *EventLog) Last() (Event, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.events) == 0 {
		return Event{}, false
	}
	return l.events[len(l.events)-1], true
}

// Snapshot is the serializable form of an EventLog.
type Snapshot struct {
	Events []Event `json:"events"`
}

// Snapshot returns a consistent copy of the log's state.
func (l *EventLog) Snapshot() Snapshot {
	return Snapshot{Events: l.Events()}
}

// Serialize renders the log as deterministic JSON: map keys are emitted in
// sorted order and timestamps use a fixed UTC microsecond format, so the same
// log always produces identical bytes. This determinism maximizes
// prompt-prefix cache hits across repeated context builds.
func (l *EventLog) Serialize() ([]byte, error) {
	data, err := json.Marshal(l.Snapshot())
	if err != nil {
		return nil, fmt.Errorf("serialize event log: %w", err)
	}
	return data, nil
}

// DeserializeEventLog reconstructs a log from Serialize output. The event
// sequence, ids and payloads round-trip identically; the next sequence number
// continues after the highest restored one.
func DeserializeEventLog(data []byte, optFns ...func(o *EventLogOptions)) (*EventLog, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("deserialize event log: %w", err)
	}
	return RestoreEventLog(snap.Events, optFns...), nil
}

// RestoreEventLog rebuilds a log from an already-decoded event sequence,
// used when a session record is loaded wholesale on resume.
func RestoreEventLog(events []Event, optFns ...func(o *EventLogOptions)) *EventLog {
	l := NewEventLog(optFns...)
	l.events = make([]Event, len(events))
	copy(l.events, events)
	for _, ev := range events {
		if ev.Seq >= l.nextSeq {
			l.nextSeq = ev.Seq + 1
		}
	}
	return l
}

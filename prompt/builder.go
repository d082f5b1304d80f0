package prompt

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/hupe1980/sessionmesh/core"
	"github.com/hupe1980/sessionmesh/goal"
	"github.com/hupe1980/sessionmesh/internal/util"
	"github.com/hupe1980/sessionmesh/workspace"
)

// systemPreamble is the stable instruction prefix. It must stay fixed: no
// session ids, timestamps or any time-varying content, since every byte of
// drift here invalidates the backend's prefix cache for all sessions.
const systemPreamble = `You are an analytical assistant that performs multi-step work for a user session.

## Working Method
- Break goals into ordered sub-tasks and work on exactly one at a time.
- Record every action before executing it and every observation after.
- Large results live in the workspace; reference them by name instead of repeating their content.
- Errors are observations: note what failed and continue or replan, never hide a failure.

## Context Layout
You receive, in order: the workspace manifest, the recent event history, and the current objectives. The objectives listed last are the authoritative statement of what remains to be done.`

// ack is the placeholder assistant block that pins the boundary between the
// stable and dynamic parts of the prompt.
const ack = "Acknowledged."

const (
	// DefaultMaxEvents bounds how many recent events a context includes.
	DefaultMaxEvents = 50
	// keepUncompressed is the count of most recent events rendered in full;
	// older ones are compressed to short summaries to save budget.
	keepUncompressed = 20
)

// Metrics describes one assembled context, using character counts as a cheap
// size proxy plus a token estimate.
type Metrics struct {
	PreambleChars   int
	ManifestChars   int
	HistoryChars    int
	RecapChars      int
	TotalChars      int
	EstimatedTokens int
}

// Builder assembles contexts for one session from its workspace, event log
// and goal tracker.
type Builder struct {
	log   *core.EventLog
	ws    *workspace.Workspace
	goals *goal.Tracker

	encOnce sync.Once
	enc     *tiktoken.Tiktoken
}

// NewBuilder wires a builder to one session's components.
func NewBuilder(log *core.EventLog, ws *workspace.Workspace, goals *goal.Tracker) *Builder {
	return &Builder{log: log, ws: ws, goals: goals}
}

// SystemPreamble returns the fixed instruction prefix. The returned text is
// byte-identical across every call in every session.
func (b *Builder) SystemPreamble() string { return systemPreamble }

// BuildContext concatenates, in fixed order, the workspace manifest, the last
// maxEvents events and the goal recap. maxEvents <= 0 uses DefaultMaxEvents.
func (b *Builder) BuildContext(maxEvents int) (string, Metrics) {
	if maxEvents <= 0 {
		maxEvents = DefaultMaxEvents
	}

	var m Metrics
	var sections []string

	if manifest := b.ws.Manifest(); manifest != "" {
		section := "## Available Files\n" + manifest
		m.ManifestChars = len(section)
		sections = append(sections, section)
	}

	events := b.log.Recent(maxEvents)
	if len(events) > 0 {
		lines := make([]string, 0, len(events)+1)
		lines = append(lines, "## Event History")
		for i, ev := range events {
			compress := len(events) > keepUncompressed && i < len(events)-keepUncompressed
			lines = append(lines, FormatEvent(ev, compress))
		}
		section := strings.Join(lines, "\n")
		m.HistoryChars = len(section)
		sections = append(sections, section)
	}

	// Recap goes last: recency bias means goals recited at the end are the
	// ones most reliably honored.
	if recap := b.goals.Recap(); recap != "" {
		m.RecapChars = len(recap)
		sections = append(sections, recap)
	}

	context := strings.Join(sections, "\n\n")
	m.TotalChars = len(context)
	m.EstimatedTokens = b.EstimateSize(context)
	return context, m
}

// BuildMessages returns the ordered role-tagged blocks for a generation
// call: the stable preamble, the dynamic context, an acknowledgment
// placeholder keeping the stable/dynamic boundary crisp, then the new user
// message if present.
func (b *Builder) BuildMessages(userMessage string, maxEvents int) []core.Message {
	context, _ := b.BuildContext(maxEvents)
	messages := []core.Message{
		{Role: core.RoleSystem, Content: systemPreamble},
		{Role: core.RoleUser, Content: context},
		{Role: core.RoleAssistant, Content: ack},
	}
	if userMessage != "" {
		messages = append(messages, core.Message{Role: core.RoleUser, Content: userMessage})
	}
	return messages
}

// EstimateSize estimates the token footprint of text. It uses the cl100k
// tokenizer when available and falls back to the chars/4 heuristic; either
// way this is budgeting guidance, not exact accounting.
func (b *Builder) EstimateSize(text string) int {
	b.encOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			b.enc = enc
		}
	})
	if b.enc != nil {
		return len(b.enc.Encode(text, nil, nil))
	}
	return len(text) / 4
}

// FormatEvent renders one event as a single deterministic context line.
// Compressed rendering truncates long content for events outside the recent
// window.
func FormatEvent(ev core.Event, compress bool) string {
	switch ev.Kind {
	case core.KindUser:
		msg := ev.PayloadString("message")
		if compress {
			msg = util.Truncate(msg, 200)
		}
		return "User: " + msg
	case core.KindPlan:
		plan := ev.PayloadString("plan")
		if compress {
			plan = util.Truncate(plan, 100)
		}
		return "[Plan: " + plan + "]"
	case core.KindAction:
		tool := ev.PayloadString("tool")
		if compress {
			return "[Action: " + tool + "]"
		}
		return fmt.Sprintf("[Action: %s - %s]", tool, ev.PayloadString("action"))
	case core.KindObservation:
		if errMsg := ev.PayloadString("error"); errMsg != "" {
			if compress {
				return "[Result: Error - " + util.Truncate(errMsg, 50) + "]"
			}
			return "[Result: Error - " + errMsg + "]"
		}
		result := fmt.Sprintf("%v", ev.Payload["result"])
		if compress {
			result = util.Truncate(result, 100)
		}
		return "[Result: " + result + "]"
	case core.KindError:
		errMsg := ev.PayloadString("error")
		if compress {
			errMsg = util.Truncate(errMsg, 50)
		}
		return fmt.Sprintf("[Error in %s: %s]", ev.PayloadString("context"), errMsg)
	case core.KindThought:
		text := ev.PayloadString("text")
		if compress {
			text = util.Truncate(text, 100)
		}
		return "[Thought: " + text + "]"
	case core.KindComplete:
		return "[Complete: " + ev.PayloadString("summary") + "]"
	default:
		return fmt.Sprintf("[%s]", ev.Kind)
	}
}

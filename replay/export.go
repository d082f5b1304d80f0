package replay

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hupe1980/sessionmesh/core"
	"github.com/hupe1980/sessionmesh/internal/util"
)

// Format selects the transcript rendering.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatText     Format = "text"
	FormatJSON     Format = "json"
)

// Transcript is the JSON export shape.
type Transcript struct {
	SessionID   string       `json:"session_id"`
	TotalEvents int          `json:"total_events"`
	Events      []core.Event `json:"events"`
	Tasks       []core.Task  `json:"tasks,omitempty"`
}

// Highlights condenses a session into its key moments.
type Highlights struct {
	SessionID        string   `json:"session_id"`
	FirstUserMessage string   `json:"first_user_message,omitempty"`
	FinalSummary     string   `json:"final_summary,omitempty"`
	ToolsUsed        []string `json:"tools_used,omitempty"`
	GoalsAchieved    []string `json:"goals_achieved,omitempty"`
	Errors           []string `json:"errors,omitempty"`
}

// ExportTranscript renders the full log in the requested format. Every event
// appears exactly once, in append order.
func ExportTranscript(sessionID string, log *core.EventLog, tasks []core.Task, format Format) (string, error) {
	events := log.Events()
	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(Transcript{
			SessionID:   sessionID,
			TotalEvents: len(events),
			Events:      events,
			Tasks:       tasks,
		}, "", "  ")
		if err != nil {
			return "", err
		}
		return string(data), nil
	case FormatText:
		return exportText(sessionID, events), nil
	case FormatMarkdown:
		return exportMarkdown(sessionID, events, tasks), nil
	default:
		return "", fmt.Errorf("unknown transcript format: %q", format)
	}
}

func exportMarkdown(sessionID string, events []core.Event, tasks []core.Task) string {
	var lines []string
	lines = append(lines,
		fmt.Sprintf("# Session %s", sessionID),
		"",
		fmt.Sprintf("**Total Events:** %d", len(events)),
		"",
		"---",
		"",
	)

	if len(tasks) > 0 {
		lines = append(lines, "## Goals")
		for _, t := range tasks {
			marker := "[ ]"
			if t.Status == core.TaskCompleted {
				marker = "[x]"
			}
			lines = append(lines, fmt.Sprintf("- %s %s (%s)", marker, t.Description, t.Status))
		}
		lines = append(lines, "")
	}

	lines = append(lines, "## Timeline", "")
	for _, ev := range events {
		switch ev.Kind {
		case core.KindUser:
			lines = append(lines, "### User", "> "+ev.PayloadString("message"))
		case core.KindPlan:
			lines = append(lines, "### Plan", ev.PayloadString("plan"))
		case core.KindAction:
			lines = append(lines, fmt.Sprintf("### Tool Call: %s", ev.PayloadString("tool")))
			if params, ok := ev.Payload["params"]; ok {
				if data, err := json.MarshalIndent(params, "", "  "); err == nil {
					lines = append(lines, fmt.Sprintf("```json\n%s\n```", data))
				}
			}
		case core.KindObservation:
			if errMsg := ev.PayloadString("error"); errMsg != "" {
				lines = append(lines, "### Result (failed)", fmt.Sprintf("```\n%s\n```", util.Truncate(errMsg, 300)))
			} else {
				lines = append(lines, "### Result", fmt.Sprintf("```\n%s\n```", util.Truncate(fmt.Sprintf("%v", ev.Payload["result"]), 300)))
			}
		case core.KindError:
			lines = append(lines, "### Error", util.Truncate(ev.PayloadString("error"), 300))
		case core.KindThought:
			lines = append(lines, "### Thought", util.Truncate(ev.PayloadString("text"), 500))
		case core.KindComplete:
			lines = append(lines, "### Complete", ev.PayloadString("summary"))
		default:
			lines = append(lines, fmt.Sprintf("### %s", ev.Kind))
		}
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

func exportText(sessionID string, events []core.Event) string {
	var lines []string
	lines = append(lines,
		fmt.Sprintf("SESSION: %s", sessionID),
		strings.Repeat("=", 50),
		"",
	)
	for _, ev := range events {
		lines = append(lines, fmt.Sprintf("[%s]", strings.ToUpper(string(ev.Kind))))
		lines = append(lines, util.Truncate(eventContent(ev), 200), "")
	}
	return strings.Join(lines, "\n")
}

// eventContent picks the most useful payload field for flat rendering.
func eventContent(ev core.Event) string {
	switch ev.Kind {
	case core.KindUser:
		return ev.PayloadString("message")
	case core.KindPlan:
		return ev.PayloadString("plan")
	case core.KindAction:
		return fmt.Sprintf("%s (%s)", ev.PayloadString("action"), ev.PayloadString("tool"))
	case core.KindObservation:
		if errMsg := ev.PayloadString("error"); errMsg != "" {
			return "error: " + errMsg
		}
		return fmt.Sprintf("%v", ev.Payload["result"])
	case core.KindError:
		return ev.PayloadString("error")
	case core.KindThought:
		return ev.PayloadString("text")
	case core.KindComplete:
		return ev.PayloadString("summary")
	default:
		return ""
	}
}

// BuildHighlights condenses the log into first message, final summary, tools
// used, completed goals and recorded errors.
func BuildHighlights(sessionID string, log *core.EventLog, tasks []core.Task) Highlights {
	h := Highlights{SessionID: sessionID}
	seen := make(map[string]bool)
	for _, ev := range log.Events() {
		switch ev.Kind {
		case core.KindUser:
			if h.FirstUserMessage == "" {
				h.FirstUserMessage = util.Truncate(ev.PayloadString("message"), 200)
			}
		case core.KindAction:
			if tool := ev.PayloadString("tool"); tool != "" && !seen[tool] {
				seen[tool] = true
				h.ToolsUsed = append(h.ToolsUsed, tool)
			}
		case core.KindError:
			h.Errors = append(h.Errors, util.Truncate(ev.PayloadString("error"), 100))
		case core.KindComplete:
			h.FinalSummary = util.Truncate(ev.PayloadString("summary"), 300)
		}
	}
	for _, t := range tasks {
		if t.Status == core.TaskCompleted {
			h.GoalsAchieved = append(h.GoalsAchieved, t.Description)
		}
	}
	return h
}

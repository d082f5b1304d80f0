package research

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/hupe1980/sessionmesh/agent"
	"github.com/hupe1980/sessionmesh/core"
	"github.com/hupe1980/sessionmesh/internal/util"
	"github.com/hupe1980/sessionmesh/logging"
	"github.com/hupe1980/sessionmesh/session"
)

// TopicStatus is the per-topic outcome inside a report.
type TopicStatus string

const (
	TopicCompleted TopicStatus = "completed"
	TopicFailed    TopicStatus = "failed"
)

// TopicResult carries one topic's outcome. Results preserve input topic
// order regardless of completion order.
type TopicResult struct {
	Topic     string      `json:"topic"`
	SessionID string      `json:"session_id"`
	Status    TopicStatus `json:"status"`
	Summary   string      `json:"summary,omitempty"`
	Error     string      `json:"error,omitempty"`
}

// Report aggregates a wide research fan-out.
type Report struct {
	ID         string        `json:"id"`
	Topics     []TopicResult `json:"topics"`
	Completed  int           `json:"completed"`
	Failed     int           `json:"failed"`
	Synthesis  string        `json:"synthesis"`
	DurationMS int64         `json:"duration_ms"`
	CreatedAt  time.Time     `json:"created_at"`
}

const synthesisPrompt = `You are a research analyst. Synthesize these
findings into a comprehensive report integrating every topic. Respond with
the synthesis text only.`

// Options configure a Coordinator.
type Options struct {
	// Generator synthesizes the final summary. When nil the summaries are
	// concatenated instead.
	Generator core.Generator
	// Logger defaults to NoOpLogger.
	Logger logging.Logger
}

// Coordinator runs parallel per-topic sub-runs. Every sub-run gets its own
// session so siblings never contend on a workspace entry or task counter.
type Coordinator struct {
	service      *session.Service
	orchestrator *agent.Orchestrator
	generator    core.Generator
	logger       logging.Logger
}

// NewCoordinator constructs a Coordinator.
func NewCoordinator(service *session.Service, orchestrator *agent.Orchestrator, optFns ...func(o *Options)) *Coordinator {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Coordinator{
		service:      service,
		orchestrator: orchestrator,
		generator:    opts.Generator,
		logger:       opts.Logger,
	}
}

// Run launches one sub-run per topic, at most concurrencyCap in flight, and
// waits for all of them. A failed sibling never cancels the others; its
// failure is carried in the report instead. The topic list must be non-empty
// and concurrencyCap positive.
func (c *Coordinator) Run(ctx context.Context, topics []string, concurrencyCap int) (Report, error) {
	if len(topics) == 0 {
		return Report{}, errors.New("no topics")
	}
	if concurrencyCap <= 0 {
		return Report{}, fmt.Errorf("invalid concurrency cap: %d", concurrencyCap)
	}

	start := time.Now()
	reportID := util.NewID()
	results := make([]TopicResult, len(topics))

	sem := semaphore.NewWeighted(int64(concurrencyCap))
	var wg sync.WaitGroup
	for i, topic := range topics {
		wg.Add(1)
		go func(i int, topic string) {
			defer wg.Done()
			if err := sem.Acquire(ctx, 1); err != nil {
				results[i] = TopicResult{Topic: topic, Status: TopicFailed, Error: err.Error()}
				return
			}
			defer sem.Release(1)
			results[i] = c.runTopic(ctx, reportID, topic)
		}(i, topic)
	}
	wg.Wait()

	report := Report{
		ID:        reportID,
		Topics:    results,
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	for _, r := range results {
		if r.Status == TopicCompleted {
			report.Completed++
		} else {
			report.Failed++
		}
	}
	report.Synthesis = c.synthesize(ctx, results)
	report.DurationMS = time.Since(start).Milliseconds()

	c.logger.Info("wide research finished",
		"report_id", reportID,
		"topics", len(topics),
		"completed", report.Completed,
		"failed", report.Failed,
	)
	return report, nil
}

// runTopic executes one isolated sub-run, capturing any failure as data.
func (c *Coordinator) runTopic(ctx context.Context, reportID, topic string) TopicResult {
	sessionID := fmt.Sprintf("research-%s-%s", reportID, util.NewID())
	sess, err := c.service.Create(ctx, sessionID)
	if err != nil {
		return TopicResult{Topic: topic, SessionID: sessionID, Status: TopicFailed, Error: err.Error()}
	}
	defer func() {
		if err := c.service.Destroy(context.Background(), sessionID); err != nil {
			c.logger.Warn("sub-run session teardown failed", "session_id", sessionID, "error", err.Error())
		}
	}()

	sess.Log.Append(core.NewUserEvent(topic))
	res, err := c.orchestrator.Run(ctx, sess, topic)
	if err != nil {
		return TopicResult{Topic: topic, SessionID: sessionID, Status: TopicFailed, Error: err.Error()}
	}
	return TopicResult{Topic: topic, SessionID: sessionID, Status: TopicCompleted, Summary: res.Summary}
}

// synthesize builds the aggregate summary from successful topics only. With
// no generator, or when the call fails, the summaries are concatenated.
func (c *Coordinator) synthesize(ctx context.Context, results []TopicResult) string {
	var sb strings.Builder
	for _, r := range results {
		if r.Status != TopicCompleted {
			continue
		}
		fmt.Fprintf(&sb, "## %s\n%s\n\n", r.Topic, r.Summary)
	}
	findings := strings.TrimSpace(sb.String())
	if findings == "" {
		return "No topics completed successfully."
	}

	if c.generator == nil {
		return findings
	}
	out, err := c.generator.Generate(ctx, []core.Message{
		{Role: core.RoleSystem, Content: synthesisPrompt},
		{Role: core.RoleUser, Content: findings},
	})
	if err != nil || strings.TrimSpace(out) == "" {
		c.logger.Warn("synthesis call failed, falling back to concatenation")
		return findings
	}
	return out
}

package core

import (
	"context"
	"sync"
)

// Tool is the typed capability interface for extending an executor. Dispatch
// is by CanHandle over registered implementations rather than by resolving
// callables from names, so misrouted task types fail loudly with
// UnsupportedTaskError instead of invoking the wrong handler.
//
// Tool implementations should:
//   - Report stable, descriptive names
//   - Be safe for concurrent use
//   - Return failures through the AgentResult rather than panicking
type Tool interface {
	// Name returns the unique identifier for this tool.
	Name() string

	// CanHandle reports whether the tool services the given task type.
	CanHandle(taskType string) bool

	// Execute performs the task and returns a typed outcome. Errors are
	// captured in the result; Execute itself does not fail.
	Execute(ctx context.Context, task AgentTask) AgentResult
}

// Registry holds registered tools and resolves them by task type. Resolution
// is a linear scan in registration order; the first matching tool wins.
type Registry struct {
	mu    sync.RWMutex
	tools []Tool
}

// NewRegistry constructs an empty registry.
func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{}
	for _, t := range tools {
		r.Register(t)
	}
	return r
}

// Register adds a tool. Later registrations have lower dispatch priority.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools = append(r.tools, t)
}

// Resolve returns the first registered tool handling taskType.
func (r *Registry) Resolve(taskType string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.tools {
		if t.CanHandle(taskType) {
			return t, true
		}
	}
	return nil, false
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for _, t := range r.tools {
		names = append(names, t.Name())
	}
	return names
}

// FuncTool adapts a plain Go function to the Tool interface. A returned error
// is folded into AgentResult{Success: false} so tool failures stay data, not
// control flow.
type FuncTool struct {
	name  string
	types map[string]bool
	fn    func(ctx context.Context, task AgentTask) (any, error)
}

// NewFuncTool constructs a FuncTool answering to the given task types.
func NewFuncTool(name string, taskTypes []string, fn func(ctx context.Context, task AgentTask) (any, error)) *FuncTool {
	types := make(map[string]bool, len(taskTypes))
	for _, t := range taskTypes {
		types[t] = true
	}
	return &FuncTool{name: name, types: types, fn: fn}
}

// Name returns the unique tool name.
func (t *FuncTool) Name() string { return t.name }

// CanHandle implements Tool.
func (t *FuncTool) CanHandle(taskType string) bool { return t.types[taskType] }

// Execute runs the wrapped function, capturing its error into the result.
func (t *FuncTool) Execute(ctx context.Context, task AgentTask) AgentResult {
	out, err := t.fn(ctx, task)
	if err != nil {
		wrapped := &ToolExecutionError{Tool: t.name, Err: err}
		return AgentResult{TaskID: task.ID, Success: false, Error: wrapped.Error()}
	}
	return AgentResult{TaskID: task.ID, Success: true, Output: out}
}

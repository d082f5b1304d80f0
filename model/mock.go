package model

import (
	"context"
	"sync"

	"github.com/hupe1980/sessionmesh/core"
)

// Mock is a scripted core.Generator. Each Generate call consumes the next
// scripted response; once the script is exhausted the final response repeats.
// Calls are recorded for assertion. Safe for concurrent use.
type Mock struct {
	mu        sync.Mutex
	responses []string
	errs      []error
	calls     [][]core.Message
	next      int
}

// NewMock constructs a mock replaying responses in order.
func NewMock(responses ...string) *Mock {
	return &Mock{responses: responses, errs: make([]error, len(responses))}
}

// FailWith makes the i-th call return err instead of a response.
func (m *Mock) FailWith(i int, err error) *Mock {
	m.mu.Lock()
	defer m.mu.Unlock()
	for len(m.errs) <= i {
		m.errs = append(m.errs, nil)
		m.responses = append(m.responses, "")
	}
	m.errs[i] = err
	return m
}

// Generate implements core.Generator.
func (m *Mock) Generate(_ context.Context, messages []core.Message) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, append([]core.Message(nil), messages...))
	i := m.next
	if i >= len(m.responses) {
		i = len(m.responses) - 1
	}
	if m.next < len(m.responses) {
		m.next++
	}
	if i < 0 {
		return "", nil
	}
	if err := m.errs[i]; err != nil {
		return "", err
	}
	return m.responses[i], nil
}

// Calls returns every message slice passed to Generate so far.
func (m *Mock) Calls() [][]core.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]core.Message(nil), m.calls...)
}

// CallCount returns the number of Generate invocations.
func (m *Mock) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

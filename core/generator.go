package core

import "context"

// Role tags one message block in an assembled prompt.
type Role string

const (
	// RoleSystem carries the stable instruction prefix.
	RoleSystem Role = "system"
	// RoleUser carries user-originated or dynamic context text.
	RoleUser Role = "user"
	// RoleAssistant carries model-originated text, including the
	// acknowledgment placeholder that pins the stable/dynamic boundary.
	RoleAssistant Role = "assistant"
)

// Message is one role-tagged text block of an assembled prompt.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Generator is the black-box text generation contract. The core never
// inspects how text is produced; hosts plug in a real backend (see the model
// subpackages) or a scripted mock for tests.
type Generator interface {
	Generate(ctx context.Context, messages []Message) (string, error)
}

// GeneratorFunc adapts a plain function to the Generator interface.
type GeneratorFunc func(ctx context.Context, messages []Message) (string, error)

// Generate implements Generator.
func (f GeneratorFunc) Generate(ctx context.Context, messages []Message) (string, error) {
	return f(ctx, messages)
}

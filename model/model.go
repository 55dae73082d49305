package model

import (
	"context"
	"fmt"
	"strings"
)

// Request captures one normalized model invocation.
type Request struct {
	// Instructions is the system prompt, may be empty.
	Instructions string `json:"instructions,omitempty"`

	// Prompt is the user message.
	Prompt string `json:"prompt"`

	// Stream requests incremental partial responses before the final one.
	Stream bool `json:"stream,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a (partial or final) chunk emitted by a streaming model.
type Response struct {
	ID           string      `json:"id,omitempty"`
	Partial      bool        `json:"partial"`
	Text         string      `json:"text"`
	FinishReason string      `json:"finish_reason,omitempty"` // "stop", "length", etc.
	Usage        *TokenUsage `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "openai", "anthropic", "mock", etc.
}

// Model is the minimal interface required to drive generation.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// Complete drains one Generate exchange and returns the concatenated final
// text. Partial chunks are accumulated; a final (non-partial) response
// replaces the accumulation with its full text when present.
func Complete(ctx context.Context, m Model, req Request) (string, error) {
	respCh, errCh := m.Generate(ctx, req)

	var sb strings.Builder
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case err, ok := <-errCh:
			if ok && err != nil {
				return "", err
			}
			errCh = nil
		case resp, ok := <-respCh:
			if !ok {
				// The producer may have queued an error before closing.
				if errCh != nil {
					if err, ok := <-errCh; ok && err != nil {
						return "", err
					}
				}
				return sb.String(), nil
			}
			if resp.Partial {
				sb.WriteString(resp.Text)
				continue
			}
			if resp.Text != "" {
				sb.Reset()
				sb.WriteString(resp.Text)
			}
		}
	}
}

// MockModel is a lightweight in-memory Model useful for tests & examples.
type MockModel struct {
	info      Info
	responses map[string]string
}

// NewMockModel constructs a MockModel.
func NewMockModel(name string) *MockModel {
	return &MockModel{
		info:      Info{Name: name, Provider: "mock"},
		responses: make(map[string]string),
	}
}

// AddResponse registers a deterministic canned completion for any prompt
// containing the given substring.
func (m *MockModel) AddResponse(promptContains, response string) {
	m.responses[promptContains] = response
}

// Generate implements Model; emits optional streaming char chunks then the
// final response.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(respCh)
		defer close(errCh)

		if req.Prompt == "" {
			errCh <- fmt.Errorf("no prompt provided")
			return
		}

		if err := ctx.Err(); err != nil {
			errCh <- err
			return
		}

		full := ""
		for needle, canned := range m.responses {
			if strings.Contains(req.Prompt, needle) {
				full = canned
				break
			}
		}
		if full == "" {
			full = fmt.Sprintf("Mock response to: %s", req.Prompt)
		}

		if req.Stream {
			for _, r := range full {
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case respCh <- Response{Partial: true, Text: string(r)}:
				}
			}
		}

		respCh <- Response{Partial: false, Text: full, FinishReason: "stop"}
	}()

	return respCh, errCh
}

// Info implements Model interface.
func (m *MockModel) Info() Info { return m.info }

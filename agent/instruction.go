package agent

import "github.com/taskmesh/taskmesh/internal/util"

// Provider supplies dynamic instruction text at runtime, derived from the
// per-task state passed to the agent.
type Provider interface {
	Instruction(state map[string]any) (string, error)
}

// ProviderFunc is a functional adapter for Provider.
type ProviderFunc func(state map[string]any) (string, error)

// Instruction implements Provider.
func (f ProviderFunc) Instruction(state map[string]any) (string, error) { return f(state) }

// Instruction is either a static template string or a dynamic provider.
// Static text may contain Go template markers which are rendered against the
// task state on every resolve.
type Instruction struct {
	text     string
	provider Provider
}

// NewInstruction creates an Instruction from a static (possibly templated)
// string.
func NewInstruction(text string) Instruction { return Instruction{text: text} }

// NewInstructionFromProvider creates an Instruction from a dynamic provider.
func NewInstructionFromProvider(p Provider) Instruction { return Instruction{provider: p} }

// NewInstructionFromFunc creates an Instruction from a function.
func NewInstructionFromFunc(f func(state map[string]any) (string, error)) Instruction {
	return Instruction{provider: ProviderFunc(f)}
}

// IsStatic reports whether the instruction is backed by a static string.
func (i Instruction) IsStatic() bool { return i.provider == nil }

// Resolve returns the instruction text for the given task state, invoking the
// provider or rendering the static template as appropriate.
func (i Instruction) Resolve(state map[string]any) (string, error) {
	if i.provider != nil {
		return i.provider.Instruction(state)
	}
	return util.RenderTemplate(i.text, state)
}

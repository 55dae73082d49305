package agent

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstruction_Static(t *testing.T) {
	i := NewInstruction("You are a careful reviewer.")
	assert.True(t, i.IsStatic())

	text, err := i.Resolve(nil)
	require.NoError(t, err)
	assert.Equal(t, "You are a careful reviewer.", text)
}

func TestInstruction_TemplateRendering(t *testing.T) {
	i := NewInstruction("Review the {{.artifact}} for {{.audience | default \"everyone\"}}.")

	text, err := i.Resolve(map[string]any{"artifact": "deployment plan"})
	require.NoError(t, err)
	assert.Equal(t, "Review the deployment plan for everyone.", text)
}

func TestInstruction_Provider(t *testing.T) {
	i := NewInstructionFromFunc(func(state map[string]any) (string, error) {
		if state == nil {
			return "", errors.New("no state")
		}
		return "dynamic", nil
	})
	assert.False(t, i.IsStatic())

	text, err := i.Resolve(map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "dynamic", text)

	_, err = i.Resolve(nil)
	assert.Error(t, err)
}

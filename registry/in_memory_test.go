package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmesh/taskmesh/core"
)

func TestInMemoryRegistry_Resolve(t *testing.T) {
	r := NewInMemoryRegistry()
	r.Register(core.AgentIdentity{ID: "agent-1", Name: "researcher", Capabilities: []string{"search"}})

	identity, err := r.Resolve(context.Background(), "agent-1")
	require.NoError(t, err)
	assert.Equal(t, "researcher", identity.Name)

	_, err = r.Resolve(context.Background(), "missing")
	assert.ErrorIs(t, err, core.ErrAgentNotFound)
}

func TestInMemoryRegistry_InactiveAgent(t *testing.T) {
	r := NewInMemoryRegistry()
	r.Register(core.AgentIdentity{ID: "agent-1"})
	r.SetStatus("agent-1", core.AgentInactive)

	_, err := r.Resolve(context.Background(), "agent-1")
	assert.ErrorIs(t, err, core.ErrAgentInactive)

	r.SetStatus("agent-1", core.AgentActive)
	_, err = r.Resolve(context.Background(), "agent-1")
	assert.NoError(t, err)
}

func TestInMemoryRegistry_Deregister(t *testing.T) {
	r := NewInMemoryRegistry()
	r.Register(core.AgentIdentity{ID: "agent-1"})
	r.Deregister("agent-1")

	_, err := r.Resolve(context.Background(), "agent-1")
	assert.ErrorIs(t, err, core.ErrAgentNotFound)
}

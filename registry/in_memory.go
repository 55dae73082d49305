// Package registry provides the agent directory: resolution of agent ids to
// live identities. The in-memory implementation suits tests and single-process
// deployments; production systems typically back this with a shared store.
package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/taskmesh/taskmesh/core"
)

// entry pairs an identity with its availability status.
type entry struct {
	identity core.AgentIdentity
	status   core.AgentStatus
}

// InMemoryRegistry is a process-local core.Registry. It is safe for
// concurrent access.
type InMemoryRegistry struct {
	mu     sync.RWMutex
	agents map[string]entry
}

// NewInMemoryRegistry constructs an empty registry.
func NewInMemoryRegistry() *InMemoryRegistry {
	return &InMemoryRegistry{agents: make(map[string]entry)}
}

// Register adds or replaces an agent identity marked active.
func (r *InMemoryRegistry) Register(identity core.AgentIdentity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[identity.ID] = entry{identity: identity, status: core.AgentActive}
}

// SetStatus updates an agent's availability. Unknown ids are ignored.
func (r *InMemoryRegistry) SetStatus(agentID string, status core.AgentStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.agents[agentID]; ok {
		e.status = status
		r.agents[agentID] = e
	}
}

// Deregister removes an agent from the directory.
func (r *InMemoryRegistry) Deregister(agentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.agents, agentID)
}

// Resolve implements core.Registry. Missing agents yield ErrAgentNotFound,
// inactive agents ErrAgentInactive; both wrap the agent id for context.
func (r *InMemoryRegistry) Resolve(_ context.Context, agentID string) (core.AgentIdentity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.agents[agentID]
	if !ok {
		return core.AgentIdentity{}, fmt.Errorf("resolve %s: %w", agentID, core.ErrAgentNotFound)
	}
	if e.status != core.AgentActive {
		return core.AgentIdentity{}, fmt.Errorf("resolve %s: %w", agentID, core.ErrAgentInactive)
	}

	return e.identity, nil
}

package core

import (
	"sync"
	"time"
)

// CoordinationStrategy is the topology used to fan a task out to a team.
type CoordinationStrategy string

// Coordination strategies.
const (
	StrategySequential    CoordinationStrategy = "sequential"
	StrategyParallel      CoordinationStrategy = "parallel"
	StrategyHierarchical  CoordinationStrategy = "hierarchical"
	StrategyCollaborative CoordinationStrategy = "collaborative"
	StrategyPipeline      CoordinationStrategy = "pipeline"
)

// TeamStatus tracks whether a team can accept work.
type TeamStatus string

// Team lifecycle states.
const (
	TeamDraft  TeamStatus = "draft"
	TeamActive TeamStatus = "active"
	TeamPaused TeamStatus = "paused"
)

// TeamMember is one agent's membership record inside a team.
type TeamMember struct {
	AgentID string `json:"agent_id"`
	Name    string `json:"name"`
	Role    string `json:"role"`
	IsLead  bool   `json:"is_lead"`
}

// Team groups agents under a coordination strategy. Membership is mutated
// under a single-writer assumption; concurrent reads are safe at all times.
//
// Invariant: at most one member has IsLead set. SetLead atomically clears the
// previous lead before assigning the new one.
type Team struct {
	ID       string               `json:"id"`
	Name     string               `json:"name"`
	Strategy CoordinationStrategy `json:"coordination_strategy"`
	Members  []TeamMember         `json:"members"`
	Status   TeamStatus           `json:"status"`
	Created  time.Time            `json:"created"`

	mu sync.RWMutex
}

// NewTeam creates a draft team with a generated id.
func NewTeam(name string, strategy CoordinationStrategy, members ...TeamMember) *Team {
	return &Team{
		ID:       NewID(),
		Name:     name,
		Strategy: strategy,
		Members:  members,
		Status:   TeamDraft,
		Created:  time.Now().UTC(),
	}
}

// Activate marks the team as ready to accept work.
func (t *Team) Activate() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Status = TeamActive
}

// CurrentStatus returns the team status under the read lock.
func (t *Team) CurrentStatus() TeamStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.Status
}

// AddMember appends a membership record.
func (t *Team) AddMember(m TeamMember) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Members = append(t.Members, m)
}

// SetLead designates agentID as the team lead, clearing any previous lead in
// the same critical section. Returns false if the agent is not a member.
func (t *Team) SetLead(agentID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	idx := -1
	for i := range t.Members {
		if t.Members[i].AgentID == agentID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}

	for i := range t.Members {
		t.Members[i].IsLead = false
	}
	t.Members[idx].IsLead = true

	return true
}

// Lead returns the current lead member, if any.
func (t *Team) Lead() (TeamMember, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, m := range t.Members {
		if m.IsLead {
			return m, true
		}
	}
	return TeamMember{}, false
}

// MemberList returns a defensive copy of the membership slice.
func (t *Team) MemberList() []TeamMember {
	t.mu.RLock()
	defer t.mu.RUnlock()
	members := make([]TeamMember, len(t.Members))
	copy(members, t.Members)
	return members
}

// MembersByRole returns all members holding the given role, preserving
// membership order.
func (t *Team) MembersByRole(role string) []TeamMember {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var members []TeamMember
	for _, m := range t.Members {
		if m.Role == role {
			members = append(members, m)
		}
	}
	return members
}

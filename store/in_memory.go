// Package store provides persistence for plans, teams and workflow run
// snapshots. The in-memory implementations here serve tests and
// single-process deployments; the redis subpackage provides the shared
// variants.
package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/taskmesh/taskmesh/core"
)

// InMemoryStore keeps plans, teams and run snapshots in process memory. It
// implements core.PlanStore, core.TeamStore and core.RunStore and is safe for
// concurrent use.
type InMemoryStore struct {
	mu    sync.RWMutex
	plans map[string]*core.Plan
	teams map[string]*core.Team
	runs  map[string]core.RunSnapshot
}

// NewInMemoryStore creates an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		plans: make(map[string]*core.Plan),
		teams: make(map[string]*core.Team),
		runs:  make(map[string]core.RunSnapshot),
	}
}

// PutPlan implements core.PlanStore.
func (s *InMemoryStore) PutPlan(_ context.Context, plan *core.Plan) error {
	if plan == nil || plan.ID == "" {
		return fmt.Errorf("plan must have an id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plans[plan.ID] = plan
	return nil
}

// GetPlan implements core.PlanStore.
func (s *InMemoryStore) GetPlan(_ context.Context, id string) (*core.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	plan, ok := s.plans[id]
	if !ok {
		return nil, fmt.Errorf("plan %s not found", id)
	}
	return plan, nil
}

// PutTeam implements core.TeamStore.
func (s *InMemoryStore) PutTeam(_ context.Context, team *core.Team) error {
	if team == nil || team.ID == "" {
		return fmt.Errorf("team must have an id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teams[team.ID] = team
	return nil
}

// GetTeam implements core.TeamStore.
func (s *InMemoryStore) GetTeam(_ context.Context, id string) (*core.Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	team, ok := s.teams[id]
	if !ok {
		return nil, fmt.Errorf("team %s not found", id)
	}
	return team, nil
}

// ListTeams implements core.TeamStore.
func (s *InMemoryStore) ListTeams(_ context.Context) ([]*core.Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	teams := make([]*core.Team, 0, len(s.teams))
	for _, t := range s.teams {
		teams = append(teams, t)
	}
	return teams, nil
}

// DeleteTeam implements core.TeamStore.
func (s *InMemoryStore) DeleteTeam(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.teams[id]; !ok {
		return fmt.Errorf("team %s not found", id)
	}
	delete(s.teams, id)
	return nil
}

// PutRun implements core.RunStore.
func (s *InMemoryStore) PutRun(_ context.Context, snapshot core.RunSnapshot) error {
	if snapshot.ID == "" {
		return fmt.Errorf("run snapshot must have an id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[snapshot.ID] = snapshot
	return nil
}

// GetRun implements core.RunStore.
func (s *InMemoryStore) GetRun(_ context.Context, id string) (core.RunSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return core.RunSnapshot{}, fmt.Errorf("run %s not found", id)
	}
	return run, nil
}

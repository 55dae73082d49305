// Package redis implements the plan, team and run stores on Redis so several
// pipeline processes can share one persistence layer. Records are stored as
// JSON strings under a common key prefix; the team index is a set keyed by
// team id.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/taskmesh/taskmesh/core"
)

const keyPrefix = "taskmesh:"

// Store implements core.PlanStore, core.TeamStore and core.RunStore on a
// Redis client.
type Store struct {
	rdb *redis.Client
}

// New wraps an existing Redis client.
func New(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

// Connect parses a Redis URL, dials it and verifies the connection.
func Connect(ctx context.Context, redisURL string) (*Store, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Store{rdb: rdb}, nil
}

// Close shuts down the underlying connection.
func (s *Store) Close() error {
	return s.rdb.Close()
}

func planKey(id string) string { return keyPrefix + "plan:" + id }
func teamKey(id string) string { return keyPrefix + "team:" + id }
func runKey(id string) string  { return keyPrefix + "run:" + id }

const teamIndexKey = keyPrefix + "teams"

// PutPlan implements core.PlanStore.
func (s *Store) PutPlan(ctx context.Context, plan *core.Plan) error {
	if plan == nil || plan.ID == "" {
		return fmt.Errorf("plan must have an id")
	}
	return s.putJSON(ctx, planKey(plan.ID), plan)
}

// GetPlan implements core.PlanStore.
func (s *Store) GetPlan(ctx context.Context, id string) (*core.Plan, error) {
	var plan core.Plan
	if err := s.getJSON(ctx, planKey(id), &plan); err != nil {
		return nil, fmt.Errorf("plan %s: %w", id, err)
	}
	return &plan, nil
}

// PutTeam implements core.TeamStore.
func (s *Store) PutTeam(ctx context.Context, team *core.Team) error {
	if team == nil || team.ID == "" {
		return fmt.Errorf("team must have an id")
	}
	if err := s.putJSON(ctx, teamKey(team.ID), team); err != nil {
		return err
	}
	return s.rdb.SAdd(ctx, teamIndexKey, team.ID).Err()
}

// GetTeam implements core.TeamStore.
func (s *Store) GetTeam(ctx context.Context, id string) (*core.Team, error) {
	var team core.Team
	if err := s.getJSON(ctx, teamKey(id), &team); err != nil {
		return nil, fmt.Errorf("team %s: %w", id, err)
	}
	return &team, nil
}

// ListTeams implements core.TeamStore. Index entries whose record has expired
// or been removed out of band are skipped.
func (s *Store) ListTeams(ctx context.Context) ([]*core.Team, error) {
	ids, err := s.rdb.SMembers(ctx, teamIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}

	teams := make([]*core.Team, 0, len(ids))
	for _, id := range ids {
		team, err := s.GetTeam(ctx, id)
		if err != nil {
			continue
		}
		teams = append(teams, team)
	}
	return teams, nil
}

// DeleteTeam implements core.TeamStore.
func (s *Store) DeleteTeam(ctx context.Context, id string) error {
	deleted, err := s.rdb.Del(ctx, teamKey(id)).Result()
	if err != nil {
		return fmt.Errorf("delete team %s: %w", id, err)
	}
	if deleted == 0 {
		return fmt.Errorf("team %s not found", id)
	}
	return s.rdb.SRem(ctx, teamIndexKey, id).Err()
}

// PutRun implements core.RunStore.
func (s *Store) PutRun(ctx context.Context, snapshot core.RunSnapshot) error {
	if snapshot.ID == "" {
		return fmt.Errorf("run snapshot must have an id")
	}
	return s.putJSON(ctx, runKey(snapshot.ID), snapshot)
}

// GetRun implements core.RunStore.
func (s *Store) GetRun(ctx context.Context, id string) (core.RunSnapshot, error) {
	var snapshot core.RunSnapshot
	if err := s.getJSON(ctx, runKey(id), &snapshot); err != nil {
		return core.RunSnapshot{}, fmt.Errorf("run %s: %w", id, err)
	}
	return snapshot, nil
}

func (s *Store) putJSON(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	if err := s.rdb.Set(ctx, key, data, 0).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (s *Store) getJSON(ctx context.Context, key string, out any) error {
	data, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return fmt.Errorf("not found")
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

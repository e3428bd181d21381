package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aescanero/hubcycle/pkg/domain"
	"github.com/aescanero/hubcycle/pkg/ports"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// StateStorage implements StateStorage using Redis. Agent snapshots of a run
// live in one hash; reports are plain keys. Every key carries the TTL.
type StateStorage struct {
	client *redis.Client
	logger *zap.Logger
	ttl    time.Duration
}

// NewStateStorage creates a new Redis state storage
func NewStateStorage(client *redis.Client, ttl time.Duration, logger *zap.Logger) *StateStorage {
	return &StateStorage{
		client: client,
		logger: logger,
		ttl:    ttl,
	}
}

// SaveAgent writes the snapshot into the run's agent hash
func (s *StateStorage) SaveAgent(ctx context.Context, snap *domain.AgentSnapshot) error {
	key := getAgentsKey(snap.RunID)

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal agent snapshot: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, snap.Name, data)
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save agent snapshot: %w", err)
	}

	s.logger.Debug("agent snapshot saved",
		zap.String("run_id", snap.RunID),
		zap.String("agent", snap.Name),
		zap.String("state", string(snap.State)))

	return nil
}

// GetAgent reads one agent's latest snapshot
func (s *StateStorage) GetAgent(ctx context.Context, runID, name string) (*domain.AgentSnapshot, error) {
	data, err := s.client.HGet(ctx, getAgentsKey(runID), name).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: agent %s/%s", ports.ErrNotFound, runID, name)
		}
		return nil, fmt.Errorf("failed to get agent snapshot: %w", err)
	}

	var snap domain.AgentSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal agent snapshot: %w", err)
	}

	return &snap, nil
}

// ListAgents returns every agent of a run, sorted by name
func (s *StateStorage) ListAgents(ctx context.Context, runID string) ([]*domain.AgentSnapshot, error) {
	fields, err := s.client.HGetAll(ctx, getAgentsKey(runID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list agent snapshots: %w", err)
	}

	snaps := make([]*domain.AgentSnapshot, 0, len(fields))
	for name, data := range fields {
		var snap domain.AgentSnapshot
		if err := json.Unmarshal([]byte(data), &snap); err != nil {
			s.logger.Warn("skipping unreadable agent snapshot",
				zap.String("run_id", runID),
				zap.String("agent", name),
				zap.Error(err))
			continue
		}
		snaps = append(snaps, &snap)
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].Name < snaps[j].Name })

	return snaps, nil
}

// SaveReport stores the cycle report of a run
func (s *StateStorage) SaveReport(ctx context.Context, report *domain.CycleReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	if err := s.client.Set(ctx, getReportKey(report.RunID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}

	return nil
}

// GetReport reads the cycle report of a run
func (s *StateStorage) GetReport(ctx context.Context, runID string) (*domain.CycleReport, error) {
	data, err := s.client.Get(ctx, getReportKey(runID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: report %s", ports.ErrNotFound, runID)
		}
		return nil, fmt.Errorf("failed to get report: %w", err)
	}

	var report domain.CycleReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report: %w", err)
	}

	return &report, nil
}

// ListRuns returns the IDs of every run with a stored report
func (s *StateStorage) ListRuns(ctx context.Context) ([]string, error) {
	prefix := "hubcycle:report:"

	var cursor uint64
	var runIDs []string

	for {
		batch, next, err := s.client.Scan(ctx, cursor, prefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan keys: %w", err)
		}

		for _, key := range batch {
			if len(key) > len(prefix) {
				runIDs = append(runIDs, key[len(prefix):])
			}
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	sort.Strings(runIDs)
	return runIDs, nil
}

// getAgentsKey returns the Redis hash holding a run's agent snapshots
func getAgentsKey(runID string) string {
	return fmt.Sprintf("hubcycle:agents:%s", runID)
}

// getReportKey returns the Redis key of a run's report
func getReportKey(runID string) string {
	return fmt.Sprintf("hubcycle:report:%s", runID)
}

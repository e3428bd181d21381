package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aescanero/hubcycle/pkg/domain"
	"github.com/aescanero/hubcycle/pkg/ports"
)

// InMemoryStateStorage implements StateStorage using in-memory maps
type InMemoryStateStorage struct {
	agents  map[string]map[string]domain.AgentSnapshot // run ID -> agent name
	reports map[string]domain.CycleReport
	mu      sync.RWMutex
}

// NewInMemoryStateStorage creates a new in-memory state storage
func NewInMemoryStateStorage() *InMemoryStateStorage {
	return &InMemoryStateStorage{
		agents:  make(map[string]map[string]domain.AgentSnapshot),
		reports: make(map[string]domain.CycleReport),
	}
}

// SaveAgent stores a copy of the snapshot
func (s *InMemoryStateStorage) SaveAgent(ctx context.Context, snap *domain.AgentSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.agents[snap.RunID]
	if !ok {
		run = make(map[string]domain.AgentSnapshot)
		s.agents[snap.RunID] = run
	}
	stored := *snap
	stored.HubSequence = append([]string(nil), snap.HubSequence...)
	run[snap.Name] = stored
	return nil
}

// GetAgent returns a copy of one agent's latest snapshot
func (s *InMemoryStateStorage) GetAgent(ctx context.Context, runID, name string) (*domain.AgentSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.agents[runID][name]
	if !ok {
		return nil, fmt.Errorf("%w: agent %s/%s", ports.ErrNotFound, runID, name)
	}
	return &snap, nil
}

// ListAgents returns every agent of a run, sorted by name
func (s *InMemoryStateStorage) ListAgents(ctx context.Context, runID string) ([]*domain.AgentSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run := s.agents[runID]
	snaps := make([]*domain.AgentSnapshot, 0, len(run))
	for _, snap := range run {
		snap := snap
		snaps = append(snaps, &snap)
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].Name < snaps[j].Name })
	return snaps, nil
}

// SaveReport stores a copy of the report
func (s *InMemoryStateStorage) SaveReport(ctx context.Context, report *domain.CycleReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *report
	stored.Agents = append([]domain.AgentReport(nil), report.Agents...)
	s.reports[report.RunID] = stored
	return nil
}

// GetReport returns the report of a finished run
func (s *InMemoryStateStorage) GetReport(ctx context.Context, runID string) (*domain.CycleReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	report, ok := s.reports[runID]
	if !ok {
		return nil, fmt.Errorf("%w: report %s", ports.ErrNotFound, runID)
	}
	return &report, nil
}

// ListRuns returns the IDs of every run with a stored report
func (s *InMemoryStateStorage) ListRuns(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runIDs := make([]string, 0, len(s.reports))
	for id := range s.reports {
		runIDs = append(runIDs, id)
	}
	sort.Strings(runIDs)
	return runIDs, nil
}

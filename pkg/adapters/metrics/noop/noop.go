// Package noop provides a MetricsCollector that discards everything.
// This is for testing purposes only
package noop

import (
	"time"

	"github.com/aescanero/hubcycle/pkg/domain"
)

// Collector implements MetricsCollector with no-op methods
type Collector struct{}

func (Collector) RecordOperation(domain.OperationKind, domain.Status, time.Duration) {}
func (Collector) RecordHubCompleted(string)                                          {}
func (Collector) RecordRetreat(string)                                               {}
func (Collector) RecordRetry(string)                                                 {}
func (Collector) SetActiveAgents(int)                                                {}
func (Collector) ObserveCycleDuration(string, time.Duration)                         {}
func (Collector) RecordWorkerPoolStatus(int, int, int)                               {}

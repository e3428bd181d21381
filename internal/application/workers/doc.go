// Package workers implements the bounded pool that executes controller
// operations for the cycle scheduler.
//
// The worker pool manages a fixed number of goroutines that:
//   - Take submitted tasks from a buffered queue
//   - Run the task's controller calls to completion
//   - Publish the resulting status on the task's Handle
//   - Signal the submitter that a handle has completed
//
// The health monitor tracks worker status and records pool gauges.
package workers

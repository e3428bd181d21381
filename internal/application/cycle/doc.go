// Package cycle implements the hub cycle scheduler.
//
// A run proceeds in three phases:
//   - The Resolver assigns one hub-sequence template to every agent and picks
//     the agent that yields (retreats to staging) when one of its moves fails
//   - The Scheduler drives each agent through its sequence with composite
//     pick-and-place operations executed on the worker pool, reacting to each
//     completion with the interlock state machine
//   - Every agent is retracted to staging and a CycleReport is produced
//
// The scheduler loop is single-threaded: only it mutates Agent records, and
// each agent has at most one operation outstanding at any time.
package cycle

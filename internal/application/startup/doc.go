// Package startup brings the motion controller and its agents into a state
// where the hub cycle can run.
//
// Prepare performs, in order:
//   - mode check, clearing faults when the controller reports FAULT
//   - InitGroup for every agent, then BeginOperationMode
//   - a move of every agent to the staging hub (putting it on the roadmap)
//   - SetInterruptBehavior for every agent
//
// Any failure is fatal for the run.
package startup

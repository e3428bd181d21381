// Package http provides the read-only HTTP status API.
//
// The HTTP server exposes endpoints for:
//   - Health checks reflecting the run phase
//   - Agent snapshots and the cycle report of a run
//   - Prometheus metrics
package http

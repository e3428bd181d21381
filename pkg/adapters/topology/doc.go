// Package topology contains TopologyService implementations.
//
// Available implementations:
//   - file: YAML topology document on disk
//   - rest: the controller control panel's JSON API
package topology

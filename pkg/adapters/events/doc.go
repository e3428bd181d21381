// Package events provides cycle event bus implementations.
//
// Implementations:
//   - redis: Redis Streams with consumer groups
//   - memory: In-process fan-out for single-binary runs and tests
package events

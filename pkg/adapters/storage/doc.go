// Package storage provides agent snapshot and cycle report storage.
//
// Implementations:
//   - redis: Redis with JSON serialization and TTL
//   - memory: In-memory for single-binary runs and tests
package storage

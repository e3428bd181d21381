// Package controller contains MoveGateway implementations.
//
// Available implementations:
//   - commander: ASCII command client for the realtime controller (TCP, port 9999 by default)
//   - sim: in-process simulated controller for dry runs and tests
//
// Both report move results asynchronously: a move call returns a sequence
// token at once and WaitForMove blocks until the result for that token
// arrives.
package controller

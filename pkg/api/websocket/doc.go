// Package websocket provides real-time cycle event streaming via WebSocket.
//
// Clients can connect to /api/v1/runs/:run/ws to receive every lifecycle
// event of the run as JSON text messages.
package websocket

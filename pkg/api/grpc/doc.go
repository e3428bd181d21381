// Package grpc serves the standard gRPC health service, reporting whether
// the hub cycle run is healthy.
package grpc

// Package commander is a MoveGateway for the realtime controller's ASCII
// command port.
//
// Requests are single comma-separated lines:
//
//	MoveToHub,<agent>,<workstate>,<hub>,<speed>
//
// and every reply starts with the command name and a result code. Accepted
// moves carry the sequence token as the first data field; their outcome is
// pushed later as
//
//	MoveFeedback,<sequence>,<code>
package commander

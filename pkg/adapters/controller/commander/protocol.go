package commander

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aescanero/hubcycle/pkg/domain"
	"github.com/aescanero/hubcycle/pkg/ports"
)

// Command names as sent on the wire. Every request is one line of
// comma-separated fields starting with the command name; every reply starts
// with the same name followed by the result code.
const (
	cmdMoveToHub            = "MoveToHub"
	cmdMoveToPose           = "MoveToPose"
	cmdBlindMove            = "BlindMove"
	cmdGetMode              = "GetMode"
	cmdClearFaults          = "ClearFaults"
	cmdInitGroup            = "InitGroup"
	cmdBeginOperationMode   = "BeginOperationMode"
	cmdSetInterruptBehavior = "SetInterruptBehavior"

	// moveFeedback is pushed by the controller when a move finishes:
	// MoveFeedback,<sequence>,<code>
	moveFeedback = "MoveFeedback"
)

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// encode joins a command and its arguments into one request line
func encode(cmd string, args ...string) string {
	fields := append([]string{cmd}, args...)
	return strings.Join(fields, ",") + "\n"
}

func poseArgs(p domain.Pose) []string {
	out := make([]string, len(p))
	for i, v := range p {
		out[i] = formatFloat(v)
	}
	return out
}

func toleranceArgs(t domain.Tolerance) []string {
	out := make([]string, len(t))
	for i, v := range t {
		out[i] = formatFloat(v)
	}
	return out
}

func seconds(d time.Duration) string {
	return formatFloat(d.Seconds())
}

// reply is one parsed response line
type reply struct {
	cmd  string
	code domain.Status
	data []string
}

func parseReply(line string) (reply, error) {
	fields := strings.Split(strings.TrimSpace(line), ",")
	if len(fields) < 2 {
		return reply{}, fmt.Errorf("malformed reply %q", line)
	}
	code, err := strconv.Atoi(strings.TrimSpace(fields[1]))
	if err != nil {
		return reply{}, fmt.Errorf("malformed result code in %q: %w", line, err)
	}
	return reply{
		cmd:  strings.TrimSpace(fields[0]),
		code: domain.Status(code),
		data: fields[2:],
	}, nil
}

// parseFeedback decodes a MoveFeedback line
func parseFeedback(line string) (ports.Sequence, domain.Status, error) {
	fields := strings.Split(strings.TrimSpace(line), ",")
	if len(fields) != 3 || fields[0] != moveFeedback {
		return 0, 0, fmt.Errorf("malformed move feedback %q", line)
	}
	seq, err := strconv.ParseInt(strings.TrimSpace(fields[1]), 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed sequence in %q: %w", line, err)
	}
	code, err := strconv.Atoi(strings.TrimSpace(fields[2]))
	if err != nil {
		return 0, 0, fmt.Errorf("malformed result code in %q: %w", line, err)
	}
	return ports.Sequence(seq), domain.Status(code), nil
}

package commander

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aescanero/hubcycle/pkg/domain"
	"github.com/aescanero/hubcycle/pkg/ports"
	"go.uber.org/zap"
)

// DefaultReplyTimeout bounds how long a command waits for its reply. Moves
// are not bounded by it; only the acknowledgement carrying the sequence is.
const DefaultReplyTimeout = 10 * time.Second

// ErrClosed is returned once the controller connection is gone.
var ErrClosed = errors.New("controller connection closed")

// ErrOutOfSync is returned after a command was abandoned before its reply
// arrived. Replies carry no request id, so a late one could be taken for the
// answer to a later command of the same name; the connection is dropped.
var ErrOutOfSync = errors.New("controller connection out of sync")

// Client talks to the realtime controller over its ASCII command port.
// Commands are serialised on the connection; move results arrive
// asynchronously as MoveFeedback lines and are routed to WaitForMove callers.
type Client struct {
	conn         net.Conn
	replyTimeout time.Duration
	logger       *zap.Logger

	// cmdMu serialises request/reply exchanges
	cmdMu   sync.Mutex
	replies chan string

	mu      sync.Mutex
	results map[ports.Sequence]domain.Status
	waiters map[ports.Sequence]chan domain.Status
	local   ports.Sequence

	closeOnce sync.Once
	done      chan struct{}
	err       error
}

// Dial connects to the controller at addr (host:port)
func Dial(ctx context.Context, addr string, replyTimeout time.Duration, logger *zap.Logger) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to controller at %s: %w", addr, err)
	}
	logger.Info("connected to controller", zap.String("addr", addr))
	return newClient(conn, replyTimeout, logger), nil
}

func newClient(conn net.Conn, replyTimeout time.Duration, logger *zap.Logger) *Client {
	if replyTimeout <= 0 {
		replyTimeout = DefaultReplyTimeout
	}
	c := &Client{
		conn:         conn,
		replyTimeout: replyTimeout,
		logger:       logger,
		replies:      make(chan string, 8),
		results:      make(map[ports.Sequence]domain.Status),
		waiters:      make(map[ports.Sequence]chan domain.Status),
		done:         make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// Close closes the connection; pending waits fail with ErrClosed
func (c *Client) Close() error {
	c.fail(ErrClosed)
	return c.conn.Close()
}

func (c *Client) readLoop() {
	scanner := bufio.NewScanner(c.conn)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, moveFeedback+",") {
			seq, status, err := parseFeedback(line)
			if err != nil {
				c.logger.Warn("dropping move feedback", zap.Error(err))
				continue
			}
			c.deliver(seq, status)
			continue
		}

		select {
		case c.replies <- line:
		default:
			c.logger.Warn("dropping unsolicited reply", zap.String("line", line))
		}
	}

	err := scanner.Err()
	if err == nil {
		err = io.EOF
	}
	c.fail(err)
}

func (c *Client) fail(err error) {
	c.closeOnce.Do(func() {
		c.err = err
		close(c.done)
	})
}

// deliver hands a move result to its waiter, or keeps it until one arrives
func (c *Client) deliver(seq ports.Sequence, status domain.Status) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ch, ok := c.waiters[seq]; ok {
		delete(c.waiters, seq)
		ch <- status
		return
	}
	c.results[seq] = status
}

// request sends one command and waits for the reply naming it
func (c *Client) request(ctx context.Context, cmd string, args ...string) (reply, error) {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()

	select {
	case <-c.done:
		return reply{}, fmt.Errorf("%s: %w", cmd, c.err)
	default:
	}
	c.drain()

	if _, err := io.WriteString(c.conn, encode(cmd, args...)); err != nil {
		return reply{}, fmt.Errorf("failed to send %s: %w", cmd, err)
	}

	timer := time.NewTimer(c.replyTimeout)
	defer timer.Stop()

	for {
		select {
		case line := <-c.replies:
			r, err := parseReply(line)
			if err != nil {
				return reply{}, err
			}
			if r.cmd != cmd {
				c.logger.Warn("skipping reply to another command",
					zap.String("expected", cmd),
					zap.String("line", line))
				continue
			}
			return r, nil
		case <-c.done:
			return reply{}, fmt.Errorf("%s: %w", cmd, c.err)
		case <-timer.C:
			c.abandon(cmd)
			return reply{}, fmt.Errorf("%s: no reply within %s: %w", cmd, c.replyTimeout, ErrOutOfSync)
		case <-ctx.Done():
			c.abandon(cmd)
			return reply{}, ctx.Err()
		}
	}
}

// abandon drops the connection after a command stopped waiting for its reply
func (c *Client) abandon(cmd string) {
	c.logger.Warn("abandoning controller connection", zap.String("command", cmd))
	c.fail(ErrOutOfSync)
	_ = c.conn.Close()
}

// drain discards unsolicited replies queued between commands
func (c *Client) drain() {
	for {
		select {
		case line := <-c.replies:
			c.logger.Debug("discarding stale reply", zap.String("line", line))
		default:
			return
		}
	}
}

// move submits a move command. A command the controller rejects outright
// gets a local sequence whose result is the rejection code.
func (c *Client) move(ctx context.Context, cmd string, args ...string) (ports.Sequence, error) {
	r, err := c.request(ctx, cmd, args...)
	if err != nil {
		return 0, err
	}
	if !r.code.OK() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.local--
		c.results[c.local] = r.code
		return c.local, nil
	}
	if len(r.data) < 1 {
		return 0, fmt.Errorf("%s: reply carries no sequence", cmd)
	}
	seq, err := strconv.ParseInt(strings.TrimSpace(r.data[0]), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: malformed sequence: %w", cmd, err)
	}
	return ports.Sequence(seq), nil
}

// MoveToHub moves agent to a named hub
func (c *Client) MoveToHub(ctx context.Context, agent, workstate, hub string, speed float64) (ports.Sequence, error) {
	return c.move(ctx, cmdMoveToHub, agent, workstate, hub, formatFloat(speed))
}

// MoveToPose moves agent's tool to pose within tol
func (c *Client) MoveToPose(ctx context.Context, agent, workstate string, pose domain.Pose, tol domain.Tolerance,
	mode domain.CompletionMode, kind domain.CompletionType, speed float64) (ports.Sequence, error) {
	args := []string{agent, workstate}
	args = append(args, poseArgs(pose)...)
	args = append(args, toleranceArgs(tol)...)
	args = append(args, strconv.Itoa(int(mode)), strconv.Itoa(int(kind)), formatFloat(speed))
	return c.move(ctx, cmdMoveToPose, args...)
}

// BlindMove moves agent straight to pose without planning
func (c *Client) BlindMove(ctx context.Context, agent, workstate string, pose domain.Pose, mode domain.BlindMode, speed float64) (ports.Sequence, error) {
	args := []string{agent, workstate}
	args = append(args, poseArgs(pose)...)
	args = append(args, strconv.Itoa(int(mode)), formatFloat(speed))
	return c.move(ctx, cmdBlindMove, args...)
}

// WaitForMove blocks until the controller reports the move's result
func (c *Client) WaitForMove(ctx context.Context, seq ports.Sequence) (domain.Status, error) {
	c.mu.Lock()
	if status, ok := c.results[seq]; ok {
		delete(c.results, seq)
		c.mu.Unlock()
		return status, nil
	}
	ch := make(chan domain.Status, 1)
	c.waiters[seq] = ch
	c.mu.Unlock()

	select {
	case status := <-ch:
		return status, nil
	case <-c.done:
		c.forget(seq)
		return domain.StatusTransport, fmt.Errorf("waiting for move %d: %w", seq, c.err)
	case <-ctx.Done():
		c.forget(seq)
		return domain.StatusCanceled, ctx.Err()
	}
}

func (c *Client) forget(seq ports.Sequence) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.waiters, seq)
}

// GetMode returns the controller's operating mode
func (c *Client) GetMode(ctx context.Context) (domain.Status, domain.Mode, error) {
	r, err := c.request(ctx, cmdGetMode)
	if err != nil {
		return domain.StatusTransport, domain.ModeUnknown, err
	}
	mode := domain.ModeUnknown
	if len(r.data) > 0 {
		mode = domain.ParseMode(r.data[0])
	}
	return r.code, mode, nil
}

// ClearFaults asks the controller to leave FAULT mode
func (c *Client) ClearFaults(ctx context.Context) (domain.Status, error) {
	return c.status(ctx, cmdClearFaults)
}

// InitGroup initialises agent in workstate
func (c *Client) InitGroup(ctx context.Context, agent, workstate string) (domain.Status, error) {
	return c.status(ctx, cmdInitGroup, agent, workstate)
}

// BeginOperationMode switches the controller to OPERATION
func (c *Client) BeginOperationMode(ctx context.Context) (domain.Status, error) {
	return c.status(ctx, cmdBeginOperationMode)
}

// SetInterruptBehavior sets how often a blocked move is replanned and how
// long each attempt may wait
func (c *Client) SetInterruptBehavior(ctx context.Context, agent string, replanAttempts int, timeout time.Duration) (domain.Status, error) {
	return c.status(ctx, cmdSetInterruptBehavior, agent, strconv.Itoa(replanAttempts), seconds(timeout))
}

func (c *Client) status(ctx context.Context, cmd string, args ...string) (domain.Status, error) {
	r, err := c.request(ctx, cmd, args...)
	if err != nil {
		return domain.StatusTransport, err
	}
	return r.code, nil
}

// Package notifier delivers shutdown commands to module agents.
package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/quorumgate/breaker/internal/api/protocol"
	"github.com/quorumgate/breaker/internal/config"
	"github.com/quorumgate/breaker/internal/domain/threat"
)

// TCPNotifier dials a module's agent endpoint and sends the
// shutdown command for the given threat level.
type TCPNotifier struct {
	// token is shared with agents to authenticate commands.
	token string
	// timeout bounds one delivery attempt end to end.
	timeout time.Duration
}

// Option configures notifier behaviour.
type Option func(*TCPNotifier)

// WithTimeout overrides the per-delivery timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(n *TCPNotifier) {
		if timeout > 0 {
			n.timeout = timeout
		}
	}
}

// NewTCPNotifier builds a notifier authenticating with the shared token.
func NewTCPNotifier(token string, opts ...Option) *TCPNotifier {
	n := &TCPNotifier{
		token:   token,
		timeout: config.DefaultHookTimeout,
	}

	for _, opt := range opts {
		opt(n)
	}

	return n
}

// Shutdown delivers the command for one module address.
// The module must acknowledge with an OK response for the
// delivery to count as processed.
func (n *TCPNotifier) Shutdown(ctx context.Context, module string, level threat.Level) error {
	callCtx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	command := &protocol.ShutdownCommand{
		Level:    uint8(level),
		IssuedAt: time.Now().UTC(),
		Token:    n.token,
	}

	msg, err := protocol.NewMessage(protocol.TypeShutdownCommand, command)
	if err != nil {
		return err
	}

	var dialer net.Dialer

	conn, err := dialer.DialContext(callCtx, "tcp", module)
	if err != nil {
		return fmt.Errorf("dial module: %w", err)
	}

	defer func() {
		_ = conn.Close()
	}()

	if deadline, ok := callCtx.Deadline(); ok {
		if err = conn.SetDeadline(deadline); err != nil {
			return fmt.Errorf("set deadline: %w", err)
		}
	}

	if err = json.NewEncoder(conn).Encode(msg); err != nil {
		return fmt.Errorf("send shutdown command: %w", err)
	}

	var resp protocol.Response
	if err = json.NewDecoder(conn).Decode(&resp); err != nil {
		return fmt.Errorf("read shutdown acknowledgement: %w", err)
	}

	if !resp.OK {
		return fmt.Errorf("module rejected shutdown: %w", resp.Err())
	}

	return nil
}

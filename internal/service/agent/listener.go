package agent

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/quorumgate/breaker/internal/api/protocol"
	"github.com/quorumgate/breaker/internal/domain/threat"
	"github.com/quorumgate/breaker/internal/logger"
)

// commandConnTimeout bounds one shutdown-command exchange.
const commandConnTimeout = 10 * time.Second

var (
	// errBadToken indicates the command carried a wrong shared token.
	errBadToken = errors.New("shutdown command rejected: bad token")
	// errUnexpectedMessage indicates a request the agent does not serve.
	errUnexpectedMessage = errors.New("unexpected message type")
)

// serveCommands accepts shutdown commands until the context is canceled.
func (a *agent) serveCommands(ctx context.Context, lis net.Listener) error {
	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		<-groupCtx.Done()

		return lis.Close()
	})

	for {
		conn, err := lis.Accept()
		if err != nil {
			if groupCtx.Err() == nil && !errors.Is(err, net.ErrClosed) {
				logger.ErrorKV(ctx, "Accept failed", "error", err)
			}

			break
		}

		group.Go(func() error {
			a.handleCommand(groupCtx, conn)

			return nil
		})
	}

	if err := group.Wait(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}

	return ctx.Err()
}

// handleCommand processes one shutdown-command exchange.
func (a *agent) handleCommand(ctx context.Context, conn net.Conn) {
	defer func() {
		_ = conn.Close()
	}()

	if err := conn.SetDeadline(time.Now().Add(commandConnTimeout)); err != nil {
		logger.ErrorKV(ctx, "Failed to set connection deadline", "error", err)

		return
	}

	var msg protocol.Message
	if err := json.NewDecoder(conn).Decode(&msg); err != nil {
		logger.ErrorKV(ctx, "Failed to decode command", "error", err)

		return
	}

	resp := a.processCommand(ctx, &msg)
	if err := json.NewEncoder(conn).Encode(resp); err != nil {
		logger.ErrorKV(ctx, "Failed to write acknowledgement", "error", err)
	}
}

// processCommand validates and applies one shutdown command.
func (a *agent) processCommand(ctx context.Context, msg *protocol.Message) *protocol.Response {
	if msg.Type != protocol.TypeShutdownCommand {
		return protocol.ErrorResponse(fmt.Errorf("%w: %q", errUnexpectedMessage, msg.Type))
	}

	var cmd protocol.ShutdownCommand
	if err := json.Unmarshal(msg.Data, &cmd); err != nil {
		return protocol.ErrorResponse(fmt.Errorf("decode shutdown command: %w", err))
	}

	if subtle.ConstantTimeCompare([]byte(cmd.Token), []byte(a.token)) != 1 {
		logger.Warn(ctx, "Shutdown command with bad token rejected")

		return protocol.ErrorResponse(errBadToken)
	}

	level := threat.Level(cmd.Level)
	if !level.Valid() {
		return protocol.ErrorResponse(fmt.Errorf("%w: %d", threat.ErrInvalidLevel, cmd.Level))
	}

	logger.InfoKV(ctx, "Shutdown command received",
		"level", level.String(),
		"issued_at", cmd.IssuedAt.Format(time.RFC3339))

	a.applyLevel(ctx, level)

	resp, _ := protocol.OKResponse(nil)

	return resp
}

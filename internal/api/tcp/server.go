package tcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/quorumgate/breaker/internal/api/protocol"
	"github.com/quorumgate/breaker/internal/domain/escalation"
	"github.com/quorumgate/breaker/internal/domain/threat"
	"github.com/quorumgate/breaker/internal/logger"
	"github.com/quorumgate/breaker/internal/service/controller"
)

// Service abstracts the business operations the transport layer depends on.
type Service interface {
	SubmitApproval(ctx context.Context, actor *threat.Actor) (escalation.Status, error)
	CancelEscalation(ctx context.Context, actor *threat.Actor) error
	ExecuteEscalation(ctx context.Context, actor *threat.Actor) error
	SetLevel(ctx context.Context, actor *threat.Actor, level threat.Level) error
	Pause(ctx context.Context, actor *threat.Actor) error
	Unpause(ctx context.Context, actor *threat.Actor) error
	SetWithdrawal(ctx context.Context, actor *threat.Actor, enabled bool, penaltyBps uint32) error
	RegisterModule(ctx context.Context, actor *threat.Actor, module string) error
	RemoveModule(ctx context.Context, actor *threat.Actor, module string) error
	ListModules(ctx context.Context, offset, limit uint64) ([]string, uint64, error)
	SetRestriction(ctx context.Context, actor *threat.Actor, operation string, minimum threat.Level) error
	IsRestricted(ctx context.Context, operation string) bool
	Notify(ctx context.Context, actor *threat.Actor, module string, level threat.Level) error
	Broadcast(ctx context.Context, actor *threat.Actor, level threat.Level) (*controller.BroadcastReport, error)
	Status(ctx context.Context) *controller.Status
	CreditHolding(ctx context.Context, actor *threat.Actor, asset string, amount uint64) error
	RecoverTokens(ctx context.Context, actor *threat.Actor, asset string, amount uint64) error
}

// defaultConnTimeout bounds a whole request/response exchange.
const defaultConnTimeout = 30 * time.Second

// Server speaks the breaker control protocol over TCP:
// one envelope request and one response per connection.
type Server struct {
	// service provides the business logic for controller operations.
	service Service
	// connTimeout bounds each connection's lifetime.
	connTimeout time.Duration
}

// Option configures server behaviour.
type Option func(*Server)

// WithConnTimeout overrides the per-connection deadline.
func WithConnTimeout(timeout time.Duration) Option {
	return func(s *Server) {
		if timeout > 0 {
			s.connTimeout = timeout
		}
	}
}

// NewServer wires the provided service implementation into a TCP handler.
func NewServer(service Service, opts ...Option) *Server {
	s := &Server{
		service:     service,
		connTimeout: defaultConnTimeout,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Serve accepts connections until the context is canceled.
// It returns after every in-flight connection has been handled.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	group, groupCtx := errgroup.WithContext(ctx)

	// Closing the listener unblocks Accept when the context ends.
	group.Go(func() error {
		<-groupCtx.Done()

		return lis.Close()
	})

	var acceptErr error

	for {
		conn, err := lis.Accept()
		if err != nil {
			if groupCtx.Err() == nil && !errors.Is(err, net.ErrClosed) {
				acceptErr = fmt.Errorf("accept: %w", err)
			}

			break
		}

		group.Go(func() error {
			s.handle(groupCtx, conn)

			return nil
		})
	}

	// Unblock the listener closer if the accept loop exited on its own.
	cancel()

	if err := group.Wait(); err != nil && !errors.Is(err, net.ErrClosed) && acceptErr == nil {
		acceptErr = err
	}

	return acceptErr
}

// handle processes one request/response exchange.
func (s *Server) handle(ctx context.Context, conn net.Conn) {
	defer func() {
		_ = conn.Close()
	}()

	if err := conn.SetDeadline(time.Now().Add(s.connTimeout)); err != nil {
		logger.Errorf(ctx, "Failed to set connection deadline: %v", err)

		return
	}

	var msg protocol.Message
	if err := json.NewDecoder(conn).Decode(&msg); err != nil {
		logger.Errorf(ctx, "Failed to decode request: %v", err)
		s.reply(ctx, conn, badRequest(fmt.Sprintf("decode request: %v", err)))

		return
	}

	s.reply(ctx, conn, s.dispatch(ctx, &msg))
}

// reply writes the response to the connection.
func (s *Server) reply(ctx context.Context, conn net.Conn, resp *protocol.Response) {
	if err := json.NewEncoder(conn).Encode(resp); err != nil {
		logger.Errorf(ctx, "Failed to write response: %v", err)
	}
}

// badRequest builds a malformed-request response.
func badRequest(message string) *protocol.Response {
	return &protocol.Response{
		OK:        false,
		ErrorCode: protocol.CodeBadRequest,
		Error:     message,
	}
}

// result folds an operation error into a response with no payload.
func result(err error) *protocol.Response {
	if err != nil {
		return protocol.ErrorResponse(err)
	}

	resp, _ := protocol.OKResponse(nil)

	return resp
}

// payloadResult folds an operation outcome into a response with a payload.
func payloadResult(payload any, err error) *protocol.Response {
	if err != nil {
		return protocol.ErrorResponse(err)
	}

	resp, marshalErr := protocol.OKResponse(payload)
	if marshalErr != nil {
		return protocol.ErrorResponse(marshalErr)
	}

	return resp
}

// dispatch routes the envelope to the matching service operation.
//
//nolint:cyclop,funlen // One case per request type; splitting would obscure the routing table.
func (s *Server) dispatch(ctx context.Context, msg *protocol.Message) *protocol.Response {
	switch msg.Type {
	case protocol.TypeSubmitApproval:
		req, resp := decodeActor(msg.Data)
		if resp != nil {
			return resp
		}

		status, err := s.service.SubmitApproval(ctx, req.Actor.Domain())

		return payloadResult(escalationInfo(status), err)
	case protocol.TypeCancelEscalation:
		req, resp := decodeActor(msg.Data)
		if resp != nil {
			return resp
		}

		return result(s.service.CancelEscalation(ctx, req.Actor.Domain()))
	case protocol.TypeExecuteEscalation:
		req, resp := decodeActor(msg.Data)
		if resp != nil {
			return resp
		}

		return result(s.service.ExecuteEscalation(ctx, req.Actor.Domain()))
	case protocol.TypeSetLevel:
		var req protocol.SetLevelRequest
		if resp := decodeRequest(msg.Data, &req); resp != nil {
			return resp
		}

		if req.Actor == nil {
			return badRequest("actor is required")
		}

		return result(s.service.SetLevel(ctx, req.Actor.Domain(), threat.Level(req.Level)))
	case protocol.TypePause:
		req, resp := decodeActor(msg.Data)
		if resp != nil {
			return resp
		}

		return result(s.service.Pause(ctx, req.Actor.Domain()))
	case protocol.TypeUnpause:
		req, resp := decodeActor(msg.Data)
		if resp != nil {
			return resp
		}

		return result(s.service.Unpause(ctx, req.Actor.Domain()))
	case protocol.TypeSetWithdrawal:
		var req protocol.SetWithdrawalRequest
		if resp := decodeRequest(msg.Data, &req); resp != nil {
			return resp
		}

		if req.Actor == nil {
			return badRequest("actor is required")
		}

		return result(s.service.SetWithdrawal(ctx, req.Actor.Domain(), req.Enabled, req.PenaltyBps))
	case protocol.TypeRegisterModule:
		var req protocol.ModuleRequest
		if resp := decodeRequest(msg.Data, &req); resp != nil {
			return resp
		}

		if req.Actor == nil {
			return badRequest("actor is required")
		}

		return result(s.service.RegisterModule(ctx, req.Actor.Domain(), req.Module))
	case protocol.TypeRemoveModule:
		var req protocol.ModuleRequest
		if resp := decodeRequest(msg.Data, &req); resp != nil {
			return resp
		}

		if req.Actor == nil {
			return badRequest("actor is required")
		}

		return result(s.service.RemoveModule(ctx, req.Actor.Domain(), req.Module))
	case protocol.TypeListModules:
		var req protocol.ListModulesRequest
		if resp := decodeRequest(msg.Data, &req); resp != nil {
			return resp
		}

		modules, total, err := s.service.ListModules(ctx, req.Offset, req.Limit)

		return payloadResult(&protocol.ListModulesResponse{Modules: modules, Total: total}, err)
	case protocol.TypeSetRestriction:
		var req protocol.SetRestrictionRequest
		if resp := decodeRequest(msg.Data, &req); resp != nil {
			return resp
		}

		if req.Actor == nil {
			return badRequest("actor is required")
		}

		return result(s.service.SetRestriction(ctx, req.Actor.Domain(), req.Operation, threat.Level(req.Minimum)))
	case protocol.TypeIsRestricted:
		var req protocol.IsRestrictedRequest
		if resp := decodeRequest(msg.Data, &req); resp != nil {
			return resp
		}

		restricted := s.service.IsRestricted(ctx, req.Operation)

		return payloadResult(&protocol.IsRestrictedResponse{Restricted: restricted}, nil)
	case protocol.TypeNotify:
		var req protocol.NotifyRequest
		if resp := decodeRequest(msg.Data, &req); resp != nil {
			return resp
		}

		if req.Actor == nil {
			return badRequest("actor is required")
		}

		return result(s.service.Notify(ctx, req.Actor.Domain(), req.Module, threat.Level(req.Level)))
	case protocol.TypeBroadcast:
		var req protocol.BroadcastRequest
		if resp := decodeRequest(msg.Data, &req); resp != nil {
			return resp
		}

		if req.Actor == nil {
			return badRequest("actor is required")
		}

		report, err := s.service.Broadcast(ctx, req.Actor.Domain(), threat.Level(req.Level))

		return payloadResult(broadcastInfo(report), err)
	case protocol.TypeStatus:
		status := s.service.Status(ctx)

		return payloadResult(statusResponse(status), nil)
	case protocol.TypeCreditHolding:
		var req protocol.HoldingRequest
		if resp := decodeRequest(msg.Data, &req); resp != nil {
			return resp
		}

		if req.Actor == nil {
			return badRequest("actor is required")
		}

		return result(s.service.CreditHolding(ctx, req.Actor.Domain(), req.Asset, req.Amount))
	case protocol.TypeRecoverTokens:
		var req protocol.HoldingRequest
		if resp := decodeRequest(msg.Data, &req); resp != nil {
			return resp
		}

		if req.Actor == nil {
			return badRequest("actor is required")
		}

		return result(s.service.RecoverTokens(ctx, req.Actor.Domain(), req.Asset, req.Amount))
	default:
		return badRequest(fmt.Sprintf("unknown request type %q", msg.Type))
	}
}

// decodeRequest unmarshals a payload, rejecting empty ones.
func decodeRequest(data json.RawMessage, v any) *protocol.Response {
	if len(data) == 0 {
		return badRequest("request payload is required")
	}

	if err := json.Unmarshal(data, v); err != nil {
		return badRequest(fmt.Sprintf("decode payload: %v", err))
	}

	return nil
}

// decodeActor unmarshals an actor-only payload and validates the actor.
func decodeActor(data json.RawMessage) (*protocol.ActorRequest, *protocol.Response) {
	var req protocol.ActorRequest
	if resp := decodeRequest(data, &req); resp != nil {
		return nil, resp
	}

	if req.Actor == nil {
		return nil, badRequest("actor is required")
	}

	return &req, nil
}

// escalationInfo converts workflow status to its wire form.
func escalationInfo(status escalation.Status) *protocol.EscalationInfo {
	return &protocol.EscalationInfo{
		ProposalID:     status.ProposalID,
		Approvals:      status.Approvals,
		Required:       status.Required,
		TimelockActive: status.TimelockActive,
		TimelockStart:  status.TimelockStart,
		ExecutableAt:   status.ExecutableAt,
	}
}

// broadcastInfo converts a broadcast report to its wire form.
func broadcastInfo(report *controller.BroadcastReport) *protocol.BroadcastInfo {
	if report == nil {
		return nil
	}

	return &protocol.BroadcastInfo{
		Level:    uint8(report.Level),
		Notified: report.Notified,
		Skipped:  report.Skipped,
		Failed:   report.Failed,
	}
}

// statusResponse converts the controller status to its wire form.
func statusResponse(status *controller.Status) *protocol.StatusResponse {
	if status == nil {
		return &protocol.StatusResponse{}
	}

	return &protocol.StatusResponse{
		State:      status.State,
		Escalation: *escalationInfo(status.Escalation),
		Audit:      status.Audit,
	}
}

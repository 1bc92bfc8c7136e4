//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/quorumgate/breaker/internal/api/protocol"
	"github.com/quorumgate/breaker/internal/config"
	"github.com/quorumgate/breaker/internal/domain/threat"
)

// Client talks to the breaker server over its TCP protocol.
// Every call dials a fresh connection; the protocol is one request
// and one response per connection.
type Client struct {
	// address is the breaker server endpoint.
	address string

	// callTimeout bounds each dial-request-response exchange.
	callTimeout time.Duration
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets a default timeout for service calls.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

var (
	// errAddressRequired is returned when a required address value is missing.
	errAddressRequired = errors.New("address must be provided")
	// errActorRequired is returned when an actor is not provided but is required for the operation.
	errActorRequired = errors.New("actor must be provided")
)

// NewClient builds a client for the breaker server at the given address.
func NewClient(address string, opts ...Option) (*Client, error) {
	if address == "" {
		return nil, errAddressRequired
	}

	client := &Client{
		address:     address,
		callTimeout: config.DefaultTimeout,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// call performs one request/response exchange.
// When out is non-nil the response payload is unmarshaled into it.
func (c *Client) call(ctx context.Context, msgType string, payload, out any) error {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	msg, err := protocol.NewMessage(msgType, payload)
	if err != nil {
		return err
	}

	var dialer net.Dialer

	conn, err := dialer.DialContext(callCtx, "tcp", c.address)
	if err != nil {
		return fmt.Errorf("dial breaker server: %w", err)
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
		return fmt.Errorf("send %s request: %w", msgType, err)
	}

	var resp protocol.Response
	if err = json.NewDecoder(conn).Decode(&resp); err != nil {
		return fmt.Errorf("read %s response: %w", msgType, err)
	}

	if !resp.OK {
		return resp.Err()
	}

	if out != nil {
		if err = json.Unmarshal(resp.Data, out); err != nil {
			return fmt.Errorf("decode %s payload: %w", msgType, err)
		}
	}

	return nil
}

// SubmitApproval casts the actor's vote for escalation to Critical.
func (c *Client) SubmitApproval(ctx context.Context, actor *threat.Actor) (*protocol.EscalationInfo, error) {
	if actor == nil {
		return nil, errActorRequired
	}

	var info protocol.EscalationInfo

	req := &protocol.ActorRequest{Actor: protocol.ActorFromDomain(actor)}
	if err := c.call(ctx, protocol.TypeSubmitApproval, req, &info); err != nil {
		return nil, err
	}

	return &info, nil
}

// CancelEscalation withdraws the escalation currently in progress.
func (c *Client) CancelEscalation(ctx context.Context, actor *threat.Actor) error {
	if actor == nil {
		return errActorRequired
	}

	req := &protocol.ActorRequest{Actor: protocol.ActorFromDomain(actor)}

	return c.call(ctx, protocol.TypeCancelEscalation, req, nil)
}

// ExecuteEscalation moves the system to Critical once the timelock expires.
func (c *Client) ExecuteEscalation(ctx context.Context, actor *threat.Actor) error {
	if actor == nil {
		return errActorRequired
	}

	req := &protocol.ActorRequest{Actor: protocol.ActorFromDomain(actor)}

	return c.call(ctx, protocol.TypeExecuteEscalation, req, nil)
}

// SetLevel sets a direct, non-Critical threat level.
func (c *Client) SetLevel(ctx context.Context, actor *threat.Actor, level threat.Level) error {
	if actor == nil {
		return errActorRequired
	}

	req := &protocol.SetLevelRequest{
		Actor: protocol.ActorFromDomain(actor),
		Level: uint8(level),
	}

	return c.call(ctx, protocol.TypeSetLevel, req, nil)
}

// Pause halts all protected operations.
func (c *Client) Pause(ctx context.Context, actor *threat.Actor) error {
	if actor == nil {
		return errActorRequired
	}

	req := &protocol.ActorRequest{Actor: protocol.ActorFromDomain(actor)}

	return c.call(ctx, protocol.TypePause, req, nil)
}

// Unpause resumes protected operations.
func (c *Client) Unpause(ctx context.Context, actor *threat.Actor) error {
	if actor == nil {
		return errActorRequired
	}

	req := &protocol.ActorRequest{Actor: protocol.ActorFromDomain(actor)}

	return c.call(ctx, protocol.TypeUnpause, req, nil)
}

// SetWithdrawal configures the emergency withdrawal switch and penalty.
func (c *Client) SetWithdrawal(ctx context.Context, actor *threat.Actor, enabled bool, penaltyBps uint32) error {
	if actor == nil {
		return errActorRequired
	}

	req := &protocol.SetWithdrawalRequest{
		Actor:      protocol.ActorFromDomain(actor),
		Enabled:    enabled,
		PenaltyBps: penaltyBps,
	}

	return c.call(ctx, protocol.TypeSetWithdrawal, req, nil)
}

// RegisterModule adds a module to the aware registry.
func (c *Client) RegisterModule(ctx context.Context, actor *threat.Actor, module string) error {
	if actor == nil {
		return errActorRequired
	}

	req := &protocol.ModuleRequest{
		Actor:  protocol.ActorFromDomain(actor),
		Module: module,
	}

	return c.call(ctx, protocol.TypeRegisterModule, req, nil)
}

// RemoveModule removes a module from the aware registry.
func (c *Client) RemoveModule(ctx context.Context, actor *threat.Actor, module string) error {
	if actor == nil {
		return errActorRequired
	}

	req := &protocol.ModuleRequest{
		Actor:  protocol.ActorFromDomain(actor),
		Module: module,
	}

	return c.call(ctx, protocol.TypeRemoveModule, req, nil)
}

// ListModules fetches one page of the aware registry.
func (c *Client) ListModules(ctx context.Context, offset, limit uint64) (*protocol.ListModulesResponse, error) {
	var page protocol.ListModulesResponse

	req := &protocol.ListModulesRequest{Offset: offset, Limit: limit}
	if err := c.call(ctx, protocol.TypeListModules, req, &page); err != nil {
		return nil, err
	}

	return &page, nil
}

// SetRestriction sets or clears an operation's minimum restricted level.
func (c *Client) SetRestriction(ctx context.Context, actor *threat.Actor, operation string, minimum threat.Level) error {
	if actor == nil {
		return errActorRequired
	}

	req := &protocol.SetRestrictionRequest{
		Actor:     protocol.ActorFromDomain(actor),
		Operation: operation,
		Minimum:   uint8(minimum),
	}

	return c.call(ctx, protocol.TypeSetRestriction, req, nil)
}

// IsRestricted reports whether an operation is disallowed at the current level.
func (c *Client) IsRestricted(ctx context.Context, operation string) (bool, error) {
	var answer protocol.IsRestrictedResponse

	req := &protocol.IsRestrictedRequest{Operation: operation}
	if err := c.call(ctx, protocol.TypeIsRestricted, req, &answer); err != nil {
		return false, err
	}

	return answer.Restricted, nil
}

// Notify delivers the shutdown command for one module at one level.
func (c *Client) Notify(ctx context.Context, actor *threat.Actor, module string, level threat.Level) error {
	if actor == nil {
		return errActorRequired
	}

	req := &protocol.NotifyRequest{
		Actor:  protocol.ActorFromDomain(actor),
		Module: module,
		Level:  uint8(level),
	}

	return c.call(ctx, protocol.TypeNotify, req, nil)
}

// Broadcast notifies every registered module at the given level.
func (c *Client) Broadcast(ctx context.Context, actor *threat.Actor, level threat.Level) (*protocol.BroadcastInfo, error) {
	if actor == nil {
		return nil, errActorRequired
	}

	var report protocol.BroadcastInfo

	req := &protocol.BroadcastRequest{
		Actor: protocol.ActorFromDomain(actor),
		Level: uint8(level),
	}
	if err := c.call(ctx, protocol.TypeBroadcast, req, &report); err != nil {
		return nil, err
	}

	return &report, nil
}

// Status fetches the controller's full state view.
func (c *Client) Status(ctx context.Context) (*protocol.StatusResponse, error) {
	var status protocol.StatusResponse

	if err := c.call(ctx, protocol.TypeStatus, nil, &status); err != nil {
		return nil, err
	}

	return &status, nil
}

// CreditHolding records controller-held funds for an asset.
func (c *Client) CreditHolding(ctx context.Context, actor *threat.Actor, asset string, amount uint64) error {
	if actor == nil {
		return errActorRequired
	}

	req := &protocol.HoldingRequest{
		Actor:  protocol.ActorFromDomain(actor),
		Asset:  asset,
		Amount: amount,
	}

	return c.call(ctx, protocol.TypeCreditHolding, req, nil)
}

// RecoverTokens moves held funds to the configured recovery account.
func (c *Client) RecoverTokens(ctx context.Context, actor *threat.Actor, asset string, amount uint64) error {
	if actor == nil {
		return errActorRequired
	}

	req := &protocol.HoldingRequest{
		Actor:  protocol.ActorFromDomain(actor),
		Asset:  asset,
		Amount: amount,
	}

	return c.call(ctx, protocol.TypeRecoverTokens, req, nil)
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}

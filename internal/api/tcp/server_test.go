package tcp

import (
	"context"
	"encoding/json"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/quorumgate/breaker/internal/api/protocol"
	"github.com/quorumgate/breaker/internal/domain/escalation"
	"github.com/quorumgate/breaker/internal/domain/threat"
	"github.com/quorumgate/breaker/internal/service/controller"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeService records calls and returns canned results.
type fakeService struct {
	mu         sync.Mutex
	lastAction string
	lastActor  *threat.Actor
	lastModule string
	lastLevel  threat.Level
	err        error

	restricted bool
	modules    []string
	total      uint64
}

// observe records the latest call under the lock.
func (f *fakeService) observe(action string, actor *threat.Actor, module string, level threat.Level) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.lastAction = action
	f.lastActor = actor
	f.lastModule = module
	f.lastLevel = level
}

// observed returns the recorded call details.
func (f *fakeService) observed() (string, *threat.Actor, string, threat.Level) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.lastAction, f.lastActor, f.lastModule, f.lastLevel
}

func (f *fakeService) SubmitApproval(_ context.Context, actor *threat.Actor) (escalation.Status, error) {
	f.observe("submit_approval", actor, "", 0)

	return escalation.Status{ProposalID: 7, Approvals: 1, Required: 2}, f.err
}

func (f *fakeService) CancelEscalation(_ context.Context, actor *threat.Actor) error {
	f.observe("cancel_escalation", actor, "", 0)

	return f.err
}

func (f *fakeService) ExecuteEscalation(_ context.Context, actor *threat.Actor) error {
	f.observe("execute_escalation", actor, "", 0)

	return f.err
}

func (f *fakeService) SetLevel(_ context.Context, actor *threat.Actor, level threat.Level) error {
	f.observe("set_level", actor, "", level)

	return f.err
}

func (f *fakeService) Pause(_ context.Context, actor *threat.Actor) error {
	f.observe("pause", actor, "", 0)

	return f.err
}

func (f *fakeService) Unpause(_ context.Context, actor *threat.Actor) error {
	f.observe("unpause", actor, "", 0)

	return f.err
}

func (f *fakeService) SetWithdrawal(_ context.Context, actor *threat.Actor, _ bool, _ uint32) error {
	f.observe("set_withdrawal", actor, "", 0)

	return f.err
}

func (f *fakeService) RegisterModule(_ context.Context, actor *threat.Actor, module string) error {
	f.observe("register_module", actor, module, 0)

	return f.err
}

func (f *fakeService) RemoveModule(_ context.Context, actor *threat.Actor, module string) error {
	f.observe("remove_module", actor, module, 0)

	return f.err
}

func (f *fakeService) ListModules(_ context.Context, _, _ uint64) ([]string, uint64, error) {
	f.observe("list_modules", nil, "", 0)

	return f.modules, f.total, f.err
}

func (f *fakeService) SetRestriction(_ context.Context, actor *threat.Actor, _ string, level threat.Level) error {
	f.observe("set_restriction", actor, "", level)

	return f.err
}

func (f *fakeService) IsRestricted(_ context.Context, _ string) bool {
	f.observe("is_restricted", nil, "", 0)

	return f.restricted
}

func (f *fakeService) Notify(_ context.Context, actor *threat.Actor, module string, level threat.Level) error {
	f.observe("notify", actor, module, level)

	return f.err
}

func (f *fakeService) Broadcast(_ context.Context, actor *threat.Actor, level threat.Level) (*controller.BroadcastReport, error) {
	f.observe("broadcast", actor, "", level)
	if f.err != nil {
		return nil, f.err
	}

	return &controller.BroadcastReport{Level: level, Notified: f.modules}, nil
}

func (f *fakeService) Status(_ context.Context) *controller.Status {
	f.observe("status", nil, "", 0)

	return &controller.Status{
		State:      &threat.State{Level: threat.Alert},
		Escalation: escalation.Status{ProposalID: 3},
	}
}

func (f *fakeService) CreditHolding(_ context.Context, actor *threat.Actor, _ string, _ uint64) error {
	f.observe("credit_holding", actor, "", 0)

	return f.err
}

func (f *fakeService) RecoverTokens(_ context.Context, actor *threat.Actor, _ string, _ uint64) error {
	f.observe("recover_tokens", actor, "", 0)

	return f.err
}

// startServer runs a server on a loopback listener and returns its address.
func startServer(t *testing.T, svc Service) string {
	t.Helper()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)

		_ = NewServer(svc).Serve(ctx, lis)
	}()

	t.Cleanup(func() {
		cancel()
		<-done
	})

	return lis.Addr().String()
}

// call sends one envelope and decodes the response.
func call(t *testing.T, address, msgType string, payload any) *protocol.Response {
	t.Helper()

	conn, err := net.DialTimeout("tcp", address, time.Second)
	require.NoError(t, err)

	defer func() {
		_ = conn.Close()
	}()

	msg, err := protocol.NewMessage(msgType, payload)
	require.NoError(t, err)
	require.NoError(t, json.NewEncoder(conn).Encode(msg))

	var resp protocol.Response
	require.NoError(t, json.NewDecoder(conn).Decode(&resp))

	return &resp
}

func testActor() *protocol.ActorInfo {
	return protocol.ActorFromDomain(&threat.Actor{Hostname: "ops-1", Username: "alice"})
}

func TestServer_Dispatch(t *testing.T) {
	svc := &fakeService{modules: []string{"vault", "lending"}, total: 2}
	address := startServer(t, svc)

	resp := call(t, address, protocol.TypeSubmitApproval, &protocol.ActorRequest{Actor: testActor()})
	require.True(t, resp.OK)

	var info protocol.EscalationInfo
	require.NoError(t, json.Unmarshal(resp.Data, &info))
	require.Equal(t, uint64(7), info.ProposalID)
	require.Equal(t, 1, info.Approvals)

	_, actor, _, _ := svc.observed()
	require.Equal(t, "alice", actor.Username)

	resp = call(t, address, protocol.TypeSetLevel,
		&protocol.SetLevelRequest{Actor: testActor(), Level: uint8(threat.Alert)})
	require.True(t, resp.OK)

	action, _, _, level := svc.observed()
	require.Equal(t, "set_level", action)
	require.Equal(t, threat.Alert, level)

	resp = call(t, address, protocol.TypeListModules, &protocol.ListModulesRequest{Limit: 10})
	require.True(t, resp.OK)

	var page protocol.ListModulesResponse
	require.NoError(t, json.Unmarshal(resp.Data, &page))
	require.Equal(t, []string{"vault", "lending"}, page.Modules)
	require.Equal(t, uint64(2), page.Total)

	resp = call(t, address, protocol.TypeNotify,
		&protocol.NotifyRequest{Actor: testActor(), Module: "vault", Level: uint8(threat.Caution)})
	require.True(t, resp.OK)

	_, _, module, _ := svc.observed()
	require.Equal(t, "vault", module)

	resp = call(t, address, protocol.TypeStatus, nil)
	require.True(t, resp.OK)

	var status protocol.StatusResponse
	require.NoError(t, json.Unmarshal(resp.Data, &status))
	require.Equal(t, threat.Alert, status.State.Level)
	require.Equal(t, uint64(3), status.Escalation.ProposalID)
}

func TestServer_IsRestricted(t *testing.T) {
	svc := &fakeService{restricted: true}
	address := startServer(t, svc)

	resp := call(t, address, protocol.TypeIsRestricted, &protocol.IsRestrictedRequest{Operation: "withdraw"})
	require.True(t, resp.OK)

	var answer protocol.IsRestrictedResponse
	require.NoError(t, json.Unmarshal(resp.Data, &answer))
	require.True(t, answer.Restricted)
}

func TestServer_ErrorsCrossTheWire(t *testing.T) {
	svc := &fakeService{err: threat.ErrUseEscalationForCritical}
	address := startServer(t, svc)

	resp := call(t, address, protocol.TypeSetLevel,
		&protocol.SetLevelRequest{Actor: testActor(), Level: uint8(threat.Critical)})
	require.False(t, resp.OK)
	require.Equal(t, protocol.CodeUseEscalation, resp.ErrorCode)
	require.ErrorIs(t, resp.Err(), threat.ErrUseEscalationForCritical)
}

func TestServer_BadRequests(t *testing.T) {
	svc := &fakeService{}
	address := startServer(t, svc)

	resp := call(t, address, protocol.TypeSetLevel, &protocol.SetLevelRequest{Level: 1})
	require.False(t, resp.OK)
	require.Equal(t, protocol.CodeBadRequest, resp.ErrorCode)

	resp = call(t, address, "Reboot", nil)
	require.False(t, resp.OK)
	require.Equal(t, protocol.CodeBadRequest, resp.ErrorCode)

	resp = call(t, address, protocol.TypeRegisterModule, nil)
	require.False(t, resp.OK)
	require.Equal(t, protocol.CodeBadRequest, resp.ErrorCode)
}

func TestServer_StopsOnContextCancel(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		done <- NewServer(&fakeService{}).Serve(ctx, lis)
	}()

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop after cancel")
	}
}

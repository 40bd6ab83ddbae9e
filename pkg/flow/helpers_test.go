package flow

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/actioncodes/actionbot/pkg/actioncodes"
	"github.com/actioncodes/actionbot/pkg/session/memory"
	"github.com/actioncodes/actionbot/pkg/txbuilder"
)

type fakeResolver struct {
	mu      sync.Mutex
	account string
	err     error
	calls   int
}

func (f *fakeResolver) Resolve(_ context.Context, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.account, nil
}

type attachedMessage struct {
	code string
	text string
}

type attachedTransaction struct {
	code    string
	payload string
}

type fakeAttacher struct {
	mu           sync.Mutex
	messages     []attachedMessage
	transactions []attachedTransaction
	messageErr   error
	txErr        error
}

func (f *fakeAttacher) AttachMessage(_ context.Context, code, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.messageErr != nil {
		return f.messageErr
	}
	f.messages = append(f.messages, attachedMessage{code: code, text: text})
	return nil
}

func (f *fakeAttacher) AttachTransaction(_ context.Context, code, payload string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.txErr != nil {
		return f.txErr
	}
	f.transactions = append(f.transactions, attachedTransaction{code: code, payload: payload})
	return nil
}

// fakeBuilder records every construction request and answers them from
// build, defaulting to success.
type fakeBuilder struct {
	mu       sync.Mutex
	requests []txbuilder.TransferRequest
	build    func(req txbuilder.TransferRequest) (string, error)
}

func (f *fakeBuilder) BuildTransfer(_ context.Context, req txbuilder.TransferRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.build != nil {
		return f.build(req)
	}
	return "payload-" + req.Token, nil
}

func (f *fakeBuilder) recorded() []txbuilder.TransferRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]txbuilder.TransferRequest, len(f.requests))
	copy(out, f.requests)
	return out
}

// fakeStatusSource replays a scripted sequence of snapshots, repeating
// the last one once the script runs out.
type fakeStatusSource struct {
	mu        sync.Mutex
	snapshots []*actioncodes.StatusSnapshot
	idx       int
}

func (f *fakeStatusSource) Status(_ context.Context, _ string) (*actioncodes.StatusSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.snapshots) == 0 {
		return &actioncodes.StatusSnapshot{Status: actioncodes.StatusPending}, nil
	}
	snap := f.snapshots[f.idx]
	if f.idx < len(f.snapshots)-1 {
		f.idx++
	}
	return snap, nil
}

type fakeNotifier struct {
	mu    sync.Mutex
	notes []string
}

func (f *fakeNotifier) Notify(_ context.Context, _ int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notes = append(f.notes, text)
	return nil
}

func (f *fakeNotifier) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.notes))
	copy(out, f.notes)
	return out
}

// testEnv bundles an orchestrator with its fakes for end-to-end flow
// tests. Poll cadence is shortened so observation completes in
// milliseconds.
type testEnv struct {
	orch     *Orchestrator
	store    *memory.MemoryStore
	resolver *fakeResolver
	attacher *fakeAttacher
	builder  *fakeBuilder
	status   *fakeStatusSource
	notifier *fakeNotifier
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		store:    memory.NewMemoryStore(),
		resolver: &fakeResolver{account: "account-pubkey"},
		attacher: &fakeAttacher{},
		builder:  &fakeBuilder{},
		status:   &fakeStatusSource{},
		notifier: &fakeNotifier{},
	}

	orch, err := New(Config{
		Store:        env.store,
		Resolver:     env.resolver,
		Attacher:     env.attacher,
		StatusSource: env.status,
		Builder:      env.builder,
		Notifier:     env.notifier,
		PollInterval: 5 * time.Millisecond,
		PollTimeout:  250 * time.Millisecond,
		Logger:       zap.NewNop(),
	})
	require.NoError(t, err)

	env.orch = orch
	return env
}

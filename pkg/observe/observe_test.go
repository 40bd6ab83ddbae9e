package observe

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/actioncodes/actionbot/pkg/actioncodes"
)

// scriptedSource replays snapshots in order, repeating the last one.
// A nil entry produces a poll error instead of a snapshot.
type scriptedSource struct {
	mu    sync.Mutex
	snaps []*actioncodes.StatusSnapshot
	idx   int
	polls int
}

func (s *scriptedSource) Status(_ context.Context, _ string) (*actioncodes.StatusSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.polls++
	if len(s.snaps) == 0 {
		return &actioncodes.StatusSnapshot{Status: actioncodes.StatusPending}, nil
	}
	snap := s.snaps[s.idx]
	if s.idx < len(s.snaps)-1 {
		s.idx++
	}
	if snap == nil {
		return nil, errors.New("status endpoint unavailable")
	}
	return snap, nil
}

func collect(t *testing.T, events <-chan Event) []Event {
	t.Helper()
	var out []Event
	for ev := range events {
		out = append(out, ev)
	}
	return out
}

func TestStatus_FinalizedWithSignatureTerminates(t *testing.T) {
	src := &scriptedSource{snaps: []*actioncodes.StatusSnapshot{
		{Status: actioncodes.StatusPending},
		{Status: actioncodes.StatusPending},
		{Status: actioncodes.StatusFinalized, FinalizedSignature: "sig"},
	}}

	events := collect(t, Status(context.Background(), src, "12345678", Options{
		Interval: 5 * time.Millisecond,
		Timeout:  time.Second,
		Want:     WantSignature,
	}))

	require.Len(t, events, 3)
	assert.Equal(t, actioncodes.StatusPending, events[0].Snapshot.Status)
	assert.Equal(t, actioncodes.StatusPending, events[1].Snapshot.Status)
	assert.Equal(t, actioncodes.StatusFinalized, events[2].Snapshot.Status)
	assert.Equal(t, "sig", events[2].Snapshot.FinalizedSignature)
}

func TestStatus_FinalizedWithoutWantedFieldKeepsPolling(t *testing.T) {
	// A finalized snapshot missing the wanted payload is not a success
	// terminal; the sequence continues until the field appears.
	src := &scriptedSource{snaps: []*actioncodes.StatusSnapshot{
		{Status: actioncodes.StatusFinalized},
		{Status: actioncodes.StatusFinalized, FinalizedSignature: "sig"},
	}}

	events := collect(t, Status(context.Background(), src, "12345678", Options{
		Interval: 5 * time.Millisecond,
		Timeout:  time.Second,
		Want:     WantSignature,
	}))

	require.Len(t, events, 2)
	assert.Empty(t, events[0].Snapshot.FinalizedSignature)
	assert.Equal(t, "sig", events[1].Snapshot.FinalizedSignature)
}

func TestStatus_ExpiredTerminates(t *testing.T) {
	src := &scriptedSource{snaps: []*actioncodes.StatusSnapshot{
		{Status: actioncodes.StatusPending},
		{Status: actioncodes.StatusExpired},
	}}

	events := collect(t, Status(context.Background(), src, "12345678", Options{
		Interval: 5 * time.Millisecond,
		Timeout:  time.Second,
		Want:     WantSignature,
	}))

	require.Len(t, events, 2)
	assert.Equal(t, actioncodes.StatusExpired, events[1].Snapshot.Status)
}

func TestStatus_TimeoutEmitsExplicitMarker(t *testing.T) {
	src := &scriptedSource{} // always pending

	start := time.Now()
	events := collect(t, Status(context.Background(), src, "12345678", Options{
		Interval: 5 * time.Millisecond,
		Timeout:  60 * time.Millisecond,
		Want:     WantSignature,
	}))
	elapsed := time.Since(start)

	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.True(t, last.TimedOut)
	for _, ev := range events[:len(events)-1] {
		assert.False(t, ev.TimedOut)
		assert.Equal(t, actioncodes.StatusPending, ev.Snapshot.Status)
	}

	// Terminates within timeout + one interval, with scheduling slack
	assert.Less(t, elapsed, 200*time.Millisecond)
}

func TestStatus_PollErrorsAreNotTerminal(t *testing.T) {
	src := &scriptedSource{snaps: []*actioncodes.StatusSnapshot{
		nil, // poll failure
		{Status: actioncodes.StatusFinalized, SignedMessage: "signed"},
	}}

	events := collect(t, Status(context.Background(), src, "12345678", Options{
		Interval: 5 * time.Millisecond,
		Timeout:  time.Second,
		Want:     WantSignedMessage,
	}))

	require.Len(t, events, 2)
	require.Error(t, events[0].Err)
	assert.Nil(t, events[0].Snapshot)
	assert.Equal(t, "signed", events[1].Snapshot.SignedMessage)
}

func TestStatus_FirstPollAfterOneInterval(t *testing.T) {
	src := &scriptedSource{snaps: []*actioncodes.StatusSnapshot{
		{Status: actioncodes.StatusFinalized, FinalizedSignature: "sig"},
	}}

	start := time.Now()
	events := collect(t, Status(context.Background(), src, "12345678", Options{
		Interval: 40 * time.Millisecond,
		Timeout:  time.Second,
		Want:     WantSignature,
	}))

	require.Len(t, events, 1)
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestStatus_ContextCancellationStopsSequence(t *testing.T) {
	src := &scriptedSource{} // always pending
	ctx, cancel := context.WithCancel(context.Background())

	events := Status(ctx, src, "12345678", Options{
		Interval: 5 * time.Millisecond,
		Timeout:  time.Minute,
		Want:     WantSignature,
	})

	// Drain a couple of events then cancel
	<-events
	<-events
	cancel()

	for range events {
		// drain until close
	}
}

func TestWant_Satisfied(t *testing.T) {
	tests := []struct {
		name string
		want Want
		snap *actioncodes.StatusSnapshot
		ok   bool
	}{
		{
			name: "signature present",
			want: WantSignature,
			snap: &actioncodes.StatusSnapshot{Status: actioncodes.StatusFinalized, FinalizedSignature: "sig"},
			ok:   true,
		},
		{
			name: "signature missing",
			want: WantSignature,
			snap: &actioncodes.StatusSnapshot{Status: actioncodes.StatusFinalized},
			ok:   false,
		},
		{
			name: "signed message present",
			want: WantSignedMessage,
			snap: &actioncodes.StatusSnapshot{Status: actioncodes.StatusFinalized, SignedMessage: "m"},
			ok:   true,
		},
		{
			name: "not finalized",
			want: WantSignature,
			snap: &actioncodes.StatusSnapshot{Status: actioncodes.StatusPending, FinalizedSignature: "sig"},
			ok:   false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.ok, tc.want.Satisfied(tc.snap))
		})
	}
}

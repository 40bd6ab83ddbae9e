// Package observe turns the one-shot status endpoint into a bounded,
// lazy sequence of status snapshots. The sequence ends on a terminal
// snapshot or, failing that, with an explicit timed-out event, so callers
// can tell "remote said expired/error" apart from "we gave up waiting".
package observe

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/actioncodes/actionbot/pkg/actioncodes"
)

// Want names the payload field that makes a finalized snapshot a success
// terminal. A finalized snapshot without the wanted field is not terminal;
// polling continues until the field shows up or the bound is hit.
type Want string

const (
	WantSignature     Want = "signature"      // transfer flows
	WantSignedMessage Want = "signed_message" // message-signing flows
)

// Satisfied reports whether a finalized snapshot carries the wanted payload.
func (w Want) Satisfied(s *actioncodes.StatusSnapshot) bool {
	if s == nil || s.Status != actioncodes.StatusFinalized {
		return false
	}
	switch w {
	case WantSignature:
		return s.FinalizedSignature != ""
	case WantSignedMessage:
		return s.SignedMessage != ""
	}
	return false
}

// Options bounds one observation.
type Options struct {
	Interval time.Duration
	Timeout  time.Duration
	Want     Want
	Logger   *zap.Logger // optional
}

// Event is one element of the observation sequence. Exactly one of
// Snapshot, Err or TimedOut is meaningful: Snapshot for a successful poll,
// Err for a failed poll (non-terminal, the sequence continues), TimedOut
// for the final element when no terminal snapshot arrived in time.
type Event struct {
	Snapshot *actioncodes.StatusSnapshot
	Err      error
	TimedOut bool
}

// Status starts observing an action code and returns the event sequence.
// The first poll happens after one interval. The channel is closed after
// a terminal snapshot, after the timed-out marker, or when ctx is
// cancelled. The sequence is not restartable; observe again for a retry.
func Status(ctx context.Context, src actioncodes.StatusSource, code string, opts Options) <-chan Event {
	events := make(chan Event)

	go func() {
		defer close(events)

		deadline := time.NewTimer(opts.Timeout)
		defer deadline.Stop()
		ticker := time.NewTicker(opts.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-deadline.C:
				emit(ctx, events, Event{TimedOut: true})
				return
			case <-ticker.C:
				snapshot, err := src.Status(ctx, code)
				if err != nil {
					// A failed poll is not terminal; the code may still
					// finalize before the bound is hit.
					if opts.Logger != nil {
						opts.Logger.Sugar().Warnw("Status poll failed", "error", err)
					}
					if !emit(ctx, events, Event{Err: err}) {
						return
					}
					continue
				}

				if !emit(ctx, events, Event{Snapshot: snapshot}) {
					return
				}
				if terminal(snapshot, opts.Want) {
					return
				}
			}
		}
	}()

	return events
}

// terminal reports whether the sequence must stop after this snapshot:
// a finalized snapshot carrying the wanted payload, or expired/error.
func terminal(s *actioncodes.StatusSnapshot, want Want) bool {
	switch s.Status {
	case actioncodes.StatusFinalized:
		return want.Satisfied(s)
	case actioncodes.StatusExpired, actioncodes.StatusError:
		return true
	}
	return false
}

func emit(ctx context.Context, events chan<- Event, ev Event) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

package flow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/actioncodes/actionbot/pkg/actioncodes"
	"github.com/actioncodes/actionbot/pkg/observe"
	"github.com/actioncodes/actionbot/pkg/session"
	"github.com/actioncodes/actionbot/pkg/txbuilder"
)

// Notifier delivers an intermediate chat message to a user while a flow
// is still running; final outcomes are returned from HandleText instead.
type Notifier interface {
	Notify(ctx context.Context, userID int64, text string) error
}

// Config holds the orchestrator's collaborators, all injected.
type Config struct {
	Store        session.Store
	Resolver     actioncodes.Resolver
	Attacher     actioncodes.Attacher
	StatusSource actioncodes.StatusSource
	Builder      txbuilder.Builder
	Notifier     Notifier
	PollInterval time.Duration // defaults to 2s
	PollTimeout  time.Duration // defaults to 2m
	Logger       *zap.Logger
}

// Orchestrator owns the per-user signing flow: it is the only component
// that creates, advances and destroys sessions.
type Orchestrator struct {
	store        session.Store
	resolver     actioncodes.Resolver
	attacher     actioncodes.Attacher
	status       actioncodes.StatusSource
	builder      txbuilder.Builder
	notifier     Notifier
	pollInterval time.Duration
	pollTimeout  time.Duration
	logger       *zap.Logger
}

// New creates a flow orchestrator with dependency injection.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if cfg.Resolver == nil {
		return nil, fmt.Errorf("resolver is required")
	}
	if cfg.Attacher == nil {
		return nil, fmt.Errorf("attacher is required")
	}
	if cfg.StatusSource == nil {
		return nil, fmt.Errorf("status source is required")
	}
	if cfg.Builder == nil {
		return nil, fmt.Errorf("transaction builder is required")
	}
	if cfg.Notifier == nil {
		return nil, fmt.Errorf("notifier is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	interval := cfg.PollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	return &Orchestrator{
		store:        cfg.Store,
		resolver:     cfg.Resolver,
		attacher:     cfg.Attacher,
		status:       cfg.StatusSource,
		builder:      cfg.Builder,
		notifier:     cfg.Notifier,
		pollInterval: interval,
		pollTimeout:  timeout,
		logger:       cfg.Logger,
	}, nil
}

// Welcome is the reply to the start command.
func (o *Orchestrator) Welcome() string {
	return msgWelcome
}

// StartMessage begins a message-signing flow, overwriting any in-flight
// session for the user.
func (o *Orchestrator) StartMessage(ctx context.Context, userID int64) string {
	return o.start(ctx, userID, session.KindMessage, msgAskMessage)
}

// StartTransfer begins a transfer flow, overwriting any in-flight
// session for the user.
func (o *Orchestrator) StartTransfer(ctx context.Context, userID int64) string {
	return o.start(ctx, userID, session.KindTransfer, msgAskTransferParams)
}

func (o *Orchestrator) start(ctx context.Context, userID int64, kind session.IntentKind, prompt string) string {
	err := o.store.Create(ctx, &session.Session{
		UserID: userID,
		Step:   session.StepCollectingIntent,
		Kind:   kind,
	})
	if err != nil {
		o.logger.Sugar().Errorw("Failed to create session", "user_id", userID, "error", err)
		return msgRemoteError
	}
	return prompt
}

// HandleText routes freeform text by the user's current step. The empty
// string means no reply (text from a user with no active flow, or while
// a previous submission is still processing).
func (o *Orchestrator) HandleText(ctx context.Context, userID int64, text string) string {
	sess, err := o.store.Get(ctx, userID)
	if err != nil {
		o.logger.Sugar().Errorw("Failed to load session", "user_id", userID, "error", err)
		return msgRemoteError
	}
	if sess == nil {
		return ""
	}

	switch sess.Step {
	case session.StepCollectingIntent:
		return o.collectIntent(ctx, sess, text)
	case session.StepAwaitingCode:
		return o.bindCodeAndProcess(ctx, sess, text)
	case session.StepProcessing:
		// A flow is already running for this user; its outcome will
		// arrive as its own message.
		return ""
	}
	return ""
}

// collectIntent stages the user's intent and advances to awaiting_code.
func (o *Orchestrator) collectIntent(ctx context.Context, sess *session.Session, text string) string {
	switch sess.Kind {
	case session.KindMessage:
		err := o.store.Update(ctx, sess.UserID, func(s *session.Session) {
			s.Message = &session.MessageIntent{Text: text}
			s.Step = session.StepAwaitingCode
		})
		if err != nil {
			o.logger.Sugar().Errorw("Failed to stage message intent", "user_id", sess.UserID, "error", err)
			return msgRemoteError
		}
		return msgAskCode

	case session.KindTransfer:
		intent, err := ParseTransferParams(text)
		switch {
		case errors.Is(err, ErrTransferFormat):
			return msgBadTransferFormat
		case errors.Is(err, ErrInvalidAmount):
			return msgBadAmount
		case err != nil:
			o.logger.Sugar().Errorw("Failed to parse transfer parameters", "user_id", sess.UserID, "error", err)
			return msgBadTransferFormat
		}

		err = o.store.Update(ctx, sess.UserID, func(s *session.Session) {
			s.Transfer = intent
			s.Step = session.StepAwaitingCode
		})
		if err != nil {
			o.logger.Sugar().Errorw("Failed to stage transfer intent", "user_id", sess.UserID, "error", err)
			return msgRemoteError
		}
		return msgTransferEcho(intent.Token, intent.To, intent.Amount)
	}
	return ""
}

// bindCodeAndProcess validates the submitted code, advances the session
// to processing and runs the flow to its terminal outcome. Whatever that
// outcome is, the session is gone afterwards.
func (o *Orchestrator) bindCodeAndProcess(ctx context.Context, sess *session.Session, text string) string {
	code, err := ValidateCode(text)
	if err != nil {
		// Session unchanged; the user may retry the same step.
		return msgBadCode
	}

	if err := o.store.Update(ctx, sess.UserID, func(s *session.Session) {
		s.Code = code
		s.Step = session.StepProcessing
	}); err != nil {
		o.logger.Sugar().Errorw("Failed to bind code", "user_id", sess.UserID, "error", err)
		return msgRemoteError
	}
	sess.Code = code
	sess.Step = session.StepProcessing

	return o.process(ctx, sess)
}

// process drives a bound session to its terminal outcome: build the
// artifact, notify the pending transition, observe status, report. The
// session is destroyed unconditionally, whatever path is taken out.
func (o *Orchestrator) process(ctx context.Context, sess *session.Session) (reply string) {
	log := o.logger.Sugar().With(
		"flow_id", uuid.NewString(),
		"user_id", sess.UserID,
		"kind", string(sess.Kind),
	)

	defer func() {
		if r := recover(); r != nil {
			log.Errorw("Flow panicked", "panic", r)
			reply = msgRemoteError
		}
		if err := o.store.Destroy(context.WithoutCancel(ctx), sess.UserID); err != nil {
			log.Warnw("Failed to destroy session", "error", err)
		}
	}()

	o.notify(ctx, sess.UserID, msgProcessing)

	switch sess.Kind {
	case session.KindTransfer:
		return o.processTransfer(ctx, log, sess)
	case session.KindMessage:
		return o.processMessage(ctx, log, sess)
	}

	log.Errorw("Session has unknown intent kind")
	return msgRemoteError
}

func (o *Orchestrator) processTransfer(ctx context.Context, log *zap.SugaredLogger, sess *session.Session) string {
	if sess.Transfer == nil {
		log.Errorw("Transfer session has no staged intent")
		return msgRemoteError
	}

	result, err := o.buildTransferArtifact(ctx, log, sess.Code, sess.Transfer)
	if err != nil {
		var resErr *ResolutionError
		var conErr *ConstructionError
		switch {
		case errors.As(err, &resErr):
			log.Warnw("Action code resolution failed", "error", err)
			return msgRemoteError
		case errors.As(err, &conErr):
			log.Warnw("Transaction construction failed", "error", err)
			return msgTransferFailed(conErr.Error())
		default:
			log.Errorw("Transfer flow failed", "error", err)
			return msgTransferFailed(err.Error())
		}
	}

	o.notify(ctx, sess.UserID, msgPendingTransfer(result.note))

	final, outcome := o.awaitFinal(ctx, log, sess.Code, observe.WantSignature)
	switch outcome {
	case outcomeFinalized:
		return msgTransferSigned(final.FinalizedSignature, result.note)
	case outcomeExpired:
		return msgExpired
	case outcomeRemoteError:
		return msgRemoteError
	default:
		return msgNoSignature
	}
}

func (o *Orchestrator) processMessage(ctx context.Context, log *zap.SugaredLogger, sess *session.Session) string {
	if sess.Message == nil {
		log.Errorw("Message session has no staged intent")
		return msgRemoteError
	}

	if err := o.buildMessageArtifact(ctx, sess.Code, sess.Message); err != nil {
		log.Warnw("Message flow failed", "error", err)
		return msgRemoteError
	}

	o.notify(ctx, sess.UserID, msgPendingMessage())

	final, outcome := o.awaitFinal(ctx, log, sess.Code, observe.WantSignedMessage)
	switch outcome {
	case outcomeFinalized:
		return msgMessageSigned(final.SignedMessage)
	case outcomeExpired:
		return msgExpired
	case outcomeRemoteError:
		return msgRemoteError
	default:
		return msgNoSignedMessage
	}
}

type observationOutcome int

const (
	outcomeTimedOut observationOutcome = iota
	outcomeFinalized
	outcomeExpired
	outcomeRemoteError
)

// awaitFinal drains one observation sequence and classifies its end.
// The snapshot is non-nil only for outcomeFinalized.
func (o *Orchestrator) awaitFinal(ctx context.Context, log *zap.SugaredLogger, code string, want observe.Want) (*actioncodes.StatusSnapshot, observationOutcome) {
	events := observe.Status(ctx, o.status, code, observe.Options{
		Interval: o.pollInterval,
		Timeout:  o.pollTimeout,
		Want:     want,
	})

	for ev := range events {
		switch {
		case ev.TimedOut:
			log.Warnw("Status observation timed out")
			return nil, outcomeTimedOut
		case ev.Err != nil:
			log.Warnw("Status poll failed", "error", ev.Err)
		case ev.Snapshot != nil:
			log.Debugw("Status update", "status", string(ev.Snapshot.Status))
			switch ev.Snapshot.Status {
			case actioncodes.StatusFinalized:
				if want.Satisfied(ev.Snapshot) {
					return ev.Snapshot, outcomeFinalized
				}
			case actioncodes.StatusExpired:
				return nil, outcomeExpired
			case actioncodes.StatusError:
				return nil, outcomeRemoteError
			}
		}
	}

	// Sequence ended without a terminal event: context cancelled.
	return nil, outcomeTimedOut
}

func (o *Orchestrator) notify(ctx context.Context, userID int64, text string) {
	if err := o.notifier.Notify(ctx, userID, text); err != nil {
		o.logger.Sugar().Warnw("Failed to notify user", "user_id", userID, "error", err)
	}
}

package session

import "context"

// Step is the position of a conversation in the signing flow. Steps only
// ever advance forward; any terminal outcome destroys the session instead
// of recording a terminal step.
type Step string

const (
	StepCollectingIntent Step = "collecting_intent"
	StepAwaitingCode     Step = "awaiting_code"
	StepProcessing       Step = "processing"
)

// IntentKind tags which variant of intent a session stages.
type IntentKind string

const (
	KindMessage  IntentKind = "message"
	KindTransfer IntentKind = "transfer"
)

// MessageIntent is freeform text the user wants signed, stored verbatim.
type MessageIntent struct {
	Text string `json:"text"`
}

// TransferIntent is a parsed on-chain transfer request. Amount is
// validated positive and finite at collection time.
type TransferIntent struct {
	Token  string  `json:"token"`
	To     string  `json:"to"`
	Amount float64 `json:"amount"`
}

// Session is one user's in-flight conversation. Exactly one of Message
// or Transfer is set, matching Kind. Code is empty until bound.
type Session struct {
	UserID   int64           `json:"user_id"`
	Step     Step            `json:"step"`
	Kind     IntentKind      `json:"kind"`
	Message  *MessageIntent  `json:"message,omitempty"`
	Transfer *TransferIntent `json:"transfer,omitempty"`
	Code     string          `json:"code,omitempty"`
}

// Clone returns a deep copy so stored sessions cannot be mutated through
// returned references.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := &Session{
		UserID: s.UserID,
		Step:   s.Step,
		Kind:   s.Kind,
		Code:   s.Code,
	}
	if s.Message != nil {
		m := *s.Message
		c.Message = &m
	}
	if s.Transfer != nil {
		t := *s.Transfer
		c.Transfer = &t
	}
	return c
}

// Store keeps at most one session per user. Implementations must be safe
// for concurrent use and must return defensive copies.
type Store interface {
	// Create stores a session for sess.UserID, overwriting any existing one.
	Create(ctx context.Context, sess *Session) error

	// Get returns the user's current session, or nil if none exists.
	Get(ctx context.Context, userID int64) (*Session, error)

	// Update applies mutate to the user's session if one exists; no-op otherwise.
	Update(ctx context.Context, userID int64, mutate func(*Session)) error

	// Destroy removes the user's session unconditionally.
	// Idempotent - returns nil if no session exists.
	Destroy(ctx context.Context, userID int64) error

	// Close cleanly shuts down the store. Idempotent.
	Close() error

	// HealthCheck verifies the store is operational. Called at startup to
	// fail fast.
	HealthCheck(ctx context.Context) error
}

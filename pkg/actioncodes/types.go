package actioncodes

// Status is the lifecycle state of an action code as reported by the
// status endpoint.
type Status string

const (
	StatusPending   Status = "pending"
	StatusFinalized Status = "finalized"
	StatusExpired   Status = "expired"
	StatusError     Status = "error"
)

// StatusSnapshot is one observation of an action code's state.
// FinalizedSignature is set for finalized transfer transactions,
// SignedMessage for finalized message-signing actions; both are empty
// until the code reaches StatusFinalized.
type StatusSnapshot struct {
	Status             Status `json:"status"`
	FinalizedSignature string `json:"finalizedSignature,omitempty"`
	SignedMessage      string `json:"signedMessage,omitempty"`
}

// Terminal reports whether no further observation of the code is meaningful.
// A finalized snapshot is terminal regardless of which payload field it
// carries; callers that need a specific field check that separately.
func (s *StatusSnapshot) Terminal() bool {
	switch s.Status {
	case StatusFinalized, StatusExpired, StatusError:
		return true
	}
	return false
}

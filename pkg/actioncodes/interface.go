package actioncodes

import "context"

// Resolver resolves a one-time action code to the account that issued it.
type Resolver interface {
	// Resolve returns the account (public key) bound to the code.
	// Fails if the code is unknown or already expired.
	Resolve(ctx context.Context, code string) (string, error)
}

// Attacher associates a signable artifact with an action code so the
// external signer can act on it.
type Attacher interface {
	// AttachMessage attaches raw message text for signing.
	AttachMessage(ctx context.Context, code, text string) error

	// AttachTransaction attaches a serialized transaction payload for signing.
	AttachTransaction(ctx context.Context, code, payload string) error
}

// StatusSource returns the current state of an action code. It is a
// one-shot fetch; bounded polling on top of it lives in pkg/observe.
type StatusSource interface {
	Status(ctx context.Context, code string) (*StatusSnapshot, error)
}

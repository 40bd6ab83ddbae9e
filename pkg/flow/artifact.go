package flow

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/actioncodes/actionbot/pkg/session"
	"github.com/actioncodes/actionbot/pkg/txbuilder"
)

// minFallbackAmount is the floor for the reduced-amount variant; amounts
// at or below it get no reduced-amount attempt.
const minFallbackAmount = 0.1

// transferAttempt is one variant in the ordered fallback plan. note is
// the user-visible substitution notice, empty for the original
// parameters. Only token and amount ever vary; account and destination
// are never substituted.
type transferAttempt struct {
	token  string
	amount float64
	note   string
}

// alternateToken is the fixed one-for-one substitution the construction
// service occasionally needs: USDC and SOL stand in for each other.
func alternateToken(token string) string {
	if token == "USDC" {
		return "SOL"
	}
	return "USDC"
}

// fallbackPlan returns the ordered construction attempts for a transfer:
// the original parameters, then the alternate token at the same amount,
// then (when the amount allows it) the original token at a reduced
// amount. Later variants are tried only while the service keeps
// reporting service-side faults.
func fallbackPlan(intent *session.TransferIntent) []transferAttempt {
	plan := []transferAttempt{
		{token: intent.Token, amount: intent.Amount},
	}

	alt := alternateToken(intent.Token)
	plan = append(plan, transferAttempt{
		token:  alt,
		amount: intent.Amount,
		note:   fmt.Sprintf("Token was changed to %s due to API limitations.", alt),
	})

	if intent.Amount > minFallbackAmount {
		reduced := math.Max(minFallbackAmount, intent.Amount/10)
		plan = append(plan, transferAttempt{
			token:  intent.Token,
			amount: reduced,
			note:   fmt.Sprintf("Amount was adjusted to %s %s due to API limitations.", formatAmount(reduced), intent.Token),
		})
	}

	return plan
}

// buildResult reports a successful artifact construction. Note is the
// substitution notice to surface to the user, empty when the original
// parameters went through.
type buildResult struct {
	note string
}

// buildMessageArtifact attaches the staged message text to the code.
// No fallback branching; any failure propagates.
func (o *Orchestrator) buildMessageArtifact(ctx context.Context, code string, intent *session.MessageIntent) error {
	if err := o.attacher.AttachMessage(ctx, code, intent.Text); err != nil {
		return fmt.Errorf("failed to attach message to action code: %w", err)
	}
	return nil
}

// buildTransferArtifact resolves the code to an account, obtains a
// signable payload from the construction service with the tiered
// fallback plan, and attaches the payload to the code.
func (o *Orchestrator) buildTransferArtifact(ctx context.Context, log *zap.SugaredLogger, code string, intent *session.TransferIntent) (*buildResult, error) {
	account, err := o.resolver.Resolve(ctx, code)
	if err != nil {
		return nil, &ResolutionError{Err: err}
	}
	log.Infow("Resolved action code", "account", account)

	var lastFault *txbuilder.RequestError
	for _, attempt := range fallbackPlan(intent) {
		payload, err := o.builder.BuildTransfer(ctx, txbuilder.TransferRequest{
			Token:   attempt.token,
			To:      intent.To,
			Amount:  attempt.amount,
			Account: account,
		})
		if err != nil {
			var reqErr *txbuilder.RequestError
			if errors.As(err, &reqErr) && reqErr.ServiceFault() {
				lastFault = reqErr
				log.Warnw("Construction service fault, trying next variant",
					"token", attempt.token,
					"amount", attempt.amount,
					"detail", reqErr.Detail,
				)
				continue
			}
			// Client faults and transport failures escalate immediately.
			return nil, &ConstructionError{Err: err}
		}

		if err := o.attacher.AttachTransaction(ctx, code, payload); err != nil {
			return nil, fmt.Errorf("failed to attach transaction to action code: %w", err)
		}

		log.Infow("Transfer transaction attached",
			"token", attempt.token,
			"amount", attempt.amount,
			"substituted", attempt.note != "",
		)
		return &buildResult{note: attempt.note}, nil
	}

	// The first attempt only falls through on a service fault, so
	// lastFault is always set here.
	return nil, &ConstructionError{Detail: lastFault.Detail, Err: lastFault}
}

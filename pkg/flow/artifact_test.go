package flow

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/actioncodes/actionbot/pkg/session"
	"github.com/actioncodes/actionbot/pkg/txbuilder"
)

func serviceFault(detail string) error {
	return &txbuilder.RequestError{StatusCode: 500, Detail: detail}
}

func clientFault(detail string) error {
	return &txbuilder.RequestError{StatusCode: 422, Detail: detail}
}

func TestFallbackPlan_Order(t *testing.T) {
	plan := fallbackPlan(&session.TransferIntent{Token: "USDC", To: "addr", Amount: 1.0})
	require.Len(t, plan, 3)

	assert.Equal(t, "USDC", plan[0].token)
	assert.Equal(t, 1.0, plan[0].amount)
	assert.Empty(t, plan[0].note)

	// Second attempt: alternate token, amount unchanged
	assert.Equal(t, "SOL", plan[1].token)
	assert.Equal(t, 1.0, plan[1].amount)
	assert.Contains(t, plan[1].note, "SOL")

	// Third attempt: original token, reduced amount max(0.1, 1.0/10)
	assert.Equal(t, "USDC", plan[2].token)
	assert.Equal(t, 0.1, plan[2].amount)
	assert.Contains(t, plan[2].note, "0.1")
}

func TestFallbackPlan_SmallAmountSkipsReduction(t *testing.T) {
	plan := fallbackPlan(&session.TransferIntent{Token: "USDC", To: "addr", Amount: 0.05})
	require.Len(t, plan, 2)
	assert.Equal(t, "USDC", plan[0].token)
	assert.Equal(t, "SOL", plan[1].token)
}

func TestFallbackPlan_ReductionFloor(t *testing.T) {
	// 0.5/10 = 0.05 would undershoot the floor; it is clamped to 0.1
	plan := fallbackPlan(&session.TransferIntent{Token: "SOL", To: "addr", Amount: 0.5})
	require.Len(t, plan, 3)
	assert.Equal(t, 0.1, plan[2].amount)
}

func TestAlternateToken(t *testing.T) {
	assert.Equal(t, "SOL", alternateToken("USDC"))
	assert.Equal(t, "USDC", alternateToken("SOL"))
	assert.Equal(t, "USDC", alternateToken("BONK"))
}

func TestBuildTransferArtifact_FirstAttemptSucceeds(t *testing.T) {
	env := newTestEnv(t)
	intent := &session.TransferIntent{Token: "USDC", To: "addr", Amount: 50}

	result, err := env.orch.buildTransferArtifact(context.Background(), zap.NewNop().Sugar(), "12345678", intent)
	require.NoError(t, err)
	assert.Empty(t, result.note)

	requests := env.builder.recorded()
	require.Len(t, requests, 1)
	assert.Equal(t, "USDC", requests[0].Token)
	assert.Equal(t, "addr", requests[0].To)
	assert.Equal(t, float64(50), requests[0].Amount)
	assert.Equal(t, "account-pubkey", requests[0].Account)

	require.Len(t, env.attacher.transactions, 1)
	assert.Equal(t, "12345678", env.attacher.transactions[0].code)
	assert.Equal(t, "payload-USDC", env.attacher.transactions[0].payload)
}

func TestBuildTransferArtifact_FallbackDeterminism(t *testing.T) {
	env := newTestEnv(t)
	env.builder.build = func(req txbuilder.TransferRequest) (string, error) {
		return "", serviceFault("insufficient liquidity")
	}
	intent := &session.TransferIntent{Token: "USDC", To: "addr", Amount: 1.0}

	_, err := env.orch.buildTransferArtifact(context.Background(), zap.NewNop().Sugar(), "12345678", intent)

	var conErr *ConstructionError
	require.ErrorAs(t, err, &conErr)
	assert.Equal(t, "insufficient liquidity", conErr.Detail)

	requests := env.builder.recorded()
	require.Len(t, requests, 3)
	assert.Equal(t, "USDC", requests[0].Token)
	assert.Equal(t, 1.0, requests[0].Amount)
	assert.Equal(t, "SOL", requests[1].Token)
	assert.Equal(t, 1.0, requests[1].Amount)
	assert.Equal(t, "USDC", requests[2].Token)
	assert.Equal(t, 0.1, requests[2].Amount)

	// Destination and account never substituted
	for _, req := range requests {
		assert.Equal(t, "addr", req.To)
		assert.Equal(t, "account-pubkey", req.Account)
	}

	assert.Empty(t, env.attacher.transactions)
}

func TestBuildTransferArtifact_SmallAmountExhaustsAfterTwoAttempts(t *testing.T) {
	env := newTestEnv(t)
	env.builder.build = func(req txbuilder.TransferRequest) (string, error) {
		return "", serviceFault("overloaded")
	}
	intent := &session.TransferIntent{Token: "USDC", To: "addr", Amount: 0.05}

	_, err := env.orch.buildTransferArtifact(context.Background(), zap.NewNop().Sugar(), "12345678", intent)

	var conErr *ConstructionError
	require.ErrorAs(t, err, &conErr)
	require.Len(t, env.builder.recorded(), 2)
}

func TestBuildTransferArtifact_AlternateTokenSucceeds(t *testing.T) {
	env := newTestEnv(t)
	env.builder.build = func(req txbuilder.TransferRequest) (string, error) {
		if req.Token == "USDC" {
			return "", serviceFault("no route")
		}
		return "sol-payload", nil
	}
	intent := &session.TransferIntent{Token: "USDC", To: "addr", Amount: 1.0}

	result, err := env.orch.buildTransferArtifact(context.Background(), zap.NewNop().Sugar(), "12345678", intent)
	require.NoError(t, err)
	assert.Contains(t, result.note, "SOL")

	require.Len(t, env.attacher.transactions, 1)
	assert.Equal(t, "sol-payload", env.attacher.transactions[0].payload)
}

func TestBuildTransferArtifact_ClientFaultEscalatesImmediately(t *testing.T) {
	env := newTestEnv(t)
	env.builder.build = func(req txbuilder.TransferRequest) (string, error) {
		return "", clientFault("unknown token")
	}
	intent := &session.TransferIntent{Token: "USDC", To: "addr", Amount: 1.0}

	_, err := env.orch.buildTransferArtifact(context.Background(), zap.NewNop().Sugar(), "12345678", intent)

	var conErr *ConstructionError
	require.ErrorAs(t, err, &conErr)
	require.Len(t, env.builder.recorded(), 1)
}

func TestBuildTransferArtifact_TransportFailureEscalatesImmediately(t *testing.T) {
	env := newTestEnv(t)
	env.builder.build = func(req txbuilder.TransferRequest) (string, error) {
		return "", fmt.Errorf("connection refused")
	}
	intent := &session.TransferIntent{Token: "USDC", To: "addr", Amount: 1.0}

	_, err := env.orch.buildTransferArtifact(context.Background(), zap.NewNop().Sugar(), "12345678", intent)

	var conErr *ConstructionError
	require.ErrorAs(t, err, &conErr)
	require.Len(t, env.builder.recorded(), 1)
}

func TestBuildTransferArtifact_ResolutionFailureIsFatal(t *testing.T) {
	env := newTestEnv(t)
	env.resolver.err = errors.New("code not found")
	intent := &session.TransferIntent{Token: "USDC", To: "addr", Amount: 1.0}

	_, err := env.orch.buildTransferArtifact(context.Background(), zap.NewNop().Sugar(), "12345678", intent)

	var resErr *ResolutionError
	require.ErrorAs(t, err, &resErr)
	assert.Empty(t, env.builder.recorded())
}

func TestBuildTransferArtifact_AttachFailurePropagates(t *testing.T) {
	env := newTestEnv(t)
	env.attacher.txErr = errors.New("relay unavailable")
	intent := &session.TransferIntent{Token: "USDC", To: "addr", Amount: 1.0}

	_, err := env.orch.buildTransferArtifact(context.Background(), zap.NewNop().Sugar(), "12345678", intent)
	require.Error(t, err)

	var conErr *ConstructionError
	assert.False(t, errors.As(err, &conErr))
}

func TestBuildMessageArtifact(t *testing.T) {
	env := newTestEnv(t)

	err := env.orch.buildMessageArtifact(context.Background(), "12345678", &session.MessageIntent{Text: "hello"})
	require.NoError(t, err)

	require.Len(t, env.attacher.messages, 1)
	assert.Equal(t, "12345678", env.attacher.messages[0].code)
	assert.Equal(t, "hello", env.attacher.messages[0].text)
}

package flow

import (
	"math"
	"strconv"
	"strings"

	"github.com/actioncodes/actionbot/pkg/session"
)

// ParseTransferParams parses one line of freeform text into a transfer
// intent. The line must contain exactly three whitespace-separated
// fields: token, destination address and amount. The amount must parse
// as a positive finite number; bad values are rejected here, at
// collection time, never later in the flow.
func ParseTransferParams(text string) (*session.TransferIntent, error) {
	parts := strings.Fields(text)
	if len(parts) != 3 {
		return nil, ErrTransferFormat
	}

	token, to, amountStr := parts[0], parts[1], parts[2]

	amount, err := strconv.ParseFloat(amountStr, 64)
	if err != nil || math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return nil, ErrInvalidAmount
	}

	return &session.TransferIntent{
		Token:  token,
		To:     to,
		Amount: amount,
	}, nil
}

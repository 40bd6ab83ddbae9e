package flow

import (
	"fmt"
	"strconv"
)

// User-facing chat texts. All flow outcomes are chat messages; there are
// no machine-readable exit codes.
const (
	msgWelcome = "Welcome! This bot signs messages and transfers with Action Codes."

	msgAskMessage = "Please enter a message to sign with Action Codes:"

	msgAskTransferParams = "Please enter transfer parameters in this format:\n\n" +
		"<token> <to_address> <amount>\n\n" +
		"Example: USDC 6tBUD4bQzNehG3hQVtVFaGxre2P8rQoH99pubRtgSbSb 100"

	msgBadTransferFormat = "❌ Invalid format. Please use: <token> <to_address> <amount>\n\n" +
		"Example: USDC 6tBUD4bQzNehG3hQVtVFaGxre2P8rQoH99pubRtgSbSb 100"

	msgBadAmount = "❌ Invalid amount. Please enter a valid positive number."

	msgAskCode = "Please enter the 8-digit one-time action code:\n\n" +
		"Visit actioncode.app to get a one-time code and submit it here."

	msgBadCode = "Please enter a valid 8-digit action code."

	msgProcessing = "⏳ Processing... Please confirm the action on actioncode.app"

	msgExpired = "❌ Action code has expired. Please try again with a new code."

	msgRemoteError = "❌ Error processing the action code. Please make sure the code is valid and try again."

	msgNoSignature = "❌ Failed to get transaction signature. Please try again."

	msgNoSignedMessage = "❌ Failed to get signed message. Please try again."
)

func msgTransferEcho(token, to string, amount float64) string {
	return fmt.Sprintf("Transfer Parameters:\nToken: %s\nTo: %s\nAmount: %s\n\n%s",
		token, to, formatAmount(amount), msgAskCode)
}

func msgPendingTransfer(note string) string {
	if note != "" {
		return fmt.Sprintf("⏳ Pending/Waiting for transaction signature...\n\n%s\n\nPlease complete the action on actioncode.app", note)
	}
	return "⏳ Pending/Waiting for transaction signature...\n\nPlease complete the action on actioncode.app"
}

func msgPendingMessage() string {
	return "⏳ Pending/Waiting for action completion...\n\nPlease complete the action on actioncode.app"
}

func msgTransferSigned(signature, note string) string {
	text := fmt.Sprintf("✅ Transfer transaction signed successfully!\n\nTransaction Signature: %s", signature)
	if note != "" {
		text += "\n\nNote: " + note
	}
	return text
}

func msgMessageSigned(signedMessage string) string {
	return fmt.Sprintf("✅ Message signed successfully!\n\nSigned Message: %s", signedMessage)
}

func msgTransferFailed(detail string) string {
	return fmt.Sprintf("❌ Error processing transfer: %s", detail)
}

func formatAmount(amount float64) string {
	return strconv.FormatFloat(amount, 'f', -1, 64)
}

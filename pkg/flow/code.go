package flow

import (
	"regexp"
	"strings"
)

// Action codes are exactly 8 digits: no sign, no decimal point, nothing
// before or after.
var codePattern = regexp.MustCompile(`^[0-9]{8}$`)

// ValidateCode checks the one-time action code format. The surrounding
// whitespace a chat client may add is trimmed before validation; the
// trimmed code is returned.
func ValidateCode(text string) (string, error) {
	code := strings.TrimSpace(text)
	if !codePattern.MatchString(code) {
		return "", ErrInvalidCodeFormat
	}
	return code, nil
}

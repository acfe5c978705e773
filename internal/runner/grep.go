package runner

import (
	"strings"

	dberrors "github.com/p-blackswan/test-dashboard/internal/errors"
)

// MaxGrepLength is the longest accepted --grep filter.
const MaxGrepLength = 100

// SanitizeGrep validates a test title filter. Characters other than letters,
// digits, space, underscore, @ and hyphen are removed. An empty result means
// no filter.
func SanitizeGrep(grep string) (string, error) {
	if grep == "" {
		return "", nil
	}
	if len(grep) > MaxGrepLength {
		return "", dberrors.NewValidation("grep", "Grep pattern too long")
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == ' ', r == '_', r == '@', r == '-':
			return r
		}
		return -1
	}, grep), nil
}

package security

import (
	"unicode"

	zxcvbn "github.com/nbutton23/zxcvbn-go"
)

// Password length bounds enforced when a policy enables complexity checks.
const (
	MinPasswordLength = 8
	MaxPasswordLength = 40
)

// PasswordLengthOK reports whether the candidate falls inside the accepted
// length bounds.
func PasswordLengthOK(password string) bool {
	n := len([]rune(password))
	return n >= MinPasswordLength && n <= MaxPasswordLength
}

// PasswordComplexityOK applies the 3-of-4 character-class rule: of lowercase,
// uppercase, digit, and non-alphanumeric, at least three classes must appear.
func PasswordComplexityOK(password string) bool {
	var lower, upper, digit, symbol bool

	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		default:
			symbol = true
		}
	}

	return (lower && ((upper && (digit || symbol)) || (symbol && digit))) ||
		(symbol && upper && digit)
}

// PasswordStrengthScore rates the candidate with zxcvbn (0 weakest, 4
// strongest), feeding contextual user inputs so derivations of the login or
// email rank poorly.
func PasswordStrengthScore(password string, userInputs ...string) int {
	return zxcvbn.PasswordStrength(password, userInputs).Score
}

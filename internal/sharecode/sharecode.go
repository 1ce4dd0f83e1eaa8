// Package sharecode generates and validates the short codes that map to
// canonical debate URLs.
package sharecode

import (
	"crypto/rand"
	"fmt"
	"strings"
)

// alphabet omits the ambiguous characters 0, O, I, l and 1.
const alphabet = "abcdefghjkmnopqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const (
	MinLength     = 6
	MaxLength     = 12
	defaultLength = 8
)

// New generates a code of the default length.
func New() (string, error) {
	return NewWithLength(defaultLength)
}

// maxUnbiasedByte is the largest multiple of len(alphabet) that fits in a
// byte. Random bytes at or above it are rejected rather than folded, which
// would skew the fold toward the low end of the alphabet.
const maxUnbiasedByte = 256 / len(alphabet) * len(alphabet)

// NewWithLength generates a code of n characters from the unambiguous
// alphabet using crypto-grade randomness.
func NewWithLength(n int) (string, error) {
	if n < MinLength || n > MaxLength {
		return "", fmt.Errorf("share code length %d out of range [%d, %d]", n, MinLength, MaxLength)
	}
	code := make([]byte, 0, n)
	buf := make([]byte, n)
	for len(code) < n {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("share code entropy: %w", err)
		}
		for _, b := range buf {
			if len(code) == n {
				break
			}
			if int(b) >= maxUnbiasedByte {
				continue
			}
			code = append(code, alphabet[int(b)%len(alphabet)])
		}
	}
	return string(code), nil
}

// Valid reports whether s is a well-formed share code.
func Valid(s string) bool {
	if len(s) < MinLength || len(s) > MaxLength {
		return false
	}
	for _, r := range s {
		if !strings.ContainsRune(alphabet, r) {
			return false
		}
	}
	return true
}

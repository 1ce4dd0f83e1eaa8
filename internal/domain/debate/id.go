package debate

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"regexp"
)

const debateIDPrefix = "db_"

var debateIDPattern = regexp.MustCompile(`^db_[A-Za-z0-9_-]{16}$`)

// NewDebateID produces a collision-resistant debate identifier: "db_"
// followed by 16 base64url characters derived from 12 cryptographically
// random bytes.
func NewDebateID() (string, error) {
	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate debate id: %w", err)
	}
	return debateIDPrefix + base64.RawURLEncoding.EncodeToString(buf), nil
}

// ValidDebateID reports whether id matches ^db_[A-Za-z0-9_-]{16}$.
func ValidDebateID(id string) bool {
	return debateIDPattern.MatchString(id)
}

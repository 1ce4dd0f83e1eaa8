package debate

import (
	"crypto/rand"
	"math/big"
	"time"
)

// Format identifies the debate format, which shapes the turn schedule.
type Format string

const (
	FormatStandard       Format = "standard"
	FormatOxford         Format = "oxford"
	FormatLincolnDouglas Format = "lincoln-douglas"
)

// ValidFormat reports whether f is a recognized debate format.
func ValidFormat(f Format) bool {
	switch f {
	case FormatStandard, FormatOxford, FormatLincolnDouglas:
		return true
	}
	return false
}

// SessionStatus is the lifecycle state of a DebateSession.
type SessionStatus string

const (
	SessionReady     SessionStatus = "ready"
	SessionActive    SessionStatus = "active"
	SessionPaused    SessionStatus = "paused"
	SessionCompleted SessionStatus = "completed"
	SessionError     SessionStatus = "error"
)

// Model identifies a debater model family. The moderator is always played by
// a separate family (claude) and is never part of an assignment.
type Model string

const (
	ModelChatGPT Model = "chatgpt"
	ModelGrok    Model = "grok"
)

// HiddenAssignment maps the FOR and AGAINST positions to model families.
// It must never appear in any client-visible response until the debate
// completes.
type HiddenAssignment struct {
	ForPosition     Model `json:"for_position"`
	AgainstPosition Model `json:"against_position"`
}

// NewHiddenAssignment randomly assigns the two model families to sides.
// ForPosition != AgainstPosition always holds.
func NewHiddenAssignment() HiddenAssignment {
	n, err := rand.Int(rand.Reader, big.NewInt(2))
	if err != nil || n.Int64() == 0 {
		return HiddenAssignment{ForPosition: ModelChatGPT, AgainstPosition: ModelGrok}
	}
	return HiddenAssignment{ForPosition: ModelGrok, AgainstPosition: ModelChatGPT}
}

// DebateSession is the authoritative record for one debate. It is owned
// exclusively by the session store and mutated only through it.
type DebateSession struct {
	ID          string           `json:"id"`
	Topic       string           `json:"topic"`
	TurnCount   int              `json:"turn_count"`
	Format      Format           `json:"format"`
	CustomRules []string         `json:"custom_rules,omitempty"`
	Assignment  HiddenAssignment `json:"assignment"`
	Status      SessionStatus    `json:"status"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	ExpiresAt   time.Time        `json:"expires_at"`
}

// PublicSession is the only session shape that may appear in a client
// response before completion. It carries no assignment field at all, so a
// stale projection can never leak the sides.
type PublicSession struct {
	ID          string        `json:"id"`
	Topic       string        `json:"topic"`
	TurnCount   int           `json:"turn_count"`
	Format      Format        `json:"format"`
	CustomRules []string      `json:"custom_rules,omitempty"`
	Status      SessionStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	ExpiresAt   time.Time     `json:"expires_at"`
}

// Public strips the hidden assignment and internal timestamps.
func (s *DebateSession) Public() *PublicSession {
	return &PublicSession{
		ID:          s.ID,
		Topic:       s.Topic,
		TurnCount:   s.TurnCount,
		Format:      s.Format,
		CustomRules: s.CustomRules,
		Status:      s.Status,
		CreatedAt:   s.CreatedAt,
		ExpiresAt:   s.ExpiresAt,
	}
}

// Expired reports whether the session's TTL has elapsed at the given time.
func (s *DebateSession) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

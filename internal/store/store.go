// Package store persists debate records as encrypted, TTL-bound blobs over
// a pluggable key-value backend.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"rostra/internal/domain"
	"rostra/internal/domain/debate"
)

// Key layout for the blob namespace.
const (
	sessionKeyPrefix = "debate:session:"
	engineKeyPrefix  = "debate:engine:"
	usageKeyPrefix   = "debate:usage:"
	judgeKeyPrefix   = "debate:judge:"
	shareKeyPrefix   = "debate:share:"
	// reverse index from debate id to its issued share code
	shareReverseKeyPrefix = "debate:sharecode:"
)

// KV is the pluggable backend: a remote key-value store with native TTL, or
// an in-process map for tests and single-node deployments.
type KV interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, key string) (bool, error)
	// Update applies mutate to the current value under a compare-and-set
	// discipline: concurrent updates to the same key are serialized. A zero
	// ttl preserves the key's remaining TTL.
	Update(ctx context.Context, key string, ttl time.Duration, mutate func(current []byte, exists bool) ([]byte, error)) error
}

// Store is the typed facade over the encrypted blob namespace. Sessions,
// engine states and usage tallies are all encrypted before leaving process
// memory; a record that fails authentication is treated as absent and
// purged.
type Store struct {
	kv     KV
	cipher *Cipher
	logger *slog.Logger
}

// New assembles a store over the given backend.
func New(kv KV, cipher *Cipher, logger *slog.Logger) *Store {
	return &Store{kv: kv, cipher: cipher, logger: logger}
}

func (s *Store) putEncrypted(ctx context.Context, key string, v any, ttl time.Duration) error {
	plain, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	blob, err := s.cipher.Encrypt(plain)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, key, []byte(blob), ttl)
}

func (s *Store) getEncrypted(ctx context.Context, key string, v any) error {
	blob, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrNotFound
	}
	plain, err := s.cipher.Decrypt(string(blob))
	if err != nil {
		// Corrupted records are purged and reported as absent.
		s.logger.Warn("purging corrupted record", "key", key, "error", err)
		if _, delErr := s.kv.Delete(ctx, key); delErr != nil {
			s.logger.Warn("failed to purge corrupted record", "key", key, "error", delErr)
		}
		return domain.ErrNotFound
	}
	if err := json.Unmarshal(plain, v); err != nil {
		return fmt.Errorf("unmarshal record: %w", err)
	}
	return nil
}

// PutSession writes a session with a TTL matching its expiry.
func (s *Store) PutSession(ctx context.Context, session *debate.DebateSession) error {
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session %s already expired", session.ID)
	}
	return s.putEncrypted(ctx, sessionKeyPrefix+session.ID, session, ttl)
}

// GetSession reads a session; expired or corrupted records read as absent.
func (s *Store) GetSession(ctx context.Context, id string) (*debate.DebateSession, error) {
	var session debate.DebateSession
	if err := s.getEncrypted(ctx, sessionKeyPrefix+id, &session); err != nil {
		return nil, err
	}
	if session.Expired(time.Now()) {
		if _, err := s.kv.Delete(ctx, sessionKeyPrefix+id); err != nil {
			s.logger.Warn("failed to reap expired session", "id", id, "error", err)
		}
		return nil, domain.ErrNotFound
	}
	return &session, nil
}

// UpdateSession applies a mutation under compare-and-set. The mutator sees
// the decrypted current record and may modify it in place; UpdatedAt is
// stamped on success.
func (s *Store) UpdateSession(ctx context.Context, id string, mutate func(*debate.DebateSession) error) (*debate.DebateSession, error) {
	var updated *debate.DebateSession
	err := s.kv.Update(ctx, sessionKeyPrefix+id, 0, func(current []byte, exists bool) ([]byte, error) {
		if !exists {
			return nil, domain.ErrNotFound
		}
		plain, err := s.cipher.Decrypt(string(current))
		if err != nil {
			return nil, domain.ErrNotFound
		}
		var session debate.DebateSession
		if err := json.Unmarshal(plain, &session); err != nil {
			return nil, fmt.Errorf("unmarshal session: %w", err)
		}
		if session.Expired(time.Now()) {
			return nil, domain.ErrNotFound
		}
		if err := mutate(&session); err != nil {
			return nil, err
		}
		session.UpdatedAt = time.Now().UTC()
		next, err := json.Marshal(&session)
		if err != nil {
			return nil, fmt.Errorf("marshal session: %w", err)
		}
		blob, err := s.cipher.Encrypt(next)
		if err != nil {
			return nil, err
		}
		updated = &session
		return []byte(blob), nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteSession removes a session record.
func (s *Store) DeleteSession(ctx context.Context, id string) (bool, error) {
	return s.kv.Delete(ctx, sessionKeyPrefix+id)
}

// PutEngineState persists the crash-recovery snapshot.
func (s *Store) PutEngineState(ctx context.Context, state *debate.EngineState, ttl time.Duration) error {
	return s.putEncrypted(ctx, engineKeyPrefix+state.SessionID, state, ttl)
}

// GetEngineState reads the snapshot for a debate, or ErrNotFound.
func (s *Store) GetEngineState(ctx context.Context, id string) (*debate.EngineState, error) {
	var state debate.EngineState
	if err := s.getEncrypted(ctx, engineKeyPrefix+id, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// PutUsage persists the budget tally.
func (s *Store) PutUsage(ctx context.Context, usage *debate.DebateUsage, ttl time.Duration) error {
	return s.putEncrypted(ctx, usageKeyPrefix+usage.SessionID, usage, ttl)
}

// GetUsage reads the tally for a debate, or ErrNotFound.
func (s *Store) GetUsage(ctx context.Context, id string) (*debate.DebateUsage, error) {
	var usage debate.DebateUsage
	if err := s.getEncrypted(ctx, usageKeyPrefix+id, &usage); err != nil {
		return nil, err
	}
	return &usage, nil
}

// PutJudgeAnalysis caches a judge report as raw JSON.
func (s *Store) PutJudgeAnalysis(ctx context.Context, id string, analysis []byte, ttl time.Duration) error {
	blob, err := s.cipher.Encrypt(analysis)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, judgeKeyPrefix+id, []byte(blob), ttl)
}

// GetJudgeAnalysis reads a cached judge report.
func (s *Store) GetJudgeAnalysis(ctx context.Context, id string) ([]byte, error) {
	blob, ok, err := s.kv.Get(ctx, judgeKeyPrefix+id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrNotFound
	}
	plain, err := s.cipher.Decrypt(string(blob))
	if err != nil {
		if _, delErr := s.kv.Delete(ctx, judgeKeyPrefix+id); delErr != nil {
			s.logger.Warn("failed to purge corrupted judge cache", "id", id, "error", delErr)
		}
		return nil, domain.ErrNotFound
	}
	return plain, nil
}

// PutShareCode maps a short code to a debate id. Codes are public by
// design, so they are stored unencrypted.
func (s *Store) PutShareCode(ctx context.Context, code, debateID string, ttl time.Duration) error {
	return s.kv.Set(ctx, shareKeyPrefix+code, []byte(debateID), ttl)
}

// GetShareCode resolves a short code to its debate id.
func (s *Store) GetShareCode(ctx context.Context, code string) (string, error) {
	v, ok, err := s.kv.Get(ctx, shareKeyPrefix+code)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", domain.ErrNotFound
	}
	return string(v), nil
}

// PutDebateShareCode records the reverse mapping so repeated share requests
// for one debate reuse the same code.
func (s *Store) PutDebateShareCode(ctx context.Context, debateID, code string, ttl time.Duration) error {
	return s.kv.Set(ctx, shareReverseKeyPrefix+debateID, []byte(code), ttl)
}

// GetDebateShareCode returns the code already issued for a debate.
func (s *Store) GetDebateShareCode(ctx context.Context, debateID string) (string, error) {
	v, ok, err := s.kv.Get(ctx, shareReverseKeyPrefix+debateID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", domain.ErrNotFound
	}
	return string(v), nil
}

// SessionTTL computes the remaining TTL for records tied to a session.
func SessionTTL(session *debate.DebateSession) time.Duration {
	return time.Until(session.ExpiresAt)
}

// IsNotFound reports whether an error is the store's absence signal.
func IsNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}

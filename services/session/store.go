package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"disambiguator/database/kvstore"
	"disambiguator/models"
)

// KVSessionStore keeps each session as JSON under KeyPrefix+sessionID,
// expiring when the session does.
type KVSessionStore struct {
	kv  kvstore.KVStore
	now func() time.Time
}

func NewKVSessionStore(kv kvstore.KVStore) *KVSessionStore {
	return &KVSessionStore{kv: kv, now: time.Now}
}

func (s *KVSessionStore) Get(ctx context.Context, sessionID string) (*models.DisambiguationSession, error) {
	data, err := s.kv.Get(ctx, KeyPrefix+sessionID)
	if errors.Is(err, kvstore.ErrCacheMiss) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	var sess models.DisambiguationSession
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", sessionID, err)
	}
	return &sess, nil
}

// Save stores the session until its ExpiresAt. An already expired session is removed instead.
func (s *KVSessionStore) Save(ctx context.Context, sess *models.DisambiguationSession) error {
	id := sess.Context.SessionID
	if id == "" {
		return errors.New("session has no id")
	}
	ttl := sess.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return s.Delete(ctx, id)
	}
	b, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", id, err)
	}
	if err := s.kv.SetWithTTL(ctx, KeyPrefix+id, b, ttl); err != nil {
		return fmt.Errorf("save session %s: %w", id, err)
	}
	return nil
}

func (s *KVSessionStore) Delete(ctx context.Context, sessionID string) error {
	if _, err := s.kv.Delete(ctx, KeyPrefix+sessionID); err != nil {
		return fmt.Errorf("delete session %s: %w", sessionID, err)
	}
	return nil
}

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360studio/udahub/ticket"
)

// BucketSessions is the KV bucket holding ticket session state.
const BucketSessions = "UDAHUB_SESSIONS"

// KVStore persists session state in a NATS JetStream KV bucket. Keeping a
// few revisions of each key makes post-incident audits of a session's
// transition history possible without extra infrastructure.
type KVStore struct {
	sessions jetstream.KeyValue
}

// NewKVStore creates a KVStore, creating the sessions bucket if needed.
func NewKVStore(ctx context.Context, js jetstream.JetStream) (*KVStore, error) {
	kv, err := getOrCreateBucket(ctx, js, BucketSessions)
	if err != nil {
		return nil, fmt.Errorf("create sessions bucket: %w", err)
	}
	return &KVStore{sessions: kv}, nil
}

func getOrCreateBucket(ctx context.Context, js jetstream.JetStream, name string) (jetstream.KeyValue, error) {
	kv, err := js.KeyValue(ctx, name)
	if err == nil {
		return kv, nil
	}
	return js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      name,
		Description: "udahub ticket session state",
		History:     5,
	})
}

// Load implements Store.
func (s *KVStore) Load(ctx context.Context, sessionID string) (*ticket.State, error) {
	entry, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get session %s: %w", sessionID, err)
	}

	var st ticket.State
	if err := json.Unmarshal(entry.Value(), &st); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", sessionID, err)
	}
	return &st, nil
}

// Save implements Store.
func (s *KVStore) Save(ctx context.Context, sessionID string, st *ticket.State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", sessionID, err)
	}
	if _, err := s.sessions.Put(ctx, sessionID, data); err != nil {
		return fmt.Errorf("put session %s: %w", sessionID, err)
	}
	return nil
}

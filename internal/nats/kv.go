package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/capitalize-ai/campuschat/internal/model"
	"github.com/capitalize-ai/campuschat/internal/service"
)

// BucketName is the key-value bucket holding conversation documents.
const BucketName = "CONVERSATIONS"

// ConversationStore keeps one JSON document per conversation in a JetStream
// key-value bucket, keyed by conversation id.
type ConversationStore struct {
	kv jetstream.KeyValue
}

var _ service.ConversationStore = (*ConversationStore)(nil)

// NewConversationStore creates or binds the CONVERSATIONS bucket.
func NewConversationStore(ctx context.Context, client *Client) (*ConversationStore, error) {
	kv, err := client.JetStream().CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      BucketName,
		Description: "Conversation documents by id",
		History:     1,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create key-value bucket: %w", err)
	}
	return &ConversationStore{kv: kv}, nil
}

// Get implements service.ConversationStore. Ids that are not valid keys
// cannot exist and are reported as not found.
func (s *ConversationStore) Get(ctx context.Context, id string) (*model.Conversation, error) {
	entry, err := s.kv.Get(ctx, id)
	if errors.Is(err, jetstream.ErrKeyNotFound) || errors.Is(err, jetstream.ErrInvalidKey) {
		return nil, fmt.Errorf("%w: %s", service.ErrConversationNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}

	var conv model.Conversation
	if err := json.Unmarshal(entry.Value(), &conv); err != nil {
		return nil, fmt.Errorf("failed to decode conversation %s: %w", id, err)
	}
	return &conv, nil
}

// Put implements service.ConversationStore.
func (s *ConversationStore) Put(ctx context.Context, conv *model.Conversation) error {
	data, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation: %w", err)
	}
	if _, err := s.kv.Put(ctx, conv.ID, data); err != nil {
		return fmt.Errorf("failed to put conversation: %w", err)
	}
	return nil
}

// List implements service.ConversationStore.
func (s *ConversationStore) List(ctx context.Context) ([]*model.Conversation, error) {
	lister, err := s.kv.ListKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	defer lister.Stop()

	var out []*model.Conversation
	for key := range lister.Keys() {
		conv, err := s.Get(ctx, key)
		if errors.Is(err, service.ErrConversationNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, conv)
	}
	return out, nil
}

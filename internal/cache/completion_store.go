package cache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// CompletionStore persists the one durable marker the session flow leaves
// behind: which test sets a learner has fully completed. Listing screens
// read it back to render completion badges.
type CompletionStore interface {
	MarkCompleted(ctx context.Context, userKey, setID string) error
	CompletedSets(ctx context.Context, userKey string) ([]string, error)
}

type redisCompletionStore struct {
	client *redis.Client
}

func NewCompletionStore(client *redis.Client) CompletionStore {
	return &redisCompletionStore{client: client}
}

func completionKey(userKey string) string {
	return "completed_tests:" + userKey
}

func (s *redisCompletionStore) MarkCompleted(ctx context.Context, userKey, setID string) error {
	if err := s.client.SAdd(ctx, completionKey(userKey), setID).Err(); err != nil {
		return fmt.Errorf("failed to mark test %q completed: %w", setID, err)
	}
	return nil
}

func (s *redisCompletionStore) CompletedSets(ctx context.Context, userKey string) ([]string, error) {
	sets, err := s.client.SMembers(ctx, completionKey(userKey)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list completed tests: %w", err)
	}
	return sets, nil
}

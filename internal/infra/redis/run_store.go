package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"qbank-import-service/internal/domain"
)

// RunStore is a Redis implementation of app.RunRepository. Runs are shared across
// instances and expire with the configured TTL.
type RunStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRunStore(client *redis.Client, ttl time.Duration) *RunStore {
	return &RunStore{client: client, ttl: ttl}
}

func (s *RunStore) Save(ctx context.Context, run domain.ImportRun) error {
	raw, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshal run: %w", err)
	}
	return s.client.Set(ctx, s.key(run.ID), raw, s.ttl).Err()
}

func (s *RunStore) Get(ctx context.Context, id string) (domain.ImportRun, error) {
	raw, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.ImportRun{}, domain.ErrRunNotFound
	}
	if err != nil {
		return domain.ImportRun{}, fmt.Errorf("load run: %w", err)
	}
	var run domain.ImportRun
	if err := json.Unmarshal(raw, &run); err != nil {
		return domain.ImportRun{}, fmt.Errorf("unmarshal run: %w", err)
	}
	return run, nil
}

func (s *RunStore) key(id string) string {
	return "import:run:" + id
}

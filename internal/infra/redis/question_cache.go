package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"qbank-import-service/internal/config"
	"qbank-import-service/internal/domain"
)

// QuestionLoader fetches a question from the backing store.
type QuestionLoader interface {
	LoadQuestion(ctx context.Context, id int64) (domain.Question, error)
}

// QuestionCache keeps JSON-encoded questions in Redis and falls back to a loader on miss.
// Entries live under question:{id} with a jittered TTL.
type QuestionCache struct {
	client *redis.Client
	loader QuestionLoader
	ttl    time.Duration
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand

	// versions is bumped by Invalidate; a load that started earlier is not written back.
	versionMu sync.Mutex
	versions  map[int64]uint64
}

func NewQuestionCache(client *redis.Client, loader QuestionLoader, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),

		versions: make(map[int64]uint64),
	}
}

func (c *QuestionCache) GetQuestion(ctx context.Context, id int64) (domain.Question, error) {
	if q, ok := c.cached(ctx, id); ok {
		return q, nil
	}

	result, err, _ := c.sf.Do(strconv.FormatInt(id, 10), func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if q, ok := c.cached(ctx, id); ok {
			return q, nil
		}

		version := c.version(id)
		q, err := c.loader.LoadQuestion(ctx, id)
		if err != nil {
			return domain.Question{}, err
		}
		c.store(ctx, id, version, q)
		return q, nil
	})
	if err != nil {
		return domain.Question{}, err
	}
	return result.(domain.Question), nil
}

// Invalidate drops the cached copy of id. Failures only cost a stale read until the TTL lapses.
func (c *QuestionCache) Invalidate(ctx context.Context, id int64) {
	c.versionMu.Lock()
	c.versions[id]++
	c.versionMu.Unlock()
	c.sf.Forget(strconv.FormatInt(id, 10))

	if err := c.client.Del(ctx, c.key(id)).Err(); err != nil {
		config.WithContext(ctx).WithError(err).WithField("question_id", id).Warn("question cache invalidate failed")
	}
}

func (c *QuestionCache) version(id int64) uint64 {
	c.versionMu.Lock()
	defer c.versionMu.Unlock()
	return c.versions[id]
}

// store writes q unless id was invalidated after the load began. The lock is held across
// the SET so an Invalidate either sees the key (and deletes it) or bumps the version first.
func (c *QuestionCache) store(ctx context.Context, id int64, version uint64, q domain.Question) {
	raw, err := json.Marshal(q)
	if err != nil {
		return
	}
	c.versionMu.Lock()
	defer c.versionMu.Unlock()
	if c.versions[id] != version {
		return
	}
	if err := c.client.Set(ctx, c.key(id), raw, c.ttlWithJitter()).Err(); err != nil {
		config.WithContext(ctx).WithError(err).Warn("question cache write failed")
	}
}

func (c *QuestionCache) cached(ctx context.Context, id int64) (domain.Question, bool) {
	raw, err := c.client.Get(ctx, c.key(id)).Bytes()
	if err != nil {
		return domain.Question{}, false
	}
	var q domain.Question
	if err := json.Unmarshal(raw, &q); err != nil {
		return domain.Question{}, false
	}
	return q, true
}

func (c *QuestionCache) key(id int64) string {
	return "question:" + strconv.FormatInt(id, 10)
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

package memory

import (
	"context"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"qbank-import-service/internal/domain"
)

// QuestionLoader fetches a question from the backing store.
type QuestionLoader interface {
	LoadQuestion(ctx context.Context, id int64) (domain.Question, error)
}

// QuestionRepository caches questions with TTL to avoid repeated DB hits.
type QuestionRepository struct {
	loader QuestionLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand

	mu    sync.RWMutex
	cache map[int64]cachedQuestion

	// versions is bumped by Invalidate; a load that started earlier is not cached.
	versions map[int64]uint64
}

type cachedQuestion struct {
	question  domain.Question
	expiresAt time.Time
}

func NewQuestionRepository(loader QuestionLoader, ttl time.Duration) *QuestionRepository {
	return &QuestionRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[int64]cachedQuestion),

		versions: make(map[int64]uint64),
	}
}

func (r *QuestionRepository) GetQuestion(ctx context.Context, id int64) (domain.Question, error) {
	if q, ok := r.lookup(id); ok {
		return q, nil
	}

	result, err, _ := r.sf.Do(strconv.FormatInt(id, 10), func() (interface{}, error) {
		if q, ok := r.lookup(id); ok {
			return q, nil
		}

		r.mu.RLock()
		version := r.versions[id]
		r.mu.RUnlock()

		q, err := r.loader.LoadQuestion(ctx, id)
		if err != nil {
			return domain.Question{}, err
		}

		r.mu.Lock()
		if r.versions[id] == version {
			r.cache[id] = cachedQuestion{
				question:  q,
				expiresAt: r.clock().Add(r.ttlWithJitter()),
			}
		}
		r.mu.Unlock()
		return q, nil
	})
	if err != nil {
		return domain.Question{}, err
	}
	return cloneQuestion(result.(domain.Question)), nil
}

// Invalidate drops the cached copy of id.
func (r *QuestionRepository) Invalidate(_ context.Context, id int64) {
	r.mu.Lock()
	delete(r.cache, id)
	r.versions[id]++
	r.mu.Unlock()
	r.sf.Forget(strconv.FormatInt(id, 10))
}

func (r *QuestionRepository) lookup(id int64) (domain.Question, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.cache[id]
	if !ok || !entry.expiresAt.After(r.clock()) {
		return domain.Question{}, false
	}
	return cloneQuestion(entry.question), true
}

func (r *QuestionRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

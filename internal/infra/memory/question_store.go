package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"qbank-import-service/internal/domain"
)

// QuestionStore is an in-memory implementation of app.QuestionStore. It mirrors the
// Postgres schema: unique external keys, enum checks and column defaults.
type QuestionStore struct {
	mu     sync.RWMutex
	nextID int64
	rows   map[int64]domain.Question
	keys   map[string]int64
	clock  func() time.Time
}

func NewQuestionStore() *QuestionStore {
	return &QuestionStore{
		rows:  make(map[int64]domain.Question),
		keys:  make(map[string]int64),
		clock: time.Now,
	}
}

func (s *QuestionStore) FindByExternalKey(_ context.Context, key string) (domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.keys[key]
	if !ok {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	return cloneQuestion(s.rows[id]), nil
}

func (s *QuestionStore) Insert(_ context.Context, fields domain.QuestionFields) (domain.Question, error) {
	if err := checkEnums(fields); err != nil {
		return domain.Question{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if fields.ExternalKey != "" {
		if _, exists := s.keys[fields.ExternalKey]; exists {
			return domain.Question{}, fmt.Errorf("%w: duplicate external key %q", domain.ErrConstraintViolation, fields.ExternalKey)
		}
	}

	now := s.clock()
	s.nextID++
	q := domain.Question{
		ID:          s.nextID,
		ExternalKey: fields.ExternalKey,
		Language:    domain.DefaultLanguage,
		Difficulty:  domain.DifficultyMedium,
		Kind:        domain.KindMultipleChoice,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	fields.Apply(&q)
	s.rows[q.ID] = q
	if q.ExternalKey != "" {
		s.keys[q.ExternalKey] = q.ID
	}
	return cloneQuestion(q), nil
}

func (s *QuestionStore) Update(_ context.Context, id int64, fields domain.QuestionFields) (domain.Question, error) {
	if err := checkEnums(fields); err != nil {
		return domain.Question{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.rows[id]
	if !ok {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	fields.Apply(&q)
	q.UpdatedAt = s.clock()
	s.rows[id] = q
	return cloneQuestion(q), nil
}

// LoadQuestion satisfies QuestionLoader so the store can back a cache.
func (s *QuestionStore) LoadQuestion(_ context.Context, id int64) (domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.rows[id]
	if !ok {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	return cloneQuestion(q), nil
}

func (s *QuestionStore) ListQuestions(_ context.Context, filter domain.QuestionFilter) ([]domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]int64, 0, len(s.rows))
	for id := range s.rows {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]domain.Question, 0)
	skipped := 0
	for _, id := range ids {
		q := s.rows[id]
		if filter.Topic != "" && !strings.EqualFold(q.Topic, filter.Topic) {
			continue
		}
		if filter.Difficulty != "" && q.Difficulty != filter.Difficulty {
			continue
		}
		if filter.Language != "" && q.Language != filter.Language {
			continue
		}
		if skipped < filter.Offset {
			skipped++
			continue
		}
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
		out = append(out, cloneQuestion(q))
	}
	return out, nil
}

func (s *QuestionStore) ListTopics(_ context.Context, language string) ([]domain.TopicCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byTopic := make(map[string]*domain.TopicCount)
	for _, q := range s.rows {
		if language != "" && q.Language != language {
			continue
		}
		tc, ok := byTopic[q.Topic]
		if !ok {
			tc = &domain.TopicCount{Topic: q.Topic, ByDifficulty: make(map[domain.Difficulty]int)}
			byTopic[q.Topic] = tc
		}
		tc.Count++
		tc.ByDifficulty[q.Difficulty]++
	}

	out := make([]domain.TopicCount, 0, len(byTopic))
	for _, tc := range byTopic {
		out = append(out, *tc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Topic < out[j].Topic })
	return out, nil
}

// Len reports how many questions are stored.
func (s *QuestionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}

func checkEnums(fields domain.QuestionFields) error {
	if fields.Difficulty != "" {
		if _, ok := domain.ParseDifficulty(string(fields.Difficulty)); !ok {
			return fmt.Errorf("%w: invalid difficulty %q", domain.ErrConstraintViolation, fields.Difficulty)
		}
	}
	if fields.Kind != "" {
		if _, ok := domain.ParseKind(string(fields.Kind)); !ok {
			return fmt.Errorf("%w: invalid kind %q", domain.ErrConstraintViolation, fields.Kind)
		}
	}
	return nil
}

func cloneQuestion(q domain.Question) domain.Question {
	if q.Choices != nil {
		choices := make(map[string]string, len(q.Choices))
		for k, v := range q.Choices {
			choices[k] = v
		}
		q.Choices = choices
	}
	if q.Tags != nil {
		q.Tags = append([]string(nil), q.Tags...)
	}
	return q
}

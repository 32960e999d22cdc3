package app

import (
	"context"

	"qbank-import-service/internal/domain"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// QuestionRepository loads single questions (from cache/backing store).
type QuestionRepository interface {
	GetQuestion(ctx context.Context, id int64) (domain.Question, error)
}

// QuestionLister runs filtered listings against the backing store.
type QuestionLister interface {
	ListQuestions(ctx context.Context, filter domain.QuestionFilter) ([]domain.Question, error)
	// ListTopics counts questions per topic, ordered by topic. An empty language matches all.
	ListTopics(ctx context.Context, language string) ([]domain.TopicCount, error)
}

// QuestionService serves the read side of the question bank.
type QuestionService struct {
	questions QuestionRepository
	lister    QuestionLister
}

func NewQuestionService(questions QuestionRepository, lister QuestionLister) *QuestionService {
	return &QuestionService{questions: questions, lister: lister}
}

func (s *QuestionService) Get(ctx context.Context, id int64) (domain.Question, error) {
	return s.questions.GetQuestion(ctx, id)
}

// List clamps the page size before delegating to the store.
func (s *QuestionService) List(ctx context.Context, filter domain.QuestionFilter) ([]domain.Question, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	questions, err := s.lister.ListQuestions(ctx, filter)
	if err != nil {
		return nil, err
	}
	if questions == nil {
		questions = []domain.Question{}
	}
	return questions, nil
}

// Topics returns the topic index, never nil.
func (s *QuestionService) Topics(ctx context.Context, language string) ([]domain.TopicCount, error) {
	topics, err := s.lister.ListTopics(ctx, language)
	if err != nil {
		return nil, err
	}
	if topics == nil {
		topics = []domain.TopicCount{}
	}
	return topics, nil
}

package app_test

import (
	"context"
	"testing"
	"time"

	"qbank-import-service/internal/app"
	"qbank-import-service/internal/domain"
	"qbank-import-service/internal/infra/memory"
)

func TestQuestionServiceListClampsLimit(t *testing.T) {
	lister := &recordingLister{}
	service := app.NewQuestionService(nil, lister)

	got, err := service.List(context.Background(), domain.QuestionFilter{Limit: 10000, Offset: -3})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if got == nil {
		t.Fatalf("expected empty slice, got nil")
	}
	if lister.last.Limit != 200 || lister.last.Offset != 0 {
		t.Fatalf("unexpected filter %+v", lister.last)
	}

	_, _ = service.List(context.Background(), domain.QuestionFilter{})
	if lister.last.Limit != 50 {
		t.Fatalf("expected default limit 50, got %d", lister.last.Limit)
	}
}

func TestQuestionServiceGetReadsThroughCache(t *testing.T) {
	ctx := context.Background()
	store := memory.NewQuestionStore()
	importer := app.NewImporter(store, secret)
	if _, err := importer.Import(ctx, secret, []domain.RawRecord{
		{"source_id": "q1", "topic": "Algebra", "prompt": "2+2=?", "correct_answer": "4", "kind": "open"},
	}); err != nil {
		t.Fatalf("import: %v", err)
	}

	service := app.NewQuestionService(memory.NewQuestionRepository(store, time.Minute), store)
	q, err := service.Get(ctx, 1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if q.ExternalKey != "q1" || q.Kind != domain.KindOpenResponse || q.Difficulty != domain.DifficultyMedium {
		t.Fatalf("unexpected question %+v", q)
	}
}

func TestQuestionServiceTopicsNeverNil(t *testing.T) {
	service := app.NewQuestionService(nil, &recordingLister{})
	topics, err := service.Topics(context.Background(), "")
	if err != nil {
		t.Fatalf("topics: %v", err)
	}
	if topics == nil || len(topics) != 0 {
		t.Fatalf("expected empty slice, got %#v", topics)
	}
}

type recordingLister struct {
	last domain.QuestionFilter
}

func (l *recordingLister) ListTopics(_ context.Context, _ string) ([]domain.TopicCount, error) {
	return nil, nil
}

func (l *recordingLister) ListQuestions(_ context.Context, filter domain.QuestionFilter) ([]domain.Question, error) {
	l.last = filter
	return nil, nil
}

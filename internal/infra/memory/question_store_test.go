package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"qbank-import-service/internal/domain"
)

func TestQuestionStoreInsertAppliesDefaults(t *testing.T) {
	store := NewQuestionStore()
	q, err := store.Insert(context.Background(), domain.QuestionFields{
		Language: "ky", Topic: "Algebra", Prompt: "x", CorrectAnswer: "y",
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if q.ID == 0 || q.Difficulty != domain.DifficultyMedium || q.Kind != domain.KindMultipleChoice {
		t.Fatalf("expected defaults, got %+v", q)
	}
	if q.CreatedAt.IsZero() {
		t.Fatalf("expected created_at to be set")
	}
}

func TestQuestionStoreRejectsDuplicateKey(t *testing.T) {
	store := NewQuestionStore()
	fields := domain.QuestionFields{ExternalKey: "k", Language: "ky", Topic: "t", Prompt: "p", CorrectAnswer: "a"}
	if _, err := store.Insert(context.Background(), fields); err != nil {
		t.Fatalf("insert: %v", err)
	}
	_, err := store.Insert(context.Background(), fields)
	if !errors.Is(err, domain.ErrConstraintViolation) {
		t.Fatalf("expected constraint violation, got %v", err)
	}
	if store.Len() != 1 {
		t.Fatalf("expected one row, got %d", store.Len())
	}
}

func TestQuestionStoreUpdateKeepsCreatedAt(t *testing.T) {
	ctx := context.Background()
	store := NewQuestionStore()
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store.clock = func() time.Time { return created }
	q, err := store.Insert(ctx, domain.QuestionFields{ExternalKey: "k", Language: "ky", Topic: "t", Prompt: "p", CorrectAnswer: "a"})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	later := created.Add(time.Hour)
	store.clock = func() time.Time { return later }
	updated, err := store.Update(ctx, q.ID, domain.QuestionFields{Language: "ky", Topic: "t2", Prompt: "p", CorrectAnswer: "a", Difficulty: domain.DifficultyHard})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !updated.CreatedAt.Equal(created) || !updated.UpdatedAt.Equal(later) {
		t.Fatalf("unexpected timestamps: %+v", updated)
	}
	if updated.Topic != "t2" || updated.Difficulty != domain.DifficultyHard || updated.ExternalKey != "k" {
		t.Fatalf("update not applied: %+v", updated)
	}
}

func TestQuestionStoreRejectsBadEnum(t *testing.T) {
	store := NewQuestionStore()
	_, err := store.Insert(context.Background(), domain.QuestionFields{
		Language: "ky", Topic: "t", Prompt: "p", CorrectAnswer: "a", Kind: domain.Kind("essay"),
	})
	if !errors.Is(err, domain.ErrConstraintViolation) {
		t.Fatalf("expected constraint violation, got %v", err)
	}
}

func TestQuestionStoreListFilters(t *testing.T) {
	ctx := context.Background()
	store := NewQuestionStore()
	for _, f := range []domain.QuestionFields{
		{Language: "ky", Topic: "Algebra", Difficulty: domain.DifficultyEasy, Prompt: "1", CorrectAnswer: "a"},
		{Language: "ky", Topic: "Algebra", Difficulty: domain.DifficultyHard, Prompt: "2", CorrectAnswer: "a"},
		{Language: "ru", Topic: "Algebra", Difficulty: domain.DifficultyEasy, Prompt: "3", CorrectAnswer: "a"},
		{Language: "ky", Topic: "Geometry", Difficulty: domain.DifficultyEasy, Prompt: "4", CorrectAnswer: "a"},
	} {
		if _, err := store.Insert(ctx, f); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	got, _ := store.ListQuestions(ctx, domain.QuestionFilter{Topic: "Algebra", Difficulty: domain.DifficultyEasy})
	if len(got) != 2 || got[0].Prompt != "1" || got[1].Prompt != "3" {
		t.Fatalf("unexpected filter result: %+v", got)
	}

	got, _ = store.ListQuestions(ctx, domain.QuestionFilter{Language: "ky", Limit: 1, Offset: 1})
	if len(got) != 1 || got[0].Prompt != "2" {
		t.Fatalf("unexpected page: %+v", got)
	}
}

func TestQuestionStoreTopicsAndCaseInsensitiveTopic(t *testing.T) {
	ctx := context.Background()
	store := NewQuestionStore()
	for _, f := range []domain.QuestionFields{
		{Language: "ky", Topic: "Geometry", Difficulty: domain.DifficultyEasy, Prompt: "1", CorrectAnswer: "a"},
		{Language: "ky", Topic: "Algebra", Difficulty: domain.DifficultyHard, Prompt: "2", CorrectAnswer: "a"},
		{Language: "ky", Topic: "Algebra", Prompt: "3", CorrectAnswer: "a"},
		{Language: "ru", Topic: "Algebra", Difficulty: domain.DifficultyEasy, Prompt: "4", CorrectAnswer: "a"},
	} {
		if _, err := store.Insert(ctx, f); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	topics, err := store.ListTopics(ctx, "ky")
	if err != nil {
		t.Fatalf("list topics: %v", err)
	}
	if len(topics) != 2 || topics[0].Topic != "Algebra" || topics[1].Topic != "Geometry" {
		t.Fatalf("unexpected topics %+v", topics)
	}
	alg := topics[0]
	if alg.Count != 2 || alg.ByDifficulty[domain.DifficultyHard] != 1 || alg.ByDifficulty[domain.DifficultyMedium] != 1 {
		t.Fatalf("unexpected algebra counts %+v", alg)
	}

	all, _ := store.ListTopics(ctx, "")
	if all[0].Count != 3 {
		t.Fatalf("expected 3 algebra questions across languages, got %+v", all[0])
	}

	got, _ := store.ListQuestions(ctx, domain.QuestionFilter{Topic: "aLgEbRa"})
	if len(got) != 3 {
		t.Fatalf("expected case-insensitive topic match, got %d", len(got))
	}
}

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"

	"qbank-import-service/internal/domain"
)

type questionModel struct {
	bun.BaseModel `bun:"table:questions,alias:q"`

	ID            int64             `bun:"id,pk,autoincrement"`
	ExternalKey   string            `bun:"external_key,nullzero"`
	Language      string            `bun:"language,nullzero,notnull,default:'ky'"`
	Topic         string            `bun:"topic,notnull"`
	Difficulty    string            `bun:"difficulty,nullzero,notnull,default:'medium'"`
	Kind          string            `bun:"kind,nullzero,notnull,default:'multiple_choice'"`
	Prompt        string            `bun:"prompt,notnull"`
	Choices       map[string]string `bun:"choices,type:jsonb"`
	CorrectAnswer string            `bun:"correct_answer,notnull"`
	Explanation   *string           `bun:"explanation"`
	ImageRef      *string           `bun:"image_ref"`
	FormattedMath *string           `bun:"formatted_math"`
	Tags          []string          `bun:"tags,array"`
	CreatedAt     time.Time         `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt     time.Time         `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// QuestionStore writes questions through bun.
type QuestionStore struct {
	db *bun.DB
}

func NewQuestionStore(db *bun.DB) *QuestionStore {
	return &QuestionStore{db: db}
}

func (s *QuestionStore) FindByExternalKey(ctx context.Context, key string) (domain.Question, error) {
	var m questionModel
	err := s.db.NewSelect().Model(&m).Where("external_key = ?", key).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	if err != nil {
		return domain.Question{}, fmt.Errorf("find question by key: %w", err)
	}
	return m.toDomain(), nil
}

func (s *QuestionStore) Insert(ctx context.Context, fields domain.QuestionFields) (domain.Question, error) {
	m := questionModel{
		ExternalKey:   fields.ExternalKey,
		Language:      fields.Language,
		Topic:         fields.Topic,
		Difficulty:    string(fields.Difficulty),
		Kind:          string(fields.Kind),
		Prompt:        fields.Prompt,
		Choices:       fields.Choices,
		CorrectAnswer: fields.CorrectAnswer,
		Explanation:   fields.Explanation,
		ImageRef:      fields.ImageRef,
		FormattedMath: fields.FormattedMath,
		Tags:          fields.Tags,
	}
	if _, err := s.db.NewInsert().Model(&m).Returning("*").Exec(ctx); err != nil {
		return domain.Question{}, mapError(err)
	}
	return m.toDomain(), nil
}

// Update sets the required columns plus every optional column present in fields.
func (s *QuestionStore) Update(ctx context.Context, id int64, fields domain.QuestionFields) (domain.Question, error) {
	m := questionModel{
		ID:            id,
		Topic:         fields.Topic,
		Prompt:        fields.Prompt,
		CorrectAnswer: fields.CorrectAnswer,
		UpdatedAt:     time.Now().UTC(),
	}
	columns := []string{"topic", "prompt", "correct_answer", "updated_at"}
	if fields.Language != "" {
		m.Language = fields.Language
		columns = append(columns, "language")
	}
	if fields.Difficulty != "" {
		m.Difficulty = string(fields.Difficulty)
		columns = append(columns, "difficulty")
	}
	if fields.Kind != "" {
		m.Kind = string(fields.Kind)
		columns = append(columns, "kind")
	}
	if fields.Choices != nil {
		m.Choices = fields.Choices
		columns = append(columns, "choices")
	}
	if fields.Explanation != nil {
		m.Explanation = fields.Explanation
		columns = append(columns, "explanation")
	}
	if fields.ImageRef != nil {
		m.ImageRef = fields.ImageRef
		columns = append(columns, "image_ref")
	}
	if fields.FormattedMath != nil {
		m.FormattedMath = fields.FormattedMath
		columns = append(columns, "formatted_math")
	}
	if fields.Tags != nil {
		m.Tags = fields.Tags
		columns = append(columns, "tags")
	}

	_, err := s.db.NewUpdate().Model(&m).Column(columns...).WherePK().Returning("*").Exec(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	if err != nil {
		return domain.Question{}, mapError(err)
	}
	return m.toDomain(), nil
}

func mapError(err error) error {
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) && pgErr.IntegrityViolation() {
		return fmt.Errorf("%w: %s", domain.ErrConstraintViolation, pgErr.Field('M'))
	}
	return err
}

func (m questionModel) toDomain() domain.Question {
	q := domain.Question{
		ID:            m.ID,
		ExternalKey:   m.ExternalKey,
		Language:      m.Language,
		Topic:         m.Topic,
		Difficulty:    domain.Difficulty(m.Difficulty),
		Kind:          domain.Kind(m.Kind),
		Prompt:        m.Prompt,
		Choices:       m.Choices,
		CorrectAnswer: m.CorrectAnswer,
		Tags:          m.Tags,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
	if m.Explanation != nil {
		q.Explanation = *m.Explanation
	}
	if m.ImageRef != nil {
		q.ImageRef = *m.ImageRef
	}
	if m.FormattedMath != nil {
		q.FormattedMath = *m.FormattedMath
	}
	return q
}

package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"qbank-import-service/internal/domain"
)

const questionColumns = `id, external_key, language, topic, difficulty, kind, prompt, choices,
	correct_answer, explanation, image_ref, formatted_math, tags, created_at, updated_at`

// QuestionLoader serves question reads from Postgres.
type QuestionLoader struct {
	pool *pgxpool.Pool
}

func NewQuestionLoader(pool *pgxpool.Pool) *QuestionLoader {
	return &QuestionLoader{pool: pool}
}

func (l *QuestionLoader) LoadQuestion(ctx context.Context, id int64) (domain.Question, error) {
	row := l.pool.QueryRow(ctx, `SELECT `+questionColumns+` FROM questions WHERE id=$1`, id)
	q, err := scanQuestion(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	if err != nil {
		return domain.Question{}, fmt.Errorf("load question: %w", err)
	}
	return q, nil
}

func (l *QuestionLoader) ListQuestions(ctx context.Context, filter domain.QuestionFilter) ([]domain.Question, error) {
	var (
		where []string
		args  []interface{}
	)
	// clause holds one %s for the placeholder.
	add := func(clause string, v interface{}) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(clause, "$"+strconv.Itoa(len(args))))
	}
	if filter.Topic != "" {
		add("lower(topic) = lower(%s)", filter.Topic)
	}
	if filter.Difficulty != "" {
		add("difficulty = %s", string(filter.Difficulty))
	}
	if filter.Language != "" {
		add("language = %s", filter.Language)
	}

	query := `SELECT ` + questionColumns + ` FROM questions`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, filter.Limit, filter.Offset)
	query += fmt.Sprintf(` ORDER BY id LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := l.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	defer rows.Close()

	var out []domain.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (l *QuestionLoader) ListTopics(ctx context.Context, language string) ([]domain.TopicCount, error) {
	query := `SELECT topic, difficulty, count(*) FROM questions`
	var args []interface{}
	if language != "" {
		query += ` WHERE language = $1`
		args = append(args, language)
	}
	query += ` GROUP BY topic, difficulty ORDER BY topic, difficulty`

	rows, err := l.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}
	defer rows.Close()

	var out []domain.TopicCount
	for rows.Next() {
		var (
			topic, difficulty string
			count             int
		)
		if err := rows.Scan(&topic, &difficulty, &count); err != nil {
			return nil, fmt.Errorf("scan topic: %w", err)
		}
		if len(out) == 0 || out[len(out)-1].Topic != topic {
			out = append(out, domain.TopicCount{Topic: topic, ByDifficulty: make(map[domain.Difficulty]int)})
		}
		tc := &out[len(out)-1]
		tc.Count += count
		tc.ByDifficulty[domain.Difficulty(difficulty)] = count
	}
	return out, rows.Err()
}

func scanQuestion(row pgx.Row) (domain.Question, error) {
	var (
		q                                      domain.Question
		externalKey, explanation, image, latex *string
		difficulty, kind                       string
		choices                                []byte
	)
	err := row.Scan(&q.ID, &externalKey, &q.Language, &q.Topic, &difficulty, &kind, &q.Prompt, &choices,
		&q.CorrectAnswer, &explanation, &image, &latex, &q.Tags, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		return domain.Question{}, err
	}
	q.Difficulty = domain.Difficulty(difficulty)
	q.Kind = domain.Kind(kind)
	if len(choices) > 0 {
		if err := json.Unmarshal(choices, &q.Choices); err != nil {
			return domain.Question{}, fmt.Errorf("unmarshal choices: %w", err)
		}
	}
	q.ExternalKey = deref(externalKey)
	q.Explanation = deref(explanation)
	q.ImageRef = deref(image)
	q.FormattedMath = deref(latex)
	return q, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

package domain

import (
	"strings"
	"time"
)

// DefaultLanguage is stored for inserted records that carry no language tag.
const DefaultLanguage = "ky"

// Difficulty is the coarse difficulty band of a question.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// ParseDifficulty accepts any casing of easy, medium or hard.
func ParseDifficulty(raw string) (Difficulty, bool) {
	switch d := Difficulty(strings.ToLower(strings.TrimSpace(raw))); d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return d, true
	}
	return "", false
}

// Kind is the answer format of a question.
type Kind string

const (
	KindMultipleChoice Kind = "multiple_choice"
	KindGridEntry      Kind = "grid_entry"
	KindOpenResponse   Kind = "open_response"
)

var kindAliases = map[string]Kind{
	"multiple_choice": KindMultipleChoice,
	"mcq":             KindMultipleChoice,
	"choice":          KindMultipleChoice,
	"grid_entry":      KindGridEntry,
	"grid_in":         KindGridEntry,
	"grid":            KindGridEntry,
	"open_response":   KindOpenResponse,
	"open":            KindOpenResponse,
}

// ParseKind normalizes casing, hyphens and spaces before matching known kinds.
func ParseKind(raw string) (Kind, bool) {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.NewReplacer("-", "_", " ", "_").Replace(key)
	k, ok := kindAliases[key]
	return k, ok
}

// Question is a stored question-bank entry.
type Question struct {
	ID            int64             `json:"id"`
	ExternalKey   string            `json:"externalKey,omitempty"`
	Language      string            `json:"language"`
	Topic         string            `json:"topic"`
	Difficulty    Difficulty        `json:"difficulty"`
	Kind          Kind              `json:"kind"`
	Prompt        string            `json:"prompt"`
	Choices       map[string]string `json:"choices,omitempty"`
	CorrectAnswer string            `json:"correctAnswer"`
	Explanation   string            `json:"explanation,omitempty"`
	ImageRef      string            `json:"imageReference,omitempty"`
	FormattedMath string            `json:"formattedMath,omitempty"`
	Tags          []string          `json:"tags,omitempty"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}

// QuestionFields is a normalized import record, ready to be written.
// Empty Language/Difficulty/Kind and nil optional fields mean "not supplied".
type QuestionFields struct {
	ExternalKey   string
	Language      string
	Topic         string
	Difficulty    Difficulty
	Kind          Kind
	Prompt        string
	Choices       map[string]string
	CorrectAnswer string
	Explanation   *string
	ImageRef      *string
	FormattedMath *string
	Tags          []string
}

// Apply copies the supplied fields onto q. ExternalKey, ID and CreatedAt are left alone.
func (f QuestionFields) Apply(q *Question) {
	q.Topic = f.Topic
	q.Prompt = f.Prompt
	q.CorrectAnswer = f.CorrectAnswer
	if f.Language != "" {
		q.Language = f.Language
	}
	if f.Difficulty != "" {
		q.Difficulty = f.Difficulty
	}
	if f.Kind != "" {
		q.Kind = f.Kind
	}
	if f.Choices != nil {
		q.Choices = f.Choices
	}
	if f.Explanation != nil {
		q.Explanation = *f.Explanation
	}
	if f.ImageRef != nil {
		q.ImageRef = *f.ImageRef
	}
	if f.FormattedMath != nil {
		q.FormattedMath = *f.FormattedMath
	}
	if f.Tags != nil {
		q.Tags = f.Tags
	}
}

// QuestionFilter narrows question listings. Zero values match everything; Topic matches
// case-insensitively.
type QuestionFilter struct {
	Topic      string
	Difficulty Difficulty
	Language   string
	Limit      int
	Offset     int
}

// TopicCount summarizes the stored questions of one topic.
type TopicCount struct {
	Topic        string             `json:"topic"`
	Count        int                `json:"count"`
	ByDifficulty map[Difficulty]int `json:"byDifficulty"`
}

// RawRecord is one loosely-structured record from an import feed. A nil RawRecord
// stands for a batch element that was not a JSON object.
type RawRecord map[string]any

// RecordError reports why the record at Index was not applied.
type RecordError struct {
	Index   int    `json:"index"`
	Message string `json:"message"`
}

// ImportSummary is the per-batch result of an import.
type ImportSummary struct {
	RunID    string        `json:"runId,omitempty"`
	Total    int           `json:"total"`
	Inserted int           `json:"inserted"`
	Updated  int           `json:"updated"`
	Errors   []RecordError `json:"errors"`
}

// RecordStatus tags what happened to a single record.
type RecordStatus string

const (
	StatusInserted RecordStatus = "inserted"
	StatusUpdated  RecordStatus = "updated"
	StatusFailed   RecordStatus = "failed"
)

// RecordOutcome is the result of processing one record.
type RecordOutcome struct {
	Index      int
	Status     RecordStatus
	QuestionID int64
	Err        error
}

// ImportRun is a saved summary of one authorized batch.
type ImportRun struct {
	ID         string        `json:"id"`
	StartedAt  time.Time     `json:"startedAt"`
	FinishedAt time.Time     `json:"finishedAt"`
	Summary    ImportSummary `json:"summary"`
}

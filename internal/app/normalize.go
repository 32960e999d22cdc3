package app

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"qbank-import-service/internal/domain"
)

type field string

const (
	fieldExternalKey   field = "externalKey"
	fieldLanguage      field = "language"
	fieldTopic         field = "topic"
	fieldDifficulty    field = "difficulty"
	fieldKind          field = "kind"
	fieldPrompt        field = "prompt"
	fieldChoices       field = "choices"
	fieldCorrectAnswer field = "correctAnswer"
	fieldExplanation   field = "explanation"
	fieldImageRef      field = "imageReference"
	fieldFormattedMath field = "formattedMath"
	fieldTags          field = "tags"
)

// fieldAliases lists, per canonical field, the record keys accepted for it in priority order.
var fieldAliases = []struct {
	field   field
	aliases []string
}{
	{fieldExternalKey, []string{"source_id", "id", "imported_id"}},
	{fieldLanguage, []string{"language", "lang", "locale"}},
	{fieldTopic, []string{"topic", "category"}},
	{fieldDifficulty, []string{"difficulty", "level"}},
	{fieldKind, []string{"kind", "type", "question_type"}},
	{fieldPrompt, []string{"prompt", "question_kg", "question_ky", "text"}},
	{fieldChoices, []string{"choices", "options"}},
	{fieldCorrectAnswer, []string{"correct_answer", "correctAnswer", "answer", "correct"}},
	{fieldExplanation, []string{"explanation", "explanation_kg", "explanation_ky"}},
	{fieldImageRef, []string{"image_url", "image", "image_path"}},
	{fieldFormattedMath, []string{"formatted_math", "latex", "math"}},
	{fieldTags, []string{"tags"}},
}

// canonicalize maps a raw record onto canonical field names. The first alias holding a
// non-empty value wins; unknown keys are dropped.
func canonicalize(raw domain.RawRecord) map[field]any {
	out := make(map[field]any, len(fieldAliases))
	for _, fa := range fieldAliases {
		for _, alias := range fa.aliases {
			v, ok := raw[alias]
			if !ok || isEmpty(v) {
				continue
			}
			out[fa.field] = v
			break
		}
	}
	return out
}

// Normalize turns a raw record into validated question fields.
func Normalize(raw domain.RawRecord) (domain.QuestionFields, error) {
	if raw == nil {
		return domain.QuestionFields{}, &domain.ValidationError{Field: "record", Reason: "must be a JSON object"}
	}
	values := canonicalize(raw)
	var f domain.QuestionFields
	var err error

	if f.ExternalKey, err = optionalString(values, fieldExternalKey); err != nil {
		return f, err
	}
	if f.Topic, err = requiredString(values, fieldTopic); err != nil {
		return f, err
	}
	if f.Prompt, err = requiredString(values, fieldPrompt); err != nil {
		return f, err
	}
	if f.CorrectAnswer, err = requiredString(values, fieldCorrectAnswer); err != nil {
		return f, err
	}

	if f.Language, err = optionalString(values, fieldLanguage); err != nil {
		return f, err
	}

	rawDifficulty, err := optionalString(values, fieldDifficulty)
	if err != nil {
		return f, err
	}
	if rawDifficulty != "" {
		d, ok := domain.ParseDifficulty(rawDifficulty)
		if !ok {
			return f, invalid(fieldDifficulty, fmt.Sprintf("must be one of easy, medium, hard (got %q)", rawDifficulty))
		}
		f.Difficulty = d
	}

	rawKind, err := optionalString(values, fieldKind)
	if err != nil {
		return f, err
	}
	if rawKind != "" {
		k, ok := domain.ParseKind(rawKind)
		if !ok {
			return f, invalid(fieldKind, fmt.Sprintf("must be one of multiple_choice, grid_entry, open_response (got %q)", rawKind))
		}
		f.Kind = k
	}

	if f.Choices, err = choices(values[fieldChoices]); err != nil {
		return f, err
	}
	if f.Tags, err = tags(values[fieldTags]); err != nil {
		return f, err
	}
	if f.Explanation, err = optionalPtr(values, fieldExplanation); err != nil {
		return f, err
	}
	if f.ImageRef, err = optionalPtr(values, fieldImageRef); err != nil {
		return f, err
	}
	if f.FormattedMath, err = optionalPtr(values, fieldFormattedMath); err != nil {
		return f, err
	}
	return f, nil
}

// externalKeyOf extracts only the key, for lane partitioning before full validation.
func externalKeyOf(raw domain.RawRecord) string {
	key, _ := optionalString(canonicalize(raw), fieldExternalKey)
	return key
}

func invalid(f field, reason string) error {
	return &domain.ValidationError{Field: string(f), Reason: reason}
}

func requiredString(values map[field]any, f field) (string, error) {
	s, err := optionalString(values, f)
	if err != nil {
		return "", err
	}
	if s == "" {
		return "", invalid(f, "is required")
	}
	return s, nil
}

func optionalString(values map[field]any, f field) (string, error) {
	v, ok := values[f]
	if !ok {
		return "", nil
	}
	s, ok := scalar(v)
	if !ok {
		return "", invalid(f, "must be a string or number")
	}
	return s, nil
}

func optionalPtr(values map[field]any, f field) (*string, error) {
	if _, ok := values[f]; !ok {
		return nil, nil
	}
	s, err := optionalString(values, f)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func scalar(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t), true
	case json.Number:
		return t.String(), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case bool:
		return strconv.FormatBool(t), true
	}
	return "", false
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	}
	return false
}

func choices(v any) (map[string]string, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		out := make(map[string]string, len(t))
		for label, text := range t {
			s, ok := scalar(text)
			if !ok {
				return nil, invalid(fieldChoices, fmt.Sprintf("option %q must be a string", label))
			}
			out[strings.TrimSpace(label)] = s
		}
		return out, nil
	case []any:
		if len(t) > 26 {
			return nil, invalid(fieldChoices, "supports at most 26 options")
		}
		out := make(map[string]string, len(t))
		for i, text := range t {
			s, ok := scalar(text)
			if !ok {
				return nil, invalid(fieldChoices, fmt.Sprintf("option %d must be a string", i))
			}
			out[string(rune('A'+i))] = s
		}
		return out, nil
	case string:
		var decoded map[string]any
		if err := json.Unmarshal([]byte(t), &decoded); err != nil {
			return nil, invalid(fieldChoices, "must be an object, an array or a JSON object string")
		}
		return choices(decoded)
	}
	return nil, invalid(fieldChoices, "must be an object, an array or a JSON object string")
}

func tags(v any) ([]string, error) {
	var parts []string
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		parts = strings.Split(t, ",")
	case []any:
		for _, item := range t {
			s, ok := scalar(item)
			if !ok {
				return nil, invalid(fieldTags, "must contain only strings")
			}
			parts = append(parts, s)
		}
	default:
		return nil, invalid(fieldTags, "must be an array or a comma-separated string")
	}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out, nil
}

package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"qbank-import-service/internal/app"
	"qbank-import-service/internal/config"
	"qbank-import-service/internal/domain"
)

// ImportHandler exposes the importer over plain HTTP.
type ImportHandler struct {
	importer     *app.Importer
	errorLimit   int
	maxBodyBytes int64
}

func NewImportHandler(importer *app.Importer, errorLimit int, maxBodyBytes int64) *ImportHandler {
	return &ImportHandler{importer: importer, errorLimit: errorLimit, maxBodyBytes: maxBodyBytes}
}

// importResponse renders a summary with the error list trimmed for display;
// ErrorCount keeps the full number of failed records.
type importResponse struct {
	RunID      string               `json:"runId,omitempty"`
	Total      int                  `json:"total"`
	Inserted   int                  `json:"inserted"`
	Updated    int                  `json:"updated"`
	Errors     []domain.RecordError `json:"errors"`
	ErrorCount int                  `json:"errorCount"`
}

type errorPayload struct {
	Message string `json:"message"`
}

func newImportResponse(s domain.ImportSummary, limit int) importResponse {
	errs := s.Errors
	if errs == nil {
		errs = []domain.RecordError{}
	}
	if limit > 0 && len(errs) > limit {
		errs = errs[:limit]
	}
	return importResponse{
		RunID:      s.RunID,
		Total:      s.Total,
		Inserted:   s.Inserted,
		Updated:    s.Updated,
		Errors:     errs,
		ErrorCount: len(s.Errors),
	}
}

// Import accepts a JSON array of records, or an object wrapping it under "questions" or "records".
func (h *ImportHandler) Import(w http.ResponseWriter, r *http.Request) {
	log := config.WithContext(r.Context())

	if h.maxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	}
	records, err := decodeRecords(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		log.WithError(err).Warn("invalid import body")
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	summary, err := h.importer.Import(r.Context(), credential(r), records)
	if errors.Is(err, domain.ErrUnauthorized) {
		log.Warn("import rejected: bad credential")
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err != nil {
		log.WithError(err).Error("import failed")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, newImportResponse(summary, h.errorLimit))
}

func (h *ImportHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.importer.Run(r.Context(), credential(r), chi.URLParam(r, "runID"))
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, domain.ErrRunNotFound):
		writeError(w, http.StatusNotFound, "import run not found")
	case err != nil:
		config.WithContext(r.Context()).WithError(err).Error("load import run failed")
		writeError(w, http.StatusInternalServerError, "internal server error")
	default:
		writeJSON(w, http.StatusOK, run)
	}
}

// credential reads X-Import-Secret, falling back to a bearer token.
func credential(r *http.Request) string {
	if secret := r.Header.Get("X-Import-Secret"); secret != "" {
		return secret
	}
	auth := r.Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

func decodeRecords(r *http.Request) ([]domain.RawRecord, error) {
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("invalid JSON body: %w", err)
	}
	return ParseRecords(raw)
}

// ParseRecords accepts a JSON array of records or an object wrapping one.
func ParseRecords(raw json.RawMessage) ([]domain.RawRecord, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, errors.New("empty body")
	}

	var elems []json.RawMessage
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &elems); err != nil {
			return nil, fmt.Errorf("invalid records array: %w", err)
		}
	case '{':
		var envelope struct {
			Questions []json.RawMessage `json:"questions"`
			Records   []json.RawMessage `json:"records"`
		}
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return nil, fmt.Errorf("invalid import envelope: %w", err)
		}
		elems = envelope.Questions
		if elems == nil {
			elems = envelope.Records
		}
		if elems == nil {
			return nil, errors.New(`body must be an array or an object with "questions" or "records"`)
		}
	default:
		return nil, errors.New("body must be a JSON array or object")
	}

	// Elements that are not objects stay nil and are rejected per record by the importer.
	records := make([]domain.RawRecord, len(elems))
	for i, elem := range elems {
		elem = bytes.TrimSpace(elem)
		if len(elem) == 0 || elem[0] != '{' {
			continue
		}
		if err := unmarshalNumbers(elem, &records[i]); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
	}
	return records, nil
}

// unmarshalNumbers keeps numeric ids such as 12 from turning into 12.0-style floats.
func unmarshalNumbers(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorPayload{Message: msg})
}

package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"qbank-import-service/internal/app"
	"qbank-import-service/internal/config"
	"qbank-import-service/internal/domain"
)

type QuestionHandler struct {
	service *app.QuestionService
}

func NewQuestionHandler(service *app.QuestionService) *QuestionHandler {
	return &QuestionHandler{service: service}
}

func (h *QuestionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "questionID"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid question id")
		return
	}

	q, err := h.service.Get(r.Context(), id)
	if errors.Is(err, domain.ErrQuestionNotFound) {
		writeError(w, http.StatusNotFound, "question not found")
		return
	}
	if err != nil {
		config.WithContext(r.Context()).WithError(err).Error("load question failed")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *QuestionHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := domain.QuestionFilter{
		Topic:    query.Get("topic"),
		Language: query.Get("language"),
	}
	if raw := query.Get("difficulty"); raw != "" {
		d, ok := domain.ParseDifficulty(raw)
		if !ok {
			writeError(w, http.StatusBadRequest, "difficulty must be easy, medium or hard")
			return
		}
		filter.Difficulty = d
	}
	var err error
	if filter.Limit, err = intParam(query.Get("limit")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	if filter.Offset, err = intParam(query.Get("offset")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid offset")
		return
	}

	questions, err := h.service.List(r.Context(), filter)
	if err != nil {
		config.WithContext(r.Context()).WithError(err).Error("list questions failed")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"questions": questions})
}

// Topics lists topics with question counts, optionally for one language.
func (h *QuestionHandler) Topics(w http.ResponseWriter, r *http.Request) {
	topics, err := h.service.Topics(r.Context(), r.URL.Query().Get("language"))
	if err != nil {
		config.WithContext(r.Context()).WithError(err).Error("list topics failed")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"topics": topics})
}

func intParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"qbank-import-service/internal/app"
	"qbank-import-service/internal/config"
)

// RouterConfig carries the use cases and limits the HTTP layer needs.
type RouterConfig struct {
	Importer     *app.Importer
	Questions    *app.QuestionService
	ErrorLimit   int
	MaxBodyBytes int64
}

func NewRouter(cfg RouterConfig) http.Handler {
	importHandler := NewImportHandler(cfg.Importer, cfg.ErrorLimit, cfg.MaxBodyBytes)
	questionHandler := NewQuestionHandler(cfg.Questions)
	wsHandler := NewWSHandler(cfg.Importer, cfg.ErrorLimit)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/import", importHandler.Import)
		r.Get("/import/runs/{runID}", importHandler.GetRun)
		r.Get("/questions", questionHandler.List)
		r.Get("/questions/{questionID}", questionHandler.Get)
		r.Get("/topics", questionHandler.Topics)
	})
	r.Get("/ws/import", wsHandler.ServeWS)
	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		config.WithContext(r.Context()).WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   ww.Status(),
			"bytes":    ww.BytesWritten(),
			"duration": time.Since(start).String(),
		}).Info("request")
	})
}

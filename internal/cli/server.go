package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"qbank-import-service/internal/app"
	"qbank-import-service/internal/config"
	"qbank-import-service/internal/infra/memory"
	pgstore "qbank-import-service/internal/infra/postgres"
	redisstore "qbank-import-service/internal/infra/redis"
	transport "qbank-import-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the import server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

// services is the wired application, shared by the server and the import command.
type services struct {
	importer  *app.Importer
	questions *app.QuestionService
	closers   []func()
}

func (s *services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// buildServices picks Postgres/Redis backends when configured and in-memory ones otherwise.
func buildServices(ctx context.Context, cfg config.Config) (*services, error) {
	log := config.Logger()
	svc := &services{}

	var (
		store  app.QuestionStore
		loader interface {
			memory.QuestionLoader
			app.QuestionLister
		}
	)
	if cfg.Postgres.URL != "" {
		db, err := openBun(cfg)
		if err != nil {
			return nil, err
		}
		svc.closers = append(svc.closers, func() { _ = db.Close() })
		if err := migrateDB(ctx, db); err != nil {
			svc.Close()
			return nil, err
		}

		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			svc.Close()
			return nil, err
		}
		svc.closers = append(svc.closers, pool.Close)

		store = pgstore.NewQuestionStore(db)
		loader = pgstore.NewQuestionLoader(pool)
		log.Info("using postgres question store")
	} else {
		mem := memory.NewQuestionStore()
		store = mem
		loader = mem
		log.Warn("postgres url not configured, questions are kept in memory")
	}

	questionTTL := config.TTLDuration(cfg.Question.TTL, 10*time.Minute)
	runTTL := config.TTLDuration(cfg.Import.RunTTL, 24*time.Hour)

	var (
		cache interface {
			app.QuestionRepository
			app.CacheInvalidator
		}
		runs app.RunRepository
	)
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		svc.closers = append(svc.closers, func() { _ = redisClient.Close() })
		// redis.ttl is kept as a fallback for the cache TTL.
		questionTTL = config.TTLDuration(cfg.Question.TTL, config.TTLDuration(cfg.Redis.TTL, 10*time.Minute))
		cache = redisstore.NewQuestionCache(redisClient, loader, questionTTL)
		runs = redisstore.NewRunStore(redisClient, runTTL)
	} else {
		cache = memory.NewQuestionRepository(loader, questionTTL)
		runs = memory.NewRunStore(runTTL)
	}

	if cfg.Import.Secret == "" {
		log.Warn("import secret not configured, all imports will be rejected")
	}
	svc.importer = app.NewImporter(store, cfg.Import.Secret,
		app.WithWorkers(cfg.Import.Workers),
		app.WithCacheInvalidator(cache),
		app.WithRunRepository(runs),
	)
	svc.questions = app.NewQuestionService(cache, loader)
	return svc, nil
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	config.InitLogger(cfg.Log.Level, cfg.Log.Format)
	log := config.Logger()

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	svc, err := buildServices(ctx, cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	handler := transport.NewRouter(transport.RouterConfig{
		Importer:     svc.importer,
		Questions:    svc.questions,
		ErrorLimit:   cfg.ErrorLimit(),
		MaxBodyBytes: cfg.MaxBodyBytes(),
	})
	// Large batches are applied synchronously before the response is written.
	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
	}

	go func() {
		log.Infof("starting import service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("failed to start server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down server...")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

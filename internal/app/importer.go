package app

import (
	"context"
	"crypto/subtle"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"qbank-import-service/internal/config"
	"qbank-import-service/internal/domain"
)

// QuestionStore is the persistence the importer writes through. Implementations enforce
// external-key uniqueness and the difficulty/kind enumerations.
type QuestionStore interface {
	FindByExternalKey(ctx context.Context, key string) (domain.Question, error)
	Insert(ctx context.Context, fields domain.QuestionFields) (domain.Question, error)
	Update(ctx context.Context, id int64, fields domain.QuestionFields) (domain.Question, error)
}

// CacheInvalidator drops cached copies of a question after it changes.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, id int64)
}

// RunRepository keeps recent import summaries.
type RunRepository interface {
	Save(ctx context.Context, run domain.ImportRun) error
	Get(ctx context.Context, id string) (domain.ImportRun, error)
}

// ProgressFunc receives each record outcome as soon as it is known.
// Calls are serialized but not ordered by index when workers > 1.
type ProgressFunc func(domain.RecordOutcome)

// Importer ingests batches of raw question records.
type Importer struct {
	store   QuestionStore
	secret  string
	workers int
	cache   CacheInvalidator
	runs    RunRepository
	now     func() time.Time
}

type ImporterOption func(*Importer)

// WithWorkers bounds how many key lanes are processed concurrently.
func WithWorkers(n int) ImporterOption {
	return func(i *Importer) { i.workers = n }
}

func WithCacheInvalidator(c CacheInvalidator) ImporterOption {
	return func(i *Importer) { i.cache = c }
}

func WithRunRepository(r RunRepository) ImporterOption {
	return func(i *Importer) { i.runs = r }
}

// WithClock is used by tests for deterministic run timestamps.
func WithClock(now func() time.Time) ImporterOption {
	return func(i *Importer) { i.now = now }
}

func NewImporter(store QuestionStore, secret string, opts ...ImporterOption) *Importer {
	imp := &Importer{
		store:   store,
		secret:  secret,
		workers: 1,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(imp)
	}
	return imp
}

// Authorize checks credential against the configured secret. An empty secret rejects everyone.
func (imp *Importer) Authorize(credential string) error {
	if imp.secret == "" || subtle.ConstantTimeCompare([]byte(credential), []byte(imp.secret)) != 1 {
		return domain.ErrUnauthorized
	}
	return nil
}

// Import processes records and returns the batch summary.
func (imp *Importer) Import(ctx context.Context, credential string, records []domain.RawRecord) (domain.ImportSummary, error) {
	return imp.ImportStream(ctx, credential, records, nil)
}

// ImportStream is Import with per-record progress reporting. Only ErrUnauthorized is returned;
// every other failure lands in the summary.
func (imp *Importer) ImportStream(ctx context.Context, credential string, records []domain.RawRecord, progress ProgressFunc) (domain.ImportSummary, error) {
	if err := imp.Authorize(credential); err != nil {
		return domain.ImportSummary{}, err
	}
	// A submitted batch runs to completion even if the caller goes away.
	ctx = context.WithoutCancel(ctx)
	log := config.WithContext(ctx)
	startedAt := imp.now()

	outcomes := make([]domain.RecordOutcome, len(records))
	var mu sync.Mutex
	record := func(o domain.RecordOutcome) {
		outcomes[o.Index] = o
		if o.Err != nil {
			log.WithFields(logrus.Fields{"index": o.Index, "error": o.Err.Error()}).Warn("import record rejected")
		}
		if progress != nil {
			mu.Lock()
			progress(o)
			mu.Unlock()
		}
	}

	if imp.workers <= 1 {
		for i, raw := range records {
			record(imp.processRecord(ctx, i, raw))
		}
	} else {
		var g errgroup.Group
		g.SetLimit(imp.workers)
		for _, lane := range partitionByKey(records) {
			lane := lane
			g.Go(func() error {
				for _, i := range lane {
					record(imp.processRecord(ctx, i, records[i]))
				}
				return nil
			})
		}
		_ = g.Wait()
	}

	summary := summarize(outcomes)
	if imp.runs != nil {
		run := domain.ImportRun{
			ID:         uuid.NewString(),
			StartedAt:  startedAt,
			FinishedAt: imp.now(),
			Summary:    summary,
		}
		if err := imp.runs.Save(ctx, run); err != nil {
			log.WithError(err).Warn("failed to save import run")
		} else {
			summary.RunID = run.ID
		}
	}

	log.WithFields(logrus.Fields{
		"run_id":   summary.RunID,
		"total":    summary.Total,
		"inserted": summary.Inserted,
		"updated":  summary.Updated,
		"failed":   len(summary.Errors),
	}).Info("import finished")
	return summary, nil
}

// Run returns a saved import run, behind the same credential gate as Import.
func (imp *Importer) Run(ctx context.Context, credential, id string) (domain.ImportRun, error) {
	if err := imp.Authorize(credential); err != nil {
		return domain.ImportRun{}, err
	}
	if imp.runs == nil {
		return domain.ImportRun{}, domain.ErrRunNotFound
	}
	return imp.runs.Get(ctx, id)
}

type resolveAction int

const (
	actionInsert resolveAction = iota
	actionUpdate
)

// resolution is the outcome of key resolution: insert a new row or update row id.
type resolution struct {
	action resolveAction
	id     int64
}

func (imp *Importer) resolve(ctx context.Context, key string) (resolution, error) {
	if key == "" {
		return resolution{action: actionInsert}, nil
	}
	existing, err := imp.store.FindByExternalKey(ctx, key)
	switch {
	case err == nil:
		return resolution{action: actionUpdate, id: existing.ID}, nil
	case errors.Is(err, domain.ErrQuestionNotFound):
		return resolution{action: actionInsert}, nil
	default:
		return resolution{}, &domain.StorageError{Op: "lookup", Err: err}
	}
}

func (imp *Importer) processRecord(ctx context.Context, index int, raw domain.RawRecord) domain.RecordOutcome {
	failed := func(err error) domain.RecordOutcome {
		return domain.RecordOutcome{Index: index, Status: domain.StatusFailed, Err: err}
	}

	fields, err := Normalize(raw)
	if err != nil {
		return failed(err)
	}
	res, err := imp.resolve(ctx, fields.ExternalKey)
	if err != nil {
		return failed(err)
	}

	switch res.action {
	case actionUpdate:
		q, err := imp.store.Update(ctx, res.id, fields)
		if err != nil {
			return failed(&domain.StorageError{Op: "update", Err: err})
		}
		if imp.cache != nil {
			imp.cache.Invalidate(ctx, q.ID)
		}
		return domain.RecordOutcome{Index: index, Status: domain.StatusUpdated, QuestionID: q.ID}
	default:
		q, err := imp.store.Insert(ctx, fields)
		if err != nil {
			return failed(&domain.StorageError{Op: "insert", Err: err})
		}
		return domain.RecordOutcome{Index: index, Status: domain.StatusInserted, QuestionID: q.ID}
	}
}

// partitionByKey groups record indices into lanes sharing an external key, in batch order.
// Keyless records each get their own lane.
func partitionByKey(records []domain.RawRecord) [][]int {
	var lanes [][]int
	byKey := make(map[string]int)
	for i, raw := range records {
		key := externalKeyOf(raw)
		if key == "" {
			lanes = append(lanes, []int{i})
			continue
		}
		if lane, ok := byKey[key]; ok {
			lanes[lane] = append(lanes[lane], i)
			continue
		}
		byKey[key] = len(lanes)
		lanes = append(lanes, []int{i})
	}
	return lanes
}

func summarize(outcomes []domain.RecordOutcome) domain.ImportSummary {
	summary := domain.ImportSummary{Total: len(outcomes), Errors: []domain.RecordError{}}
	for _, o := range outcomes {
		switch o.Status {
		case domain.StatusInserted:
			summary.Inserted++
		case domain.StatusUpdated:
			summary.Updated++
		default:
			msg := "unknown failure"
			if o.Err != nil {
				msg = o.Err.Error()
			}
			summary.Errors = append(summary.Errors, domain.RecordError{Index: o.Index, Message: msg})
		}
	}
	return summary
}

package migrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/infra"
	"storefront/internal/model"
	"storefront/internal/repository"
	"storefront/internal/variant"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// ProductStore is the slice of repository.ProductRepository the runner needs.
type ProductStore interface {
	ListForMigration(ctx context.Context) ([]model.Product, error)
	UpdateVariantsIfUnchanged(ctx context.Context, id uuid.UUID, doc []byte, readAt time.Time) error
}

// ChangeRecorder persists the price audit trail.
type ChangeRecorder interface {
	CreateBatch(ctx context.Context, changes []model.PriceChange) error
}

// RunRecorder persists the run summary.
type RunRecorder interface {
	Create(ctx context.Context, run *model.MigrationRun) error
	Finish(ctx context.Context, run *model.MigrationRun) error
}

// CacheInvalidator drops cached read models of a rewritten product.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, productID uuid.UUID) error
}

// FailureSink keeps failed products around for operator follow-up.
type FailureSink interface {
	RecordFailures(ctx context.Context, report *Report) error
}

// Deps groups the runner's collaborators. Only Products is required; every
// side channel is skipped when nil.
type Deps struct {
	Products     ProductStore
	PriceChanges ChangeRecorder
	Runs         RunRecorder
	Cache        CacheInvalidator
	Failures     FailureSink
	Lock         Locker
	Breaker      *infra.Breaker
	Limiter      *rate.Limiter
	Registry     *Registry

	Concurrency int
	LockTTL     time.Duration
	Now         func() time.Time
}

// Runner executes migration passes over the whole catalog.
type Runner struct {
	products     ProductStore
	priceChanges ChangeRecorder
	runs         RunRecorder
	cache        CacheInvalidator
	failures     FailureSink
	lock         Locker
	breaker      *infra.Breaker
	limiter      *rate.Limiter
	registry     *Registry
	concurrency  int
	lockTTL      time.Duration
	now          func() time.Time
}

func NewRunner(deps Deps) (*Runner, error) {
	if deps.Products == nil {
		return nil, errors.New("migrator: Products store is required")
	}
	if deps.Registry == nil {
		deps.Registry = DefaultRegistry()
	}
	if deps.Concurrency < 1 {
		deps.Concurrency = 1
	}
	if deps.LockTTL <= 0 {
		deps.LockTTL = 30 * time.Minute
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Runner{
		products:     deps.Products,
		priceChanges: deps.PriceChanges,
		runs:         deps.Runs,
		cache:        deps.Cache,
		failures:     deps.Failures,
		lock:         deps.Lock,
		breaker:      deps.Breaker,
		limiter:      deps.Limiter,
		registry:     deps.Registry,
		concurrency:  deps.Concurrency,
		lockTTL:      deps.LockTTL,
		now:          deps.Now,
	}, nil
}

func (r *Runner) Registry() *Registry { return r.registry }

type RunOptions struct {
	// DryRun transforms and reports without writing anything.
	DryRun bool
}

// Run applies the named pass to a snapshot of every product carrying a
// variant document. Per-product failures never abort the batch; they show up
// in the report. The returned error is reserved for an unknown pass, a held
// lock, or a snapshot that could not be read.
func (r *Runner) Run(ctx context.Context, passName string, opts RunOptions) (*Report, error) {
	pass, err := r.registry.Lookup(passName)
	if err != nil {
		return nil, err
	}

	if r.lock != nil && !opts.DryRun {
		release, err := r.lock.Acquire(ctx, lockKey(pass.Name()), r.lockTTL)
		if err != nil {
			return nil, err
		}
		defer release()
	}

	report := &Report{
		RunID:     uuid.New(),
		Pass:      pass.Name(),
		DryRun:    opts.DryRun,
		StartedAt: r.now(),
	}
	logger := log.With().Str("pass", report.Pass).Str("run_id", report.RunID.String()).Bool("dry_run", opts.DryRun).Logger()
	run := r.startRun(ctx, report)

	products, err := r.products.ListForMigration(ctx)
	if err != nil {
		err = fmt.Errorf("snapshot catalog: %w", err)
		r.abortRun(ctx, run, err)
		return nil, err
	}
	logger.Info().Int("products", len(products)).Msg("migration started")

	report.Results = r.fold(ctx, pass, report, products, opts)
	report.Summary = Summarize(report.Results)
	report.FinishedAt = r.now()

	if report.Summary.Failed > 0 && r.failures != nil && !opts.DryRun {
		if err := r.failures.RecordFailures(context.WithoutCancel(ctx), report); err != nil {
			logger.Error().Err(err).Msg("could not record failed products")
		}
	}
	r.finishRun(ctx, run, report)

	logger.Info().
		Int("inspected", report.Summary.Inspected).
		Int("updated", report.Summary.Updated).
		Int("skipped", report.Summary.Skipped).
		Int("failed", report.Summary.Failed).
		Str("status", string(report.Summary.Status)).
		Dur("elapsed", report.FinishedAt.Sub(report.StartedAt)).
		Msg("migration finished")
	return report, nil
}

// fold visits every product once. Results keep snapshot order whatever the
// concurrency.
func (r *Runner) fold(ctx context.Context, pass Pass, report *Report, products []model.Product, opts RunOptions) []Result {
	results := make([]Result, len(products))

	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i := range products {
		if err := ctx.Err(); err != nil {
			results[i] = Result{ProductID: products[i].ID}.failed(ReasonCanceled, err)
			continue
		}
		g.Go(func() error {
			results[i] = r.migrateOne(ctx, pass, report.RunID, &products[i], opts)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (r *Runner) migrateOne(ctx context.Context, pass Pass, runID uuid.UUID, p *model.Product, opts RunOptions) Result {
	res := Result{ProductID: p.ID}
	logger := log.With().Str("pass", pass.Name()).Str("product_id", p.ID.String()).Logger()

	if err := ctx.Err(); err != nil {
		return res.failed(ReasonCanceled, err)
	}

	doc, err := variant.Parse(p.Variants)
	if err != nil {
		logger.Warn().Err(err).Str("reason", string(ReasonMalformedDocument)).Msg("product failed")
		return res.failed(ReasonMalformedDocument, err)
	}

	changes, err := pass.Transform(p.BasePrice, doc)
	if err != nil {
		logger.Warn().Err(err).Str("reason", string(ReasonInvalidDocument)).Msg("product failed")
		return res.failed(ReasonInvalidDocument, err)
	}
	if len(changes) == 0 {
		res.Outcome = OutcomeSkipped
		return res
	}
	if err := checkWritable(doc); err != nil {
		logger.Warn().Err(err).Str("reason", string(ReasonInvalidDocument)).Msg("product failed")
		return res.failed(ReasonInvalidDocument, err)
	}
	res.Changes = changes

	if opts.DryRun {
		res.Outcome = OutcomeUpdated
		return res
	}

	encoded, err := doc.Encode()
	if err != nil {
		return res.failed(ReasonInvalidDocument, err)
	}
	if err := r.write(ctx, p, encoded); err != nil {
		reason := ReasonPersistence
		switch {
		case errors.Is(err, repository.ErrStaleWrite):
			reason = ReasonConflict
		case ctx.Err() != nil:
			reason = ReasonCanceled
		}
		logger.Warn().Err(err).Str("reason", string(reason)).Msg("product failed")
		return res.failed(reason, err)
	}

	res.Outcome = OutcomeUpdated
	logger.Info().Int("changes", len(changes)).Msg("product updated")
	r.afterWrite(ctx, pass, runID, p.ID, changes)
	return res
}

// checkWritable rejects documents that would break resolver invariants once
// stored. A missing default is tolerated since the resolver falls back to the
// first variant and the backfill pass fixes it.
func checkWritable(doc *variant.Document) error {
	err := variant.Validate(doc)
	var verr *variant.ValidationError
	if !errors.As(err, &verr) {
		return err
	}
	var blocking []variant.Problem
	for _, p := range verr.Problems {
		if p.Kind != variant.ProblemMissingDefault {
			blocking = append(blocking, p)
		}
	}
	if len(blocking) == 0 {
		return nil
	}
	return &variant.ValidationError{Problems: blocking}
}

// write throttles, then performs the conditional update behind the breaker.
// A stale write is a business outcome and does not count against the breaker.
func (r *Runner) write(ctx context.Context, p *model.Product, doc []byte) error {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	update := func() error {
		return r.products.UpdateVariantsIfUnchanged(ctx, p.ID, doc, p.UpdatedAt)
	}
	if r.breaker == nil {
		return update()
	}

	var stale error
	err := r.breaker.Do(func() error {
		err := update()
		if errors.Is(err, repository.ErrStaleWrite) {
			stale = err
			return nil
		}
		return err
	})
	if err != nil {
		return err
	}
	return stale
}

// afterWrite runs the best-effort side channels of a successful rewrite.
func (r *Runner) afterWrite(ctx context.Context, pass Pass, runID, productID uuid.UUID, changes []Change) {
	ctx = context.WithoutCancel(ctx)

	if r.priceChanges != nil {
		var rows []model.PriceChange
		for _, c := range changes {
			if c.Field != FieldPrice {
				continue
			}
			rows = append(rows, model.PriceChange{
				ProductID:   productID,
				RunID:       runID,
				VariantID:   c.VariantID,
				Pass:        pass.Name(),
				PriceBefore: c.PriceBefore,
				PriceAfter:  c.PriceAfter,
			})
		}
		if err := r.priceChanges.CreateBatch(ctx, rows); err != nil {
			log.Error().Err(err).Str("product_id", productID.String()).Msg("could not record price changes")
		}
	}

	if r.cache != nil {
		if err := r.cache.Invalidate(ctx, productID); err != nil {
			log.Warn().Err(err).Str("product_id", productID.String()).Msg("could not invalidate pricing cache")
		}
	}
}

// ── Run record ────────────────────────────────────────────────────────────────

func (r *Runner) startRun(ctx context.Context, report *Report) *model.MigrationRun {
	if r.runs == nil {
		return nil
	}
	run := &model.MigrationRun{
		ID:        report.RunID,
		Pass:      report.Pass,
		DryRun:    report.DryRun,
		Status:    "running",
		StartedAt: report.StartedAt,
	}
	if err := r.runs.Create(ctx, run); err != nil {
		log.Error().Err(err).Str("run_id", run.ID.String()).Msg("could not record migration run")
		return nil
	}
	return run
}

func (r *Runner) abortRun(ctx context.Context, run *model.MigrationRun, cause error) {
	if run == nil {
		return
	}
	msg := cause.Error()
	finished := r.now()
	run.Status = "aborted"
	run.LastError = &msg
	run.FinishedAt = &finished
	if err := r.runs.Finish(context.WithoutCancel(ctx), run); err != nil {
		log.Error().Err(err).Str("run_id", run.ID.String()).Msg("could not close migration run")
	}
}

func (r *Runner) finishRun(ctx context.Context, run *model.MigrationRun, report *Report) {
	if run == nil {
		return
	}
	s := report.Summary
	run.Status = string(s.Status)
	run.Inspected = s.Inspected
	run.Updated = s.Updated
	run.Skipped = s.Skipped
	run.Failed = s.Failed
	run.FailedIDs = make(pq.StringArray, 0, len(s.FailedIDs))
	for _, id := range s.FailedIDs {
		run.FailedIDs = append(run.FailedIDs, id.String())
	}
	if failures := report.Failures(); len(failures) > 0 {
		last := failures[len(failures)-1].Detail
		run.LastError = &last
	}
	run.FinishedAt = &report.FinishedAt
	if err := r.runs.Finish(context.WithoutCancel(ctx), run); err != nil {
		log.Error().Err(err).Str("run_id", run.ID.String()).Msg("could not close migration run")
	}
}

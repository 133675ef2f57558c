package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"storefront/internal/migrator"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	QueueCatalogMigration = "jobs:catalog_migration"

	JobTypeMigration = "catalog_migration"
)

// Job is the generic envelope for all async tasks.
type Job struct {
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	EnqueuedAt string          `json:"enqueued_at,omitempty"` // RFC 3339
}

// MigrationJob asks a worker to run one pass over the catalog.
type MigrationJob struct {
	Pass        string `json:"pass"`
	DryRun      bool   `json:"dry_run"`
	RequestedBy string `json:"requested_by,omitempty"`
}

// listPusher is the part of *redis.Client the dispatcher and DLQ write with.
type listPusher interface {
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
}

// Dispatcher enqueues async jobs into Redis lists.
// The worker pool dequeues them via BRPOP.
type Dispatcher struct {
	rdb listPusher
}

func NewDispatcher(rdb listPusher) *Dispatcher {
	return &Dispatcher{rdb: rdb}
}

// EnqueueMigration pushes a migration job. Unknown passes are rejected here
// so a typo never reaches the queue.
func (d *Dispatcher) EnqueueMigration(ctx context.Context, job MigrationJob) error {
	if _, err := migrator.DefaultRegistry().Lookup(job.Pass); err != nil {
		return err
	}
	return d.enqueue(ctx, QueueCatalogMigration, JobTypeMigration, job)
}

func (d *Dispatcher) enqueue(ctx context.Context, queue, jobType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	job := Job{Type: jobType, Payload: data, EnqueuedAt: time.Now().UTC().Format(time.RFC3339)}
	encoded, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return d.rdb.LPush(ctx, queue, encoded).Err()
}

// MigrationRunner is satisfied by *migrator.Runner.
type MigrationRunner interface {
	Run(ctx context.Context, pass string, opts migrator.RunOptions) (*migrator.Report, error)
}

type jobSource interface {
	BRPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
}

// Pool consumes the migration queue. A job is attempted once: the passes are
// idempotent, so an operator re-enqueues instead of the pool retrying.
type Pool struct {
	src     jobSource
	runner  MigrationRunner
	dlq     *DeadLetters
	workers int
	wg      sync.WaitGroup
}

func NewPool(src jobSource, runner MigrationRunner, dlq *DeadLetters, workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{src: src, runner: runner, dlq: dlq, workers: workers}
}

// Start launches the workers. Each goroutine blocks on BRPOP, so an idle pool
// costs no CPU.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			p.runWorker(ctx, id)
		}(i)
	}
	log.Info().Int("workers", p.workers).Msg("worker pool started")
}

// Wait blocks until every worker has returned after ctx is canceled.
func (p *Pool) Wait() { p.wg.Wait() }

func (p *Pool) runWorker(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			log.Info().Int("worker", id).Msg("worker shutting down")
			return
		default:
			// Blocking pop, waits up to 5s then loops to check ctx
			result, err := p.src.BRPop(ctx, 5*time.Second, QueueCatalogMigration).Result()
			if err != nil {
				if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
					log.Error().Err(err).Int("worker", id).Msg("dequeue failed")
					time.Sleep(time.Second)
				}
				continue
			}
			if len(result) < 2 {
				continue
			}
			p.process(ctx, result[0], result[1])
		}
	}
}

func (p *Pool) process(ctx context.Context, queue, raw string) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		log.Error().Str("queue", queue).Err(err).Msg("failed to unmarshal job")
		quoted, _ := json.Marshal(raw)
		p.deadLetter(ctx, queue, "", quoted, "undecodable job")
		return
	}

	switch job.Type {
	case JobTypeMigration:
		p.runMigration(ctx, queue, job)
	default:
		log.Warn().Str("queue", queue).Str("type", job.Type).Msg("unknown job type")
		p.deadLetter(ctx, queue, job.Type, job.Payload, "unknown job type")
	}
}

func (p *Pool) runMigration(ctx context.Context, queue string, job Job) {
	var mj MigrationJob
	if err := json.Unmarshal(job.Payload, &mj); err != nil {
		p.deadLetter(ctx, queue, job.Type, job.Payload, "invalid payload: "+err.Error())
		return
	}

	log.Info().Str("pass", mj.Pass).Bool("dry_run", mj.DryRun).Str("requested_by", mj.RequestedBy).Msg("processing migration job")
	report, err := p.runner.Run(ctx, mj.Pass, migrator.RunOptions{DryRun: mj.DryRun})
	if err != nil {
		log.Error().Err(err).Str("pass", mj.Pass).Msg("migration job failed")
		p.deadLetter(ctx, queue, job.Type, job.Payload, err.Error())
		return
	}
	log.Info().
		Str("pass", mj.Pass).
		Str("run_id", report.RunID.String()).
		Str("status", string(report.Summary.Status)).
		Int("failed", report.Summary.Failed).
		Msg("migration job done")
}

func (p *Pool) deadLetter(ctx context.Context, queue, jobType string, payload json.RawMessage, reason string) {
	if p.dlq == nil {
		return
	}
	entry := DLQEntry{JobType: jobType, Payload: payload, Reason: reason, Attempts: 1}
	if err := p.dlq.Send(context.WithoutCancel(ctx), queue, entry); err != nil {
		log.Error().Err(err).Str("queue", queue).Msg("dlq: failed to push to DLQ")
	}
}

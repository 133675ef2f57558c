package worker

// dlq.go: Dead Letter Queue
// Jobs that fail, and products a migration run could not rewrite, land here
// for manual inspection. One Redis list per source queue: dlq:{original_queue}

import (
	"context"
	"encoding/json"
	"time"

	"storefront/internal/migrator"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const DLQPrefix = "dlq:"

// JobTypeFailedProduct marks a per-product failure reported by a run.
const JobTypeFailedProduct = "catalog_migration.product"

// DLQEntry wraps a failed job with metadata for debugging.
type DLQEntry struct {
	OriginalQueue string          `json:"original_queue"`
	JobType       string          `json:"job_type"`
	Payload       json.RawMessage `json:"payload"`
	Reason        string          `json:"reason"`
	FailedAt      string          `json:"failed_at"` // ISO 8601
	Attempts      int             `json:"attempts"`
}

// FailedProduct is the payload of a JobTypeFailedProduct entry.
type FailedProduct struct {
	ProductID string `json:"product_id"`
	RunID     string `json:"run_id"`
	Pass      string `json:"pass"`
	Reason    string `json:"reason"`
	Detail    string `json:"detail,omitempty"`
}

type dlqStore interface {
	listPusher
	LRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
	LLen(ctx context.Context, key string) *redis.IntCmd
}

// DeadLetters reads and writes DLQ lists.
type DeadLetters struct {
	rdb dlqStore
	now func() time.Time
}

func NewDeadLetters(rdb dlqStore) *DeadLetters {
	return &DeadLetters{rdb: rdb, now: time.Now}
}

// Send pushes one entry onto dlq:{queue}.
func (d *DeadLetters) Send(ctx context.Context, queue string, entry DLQEntry) error {
	entry.OriginalQueue = queue
	entry.FailedAt = d.now().UTC().Format(time.RFC3339)

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	if err := d.rdb.LPush(ctx, DLQPrefix+queue, data).Err(); err != nil {
		return err
	}

	log.Warn().
		Str("queue", queue).
		Str("job_type", entry.JobType).
		Str("reason", entry.Reason).
		Int("attempts", entry.Attempts).
		Msg("dlq: job moved to dead letter queue")
	return nil
}

// RecordFailures files every failed product of report under the migration
// queue in a single push. It implements migrator.FailureSink.
func (d *DeadLetters) RecordFailures(ctx context.Context, report *migrator.Report) error {
	failures := report.Failures()
	if len(failures) == 0 {
		return nil
	}

	failedAt := d.now().UTC().Format(time.RFC3339)
	values := make([]interface{}, 0, len(failures))
	for _, res := range failures {
		payload, err := json.Marshal(FailedProduct{
			ProductID: res.ProductID.String(),
			RunID:     report.RunID.String(),
			Pass:      report.Pass,
			Reason:    string(res.Reason),
			Detail:    res.Detail,
		})
		if err != nil {
			return err
		}
		data, err := json.Marshal(DLQEntry{
			OriginalQueue: QueueCatalogMigration,
			JobType:       JobTypeFailedProduct,
			Payload:       payload,
			Reason:        string(res.Reason),
			FailedAt:      failedAt,
			Attempts:      1,
		})
		if err != nil {
			return err
		}
		values = append(values, data)
	}

	if err := d.rdb.LPush(ctx, DLQPrefix+QueueCatalogMigration, values...).Err(); err != nil {
		return err
	}
	log.Warn().
		Str("pass", report.Pass).
		Str("run_id", report.RunID.String()).
		Int("products", len(failures)).
		Msg("dlq: failed products recorded")
	return nil
}

// List returns the newest n entries of dlq:{queue}, newest first.
func (d *DeadLetters) List(ctx context.Context, queue string, n int) ([]DLQEntry, error) {
	if n < 1 {
		n = 50
	}
	raw, err := d.rdb.LRange(ctx, DLQPrefix+queue, 0, int64(n-1)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]DLQEntry, 0, len(raw))
	for _, r := range raw {
		var e DLQEntry
		if err := json.Unmarshal([]byte(r), &e); err != nil {
			log.Warn().Err(err).Str("queue", queue).Msg("dlq: skipping undecodable entry")
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// Length returns the number of entries in a DLQ for monitoring.
func (d *DeadLetters) Length(ctx context.Context, queue string) (int64, error) {
	return d.rdb.LLen(ctx, DLQPrefix+queue).Result()
}

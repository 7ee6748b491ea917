package changestream

import (
	"context"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Writer is the write surface of the pipeline
type Writer interface {
	Upsert(ctx context.Context, doc map[string]any, namespace string, ts int64) error
	BulkUpsert(ctx context.Context, docs []map[string]any, namespace string, ts int64) error
	Update(ctx context.Context, id any, delta map[string]any, namespace string, ts int64) error
	Remove(ctx context.Context, id any, namespace string, ts int64) error
}

// Checkpoints tracks the last applied timestamp per namespace
type Checkpoints interface {
	Get(namespace string) (int64, bool, error)
	Advance(namespace string, ts int64) error
}

// DefaultBulkSize caps the documents grouped into one bulk upsert
const DefaultBulkSize = 1000

// ApplierConfig wires an Applier. Writer is required.
type ApplierConfig struct {
	Writer      Writer
	Checkpoints Checkpoints   // optional
	Limiter     *rate.Limiter // optional; one token per write call
	Bulk        bool          // group consecutive inserts of a namespace into BulkUpsert
	BulkSize    int
	Logger      logrus.FieldLogger
}

// Stats counts what happened to the records of a run
type Stats struct {
	Applied int
	Skipped int
}

// Applier dispatches change records to the pipeline
type Applier struct {
	writer      Writer
	checkpoints Checkpoints
	limiter     *rate.Limiter
	bulk        bool
	bulkSize    int
	logger      logrus.FieldLogger
}

// NewApplier creates an applier
func NewApplier(cfg ApplierConfig) *Applier {
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	size := cfg.BulkSize
	if size <= 0 {
		size = DefaultBulkSize
	}
	return &Applier{
		writer:      cfg.Writer,
		checkpoints: cfg.Checkpoints,
		limiter:     cfg.Limiter,
		bulk:        cfg.Bulk,
		bulkSize:    size,
		logger:      logger.WithField("component", "changestream"),
	}
}

// Apply writes a single record: i -> Upsert, u -> Update, d -> Remove.
// Records at or below the namespace checkpoint are skipped and reported as applied=false.
func (a *Applier) Apply(ctx context.Context, rec Record) (applied bool, err error) {
	if err := rec.Validate(); err != nil {
		return false, err
	}
	if skip, err := a.seen(rec); err != nil || skip {
		return false, err
	}
	if err := a.wait(ctx); err != nil {
		return false, err
	}

	switch rec.Op {
	case OpInsert:
		err = a.writer.Upsert(ctx, rec.Doc, rec.Namespace, rec.Timestamp)
	case OpUpdate:
		err = a.writer.Update(ctx, rec.DocumentID(), rec.Delta, rec.Namespace, rec.Timestamp)
	case OpDelete:
		err = a.writer.Remove(ctx, rec.DocumentID(), rec.Namespace, rec.Timestamp)
	}
	if err != nil {
		return false, fmt.Errorf("apply %s on %s at %d: %w", rec.Op, rec.Namespace, rec.Timestamp, err)
	}
	return true, a.advance(rec.Namespace, rec.Timestamp)
}

// ApplyAll applies records in order and stops at the first error
func (a *Applier) ApplyAll(ctx context.Context, records []Record) (Stats, error) {
	i := 0
	return a.run(ctx, func() (Record, error) {
		if i >= len(records) {
			return Record{}, io.EOF
		}
		i++
		return records[i-1], nil
	})
}

// Run applies every record of the reader and stops at the first error
func (a *Applier) Run(ctx context.Context, r *Reader) (Stats, error) {
	return a.run(ctx, r.Next)
}

func (a *Applier) run(ctx context.Context, next func() (Record, error)) (Stats, error) {
	var stats Stats
	var pending []Record

	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		n, err := a.applyBulk(ctx, pending)
		stats.Applied += n
		pending = pending[:0]
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		rec, err := next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return stats, err
		}

		if a.bulk && rec.Op == OpInsert {
			if err := rec.Validate(); err != nil {
				return stats, err
			}
			skip, err := a.seen(rec)
			if err != nil {
				return stats, err
			}
			if skip {
				stats.Skipped++
				continue
			}
			if len(pending) > 0 && (pending[0].Namespace != rec.Namespace || len(pending) >= a.bulkSize) {
				if err := flush(); err != nil {
					return stats, err
				}
			}
			pending = append(pending, rec)
			continue
		}

		if err := flush(); err != nil {
			return stats, err
		}
		applied, err := a.Apply(ctx, rec)
		if err != nil {
			return stats, err
		}
		if applied {
			stats.Applied++
		} else {
			stats.Skipped++
		}
	}

	if err := flush(); err != nil {
		return stats, err
	}

	a.logger.WithFields(logrus.Fields{
		"applied": stats.Applied,
		"skipped": stats.Skipped,
	}).Info("change stream applied")
	return stats, nil
}

// applyBulk writes a group of inserts of one namespace, stamped with the last record's timestamp
func (a *Applier) applyBulk(ctx context.Context, group []Record) (int, error) {
	if err := a.wait(ctx); err != nil {
		return 0, err
	}

	last := group[len(group)-1]
	docs := make([]map[string]any, 0, len(group))
	for _, rec := range group {
		docs = append(docs, rec.Doc)
	}

	if err := a.writer.BulkUpsert(ctx, docs, last.Namespace, last.Timestamp); err != nil {
		return 0, fmt.Errorf("bulk insert of %d documents into %s: %w", len(docs), last.Namespace, err)
	}
	return len(docs), a.advance(last.Namespace, last.Timestamp)
}

func (a *Applier) seen(rec Record) (bool, error) {
	if a.checkpoints == nil {
		return false, nil
	}
	ts, ok, err := a.checkpoints.Get(rec.Namespace)
	if err != nil {
		return false, fmt.Errorf("read checkpoint for %s: %w", rec.Namespace, err)
	}
	if ok && rec.Timestamp <= ts {
		a.logger.WithFields(logrus.Fields{
			"namespace":  rec.Namespace,
			"ts":         rec.Timestamp,
			"checkpoint": ts,
		}).Debug("skipping already applied record")
		return true, nil
	}
	return false, nil
}

func (a *Applier) advance(namespace string, ts int64) error {
	if a.checkpoints == nil {
		return nil
	}
	if err := a.checkpoints.Advance(namespace, ts); err != nil {
		return fmt.Errorf("advance checkpoint for %s: %w", namespace, err)
	}
	return nil
}

func (a *Applier) wait(ctx context.Context) error {
	if a.limiter == nil {
		return nil
	}
	return a.limiter.Wait(ctx)
}

package pipeline

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"fs1diag/internal"
	"fs1diag/internal/storage"
)

type Loader struct {
	db        *storage.DB
	batchSize int
	timeout   time.Duration
	log       *zap.Logger
}

type LoadResult struct {
	Loaded     int
	RolledBack int
	Failures   []internal.LoadFailure
}

func NewLoader(db *storage.DB, batchSize int, timeout time.Duration, log *zap.Logger) *Loader {
	if batchSize <= 0 {
		batchSize = 500
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Loader{db: db, batchSize: batchSize, timeout: timeout, log: log}
}

// Load upserts cases batch by batch, each batch in its own transaction and
// under its own deadline. A batch with constraint failures is rolled back and
// reported; later batches still run. A store failure stops the load and is
// returned wrapped in storage.ErrStoreUnavailable.
func (l *Loader) Load(ctx context.Context, cases []internal.DiagnosticCase) (LoadResult, error) {
	res := LoadResult{Failures: []internal.LoadFailure{}}
	for start, batch := 0, 1; start < len(cases); start, batch = start+l.batchSize, batch+1 {
		end := min(start+l.batchSize, len(cases))
		chunk := cases[start:end]

		bctx, cancel := context.WithTimeout(ctx, l.timeout)
		err := l.db.UpsertCases(bctx, chunk)
		cancel()

		if err == nil {
			res.Loaded += len(chunk)
			l.log.Debug("batch loaded", zap.Int("batch", batch), zap.Int("rows", len(chunk)))
			continue
		}

		res.RolledBack++
		var batchErr *storage.BatchError
		if errors.As(err, &batchErr) {
			for _, f := range batchErr.Failures {
				res.Failures = append(res.Failures, internal.LoadFailure{
					Batch:  batch,
					Key:    f.Key,
					LineNo: f.LineNo,
					Reason: f.Err.Error(),
				})
			}
			l.log.Warn("batch rolled back", zap.Int("batch", batch), zap.Int("failures", len(batchErr.Failures)))
			continue
		}

		l.log.Error("store unavailable", zap.Int("batch", batch), zap.Error(err))
		return res, err
	}
	return res, nil
}

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"fs1diag/internal"
	"fs1diag/internal/config"
	"fs1diag/internal/storage"
	"fs1diag/internal/util"
)

type Ingestor struct {
	db     *storage.DB
	cfg    config.Config
	log    *zap.Logger
	norm   *Normalizer
	loader *Loader
}

func NewIngestor(db *storage.DB, cfg config.Config, log *zap.Logger) *Ingestor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Ingestor{
		db:     db,
		cfg:    cfg,
		log:    log,
		norm:   NewNormalizer(cfg.YearMin),
		loader: NewLoader(db, cfg.LoadBatchSize, cfg.LoadTimeout(), log),
	}
}

type rowResult struct {
	done      bool
	c         *internal.DiagnosticCase
	flags     []internal.ReviewFlag
	rejection *internal.Rejection
}

// Run parses, extracts and normalizes records on a bounded worker pool, then
// dedupes and loads the accepted cases and persists the run report.
// Cancelling ctx stops submitting rows and skips the load. A store failure is
// returned wrapped in storage.ErrStoreUnavailable alongside the partial report,
// as is a failure to persist the report itself.
func (s *Ingestor) Run(ctx context.Context, origin internal.RecordOrigin, records []internal.RawRecord) (internal.RunReport, error) {
	started := time.Now().UTC()
	report := internal.RunReport{
		RunID:        uuid.NewString(),
		Origin:       origin,
		RowsRead:     len(records),
		RowsRejected: []internal.Rejection{},
		ReviewFlags:  []internal.ReviewFlag{},
		LoadFailures: []internal.LoadFailure{},
	}
	log := s.log.With(zap.String("run_id", report.RunID), zap.String("origin", string(origin)))
	log.Info("run started", zap.Int("rows", len(records)))

	results := make([]rowResult, len(records))
	var g errgroup.Group
	g.SetLimit(max(s.cfg.IngestWorkers, 1))
	for i, rec := range records {
		if ctx.Err() != nil {
			report.Cancelled = true
			break
		}
		i, rec := i, rec
		g.Go(func() error {
			results[i] = s.processRow(rec)
			return nil
		})
	}
	_ = g.Wait()
	if ctx.Err() != nil {
		report.Cancelled = true
	}

	cases := make([]internal.DiagnosticCase, 0, len(records))
	for _, r := range results {
		if !r.done {
			continue
		}
		if r.rejection != nil {
			report.RowsRejected = append(report.RowsRejected, *r.rejection)
			continue
		}
		report.RowsAccepted++
		for _, f := range r.flags {
			if f.Reason == internal.ReviewLowConfidence {
				report.LowConfidenceFlagged++
			}
		}
		report.ReviewFlags = append(report.ReviewFlags, r.flags...)
		cases = append(cases, *r.c)
	}

	deduped, collapsed := Dedupe(cases)
	report.DuplicatesCollapsed = collapsed

	var runErr error
	if report.Cancelled {
		log.Warn("run cancelled before load", zap.Int("accepted", report.RowsAccepted))
	} else {
		res, err := s.loader.Load(ctx, deduped)
		report.RowsLoaded = res.Loaded
		report.BatchesRolledBack = res.RolledBack
		report.LoadFailures = res.Failures
		if err != nil {
			report.StoreUnavailable = errors.Is(err, storage.ErrStoreUnavailable)
			runErr = fmt.Errorf("load: %w", err)
		}
	}

	finished := time.Now().UTC()
	if err := s.db.InsertRun(report, started.Format(time.RFC3339), finished.Format(time.RFC3339)); err != nil {
		log.Error("run report not persisted", zap.Error(err))
		runErr = errors.Join(runErr, fmt.Errorf("persist run: %w", err))
	}

	log.Info("run finished",
		zap.Int("accepted", report.RowsAccepted),
		zap.Int("rejected", len(report.RowsRejected)),
		zap.Int("loaded", report.RowsLoaded),
		zap.Int("rolled_back", report.BatchesRolledBack),
		zap.Duration("took", finished.Sub(started)),
	)
	return report, runErr
}

func (s *Ingestor) processRow(raw internal.RawRecord) rowResult {
	parsed, err := ParseRecord(raw)
	if err != nil {
		return rowResult{done: true, rejection: rejectionFor(raw, err)}
	}

	text := parsed.ProblemDescription
	if util.IsBlank(text) {
		text = parsed.Notes
	}
	ext := Extract(util.StripMarkup(util.Deref(text)))

	c, flags, err := s.norm.Normalize(parsed, ext)
	if err != nil {
		return rowResult{done: true, rejection: rejectionFor(raw, err)}
	}
	return rowResult{done: true, c: &c, flags: flags}
}

func rejectionFor(raw internal.RawRecord, err error) *internal.Rejection {
	r := &internal.Rejection{
		LineNo:      raw.LineNo,
		HNumber:     util.Deref(util.TrimPtr(raw.Get(internal.ColHNumber))),
		CreatedTime: util.Deref(util.TrimPtr(raw.Get(internal.ColCreatedTime))),
		Detail:      err.Error(),
	}
	var tsErr *UnparseableTimestampError
	if errors.As(err, &tsErr) {
		r.Reason = ReasonUnparseableTimestamp
	} else {
		r.Reason = ReasonMalformedRow
	}
	return r
}

// ImportFile reads a CSV, XLSX or single .eml export and runs it through the
// pipeline.
func (s *Ingestor) ImportFile(ctx context.Context, inputType, path string) (internal.RunReport, error) {
	origin, records, err := ReadInput(inputType, path)
	if err != nil {
		return internal.RunReport{}, err
	}
	return s.Run(ctx, origin, records)
}

type MailResult struct {
	Mails   int
	Skipped int
	Failed  int
	Report  internal.RunReport
}

// ProcessPending ingests fetched Zoho notifications as one run. Each mail
// becomes one record whose line number is its mail_messages id. Mails stay
// fetched when the store is unavailable so the next pass retries them.
func (s *Ingestor) ProcessPending(ctx context.Context, limit int, provider string) (MailResult, error) {
	pending, err := s.db.ListMailByStatus(storage.MailStatusFetched, limit)
	if err != nil {
		return MailResult{}, err
	}

	var res MailResult
	var records []internal.RawRecord
	var ingested []int
	for _, m := range pending {
		if provider != "" && m.Provider != provider {
			continue
		}
		res.Mails++
		rec, ok, err := s.readMail(m)
		if err != nil {
			res.Failed++
			s.log.Warn("mail unreadable", zap.Int("mail_id", m.ID), zap.Error(err))
			_ = s.db.UpdateMailStatus(m.ID, storage.MailStatusFailed)
			continue
		}
		if !ok {
			res.Skipped++
			_ = s.db.UpdateMailStatus(m.ID, storage.MailStatusSkipped)
			continue
		}
		records = append(records, rec)
		ingested = append(ingested, m.ID)
	}
	if len(records) == 0 {
		return res, nil
	}

	report, err := s.Run(ctx, internal.OriginZohoMail, records)
	res.Report = report
	if err != nil || report.Cancelled {
		return res, err
	}
	for _, id := range ingested {
		if err := s.db.UpdateMailStatus(id, storage.MailStatusIngested); err != nil {
			return res, err
		}
	}
	return res, nil
}

func (s *Ingestor) readMail(m internal.MailRow) (internal.RawRecord, bool, error) {
	raw, err := os.ReadFile(m.RawRef)
	if err != nil {
		return internal.RawRecord{}, false, err
	}
	n, err := ParseNotification(raw, m.ReceivedAt)
	if err != nil {
		return internal.RawRecord{}, false, err
	}
	if !n.Detect.IsNotification {
		return internal.RawRecord{}, false, nil
	}
	rec := n.Record
	rec.LineNo = m.ID
	return rec, true, nil
}

// IngestByProviderMessageID ingests one stored mail regardless of its status.
func (s *Ingestor) IngestByProviderMessageID(ctx context.Context, provider, messageID string) (internal.RunReport, error) {
	m, err := s.db.MustMailByProviderMessageID(provider, messageID)
	if err != nil {
		return internal.RunReport{}, err
	}
	rec, ok, err := s.readMail(m)
	if err != nil {
		_ = s.db.UpdateMailStatus(m.ID, storage.MailStatusFailed)
		return internal.RunReport{}, err
	}
	if !ok {
		_ = s.db.UpdateMailStatus(m.ID, storage.MailStatusSkipped)
		return internal.RunReport{}, fmt.Errorf("mail %d is not a form notification", m.ID)
	}

	report, err := s.Run(ctx, internal.OriginZohoMail, []internal.RawRecord{rec})
	if err != nil || report.Cancelled {
		return report, err
	}
	return report, s.db.UpdateMailStatus(m.ID, storage.MailStatusIngested)
}

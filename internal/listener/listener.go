package listener

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"fs1diag/internal/config"
	"fs1diag/internal/connectors"
	gmailconnector "fs1diag/internal/connectors/gmail"
	imapconnector "fs1diag/internal/connectors/imap"
	"fs1diag/internal/pipeline"
	"fs1diag/internal/storage"
)

// Service polls a mailbox for Zoho Forms notifications and ingests them.
type Service struct {
	db           *storage.DB
	cfg          config.Config
	log          *zap.Logger
	newConnector func(ctx context.Context, provider string) (connectors.MailConnector, error)
}

func NewService(db *storage.DB, cfg config.Config, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{db: db, cfg: cfg, log: log}
	s.newConnector = s.makeConnector
	return s
}

// Run cycles until ctx is cancelled. A failed cycle is logged and retried on
// the next tick; an unavailable store is retried the same way.
func (s *Service) Run(ctx context.Context) error {
	interval := time.Duration(max(s.cfg.MailListenerIntervalSec, 1)) * time.Second
	for {
		if err := s.runCycle(ctx); err != nil {
			s.log.Error("listener cycle failed", zap.Error(err), zap.Bool("retry_later", errors.Is(err, storage.ErrStoreUnavailable)))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
	}
}

func (s *Service) runCycle(ctx context.Context) error {
	// Leave mail on the server while the store is down.
	if err := s.db.Ping(ctx); err != nil {
		return err
	}

	provider := strings.ToLower(strings.TrimSpace(s.cfg.MailListenerProvider))
	conn, err := s.newConnector(ctx, provider)
	if err != nil {
		return err
	}

	fetched, err := connectors.NewFetchService(s.db, s.cfg.RawMailDir, conn, s.log).
		FetchAndStore(ctx, s.cfg.MailListenerLabel, s.cfg.MailListenerFetchMax)
	if err != nil {
		return err
	}

	ingestor := pipeline.NewIngestor(s.db, s.cfg, s.log)
	res, err := ingestor.ProcessPending(ctx, s.cfg.MailListenerIngestBatch, provider)
	if err != nil {
		return err
	}

	if s.cfg.MailListenerAutoExport && res.Report.RowsLoaded > 0 {
		if err := s.exportCases(res.Report.RunID); err != nil {
			return err
		}
	}

	s.log.Info("listener cycle done",
		zap.String("provider", provider),
		zap.Int("fetched", fetched.Fetched),
		zap.Int("stored", fetched.Stored),
		zap.Int("mails", res.Mails),
		zap.Int("skipped", res.Skipped),
		zap.Int("loaded", res.Report.RowsLoaded),
	)
	return nil
}

func (s *Service) exportCases(runID string) error {
	cases, err := s.db.ListCases()
	if err != nil {
		return err
	}
	outputPath := filepath.Join(s.cfg.OutputDir, "listener", fmt.Sprintf("cases_%s.xlsx", runID))
	return pipeline.ExportCasesToXLSX(cases, outputPath)
}

func (s *Service) makeConnector(ctx context.Context, provider string) (connectors.MailConnector, error) {
	switch provider {
	case connectors.ProviderGmail:
		return gmailconnector.NewConnector(ctx, s.cfg, "")
	case connectors.ProviderIMAP:
		return imapconnector.NewConnector(s.cfg)
	default:
		return nil, fmt.Errorf("unsupported listener provider: %s", provider)
	}
}

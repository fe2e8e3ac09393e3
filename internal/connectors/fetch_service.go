package connectors

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"fs1diag/internal/storage"
)

type FetchService struct {
	connector MailConnector
	store     *MailStoreService
	log       *zap.Logger
}

type FetchResult struct {
	Fetched int
	Stored  int
}

func NewFetchService(db *storage.DB, rawMailDir string, connector MailConnector, log *zap.Logger) *FetchService {
	if log == nil {
		log = zap.NewNop()
	}
	return &FetchService{
		connector: connector,
		store:     NewMailStoreService(db, rawMailDir),
		log:       log,
	}
}

func (s *FetchService) FetchAndStore(ctx context.Context, label string, max int) (FetchResult, error) {
	messages, err := s.connector.FetchInbox(ctx, label, max)
	if err != nil {
		return FetchResult{}, fmt.Errorf("fetch %s: %w", label, err)
	}

	stored := 0
	for _, msg := range messages {
		row, err := s.store.Store(msg)
		if err != nil {
			return FetchResult{Fetched: len(messages), Stored: stored}, fmt.Errorf("store %s: %w", msg.MessageID, err)
		}
		stored++
		s.log.Debug("mail stored", zap.Int("mail_id", row.ID), zap.String("provider", row.Provider), zap.String("status", row.Status))
	}

	return FetchResult{Fetched: len(messages), Stored: stored}, nil
}

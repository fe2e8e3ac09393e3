package listener

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"fs1diag/internal"
	"fs1diag/internal/config"
	"fs1diag/internal/connectors"
	"fs1diag/internal/storage"
)

const notification = "From: Zoho Forms <notifications@zohoforms.com>\n" +
	"Subject: New entry H3001\n" +
	"Content-Type: text/plain; charset=utf-8\n" +
	"\n" +
	"Created Time: 2023-04-01 09:15:00\n" +
	"Problem Description: Misfire P0301. FS1: P0301 confirmed\n"

type staticConnector struct {
	messages []internal.FetchedMailMessage
}

func (c staticConnector) FetchInbox(context.Context, string, int) ([]internal.FetchedMailMessage, error) {
	return c.messages, nil
}

func TestRunCycleFetchesIngestsAndExports(t *testing.T) {
	tmp := t.TempDir()
	db, err := storage.Open(filepath.Join(tmp, "fs1.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cfg := config.Config{
		RawMailDir:              filepath.Join(tmp, "raw"),
		OutputDir:               filepath.Join(tmp, "out"),
		IngestWorkers:           2,
		LoadBatchSize:           10,
		LoadTimeoutMs:           5000,
		YearMin:                 1980,
		MailListenerProvider:    "IMAP",
		MailListenerLabel:       "INBOX",
		MailListenerFetchMax:    10,
		MailListenerIngestBatch: 10,
		MailListenerAutoExport:  true,
	}
	svc := NewService(db, cfg, zap.NewNop())
	svc.newConnector = func(_ context.Context, provider string) (connectors.MailConnector, error) {
		assert.Equal(t, connectors.ProviderIMAP, provider)
		return staticConnector{messages: []internal.FetchedMailMessage{{
			Provider:   connectors.ProviderIMAP,
			MessageID:  "<zf-3001@zoho.test>",
			Subject:    "New entry H3001",
			ReceivedAt: "2023-04-01T09:16:00Z",
			Raw:        []byte(notification),
		}}}, nil
	}

	require.NoError(t, svc.runCycle(context.Background()))

	got, err := db.GetCase(internal.CaseKey{HNumber: "H3001", CreatedTime: "2023-04-01 09:15:00"})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.FS1OriginalProblemsRelated)

	exports, err := os.ReadDir(filepath.Join(cfg.OutputDir, "listener"))
	require.NoError(t, err)
	assert.Len(t, exports, 1)
}

func TestUnknownProvider(t *testing.T) {
	db, err := storage.Open(filepath.Join(t.TempDir(), "fs1.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	svc := NewService(db, config.Config{MailListenerProvider: "pop3"}, nil)
	err = svc.runCycle(context.Background())
	assert.ErrorContains(t, err, "unsupported listener provider")
}

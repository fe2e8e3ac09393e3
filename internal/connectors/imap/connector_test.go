package imap

import (
	"testing"
	"time"

	"github.com/emersion/go-imap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fs1diag/internal/config"
)

func TestNewConnectorRequiresCredentials(t *testing.T) {
	_, err := NewConnector(config.Config{IMAPHost: "imap.example.com", IMAPUser: "shop"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "IMAP_PASSWORD")
}

func TestToFetched(t *testing.T) {
	msg := &imap.Message{
		Uid:          42,
		InternalDate: time.Date(2023, 3, 3, 12, 0, 0, 0, time.FixedZone("CET", 3600)),
		Envelope: &imap.Envelope{
			Subject: "New entry",
			From:    []*imap.Address{{PersonalName: "Zoho Forms", MailboxName: "notifications", HostName: "zohoforms.com"}},
		},
	}

	got := toFetched(msg, []byte("raw"))
	assert.Equal(t, "imap-42", got.MessageID)
	assert.Equal(t, "imap", got.Provider)
	assert.Equal(t, "2023-03-03T11:00:00Z", got.ReceivedAt)
	assert.Equal(t, "Zoho Forms <notifications@zohoforms.com>", got.From)
}

package connectors

import (
	"context"

	"fs1diag/internal"
)

const (
	ProviderIMAP  = "imap"
	ProviderGmail = "gmail"
)

// MailConnector pulls raw messages for one mailbox label.
type MailConnector interface {
	FetchInbox(ctx context.Context, label string, max int) ([]internal.FetchedMailMessage, error)
}

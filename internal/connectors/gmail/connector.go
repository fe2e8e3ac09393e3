package gmail

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"net/mail"
	"time"

	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"fs1diag/internal"
	"fs1diag/internal/config"
	"fs1diag/internal/connectors"
)

// Connector reads Zoho notifications from a Gmail label. query narrows the
// listing with Gmail search syntax, e.g. "from:zohoforms.com".
type Connector struct {
	service *gmail.Service
	query   string
	limiter *connectors.RateLimiter
}

func NewConnector(ctx context.Context, cfg config.Config, query string) (*Connector, error) {
	ts, err := connectors.GoogleTokenSource(ctx, cfg, gmail.GmailReadonlyScope)
	if err != nil {
		return nil, err
	}
	svc, err := gmail.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, err
	}
	return &Connector{service: svc, query: query, limiter: connectors.NewRateLimiter(cfg.GoogleRequestsPerSecond)}, nil
}

func (c *Connector) FetchInbox(ctx context.Context, label string, max int) ([]internal.FetchedMailMessage, error) {
	call := c.service.Users.Messages.List("me").LabelIds(label).MaxResults(int64(max)).Context(ctx)
	if c.query != "" {
		call = call.Q(c.query)
	}
	listResp, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("gmail list: %w", err)
	}

	out := make([]internal.FetchedMailMessage, 0, len(listResp.Messages))
	for _, ref := range listResp.Messages {
		if ref.Id == "" {
			continue
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		msg, err := c.service.Users.Messages.Get("me", ref.Id).Format("raw").Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("gmail get %s: %w", ref.Id, err)
		}
		if msg.Raw == "" {
			continue
		}
		raw, err := decodeBase64URL(msg.Raw)
		if err != nil {
			return nil, err
		}
		out = append(out, toFetched(ref.Id, msg.InternalDate, raw))
	}
	return out, nil
}

// toFetched reads the headers from the raw message itself, so one raw fetch
// per message is enough.
func toFetched(id string, internalDateMs int64, raw []byte) internal.FetchedMailMessage {
	out := internal.FetchedMailMessage{
		Provider:   connectors.ProviderGmail,
		MessageID:  id,
		ReceivedAt: time.Now().UTC().Format(time.RFC3339),
		Raw:        raw,
	}
	if internalDateMs > 0 {
		out.ReceivedAt = time.UnixMilli(internalDateMs).UTC().Format(time.RFC3339)
	}

	m, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return out
	}
	if v := m.Header.Get("Message-ID"); v != "" {
		out.MessageID = v
	}
	out.Subject = decodeHeader(m.Header.Get("Subject"))
	out.From = m.Header.Get("From")
	if internalDateMs <= 0 {
		if t, err := m.Header.Date(); err == nil {
			out.ReceivedAt = t.UTC().Format(time.RFC3339)
		}
	}
	return out
}

func decodeHeader(v string) string {
	dec := new(mime.WordDecoder)
	if s, err := dec.DecodeHeader(v); err == nil {
		return s
	}
	return v
}

func decodeBase64URL(input string) ([]byte, error) {
	decoded, err := base64.RawURLEncoding.DecodeString(input)
	if err == nil {
		return decoded, nil
	}
	decoded, err = base64.URLEncoding.DecodeString(input)
	if err == nil {
		return decoded, nil
	}
	return nil, fmt.Errorf("decode gmail raw payload: %w", err)
}

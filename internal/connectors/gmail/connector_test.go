package gmail

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rawNotification = "Message-ID: <zf-9@zoho.test>\r\n" +
	"From: Zoho Forms <notifications@zohoforms.com>\r\n" +
	"Subject: =?UTF-8?Q?New_entry_H1001?=\r\n" +
	"Date: Fri, 03 Mar 2023 10:00:00 +0100\r\n" +
	"\r\n" +
	"H Number: H1001\r\n"

func TestToFetchedReadsRawHeaders(t *testing.T) {
	got := toFetched("abc123", 0, []byte(rawNotification))

	assert.Equal(t, "gmail", got.Provider)
	assert.Equal(t, "<zf-9@zoho.test>", got.MessageID)
	assert.Equal(t, "New entry H1001", got.Subject)
	assert.Equal(t, "2023-03-03T09:00:00Z", got.ReceivedAt)
}

func TestToFetchedPrefersInternalDate(t *testing.T) {
	got := toFetched("abc123", 1677837600000, []byte("Subject: x\r\n\r\nbody"))
	assert.Equal(t, "abc123", got.MessageID)
	assert.Equal(t, "2023-03-03T10:00:00Z", got.ReceivedAt)
}

func TestDecodeBase64URL(t *testing.T) {
	blob := []byte("Subject: ok?\r\n\r\n>>>")
	for _, enc := range []*base64.Encoding{base64.RawURLEncoding, base64.URLEncoding} {
		got, err := decodeBase64URL(enc.EncodeToString(blob))
		require.NoError(t, err)
		assert.Equal(t, blob, got)
	}
}

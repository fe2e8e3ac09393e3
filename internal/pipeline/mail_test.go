package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fs1diag/internal"
)

const zohoTableMail = `From: Zoho Forms <notifications@zohoforms.com>
To: shop@example.com
Subject: New entry: FS1 Diagnostic Form
Date: Fri, 03 Mar 2023 10:00:00 +0000
Message-ID: <zf-1@zoho.test>
MIME-Version: 1.0
Content-Type: multipart/alternative; boundary="b1"

--b1
Content-Type: text/plain; charset=utf-8

H Number: h-1001

--b1
Content-Type: text/html; charset=utf-8

<html><body><table>
<tr><td>H Number</td><td>h-1001</td></tr>
<tr><td>Created Time</td><td>04-Mar-2023 10:00:00</td></tr>
<tr><td>Make</td><td>TOYOTA</td></tr>
<tr><td>Problem Description</td><td>Engine misfire P0301, P0302.<br>FS1 ECU check: P0300 found.<br>Resolution: replaced coil.</td></tr>
<tr><td>Engine Size</td><td>-</td></tr>
<tr><td>Submitted From</td><td>tablet</td></tr>
</table></body></html>
--b1--
`

const zohoTextMail = `From: forms@zohoforms.com
Subject: New entry H2002
Date: Sun, 05 Mar 2023 09:30:00 +0000
Content-Type: text/plain; charset=utf-8

Technician: Sam
Problem Description: No start
U0100 lost comms
Resolution: new harness
`

func TestParseNotificationTable(t *testing.T) {
	n, err := ParseNotification([]byte(zohoTableMail), "2023-03-03T10:00:00Z")
	require.NoError(t, err)

	assert.True(t, n.Detect.IsNotification)
	rec := n.Record
	assert.Equal(t, internal.OriginZohoMail, rec.Origin)
	assert.Equal(t, "h-1001", *rec.Get(internal.ColHNumber))
	assert.Equal(t, "04-Mar-2023 10:00:00", *rec.Get(internal.ColCreatedTime))
	assert.Equal(t, "TOYOTA", *rec.Get(internal.ColMake))
	assert.Equal(t, "Engine misfire P0301, P0302. FS1 ECU check: P0300 found. Resolution: replaced coil.", *rec.Get(internal.ColProblemDescription))
	assert.Nil(t, rec.Get(internal.ColEngineSize))
	_, ok := rec.Fields["submitted_from"]
	assert.False(t, ok)
}

func TestParseNotificationTextFallbacks(t *testing.T) {
	n, err := ParseNotification([]byte(zohoTextMail), "2023-03-05T09:31:00Z")
	require.NoError(t, err)

	rec := n.Record
	assert.Equal(t, "H2002", *rec.Get(internal.ColHNumber))
	assert.Equal(t, "2023-03-05T09:31:00Z", *rec.Get(internal.ColCreatedTime))
	assert.Equal(t, "Sam", *rec.Get(internal.ColTechnician))
	assert.Equal(t, "No start U0100 lost comms", *rec.Get(internal.ColProblemDescription))
	assert.Equal(t, "new harness", *rec.Get(internal.ColResolution))
}

func TestParseNotificationUsesDateHeader(t *testing.T) {
	n, err := ParseNotification([]byte(zohoTextMail), "")
	require.NoError(t, err)
	assert.Equal(t, "2023-03-05T09:30:00Z", *n.Record.Get(internal.ColCreatedTime))
}

func TestDetectZohoNotification(t *testing.T) {
	negative := DetectZohoNotification("Lunch on Friday", "bob@example.com", "see you at noon", "")
	assert.False(t, negative.IsNotification)
	assert.Equal(t, "rules_negative", negative.Reason)

	positive := DetectZohoNotification("New entry", "Zoho Forms <notifications@zohoforms.com>", "H Number: H1\nCreated Time: now", "")
	assert.True(t, positive.IsNotification)
	assert.LessOrEqual(t, positive.Score, 1.0)
}

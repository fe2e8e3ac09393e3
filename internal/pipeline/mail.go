package pipeline

import (
	"bytes"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/jhillyerd/enmime"

	"fs1diag/internal"
	"fs1diag/internal/util"
)

var (
	reLabelLine   = regexp.MustCompile(`^\s*([^:]{1,60}?)\s*:\s*(.*)$`)
	reSubjectCase = regexp.MustCompile(`(?i)\bH[-\s]?\d{3,}\b`)
)

var knownColumns = map[string]struct{}{
	internal.ColHNumber: {}, internal.ColCreatedTime: {}, internal.ColEntryType: {},
	internal.ColTechnician: {}, internal.ColSource: {}, internal.ColYear: {},
	internal.ColMake: {}, internal.ColModel: {}, internal.ColEngineSize: {},
	internal.ColHDWNumber: {}, internal.ColPartNumber: {}, internal.ColNotes: {},
	internal.ColProblemDescription: {}, internal.ColOriginalProblems: {},
	internal.ColOriginalDTCs: {}, internal.ColFS1ECUProblems: {}, internal.ColFS1DTCs: {},
	internal.ColAdditionalNotes: {}, internal.ColResolution: {},
}

// Notification is one Zoho Forms entry notification read from raw MIME.
type Notification struct {
	Subject string
	From    string
	Detect  DetectResult
	Record  internal.RawRecord
}

// ParseNotification reads a Zoho Forms notification. Fields come from the
// label/value table of the HTML part, or from "Label: value" lines of the text
// part when there is no table. A missing created_time falls back to
// receivedAt, then to the Date header; a missing h_number to a case number in
// the subject.
func ParseNotification(raw []byte, receivedAt string) (Notification, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return Notification{}, fmt.Errorf("read envelope: %w", err)
	}

	subject := env.GetHeader("Subject")
	from := env.GetHeader("From")
	n := Notification{
		Subject: subject,
		From:    from,
		Detect:  DetectZohoNotification(subject, from, env.Text, env.HTML),
	}

	fields := map[string]*string{}
	if env.HTML != "" {
		fields = tableFields(env.HTML)
	}
	if len(fields) == 0 && env.Text != "" {
		fields = textFields(env.Text)
	}

	if util.IsBlank(fields[internal.ColHNumber]) {
		if m := reSubjectCase.FindString(subject); m != "" {
			fields[internal.ColHNumber] = util.StringPtr(m)
		}
	}
	if util.IsBlank(fields[internal.ColCreatedTime]) {
		if created := fallbackCreated(receivedAt, env.GetHeader("Date")); created != "" {
			fields[internal.ColCreatedTime] = util.StringPtr(created)
		}
	}

	n.Record = internal.RawRecord{LineNo: 1, Origin: internal.OriginZohoMail, Fields: fields}
	return n, nil
}

func tableFields(html string) map[string]*string {
	fields := map[string]*string{}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return fields
	}
	doc.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("th,td")
		if cells.Length() < 2 {
			return
		}
		label := util.NormalizeSpaces(cells.First().Text())
		column := ColumnFor(label)
		if _, ok := knownColumns[column]; !ok {
			return
		}
		valueHTML, _ := cells.Last().Html()
		setField(fields, column, util.StripMarkup(valueHTML))
	})
	return fields
}

// textFields reads "Label: value" lines. Lines that do not start with a known
// label continue the previous field.
func textFields(text string) map[string]*string {
	fields := map[string]*string{}
	current := ""
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if m := reLabelLine.FindStringSubmatch(line); m != nil {
			column := ColumnFor(m[1])
			if _, ok := knownColumns[column]; ok {
				if _, seen := fields[column]; !seen {
					current = column
					setField(fields, column, m[2])
					continue
				}
			}
		}
		if current == "" || strings.TrimSpace(line) == "" {
			continue
		}
		joined := strings.TrimSpace(util.Deref(fields[current]) + " " + strings.TrimSpace(line))
		fields[current] = util.StringPtr(joined)
	}
	return fields
}

func setField(fields map[string]*string, column, value string) {
	value = util.NormalizeSpaces(value)
	if value == "" || value == "-" {
		if _, ok := fields[column]; !ok {
			fields[column] = nil
		}
		return
	}
	if existing, ok := fields[column]; ok && existing != nil {
		return
	}
	fields[column] = util.StringPtr(value)
}

func fallbackCreated(receivedAt, dateHeader string) string {
	if strings.TrimSpace(receivedAt) != "" {
		return strings.TrimSpace(receivedAt)
	}
	if t, err := mail.ParseDate(dateHeader); err == nil {
		return t.UTC().Format(time.RFC3339)
	}
	return ""
}

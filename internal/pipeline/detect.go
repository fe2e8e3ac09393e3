package pipeline

import "strings"

type DetectResult struct {
	IsNotification bool
	Score          float64
	Reason         string
}

var (
	detectSubjectKeywords = []string{"zoho", "form", "entry", "submission", "diagnostic", "fs1"}
	detectBodyKeywords    = []string{"h number", "h_number", "created time", "problem description", "technician", "dtc"}
)

// DetectZohoNotification scores whether a message is a Zoho Forms entry
// notification rather than ordinary mail landing in the same mailbox.
func DetectZohoNotification(subject, from, text, html string) DetectResult {
	subject = strings.ToLower(subject)
	from = strings.ToLower(from)
	body := strings.ToLower(text + " " + html)

	score := 0.0
	for _, kw := range detectSubjectKeywords {
		if strings.Contains(subject, kw) {
			score += 0.1
		}
	}
	if strings.Contains(from, "zoho") {
		score += 0.3
	}

	hits := 0
	for _, kw := range detectBodyKeywords {
		if strings.Contains(body, kw) {
			hits++
		}
	}
	switch {
	case hits >= 2:
		score += 0.4
	case hits == 1:
		score += 0.2
	}

	if strings.Contains(body, "<table") {
		score += 0.15
	}
	if score > 1 {
		score = 1
	}

	ok := score >= 0.45
	reason := "rules_negative"
	if ok {
		reason = "rules_positive"
	}
	return DetectResult{IsNotification: ok, Score: score, Reason: reason}
}

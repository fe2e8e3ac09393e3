package pipeline

import (
	"regexp"
	"strings"

	"fs1diag/internal"
	"fs1diag/internal/util"
)

var (
	reCodeToken = regexp.MustCompile(`(?i)\b[a-z]\d{4}\b`)

	// A DTC family letter followed by the wrong number of digits or by a
	// letter O typed for a zero.
	reNearCode = regexp.MustCompile(`(?i)\b[pbcu][0-9o]{3,6}\b`)

	// A lone FS1 or ECU is only a marker when used as a label ("FS1:", "ECU -");
	// the FS1 ECU pair is a marker anywhere.
	reMarker = regexp.MustCompile(`(?i)\b(?:(fs1[\s/&+-]+ecu\b|ecu[\s/&+-]+fs1\b|(?:fs1|ecu)\s*(?::|-\s))|(resolution|resolved|fixed\s+by)\b|(additional\s+notes?|notes?|nb)\s*:)\s*[:\-]?`)
)

type segmentKind int

const (
	segmentOriginal segmentKind = iota
	segmentFollowUp
	segmentResolution
	segmentAdditional
)

func (k segmentKind) String() string {
	switch k {
	case segmentFollowUp:
		return "fs1"
	case segmentResolution:
		return "resolution"
	case segmentAdditional:
		return "additional_notes"
	default:
		return "original"
	}
}

type segment struct {
	kind   segmentKind
	marked bool
	text   string
}

// Extraction is the structured view of one free-text problem description.
// Codes keep the spelling they had in the text; the Normalizer upper-cases.
type Extraction struct {
	OriginalProblems string
	OriginalDTCs     []string
	FS1ECUProblems   string
	FS1DTCs          []string
	Resolution       string
	AdditionalNotes  string
	Related          bool
	// Flags carry Reason and Detail only; the caller attaches line and key.
	Flags []internal.ReviewFlag
}

// LowConfidence reports whether the text was parked in AdditionalNotes
// because no rule could classify it.
func (e Extraction) LowConfidence() bool {
	for _, f := range e.Flags {
		if f.Reason == internal.ReviewLowConfidence {
			return true
		}
	}
	return false
}

// Extract splits a markup-free text blob into problems, codes and resolution.
// It never fails: unclassifiable text lands in AdditionalNotes with a
// low-confidence flag.
func Extract(text string) Extraction {
	text = util.NormalizeSpaces(text)
	if text == "" {
		return Extraction{OriginalDTCs: []string{}, FS1DTCs: []string{}}
	}

	out := Extraction{OriginalDTCs: []string{}, FS1DTCs: []string{}}
	segments := splitSegments(text)

	texts := map[segmentKind][]string{}
	seen := map[segmentKind]int{}
	for _, seg := range segments {
		codes := reCodeToken.FindAllString(seg.text, -1)
		if seg.kind == segmentFollowUp {
			out.FS1DTCs = appendUnique(out.FS1DTCs, codes...)
		} else {
			out.OriginalDTCs = appendUnique(out.OriginalDTCs, codes...)
		}

		cleaned := util.TidyText(reCodeToken.ReplaceAllString(seg.text, " "))
		if seg.marked {
			seen[seg.kind]++
			if seen[seg.kind] == 2 {
				out.Flags = append(out.Flags, internal.ReviewFlag{Reason: internal.ReviewRepeatedMarker, Detail: seg.kind.String()})
			}
			if cleaned == "" && len(codes) == 0 {
				out.Flags = append(out.Flags, internal.ReviewFlag{Reason: internal.ReviewEmptySegment, Detail: seg.kind.String()})
			}
		}
		if cleaned != "" {
			texts[seg.kind] = append(texts[seg.kind], cleaned)
		}
	}

	out.OriginalProblems = strings.Join(texts[segmentOriginal], " ")
	out.FS1ECUProblems = strings.Join(texts[segmentFollowUp], " ")
	out.Resolution = strings.Join(texts[segmentResolution], " ")
	out.AdditionalNotes = strings.Join(texts[segmentAdditional], " ")

	if near := nearMissCodes(text); len(near) > 0 {
		out.Flags = append(out.Flags, internal.ReviewFlag{Reason: internal.ReviewMalformedCode, Detail: strings.Join(near, ",")})
	}

	classified := out.OriginalProblems != "" || out.FS1ECUProblems != "" || out.Resolution != "" ||
		out.AdditionalNotes != "" || len(out.OriginalDTCs) > 0 || len(out.FS1DTCs) > 0
	if !classified {
		degraded := Extraction{
			OriginalDTCs:    []string{},
			FS1DTCs:         []string{},
			AdditionalNotes: text,
			Flags:           append(out.Flags, internal.ReviewFlag{Reason: internal.ReviewLowConfidence, Detail: "no classifiable content"}),
		}
		return degraded
	}

	out.Related = Related(out.OriginalDTCs, out.FS1DTCs)
	return out
}

// Related is true when both lists are non-empty and share a code, compared
// case-insensitively.
func Related(original, fs1 []string) bool {
	if len(original) == 0 || len(fs1) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(original))
	for _, c := range original {
		set[strings.ToUpper(c)] = struct{}{}
	}
	for _, c := range fs1 {
		if _, ok := set[strings.ToUpper(c)]; ok {
			return true
		}
	}
	return false
}

// SplitCodeList tokenizes a pre-split code column such as "P0301, p0302;B1234".
func SplitCodeList(value string) []string {
	fields := strings.FieldsFunc(value, func(r rune) bool {
		return r == ',' || r == ';' || r == '/' || r == '|' || r == ' ' || r == '\t' || r == '\n'
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func splitSegments(text string) []segment {
	locs := reMarker.FindAllStringSubmatchIndex(text, -1)
	segments := make([]segment, 0, len(locs)+1)

	pos := 0
	current := segment{kind: segmentOriginal}
	for _, loc := range locs {
		kind := markerKind(loc)
		// Equipment named inside a resolution is part of the fix.
		if current.kind == segmentResolution && kind == segmentFollowUp {
			continue
		}
		current.text = text[pos:loc[0]]
		segments = append(segments, current)

		current = segment{kind: kind, marked: true}
		pos = loc[1]
	}
	current.text = text[pos:]
	return append(segments, current)
}

func markerKind(loc []int) segmentKind {
	switch {
	case loc[2] >= 0:
		return segmentFollowUp
	case loc[4] >= 0:
		return segmentResolution
	default:
		return segmentAdditional
	}
}

func nearMissCodes(text string) []string {
	var out []string
	for _, tok := range reNearCode.FindAllString(text, -1) {
		if reCodeToken.MatchString(tok) || !strings.ContainsAny(tok, "0123456789") {
			continue
		}
		out = appendUnique(out, tok)
	}
	return out
}

func appendUnique(list []string, values ...string) []string {
	for _, v := range values {
		dup := false
		for _, existing := range list {
			if strings.EqualFold(existing, v) {
				dup = true
				break
			}
		}
		if !dup {
			list = append(list, v)
		}
	}
	return list
}

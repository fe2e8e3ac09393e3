package util

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	reHeaderSep    = regexp.MustCompile(`[\s\-./#]+`)
	reHeaderStrip  = regexp.MustCompile(`[^a-z0-9_]`)
	reUnderscores  = regexp.MustCompile(`_+`)
	titleCaser     = cases.Title(language.English)
	reHasDigit     = regexp.MustCompile(`\d`)
	reOrphanSep    = regexp.MustCompile(`(?:\s*[,;&/]\s*)+([.;:!?]|$)`)
	reSpaceBefore  = regexp.MustCompile(`\s+([,.;:!?])`)
	reRepeatedSep  = regexp.MustCompile(`([,;])(?:\s*[,;])+`)
	reLeadingNoise = regexp.MustCompile(`^[\s,;:.\-&/]+`)
)

func StringPtr(v string) *string { return &v }

func Deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

// TrimPtr trims a value; nil stays nil.
func TrimPtr(v *string) *string {
	if v == nil {
		return nil
	}
	return StringPtr(strings.TrimSpace(*v))
}

func IsBlank(v *string) bool {
	return v == nil || strings.TrimSpace(*v) == ""
}

// NormalizeSpaces collapses any run of Unicode white space, NBSP included.
func NormalizeSpaces(input string) string {
	return strings.Join(strings.Fields(input), " ")
}

// CanonicalHeader maps "Created Time", "created-time" and "CREATED_TIME" to
// "created_time".
func CanonicalHeader(input string) string {
	s := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(input, "\ufeff")))
	s = reHeaderSep.ReplaceAllString(s, "_")
	s = reHeaderStrip.ReplaceAllString(s, "")
	s = reUnderscores.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}

// NormalizeCaseNumber keeps letters and digits only, upper-cased.
func NormalizeCaseNumber(input string) string {
	out := strings.Builder{}
	for _, r := range strings.ToUpper(input) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			out.WriteRune(r)
		}
	}
	return out.String()
}

// TitleCase trims and title-cases a vehicle descriptor. Tokens carrying digits
// ("f150", "3500hd") are upper-cased instead.
func TitleCase(input string) string {
	fields := strings.Fields(input)
	for i, f := range fields {
		if reHasDigit.MatchString(f) {
			fields[i] = strings.ToUpper(f)
			continue
		}
		fields[i] = titleCaser.String(f)
	}
	return strings.Join(fields, " ")
}

// TidyText cleans separators left dangling after tokens were cut out of a
// sentence: "misfire , ." becomes "misfire.".
func TidyText(input string) string {
	s := NormalizeSpaces(input)
	s = reRepeatedSep.ReplaceAllString(s, "$1")
	s = reOrphanSep.ReplaceAllString(s, "$1")
	s = reSpaceBefore.ReplaceAllString(s, "$1")
	s = reLeadingNoise.ReplaceAllString(s, "")
	s = NormalizeSpaces(s)
	if strings.Trim(s, ".,;:!?&/- ") == "" {
		return ""
	}
	return s
}

package pipeline

import (
	"strings"

	"fs1diag/internal"
)

// Dedupe collapses cases sharing a key. The last case wins unless it has no
// resolution and an earlier one does; among resolved cases the last wins.
// Output keeps the order in which each key first appeared.
func Dedupe(cases []internal.DiagnosticCase) ([]internal.DiagnosticCase, int) {
	index := make(map[internal.CaseKey]int, len(cases))
	out := make([]internal.DiagnosticCase, 0, len(cases))
	collapsed := 0

	for _, c := range cases {
		i, ok := index[c.Key()]
		if !ok {
			index[c.Key()] = len(out)
			out = append(out, c)
			continue
		}
		collapsed++
		if hasResolution(out[i]) && !hasResolution(c) {
			continue
		}
		out[i] = c
	}
	return out, collapsed
}

func hasResolution(c internal.DiagnosticCase) bool {
	return strings.TrimSpace(c.Resolution) != ""
}

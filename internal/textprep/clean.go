// Package textprep cleans raw agenda and minutes text before extraction.
//
// PDF-to-text conversion leaves page markers, repeated running headers and
// footers, and irregular whitespace behind. None of that carries vote
// information, and all of it confuses pattern matching. Cleaning never
// fails: the worst case is returning the input unchanged.
package textprep

import (
	"regexp"
	"strings"
)

// pageMarkerRE matches standalone page markers left by PDF conversion,
// e.g. "Page 3", "Page 3 of 12", "- 3 -", or a bare page number line.
var pageMarkerRE = regexp.MustCompile(`(?i)^\s*(?:page\s+\d+(?:\s+of\s+\d+)?|-+\s*\d+\s*-+|\d{1,3})\s*$`)

// headerRepeatThreshold is the number of identical occurrences at which a
// short line is treated as a running header/footer rather than content.
const headerRepeatThreshold = 3

// maxHeaderLineLength bounds what can count as a running header. Real
// agenda content lines (motions, titles) run longer than headers do.
const maxHeaderLineLength = 90

// Clean strips PDF artifacts from raw document text: form feeds, page
// markers, duplicated running headers/footers, and redundant whitespace.
func Clean(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}

	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\f", "\n")

	lines := strings.Split(text, "\n")

	// First pass: count short-line occurrences so repeated running
	// headers/footers can be detected across page boundaries.
	counts := make(map[string]int)
	for _, line := range lines {
		key := strings.TrimSpace(line)
		if key == "" || len(key) > maxHeaderLineLength {
			continue
		}
		counts[key]++
	}

	seen := make(map[string]bool)
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)

		if pageMarkerRE.MatchString(trimmed) {
			continue
		}

		// Running header/footer: keep the first occurrence so a header
		// that doubles as a section heading survives, drop the rest.
		if counts[trimmed] >= headerRepeatThreshold {
			if seen[trimmed] {
				continue
			}
			seen[trimmed] = true
		}

		out = append(out, collapseSpaces(trimmed))
	}

	cleaned := strings.Join(out, "\n")
	cleaned = collapseBlankLines(cleaned)
	return strings.TrimSpace(cleaned)
}

// collapseSpaces squeezes runs of spaces and tabs into single spaces.
func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

var blankRunRE = regexp.MustCompile(`\n{3,}`)

// collapseBlankLines reduces runs of three or more newlines to a single
// paragraph break.
func collapseBlankLines(s string) string {
	return blankRunRE.ReplaceAllString(s, "\n\n")
}

package extract

import (
	"fmt"
	"regexp"
	"strings"
)

// numericItemRE is the shape every final agenda item number must have.
// Anything else (LLM artifacts like "Amendment", compound housing-authority
// numbers) is filtered out.
var numericItemRE = regexp.MustCompile(`^\d+$`)

// MergeVotes unions the regex result set R with the LLM fallback set: a
// fallback vote is appended only when its item number is not already
// present in R. Votes in R are never dropped or overwritten, which keeps
// the consent-calendar precedence invariant intact.
func MergeVotes(regexVotes, fallbackVotes []VoteRecord) []VoteRecord {
	merged := make([]VoteRecord, 0, len(regexVotes)+len(fallbackVotes))
	merged = append(merged, regexVotes...)

	present := make(map[string]bool, len(regexVotes))
	for _, v := range regexVotes {
		present[v.AgendaItemNumber] = true
	}
	for _, v := range fallbackVotes {
		if present[v.AgendaItemNumber] {
			continue
		}
		present[v.AgendaItemNumber] = true
		merged = append(merged, v)
	}
	return merged
}

// ExclusionRules is the configuration-driven filter applied to the merged
// set, independent of origin. A different city/year deployment supplies
// its own phrase and numbering-scheme lists.
type ExclusionRules struct {
	// ForeignNumbering are compiled numbering schemes belonging to other
	// governing bodies (e.g. a co-located housing authority's
	// `^\d{4}-\d+$` items).
	ForeignNumbering []*regexp.Regexp
	// Phrases are case-insensitive title fragments that mark an entry as
	// non-substantive.
	Phrases []string
	// TitlePrefixes drop entries whose title begins with the prefix
	// (case-insensitive), e.g. "minutes".
	TitlePrefixes []string
}

// CompileExclusionRules builds rules from raw config strings. Invalid
// numbering patterns are skipped and reported in the returned notes rather
// than failing the meeting.
func CompileExclusionRules(numbering, phrases, prefixes []string) (ExclusionRules, []string) {
	rules := ExclusionRules{Phrases: phrases, TitlePrefixes: prefixes}
	var notes []string
	for _, pat := range numbering {
		re, err := regexp.Compile(pat)
		if err != nil {
			notes = append(notes, fmt.Sprintf("invalid numbering exclusion %q: %v", pat, err))
			continue
		}
		rules.ForeignNumbering = append(rules.ForeignNumbering, re)
	}
	return rules, notes
}

// DefaultExclusionRules returns the stock filter set: non-numeric items,
// housing-authority numbering, and the standard non-substantive phrases.
func DefaultExclusionRules() ExclusionRules {
	rules, _ := CompileExclusionRules(
		[]string{`^\d{4}-\d+$`},
		[]string{"excused absence", "minutes approval", "approve minutes", "public comment", "written communication"},
		[]string{"minutes"},
	)
	return rules
}

// Excluded reports whether a record should be dropped, and why.
func (r ExclusionRules) Excluded(v VoteRecord) (bool, string) {
	item := v.AgendaItemNumber
	for _, re := range r.ForeignNumbering {
		if re.MatchString(item) {
			return true, fmt.Sprintf("item %s matches other-body numbering %s", item, re.String())
		}
	}
	if !numericItemRE.MatchString(item) {
		return true, fmt.Sprintf("item number %q is not numeric", item)
	}

	title := strings.ToLower(v.AgendaItemTitle)
	for _, phrase := range r.Phrases {
		if strings.Contains(title, strings.ToLower(phrase)) {
			return true, fmt.Sprintf("item %s title contains excluded phrase %q", item, phrase)
		}
	}
	for _, prefix := range r.TitlePrefixes {
		if strings.HasPrefix(title, strings.ToLower(prefix)) {
			return true, fmt.Sprintf("item %s title begins with excluded prefix %q", item, prefix)
		}
	}
	return false, ""
}

// FilterVotes applies the exclusion rules to the merged set and returns the
// survivors plus one note per dropped record.
func FilterVotes(votes []VoteRecord, rules ExclusionRules) ([]VoteRecord, []string) {
	kept := make([]VoteRecord, 0, len(votes))
	var notes []string
	for _, v := range votes {
		if excluded, reason := rules.Excluded(v); excluded {
			notes = append(notes, "filtered: "+reason)
			continue
		}
		kept = append(kept, v)
	}
	return kept, notes
}

// Deduplicate is the final pass: iterate in stable order and keep the first
// record seen per agenda item number. Because the merger puts the regex set
// first, consent-calendar votes win any residual conflict with
// fallback-origin duplicates.
func Deduplicate(votes []VoteRecord) ([]VoteRecord, []string) {
	seen := make(map[string]bool, len(votes))
	out := make([]VoteRecord, 0, len(votes))
	var notes []string
	for _, v := range votes {
		if seen[v.AgendaItemNumber] {
			notes = append(notes, fmt.Sprintf("duplicate record for item %s discarded (%s)", v.AgendaItemNumber, v.SourceSection))
			continue
		}
		seen[v.AgendaItemNumber] = true
		out = append(out, v)
	}
	return out, notes
}

package extract

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// consentPattern is one known phrasing of a bulk consent-calendar approval
// motion. Patterns are tried in order and the first one that matches wins;
// new meeting-format variants are handled by appending patterns, never by
// mutating existing ones.
type consentPattern struct {
	name string
	re   *regexp.Regexp
}

// Capture groups: 1 = range start, 2 = range end. Each pattern anchors on
// the motion language so the match window (for exceptions and the tally)
// stays local to the motion.
var consentPatterns = []consentPattern{
	{
		name: "moved_to_approve_range",
		re: regexp.MustCompile(`(?is)moved[^.\n]{0,120}?to\s+approve\s[^.\n]{0,160}?consent\s+calendar\s+item\s+nos?\.?\s*(\d+)\s*(?:through|thru|to|[-–])\s*(\d+)`),
	},
	{
		name: "range_then_moved_to_approve",
		re: regexp.MustCompile(`(?is)consent\s+calendar\s+items?\s*[:.]?\s*(?:nos?\.?\s*)?(\d+)\s*(?:through|thru|to|[-–])\s*(\d+)[^.\n]{0,200}?moved[^.\n]{0,80}?to\s+approve`),
	},
	{
		name: "recommended_action_range",
		re: regexp.MustCompile(`(?is)approve\s+the\s+recommended\s+actions?\s+(?:for|on)\s+consent\s+calendar\s+item\s+nos?\.?\s*(\d+)\s*(?:through|thru|to|[-–])\s*(\d+)`),
	},
	{
		name: "motion_carried_consent_range",
		re: regexp.MustCompile(`(?is)consent\s+calendar\s+item\s+nos?\.?\s*(\d+)\s*(?:through|thru|to|[-–])\s*(\d+)[^.\n]{0,200}?(?:motion\s+carried|approved)`),
	},
}

// exceptionREs match the clause that pulls items out of a bulk approval.
// The captured group is a free-form integer list ("10", "10, 12 and 14").
var exceptionREs = []*regexp.Regexp{
	regexp.MustCompile(`(?is)with\s+the\s+exception\s+of\s+item\s+nos?\.?\s*([\d,\s]+(?:and\s+[\d,\s]+)*)`),
	regexp.MustCompile(`(?is)(?:removed|pulled)[^.\n]{0,80}?item\s+nos?\.?\s*([\d,\s]+(?:and\s+[\d,\s]+)*)`),
	regexp.MustCompile(`(?is)except(?:ing)?\s+item\s+nos?\.?\s*([\d,\s]+(?:and\s+[\d,\s]+)*)`),
}

// consentTallyRE matches the shared vote result adjoining the motion,
// e.g. "Vote: 7-0", "carried 6-1-0", "motion carried by the following
// vote: 6-0-1-0" (ayes-noes[-abstain[-absent]]). The counts are anchored
// on vote-result context and capped at two digits so hyphenated reference
// numbers near the motion ("Resolution No. 2024-015") are never misread
// as a tally.
var consentTallyRE = regexp.MustCompile(`(?i)(?:vote|carried|motion|approved)[^.\n]{0,80}?\b(\d{1,2})\s*[-–]\s*(\d{1,2})\b(?:\s*[-–]\s*(\d{1,2})\b)?(?:\s*[-–]\s*(\d{1,2})\b)?`)

// moverRE and seconderRE pull motion attribution when the minutes record it.
var (
	moverRE    = regexp.MustCompile(`(?i)moved\s+by\s+([A-Z][A-Za-z'’.\- ]+?)(?:[,;]|\s+seconded|\s+to\b)`)
	seconderRE = regexp.MustCompile(`(?i)seconded\s+by\s+([A-Z][A-Za-z'’.\- ]+?)(?:[,;.]|\s+to\b|\n)`)
)

// consentWindow is how far past the motion match the extractor looks for
// the exception clause and the vote tally. Minutes place both within the
// same motion paragraph.
const consentWindow = 600

// ConsentPatternNames returns the ordered pattern names. The learning
// memory uses them to track which phrasings hit and which missed.
func ConsentPatternNames() []string {
	names := make([]string, len(consentPatterns))
	for i, p := range consentPatterns {
		names[i] = p.name
	}
	return names
}

// ConsentMatch is one parsed bulk-approval motion before expansion.
type ConsentMatch struct {
	Pattern    string
	RangeStart int
	RangeEnd   int
	Excluded   []int
	Tally      Tally
	TallyFound bool
	Outcome    Outcome
	Mover      string
	Seconder   string
	MotionText string
}

// ExtractConsentCalendar detects bulk consent-calendar approvals in the
// cleaned minutes and expands each into one VoteRecord per approved item.
// A meeting may contain multiple consent calendars (joint sessions); every
// occurrence of the first matching pattern is parsed independently, and any
// overlap across calendars is left for the deduplicator. No match is
// non-fatal: the extractor returns an empty set and the engine falls
// through to the other strategies.
//
// Returns the records, the name of the matched pattern (empty when none
// matched), and per-calendar notes.
func ExtractConsentCalendar(minutes string, names *NameNormalizer) ([]VoteRecord, string, []string) {
	var notes []string
	for _, pat := range consentPatterns {
		locs := pat.re.FindAllStringSubmatchIndex(minutes, -1)
		if len(locs) == 0 {
			continue
		}

		var records []VoteRecord
		for _, loc := range locs {
			match, err := parseConsentMatch(minutes, pat, loc)
			if err != nil {
				notes = append(notes, fmt.Sprintf("consent calendar: %v", err))
				continue
			}
			records = append(records, expandConsent(match, names)...)
			if !match.TallyFound {
				notes = append(notes, fmt.Sprintf("consent calendar items %d-%d: no vote tally found near motion", match.RangeStart, match.RangeEnd))
			}
		}
		if len(records) > 0 {
			return records, pat.name, notes
		}
		// Pattern matched but nothing usable came out (e.g. inverted
		// ranges); keep trying later patterns.
	}
	return nil, "", notes
}

// parseConsentMatch pulls the range, exceptions, tally, and attribution out
// of one motion occurrence.
func parseConsentMatch(minutes string, pat consentPattern, loc []int) (ConsentMatch, error) {
	start, _ := strconv.Atoi(minutes[loc[2]:loc[3]])
	end, _ := strconv.Atoi(minutes[loc[4]:loc[5]])
	if end < start {
		return ConsentMatch{}, fmt.Errorf("inverted item range %d-%d", start, end)
	}

	windowEnd := loc[1] + consentWindow
	if windowEnd > len(minutes) {
		windowEnd = len(minutes)
	}
	// The window opens at the motion start so exception clauses phrased
	// before the range ("removed Item No. 10 ... approved 8 through 12")
	// are still seen.
	window := minutes[loc[0]:windowEnd]

	m := ConsentMatch{
		Pattern:    pat.name,
		RangeStart: start,
		RangeEnd:   end,
		Excluded:   parseExceptions(window),
		MotionText: strings.TrimSpace(minutes[loc[0]:loc[1]]),
	}

	if mm := moverRE.FindStringSubmatch(window); mm != nil {
		m.Mover = strings.TrimSpace(mm[1])
	}
	if sm := seconderRE.FindStringSubmatch(window); sm != nil {
		m.Seconder = strings.TrimSpace(sm[1])
	}

	// The tally search starts after the motion match so the item range
	// itself ("8 through 12" written as "8-12") is never misread as a
	// vote result.
	tallyZone := minutes[loc[1]:windowEnd]
	if tm := consentTallyRE.FindStringSubmatch(tallyZone); tm != nil {
		m.Tally.Ayes, _ = strconv.Atoi(tm[1])
		m.Tally.Noes, _ = strconv.Atoi(tm[2])
		if tm[3] != "" {
			m.Tally.Abstain, _ = strconv.Atoi(tm[3])
		}
		if tm[4] != "" {
			m.Tally.Absent, _ = strconv.Atoi(tm[4])
		}
		m.TallyFound = true
	}

	if m.Tally.Ayes > m.Tally.Noes {
		m.Outcome = OutcomePass
	} else if m.Tally.Ayes == m.Tally.Noes && m.TallyFound {
		m.Outcome = OutcomeTie
	} else if m.TallyFound {
		m.Outcome = OutcomeFail
	} else {
		// Consent motions recorded without a tally still carried; the
		// missing count is annotated on each record.
		m.Outcome = OutcomePass
	}
	return m, nil
}

// parseExceptions extracts the excluded item set from the motion window.
func parseExceptions(window string) []int {
	set := make(map[int]bool)
	for _, re := range exceptionREs {
		for _, m := range re.FindAllStringSubmatch(window, -1) {
			for _, n := range parseIntList(m[1]) {
				set[n] = true
			}
		}
	}
	out := make([]int, 0, len(set))
	for n := range set {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

var intRE = regexp.MustCompile(`\d+`)

// parseIntList parses "10, 12 and 14" into []int{10, 12, 14}.
func parseIntList(s string) []int {
	var out []int
	for _, m := range intRE.FindAllString(s, -1) {
		n, err := strconv.Atoi(m)
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	return out
}

// expandConsent turns a parsed motion into one VoteRecord per approved
// item: {start..end} minus the exception set, all sharing the motion's
// tally and outcome. Member votes stay empty; a bulk approval records only
// the shared tally, not individual positions.
func expandConsent(m ConsentMatch, names *NameNormalizer) []VoteRecord {
	excluded := make(map[int]bool, len(m.Excluded))
	for _, n := range m.Excluded {
		excluded[n] = true
	}

	mover := m.Mover
	seconder := m.Seconder
	if names != nil {
		if mover != "" {
			mover, _ = names.Normalize(mover)
		}
		if seconder != "" {
			seconder, _ = names.Normalize(seconder)
		}
	}

	var records []VoteRecord
	for n := m.RangeStart; n <= m.RangeEnd; n++ {
		if excluded[n] {
			continue
		}
		rec := VoteRecord{
			AgendaItemNumber: strconv.Itoa(n),
			AgendaItemTitle:  GenericTitle(strconv.Itoa(n)),
			Outcome:          m.Outcome,
			Tally:            m.Tally,
			MotionText:       m.MotionText,
			Mover:            mover,
			Seconder:         seconder,
			SourceSection:    SectionConsentCalendar,
		}
		rec.AddNote(fmt.Sprintf("approved on consent calendar (items %d-%d, pattern %s)", m.RangeStart, m.RangeEnd, m.Pattern))
		if !m.TallyFound {
			rec.AddNote("vote tally not recorded in motion text")
		}
		if m.Tally.Recusal > 0 {
			// Minutes do not attribute consent recusals to specific
			// members; the shared count is all we can carry.
			rec.AddNote(fmt.Sprintf("%d recusal(s) recorded on the bulk motion, not attributed to members", m.Tally.Recusal))
		}
		records = append(records, rec)
	}
	return records
}

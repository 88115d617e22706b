package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// statusLineRE matches the roll-call status line that closes a pulled-item
// vote block, e.g. "Status: 6-0-1-0 Pass" (ayes-noes-abstain-absent) or the
// shorter "Status: 6-1 Pass".
var statusLineRE = regexp.MustCompile(`(?i)status:\s*(\d+)\s*-\s*(\d+)(?:\s*-\s*(\d+))?(?:\s*-\s*(\d+))?(?:\s*-\s*(\d+))?\s*([A-Za-z]+)`)

// voteLabelRE locates the labels that open named vote lists inside a
// block, e.g. "YES: 6 – Penaloza, Phan" or "ABSTAIN: 1 – Lopez". One list's
// names run from its label to the next label (or STATUS); slicing between
// label positions avoids lookahead, which the regexp package does not
// support.
var voteLabelRE = regexp.MustCompile(`(?i)(YES|AYES?|NOES?|NAYS?|NO|ABSTAIN(?:ED|S)?|ABSENT|RECUSED?|RECUSALS?|STATUS):`)

// listPrefixRE strips the optional count and dash that precede a vote
// list's names ("6 – Penaloza" -> "Penaloza").
var listPrefixRE = regexp.MustCompile(`^\s*(?:\d+\s*)?(?:[-–—]\s*)?`)

// itemRefREs locate the agenda item number a roll-call block belongs to,
// searched backwards from the block. Ordered from most to least explicit.
var itemRefREs = []*regexp.Regexp{
	regexp.MustCompile(`(?i)item\s+(?:no\.?\s*)?(\d+)`),
	regexp.MustCompile(`(?m)^\s*(\d+)\.\s+\S`),
}

// pulledLookback is how far before a status line the extractor searches for
// the item heading the block belongs to.
const pulledLookback = 1200

// ExtractPulledItems detects explicit roll-call vote blocks for items
// discussed individually: named YES/NO/ABSTAIN lists paired with a status
// line. Member names are normalized against the roster; an unmatched name
// is a warning, never a drop.
func ExtractPulledItems(minutes string, names *NameNormalizer) ([]VoteRecord, []string) {
	var records []VoteRecord
	var notes []string

	statusLocs := statusLineRE.FindAllStringSubmatchIndex(minutes, -1)
	prevEnd := 0
	for _, loc := range statusLocs {
		blockStart := loc[0] - pulledLookback
		if blockStart < prevEnd {
			blockStart = prevEnd
		}
		if blockStart < 0 {
			blockStart = 0
		}
		block := minutes[blockStart:loc[0]]
		prevEnd = loc[1]

		rec, err := parseRollCall(minutes[loc[0]:loc[1]], block, names)
		if err != nil {
			notes = append(notes, fmt.Sprintf("roll-call block skipped: %v", err))
			continue
		}
		records = append(records, rec)
	}
	return records, notes
}

// parseRollCall builds one VoteRecord from a status line and the block of
// text preceding it.
func parseRollCall(statusLine, block string, names *NameNormalizer) (VoteRecord, error) {
	sm := statusLineRE.FindStringSubmatch(statusLine)
	if sm == nil {
		return VoteRecord{}, fmt.Errorf("unparseable status line %q", statusLine)
	}

	itemNumber := findItemNumber(block)
	if itemNumber == "" {
		return VoteRecord{}, fmt.Errorf("no agenda item number near status line %q", strings.TrimSpace(statusLine))
	}

	var tally Tally
	tally.Ayes, _ = strconv.Atoi(sm[1])
	tally.Noes, _ = strconv.Atoi(sm[2])
	if sm[3] != "" {
		tally.Abstain, _ = strconv.Atoi(sm[3])
	}
	if sm[4] != "" {
		tally.Absent, _ = strconv.Atoi(sm[4])
	}
	if sm[5] != "" {
		tally.Recusal, _ = strconv.Atoi(sm[5])
	}

	rec := VoteRecord{
		AgendaItemNumber: itemNumber,
		AgendaItemTitle:  GenericTitle(itemNumber),
		Outcome:          outcomeFromStatus(sm[6], tally),
		Tally:            tally,
		MemberVotes:      map[string]BallotChoice{},
		SourceSection:    SectionPulled,
	}
	rec.AddNote("roll-call vote recorded for individually discussed item")

	text := block + " " + statusLine
	labels := voteLabelRE.FindAllStringSubmatchIndex(text, -1)
	for i, loc := range labels {
		label := text[loc[2]:loc[3]]
		if strings.EqualFold(label, "status") {
			continue
		}
		end := len(text)
		if i+1 < len(labels) {
			end = labels[i+1][0]
		}
		segment := text[loc[1]:end]
		// A list never spans a paragraph break.
		if idx := strings.Index(segment, "\n\n"); idx != -1 {
			segment = segment[:idx]
		}
		segment = listPrefixRE.ReplaceAllString(segment, "")

		choice := choiceFromLabel(label)
		for _, raw := range splitNameList(segment) {
			canonical, known := names.Normalize(raw)
			if canonical == "" {
				continue
			}
			if !known {
				rec.AddNote(fmt.Sprintf("member %q not on roster", canonical))
			}
			rec.MemberVotes[canonical] = choice
		}
	}

	return rec, nil
}

// findItemNumber searches a block backwards for the nearest item reference.
func findItemNumber(block string) string {
	for _, re := range itemRefREs {
		ms := re.FindAllStringSubmatch(block, -1)
		if len(ms) > 0 {
			return ms[len(ms)-1][1]
		}
	}
	return ""
}

// outcomeFromStatus maps the status word to an outcome, falling back to the
// ayes/noes comparison when the word is unrecognized.
func outcomeFromStatus(word string, tally Tally) Outcome {
	switch strings.ToLower(word) {
	case "pass", "passed", "approved", "adopted", "carried":
		return OutcomePass
	case "fail", "failed", "denied", "rejected":
		return OutcomeFail
	case "tie", "tied":
		return OutcomeTie
	case "continued", "postponed", "tabled":
		return OutcomeContinued
	}
	switch {
	case tally.Ayes > tally.Noes:
		return OutcomePass
	case tally.Ayes == tally.Noes:
		return OutcomeTie
	default:
		return OutcomeFail
	}
}

// choiceFromLabel maps a vote-list label to a ballot choice.
func choiceFromLabel(label string) BallotChoice {
	switch {
	case strings.HasPrefix(strings.ToUpper(label), "YES"), strings.HasPrefix(strings.ToUpper(label), "AYE"):
		return ChoiceAye
	case strings.HasPrefix(strings.ToUpper(label), "NO"), strings.HasPrefix(strings.ToUpper(label), "NAY"):
		return ChoiceNay
	case strings.HasPrefix(strings.ToUpper(label), "ABSTAIN"):
		return ChoiceAbstain
	case strings.HasPrefix(strings.ToUpper(label), "ABSENT"):
		return ChoiceAbsent
	default:
		return ChoiceRecusal
	}
}

// splitNameList splits "Penaloza, Phan and Bacerra" into individual names.
func splitNameList(s string) []string {
	s = strings.NewReplacer(" and ", ",", " AND ", ",", "&", ",").Replace(s)
	parts := strings.Split(s, ",")
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(strings.Trim(p, "–—-. "))
		if p == "" || intRE.MatchString(p) && len(intRE.FindString(p)) == len(p) {
			continue
		}
		out = append(out, p)
	}
	return out
}

package extract

import (
	"encoding/json"
	"fmt"
	"strings"
)

// flexString decodes a JSON string or number into a string. Models are
// inconsistent about quoting item numbers.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexString(n.String())
		return nil
	}
	return fmt.Errorf("item_number is neither string nor number")
}

// voteCandidate is the loose schema one LLM response entry is decoded into.
// Fields arrive in whatever shape the model produced; each candidate is
// validated independently so one malformed entry never discards the rest of
// the response.
type voteCandidate struct {
	ItemNumber  flexString        `json:"item_number"`
	Title       string            `json:"title"`
	Outcome     string            `json:"outcome"`
	Ayes        int               `json:"ayes"`
	Noes        int               `json:"noes"`
	Abstain     int               `json:"abstain"`
	Absent      int               `json:"absent"`
	Recusal     int               `json:"recusal"`
	MemberVotes map[string]string `json:"member_votes"`
	MotionText  string            `json:"motion_text"`
}

// voteResponse is the envelope the prompt asks for.
type voteResponse struct {
	Votes []json.RawMessage `json:"votes"`
}

// ParseVoteResponse parses the model's JSON into vote records. It tolerates
// a bare array instead of the {"votes": ...} envelope, markdown code
// fences, and malformed individual entries (dropped with a note). An empty
// votes list parses to zero supplemental votes.
func ParseVoteResponse(content string) ([]VoteRecord, []string, error) {
	content = stripCodeFences(strings.TrimSpace(content))
	if content == "" {
		return nil, nil, nil
	}

	var raws []json.RawMessage
	if strings.HasPrefix(content, "[") {
		if err := json.Unmarshal([]byte(content), &raws); err != nil {
			return nil, nil, fmt.Errorf("invalid JSON array: %w", err)
		}
	} else {
		var envelope voteResponse
		if err := json.Unmarshal([]byte(content), &envelope); err != nil {
			return nil, nil, fmt.Errorf("invalid JSON: %w", err)
		}
		raws = envelope.Votes
	}

	var votes []VoteRecord
	var notes []string
	for i, raw := range raws {
		rec, err := decodeCandidate(raw)
		if err != nil {
			notes = append(notes, fmt.Sprintf("fallback entry %d skipped: %v", i+1, err))
			continue
		}
		votes = append(votes, rec)
	}
	return votes, notes, nil
}

// decodeCandidate validates one response entry and converts it to a
// VoteRecord.
func decodeCandidate(raw json.RawMessage) (VoteRecord, error) {
	var c voteCandidate
	if err := json.Unmarshal(raw, &c); err != nil {
		return VoteRecord{}, fmt.Errorf("malformed entry: %v", err)
	}

	item := strings.TrimSpace(string(c.ItemNumber))
	if item == "" {
		return VoteRecord{}, fmt.Errorf("missing item_number")
	}

	outcome, err := parseOutcome(c.Outcome, Tally{Ayes: c.Ayes, Noes: c.Noes})
	if err != nil {
		return VoteRecord{}, err
	}

	if c.Ayes < 0 || c.Noes < 0 || c.Abstain < 0 || c.Absent < 0 || c.Recusal < 0 {
		return VoteRecord{}, fmt.Errorf("negative tally count")
	}

	rec := VoteRecord{
		AgendaItemNumber: item,
		AgendaItemTitle:  strings.TrimSpace(c.Title),
		Outcome:          outcome,
		Tally: Tally{
			Ayes:    c.Ayes,
			Noes:    c.Noes,
			Abstain: c.Abstain,
			Absent:  c.Absent,
			Recusal: c.Recusal,
		},
		MotionText:    strings.TrimSpace(c.MotionText),
		SourceSection: sectionForCandidate(c),
	}
	if rec.AgendaItemTitle == "" {
		rec.AgendaItemTitle = GenericTitle(item)
	}

	if len(c.MemberVotes) > 0 {
		rec.MemberVotes = make(map[string]BallotChoice, len(c.MemberVotes))
		for name, choice := range c.MemberVotes {
			parsed, err := parseChoice(choice)
			if err != nil {
				return VoteRecord{}, fmt.Errorf("member %q: %v", name, err)
			}
			rec.MemberVotes[name] = parsed
		}
	}

	rec.AddNote("extracted by LLM fallback")
	return rec, nil
}

// sectionForCandidate defaults fallback votes to the "other" section unless
// the entry's motion text explicitly echoes a consent-calendar pattern.
func sectionForCandidate(c voteCandidate) SourceSection {
	text := strings.ToLower(c.MotionText + " " + c.Title)
	if strings.Contains(text, "consent calendar") {
		return SectionConsentCalendar
	}
	return SectionOther
}

// parseOutcome maps a free-form outcome word onto the enum, falling back to
// the tally comparison when the word is empty.
func parseOutcome(s string, tally Tally) (Outcome, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pass", "passed", "approved", "adopted", "carried":
		return OutcomePass, nil
	case "fail", "failed", "denied", "rejected":
		return OutcomeFail, nil
	case "tie", "tied":
		return OutcomeTie, nil
	case "continued", "postponed", "tabled":
		return OutcomeContinued, nil
	case "":
		if tally.Total() == 0 {
			return "", fmt.Errorf("missing outcome and tally")
		}
		if tally.Ayes > tally.Noes {
			return OutcomePass, nil
		}
		if tally.Ayes == tally.Noes {
			return OutcomeTie, nil
		}
		return OutcomeFail, nil
	default:
		return "", fmt.Errorf("unrecognized outcome %q", s)
	}
}

// parseChoice maps a free-form ballot word onto the enum.
func parseChoice(s string) (BallotChoice, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "aye", "yes", "yea":
		return ChoiceAye, nil
	case "nay", "no":
		return ChoiceNay, nil
	case "abstain", "abstained", "abstention":
		return ChoiceAbstain, nil
	case "absent":
		return ChoiceAbsent, nil
	case "recusal", "recused":
		return ChoiceRecusal, nil
	default:
		return "", fmt.Errorf("unrecognized ballot choice %q", s)
	}
}

// stripCodeFences removes a surrounding markdown code fence if the model
// wrapped its JSON in one.
func stripCodeFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

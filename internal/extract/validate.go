package extract

import "fmt"

// FallbackThreshold is the quality score below which the LLM fallback is
// invoked on top of the regex result. A score of zero (no votes at all)
// triggers the fallback regardless of threshold.
const FallbackThreshold = 0.7

// QualityReport is the validator's output. The score annotates confidence
// and gates the fallback; it never discards votes.
type QualityReport struct {
	Score float64
	Notes []string
}

// NeedsFallback reports whether the LLM fallback should run on this result.
func (q QualityReport) NeedsFallback() bool {
	return q.Score == 0 || q.Score < FallbackThreshold
}

// ScoreVotes computes a completeness/consistency score in [0,1] from:
// presence of a tally, numeric validity of item numbers, presence of an
// outcome, and (when member votes exist) agreement between the summed
// member votes and the declared tally.
func ScoreVotes(votes []VoteRecord) QualityReport {
	if len(votes) == 0 {
		return QualityReport{Score: 0, Notes: []string{"no votes extracted"}}
	}

	var total float64
	var notes []string
	for _, v := range votes {
		score, voteNotes := scoreVote(v)
		total += score
		notes = append(notes, voteNotes...)
	}
	return QualityReport{Score: total / float64(len(votes)), Notes: notes}
}

// scoreVote rates one record on four equally weighted checks.
func scoreVote(v VoteRecord) (float64, []string) {
	var score float64
	var notes []string

	if numericItemRE.MatchString(v.AgendaItemNumber) {
		score += 0.25
	} else {
		notes = append(notes, fmt.Sprintf("non-numeric item number %q", v.AgendaItemNumber))
	}

	if v.Outcome != "" {
		score += 0.25
	} else {
		notes = append(notes, fmt.Sprintf("item %s: missing outcome", v.AgendaItemNumber))
	}

	if v.Tally.Total() > 0 {
		score += 0.25
	} else {
		notes = append(notes, fmt.Sprintf("item %s: empty tally", v.AgendaItemNumber))
	}

	// Member-vote consistency only applies when the minutes recorded
	// individual positions; consent items legitimately carry none.
	if len(v.MemberVotes) == 0 {
		score += 0.25
	} else if memberVotesMatchTally(v) {
		score += 0.25
	} else {
		notes = append(notes, fmt.Sprintf("item %s: member votes disagree with declared tally", v.AgendaItemNumber))
	}

	return score, notes
}

// memberVotesMatchTally checks that per-choice member counts agree with the
// declared tally. Only choices with at least one named member are compared;
// minutes often name abstainers but not the full aye list.
func memberVotesMatchTally(v VoteRecord) bool {
	counts := map[BallotChoice]int{}
	for _, choice := range v.MemberVotes {
		counts[choice]++
	}
	declared := map[BallotChoice]int{
		ChoiceAye:     v.Tally.Ayes,
		ChoiceNay:     v.Tally.Noes,
		ChoiceAbstain: v.Tally.Abstain,
		ChoiceAbsent:  v.Tally.Absent,
		ChoiceRecusal: v.Tally.Recusal,
	}
	for choice, n := range counts {
		if declared[choice] != n {
			return false
		}
	}
	return true
}

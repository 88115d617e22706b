package extract

import (
	"testing"
)

// Scenario: one roll-call block with named lists and a status line yields a
// single record with per-member votes matching the tally.
func TestExtractPulledItems_RollCallBlock(t *testing.T) {
	minutes := `Item No. 15: Zoning Code Amendment for Downtown Overlay
Following discussion, the motion was put to a vote.
YES: 6 – Penaloza, Phan, Bacerra, Hernandez, Amezcua, Vazquez NO: 0 ABSTAIN: 1 – Lopez Status: 6-0-1-0 Pass`

	votes, notes := ExtractPulledItems(minutes, testNormalizer())

	if len(notes) != 0 {
		t.Errorf("Unexpected notes: %v", notes)
	}
	if len(votes) != 1 {
		t.Fatalf("Expected 1 vote, got %d", len(votes))
	}

	v := votes[0]
	if v.AgendaItemNumber != "15" {
		t.Errorf("Expected item 15, got %s", v.AgendaItemNumber)
	}
	if v.Outcome != OutcomePass {
		t.Errorf("Expected pass, got %s", v.Outcome)
	}
	want := Tally{Ayes: 6, Noes: 0, Abstain: 1, Absent: 0}
	if v.Tally != want {
		t.Errorf("Expected tally %+v, got %+v", want, v.Tally)
	}
	if v.SourceSection != SectionPulled {
		t.Errorf("Expected pulled section, got %s", v.SourceSection)
	}

	if got := v.MemberVotes["Lopez"]; got != ChoiceAbstain {
		t.Errorf("Expected Lopez abstain, got %s", got)
	}
	for _, name := range []string{"Penaloza", "Phan", "Bacerra", "Hernandez", "Amezcua", "Vazquez"} {
		if got := v.MemberVotes[name]; got != ChoiceAye {
			t.Errorf("Expected %s aye, got %s", name, got)
		}
	}
}

func TestExtractPulledItems_MultipleBlocks(t *testing.T) {
	minutes := `Item No. 20: Budget Amendment
YES: 4 – Penaloza, Phan, Bacerra, Hernandez NO: 3 – Amezcua, Vazquez, Lopez Status: 4-3-0-0 Pass

Item No. 22: Appeal of Planning Commission Decision
YES: 2 – Phan, Lopez NO: 5 – Penaloza, Bacerra, Hernandez, Amezcua, Vazquez Status: 2-5-0-0 Fail`

	votes, _ := ExtractPulledItems(minutes, testNormalizer())

	if len(votes) != 2 {
		t.Fatalf("Expected 2 votes, got %d", len(votes))
	}
	if votes[0].AgendaItemNumber != "20" || votes[0].Outcome != OutcomePass {
		t.Errorf("Vote 0: got item %s outcome %s", votes[0].AgendaItemNumber, votes[0].Outcome)
	}
	if votes[1].AgendaItemNumber != "22" || votes[1].Outcome != OutcomeFail {
		t.Errorf("Vote 1: got item %s outcome %s", votes[1].AgendaItemNumber, votes[1].Outcome)
	}
	if got := votes[1].MemberVotes["Lopez"]; got != ChoiceAye {
		t.Errorf("Expected Lopez aye on item 22, got %s", got)
	}
}

// A status line with no item reference nearby is skipped with a note, not
// emitted with a bogus number.
func TestExtractPulledItems_MissingItemNumber(t *testing.T) {
	minutes := `The council reconvened from closed session.
YES: 7 NO: 0 Status: 7-0-0-0 Pass`

	votes, notes := ExtractPulledItems(minutes, testNormalizer())

	if len(votes) != 0 {
		t.Fatalf("Expected 0 votes, got %d", len(votes))
	}
	if len(notes) == 0 {
		t.Error("Expected a note about the skipped block")
	}
}

func TestExtractPulledItems_NoBlocks(t *testing.T) {
	votes, notes := ExtractPulledItems("No voting occurred at this study session.", testNormalizer())
	if len(votes) != 0 || len(notes) != 0 {
		t.Errorf("Expected empty result, got %d votes %d notes", len(votes), len(notes))
	}
}

// Vote lists are sliced between label positions, so lists without counts
// or dashes still attribute every name to the right choice.
func TestExtractPulledItems_LabelsWithoutCounts(t *testing.T) {
	minutes := `Item No. 18: Residential Permit Parking District
AYES: Penaloza, Phan NOES: Lopez ABSENT: Vazquez Status: 2-1-0-1 Pass`

	votes, notes := ExtractPulledItems(minutes, testNormalizer())

	if len(notes) != 0 {
		t.Errorf("Unexpected notes: %v", notes)
	}
	if len(votes) != 1 {
		t.Fatalf("Expected 1 vote, got %d", len(votes))
	}
	v := votes[0]
	want := map[string]BallotChoice{
		"Penaloza": ChoiceAye,
		"Phan":     ChoiceAye,
		"Lopez":    ChoiceNay,
		"Vazquez":  ChoiceAbsent,
	}
	if len(v.MemberVotes) != len(want) {
		t.Fatalf("Expected %d member votes, got %v", len(want), v.MemberVotes)
	}
	for name, choice := range want {
		if got := v.MemberVotes[name]; got != choice {
			t.Errorf("%s: got %s, want %s", name, got, choice)
		}
	}
}

func TestOutcomeFromStatus(t *testing.T) {
	cases := []struct {
		word  string
		tally Tally
		want  Outcome
	}{
		{"Pass", Tally{}, OutcomePass},
		{"FAILED", Tally{}, OutcomeFail},
		{"Continued", Tally{}, OutcomeContinued},
		{"Motion", Tally{Ayes: 4, Noes: 3}, OutcomePass},
		{"Motion", Tally{Ayes: 3, Noes: 3}, OutcomeTie},
		{"Motion", Tally{Ayes: 2, Noes: 5}, OutcomeFail},
	}
	for _, tc := range cases {
		if got := outcomeFromStatus(tc.word, tc.tally); got != tc.want {
			t.Errorf("outcomeFromStatus(%q, %+v) = %s, want %s", tc.word, tc.tally, got, tc.want)
		}
	}
}

func TestSplitNameList(t *testing.T) {
	got := splitNameList("Penaloza, Phan and Bacerra")
	want := []string{"Penaloza", "Phan", "Bacerra"}
	if len(got) != len(want) {
		t.Fatalf("Expected %d names, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("name %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

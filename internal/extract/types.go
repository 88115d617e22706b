// Package extract implements the hybrid vote extraction engine for Quorum.
//
// The engine reconciles two extraction strategies over council meeting
// minutes:
// - Deterministic pattern matching for the dominant "bulk consent approval"
//   voting pattern and for explicit roll-call blocks on pulled items
// - A probabilistic LLM fallback for meetings the patterns cannot read
//
// Results from both strategies are merged (union, regex wins), filtered
// against a city profile's exclusion rules, and deduplicated by agenda item
// number. Every record carries provenance notes so downstream consumers can
// see where it came from and what was uncertain about it.
package extract

import "strings"

// Outcome is the result of a vote on one agenda item.
type Outcome string

const (
	OutcomePass      Outcome = "pass"
	OutcomeFail      Outcome = "fail"
	OutcomeTie       Outcome = "tie"
	OutcomeContinued Outcome = "continued"
)

// BallotChoice is a single member's recorded position on an item.
type BallotChoice string

const (
	ChoiceAye     BallotChoice = "aye"
	ChoiceNay     BallotChoice = "nay"
	ChoiceAbstain BallotChoice = "abstain"
	ChoiceAbsent  BallotChoice = "absent"
	ChoiceRecusal BallotChoice = "recusal"
)

// SourceSection identifies which part of the minutes a vote was read from.
// It drives merge priority: consent-calendar records are never replaced.
type SourceSection string

const (
	SectionConsentCalendar SourceSection = "consent_calendar"
	SectionPulled          SourceSection = "pulled"
	SectionOther           SourceSection = "other"
)

// Method identifies which extraction strategy produced a meeting's result.
type Method string

const (
	MethodRegex  Method = "regex"
	MethodAI     Method = "ai"
	MethodHybrid Method = "hybrid"
)

// Tally is the count breakdown of a single vote.
type Tally struct {
	Ayes    int `json:"ayes"`
	Noes    int `json:"noes"`
	Abstain int `json:"abstain"`
	Absent  int `json:"absent"`
	Recusal int `json:"recusal"`
}

// Total returns the number of members accounted for by the tally.
func (t Tally) Total() int {
	return t.Ayes + t.Noes + t.Abstain + t.Absent + t.Recusal
}

// VoteRecord is one vote on one agenda item. AgendaItemNumber is unique
// within a meeting's final output; the deduplicator enforces that.
type VoteRecord struct {
	AgendaItemNumber string                  `json:"agenda_item_number"`
	AgendaItemTitle  string                  `json:"agenda_item_title"`
	Outcome          Outcome                 `json:"outcome"`
	Tally            Tally                   `json:"tally"`
	MemberVotes      map[string]BallotChoice `json:"member_votes,omitempty"`
	MotionText       string                  `json:"motion_text,omitempty"`
	Mover            string                  `json:"mover,omitempty"`
	Seconder         string                  `json:"seconder,omitempty"`
	SourceSection    SourceSection           `json:"source_section"`
	ValidationNotes  []string                `json:"validation_notes,omitempty"`
}

// AddNote appends a provenance/caveat note to the record.
func (v *VoteRecord) AddNote(note string) {
	v.ValidationNotes = append(v.ValidationNotes, note)
}

// GenericTitle returns the placeholder title used when the agenda text does
// not yield a heading for the item.
func GenericTitle(itemNumber string) string {
	return "Agenda Item " + itemNumber
}

// HasGenericTitle reports whether the record still carries a placeholder
// title (empty or the "Agenda Item N" default).
func (v *VoteRecord) HasGenericTitle() bool {
	title := strings.TrimSpace(v.AgendaItemTitle)
	return title == "" || title == GenericTitle(v.AgendaItemNumber)
}

// ExtractionMetadata describes how a meeting's result was produced.
type ExtractionMetadata struct {
	MethodUsed      Method  `json:"method_used"`
	ConfidenceScore float64 `json:"confidence_score"`
}

// ValidationResults carries the quality validator's output. The score never
// discards votes; it only annotates confidence and gates the LLM fallback.
type ValidationResults struct {
	QualityScore    float64  `json:"quality_score"`
	ProcessingNotes []string `json:"processing_notes"`
	Passed          bool     `json:"validation_passed"`
}

// ExtractionResult is the per-meeting output with a stable JSON schema.
type ExtractionResult struct {
	MeetingID  string             `json:"meeting_id,omitempty"`
	Votes      []VoteRecord       `json:"votes"`
	Metadata   ExtractionMetadata `json:"extraction_metadata"`
	Validation ValidationResults  `json:"validation_results"`
}

// MeetingInput is the engine's per-meeting input: two plain-text documents
// produced by an external PDF conversion step, plus an optional manual
// baseline count used only for informational reporting.
type MeetingInput struct {
	MeetingID           string
	AgendaText          string
	MinutesText         string
	ManualBaselineCount int // 0 = not supplied
}

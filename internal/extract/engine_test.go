package extract

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

const fullMinutes = `SANTA ANA CITY COUNCIL REGULAR MEETING MINUTES

CONSENT CALENDAR

Councilmember Phan moved to approve Consent Calendar Item Nos. 8 through 12 with the exception of Item No. 10, seconded by Councilmember Lopez. The motion carried by the following vote: 7-0.

PULLED ITEMS

Item No. 15: Zoning Code Amendment for Downtown Overlay
Following discussion, the motion was put to a vote.
YES: 6 – Penaloza, Phan, Bacerra, Hernandez, Amezcua, Vazquez NO: 0 ABSTAIN: 1 – Lopez Status: 6-0-1-0 Pass`

func testEngineConfig(llm *LLMConfig) EngineConfig {
	return EngineConfig{
		Roster: []string{"Penaloza", "Phan", "Bacerra", "Hernandez", "Amezcua", "Vazquez", "Lopez"},
		LLM:    llm,
	}
}

func llmServer(t *testing.T, calls *int32, response string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		json.NewEncoder(w).Encode(fakeCompletion(response))
	}))
}

func serverConfig(url string) *LLMConfig {
	return &LLMConfig{
		Provider:      "custom",
		Model:         "test-model",
		Endpoint:      url,
		ContextWindow: 8192,
		MaxRetries:    0,
		TimeoutSecs:   5,
	}
}

// Clean regex extraction never invokes the fallback, even when one is
// configured.
func TestExtractMeeting_RegexOnly(t *testing.T) {
	var calls int32
	srv := llmServer(t, &calls, `{"votes": []}`)
	defer srv.Close()

	engine := NewEngine(testEngineConfig(serverConfig(srv.URL)))
	result, delta, err := engine.ExtractMeeting(context.Background(), MeetingInput{
		MeetingID:   "2024-03-05",
		MinutesText: fullMinutes,
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if got := atomic.LoadInt32(&calls); got != 0 {
		t.Errorf("Fallback endpoint called %d times, expected 0", got)
	}
	if result.Metadata.MethodUsed != MethodRegex {
		t.Errorf("Expected regex method, got %s", result.Metadata.MethodUsed)
	}
	if result.Validation.QualityScore != 1.0 {
		t.Errorf("Expected quality 1.0, got %f (notes: %v)", result.Validation.QualityScore, result.Validation.ProcessingNotes)
	}
	if !result.Validation.Passed {
		t.Error("Expected validation to pass")
	}

	// Items 8, 9, 11, 12 from the consent calendar plus pulled item 15.
	if len(result.Votes) != 5 {
		t.Fatalf("Expected 5 votes, got %d", len(result.Votes))
	}
	wantItems := []string{"8", "9", "11", "12", "15"}
	for i, v := range result.Votes {
		if v.AgendaItemNumber != wantItems[i] {
			t.Errorf("vote %d: expected item %s, got %s", i, wantItems[i], v.AgendaItemNumber)
		}
	}

	if delta.PatternHits["moved_to_approve_range"] != 1 {
		t.Errorf("Expected consent pattern hit recorded, got %v", delta.PatternHits)
	}
	if len(delta.QualityScores) != 1 || delta.QualityScores[0] != 1.0 {
		t.Errorf("Expected quality 1.0 recorded, got %v", delta.QualityScores)
	}
}

// A low-quality regex result invokes the fallback, regex votes survive the
// merge unaltered, and new fallback items are appended.
func TestExtractMeeting_HybridMerge(t *testing.T) {
	minutes := `Item No. 7: Appeal of Planning Commission Decision
The item was continued to the next meeting.
ABSTAIN: – Lopez Status: 0-0-0-0 Continued`

	var calls int32
	srv := llmServer(t, &calls, `{"votes": [
		{"item_number": "7", "outcome": "pass", "ayes": 7},
		{"item_number": "20", "outcome": "pass", "ayes": 7}
	]}`)
	defer srv.Close()

	engine := NewEngine(testEngineConfig(serverConfig(srv.URL)))
	result, _, err := engine.ExtractMeeting(context.Background(), MeetingInput{
		MeetingID:   "2024-03-19",
		MinutesText: minutes,
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if atomic.LoadInt32(&calls) == 0 {
		t.Fatal("Expected fallback endpoint to be called")
	}
	if result.Metadata.MethodUsed != MethodHybrid {
		t.Errorf("Expected hybrid method, got %s", result.Metadata.MethodUsed)
	}
	if len(result.Votes) != 2 {
		t.Fatalf("Expected 2 votes, got %d: %+v", len(result.Votes), result.Votes)
	}

	// The regex record for item 7 wins over the fallback's version.
	if result.Votes[0].AgendaItemNumber != "7" || result.Votes[0].Outcome != OutcomeContinued {
		t.Errorf("Regex vote for item 7 was replaced: %+v", result.Votes[0])
	}
	if result.Votes[0].SourceSection != SectionPulled {
		t.Errorf("Expected pulled section for item 7, got %s", result.Votes[0].SourceSection)
	}
	if result.Votes[1].AgendaItemNumber != "20" {
		t.Errorf("Expected fallback item 20 appended, got %s", result.Votes[1].AgendaItemNumber)
	}
}

// No regex votes at all plus a successful fallback yields the ai method.
func TestExtractMeeting_FallbackOnly(t *testing.T) {
	var calls int32
	srv := llmServer(t, &calls, `{"votes": [{"item_number": "3", "outcome": "pass", "ayes": 5, "noes": 2}]}`)
	defer srv.Close()

	engine := NewEngine(testEngineConfig(serverConfig(srv.URL)))
	result, _, err := engine.ExtractMeeting(context.Background(), MeetingInput{
		MeetingID:   "2024-04-02",
		MinutesText: "The council took action on item 3 by a 5-2 margin, details in the attached transcript.",
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if result.Metadata.MethodUsed != MethodAI {
		t.Errorf("Expected ai method, got %s", result.Metadata.MethodUsed)
	}
	if len(result.Votes) != 1 || result.Votes[0].AgendaItemNumber != "3" {
		t.Fatalf("Expected fallback item 3, got %+v", result.Votes)
	}
}

// An unreachable fallback degrades to the regex result with a note; the
// meeting still completes.
func TestExtractMeeting_FallbackUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	engine := NewEngine(testEngineConfig(serverConfig(srv.URL)))
	result, _, err := engine.ExtractMeeting(context.Background(), MeetingInput{
		MeetingID:   "2024-04-16",
		MinutesText: "Only discussion occurred; no formal votes were recorded in these minutes.",
	})
	if err != nil {
		t.Fatalf("Fallback failure must not fail the meeting: %v", err)
	}
	if len(result.Votes) != 0 {
		t.Errorf("Expected no votes, got %d", len(result.Votes))
	}
	found := false
	for _, n := range result.Validation.ProcessingNotes {
		if strings.Contains(n, "fallback unavailable") {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected fallback-unavailable note, got %v", result.Validation.ProcessingNotes)
	}
}

func TestExtractMeeting_NoLLMConfigured(t *testing.T) {
	engine := NewEngine(testEngineConfig(nil))
	result, _, err := engine.ExtractMeeting(context.Background(), MeetingInput{
		MeetingID:   "2024-05-07",
		MinutesText: "Study session only; no votes were taken.",
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if result.Metadata.MethodUsed != MethodRegex {
		t.Errorf("Expected regex method, got %s", result.Metadata.MethodUsed)
	}
	if result.Validation.Passed {
		t.Error("Zero votes should not pass validation")
	}
	found := false
	for _, n := range result.Validation.ProcessingNotes {
		if strings.Contains(n, "no LLM configured") {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected a no-LLM note, got %v", result.Validation.ProcessingNotes)
	}
}

func TestExtractMeeting_EmptyMinutes(t *testing.T) {
	engine := NewEngine(testEngineConfig(nil))
	if _, _, err := engine.ExtractMeeting(context.Background(), MeetingInput{MeetingID: "m1"}); err == nil {
		t.Fatal("Expected error for empty minutes")
	}
}

// A housing-authority numbered vote from the fallback is excluded by the
// default rules before it reaches the result.
func TestExtractMeeting_ForeignNumberingFiltered(t *testing.T) {
	var calls int32
	srv := llmServer(t, &calls, `{"votes": [
		{"item_number": "6", "outcome": "pass", "ayes": 7},
		{"item_number": "2024-002", "outcome": "pass", "ayes": 5}
	]}`)
	defer srv.Close()

	engine := NewEngine(testEngineConfig(serverConfig(srv.URL)))
	result, _, err := engine.ExtractMeeting(context.Background(), MeetingInput{
		MeetingID:   "2024-06-04",
		MinutesText: "Joint session with the Housing Authority; actions are recorded in the attached register.",
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(result.Votes) != 1 || result.Votes[0].AgendaItemNumber != "6" {
		t.Fatalf("Expected only item 6, got %+v", result.Votes)
	}
}

// Agenda titles replace generic placeholders on the way out.
func TestExtractMeeting_TitleResolution(t *testing.T) {
	agenda := `CONSENT CALENDAR
8. Approval of Purchase Agreement for Police Vehicles
9. Second Reading of Ordinance No. 2301`
	minutes := "Moved to approve Consent Calendar Item Nos. 8 through 9. Vote: 7-0."

	engine := NewEngine(testEngineConfig(nil))
	result, _, err := engine.ExtractMeeting(context.Background(), MeetingInput{
		MeetingID:   "2024-06-18",
		MinutesText: minutes,
		AgendaText:  agenda,
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(result.Votes) != 2 {
		t.Fatalf("Expected 2 votes, got %d", len(result.Votes))
	}
	if result.Votes[0].AgendaItemTitle != "Approval of Purchase Agreement for Police Vehicles" {
		t.Errorf("item 8: got title %q", result.Votes[0].AgendaItemTitle)
	}
}

// A misspelled roster name in a roll call comes back as a learned
// correction in the delta.
func TestExtractMeeting_NameCorrectionDelta(t *testing.T) {
	minutes := `Item No. 15: Zoning Code Amendment
YES: 2 – Penalosa, Phan NO: 0 Status: 2-0-0-0 Pass`

	engine := NewEngine(testEngineConfig(nil))
	result, delta, err := engine.ExtractMeeting(context.Background(), MeetingInput{
		MeetingID:   "2024-07-02",
		MinutesText: minutes,
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got := result.Votes[0].MemberVotes["Penaloza"]; got != ChoiceAye {
		t.Errorf("Expected corrected Penaloza aye, got %v", result.Votes[0].MemberVotes)
	}
	if delta.NameCorrections["Penalosa"] != "Penaloza" {
		t.Errorf("Expected learned correction in delta, got %v", delta.NameCorrections)
	}
}

func TestExtractMeeting_ManualBaselineNote(t *testing.T) {
	engine := NewEngine(testEngineConfig(nil))
	result, _, err := engine.ExtractMeeting(context.Background(), MeetingInput{
		MeetingID:           "2024-07-16",
		MinutesText:         fullMinutes,
		ManualBaselineCount: 6,
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	found := false
	for _, n := range result.Validation.ProcessingNotes {
		if strings.Contains(n, "manual baseline: 6 votes expected, 5 extracted") {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected baseline note, got %v", result.Validation.ProcessingNotes)
	}
	// Informational only: the baseline mismatch does not change the score.
	if result.Validation.QualityScore != 1.0 {
		t.Errorf("Baseline must not alter scoring, got %f", result.Validation.QualityScore)
	}
}

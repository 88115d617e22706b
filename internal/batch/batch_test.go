package batch

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/openquorum/quorum/internal/extract"
	"github.com/openquorum/quorum/internal/memory"
	"github.com/openquorum/quorum/internal/store"
)

func testEngine() *extract.Engine {
	return extract.NewEngine(extract.EngineConfig{
		Roster: []string{"Penaloza", "Phan", "Bacerra", "Hernandez", "Amezcua", "Vazquez", "Lopez"},
	})
}

func testMeetings(n int) []extract.MeetingInput {
	meetings := make([]extract.MeetingInput, n)
	for i := range meetings {
		meetings[i] = extract.MeetingInput{
			MeetingID: fmt.Sprintf("meeting-%02d", i),
			MinutesText: fmt.Sprintf(
				"Moved to approve Consent Calendar Item Nos. %d through %d. Vote: 7-0.", i+1, i+3),
		}
	}
	return meetings
}

func TestRun_AllMeetingsProcessed(t *testing.T) {
	runner := NewRunner(testEngine(), Options{Workers: 3})

	res, err := runner.Run(context.Background(), memory.New(), testMeetings(10))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(res.Errors) != 0 {
		t.Errorf("Unexpected errors: %v", res.Errors)
	}
	if len(res.Results) != 10 {
		t.Fatalf("Expected 10 results, got %d", len(res.Results))
	}
	seen := map[string]bool{}
	for _, r := range res.Results {
		seen[r.MeetingID] = true
		if len(r.Votes) != 3 {
			t.Errorf("meeting %s: expected 3 votes, got %d", r.MeetingID, len(r.Votes))
		}
	}
	if len(seen) != 10 {
		t.Errorf("Expected 10 distinct meetings, got %d", len(seen))
	}
}

// A failing meeting is reported and skipped; the rest of the batch
// completes.
func TestRun_ErrorIsolation(t *testing.T) {
	meetings := testMeetings(4)
	meetings[2].MinutesText = "   " // empty minutes fail that meeting only

	runner := NewRunner(testEngine(), Options{Workers: 2})
	res, err := runner.Run(context.Background(), memory.New(), meetings)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(res.Results) != 3 {
		t.Errorf("Expected 3 results, got %d", len(res.Results))
	}
	if len(res.Errors) != 1 || res.Errors[0].MeetingID != "meeting-02" {
		t.Errorf("Expected one error for meeting-02, got %v", res.Errors)
	}
}

// Worker deltas merge into the shared memory exactly once, under the single
// writer, and the file lands on disk.
func TestRun_SingleWriterMemory(t *testing.T) {
	memPath := filepath.Join(t.TempDir(), "memory.json")
	mem := memory.New()

	runner := NewRunner(testEngine(), Options{Workers: 4, MemoryPath: memPath})
	res, err := runner.Run(context.Background(), mem, testMeetings(8))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(res.Results) != 8 {
		t.Fatalf("Expected 8 results, got %d", len(res.Results))
	}

	// One quality score and one pattern hit per successful meeting.
	if len(mem.QualityHistory) != 8 {
		t.Errorf("Expected 8 quality entries, got %d", len(mem.QualityHistory))
	}
	if mem.SuccessfulPatterns["moved_to_approve_range"] != 8 {
		t.Errorf("Expected 8 pattern hits, got %v", mem.SuccessfulPatterns)
	}

	loaded, err := memory.Load(memPath)
	if err != nil {
		t.Fatalf("Loading saved memory failed: %v", err)
	}
	if len(loaded.QualityHistory) != 8 {
		t.Errorf("Saved memory missing history: %d entries", len(loaded.QualityHistory))
	}
}

func TestRun_NoMemoryPathSkipsSave(t *testing.T) {
	mem := memory.New()
	runner := NewRunner(testEngine(), Options{Workers: 2})
	if _, err := runner.Run(context.Background(), mem, testMeetings(2)); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	// Without a path the shared memory is left untouched.
	if len(mem.QualityHistory) != 0 {
		t.Errorf("Memory mutated without a memory path: %d entries", len(mem.QualityHistory))
	}
}

func TestRun_ArchivesResults(t *testing.T) {
	s, err := store.NewStore(store.StoreConfig{DBPath: filepath.Join(t.TempDir(), "archive.db")})
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	defer s.Close()

	runner := NewRunner(testEngine(), Options{Workers: 2, Archive: s})
	res, err := runner.Run(context.Background(), memory.New(), testMeetings(5))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(res.Errors) != 0 {
		t.Fatalf("Unexpected errors: %v", res.Errors)
	}

	stats, err := s.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Runs != 5 || stats.Votes != 15 {
		t.Errorf("Expected 5 runs / 15 votes archived, got %+v", stats)
	}
}

// failingArchive rejects every run so archive-failure semantics can be
// checked: the result and delta still count, the failure shows up as a
// meeting error.
type failingArchive struct{}

func (failingArchive) ArchiveRun(ctx context.Context, res *extract.ExtractionResult) (int64, error) {
	return 0, fmt.Errorf("disk full")
}
func (failingArchive) GetRun(ctx context.Context, id int64) (*store.Run, []store.ArchivedVote, error) {
	return nil, nil, fmt.Errorf("not implemented")
}
func (failingArchive) QualityHistory(ctx context.Context, limit int) ([]store.QualityPoint, error) {
	return nil, nil
}
func (failingArchive) Stats(ctx context.Context) (*store.Stats, error) { return &store.Stats{}, nil }
func (failingArchive) Close() error                                    { return nil }

func TestRun_ArchiveFailureKeepsResult(t *testing.T) {
	memPath := filepath.Join(t.TempDir(), "memory.json")
	mem := memory.New()

	runner := NewRunner(testEngine(), Options{Workers: 2, Archive: failingArchive{}, MemoryPath: memPath})
	res, err := runner.Run(context.Background(), mem, testMeetings(3))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(res.Results) != 3 {
		t.Errorf("Archive failures must not drop results: got %d", len(res.Results))
	}
	if len(res.Errors) != 3 {
		t.Errorf("Expected 3 archive errors, got %v", res.Errors)
	}
	if len(mem.QualityHistory) != 3 {
		t.Errorf("Deltas must survive archive failures: %d entries", len(mem.QualityHistory))
	}
}

// countingArchive counts successful archive calls across workers.
type countingArchive struct {
	mu    sync.Mutex
	calls int
}

func (a *countingArchive) ArchiveRun(ctx context.Context, res *extract.ExtractionResult) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	return int64(a.calls), nil
}
func (a *countingArchive) GetRun(ctx context.Context, id int64) (*store.Run, []store.ArchivedVote, error) {
	return nil, nil, fmt.Errorf("not implemented")
}
func (a *countingArchive) QualityHistory(ctx context.Context, limit int) ([]store.QualityPoint, error) {
	return nil, nil
}
func (a *countingArchive) Stats(ctx context.Context) (*store.Stats, error) { return &store.Stats{}, nil }
func (a *countingArchive) Close() error                                    { return nil }

func TestRun_DefaultWorkerCount(t *testing.T) {
	archive := &countingArchive{}
	runner := NewRunner(testEngine(), Options{Workers: 0, Archive: archive})
	res, err := runner.Run(context.Background(), memory.New(), testMeetings(6))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(res.Results) != 6 || archive.calls != 6 {
		t.Errorf("Expected 6 results and 6 archive calls, got %d / %d", len(res.Results), archive.calls)
	}
}

// Package memory implements Quorum's persistent learning memory.
//
// The extraction engine tracks which phrase patterns hit or missed, which
// member-name spellings were corrected, and how quality scores trend across
// runs. The store is a single JSON file: loaded once at engine
// construction, mutated only through per-run deltas, and written back as
// one atomic save. A missing or corrupt file degrades to an empty default;
// it never aborts extraction.
package memory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// maxQualityHistory bounds the retained quality score history.
const maxQualityHistory = 500

// ExtractionMemory is the cross-run learning state.
type ExtractionMemory struct {
	SuccessfulPatterns    map[string]int    `json:"successful_patterns"`
	FailedPatterns        map[string]int    `json:"failed_patterns"`
	MemberNameCorrections map[string]string `json:"member_name_corrections"`
	AgendaItemPatterns    []string          `json:"agenda_item_patterns"`
	QualityHistory        []float64         `json:"quality_history"`
	LastUpdated           time.Time         `json:"last_updated"`
}

// New returns an empty memory with all maps initialized.
func New() *ExtractionMemory {
	return &ExtractionMemory{
		SuccessfulPatterns:    map[string]int{},
		FailedPatterns:        map[string]int{},
		MemberNameCorrections: map[string]string{},
	}
}

// Load reads the memory file. A missing or corrupt file yields an empty
// memory and a non-nil advisory error; the returned memory is always
// usable and the caller decides whether the error is worth logging.
func Load(path string) (*ExtractionMemory, error) {
	mem := New()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return mem, nil
		}
		return mem, fmt.Errorf("reading memory file: %w", err)
	}

	if err := json.Unmarshal(data, mem); err != nil {
		return New(), fmt.Errorf("memory file corrupt, starting empty: %w", err)
	}
	mem.normalize()
	return mem, nil
}

// Save writes the memory atomically: marshal to a temp file in the same
// directory, then rename over the target. Sets LastUpdated.
func (m *ExtractionMemory) Save(path string) error {
	m.LastUpdated = time.Now().UTC()

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling memory: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating memory directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".memory-*.json")
	if err != nil {
		return fmt.Errorf("creating temp memory file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing temp memory file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp memory file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing memory file: %w", err)
	}
	return nil
}

// normalize ensures all maps are non-nil after unmarshaling.
func (m *ExtractionMemory) normalize() {
	if m.SuccessfulPatterns == nil {
		m.SuccessfulPatterns = map[string]int{}
	}
	if m.FailedPatterns == nil {
		m.FailedPatterns = map[string]int{}
	}
	if m.MemberNameCorrections == nil {
		m.MemberNameCorrections = map[string]string{}
	}
}

// Delta accumulates one run's memory mutations. Workers processing meetings
// concurrently each build their own delta; a single writer applies them to
// the shared store after the batch, so the store is never mutated
// mid-extraction.
type Delta struct {
	PatternHits     map[string]int
	PatternMisses   map[string]int
	NameCorrections map[string]string
	QualityScores   []float64
}

// NewDelta returns an empty delta.
func NewDelta() *Delta {
	return &Delta{
		PatternHits:     map[string]int{},
		PatternMisses:   map[string]int{},
		NameCorrections: map[string]string{},
	}
}

// RecordPatternHit increments a pattern's success count.
func (d *Delta) RecordPatternHit(pattern string) {
	d.PatternHits[pattern]++
}

// RecordPatternMiss increments a pattern's failure count.
func (d *Delta) RecordPatternMiss(pattern string) {
	d.PatternMisses[pattern]++
}

// RecordNameCorrection remembers an observed-name to canonical-name fix.
func (d *Delta) RecordNameCorrection(observed, canonical string) {
	d.NameCorrections[observed] = canonical
}

// RecordQuality appends a meeting's quality score.
func (d *Delta) RecordQuality(score float64) {
	d.QualityScores = append(d.QualityScores, score)
}

// Merge folds another delta into this one.
func (d *Delta) Merge(other *Delta) {
	if other == nil {
		return
	}
	for k, v := range other.PatternHits {
		d.PatternHits[k] += v
	}
	for k, v := range other.PatternMisses {
		d.PatternMisses[k] += v
	}
	for k, v := range other.NameCorrections {
		d.NameCorrections[k] = v
	}
	d.QualityScores = append(d.QualityScores, other.QualityScores...)
}

// Empty reports whether the delta carries no mutations.
func (d *Delta) Empty() bool {
	return d == nil ||
		len(d.PatternHits) == 0 && len(d.PatternMisses) == 0 &&
			len(d.NameCorrections) == 0 && len(d.QualityScores) == 0
}

// Apply merges a run's delta into the memory. Quality history is trimmed
// to the retention bound from the front so recent runs survive.
func (m *ExtractionMemory) Apply(d *Delta) {
	if d == nil {
		return
	}
	m.normalize()
	for k, v := range d.PatternHits {
		m.SuccessfulPatterns[k] += v
	}
	for k, v := range d.PatternMisses {
		m.FailedPatterns[k] += v
	}
	for k, v := range d.NameCorrections {
		m.MemberNameCorrections[k] = v
	}
	m.QualityHistory = append(m.QualityHistory, d.QualityScores...)
	if len(m.QualityHistory) > maxQualityHistory {
		m.QualityHistory = m.QualityHistory[len(m.QualityHistory)-maxQualityHistory:]
	}
}

// AverageQuality returns the mean of the retained quality history, or zero
// when no runs are recorded.
func (m *ExtractionMemory) AverageQuality() float64 {
	if len(m.QualityHistory) == 0 {
		return 0
	}
	var sum float64
	for _, q := range m.QualityHistory {
		sum += q
	}
	return sum / float64(len(m.QualityHistory))
}

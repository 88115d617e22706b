package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/openquorum/quorum/internal/memory"
	"github.com/openquorum/quorum/internal/textprep"
)

// EngineConfig assembles everything a meeting extraction needs. Memory is a
// read-only snapshot; per-run mutations come back as a delta so batches can
// merge them under a single writer.
type EngineConfig struct {
	Roster       []string
	NameVariants map[string]string
	Exclusions   ExclusionRules
	LLM          *LLMConfig               // nil = regex-only
	Memory       *memory.ExtractionMemory // nil = empty memory
}

// Engine runs the hybrid extraction pipeline for one meeting at a time.
// Engines are safe to reuse across meetings but hold no cross-meeting
// state; everything learned is in the returned delta.
type Engine struct {
	cfg EngineConfig
	llm *LLMClient
}

// NewEngine builds an engine. The LLM client is constructed once so its
// HTTP client and timeout are shared across meetings.
func NewEngine(cfg EngineConfig) *Engine {
	e := &Engine{cfg: cfg}
	if cfg.LLM != nil {
		e.llm = NewLLMClient(cfg.LLM)
	}
	if e.cfg.Memory == nil {
		e.cfg.Memory = memory.New()
	}
	if len(e.cfg.Exclusions.Phrases) == 0 && len(e.cfg.Exclusions.ForeignNumbering) == 0 && len(e.cfg.Exclusions.TitlePrefixes) == 0 {
		e.cfg.Exclusions = DefaultExclusionRules()
	}
	return e
}

// ExtractMeeting runs the full pipeline over one meeting's agenda and
// minutes. The returned delta carries the run's learning-memory mutations;
// the caller applies it to the shared store.
//
// Failure semantics follow the batch contract: only missing input fails the
// meeting. Pattern misses, LLM failures, and validation shortfalls degrade
// to notes on the result.
func (e *Engine) ExtractMeeting(ctx context.Context, in MeetingInput) (*ExtractionResult, *memory.Delta, error) {
	if strings.TrimSpace(in.MinutesText) == "" {
		return nil, nil, fmt.Errorf("meeting %s: minutes text is empty", in.MeetingID)
	}

	delta := memory.NewDelta()
	var processing []string

	minutes := textprep.Clean(in.MinutesText)
	agenda := textprep.Clean(in.AgendaText)

	corrections := mergeCorrections(e.cfg.NameVariants, e.cfg.Memory.MemberNameCorrections)
	names := NewNameNormalizer(e.cfg.Roster, corrections)

	// Regex phase: consent calendar first, then pulled-item roll calls.
	consentVotes, matchedPattern, consentNotes := ExtractConsentCalendar(minutes, names)
	processing = append(processing, consentNotes...)
	recordPatternStats(delta, matchedPattern)

	pulledVotes, pulledNotes := ExtractPulledItems(minutes, names)
	processing = append(processing, pulledNotes...)

	regexVotes := append(consentVotes, pulledVotes...)

	// Quality gate: a low or zero score invokes the fallback.
	report := ScoreVotes(regexVotes)
	method := MethodRegex

	var fallbackVotes []VoteRecord
	fallbackInvoked := false
	if report.NeedsFallback() && e.llm != nil {
		fallbackInvoked = true
		processing = append(processing, fmt.Sprintf("regex quality %.2f below threshold, invoking LLM fallback", report.Score))
		var fbNotes []string
		var err error
		fallbackVotes, fbNotes, err = e.llm.ExtractVotes(ctx, minutes, agenda)
		processing = append(processing, fbNotes...)
		if err != nil {
			// Treated as zero supplemental votes; the regex results stand.
			processing = append(processing, fmt.Sprintf("LLM fallback unavailable: %v", err))
		}
	} else if report.NeedsFallback() {
		processing = append(processing, fmt.Sprintf("regex quality %.2f below threshold but no LLM configured", report.Score))
	}

	switch {
	case len(fallbackVotes) > 0 && len(regexVotes) > 0:
		method = MethodHybrid
	case fallbackInvoked && len(regexVotes) == 0:
		method = MethodAI
	}

	votes := MergeVotes(regexVotes, fallbackVotes)

	votes, filterNotes := FilterVotes(votes, e.cfg.Exclusions)
	processing = append(processing, filterNotes...)

	votes, dedupNotes := Deduplicate(votes)
	processing = append(processing, dedupNotes...)

	resolver := NewTitleResolver(agenda, e.cfg.Memory.AgendaItemPatterns)
	votes = resolver.ResolveAll(votes)

	// Final score over the result actually being returned.
	final := ScoreVotes(votes)
	processing = append(processing, final.Notes...)
	for _, name := range names.UnknownNames() {
		processing = append(processing, fmt.Sprintf("member %q not on roster for this period", name))
	}
	for observed, canonical := range names.ObservedCorrections() {
		delta.RecordNameCorrection(observed, canonical)
	}
	delta.RecordQuality(final.Score)

	if in.ManualBaselineCount > 0 {
		// Informational only; the baseline's own reliability is unproven,
		// so it never alters extraction or scoring.
		processing = append(processing, fmt.Sprintf("manual baseline: %d votes expected, %d extracted", in.ManualBaselineCount, len(votes)))
	}

	result := &ExtractionResult{
		MeetingID: in.MeetingID,
		Votes:     votes,
		Metadata: ExtractionMetadata{
			MethodUsed:      method,
			ConfidenceScore: final.Score,
		},
		Validation: ValidationResults{
			QualityScore:    final.Score,
			ProcessingNotes: processing,
			Passed:          final.Score >= FallbackThreshold,
		},
	}
	return result, delta, nil
}

// recordPatternStats credits the matched consent pattern and debits the
// ones tried before it. When nothing matched, every pattern missed.
func recordPatternStats(delta *memory.Delta, matched string) {
	for _, name := range ConsentPatternNames() {
		if name == matched {
			delta.RecordPatternHit(name)
			return
		}
		delta.RecordPatternMiss(name)
	}
}

// mergeCorrections overlays learned corrections on configured variants.
// Configured variants win: an operator-supplied mapping outranks one the
// engine inferred.
func mergeCorrections(configured, learned map[string]string) map[string]string {
	out := make(map[string]string, len(configured)+len(learned))
	for k, v := range learned {
		out[k] = v
	}
	for k, v := range configured {
		out[k] = v
	}
	return out
}

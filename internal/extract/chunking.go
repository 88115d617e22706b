package extract

import (
	"strings"
)

// ChunkMinutes splits minutes text into chunks that fit within the fallback
// model's context window. Uses a rough token estimation of len(text) / 4.
func ChunkMinutes(text string, contextWindow int) []string {
	if text == "" {
		return []string{}
	}
	if contextWindow <= 0 {
		contextWindow = 4096
	}

	estimatedTokens := len(text) / 4

	// Use 75% of context window to leave room for system prompt and response
	maxTokensPerChunk := (contextWindow * 3) / 4

	if estimatedTokens <= maxTokensPerChunk {
		return []string{text}
	}

	maxCharsPerChunk := maxTokensPerChunk * 4

	// Overlap of ~50 tokens (200 chars) between chunks so a vote block
	// split at a boundary is seen whole by one of the two chunks. The
	// chunk size must exceed the overlap or the scan cannot advance; tiny
	// configured windows are clamped rather than looped on.
	overlapChars := 200
	if maxCharsPerChunk <= overlapChars*2 {
		maxCharsPerChunk = overlapChars * 2
	}

	var chunks []string
	pos := 0

	for pos < len(text) {
		end := pos + maxCharsPerChunk
		if end > len(text) {
			end = len(text)
		}

		chunk := text[pos:end]

		// If this isn't the last chunk, try to split at a paragraph
		// boundary to avoid cutting a roll-call block in half.
		if end < len(text) {
			searchStart := len(chunk) * 2 / 3
			if searchStart < len(chunk) {
				if idx := strings.LastIndex(chunk[searchStart:], "\n\n"); idx != -1 {
					actualIdx := searchStart + idx
					chunk = chunk[:actualIdx]
					end = pos + actualIdx
				}
			}
		}

		if strings.TrimSpace(chunk) != "" {
			chunks = append(chunks, chunk)
		}

		if end >= len(text) {
			break
		}
		pos = end - overlapChars
		if pos < 0 {
			pos = 0
		}
	}

	if len(chunks) == 0 {
		chunks = []string{text}
	}

	return chunks
}

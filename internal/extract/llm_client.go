package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// System prompt for LLM vote extraction (v1)
const votePromptV1 = `You are a municipal meeting vote extraction system. Read the council meeting minutes and enumerate every vote taken on an agenda item.

RULES:
1. Report ONLY votes explicitly recorded in the minutes - never infer or assume
2. item_number must be the agenda item number as written (digits only when possible)
3. outcome is one of: pass, fail, tie, continued
4. member_votes maps a member's name to one of: aye, nay, abstain, absent, recusal. Omit it when the minutes record only a shared tally
5. Return ONLY the JSON object, no additional text

JSON SCHEMA:
{
  "votes": [
    {
      "item_number": "15",
      "title": "agenda item title if stated",
      "outcome": "pass",
      "ayes": 6, "noes": 0, "abstain": 1, "absent": 0, "recusal": 0,
      "member_votes": {"Lopez": "abstain"},
      "motion_text": "text of the motion if stated"
    }
  ]
}

If the minutes contain no votes, return {"votes": []}.`

// LLMClient invokes the fallback extractor against an OpenAI-compatible
// chat completions API. Every failure mode (network, timeout, malformed
// response) degrades to "no fallback votes available"; the engine always
// completes with at least the regex results.
type LLMClient struct {
	config LLMConfig
	http   *http.Client
}

// ChatRequest represents an OpenAI-compatible chat completion request.
type ChatRequest struct {
	Model          string          `json:"model"`
	Messages       []ChatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
}

// ChatMessage represents a message in the conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ResponseFormat specifies the expected response format.
type ResponseFormat struct {
	Type string `json:"type"`
}

// ChatResponse represents an OpenAI-compatible chat completion response.
type ChatResponse struct {
	Choices []struct {
		Message ChatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// NewLLMClient creates a fallback client with the given configuration.
func NewLLMClient(config *LLMConfig) *LLMClient {
	return &LLMClient{
		config: *config,
		http: &http.Client{
			Timeout: time.Duration(config.TimeoutSecs) * time.Second,
		},
	}
}

// ExtractVotes asks the model to enumerate every vote in the minutes.
// Long minutes are chunked to the context window; votes from later chunks
// for already-seen items are dropped (the chunks overlap). Each candidate
// entry is validated independently; malformed entries are skipped with a
// note rather than aborting the whole response.
func (c *LLMClient) ExtractVotes(ctx context.Context, minutes, agenda string) ([]VoteRecord, []string, error) {
	input := minutes
	if strings.TrimSpace(agenda) != "" {
		input = "AGENDA:\n" + agenda + "\n\nMINUTES:\n" + minutes
	}

	var votes []VoteRecord
	var notes []string
	seen := map[string]bool{}
	for i, chunk := range ChunkMinutes(input, c.config.ContextWindow) {
		chunkVotes, chunkNotes, err := c.extractChunk(ctx, chunk)
		if err != nil {
			return votes, notes, fmt.Errorf("chunk %d: %w", i+1, err)
		}
		notes = append(notes, chunkNotes...)
		for _, v := range chunkVotes {
			if seen[v.AgendaItemNumber] {
				continue
			}
			seen[v.AgendaItemNumber] = true
			votes = append(votes, v)
		}
	}
	return votes, notes, nil
}

// extractChunk runs one completion with retry on transient failure.
func (c *LLMClient) extractChunk(ctx context.Context, text string) ([]VoteRecord, []string, error) {
	req := ChatRequest{
		Model: c.config.Model,
		Messages: []ChatMessage{
			{Role: "system", Content: votePromptV1},
			{Role: "user", Content: fmt.Sprintf("Extract votes from these minutes:\n\n---\n%s\n---\n\nReturn JSON matching the schema.", text)},
		},
		Temperature:    0.1,
		ResponseFormat: &ResponseFormat{Type: "json_object"},
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		votes, notes, err := c.attemptExtraction(ctx, req)
		if err == nil {
			return votes, notes, nil
		}
		lastErr = err
		if attempt == c.config.MaxRetries {
			break
		}

		// Exponential backoff: 1s, 2s, 4s
		backoffDuration := time.Duration(1<<attempt) * time.Second
		if httpErr, ok := err.(*HTTPError); ok && httpErr.StatusCode == 429 {
			if retryAfter := httpErr.RetryAfter; retryAfter > 0 {
				backoffDuration = retryAfter
			}
		}

		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-time.After(backoffDuration):
		}
	}

	return nil, nil, fmt.Errorf("LLM extraction failed after %d attempts: %w", c.config.MaxRetries+1, lastErr)
}

// HTTPError represents an HTTP error with additional context.
type HTTPError struct {
	StatusCode int
	Message    string
	RetryAfter time.Duration
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// attemptExtraction makes a single extraction attempt.
func (c *LLMClient) attemptExtraction(ctx context.Context, req ChatRequest) ([]VoteRecord, []string, error) {
	resp, err := c.sendChatRequest(ctx, req)
	if err != nil {
		return nil, nil, err
	}

	if len(resp.Choices) == 0 {
		return nil, nil, fmt.Errorf("no choices in LLM response")
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	// Empty response means zero supplemental votes, not an error.
	if content == "" {
		return nil, nil, nil
	}

	return ParseVoteResponse(content)
}

// sendChatRequest sends a chat completion request to the LLM API.
func (c *LLMClient) sendChatRequest(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	requestBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.config.Endpoint, bytes.NewBuffer(requestBody))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}
	if c.config.Provider == "openrouter" {
		httpReq.Header.Set("HTTP-Referer", "https://github.com/openquorum/quorum")
		httpReq.Header.Set("X-Title", "Quorum")
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != 200 {
		var retryAfter time.Duration
		if retryAfterHeader := resp.Header.Get("Retry-After"); retryAfterHeader != "" {
			if seconds, err := strconv.Atoi(retryAfterHeader); err == nil {
				retryAfter = time.Duration(seconds) * time.Second
			}
		}
		return nil, &HTTPError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
			RetryAfter: retryAfter,
		}
	}

	var chatResp ChatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return nil, fmt.Errorf("parsing response JSON: %w", err)
	}

	return &chatResp, nil
}

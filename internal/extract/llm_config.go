package extract

import (
	"fmt"
	"os"
	"strings"
)

// LLMConfig holds fallback-provider configuration. The fallback degrades to
// "no supplemental votes" on any failure, so a missing config simply means
// regex-only extraction.
type LLMConfig struct {
	Provider      string // "ollama", "openai", "deepseek", "openrouter", "custom"
	Model         string // model name
	Endpoint      string // full API URL
	APIKey        string
	ContextWindow int // max tokens (0 = use provider default)
	MaxRetries    int // transient-failure retries (default: 1)
	TimeoutSecs   int // per-request timeout (default: 60)
}

// ParseLLMFlag parses "--llm provider/model" format.
// Handles model names with slashes and colons like
// "openrouter/google/gemini-2.0-flash-exp:free".
func ParseLLMFlag(flag string) (*LLMConfig, error) {
	if flag == "" {
		return nil, fmt.Errorf("empty LLM flag")
	}

	slashIdx := strings.Index(flag, "/")
	if slashIdx == -1 {
		return nil, fmt.Errorf("invalid --llm format: expected 'provider/model', got %q", flag)
	}

	provider := flag[:slashIdx]
	model := flag[slashIdx+1:]

	if provider == "" {
		return nil, fmt.Errorf("empty provider in --llm flag: %q", flag)
	}
	if model == "" {
		return nil, fmt.Errorf("empty model in --llm flag: %q", flag)
	}

	config := &LLMConfig{
		Provider:    provider,
		Model:       model,
		MaxRetries:  1,
		TimeoutSecs: 60,
	}

	switch provider {
	case "ollama":
		config.Endpoint = "http://localhost:11434/v1/chat/completions"
		config.ContextWindow = 4096
		// No API key needed for Ollama
	case "openai":
		config.Endpoint = "https://api.openai.com/v1/chat/completions"
		config.APIKey = os.Getenv("OPENAI_API_KEY")
		config.ContextWindow = 128000
	case "deepseek":
		config.Endpoint = "https://api.deepseek.com/v1/chat/completions"
		config.APIKey = os.Getenv("DEEPSEEK_API_KEY")
		config.ContextWindow = 64000
	case "openrouter":
		config.Endpoint = "https://openrouter.ai/api/v1/chat/completions"
		config.APIKey = os.Getenv("OPENROUTER_API_KEY")
		config.ContextWindow = 128000
	case "custom":
		config.Endpoint = os.Getenv("QUORUM_LLM_ENDPOINT")
		config.APIKey = os.Getenv("QUORUM_LLM_API_KEY")
		config.ContextWindow = 4096
	default:
		return nil, fmt.Errorf("unknown provider %q. Supported: ollama, openai, deepseek, openrouter, custom", provider)
	}

	if endpoint := os.Getenv("QUORUM_LLM_ENDPOINT"); endpoint != "" {
		config.Endpoint = endpoint
	}
	if apiKey := os.Getenv("QUORUM_LLM_API_KEY"); apiKey != "" {
		config.APIKey = apiKey
	}

	return config, nil
}

// ResolveLLMConfig resolves fallback configuration from all sources.
// Priority: CLI flag > QUORUM_LLM env var > city profile.
func ResolveLLMConfig(cliFlag, profileFlag string) (*LLMConfig, error) {
	if cliFlag != "" {
		return ParseLLMFlag(cliFlag)
	}
	if envLLM := os.Getenv("QUORUM_LLM"); envLLM != "" {
		config, err := ParseLLMFlag(envLLM)
		if err != nil {
			return nil, fmt.Errorf("parsing QUORUM_LLM env var: %w", err)
		}
		return config, nil
	}
	if profileFlag != "" {
		return ParseLLMFlag(profileFlag)
	}
	return nil, nil // No LLM configured; regex-only extraction.
}

// Validate checks if the LLM configuration is valid and complete.
func (c *LLMConfig) Validate() error {
	if c.Provider == "" {
		return fmt.Errorf("provider is required")
	}
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	if c.Endpoint == "" {
		return fmt.Errorf("endpoint is required")
	}
	if c.Provider != "ollama" && c.APIKey == "" {
		return fmt.Errorf("API key is required for provider %q (set via environment variable)", c.Provider)
	}
	if c.ContextWindow <= 0 {
		return fmt.Errorf("context window must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.TimeoutSecs <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	return nil
}

// Package ai talks to hosted and local LLMs for the marketplace assistant.
package ai

import (
	"context"
	"fmt"
	"strings"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message in a conversation.
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// ChatModel answers the last user turn given the conversation so far.
// Gemini, Ollama and OpenAI-compatible providers implement it.
type ChatModel interface {
	Chat(ctx context.Context, systemPrompt string, turns []Turn) (string, error)
}

// ProviderConfig selects and configures one provider.
type ProviderConfig struct {
	Provider string // gemini | ollama | openai-compat
	APIKey   string
	BaseURL  string
	Model    string
}

// NewChatModel builds the configured provider. An empty provider returns nil
// and no error: the assistant then runs without an LLM.
func NewChatModel(cfg ProviderConfig) (ChatModel, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "":
		return nil, nil
	case "gemini":
		c, err := NewGeminiClient(cfg.APIKey, cfg.Model)
		if err != nil {
			return nil, err
		}
		if cfg.BaseURL != "" {
			c.baseURL = strings.TrimRight(cfg.BaseURL, "/")
		}
		return c, nil
	case "ollama":
		c, err := NewOllamaClient(cfg.BaseURL, cfg.Model)
		if err != nil {
			return nil, err
		}
		return c, nil
	case "openai-compat", "openai_compat", "openai":
		c, err := NewOpenAICompatClient(cfg.BaseURL, cfg.APIKey, cfg.Model)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
}

// nonEmptyTurns drops blank turns and unknown roles.
func nonEmptyTurns(turns []Turn) []Turn {
	out := make([]Turn, 0, len(turns))
	for _, t := range turns {
		if strings.TrimSpace(t.Text) == "" {
			continue
		}
		if t.Role != RoleUser && t.Role != RoleAssistant {
			continue
		}
		out = append(out, t)
	}
	return out
}

// Package llm adapts the eino chat-model providers to the narrow
// completion contract the interview engine needs: one synchronous call
// and one streaming call, both fed with the full per-session history.
// The backend itself is stateless between calls.
package llm

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"aiinterviewer/internal/config"
	"aiinterviewer/internal/models"
)

// Client wraps one configured chat model.
type Client struct {
	chatModel model.BaseChatModel
	log       *zap.Logger
}

// NewClient builds the chat model for the configured provider.
func NewClient(ctx context.Context, cfg config.LLMConfig, log *zap.Logger) (*Client, error) {
	var (
		chatModel model.BaseChatModel
		err       error
	)

	switch cfg.Provider {
	case "openai":
		chatModel, err = openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			APIKey:  cfg.APIKey,
		})
	case "gemini":
		var client *genai.Client
		client, err = genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  cfg.APIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("create genai client: %w", err)
		}
		chatModel, err = gemini.NewChatModel(ctx, &gemini.Config{
			Client: client,
			Model:  cfg.Model,
		})
	case "claude":
		var baseURLPtr *string
		if cfg.BaseURL != "" {
			baseURLPtr = &cfg.BaseURL
		}
		chatModel, err = claude.NewChatModel(ctx, &claude.Config{
			APIKey:    cfg.APIKey,
			Model:     cfg.Model,
			BaseURL:   baseURLPtr,
			MaxTokens: 3000,
		})
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("init %s chat model: %w", cfg.Provider, err)
	}

	if log == nil {
		log = zap.NewNop()
	}
	return &Client{chatModel: chatModel, log: log}, nil
}

// Complete sends system prompt + history + user turn and returns the
// assistant reply as plain text.
func (c *Client) Complete(ctx context.Context, system string, history []*models.Message, user string) (string, error) {
	resp, err := c.chatModel.Generate(ctx, convertMessages(system, history, user))
	if err != nil {
		return "", fmt.Errorf("llm generate: %w", err)
	}
	if resp.Content == "" {
		return "", errors.New("llm returned empty response")
	}
	return resp.Content, nil
}

// CompleteStream streams the assistant reply, invoking onDelta for every
// received chunk in arrival order, and returns the accumulated full text
// once the stream ends. A mid-stream transport error discards the
// accumulation and is returned as-is so the caller can retry the turn.
func (c *Client) CompleteStream(ctx context.Context, system string, history []*models.Message, user string, onDelta func(delta string) error) (string, error) {
	streamReader, err := c.chatModel.Stream(ctx, convertMessages(system, history, user))
	if err != nil {
		return "", fmt.Errorf("llm stream: %w", err)
	}
	defer streamReader.Close()

	var full string
	for {
		chunk, err := streamReader.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("llm stream recv: %w", err)
		}
		if chunk.Content == "" {
			continue
		}
		full += chunk.Content
		if onDelta != nil {
			if err := onDelta(chunk.Content); err != nil {
				return "", err
			}
		}
	}
	if full == "" {
		return "", errors.New("llm returned empty stream")
	}
	return full, nil
}

func convertMessages(system string, history []*models.Message, user string) []*schema.Message {
	messages := make([]*schema.Message, 0, len(history)+2)
	if system != "" {
		messages = append(messages, &schema.Message{Role: schema.System, Content: system})
	}
	for _, msg := range history {
		var role schema.RoleType
		switch msg.Role {
		case models.RoleAssistant:
			role = schema.Assistant
		case models.RoleSystem:
			role = schema.System
		default:
			role = schema.User
		}
		messages = append(messages, &schema.Message{Role: role, Content: msg.Content})
	}
	if user != "" {
		messages = append(messages, &schema.Message{Role: schema.User, Content: user})
	}
	return messages
}

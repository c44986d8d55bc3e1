// Package transcribe converts validated WAV audio into text through the
// Gemini API. Transcription runs with zero temperature and a fixed model
// so repeated attempts over the same bytes stay reproducible.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"aiinterviewer/internal/config"
)

const (
	defaultModel = "gemini-2.5-flash"

	transcribePrompt = "Transcribe the spoken audio verbatim. Output only the transcription text, nothing else."
)

// Gateway is a thin transcription client.
type Gateway struct {
	client *genai.Client
	model  string
	log    *zap.Logger
}

// NewGateway creates the gateway for the configured backend.
func NewGateway(ctx context.Context, cfg config.TranscriptionConfig, log *zap.Logger) (*Gateway, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("transcription api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Gateway{client: client, model: model, log: log}, nil
}

// Transcribe converts validated WAV bytes into text. The caller is
// responsible for running the audio validator first.
func (g *Gateway) Transcribe(ctx context.Context, wav []byte) (string, error) {
	contents := []*genai.Content{{
		Role: genai.RoleUser,
		Parts: []*genai.Part{
			{InlineData: &genai.Blob{MIMEType: "audio/wav", Data: wav}},
			{Text: transcribePrompt},
		},
	}}
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0),
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("transcribe audio: %w", err)
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil || part.Text == "" {
				continue
			}
			builder.WriteString(part.Text)
		}
	}

	text := strings.TrimSpace(builder.String())
	if text == "" {
		return "", errors.New("transcription backend returned empty text")
	}
	g.log.Debug("transcribed audio", zap.Int("bytes", len(wav)), zap.Int("chars", len(text)))
	return text, nil
}

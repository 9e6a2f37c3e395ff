package chat

import (
	"context"
	"fmt"
	"os"
	"strings"

	"google.golang.org/genai"
)

const (
	defaultGeminiModel = "gemini-2.5-flash"

	systemPrompt = `You are a laboratory assistant for a microplastic identification tool.
You receive the result of a UV-Vis absorbance analysis: the matched reference material,
its polymer and colorant, match confidence, and the detected absorption peaks in nanometres.
Explain in plain language what the peaks suggest about the sample and how far the result
can be trusted. Do not invent measurements that were not provided.
Keep the answer under 120 words.`
)

type GeminiClient struct {
	client *genai.Client
	model  string
}

// NewGeminiClient builds a client from GEMINI_API_KEY. GEMINI_MODEL
// overrides the default model.
func NewGeminiClient(ctx context.Context) (*GeminiClient, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := strings.TrimSpace(os.Getenv("GEMINI_MODEL"))
	if model == "" {
		model = defaultGeminiModel
	}

	return &GeminiClient{client: client, model: model}, nil
}

func generationConfig() *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleModel),
		Temperature:       genai.Ptr(float32(0.3)),
		TopP:              genai.Ptr(float32(0.8)),
		TopK:              genai.Ptr(float32(40)),
		MaxOutputTokens:   int32(200),
	}
}

func (g *GeminiClient) GenerateResponse(ctx context.Context, message string) (string, error) {
	resp, err := g.client.Models.GenerateContent(
		ctx,
		g.model,
		[]*genai.Content{genai.NewContentFromText(message, genai.RoleUser)},
		generationConfig(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("empty response from %s", g.model)
	}
	return strings.ReplaceAll(text, "*", ""), nil
}

// GenerateResponseStream delivers the answer in chunks as they arrive.
func (g *GeminiClient) GenerateResponseStream(ctx context.Context, message string, onChunk func(string) error) error {
	stream := g.client.Models.GenerateContentStream(
		ctx,
		g.model,
		[]*genai.Content{genai.NewContentFromText(message, genai.RoleUser)},
		generationConfig(),
	)

	for resp, err := range stream {
		if err != nil {
			return fmt.Errorf("stream error: %w", err)
		}

		text := resp.Text()
		if text == "" {
			continue
		}
		if err := onChunk(strings.ReplaceAll(text, "*", "")); err != nil {
			return fmt.Errorf("chunk callback error: %w", err)
		}
	}

	return nil
}

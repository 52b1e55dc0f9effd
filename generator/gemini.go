package generator

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"auto_social_post_publisher/extract"
)

// Gemini implements Generator using the Google GenAI SDK.
type Gemini struct {
	client *genai.Client
}

func NewGemini(ctx context.Context, s Settings) (*Gemini, error) {
	if s.APIKey == "" {
		return nil, errors.New("gemini api key missing; provide llm.api_key or GEMINI_API_KEY")
	}
	cfg := &genai.ClientConfig{
		APIKey:  s.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if s.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: s.BaseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &Gemini{client: client}, nil
}

// Generate returns the content of the response as a tree: candidates with
// their text parts, plus a callable "text" accessor backed by the SDK's own
// concatenation. Transport headers, IDs, model versions and finish reasons
// are left out so they can never be mistaken for post text.
func (g *Gemini) Generate(ctx context.Context, req Request) (*extract.Node, error) {
	resp, err := g.client.Models.GenerateContent(ctx, req.Model, genai.Text(req.Prompt), &genai.GenerateContentConfig{
		MaxOutputTokens: int32(req.MaxOutputTokens),
	})
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}
	if resp == nil {
		return extract.Null(), nil
	}
	return geminiTree(resp), nil
}

func geminiTree(resp *genai.GenerateContentResponse) *extract.Node {
	candidates := extract.Sequence()
	for _, c := range resp.Candidates {
		parts := extract.Sequence()
		if c != nil && c.Content != nil {
			for _, p := range c.Content.Parts {
				// Thought summaries are not part of the answer.
				if p == nil || p.Thought || p.Text == "" {
					continue
				}
				parts.Append(extract.Mapping().Set("text", extract.String(p.Text)))
			}
		}
		candidates.Append(extract.Mapping().Set("content", extract.Mapping().Set("parts", parts)))
	}
	return extract.Mapping().
		Set("text", extract.Callable(func() (string, error) {
			return resp.Text(), nil
		})).
		Set("candidates", candidates)
}

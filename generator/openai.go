package generator

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/tidwall/gjson"

	"auto_social_post_publisher/extract"
)

// OpenAI implements Generator using the official openai-go SDK (chat completions).
// It also serves OpenAI-compatible endpoints such as DeepSeek.
type OpenAI struct {
	Opts []option.RequestOption
}

func NewOpenAI(s Settings) (*OpenAI, error) {
	if s.APIKey == "" {
		return nil, errors.New("openai api key missing; provide llm.api_key or OPENAI_API_KEY")
	}
	// Retries belong to the pipeline, not the SDK.
	opts := []option.RequestOption{option.WithAPIKey(s.APIKey), option.WithMaxRetries(0)}
	if s.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(s.BaseURL))
	}
	return &OpenAI{Opts: opts}, nil
}

func (o *OpenAI) Generate(ctx context.Context, req Request) (*extract.Node, error) {
	client := openai.NewClient(o.Opts...)

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(req.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(req.Prompt),
		},
	}
	if req.MaxOutputTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxOutputTokens))
	}

	resp, err := client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai generate: %w", err)
	}

	return openAITree(resp.RawJSON()), nil
}

// openAITree keeps only the message contents of each choice. Completion IDs,
// model names, roles and finish reasons never reach the extractor.
func openAITree(raw string) *extract.Node {
	contents := gjson.Get(raw, "choices.#.message.content")
	candidates := extract.Sequence()
	for _, item := range extract.FromJSON([]byte(contents.Raw)).Items() {
		candidates.Append(extract.Mapping().Set("content", item))
	}
	root := extract.Mapping()
	if first := gjson.Get(raw, "choices.0.message.content"); first.Type == gjson.String {
		content := first.Str
		root.Set("text", extract.Callable(func() (string, error) {
			return content, nil
		}))
	}
	return root.Set("candidates", candidates)
}

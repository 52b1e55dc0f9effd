package generator

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"auto_social_post_publisher/extract"
)

// ErrModelUnavailable marks errors that no retry can fix: the requested
// model does not exist or the caller has no access to it.
var ErrModelUnavailable = errors.New("model unavailable")

// DefaultNonRetryablePattern matches provider errors that mean the model is
// not available to the caller.
const DefaultNonRetryablePattern = `(?i)not[ _]found|404|model.*not`

// Request is a single generation call. It is built once per attempt and not
// modified afterwards.
type Request struct {
	Prompt          string
	Model           string
	MaxOutputTokens int
}

// Generator 抽象大模型客户端，便于替换/Mock。
// 实现只返回响应内容树，文本定位交给 extract 包。
type Generator interface {
	Generate(ctx context.Context, req Request) (*extract.Node, error)
}

// Settings 提供给具体实现的基础配置。
type Settings struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
}

// New builds the Generator for the configured provider.
func New(ctx context.Context, s Settings) (Generator, error) {
	switch s.Provider {
	case "gemini", "":
		return NewGemini(ctx, s)
	case "openai":
		return NewOpenAI(s)
	case "deepseek":
		// DeepSeek exposes an OpenAI-compatible endpoint; base_url is mandatory.
		if s.BaseURL == "" {
			return nil, fmt.Errorf("llm provider deepseek requires base_url (OpenAI-compatible endpoint)")
		}
		return NewOpenAI(s)
	case "mock":
		return Mock{}, nil
	default:
		return nil, fmt.Errorf("llm provider %s not supported", s.Provider)
	}
}

// Classifier reports whether a generation error is non-retryable.
type Classifier func(error) bool

// PatternClassifier treats errors wrapping ErrModelUnavailable, or whose
// message matches pattern, as non-retryable.
func PatternClassifier(pattern string) (Classifier, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compile non-retryable pattern: %w", err)
	}
	return func(err error) bool {
		if err == nil {
			return false
		}
		if errors.Is(err, ErrModelUnavailable) {
			return true
		}
		return re.MatchString(err.Error())
	}, nil
}

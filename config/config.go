package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"auto_social_post_publisher/generator"
	"auto_social_post_publisher/pipeline"
	"auto_social_post_publisher/publisher"
)

// DefaultPath is read when --config is not given. A missing file at this
// path is not an error; defaults and environment variables apply.
const DefaultPath = "config/config.yaml"

//go:embed default_prompt.txt
var defaultPrompt string

type Config struct {
	LLM        LLMConfig    `yaml:"llm"`
	Post       PostConfig   `yaml:"post"`
	X          XConfig      `yaml:"x"`
	Report     ReportConfig `yaml:"report"`
	ServerAddr string       `yaml:"server_addr"`
}

type LLMConfig struct {
	Provider        string `yaml:"provider"` // gemini, openai, deepseek, mock
	Model           string `yaml:"model"`
	APIKey          string `yaml:"api_key"`
	BaseURL         string `yaml:"base_url"`
	MaxOutputTokens int    `yaml:"max_output_tokens"`
	Timeout         string `yaml:"timeout"`
}

type PostConfig struct {
	Prompt              string   `yaml:"prompt"`
	PromptFile          string   `yaml:"prompt_file"`
	Constraints         []string `yaml:"constraints"`
	MaxAttempts         int      `yaml:"max_attempts"`
	RetryDelay          string   `yaml:"retry_delay"`
	CharLimit           int      `yaml:"char_limit"`
	Ellipsis            string   `yaml:"ellipsis"`
	RequiredSubstring   string   `yaml:"required_substring"`
	CallToAction        string   `yaml:"call_to_action"`
	StripMarkdown       bool     `yaml:"strip_markdown"`
	NonRetryablePattern string   `yaml:"non_retryable_pattern"`
}

type XConfig struct {
	APIKey       string `yaml:"api_key"`
	APISecret    string `yaml:"api_secret"`
	AccessToken  string `yaml:"access_token"`
	AccessSecret string `yaml:"access_secret"`
	BaseURL      string `yaml:"base_url"`
	Timeout      string `yaml:"timeout"`
}

type ReportConfig struct {
	AMQPURL  string `yaml:"amqp_url"`
	Exchange string `yaml:"exchange"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		LLM: LLMConfig{
			Provider:        "gemini",
			Model:           "gemini-pro",
			MaxOutputTokens: 400,
			Timeout:         "30s",
		},
		Post: PostConfig{
			MaxAttempts:         3,
			RetryDelay:          "0s",
			CharLimit:           260,
			Ellipsis:            pipeline.DefaultEllipsis,
			RequiredSubstring:   "xlist.social",
			CallToAction:        "Discover more at %s",
			StripMarkdown:       false,
			NonRetryablePattern: generator.DefaultNonRetryablePattern,
		},
		X: XConfig{
			Timeout: "20s",
		},
		Report: ReportConfig{
			Exchange: "social.posts",
		},
		ServerAddr: ":8080",
	}
}

// Load reads the YAML file at path over the defaults, then applies
// environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse %s: %w", path, err)
			}
		case errors.Is(err, fs.ErrNotExist) && path == DefaultPath:
		default:
			return Config{}, err
		}
	}
	cfg.applyEnvOverrides()
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	keyEnv := map[string]string{
		"gemini":   "GEMINI_API_KEY",
		"openai":   "OPENAI_API_KEY",
		"deepseek": "DEEPSEEK_API_KEY",
	}
	if name, ok := keyEnv[c.LLM.Provider]; ok {
		if v := os.Getenv(name); v != "" {
			c.LLM.APIKey = v
		}
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	override(&c.X.APIKey, "X_API_KEY")
	override(&c.X.APISecret, "X_API_SECRET")
	override(&c.X.AccessToken, "X_ACCESS_TOKEN")
	override(&c.X.AccessSecret, "X_ACCESS_SECRET")
	override(&c.Report.AMQPURL, "AMQP_URL")
}

func override(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

// Validate checks the configuration. X credentials are only required when
// posts will actually be published.
func (c Config) Validate(publish bool) error {
	var errs []error
	switch c.LLM.Provider {
	case "gemini", "openai", "deepseek", "mock":
	default:
		errs = append(errs, fmt.Errorf("llm.provider %q not supported", c.LLM.Provider))
	}
	if c.LLM.Model == "" {
		errs = append(errs, errors.New("llm.model is required"))
	}
	if c.Post.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("post.max_attempts must be at least 1, got %d", c.Post.MaxAttempts))
	}
	if c.Post.CharLimit <= pipeline.Chars(c.ellipsis()) {
		errs = append(errs, fmt.Errorf("post.char_limit %d is too small", c.Post.CharLimit))
	}
	if _, err := generator.PatternClassifier(c.Post.NonRetryablePattern); err != nil {
		errs = append(errs, fmt.Errorf("post.non_retryable_pattern: %w", err))
	}
	for _, d := range []struct{ name, value string }{
		{"llm.timeout", c.LLM.Timeout},
		{"post.retry_delay", c.Post.RetryDelay},
		{"x.timeout", c.X.Timeout},
	} {
		if _, err := parseDuration(d.value); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", d.name, err))
		}
	}
	if publish && (c.X.APIKey == "" || c.X.APISecret == "" || c.X.AccessToken == "" || c.X.AccessSecret == "") {
		errs = append(errs, errors.New("x credentials missing; set x.* or X_API_KEY/X_API_SECRET/X_ACCESS_TOKEN/X_ACCESS_SECRET"))
	}
	return errors.Join(errs...)
}

func (c Config) ellipsis() string {
	if c.Post.Ellipsis == "" {
		return pipeline.DefaultEllipsis
	}
	return c.Post.Ellipsis
}

// Prompt returns the full prompt text: the configured or built-in base
// prompt followed by the hard requirements.
func (c Config) Prompt() (string, error) {
	base := c.Post.Prompt
	if c.Post.PromptFile != "" {
		data, err := os.ReadFile(c.Post.PromptFile)
		if err != nil {
			return "", fmt.Errorf("read prompt file: %w", err)
		}
		base = string(data)
	}
	if strings.TrimSpace(base) == "" {
		base = defaultPrompt
	}
	return generator.BuildPrompt(generator.PromptSpec{
		Base:        base,
		CharLimit:   c.Post.CharLimit,
		Required:    c.Post.RequiredSubstring,
		Constraints: c.Post.Constraints,
	}), nil
}

func (c Config) GeneratorSettings() generator.Settings {
	return generator.Settings{
		Provider: c.LLM.Provider,
		Model:    c.LLM.Model,
		APIKey:   c.LLM.APIKey,
		BaseURL:  c.LLM.BaseURL,
	}
}

func (c Config) PublisherConfig() (publisher.Config, error) {
	timeout, err := parseDuration(c.X.Timeout)
	if err != nil {
		return publisher.Config{}, fmt.Errorf("x.timeout: %w", err)
	}
	return publisher.Config{
		APIKey:       c.X.APIKey,
		APISecret:    c.X.APISecret,
		AccessToken:  c.X.AccessToken,
		AccessSecret: c.X.AccessSecret,
		BaseURL:      c.X.BaseURL,
		Timeout:      timeout,
	}, nil
}

// PipelineConfig converts the file configuration into the pipeline's
// immutable runtime configuration.
func (c Config) PipelineConfig(dryRun bool) (pipeline.Config, error) {
	prompt, err := c.Prompt()
	if err != nil {
		return pipeline.Config{}, err
	}
	classify, err := generator.PatternClassifier(c.Post.NonRetryablePattern)
	if err != nil {
		return pipeline.Config{}, err
	}
	genTimeout, err := parseDuration(c.LLM.Timeout)
	if err != nil {
		return pipeline.Config{}, fmt.Errorf("llm.timeout: %w", err)
	}
	retryDelay, err := parseDuration(c.Post.RetryDelay)
	if err != nil {
		return pipeline.Config{}, fmt.Errorf("post.retry_delay: %w", err)
	}
	pubTimeout, err := parseDuration(c.X.Timeout)
	if err != nil {
		return pipeline.Config{}, fmt.Errorf("x.timeout: %w", err)
	}
	return pipeline.Config{
		Prompt:          prompt,
		Model:           c.LLM.Model,
		MaxOutputTokens: c.LLM.MaxOutputTokens,
		MaxAttempts:     c.Post.MaxAttempts,
		RetryDelay:      retryDelay,
		GenerateTimeout: genTimeout,
		PublishTimeout:  pubTimeout,
		DryRun:          dryRun,
		Format: pipeline.Format{
			CharLimit:     c.Post.CharLimit,
			Ellipsis:      c.ellipsis(),
			Required:      c.Post.RequiredSubstring,
			CallToAction:  c.Post.CallToAction,
			StripMarkdown: c.Post.StripMarkdown,
		},
		NonRetryable: classify,
	}, nil
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}

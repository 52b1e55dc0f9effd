package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dghubble/oauth1"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

const (
	defaultBaseURL  = "https://api.twitter.com"
	createTweetPath = "/2/tweets"
	maxBodyBytes    = 1 << 20
)

// ErrRejected wraps non-2xx answers from the X API.
var ErrRejected = errors.New("post rejected")

// Config holds the X app credentials (OAuth 1.0a user context).
type Config struct {
	APIKey       string
	APISecret    string
	AccessToken  string
	AccessSecret string
	// BaseURL overrides the API host, mainly for tests.
	BaseURL string
	Timeout time.Duration
}

type createTweetReq struct {
	Text string `json:"text"`
}

// X posts text to X via the v2 API.
type X struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// New creates an X publisher with a signing HTTP client.
func New(cfg Config, logger *zap.Logger) (*X, error) {
	if cfg.APIKey == "" || cfg.APISecret == "" || cfg.AccessToken == "" || cfg.AccessSecret == "" {
		return nil, errors.New("x config must include api_key, api_secret, access_token and access_secret")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	oc := oauth1.NewConfig(cfg.APIKey, cfg.APISecret)
	client := oc.Client(context.Background(), oauth1.NewToken(cfg.AccessToken, cfg.AccessSecret))
	client.Timeout = cfg.Timeout

	return &X{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  client,
		logger:  logger,
	}, nil
}

// Publish creates one post and returns its ID. It does not retry.
func (x *X) Publish(ctx context.Context, text string) (string, error) {
	body, err := json.Marshal(createTweetReq{Text: text})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, x.baseURL+createTweetPath, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := x.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("post to x: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("read x response: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("%w: %d %s", ErrRejected, resp.StatusCode, errorDetail(data))
	}

	id := gjson.GetBytes(data, "data.id").String()
	if id == "" {
		return "", fmt.Errorf("x response missing data.id: %s", strings.TrimSpace(string(data)))
	}
	x.logger.Info("post created", zap.String("post_id", id))
	return id, nil
}

// X API 的错误体格式不统一：v2 问题报告用 detail/title，
// 旧接口用 errors[].message，这里按顺序取第一个非空字段。
func errorDetail(data []byte) string {
	for _, path := range []string{"detail", "title", "errors.0.message"} {
		if v := gjson.GetBytes(data, path).String(); v != "" {
			return v
		}
	}
	return strings.TrimSpace(string(data))
}

package generator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auto_social_post_publisher/extract"
)

func TestPatternClassifier(t *testing.T) {
	classify, err := PatternClassifier(DefaultNonRetryablePattern)
	require.NoError(t, err)

	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("connection reset by peer"), false},
		{errors.New("Error 503, Message: overloaded"), false},
		{errors.New("models/gemini-9 is NOT FOUND for API version v1beta"), true},
		{errors.New("Error 404, Message: ..., Status: NOT_FOUND"), true},
		{errors.New("the model `x` does not exist"), true},
		{fmt.Errorf("wrapped: %w", ErrModelUnavailable), true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, classify(tt.err), "%v", tt.err)
	}
}

func TestPatternClassifierInvalid(t *testing.T) {
	_, err := PatternClassifier("(")
	assert.Error(t, err)
}

func TestNewProviders(t *testing.T) {
	ctx := context.Background()

	g, err := New(ctx, Settings{Provider: "mock"})
	require.NoError(t, err)
	assert.IsType(t, Mock{}, g)

	_, err = New(ctx, Settings{Provider: "deepseek", APIKey: "k"})
	assert.ErrorContains(t, err, "base_url")

	_, err = New(ctx, Settings{Provider: "openai"})
	assert.ErrorContains(t, err, "api key")

	_, err = New(ctx, Settings{Provider: "gemini"})
	assert.ErrorContains(t, err, "api key")

	_, err = New(ctx, Settings{Provider: "claude", APIKey: "k"})
	assert.ErrorContains(t, err, "not supported")
}

func TestMockShape(t *testing.T) {
	root, err := Mock{}.Generate(context.Background(), Request{Model: "m"})
	require.NoError(t, err)

	got, err := extract.Extract(root)
	require.NoError(t, err)
	assert.Equal(t, extract.FromContentParts, got.Provenance)
	assert.Contains(t, got.Text, "xlist.social")
}

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt(PromptSpec{
		Base:        "  Write a post.  ",
		CharLimit:   260,
		Required:    "xlist.social",
		Constraints: []string{"Use 2-3 hashtags", " "},
	})

	assert.Contains(t, p, "Write a post.\n\nHard requirements:\n")
	assert.Contains(t, p, "- Maximum 260 characters.\n")
	assert.Contains(t, p, "- Must include: xlist.social\n")
	assert.Contains(t, p, "- Use 2-3 hashtags\n")
	assert.NotContains(t, p, "- \n")
}

func TestOpenAIGenerate(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"c1","object":"chat.completion","created":1,"model":"gpt-4o-mini",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"Grow your network at xlist.social"}}]}`)
	}))
	defer srv.Close()

	g, err := NewOpenAI(Settings{APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	root, err := g.Generate(context.Background(), Request{Prompt: "p", Model: "gpt-4o-mini", MaxOutputTokens: 100})
	require.NoError(t, err)
	assert.Equal(t, "/chat/completions", gotPath)

	got, err := extract.Extract(root)
	require.NoError(t, err)
	assert.Equal(t, "Grow your network at xlist.social", got.Text)
	assert.Equal(t, extract.FromFastPath, got.Provenance)
}

func TestOpenAIGenerateModelMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":{"message":"The model does not exist","type":"invalid_request_error","code":"model_not_found"}}`)
	}))
	defer srv.Close()

	g, err := NewOpenAI(Settings{APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = g.Generate(context.Background(), Request{Prompt: "p", Model: "nope"})
	require.Error(t, err)

	classify, cerr := PatternClassifier(DefaultNonRetryablePattern)
	require.NoError(t, cerr)
	assert.True(t, classify(err))
}

func TestGeminiGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":"Great tip!"}]},"finishReason":"STOP"}]}`)
	}))
	defer srv.Close()

	g, err := NewGemini(context.Background(), Settings{APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	root, err := g.Generate(context.Background(), Request{Prompt: "p", Model: "gemini-pro", MaxOutputTokens: 400})
	require.NoError(t, err)

	got, err := extract.Extract(root)
	require.NoError(t, err)
	assert.Equal(t, "Great tip!", got.Text)

	parts := root.Path("candidates")
	require.Equal(t, extract.KindSequence, parts.Kind())
	assert.Len(t, parts.Items(), 1)
}

func TestGeminiEmptyResponseHasNoText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Request-Id", "req-123")
		fmt.Fprint(w, `{"candidates":[{"content":{"role":"model"},"finishReason":"MAX_TOKENS"}],
			"responseId":"resp-abc","modelVersion":"gemini-pro-001"}`)
	}))
	defer srv.Close()

	g, err := NewGemini(context.Background(), Settings{APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	root, err := g.Generate(context.Background(), Request{Prompt: "p", Model: "gemini-pro"})
	require.NoError(t, err)

	_, err = extract.Extract(root)
	assert.ErrorIs(t, err, extract.ErrNotFound)
	assert.Equal(t, []string{"text", "candidates"}, root.Keys())
}

func TestGeminiSkipsThoughtParts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"candidates":[{"content":{"role":"model","parts":[
			{"text":"Planning the post","thought":true},{"text":"Follow more builders"}]}}]}`)
	}))
	defer srv.Close()

	g, err := NewGemini(context.Background(), Settings{APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	root, err := g.Generate(context.Background(), Request{Prompt: "p", Model: "gemini-pro"})
	require.NoError(t, err)

	parts := root.Path("candidates").Items()[0].Path("content", "parts").Items()
	require.Len(t, parts, 1)
	s, _ := parts[0].Get("text").Text()
	assert.Equal(t, "Follow more builders", s)
}

func TestOpenAIEmptyContentHasNoText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"chatcmpl-9xYz","object":"chat.completion","created":1,"model":"gpt-4o-mini",
			"choices":[{"index":0,"finish_reason":"length","message":{"role":"assistant","content":""}}]}`)
	}))
	defer srv.Close()

	g, err := NewOpenAI(Settings{APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	root, err := g.Generate(context.Background(), Request{Prompt: "p", Model: "gpt-4o-mini"})
	require.NoError(t, err)

	_, err = extract.Extract(root)
	assert.ErrorIs(t, err, extract.ErrNotFound)
}

func TestOpenAITreeKeepsOnlyContents(t *testing.T) {
	root := openAITree(`{"id":"c1","model":"m","choices":[
		{"index":0,"message":{"role":"assistant","content":null}},
		{"index":1,"message":{"role":"assistant","content":"Second choice"}}]}`)

	assert.Equal(t, extract.KindNull, root.Get("text").Kind())
	got, err := extract.Extract(root)
	require.NoError(t, err)
	assert.Equal(t, "Second choice", got.Text)
	assert.Equal(t, 1, got.Candidate)
}

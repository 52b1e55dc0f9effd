package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"auto_social_post_publisher/extract"
	"auto_social_post_publisher/generator"
)

var (
	// ErrAttemptsExhausted means every generation attempt failed or
	// produced no usable text.
	ErrAttemptsExhausted = errors.New("generation attempts exhausted")
	ErrNoPublisher       = errors.New("publisher not configured")
	ErrInternal          = errors.New("internal error")
)

const reportTimeout = 10 * time.Second

// Publisher posts the final text. It returns the provider's post ID.
type Publisher interface {
	Publish(ctx context.Context, text string) (string, error)
}

// Reporter receives every finished run.
type Reporter interface {
	Report(ctx context.Context, res Result) error
}

// Config is fixed at construction and never modified by the pipeline.
type Config struct {
	Prompt          string
	Model           string
	MaxOutputTokens int
	MaxAttempts     int
	RetryDelay      time.Duration
	GenerateTimeout time.Duration
	PublishTimeout  time.Duration
	// DryRun makes Run behave like Preview.
	DryRun bool
	Format Format
	// NonRetryable decides which generation errors abort all attempts.
	NonRetryable generator.Classifier
}

// Pipeline generates one post and publishes it.
type Pipeline struct {
	cfg    Config
	gen    generator.Generator
	pub    Publisher
	rep    Reporter
	logger *zap.Logger
}

// New validates cfg and wires the collaborators. pub may be nil when the
// pipeline is only used for previews; rep and logger are optional.
func New(cfg Config, gen generator.Generator, pub Publisher, rep Reporter, logger *zap.Logger) (*Pipeline, error) {
	if gen == nil {
		return nil, errors.New("generator is required")
	}
	if cfg.MaxAttempts < 1 {
		return nil, fmt.Errorf("max attempts must be at least 1, got %d", cfg.MaxAttempts)
	}
	if cfg.Format.Ellipsis == "" {
		cfg.Format.Ellipsis = DefaultEllipsis
	}
	if cfg.Format.CharLimit <= Chars(cfg.Format.Ellipsis) {
		return nil, fmt.Errorf("char limit %d must exceed the ellipsis length", cfg.Format.CharLimit)
	}
	if cfg.NonRetryable == nil {
		classify, err := generator.PatternClassifier(generator.DefaultNonRetryablePattern)
		if err != nil {
			return nil, err
		}
		cfg.NonRetryable = classify
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{cfg: cfg, gen: gen, pub: pub, rep: rep, logger: logger}, nil
}

// Run executes generate, normalize and publish once. The publisher is called
// at most once and only when usable text survived normalization.
func (p *Pipeline) Run(ctx context.Context) Result {
	return p.run(ctx, !p.cfg.DryRun)
}

// Preview executes generate and normalize without publishing.
func (p *Pipeline) Preview(ctx context.Context) Result {
	return p.run(ctx, false)
}

func (p *Pipeline) run(ctx context.Context, publish bool) (res Result) {
	res = Result{RunID: uuid.NewString(), StartedAt: time.Now()}
	log := p.logger.With(zap.String("run_id", res.RunID))

	defer func() {
		if r := recover(); r != nil {
			log.Error("pipeline panicked", zap.Any("panic", r), zap.Stack("stack"))
			res = res.fail(StageInternal, fmt.Errorf("%w: %v", ErrInternal, r))
		}
		res.FinishedAt = time.Now()
		p.finish(ctx, log, res)
	}()

	text, attempts, err := p.generate(ctx, log)
	res.Attempts = attempts
	if err != nil {
		return res.fail(StageGenerate, err)
	}
	res.Provenance = text.String()

	norm, err := Normalize(text.Text, p.cfg.Format)
	if err != nil {
		return res.fail(StageValidate, err)
	}
	log.Debug("normalized text",
		zap.Int("chars_in", Chars(text.Text)),
		zap.Int("chars_out", norm.Chars),
		zap.Bool("truncated", norm.Truncated),
		zap.Bool("cta_appended", norm.CTAAppended))
	res.Text, res.Chars = norm.Text, norm.Chars
	res.Truncated, res.CTAAppended = norm.Truncated, norm.CTAAppended

	if !publish {
		res.Status = StatusPreview
		return res
	}
	if p.pub == nil {
		return res.fail(StagePublish, ErrNoPublisher)
	}

	pctx, cancel := withTimeout(ctx, p.cfg.PublishTimeout)
	defer cancel()
	postID, err := p.pub.Publish(pctx, norm.Text)
	if err != nil {
		return res.fail(StagePublish, err)
	}
	res.Status = StatusPublished
	res.PostID = postID
	return res
}

// generate retries the generation call until usable text comes back, the
// attempt limit is reached, or the error classifier says to stop.
func (p *Pipeline) generate(ctx context.Context, log *zap.Logger) (extract.Text, int, error) {
	req := generator.Request{
		Prompt:          p.cfg.Prompt,
		Model:           p.cfg.Model,
		MaxOutputTokens: p.cfg.MaxOutputTokens,
	}

	var lastErr error
	attempt := 0
	for attempt < p.cfg.MaxAttempts {
		if attempt > 0 && p.cfg.RetryDelay > 0 {
			if err := sleep(ctx, p.cfg.RetryDelay); err != nil {
				return extract.Text{}, attempt, err
			}
		}
		if err := ctx.Err(); err != nil {
			return extract.Text{}, attempt, err
		}
		attempt++
		alog := log.With(zap.Int("attempt", attempt))
		alog.Debug("generating", zap.String("model", req.Model))

		raw, err := p.callGenerator(ctx, req)
		if err != nil {
			if p.cfg.NonRetryable(err) {
				alog.Error("generation failed, model unavailable; giving up", zap.Error(err))
				return extract.Text{}, attempt, fmt.Errorf("%w: %w", generator.ErrModelUnavailable, err)
			}
			alog.Warn("generation failed", zap.Error(err))
			lastErr = err
			continue
		}

		text, err := extract.Extract(raw)
		if err != nil {
			alog.Warn("no usable text in response")
			lastErr = err
			continue
		}
		alog.Info("extracted text",
			zap.String("provenance", text.String()),
			zap.Int("chars", Chars(text.Text)))
		return text, attempt, nil
	}
	return extract.Text{}, attempt, fmt.Errorf("%w (%d): %w", ErrAttemptsExhausted, attempt, lastErr)
}

func (p *Pipeline) callGenerator(ctx context.Context, req generator.Request) (*extract.Node, error) {
	gctx, cancel := withTimeout(ctx, p.cfg.GenerateTimeout)
	defer cancel()
	return p.gen.Generate(gctx, req)
}

func (p *Pipeline) finish(ctx context.Context, log *zap.Logger, res Result) {
	fields := []zap.Field{
		zap.String("status", string(res.Status)),
		zap.Int("attempts", res.Attempts),
		zap.Duration("elapsed", res.FinishedAt.Sub(res.StartedAt)),
	}
	switch {
	case res.OK():
		log.Info("run finished", append(fields,
			zap.String("post_id", res.PostID),
			zap.Int("chars", res.Chars))...)
	default:
		log.Error("run failed", append(fields,
			zap.String("stage", string(res.Stage)),
			zap.Error(res.Err))...)
	}

	if p.rep == nil {
		return
	}
	if err := p.report(ctx, res); err != nil {
		log.Warn("report outcome failed", zap.Error(err))
	}
}

// report hands res to the reporter. A panicking reporter is turned into an
// error so it cannot escape Run.
func (p *Pipeline) report(ctx context.Context, res Result) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: reporter panicked: %v", ErrInternal, r)
		}
	}()
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reportTimeout)
	defer cancel()
	return p.rep.Report(rctx, res)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

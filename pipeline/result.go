package pipeline

import "time"

// Status is the terminal state of a run.
type Status string

const (
	StatusPublished Status = "published"
	StatusPreview   Status = "preview"
	StatusFailed    Status = "failed"
)

// Stage names where a run stopped.
type Stage string

const (
	StageGenerate Stage = "generate"
	StageValidate Stage = "validate"
	StagePublish  Stage = "publish"
	StageInternal Stage = "internal"
)

// Result is the outcome of one run. Runs never return errors directly;
// failures are classified here instead.
type Result struct {
	RunID       string    `json:"run_id"`
	Status      Status    `json:"status"`
	Stage       Stage     `json:"stage,omitempty"`
	Attempts    int       `json:"attempts"`
	Provenance  string    `json:"provenance,omitempty"`
	Text        string    `json:"text,omitempty"`
	Chars       int       `json:"chars,omitempty"`
	Truncated   bool      `json:"truncated,omitempty"`
	CTAAppended bool      `json:"cta_appended,omitempty"`
	PostID      string    `json:"post_id,omitempty"`
	Error       string    `json:"error,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`

	Err error `json:"-"`
}

// OK reports whether the run produced a post or a preview.
func (r Result) OK() bool {
	return r.Status == StatusPublished || r.Status == StatusPreview
}

// Fatal reports whether the failure should end the process with a non-zero
// code. Publish errors are reported but not fatal.
func (r Result) Fatal() bool {
	return r.Status == StatusFailed && r.Stage != StagePublish
}

func (r Result) fail(stage Stage, err error) Result {
	r.Status = StatusFailed
	r.Stage = stage
	r.Err = err
	if err != nil {
		r.Error = err.Error()
	}
	return r
}

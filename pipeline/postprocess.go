package pipeline

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/rivo/uniseg"
)

var (
	// ErrEmptyText means nothing publishable was left after normalization.
	ErrEmptyText = errors.New("text is empty after normalization")
	// ErrRequiredDoesNotFit means the character limit cannot hold the
	// required substring plus the ellipsis marker.
	ErrRequiredDoesNotFit = errors.New("required substring does not fit the character limit")
)

// DefaultEllipsis is appended whenever text is cut.
const DefaultEllipsis = "..."

// Format controls how generated text is turned into a post.
type Format struct {
	// CharLimit is counted in grapheme clusters, so an emoji is one character.
	CharLimit int
	Ellipsis  string
	// Required must appear in every post when set, e.g. a canonical link.
	Required string
	// CallToAction wraps Required when it has to be appended. A %s verb is
	// replaced by Required; without one, Required is appended after it.
	CallToAction string
	// StripMarkdown renders markdown to plain text and drops wrapping
	// quotes. Off by default: text within the limit is published verbatim.
	StripMarkdown bool
}

func (f Format) ellipsis() string {
	if f.Ellipsis == "" {
		return DefaultEllipsis
	}
	return f.Ellipsis
}

func (f Format) callToAction() string {
	switch {
	case f.CallToAction == "":
		return f.Required
	case strings.Contains(f.CallToAction, "%s"):
		return fmt.Sprintf(f.CallToAction, f.Required)
	case strings.Contains(f.CallToAction, f.Required):
		return f.CallToAction
	default:
		return strings.TrimSpace(f.CallToAction) + " " + f.Required
	}
}

// Normalized is the final post text and what was done to reach it.
type Normalized struct {
	Text        string
	Chars       int
	Truncated   bool
	CTAAppended bool
}

// Normalize trims, optionally strips markdown and quotes, enforces the length limit and
// guarantees the required substring.
func Normalize(raw string, f Format) (Normalized, error) {
	body := strings.TrimSpace(raw)
	if f.StripMarkdown {
		body = unquote(strings.TrimSpace(StripMarkdown(body)))
	}
	if body == "" {
		return Normalized{}, ErrEmptyText
	}

	var out Normalized
	out.Text, out.Truncated = clip(body, f.CharLimit, f.ellipsis())

	if f.Required != "" && !strings.Contains(out.Text, f.Required) {
		text, cut, err := withRequired(body, f)
		if err != nil {
			return Normalized{}, err
		}
		out.Text, out.Truncated, out.CTAAppended = text, cut, true
	}

	if strings.TrimSpace(out.Text) == "" {
		return Normalized{}, ErrEmptyText
	}
	out.Chars = Chars(out.Text)
	return out, nil
}

// Chars counts user-perceived characters.
func Chars(s string) int {
	return uniseg.GraphemeClusterCount(s)
}

// head returns the first n grapheme clusters of s.
func head(s string, n int) string {
	if n <= 0 {
		return ""
	}
	g := uniseg.NewGraphemes(s)
	end := 0
	for i := 0; i < n && g.Next(); i++ {
		_, end = g.Positions()
	}
	return s[:end]
}

func clip(s string, limit int, ellipsis string) (string, bool) {
	if limit <= 0 || Chars(s) <= limit {
		return s, false
	}
	return head(s, limit-Chars(ellipsis)) + ellipsis, true
}

// withRequired appends the call to action, cutting the body to make room.
// When even the call to action does not fit it falls back to the bare
// required substring, and finally to the required substring alone.
func withRequired(body string, f Format) (string, bool, error) {
	limit, ell := f.CharLimit, f.ellipsis()
	ctas := []string{f.callToAction()}
	if ctas[0] != f.Required {
		ctas = append(ctas, f.Required)
	}

	for _, cta := range ctas {
		joined := body + " " + cta
		if limit <= 0 || Chars(joined) <= limit {
			return joined, false, nil
		}
		room := limit - Chars(ell) - 1 - Chars(cta)
		if room <= 0 {
			continue
		}
		kept := strings.TrimRightFunc(head(body, room), unicode.IsSpace)
		if kept == "" {
			return cta, true, nil
		}
		return kept + ell + " " + cta, true, nil
	}

	if Chars(f.Required)+Chars(ell) <= limit {
		return f.Required, true, nil
	}
	return "", false, fmt.Errorf("%w: %q needs %d characters, limit is %d",
		ErrRequiredDoesNotFit, f.Required, Chars(f.Required)+Chars(ell), limit)
}

var quotePairs = map[rune]rune{'"': '"', '“': '”', '\'': '\'', '«': '»'}

// unquote drops one pair of quotes wrapping the whole text, which models
// often add around a post.
func unquote(s string) string {
	r := []rune(s)
	if len(r) < 2 {
		return s
	}
	closing, ok := quotePairs[r[0]]
	if !ok || r[len(r)-1] != closing {
		return s
	}
	inner := string(r[1 : len(r)-1])
	if strings.ContainsRune(inner, r[0]) || strings.ContainsRune(inner, closing) {
		return s
	}
	return strings.TrimSpace(inner)
}

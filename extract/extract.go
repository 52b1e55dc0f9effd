package extract

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when no strategy located usable text.
var ErrNotFound = errors.New("no usable text in response")

// Provenance tags which strategy produced the text. Diagnostics only.
type Provenance string

const (
	FromFastPath         Provenance = "text()"
	FromText             Provenance = "candidate.text"
	FromContent          Provenance = "candidate.content"
	FromOutputs          Provenance = "candidate.outputs"
	FromMessageParts     Provenance = "candidate.message.content.parts"
	FromContentParts     Provenance = "candidate.content.parts"
	FromContentOutputs   Provenance = "candidate.content.outputs"
	FromOutputText       Provenance = "candidate.outputText"
	FromOutput           Provenance = "candidate.output"
	FromSections         Provenance = "candidate.sections"
	FromDeepSearch       Provenance = "deep-search"
	FromParentDeepSearch Provenance = "deep-search(parent)"
)

// placeholders are what a non-string object turns into when something
// upstream coerced it to text.
var placeholders = map[string]struct{}{
	"[object Object]": {},
	"<nil>":           {},
	"undefined":       {},
	"null":            {},
}

// Text is a usable, trimmed string and the strategy that found it.
type Text struct {
	Text       string
	Provenance Provenance
	// Candidate is the index of the candidate that yielded the text,
	// or -1 when the text did not come from the candidates sequence.
	Candidate int
}

func (t Text) String() string {
	if t.Candidate >= 0 {
		return fmt.Sprintf("%s[%d]", t.Provenance, t.Candidate)
	}
	return string(t.Provenance)
}

// Usable reports whether s can be published as-is after trimming.
func Usable(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	_, bad := placeholders[s]
	return !bad
}

// Extract locates plain text in a response tree. Strategies run from the most
// specific to the most generic: the fast-path accessor, each candidate, the
// top-level node treated as a candidate, then a bounded deep search. When the
// root wraps the actual response under "response", the wrapper is searched
// last as the parent level.
func Extract(root *Node) (Text, error) {
	top, parent := root, (*Node)(nil)
	if resp := root.Get("response"); resp.Kind() == KindMapping {
		top, parent = resp, root
	}

	for _, level := range []*Node{top, parent} {
		if level == nil {
			continue
		}
		if t, ok := fastPath(level); ok {
			return t, nil
		}
		for i, cand := range level.Get("candidates").Items() {
			if s, prov, ok := fromCandidate(cand); ok {
				return Text{Text: s, Provenance: prov, Candidate: i}, nil
			}
		}
		if s, prov, ok := fromCandidate(level); ok {
			return Text{Text: s, Provenance: prov, Candidate: -1}, nil
		}
	}

	if s, ok := DeepSearch(top); ok {
		return Text{Text: s, Provenance: FromDeepSearch, Candidate: -1}, nil
	}
	if parent != nil {
		if s, ok := DeepSearch(parent); ok {
			return Text{Text: s, Provenance: FromParentDeepSearch, Candidate: -1}, nil
		}
	}
	return Text{}, ErrNotFound
}

func fastPath(n *Node) (Text, bool) {
	if n.Kind() == KindCallable || n.Kind() == KindString {
		if s, ok := n.Text(); ok && Usable(s) {
			return Text{Text: strings.TrimSpace(s), Provenance: FromFastPath, Candidate: -1}, true
		}
		return Text{}, false
	}
	if acc := n.Get("text"); acc.Kind() == KindCallable || acc.Kind() == KindString {
		if s, ok := acc.Text(); ok && Usable(s) {
			return Text{Text: strings.TrimSpace(s), Provenance: FromFastPath, Candidate: -1}, true
		}
	}
	return Text{}, false
}

// fromCandidate applies the single-candidate rules in priority order.
func fromCandidate(c *Node) (string, Provenance, bool) {
	rules := []struct {
		prov Provenance
		get  func(*Node) (string, bool)
	}{
		{FromText, func(c *Node) (string, bool) { return c.Get("text").Text() }},
		{FromContent, func(c *Node) (string, bool) { return c.Get("content").Text() }},
		{FromOutputs, func(c *Node) (string, bool) { return joinParts(c.Get("outputs")) }},
		{FromMessageParts, func(c *Node) (string, bool) { return joinParts(c.Path("message", "content", "parts")) }},
		{FromContentParts, func(c *Node) (string, bool) { return joinParts(c.Path("content", "parts")) }},
		{FromContentOutputs, func(c *Node) (string, bool) { return joinParts(c.Path("content", "outputs")) }},
		{FromOutputText, func(c *Node) (string, bool) { return c.Get("outputText").Text() }},
		{FromOutput, func(c *Node) (string, bool) { return c.Get("output").Text() }},
		{FromSections, func(c *Node) (string, bool) { return joinParts(c.Get("sections")) }},
	}
	for _, r := range rules {
		if s, ok := r.get(c); ok && Usable(s) {
			return strings.TrimSpace(s), r.prov, true
		}
	}
	return "", "", false
}

// joinParts joins the text of each element of a sequence with single spaces.
// Elements are either scalars or mappings carrying a text or content field.
func joinParts(seq *Node) (string, bool) {
	if seq.Kind() != KindSequence {
		return "", false
	}
	var parts []string
	for _, item := range seq.Items() {
		s, ok := item.Text()
		if !ok {
			s, ok = item.Get("text").Text()
		}
		if !ok || !Usable(s) {
			s, ok = item.Get("content").Text()
		}
		if ok && Usable(s) {
			parts = append(parts, strings.TrimSpace(s))
		}
	}
	if len(parts) == 0 {
		return "", false
	}
	return strings.Join(parts, " "), true
}

package extract

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func textFn(s string) *Node {
	return Callable(func() (string, error) { return s, nil })
}

func TestExtractFastPath(t *testing.T) {
	root := Mapping().Set("text", textFn("  Great tip!  "))

	got, err := Extract(root)
	require.NoError(t, err)
	assert.Equal(t, "Great tip!", got.Text)
	assert.Equal(t, FromFastPath, got.Provenance)
	assert.Equal(t, -1, got.Candidate)
}

func TestExtractFastPathPlainProperty(t *testing.T) {
	root := Mapping().
		Set("text", String("top-level full text")).
		Set("candidates", Sequence(Mapping().Set("output", String("candidate output"))))

	got, err := Extract(root)
	require.NoError(t, err)
	assert.Equal(t, "top-level full text", got.Text)
	assert.Equal(t, FromFastPath, got.Provenance)
}

func TestExtractRejectsPlaceholder(t *testing.T) {
	for _, p := range []string{"[object Object]", " <nil> ", "undefined", "", "   "} {
		t.Run(p, func(t *testing.T) {
			_, err := Extract(Mapping().Set("text", textFn(p)))
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestExtractCallableFailures(t *testing.T) {
	failing := Callable(func() (string, error) { return "", errors.New("blocked") })
	panicking := Callable(func() (string, error) { panic("boom") })

	for name, n := range map[string]*Node{"error": failing, "panic": panicking} {
		t.Run(name, func(t *testing.T) {
			_, err := Extract(Mapping().Set("text", n))
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestExtractFallsThroughPlaceholderFastPath(t *testing.T) {
	root := Mapping().
		Set("text", textFn("[object Object]")).
		Set("candidates", Sequence(
			Mapping().Set("content", Mapping().Set("parts", Sequence(
				Mapping().Set("text", String("Hello")),
			))),
		))

	got, err := Extract(root)
	require.NoError(t, err)
	assert.Equal(t, "Hello", got.Text)
	assert.Equal(t, FromContentParts, got.Provenance)
	assert.Equal(t, 0, got.Candidate)
}

func TestExtractCandidateRules(t *testing.T) {
	parts := func(texts ...string) *Node {
		seq := Sequence()
		for _, s := range texts {
			seq.Append(Mapping().Set("text", String(s)))
		}
		return seq
	}

	tests := []struct {
		name string
		cand *Node
		want string
		prov Provenance
	}{
		{"text", Mapping().Set("text", String("direct")), "direct", FromText},
		{"text callable", Mapping().Set("text", textFn("called")), "called", FromText},
		{"content", Mapping().Set("content", String("body")), "body", FromContent},
		{
			"outputs mixed",
			Mapping().Set("outputs", Sequence(String("a"), Mapping().Set("content", String("b")))),
			"a b", FromOutputs,
		},
		{
			"message parts",
			Mapping().Set("message", Mapping().Set("content", Mapping().Set("parts", parts("x", "y")))),
			"x y", FromMessageParts,
		},
		{"content parts", Mapping().Set("content", Mapping().Set("parts", parts("Hello", "World"))), "Hello World", FromContentParts},
		{
			"content outputs",
			Mapping().Set("content", Mapping().Set("outputs", Sequence(String("one"), String("two")))),
			"one two", FromContentOutputs,
		},
		{"outputText", Mapping().Set("outputText", String("ot")), "ot", FromOutputText},
		{"output", Mapping().Set("output", String("o")), "o", FromOutput},
		{"sections", Mapping().Set("sections", parts("s1", "s2")), "s1 s2", FromSections},
		{
			"text wins over content",
			Mapping().Set("content", String("second")).Set("text", String("first")),
			"first", FromText,
		},
		{
			"placeholder text skipped",
			Mapping().Set("text", String("[object Object]")).Set("output", String("fallback")),
			"fallback", FromOutput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := Mapping().Set("candidates", Sequence(tt.cand))
			got, err := Extract(root)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Text)
			assert.Equal(t, tt.prov, got.Provenance)
			assert.Equal(t, 0, got.Candidate)
		})
	}
}

func TestExtractFirstUsableCandidateWins(t *testing.T) {
	root := Mapping().Set("candidates", Sequence(
		Null(),
		Mapping().Set("text", String("  ")),
		Mapping().Set("content", String("third")),
		Mapping().Set("content", String("fourth")),
	))

	got, err := Extract(root)
	require.NoError(t, err)
	assert.Equal(t, "third", got.Text)
	assert.Equal(t, 2, got.Candidate)
	assert.Equal(t, "candidate.content[2]", got.String())
}

func TestExtractTopLevelAsCandidate(t *testing.T) {
	got, err := Extract(Mapping().Set("outputText", String("top")))
	require.NoError(t, err)
	assert.Equal(t, "top", got.Text)
	assert.Equal(t, FromOutputText, got.Provenance)
}

func TestExtractResponseWrapper(t *testing.T) {
	root := Mapping().Set("response", Mapping().Set("text", textFn("wrapped")))

	got, err := Extract(root)
	require.NoError(t, err)
	assert.Equal(t, "wrapped", got.Text)
	assert.Equal(t, FromFastPath, got.Provenance)
}

func TestExtractParentLevel(t *testing.T) {
	root := Mapping().
		Set("response", Mapping().Set("usage", Null())).
		Set("meta", Mapping().Set("note", String("from parent")))

	got, err := Extract(root)
	require.NoError(t, err)
	assert.Equal(t, "from parent", got.Text)
	assert.Equal(t, FromParentDeepSearch, got.Provenance)
}

func TestExtractDeepSearch(t *testing.T) {
	root := Mapping().Set("payload", Mapping().Set("choices", Sequence(
		Mapping().Set("delta", Mapping().Set("value", String("buried"))),
	)))

	got, err := Extract(root)
	require.NoError(t, err)
	assert.Equal(t, "buried", got.Text)
	assert.Equal(t, FromDeepSearch, got.Provenance)
}

func TestExtractNotFound(t *testing.T) {
	tests := map[string]*Node{
		"nil":         nil,
		"null":        Null(),
		"empty map":   Mapping(),
		"empty seq":   Sequence(),
		"blank leafs": Mapping().Set("a", String(" ")).Set("b", Sequence(String(""), Null())),
	}
	for name, root := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := Extract(root)
			assert.ErrorIs(t, err, ErrNotFound)
			assert.Empty(t, got.Text)
		})
	}
}

func TestExtractNeverReturnsPlaceholder(t *testing.T) {
	root := Mapping().
		Set("candidates", Sequence(Mapping().Set("text", String("[object Object]")))).
		Set("other", Sequence(String("null"), textFn("[object Object]")))

	_, err := Extract(root)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeepSearchPrefersKnownKeys(t *testing.T) {
	root := Mapping().
		Set("aaa", String("generic")).
		Set("message", String("preferred"))

	got, ok := DeepSearch(root)
	require.True(t, ok)
	assert.Equal(t, "preferred", got)
}

func TestDeepSearchDepthBound(t *testing.T) {
	nest := func(depth int) *Node {
		n := String("deep")
		for i := 0; i < depth; i++ {
			n = Mapping().Set("k", n)
		}
		return n
	}

	got, ok := DeepSearch(nest(MaxDepth))
	require.True(t, ok)
	assert.Equal(t, "deep", got)

	_, ok = DeepSearch(nest(MaxDepth + 1))
	assert.False(t, ok)
}

func TestDeepSearchCycle(t *testing.T) {
	a := Mapping()
	b := Mapping().Set("back", a)
	a.Set("next", b)
	seq := Sequence(a)
	a.Set("loop", seq)

	_, err := Extract(a)
	assert.ErrorIs(t, err, ErrNotFound)

	b.Set("zzz", String("found"))
	got, err := Extract(a)
	require.NoError(t, err)
	assert.Equal(t, "found", got.Text)
}

func TestDeepSearchSharedSubtree(t *testing.T) {
	shared := Mapping().Set("note", String("reachable"))

	// First path reaches shared at MaxDepth, where its leaf is out of bounds.
	deep := shared
	for i := 0; i < MaxDepth-1; i++ {
		deep = Mapping().Set("k", deep)
	}
	root := Mapping().
		Set("long", deep).
		Set("short", shared)

	got, ok := DeepSearch(root)
	require.True(t, ok)
	assert.Equal(t, "reachable", got)
}

func TestNodeAccessorsTolerateMismatch(t *testing.T) {
	var n *Node
	assert.Equal(t, KindNull, n.Kind())
	assert.Nil(t, n.Get("x"))
	assert.Nil(t, n.Path("a", "b"))
	assert.Nil(t, String("s").Items())
	assert.Nil(t, Sequence().Keys())
	_, ok := Mapping().Text()
	assert.False(t, ok)
	assert.Equal(t, "mapping", Mapping().Kind().String())
}

func TestFromJSON(t *testing.T) {
	root := FromJSON([]byte(`{"candidates":[{"content":{"parts":[{"text":"Hello"},{"text":"World"}]}}],"usage":{"tokens":12,"ok":true}}`))

	got, err := Extract(root)
	require.NoError(t, err)
	assert.Equal(t, "Hello World", got.Text)
	assert.Equal(t, FromContentParts, got.Provenance)

	assert.Equal(t, KindNull, root.Path("usage", "tokens").Kind())
	assert.Equal(t, []string{"candidates", "usage"}, root.Keys())
}

func TestFromJSONInvalid(t *testing.T) {
	root := FromJSON([]byte(`{"candidates": [`))
	assert.Equal(t, KindNull, root.Kind())
	_, err := Extract(root)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUsable(t *testing.T) {
	assert.True(t, Usable(" hi "))
	assert.False(t, Usable(strings.Repeat(" ", 4)))
	assert.False(t, Usable("[object Object]"))
}

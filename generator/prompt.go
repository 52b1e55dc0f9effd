package generator

import (
	"fmt"
	"strings"
)

// PromptSpec 描述要求模型生成的帖子。
type PromptSpec struct {
	Base        string
	CharLimit   int
	Required    string
	Constraints []string
}

// BuildPrompt 在基础提示词后追加硬性要求，
// 让模型看到与后处理一致的长度和链接限制。
func BuildPrompt(ps PromptSpec) string {
	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(ps.Base))

	var reqs []string
	if ps.CharLimit > 0 {
		reqs = append(reqs, fmt.Sprintf("Maximum %d characters.", ps.CharLimit))
	}
	if ps.Required != "" {
		reqs = append(reqs, fmt.Sprintf("Must include: %s", ps.Required))
	}
	for _, c := range ps.Constraints {
		if c = strings.TrimSpace(c); c != "" {
			reqs = append(reqs, c)
		}
	}
	reqs = append(reqs, "Output only the post text, with no explanation, quotes, or markdown.")

	sb.WriteString("\n\nHard requirements:\n")
	for _, r := range reqs {
		sb.WriteString("- ")
		sb.WriteString(r)
		sb.WriteString("\n")
	}
	return sb.String()
}

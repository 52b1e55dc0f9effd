package generator

import (
	"context"

	"auto_social_post_publisher/extract"
)

// Mock 一个简单的占位实现，便于本地调试，不调用外部模型。
// 返回与 Gemini 相同的 candidates/content/parts 结构。
type Mock struct{}

func (Mock) Generate(_ context.Context, _ Request) (*extract.Node, error) {
	parts := extract.Sequence(
		extract.Mapping().Set("text", extract.String("Find your next favorite X follow at xlist.social 🚀")),
		extract.Mapping().Set("text", extract.String("#Networking")),
	)
	return extract.Mapping().
		Set("candidates", extract.Sequence(
			extract.Mapping().Set("content", extract.Mapping().Set("parts", parts)),
		)), nil
}

package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// JIRA記法からGitLab Markdownへの基本的な変換を確認します
func TestConvertMarkup(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"空文字", "", ""},
		{"太字", "this is *bold* text", "this is **bold** text"},
		{"斜体", "this is _emphasis_ text", "this is *emphasis* text"},
		{"打ち消し", "this -old- text", "this ~~old~~ text"},
		{"下線", "this +under+ text", "this __under__ text"},
		{"インラインコード", "use {{go build}} now", "use `go build` now"},
		{"見出し1", "\nh1. Title", "\n# Title"},
		{"見出し2", "\nh2. Subtitle", "\n## Subtitle"},
		{"番号付きリスト", "\n# one\n# two", "\n1. one\n1. two"},
		{"箇条書きリスト", "\n* one\n* two", "\n - one\n - two"},
		{"引用ブロック", "{quote}", "\n>>>\n"},
		{"altなしリンク", "[https://example.com]", "https://example.com"},
		{"altありリンク", "[Google|https://google.com]", "[Google](https://google.com)"},
		{"顔文字", "done :)", "done :smiley:"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ConvertMarkup(tt.input, nil))
		})
	}
}

// コードブロックが言語指定付きで変換されることを確認します
func TestConvertMarkupCodeBlock(t *testing.T) {
	result := ConvertMarkup("{code:go}\nfunc main() {}\n{code}", nil)
	assert.Contains(t, result, "```go\n")
	assert.Contains(t, result, "func main() {}")
	assert.Contains(t, result, "\n```\n")
}

// 追加の置換規則（メンション・添付参照）が適用されることを確認します
func TestConvertMarkupReplacements(t *testing.T) {
	replacements := map[string]string{
		`\[~accountid:abc123\]`: "@taro",
	}
	result := ConvertMarkup("ping [~accountid:abc123] please", replacements)
	assert.Equal(t, "ping @taro please", result)
}

// アカウントIDメンションがリンク規則に食われないことを確認します
func TestConvertMarkupMentionSurvivesLinkRule(t *testing.T) {
	result := ConvertMarkup("see [~accountid:abc123]", nil)
	assert.Equal(t, "see [~accountid:abc123]", result)
}

// 不正な置換パターンは警告のみでスキップされることを確認します
func TestConvertMarkupInvalidReplacementPattern(t *testing.T) {
	replacements := map[string]string{
		`[invalid(`: "x",
	}
	result := ConvertMarkup("some text", replacements)
	assert.Equal(t, "some text", result)
}

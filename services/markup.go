package services

import (
	"regexp"
	"sort"

	"jiratogitlab/utils"
)

// markupRule はJIRA記法からMarkdownへの変換規則1件を表します
type markupRule struct {
	pattern *regexp.Regexp
	replace string
}

// JIRA記法 → GitLab Markdown の変換規則（適用順に並んでいます）
var markupRules = []markupRule{
	// コードブロック
	{regexp.MustCompile(`\s*\{noformat}\s*`), "```"},
	// 改行
	{regexp.MustCompile(`(\r\n)`), "  ${1}"},
	{regexp.MustCompile(`\{code:([a-z]+)}\s*`), "\n```${1}\n"},
	{regexp.MustCompile(`\{code}\s*`), "\n```\n"},
	// 引用
	{regexp.MustCompile(`\n\s*bq\. (.*)\n`), "\n> ${1}\n"},
	{regexp.MustCompile(`\{quote}`), "\n>>>\n"},
	// 色指定は強調に落とす
	{regexp.MustCompile(`\{color:[#\w]+}(.*)\{color}`), "> **${1}**"},
	// 罫線
	{regexp.MustCompile(`\n-{4,}\n`), "---"},
	// リンク
	{regexp.MustCompile(`\[([^~|\]]*)]`), "${1}"},
	{regexp.MustCompile(`\[(?:(.+)\|)([a-z]+://.+)]`), "[${1}](${2})"},
	// 番号付きリスト（ネスト含む）
	{regexp.MustCompile(`\n *# `), "\n1. "},
	{regexp.MustCompile(`\n *[*\-#]# `), "\n   1. "},
	{regexp.MustCompile(`\n *[*\-#]{2}# `), "\n      1. "},
	{regexp.MustCompile(`\n *[*\-#]{3}# `), "\n         1. "},
	// 箇条書きリスト（ネスト含む）
	{regexp.MustCompile(`\n *\* `), "\n - "},
	{regexp.MustCompile(`\n *[*\-#][*\-] `), "\n   - "},
	{regexp.MustCompile(`\n *[*\-#]{2}[*\-] `), "\n     - "},
	// 文字装飾
	{regexp.MustCompile(`(^|[^\w*])\*(\S[^*]*\S)\*([^\w*]|$)`), "${1}**${2}**${3}"},
	{regexp.MustCompile(`(^|[^\w_])_(\S[^_]*\S)_([^\w_]|$)`), "${1}*${2}*${3}"},
	{regexp.MustCompile(`(^|[^\w-])-(\S[^-]*\S)-([^\w-]|$)`), "${1}~~${2}~~${3}"},
	{regexp.MustCompile(`(^|[^\w+])\+(\S[^+]*\S)\+([^\w+]|$)`), "${1}__${2}__${3}"},
	{regexp.MustCompile(`(^|[\s])\{\{(.*)}}([\s]|$)`), "${1}`${2}`${3}"},
	// 見出し
	{regexp.MustCompile(`[\n^]h1\. `), "\n# "},
	{regexp.MustCompile(`[\n^]h2\. `), "\n## "},
	{regexp.MustCompile(`[\n^]h3\. `), "\n### "},
	{regexp.MustCompile(`[\n^]h4\. `), "\n#### "},
	{regexp.MustCompile(`[\n^]h5\. `), "\n##### "},
	{regexp.MustCompile(`[\n^]h6\. `), "\n###### "},
	// 顔文字 → 絵文字コード
	{regexp.MustCompile(`:\)`), ":smiley:"},
	{regexp.MustCompile(`:\(`), ":disappointed:"},
	{regexp.MustCompile(`:P`), ":yum:"},
	{regexp.MustCompile(`:D`), ":grin:"},
	{regexp.MustCompile(`;\)`), ":wink:"},
	{regexp.MustCompile(`\(y\)`), ":thumbsup:"},
	{regexp.MustCompile(`\(n\)`), ":thumbsdown:"},
	{regexp.MustCompile(`\(i\)`), ":information_source:"},
	{regexp.MustCompile(`\(/\)`), ":white_check_mark:"},
	{regexp.MustCompile(`\(x\)`), ":x:"},
	{regexp.MustCompile(`\(!\)`), ":warning:"},
	{regexp.MustCompile(`\(\+\)`), ":heavy_plus_sign:"},
	{regexp.MustCompile(`\(-\)`), ":heavy_minus_sign:"},
	{regexp.MustCompile(`\(\?\)`), ":grey_question:"},
	{regexp.MustCompile(`\(on\)`), ":bulb:"},
	{regexp.MustCompile(`\(\*[rgby]?\)`), ":star:"},
}

// ConvertMarkup はJIRA記法のテキストをGitLab Markdownに変換します
// replacementsには正規表現パターン→置換文字列の追加規則を渡します
// （ユーザーメンションや添付ファイル参照の置き換えに使用）
func ConvertMarkup(text string, replacements map[string]string) string {
	if text == "" {
		return ""
	}

	t := text
	for _, rule := range markupRules {
		t = rule.pattern.ReplaceAllString(t, rule.replace)
	}

	// 追加の置換規則を適用（適用順を安定させるためキーでソート）
	keys := make([]string, 0, len(replacements))
	for k := range replacements {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		pattern, err := regexp.Compile(key)
		if err != nil {
			utils.LogWarn("置換パターンのコンパイルに失敗しました: %s", key)
			continue
		}
		t = pattern.ReplaceAllString(t, replacements[key])
	}

	return t
}

package assistant

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	htmlTagRe    = regexp.MustCompile(`<[^>]+>`)
	whitespaceRe = regexp.MustCompile(`\s+`)
	// 保留字母、数字、下划线、空白与中英文常用标点
	disallowedRe = regexp.MustCompile(`[^\p{L}\p{N}_\s.,!?;:，。！？；：]`)
	sentenceRe   = regexp.MustCompile(`[^.!?。！？]*[.!?。！？]?`)
)

// CleanText 去除 HTML 标签、合并空白并剔除特殊字符
func CleanText(text string) string {
	text = htmlTagRe.ReplaceAllString(text, "")
	text = whitespaceRe.ReplaceAllString(text, " ")
	text = disallowedRe.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// SplitText 按句子切分长文本，每块不超过 maxRunes 个字符（单句超长时独占一块）
func SplitText(text string, maxRunes int) []string {
	if maxRunes <= 0 {
		maxRunes = 1000
	}

	var (
		chunks []string
		cur    strings.Builder
		n      int
	)
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			chunks = append(chunks, s)
		}
		cur.Reset()
		n = 0
	}

	for _, sentence := range sentenceRe.FindAllString(text, -1) {
		if sentence == "" {
			continue
		}
		l := utf8.RuneCountInString(sentence)
		if n > 0 && n+l > maxRunes {
			flush()
		}
		cur.WriteString(sentence)
		n += l
	}
	flush()
	return chunks
}

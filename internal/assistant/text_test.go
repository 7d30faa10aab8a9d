package assistant

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestCleanText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{
			in:   "<p>Hello,   world!</p>\n\n你好@#世界。",
			want: "Hello, world! 你好世界。",
		},
		{
			in:   "  a_b  c  ",
			want: "a_b c",
		},
		{
			in:   "<div><br/></div>",
			want: "",
		},
		{
			in:   "价格：$100（含税）",
			want: "价格：100含税",
		},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CleanText(tt.in), tt.in)
	}
}

func TestSplitText(t *testing.T) {
	assert.Equal(t, []string{"第一句。", "第二句！", "第三句？"}, SplitText("第一句。第二句！第三句？", 5))
	assert.Equal(t, []string{"第一句。第二句！", "第三句？"}, SplitText("第一句。第二句！第三句？", 8))
	assert.Equal(t, []string{"no terminator"}, SplitText("no terminator", 100))
	assert.Empty(t, SplitText("   ", 10))
}

func TestSplitText_ChunkBound(t *testing.T) {
	text := strings.Repeat("这是一个句子。", 300)
	chunks := SplitText(text, 1000)
	assert.Len(t, chunks, 3)
	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 1000)
	}
	assert.Equal(t, text, strings.Join(chunks, ""))

	// 单句超长时独占一块
	long := strings.Repeat("长", 20) + "。短。"
	assert.Equal(t, []string{strings.Repeat("长", 20) + "。", "短。"}, SplitText(long, 10))
}

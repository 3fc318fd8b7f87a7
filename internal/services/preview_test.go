package services

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestPreview_Basics(t *testing.T) {
	assert.Equal(t, "hello", Preview("hello", 50))
	assert.Equal(t, "", Preview("", 50))

	long := strings.Repeat("a", 60)
	got := Preview(long, 50)
	assert.Equal(t, strings.Repeat("a", 50)+"...", got)

	// 恰好等于上限时不截断
	exact := strings.Repeat("b", 50)
	assert.Equal(t, exact, Preview(exact, 50))
}

func TestPreview_MultibyteSafe(t *testing.T) {
	// 截断按字符而不是字节，不产生损坏的 UTF-8
	content := strings.Repeat("消", 120)
	got := Preview(content, 100)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, strings.Repeat("消", 100)+"...", got)
}

func TestProperty_PreviewBounds(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("truncated preview never exceeds limit plus ellipsis", prop.ForAll(
		func(content string, limit int) bool {
			got := Preview(content, limit)
			return utf8.RuneCountInString(got) <= limit+3
		},
		gen.AnyString(),
		gen.IntRange(1, 200),
	))

	properties.Property("short content passes through unchanged", prop.ForAll(
		func(content string, limit int) bool {
			if utf8.RuneCountInString(content) > limit {
				return true
			}
			return Preview(content, limit) == content
		},
		gen.AnyString(),
		gen.IntRange(1, 200),
	))

	properties.Property("preview is a prefix of the original plus ellipsis", prop.ForAll(
		func(content string, limit int) bool {
			got := Preview(content, limit)
			trimmed := strings.TrimSuffix(got, "...")
			return strings.HasPrefix(content, trimmed)
		},
		gen.AnyString(),
		gen.IntRange(1, 200),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

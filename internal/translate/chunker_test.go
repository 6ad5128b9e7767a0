package translate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitChunks_Empty(t *testing.T) {
	assert.Nil(t, SplitChunks("", 3000))
	assert.Nil(t, SplitChunks("   \n\n  ", 3000))
}

func TestSplitChunks_SingleSmallParagraph(t *testing.T) {
	chunks := SplitChunks("one short paragraph", 3000)
	require.Len(t, chunks, 1)
	assert.Equal(t, "one short paragraph", chunks[0])
}

func TestSplitChunks_PacksParagraphsGreedily(t *testing.T) {
	content := "aaaa\n\nbbbb\n\ncccc"
	chunks := SplitChunks(content, 12)

	// "aaaa\n\nbbbb" is 10 chars; adding "cccc" would exceed 12.
	require.Len(t, chunks, 2)
	assert.Equal(t, "aaaa\n\nbbbb", chunks[0])
	assert.Equal(t, "cccc", chunks[1])
}

func TestSplitChunks_NeverSplitsInsideParagraph(t *testing.T) {
	paragraphs := []string{
		strings.Repeat("a", 40),
		strings.Repeat("b", 40),
		strings.Repeat("c", 40),
	}
	content := strings.Join(paragraphs, "\n\n")

	for _, chunk := range SplitChunks(content, 50) {
		for _, para := range strings.Split(chunk, "\n\n") {
			assert.Contains(t, paragraphs, para, "paragraph was split mid-way")
		}
	}
}

func TestSplitChunks_OversizedParagraphGetsOwnChunk(t *testing.T) {
	huge := strings.Repeat("x", 100)
	content := "small\n\n" + huge + "\n\nalso small"
	chunks := SplitChunks(content, 50)

	require.Len(t, chunks, 3)
	assert.Equal(t, "small", chunks[0])
	assert.Equal(t, huge, chunks[1])
	assert.Equal(t, "also small", chunks[2])
}

func TestSplitChunks_PreservesAllText(t *testing.T) {
	content := "first\n\nsecond\n\n\n\nthird\n\nfourth paragraph with more words"
	chunks := SplitChunks(content, 20)

	joined := strings.Join(chunks, "\n\n")
	for _, para := range []string{"first", "second", "third", "fourth paragraph with more words"} {
		assert.Contains(t, joined, para)
	}
}

func TestSplitChunks_CollapsesExtraBlankLines(t *testing.T) {
	chunks := SplitChunks("a\n\n\n\n\nb", 100)
	require.Len(t, chunks, 1)
	assert.Equal(t, "a\n\nb", chunks[0])
}

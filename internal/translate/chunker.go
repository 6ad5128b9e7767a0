package translate

import (
	"regexp"
	"strings"
)

var paragraphBreak = regexp.MustCompile(`\n{2,}`)

// SplitChunks splits markdown content into translation chunks of at most
// maxChars characters without breaking inside a paragraph. Paragraphs are
// packed greedily; a paragraph longer than maxChars becomes its own chunk
// rather than being cut mid-sentence.
func SplitChunks(content string, maxChars int) []string {
	if maxChars <= 0 {
		maxChars = 3000
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}

	paragraphs := paragraphBreak.Split(content, -1)
	var chunks []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
		}
	}

	for _, para := range paragraphs {
		if para == "" {
			continue
		}
		if len(para) >= maxChars {
			flush()
			chunks = append(chunks, para)
			continue
		}
		// +2 accounts for the paragraph separator restored on join.
		if current.Len() > 0 && current.Len()+2+len(para) > maxChars {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)
	}
	flush()

	return chunks
}

package extract

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"
)

// identifierScanLimit bounds how much converted content the identifier
// patterns scan; registry ids live on the first page.
const identifierScanLimit = 8000

var (
	doiPattern          = regexp.MustCompile(`10\.\d{4,}/[^\s\)\]\"']+`)
	arxivPattern        = regexp.MustCompile(`(?:arXiv:)?(\d{4}\.\d{4,5})(?:v\d+)?`)
	arxivContentPattern = regexp.MustCompile(`arXiv:(\d{4}\.\d{4,5})`)
	titlePattern        = regexp.MustCompile(`(?m)^#\s+(.+)$`)
)

// FindDOI extracts the first DOI from the content prefix. Absence of a match
// is not an error.
func FindDOI(content string) string {
	match := doiPattern.FindString(head(content))
	return strings.TrimRight(match, ".")
}

// FindArxivID extracts an arXiv id, preferring the filename (uploads are
// often named after the id, e.g. 2106.09685.pdf) over the content.
func FindArxivID(content, filename string) string {
	if m := arxivPattern.FindStringSubmatch(filename); m != nil {
		return m[1]
	}
	if m := arxivContentPattern.FindStringSubmatch(head(content)); m != nil {
		return m[1]
	}
	return ""
}

// ExtractTitle returns the first markdown H1, falling back to the filename
// without its extension.
func ExtractTitle(content, filename string) string {
	if m := titlePattern.FindStringSubmatch(content); m != nil {
		if title := strings.TrimSpace(m[1]); title != "" {
			return title
		}
	}
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func head(content string) string {
	if len(content) <= identifierScanLimit {
		return content
	}
	n := identifierScanLimit
	for n > 0 && !utf8.RuneStart(content[n]) {
		n--
	}
	return content[:n]
}

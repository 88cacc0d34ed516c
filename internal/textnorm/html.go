// Package textnorm prepares chapter text for translation and speech.
package textnorm

import (
	"regexp"
	"strings"
)

var (
	xmlDeclRe    = regexp.MustCompile(`<\?xml[^>]*\?>`)
	doctypeRe    = regexp.MustCompile(`<!DOCTYPE[^>]*>`)
	paraBreakRe  = regexp.MustCompile(`</p>\s*<p[^>]*>`)
	paraOpenRe   = regexp.MustCompile(`<p[^>]*>`)
	paraCloseRe  = regexp.MustCompile(`</p>`)
	anyTagRe     = regexp.MustCompile(`<[^>]+>`)
	blankLinesRe = regexp.MustCompile(`\n\s*\n\s*\n`)
	hspaceRe     = regexp.MustCompile(`[ \t]+`)
)

// CleanHTML reduces chapter XHTML to plain text. Paragraph boundaries
// become blank lines so the segmenter can split on them; every other tag
// is dropped and runs of horizontal whitespace collapse to one space.
func CleanHTML(content string) string {
	content = xmlDeclRe.ReplaceAllString(content, "")
	content = doctypeRe.ReplaceAllString(content, "")

	content = paraBreakRe.ReplaceAllString(content, "\n\n")
	content = paraOpenRe.ReplaceAllString(content, "")
	content = paraCloseRe.ReplaceAllString(content, "\n")

	content = anyTagRe.ReplaceAllString(content, "")

	content = blankLinesRe.ReplaceAllString(content, "\n\n")
	content = hspaceRe.ReplaceAllString(content, " ")
	return strings.TrimSpace(content)
}

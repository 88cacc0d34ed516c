package epub

import (
	"fmt"
	"strings"
)

// generateChapterXHTML renders a chapter. Paragraphs get id="p{index}" so
// media overlays can point at them.
func (b *Builder) generateChapterXHTML(ch Chapter) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE html>
<html xmlns="http://www.w3.org/1999/xhtml" xmlns:epub="http://www.idpf.org/2007/ops" xml:lang="%s">
<head>
  <title>%s</title>
  <link rel="stylesheet" type="text/css" href="../styles/style.css"/>
</head>
<body>
<h1>%s</h1>
`, escapeXML(b.language()), escapeXML(ch.Title), escapeXML(ch.Title))

	for i, p := range ch.Paragraphs {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		fmt.Fprintf(&sb, "<p id=\"p%d\">%s</p>\n", i, escapeXML(p))
	}

	sb.WriteString("</body>\n</html>\n")

	return sb.String()
}

package epub

import (
	"fmt"
	"strings"
	"time"
)

// generatePackage creates the content.opf package document.
func (b *Builder) generatePackage() string {
	var sb strings.Builder

	var totalMS int
	for _, ch := range b.chapters {
		if ch.Audio != nil {
			totalMS += ch.Audio.DurationMS
		}
	}

	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0" unique-identifier="pub-id">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
`)

	// Dublin Core metadata
	fmt.Fprintf(&sb, "    <dc:identifier id=\"pub-id\">%s</dc:identifier>\n", b.generateUUID())
	fmt.Fprintf(&sb, "    <dc:title>%s</dc:title>\n", escapeXML(b.book.Title))
	if b.book.Author != "" {
		fmt.Fprintf(&sb, "    <dc:creator>%s</dc:creator>\n", escapeXML(b.book.Author))
	}
	fmt.Fprintf(&sb, "    <dc:language>%s</dc:language>\n", escapeXML(b.language()))

	// Modified timestamp (required for ePub 3)
	modified := b.book.CreatedAt
	if modified.IsZero() {
		modified = time.Now()
	}
	fmt.Fprintf(&sb, "    <meta property=\"dcterms:modified\">%s</meta>\n",
		modified.UTC().Format("2006-01-02T15:04:05Z"))

	if totalMS > 0 {
		fmt.Fprintf(&sb, "    <meta property=\"media:duration\">%s</meta>\n", formatClockTime(totalMS))
		for _, ch := range b.chapters {
			if ch.Audio != nil {
				fmt.Fprintf(&sb, "    <meta property=\"media:duration\" refines=\"#%s_overlay\">%s</meta>\n",
					ch.ID, formatClockTime(ch.Audio.DurationMS))
			}
		}
		sb.WriteString("    <meta property=\"media:active-class\">-epub-media-overlay-active</meta>\n")
		if b.book.Narrator != "" {
			fmt.Fprintf(&sb, "    <meta property=\"media:narrator\">%s</meta>\n", escapeXML(b.book.Narrator))
		}
	}

	sb.WriteString("  </metadata>\n\n")

	// Manifest
	sb.WriteString("  <manifest>\n")
	sb.WriteString("    <item id=\"nav\" href=\"nav.xhtml\" media-type=\"application/xhtml+xml\" properties=\"nav\"/>\n")
	sb.WriteString("    <item id=\"ncx\" href=\"toc.ncx\" media-type=\"application/x-dtbncx+xml\"/>\n")
	sb.WriteString("    <item id=\"style\" href=\"styles/style.css\" media-type=\"text/css\"/>\n")

	for _, ch := range b.chapters {
		if ch.Audio == nil {
			fmt.Fprintf(&sb, "    <item id=\"%s\" href=\"chapters/%s.xhtml\" media-type=\"application/xhtml+xml\"/>\n",
				ch.ID, ch.ID)
			continue
		}
		fmt.Fprintf(&sb, "    <item id=\"%s\" href=\"chapters/%s.xhtml\" media-type=\"application/xhtml+xml\" media-overlay=\"%s_overlay\"/>\n",
			ch.ID, ch.ID, ch.ID)
		fmt.Fprintf(&sb, "    <item id=\"%s_overlay\" href=\"smil/%s.smil\" media-type=\"application/smil+xml\"/>\n",
			ch.ID, ch.ID)
		fmt.Fprintf(&sb, "    <item id=\"%s_audio\" href=\"%s\" media-type=\"audio/mpeg\"/>\n",
			ch.ID, audioHref(ch.ID))
	}

	sb.WriteString("  </manifest>\n\n")

	// Spine (reading order)
	sb.WriteString("  <spine toc=\"ncx\">\n")
	for _, ch := range b.chapters {
		fmt.Fprintf(&sb, "    <itemref idref=\"%s\"/>\n", ch.ID)
	}
	sb.WriteString("  </spine>\n")

	sb.WriteString("</package>\n")

	return sb.String()
}

func (b *Builder) language() string {
	if b.book.Language == "" {
		return "en"
	}
	return b.book.Language
}

// escapeXML escapes special XML characters.
func escapeXML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	s = strings.ReplaceAll(s, "'", "&apos;")
	return s
}

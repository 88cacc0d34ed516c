package epub

import (
	"fmt"
	"strings"
)

// Clip maps one paragraph onto a window of the chapter audio.
type Clip struct {
	Paragraph int // index into Chapter.Paragraphs
	StartMS   int
	EndMS     int
}

// ChapterAudio is the narration of a chapter.
type ChapterAudio struct {
	File       string // MP3 on disk
	DurationMS int
	Clips      []Clip
}

// generateSMIL creates the media overlay of a chapter.
// Each clip points at the paragraph with id "p{index}".
func generateSMIL(chapterID string, audio ChapterAudio) string {
	var sb strings.Builder

	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<smil xmlns="http://www.w3.org/ns/SMIL" xmlns:epub="http://www.idpf.org/2007/ops" version="3.0">
  <body>
    <seq id="seq1" epub:textref="../chapters/`)
	sb.WriteString(chapterID)
	sb.WriteString(`.xhtml">
`)

	src := "../" + audioHref(chapterID)
	for _, c := range audio.Clips {
		fmt.Fprintf(&sb, `      <par id="par%d">
        <text src="../chapters/%s.xhtml#p%d"/>
        <audio src="%s" clipBegin="%s" clipEnd="%s"/>
      </par>
`, c.Paragraph, chapterID, c.Paragraph, src, formatSMILTime(c.StartMS), formatSMILTime(c.EndMS))
	}

	sb.WriteString(`    </seq>
  </body>
</smil>
`)

	return sb.String()
}

// formatSMILTime converts milliseconds to SMIL time format (e.g., "12.345s").
func formatSMILTime(ms int) string {
	return fmt.Sprintf("%.3fs", float64(ms)/1000.0)
}

// formatClockTime converts milliseconds to SMIL clock time (HH:MM:SS.mmm).
func formatClockTime(ms int) string {
	hours := ms / 3600000
	minutes := (ms % 3600000) / 60000
	seconds := (ms % 60000) / 1000
	millis := ms % 1000
	return fmt.Sprintf("%02d:%02d:%02d.%03d", hours, minutes, seconds, millis)
}

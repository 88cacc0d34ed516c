package segment

import (
	"strings"
	"unicode/utf8"
)

// FullStop closes speech sentences that carry no terminator of their own.
const FullStop = "。"

// DefaultSpeechLength bounds a single synthesis request.
const DefaultSpeechLength = 1000

// SplitSpeech groups translated sentences into synthesis-sized segments
// of at most maxLength runes. Sentences end at 。！？ (or Latin
// terminators followed by whitespace), are trimmed, and are packed while
// the running segment stays within the bound. A line without a
// terminator gets a full stop. A sentence longer than maxLength is hard
// sliced.
func SplitSpeech(text string, maxLength int) []string {
	if maxLength <= 0 {
		maxLength = DefaultSpeechLength
	}

	var b strings.Builder
	for _, line := range strings.Split(text, "\n") {
		for _, p := range Sentences(line) {
			sentence := strings.TrimSpace(p.Text)
			if sentence == "" || onlyTerminators(sentence) {
				continue
			}
			b.WriteString(sentence)
			if r, _ := utf8.DecodeLastRuneInString(sentence); !isTerminator(r) {
				b.WriteString(FullStop)
			}
		}
	}

	var segments []string
	for _, c := range SplitWith(b.String(), maxLength, Sentences) {
		if onlyTerminators(c.Text) {
			continue
		}
		segments = append(segments, c.Text)
	}
	return segments
}

// onlyTerminators reports whether s holds nothing but sentence terminators
// and whitespace, i.e. nothing to speak.
func onlyTerminators(s string) bool {
	for _, r := range s {
		if !isTerminator(r) && !isSpace(r) {
			return false
		}
	}
	return true
}

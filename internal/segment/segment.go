// Package segment splits long text into bounded, ordered chunks.
//
// Splitting walks a short chain of strategies: paragraphs first, then
// sentences, then fixed-width slices. A strategy is only consulted for a
// piece of text the previous one left over the length bound.
package segment

import (
	"strings"
	"unicode/utf8"
)

// Chunk is one ordered piece of a split source text.
// Sep holds the separator that followed the chunk in the source, so
// Join(Split(t, n)) == t for every input.
type Chunk struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
	Sep   string `json:"sep,omitempty"`
}

// Len returns the chunk length in runes.
func (c Chunk) Len() int {
	return utf8.RuneCountInString(c.Text)
}

// Piece is a unit produced by a Strategy: text plus the separator after it.
type Piece struct {
	Text string
	Sep  string

	// sealed pieces came out of a deeper strategy and are never merged
	// with their neighbours.
	sealed bool
}

// Strategy breaks text into ordered pieces. Concatenating Text+Sep of
// every returned piece must reproduce the input.
type Strategy func(text string) []Piece

// DefaultChain is the paragraph → sentence order used by Split.
// Anything still too long after the chain is hard sliced.
var DefaultChain = []Strategy{Paragraphs, Sentences}

// Split breaks text into chunks of at most maxLength runes.
// Empty input yields no chunks. maxLength <= 0 disables the bound.
func Split(text string, maxLength int) []Chunk {
	return SplitWith(text, maxLength, DefaultChain...)
}

// SplitWith is Split with an explicit strategy chain.
func SplitWith(text string, maxLength int, chain ...Strategy) []Chunk {
	if text == "" {
		return nil
	}
	if maxLength <= 0 {
		return []Chunk{{Index: 0, Text: text}}
	}

	pieces := split(text, maxLength, chain)
	chunks := make([]Chunk, len(pieces))
	for i, p := range pieces {
		chunks[i] = Chunk{Index: i, Text: p.Text, Sep: p.Sep}
	}
	return chunks
}

// Join reassembles chunks in index order with their original separators.
func Join(chunks []Chunk) string {
	var b strings.Builder
	for _, c := range chunks {
		b.WriteString(c.Text)
		b.WriteString(c.Sep)
	}
	return b.String()
}

func split(text string, maxLength int, chain []Strategy) []Piece {
	if utf8.RuneCountInString(text) <= maxLength {
		return []Piece{{Text: text}}
	}
	if len(chain) == 0 {
		return HardSlice(maxLength)(text)
	}

	var out []Piece
	for _, p := range chain[0](text) {
		if utf8.RuneCountInString(p.Text) <= maxLength {
			out = append(out, p)
			continue
		}
		sub := split(p.Text, maxLength, chain[1:])
		sub[len(sub)-1].Sep += p.Sep
		for i := range sub {
			sub[i].sealed = true
		}
		out = append(out, sub...)
	}
	return accumulate(out, maxLength)
}

// accumulate merges consecutive unsealed pieces while the merged text
// (including the separators between them) stays within maxLength.
func accumulate(pieces []Piece, maxLength int) []Piece {
	var (
		out    []Piece
		cur    Piece
		curLen int
		have   bool
	)
	flush := func() {
		if have {
			out = append(out, cur)
		}
		have = false
		curLen = 0
	}

	for _, p := range pieces {
		if p.sealed {
			flush()
			out = append(out, p)
			continue
		}
		pLen := utf8.RuneCountInString(p.Text)
		if have && curLen+utf8.RuneCountInString(cur.Sep)+pLen > maxLength {
			flush()
		}
		if !have {
			cur = Piece{Text: p.Text, Sep: p.Sep}
			curLen = pLen
			have = true
			continue
		}
		curLen += utf8.RuneCountInString(cur.Sep) + pLen
		cur.Text = cur.Text + cur.Sep + p.Text
		cur.Sep = p.Sep
	}
	flush()
	return out
}

// ParagraphSep separates paragraphs in cleaned text.
const ParagraphSep = "\n\n"

// Paragraphs splits text on blank-line paragraph breaks.
func Paragraphs(text string) []Piece {
	parts := strings.Split(text, ParagraphSep)
	pieces := make([]Piece, len(parts))
	for i, p := range parts {
		pieces[i] = Piece{Text: p}
		if i < len(parts)-1 {
			pieces[i].Sep = ParagraphSep
		}
	}
	return pieces
}

// Sentences splits text after runs of sentence terminators. Latin
// terminators need trailing whitespace to count as a boundary; CJK
// terminators do not. The whitespace becomes the piece separator.
func Sentences(text string) []Piece {
	var pieces []Piece
	start := 0
	i := 0
	for i < len(text) {
		r, size := utf8.DecodeRuneInString(text[i:])
		if !isTerminator(r) {
			i += size
			continue
		}

		// Consume the whole terminator run.
		end := i + size
		cjk := isCJKTerminator(r)
		for end < len(text) {
			r2, s2 := utf8.DecodeRuneInString(text[end:])
			if !isTerminator(r2) {
				break
			}
			cjk = cjk || isCJKTerminator(r2)
			end += s2
		}

		wsEnd := end
		for wsEnd < len(text) {
			r2, s2 := utf8.DecodeRuneInString(text[wsEnd:])
			if !isSpace(r2) {
				break
			}
			wsEnd += s2
		}

		if wsEnd == end && !cjk && end < len(text) {
			// "3.14" or "e.g.x": not a boundary.
			i = end
			continue
		}

		pieces = append(pieces, Piece{Text: text[start:end], Sep: text[end:wsEnd]})
		start = wsEnd
		i = wsEnd
	}
	if start < len(text) {
		pieces = append(pieces, Piece{Text: text[start:]})
	}
	if len(pieces) == 0 {
		pieces = append(pieces, Piece{Text: text})
	}
	return pieces
}

// HardSlice returns a strategy that cuts text into windows of exactly
// width runes (the last window may be shorter).
func HardSlice(width int) Strategy {
	return func(text string) []Piece {
		if width <= 0 {
			return []Piece{{Text: text}}
		}
		var pieces []Piece
		runes := []rune(text)
		for start := 0; start < len(runes); start += width {
			end := start + width
			if end > len(runes) {
				end = len(runes)
			}
			pieces = append(pieces, Piece{Text: string(runes[start:end])})
		}
		return pieces
	}
}

func isTerminator(r rune) bool {
	switch r {
	case '.', '!', '?':
		return true
	}
	return isCJKTerminator(r)
}

func isCJKTerminator(r rune) bool {
	return r == '。' || r == '！' || r == '？'
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

package segment

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplitSpeech_SingleSegment(t *testing.T) {
	got := SplitSpeech("第一句。第二句。", 1000)
	if len(got) != 1 || got[0] != "第一句。第二句。" {
		t.Fatalf("expected one segment, got %#v", got)
	}
}

func TestSplitSpeech_PacksWithinBound(t *testing.T) {
	tests := []struct {
		name string
		max  int
		want []string
	}{
		{name: "pairs fit", max: 8, want: []string{"第一句。第二句。", "第三句。"}},
		{name: "one per segment", max: 6, want: []string{"第一句。", "第二句。", "第三句。"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitSpeech("第一句。第二句。第三句", tt.max)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d segments, got %d: %#v", len(tt.want), len(got), got)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("segment %d: expected %q, got %q", i, tt.want[i], got[i])
				}
			}
		})
	}
}

func TestSplitSpeech_LongSentenceIsSliced(t *testing.T) {
	long := strings.Repeat("长", 20)
	got := SplitSpeech("短。"+long+"。尾", 10)
	want := []string{"短。", strings.Repeat("长", 10), strings.Repeat("长", 10), "尾。"}
	if len(got) != len(want) {
		t.Fatalf("expected %d segments, got %#v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("segment %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestSplitSpeech_NeverExceedsBound(t *testing.T) {
	tests := []struct {
		name string
		text string
		max  int
		n    int
	}{
		{name: "exclamations", text: strings.Repeat("他说话！", 600), max: 1000, n: 3},
		{name: "questions", text: strings.Repeat("为什么？", 30), max: 50, n: 3},
		{name: "no terminator", text: strings.Repeat("字", 2500), max: 1000, n: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitSpeech(tt.text, tt.max)
			if len(got) != tt.n {
				t.Fatalf("expected %d segments, got %d", tt.n, len(got))
			}
			for i, seg := range got {
				if n := utf8.RuneCountInString(seg); n > tt.max {
					t.Errorf("segment %d has %d runes, bound is %d", i, n, tt.max)
				}
			}
		})
	}
}

func TestSplitSpeech_KeepsOwnTerminator(t *testing.T) {
	got := SplitSpeech("真的吗？太好了！\n标题", 100)
	if len(got) != 1 || got[0] != "真的吗？太好了！标题。" {
		t.Fatalf("unexpected segments: %#v", got)
	}
}

func TestSplitSpeech_SkipsBlankSentences(t *testing.T) {
	if got := SplitSpeech("。 。\n。", 100); len(got) != 0 {
		t.Fatalf("expected no segments, got %#v", got)
	}
	got := SplitSpeech("  开始。\n\n  结束。 ", 100)
	if len(got) != 1 || got[0] != "开始。结束。" {
		t.Fatalf("expected trimmed sentences, got %#v", got)
	}
}

func TestSplitSpeech_DefaultBound(t *testing.T) {
	text := strings.Repeat("字", 600) + "。" + strings.Repeat("字", 600) + "。"
	got := SplitSpeech(text, 0)
	if len(got) != 2 {
		t.Fatalf("expected default bound to split into 2, got %d", len(got))
	}
}

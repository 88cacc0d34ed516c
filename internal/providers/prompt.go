package providers

import (
	"fmt"
	"strings"
)

var languageNames = map[string]string{
	"en": "English",
	"zh": "Simplified Chinese",
	"ja": "Japanese",
	"fr": "French",
	"de": "German",
	"es": "Spanish",
}

// LanguageName returns a display name for a language code, or the code.
func LanguageName(code string) string {
	if name, ok := languageNames[strings.ToLower(code)]; ok {
		return name
	}
	return code
}

// TranslationPrompt builds the literary translation instruction for one chunk.
func TranslationPrompt(text, sourceLang, targetLang string) string {
	return fmt.Sprintf(`You are a literary translator. Translate the following %[1]s text into fluent, natural %[2]s.

Source text:
%[3]s

Requirements:
1. Keep the tone and style of the original.
2. Keep the paragraph structure: one blank line between paragraphs.
3. Translate proper nouns consistently.
4. Write every number as words in %[2]s so it can be read aloud (25 -> 二十五, 3.14 -> 三点一四, 1995 -> 一九九五).
5. Return only the translation, with no notes or commentary.`,
		LanguageName(sourceLang), LanguageName(targetLang), text)
}

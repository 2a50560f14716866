// Package locale flags transcript text written outside the default language.
//
// Classification is advisory. It toggles the fallback transcription path and
// UI annotations but never blocks display of the text.
package locale

import (
	"unicode"

	"github.com/koscakluka/ema-transcript/core/items"
)

// TargetLocaleBlock is the Unicode block of the secondary locale
// (Devanagari).
var TargetLocaleBlock = &unicode.RangeTable{
	R16: []unicode.Range16{{Lo: 0x0900, Hi: 0x097F, Stride: 1}},
}

type Classification struct {
	// IsNonDefaultLanguage is set when any character falls outside the
	// default ASCII set.
	IsNonDefaultLanguage bool
	// IsTargetLocale is set when any character belongs to TargetLocaleBlock.
	IsTargetLocale bool
}

func Classify(text string) Classification {
	classification := Classification{}
	for _, r := range text {
		if r > unicode.MaxASCII {
			classification.IsNonDefaultLanguage = true
		}
		if unicode.Is(TargetLocaleBlock, r) {
			classification.IsTargetLocale = true
			break
		}
	}
	return classification
}

// ShouldFallback reports whether a fallback transcription should be
// attempted for the classified text.
func (c Classification) ShouldFallback(hasAudio bool) bool {
	return hasAudio && c.IsNonDefaultLanguage
}

func (c Classification) Annotations() []items.Annotation {
	var annotations []items.Annotation
	if c.IsNonDefaultLanguage {
		annotations = append(annotations, items.AnnotationNonDefaultLanguage)
	}
	if c.IsTargetLocale {
		annotations = append(annotations, items.AnnotationTargetLocale)
	}
	return annotations
}

// NeedsLanguageNote reports whether text contains anything besides ASCII
// letters, digits, whitespace and common punctuation. Analysis prompts use it
// to mark messages that are likely not in the default language.
func NeedsLanguageNote(text string) bool {
	for _, r := range text {
		switch {
		case r > unicode.MaxASCII:
			return true
		case unicode.IsLetter(r), unicode.IsDigit(r), unicode.IsSpace(r):
		case isNotePunctuation(r):
		default:
			return true
		}
	}
	return false
}

func isNotePunctuation(r rune) bool {
	switch r {
	case '.', ',', '?', '!', ';', ':', '\'', '"', '(', ')', '-', '_':
		return true
	}
	return false
}

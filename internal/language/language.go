// Package language provides language detection and code/name utilities
// for the multilingual pipeline.
package language

import (
	"fmt"
	"strings"

	"github.com/pemistahl/lingua-go"
	"github.com/rs/zerolog/log"
)

// displayNames maps ISO 639-1 codes to the names used in prompts.
var displayNames = map[string]string{
	"en": "English",
	"es": "Spanish",
	"fr": "French",
	"zh": "Chinese",
	"ar": "Arabic",
	"de": "German",
	"it": "Italian",
	"pt": "Portuguese",
	"ru": "Russian",
	"ja": "Japanese",
}

// linguaLanguages maps supported codes to lingua's language identifiers.
var linguaLanguages = map[string]lingua.Language{
	"en": lingua.English,
	"es": lingua.Spanish,
	"fr": lingua.French,
	"zh": lingua.Chinese,
	"ar": lingua.Arabic,
	"de": lingua.German,
	"it": lingua.Italian,
	"pt": lingua.Portuguese,
	"ru": lingua.Russian,
	"ja": lingua.Japanese,
}

// DisplayName returns the human-readable name for a language code.
// Unknown codes fall back to English, which is what generation prompts
// should instruct when the code cannot be resolved.
func DisplayName(code string) string {
	if name, ok := displayNames[strings.ToLower(code)]; ok {
		return name
	}
	return "English"
}

// Detector guesses the language of a text, constrained to a supported
// set. Low-confidence or too-short inputs fall back to the default code.
type Detector struct {
	detector  lingua.LanguageDetector
	supported map[string]bool
	fallback  string
	threshold float64
}

// NewDetector builds a detector over the supported language codes.
// Codes without a known lingua mapping are rejected.
func NewDetector(supported []string, fallback string, threshold float64) (*Detector, error) {
	langs := make([]lingua.Language, 0, len(supported))
	set := make(map[string]bool, len(supported))
	for _, code := range supported {
		code = strings.ToLower(code)
		l, ok := linguaLanguages[code]
		if !ok {
			return nil, fmt.Errorf("unsupported language code: %s", code)
		}
		langs = append(langs, l)
		set[code] = true
	}
	if len(langs) < 2 {
		// lingua needs at least two candidates to discriminate
		return nil, fmt.Errorf("need at least 2 supported languages, got %d", len(langs))
	}

	return &Detector{
		detector: lingua.NewLanguageDetectorBuilder().
			FromLanguages(langs...).
			Build(),
		supported: set,
		fallback:  strings.ToLower(fallback),
		threshold: threshold,
	}, nil
}

// Detect returns the detected language code and its confidence. It never
// fails: unsupported results, low confidence, and short inputs all fall
// back to the configured default.
func (d *Detector) Detect(text string) (string, float64) {
	if len(strings.TrimSpace(text)) < 3 {
		return d.fallback, 0.0
	}

	detected, ok := d.detector.DetectLanguageOf(text)
	if !ok {
		log.Debug().Msg("language detection inconclusive, using default")
		return d.fallback, 0.0
	}

	code := strings.ToLower(detected.IsoCode639_1().String())
	confidence := d.detector.ComputeLanguageConfidence(text, detected)

	if !d.supported[code] || confidence < d.threshold {
		log.Debug().
			Str("detected", code).
			Float64("confidence", confidence).
			Str("fallback", d.fallback).
			Msg("language detection below threshold or unsupported")
		return d.fallback, confidence
	}
	return code, confidence
}

// IsSupported reports whether the detector covers the given code.
func (d *Detector) IsSupported(code string) bool {
	return d.supported[strings.ToLower(code)]
}

package lang

import (
	"fmt"
	"strings"
)

// validLanguages contains ISO 639-1 language codes accepted by the
// transcription backends. This is not exhaustive but covers the most
// common languages; users can request additions.
var validLanguages = map[string]bool{
	"af": true, // Afrikaans
	"ar": true, // Arabic
	"bg": true, // Bulgarian
	"bn": true, // Bengali
	"ca": true, // Catalan
	"cs": true, // Czech
	"da": true, // Danish
	"de": true, // German
	"el": true, // Greek
	"en": true, // English
	"es": true, // Spanish
	"et": true, // Estonian
	"fa": true, // Persian
	"fi": true, // Finnish
	"fr": true, // French
	"gu": true, // Gujarati
	"he": true, // Hebrew
	"hi": true, // Hindi
	"hr": true, // Croatian
	"hu": true, // Hungarian
	"id": true, // Indonesian
	"it": true, // Italian
	"ja": true, // Japanese
	"kn": true, // Kannada
	"ko": true, // Korean
	"lt": true, // Lithuanian
	"lv": true, // Latvian
	"mk": true, // Macedonian
	"ml": true, // Malayalam
	"mr": true, // Marathi
	"ms": true, // Malay
	"nl": true, // Dutch
	"no": true, // Norwegian
	"pa": true, // Punjabi
	"pl": true, // Polish
	"pt": true, // Portuguese
	"ro": true, // Romanian
	"ru": true, // Russian
	"sk": true, // Slovak
	"sl": true, // Slovenian
	"sr": true, // Serbian
	"sv": true, // Swedish
	"sw": true, // Swahili
	"ta": true, // Tamil
	"te": true, // Telugu
	"th": true, // Thai
	"tl": true, // Tagalog
	"tr": true, // Turkish
	"uk": true, // Ukrainian
	"ur": true, // Urdu
	"vi": true, // Vietnamese
	"zh": true, // Chinese
}

// defaultRegions maps base language codes to the locale used when a
// backend requires a full BCP-47 tag but the user gave only a base code.
var defaultRegions = map[string]string{
	"en": "en-US",
	"fr": "fr-FR",
	"es": "es-ES",
	"pt": "pt-BR",
	"de": "de-DE",
	"it": "it-IT",
	"nl": "nl-NL",
	"ja": "ja-JP",
	"ko": "ko-KR",
	"zh": "zh-CN",
	"ru": "ru-RU",
	"ar": "ar-SA",
	"hi": "hi-IN",
	"sv": "sv-SE",
	"da": "da-DK",
	"no": "nb-NO",
	"fi": "fi-FI",
	"pl": "pl-PL",
	"tr": "tr-TR",
	"uk": "uk-UA",
	"vi": "vi-VN",
	"th": "th-TH",
	"id": "id-ID",
}

// Normalize normalizes a language code to lowercase with hyphen separator.
// Accepts: "pt-BR", "pt_BR", "PT-BR", "pt-br" -> "pt-br"
func Normalize(lang string) string {
	return strings.ToLower(strings.ReplaceAll(lang, "_", "-"))
}

// Validate checks if the language code is valid.
// Accepts ISO 639-1 codes (e.g., "en", "fr") and locales (e.g., "pt-BR", "zh-CN").
// Returns ErrInvalid if the base language is not recognized.
func Validate(lang string) error {
	if lang == "" {
		return nil // Empty means auto-detect, which is valid
	}

	normalized := Normalize(lang)

	// Extract base language from locale (pt-br -> pt)
	base := normalized
	if idx := strings.Index(normalized, "-"); idx != -1 {
		base = normalized[:idx]
	}

	if !validLanguages[base] {
		return fmt.Errorf("invalid language code %q (use ISO 639-1 codes like 'en', 'fr', 'pt-BR'): %w",
			lang, ErrInvalid)
	}

	return nil
}

// BaseCode extracts the ISO 639-1 base language code from a locale.
// The Whisper API only accepts base codes, not regional variants.
// Examples: "pt-BR" -> "pt", "zh-CN" -> "zh", "en" -> "en"
func BaseCode(lang string) string {
	if lang == "" {
		return ""
	}
	normalized := Normalize(lang)
	if idx := strings.Index(normalized, "-"); idx != -1 {
		return normalized[:idx]
	}
	return normalized
}

// Tag returns the BCP-47 tag for a language code, as required by Google
// Speech-to-Text. Locales keep their region with canonical casing
// ("pt-br" -> "pt-BR"); base codes map to a default region when one is
// known ("en" -> "en-US") and pass through otherwise.
func Tag(lang string) string {
	if lang == "" {
		return ""
	}
	normalized := Normalize(lang)
	if idx := strings.Index(normalized, "-"); idx != -1 {
		return normalized[:idx] + "-" + strings.ToUpper(normalized[idx+1:])
	}
	if tag, ok := defaultRegions[normalized]; ok {
		return tag
	}
	return normalized
}

// DisplayName returns a human-readable name for common locales.
// Falls back to the code itself for unknown locales.
func DisplayName(lang string) string {
	normalized := Normalize(lang)

	// Display names for every supported base code plus common locales.
	displayNames := map[string]string{
		"af":    "Afrikaans",
		"ar":    "Arabic",
		"bg":    "Bulgarian",
		"bn":    "Bengali",
		"ca":    "Catalan",
		"cs":    "Czech",
		"da":    "Danish",
		"de":    "German",
		"el":    "Greek",
		"en":    "English",
		"en-us": "American English",
		"en-gb": "British English",
		"es":    "Spanish",
		"es-mx": "Mexican Spanish",
		"et":    "Estonian",
		"fa":    "Persian",
		"fi":    "Finnish",
		"fr":    "French",
		"fr-ca": "Canadian French",
		"gu":    "Gujarati",
		"he":    "Hebrew",
		"hi":    "Hindi",
		"hr":    "Croatian",
		"hu":    "Hungarian",
		"id":    "Indonesian",
		"it":    "Italian",
		"ja":    "Japanese",
		"kn":    "Kannada",
		"ko":    "Korean",
		"lt":    "Lithuanian",
		"lv":    "Latvian",
		"mk":    "Macedonian",
		"ml":    "Malayalam",
		"mr":    "Marathi",
		"ms":    "Malay",
		"nl":    "Dutch",
		"no":    "Norwegian",
		"pa":    "Punjabi",
		"pl":    "Polish",
		"pt":    "Portuguese",
		"pt-br": "Brazilian Portuguese",
		"pt-pt": "European Portuguese",
		"ro":    "Romanian",
		"ru":    "Russian",
		"sk":    "Slovak",
		"sl":    "Slovenian",
		"sr":    "Serbian",
		"sv":    "Swedish",
		"sw":    "Swahili",
		"ta":    "Tamil",
		"te":    "Telugu",
		"th":    "Thai",
		"tl":    "Tagalog",
		"tr":    "Turkish",
		"uk":    "Ukrainian",
		"ur":    "Urdu",
		"vi":    "Vietnamese",
		"zh":    "Chinese",
		"zh-cn": "Simplified Chinese",
		"zh-tw": "Traditional Chinese",
	}

	if name, ok := displayNames[normalized]; ok {
		return name
	}

	// Extract base language for fallback
	base := normalized
	if idx := strings.Index(normalized, "-"); idx != -1 {
		base = normalized[:idx]
	}

	if name, ok := displayNames[base]; ok {
		return name
	}

	// Last resort: return the code itself
	return lang
}

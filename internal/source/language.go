package source

import (
	"regexp"
	"strings"
)

// LanguageUnknown is returned when neither detection stage matches.
const LanguageUnknown = "unknown"

// languageKeywords maps filename substrings to 3-letter language codes.
// Checked in order so that longer, more specific names win over codes.
var languageKeywords = []struct {
	keyword string
	code    string
}{
	{"english", "eng"},
	{"hindi", "hin"},
	{"tamil", "tam"},
	{"telugu", "tel"},
	{"kannada", "kan"},
	{"malayalam", "mal"},
	{"marathi", "mar"},
	{"bengali", "ben"},
	{"spanish", "spa"},
	{"french", "fra"},
	{"german", "deu"},
	{"portuguese", "por"},
	{"russian", "rus"},
	{"japanese", "jpn"},
	{"chinese", "zho"},
	{"arabic", "ara"},
	{"thai", "tha"},
}

// isoCodes maps 2-letter ISO 639-1 codes to their 3-letter equivalents for
// the second detection stage.
var isoCodes = map[string]string{
	"en": "eng", "hi": "hin", "ta": "tam", "te": "tel", "kn": "kan",
	"ml": "mal", "mr": "mar", "bn": "ben", "es": "spa", "fr": "fra",
	"de": "deu", "pt": "por", "ru": "rus", "ja": "jpn", "zh": "zho",
	"ar": "ara", "th": "tha",
}

// isoTagPattern matches a dotted 2-letter language tag like "movie.en.srt".
var isoTagPattern = regexp.MustCompile(`\.(en|hi|ta|te|kn|ml|mr|bn|es|fr|de|pt|ru|ja|zh|ar|th)[._-]`)

// DetectLanguage infers a subtitle language from its filename using a
// two-stage heuristic: substring match against the keyword table, then a
// dotted ISO 639-1 tag. The detector is advisory; false positives on short
// tags are accepted.
func DetectLanguage(filename string) string {
	lower := strings.ToLower(filename)

	for _, entry := range languageKeywords {
		if strings.Contains(lower, entry.keyword) {
			return entry.code
		}
	}

	if m := isoTagPattern.FindStringSubmatch(lower); m != nil {
		return isoCodes[m[1]]
	}

	return LanguageUnknown
}

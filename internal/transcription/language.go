package transcription

import "strings"

type languageEntry struct {
	code2   string
	code3   string
	display string
}

// Providers report languages inconsistently: WhisperX uses ISO 639-1 codes,
// the OpenAI verbose_json response uses lowercase English names.
var languages = []languageEntry{
	{"en", "eng", "English"},
	{"es", "spa", "Spanish"},
	{"fr", "fra", "French"},
	{"de", "deu", "German"},
	{"it", "ita", "Italian"},
	{"pt", "por", "Portuguese"},
	{"ja", "jpn", "Japanese"},
	{"ko", "kor", "Korean"},
	{"zh", "zho", "Chinese"},
	{"ru", "rus", "Russian"},
	{"ar", "ara", "Arabic"},
	{"hi", "hin", "Hindi"},
	{"nl", "nld", "Dutch"},
	{"pl", "pol", "Polish"},
	{"sv", "swe", "Swedish"},
	{"tr", "tur", "Turkish"},
	{"id", "ind", "Indonesian"},
	{"vi", "vie", "Vietnamese"},
}

var languageIndex = func() map[string]*languageEntry {
	index := make(map[string]*languageEntry, len(languages)*3)
	for i := range languages {
		e := &languages[i]
		index[e.code2] = e
		index[e.code3] = e
		index[strings.ToLower(e.display)] = e
	}
	return index
}()

// ToISO2 converts a language code or English name to ISO 639-1. Unknown
// two-letter codes pass through; anything else becomes "".
func ToISO2(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return ""
	}
	if e, ok := languageIndex[code]; ok {
		return e.code2
	}
	if len(code) == 2 {
		return code
	}
	return ""
}

// DisplayName returns a human-readable name, "Unknown" for empty input.
func DisplayName(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return "Unknown"
	}
	if e, ok := languageIndex[strings.ToLower(code)]; ok {
		return e.display
	}
	return strings.ToUpper(code)
}

package language

import (
	"strings"

	xlanguage "golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// bibliographic ISO 639-2/B codes that x/text does not map to a base.
var bibliographic = map[string]string{
	"fre": "fr",
	"ger": "de",
	"chi": "zh",
	"dut": "nl",
	"cze": "cs",
	"gre": "el",
	"per": "fa",
	"rum": "ro",
	"slo": "sk",
	"wel": "cy",
}

var namer = display.Tags(xlanguage.English)

// wordIndex maps lower-case English language names to ISO 639-1 codes.
var wordIndex = buildWordIndex()

func buildWordIndex() map[string]string {
	supported := []string{
		"en", "es", "fr", "de", "it", "pt", "ja", "ko", "zh", "ru", "ar", "hi",
		"nl", "pl", "sv", "da", "no", "fi", "tr", "uk", "cs", "el", "he", "hu",
		"id", "ro", "sk", "th", "vi", "ca", "fa", "cy",
	}
	index := make(map[string]string, len(supported))
	for _, code := range supported {
		name := strings.ToLower(namer.Name(xlanguage.MustParse(code)))
		if name != "" {
			index[name] = code
		}
	}
	return index
}

// ToISO2 resolves code to an ISO 639-1 base code. It returns false when code
// is empty or names no known language with a two-letter code.
func ToISO2(code string) (string, bool) {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return "", false
	}
	if mapped, ok := bibliographic[code]; ok {
		return mapped, true
	}
	if mapped, ok := wordIndex[code]; ok {
		return mapped, true
	}
	tag, err := xlanguage.Parse(code)
	if err != nil {
		return "", false
	}
	base, confidence := tag.Base()
	if confidence == xlanguage.No {
		return "", false
	}
	iso := base.String()
	if len(iso) != 2 {
		return "", false
	}
	return iso, true
}

// DisplayName returns the English name for code, "Auto-detect" when code is
// empty, or the upper-cased input when it is not recognized.
func DisplayName(code string) string {
	if strings.TrimSpace(code) == "" {
		return "Auto-detect"
	}
	iso, ok := ToISO2(code)
	if !ok {
		return strings.ToUpper(strings.TrimSpace(code))
	}
	return namer.Name(xlanguage.MustParse(iso))
}

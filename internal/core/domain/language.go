package domain

import "regexp"

// Language classifies the user's question so answers can be phrased in kind.
type Language string

const (
	LanguageEnglish  Language = "english"
	LanguageHinglish Language = "hinglish"
)

// hinglishIndicators are common Hindi words written in Roman script. Each is
// matched as a whole word; two or more hits classify the text as Hinglish.
var hinglishIndicators = compileIndicators([]string{
	"kitne", "kitna", "kitni", "kya", "kaise", "kaun", "kahan", "kab",
	"kyun", "kyu", "konsa", "konsi",
	"dikhao", "dikha", "batao", "bata", "dedo", "karo",
	"hain", "hai", "tha", "thi", "hoga",
	"sabhi", "sab", "saare", "pura", "puri",
	"wale", "wali", "wala", "mein", "aur", "nahi", "nahin", "haan",
	"accha", "theek", "thik", "zaroor", "jaroor",
	"pehle", "baad", "abhi", "kal", "aaj", "parso", "hafta", "mahina", "saal",
	"zyada", "jyada", "bahut", "thoda",
	"jinke", "jinka", "jinki", "unke", "unka", "unki",
	"iske", "iski", "iska", "uska", "uski", "uske",
})

var devanagariRe = regexp.MustCompile(`[\x{0900}-\x{097F}]`)

func compileIndicators(words []string) []*regexp.Regexp {
	res := make([]*regexp.Regexp, len(words))
	for i, w := range words {
		res[i] = regexp.MustCompile(`(?i)\b` + w + `\b`)
	}
	return res
}

// DetectLanguage reports whether the question reads as English or Hinglish.
// Devanagari script counts as Hinglish since the response path is the same.
func DetectLanguage(text string) Language {
	if devanagariRe.MatchString(text) {
		return LanguageHinglish
	}
	hits := 0
	for _, re := range hinglishIndicators {
		if re.MatchString(text) {
			hits++
			if hits >= 2 {
				return LanguageHinglish
			}
		}
	}
	return LanguageEnglish
}

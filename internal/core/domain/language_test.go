package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectLanguage_English(t *testing.T) {
	t.Parallel()
	cases := []string{
		"show me all users",
		"how many checklists are open?",
		"list delegations created this week",
		"what is the average completion time",
	}
	for _, text := range cases {
		assert.Equal(t, LanguageEnglish, DetectLanguage(text), "for %q", text)
	}
}

func TestDetectLanguage_Hinglish(t *testing.T) {
	t.Parallel()
	cases := []string{
		"kitne users hain?",
		"sabhi checklist dikhao jo pending hain",
		"aaj kitne delegation create hue hain",
		"users ka data batao jinke orders zyada hain",
	}
	for _, text := range cases {
		assert.Equal(t, LanguageHinglish, DetectLanguage(text), "for %q", text)
	}
}

func TestDetectLanguage_SingleIndicatorStaysEnglish(t *testing.T) {
	t.Parallel()
	// One stray indicator word is not enough to flip the classification.
	assert.Equal(t, LanguageEnglish, DetectLanguage("what does kya mean"))
}

func TestDetectLanguage_Devanagari(t *testing.T) {
	t.Parallel()
	assert.Equal(t, LanguageHinglish, DetectLanguage("कितने users हैं?"))
}

func TestDetectLanguage_IndicatorsAreWholeWords(t *testing.T) {
	t.Parallel()
	// "thai" contains "tha", "chain" contains "hai" etc.; none should count.
	assert.Equal(t, LanguageEnglish, DetectLanguage("the thai supply chain report"))
}

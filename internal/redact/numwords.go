package redact

import (
	"regexp"
	"strings"
)

type wordDigit struct {
	word  string
	digit string
}

var (
	decadeDigits = map[string]string{"twenty": "2", "thirty": "3", "forty": "4", "fifty": "5"}
	unitDigits   = map[string]string{
		"one": "1", "two": "2", "three": "3", "four": "4", "five": "5",
		"six": "6", "seven": "7", "eight": "8", "nine": "9",
	}

	tens = []wordDigit{
		{"twenty", "2"}, {"thirty", "3"}, {"forty", "4"}, {"fifty", "5"},
		{"sixty", "6"}, {"seventy", "7"}, {"eighty", "8"}, {"ninety", "9"},
	}
	compoundUnits = []wordDigit{
		{"one", "1"}, {"two", "2"}, {"three", "3"}, {"four", "4"}, {"five", "5"},
		{"six", "6"}, {"seven", "7"}, {"eight", "8"}, {"nine", "9"}, {"zero", "0"}, {"oh", "0"},
	}
	singles = []wordDigit{
		{"zero", "0"}, {"oh", "0"}, {"o", "0"},
		{"one", "1"}, {"two", "2"}, {"three", "3"}, {"four", "4"}, {"five", "5"},
		{"six", "6"}, {"seven", "7"}, {"eight", "8"}, {"nine", "9"},
		{"ten", "10"}, {"eleven", "11"}, {"twelve", "12"},
	}
)

const digitWord = `(?:zero|oh|one|two|three|four|five|six|seven|eight|nine|o|\d)`

var (
	yearRe = regexp.MustCompile(`\btwo\s+thousand\s+(twenty|thirty|forty|fifty)[\s-]*(one|two|three|four|five|six|seven|eight|nine)?\b`)
	// "or"/"for" before a digit word is a transcription of "four".
	misheardFourRe = regexp.MustCompile(`\b(?:or|for)\b(\s+` + digitWord + `)`)
	doubleRe       = regexp.MustCompile(`\bdouble\s+(zero|oh|one|two|three|four|five|six|seven|eight|nine|o|\d)`)
	tripleRe       = regexp.MustCompile(`\btriple\s+(zero|oh|one|two|three|four|five|six|seven|eight|nine|o|\d)`)

	compoundRes = compileCompounds()
	singleRes   = compileSingles()
)

type wordRule struct {
	re   *regexp.Regexp
	repl string
}

func compileCompounds() []wordRule {
	rules := make([]wordRule, 0, len(tens)*len(compoundUnits))
	for _, t := range tens {
		for _, u := range compoundUnits {
			rules = append(rules, wordRule{
				re:   regexp.MustCompile(`\b` + t.word + `[\s-]*` + u.word + `\b`),
				repl: t.digit + u.digit,
			})
		}
	}
	return rules
}

func compileSingles() []wordRule {
	rules := make([]wordRule, 0, len(singles))
	for _, s := range singles {
		rules = append(rules, wordRule{re: regexp.MustCompile(`\b` + s.word + `\b`), repl: s.digit})
	}
	return rules
}

// NormalizeSpokenNumbers lower-cases text and rewrites spoken-number idioms
// ("two thousand twenty five", "double oh", "forty two", "seven") as digits
// so numeric detectors work on voice-transcribed input.
func NormalizeSpokenNumbers(text string) string {
	out := strings.ToLower(text)

	out = yearRe.ReplaceAllStringFunc(out, func(m string) string {
		sub := yearRe.FindStringSubmatch(m)
		year := "20" + decadeDigits[sub[1]]
		if sub[2] != "" {
			return year + unitDigits[sub[2]]
		}
		return year + "0"
	})

	out = misheardFourRe.ReplaceAllString(out, "four${1}")
	out = doubleRe.ReplaceAllString(out, "${1} ${1}")
	out = tripleRe.ReplaceAllString(out, "${1} ${1} ${1}")

	for _, r := range compoundRes {
		out = r.re.ReplaceAllLiteralString(out, r.repl)
	}
	for _, r := range singleRes {
		out = r.re.ReplaceAllLiteralString(out, r.repl)
	}
	return out
}

// Package classify infers the programming language of generated code.
package classify

import (
	"strings"

	"github.com/rhuss/codesmith/pkg/api"
)

// Classifier maps source text to a language. Implementations must be
// deterministic, total, and free of side effects.
type Classifier interface {
	Classify(code string) api.Language
}

type rule struct {
	needles []string
	lang    api.Language
}

// rules are checked in order; the first substring hit wins. "javascript"
// is checked before "java" so it is not misread as Java, but plain
// substring matching means "json" still reads as JavaScript and "google"
// as Go.
var rules = []rule{
	{[]string{"python"}, api.LanguagePython},
	{[]string{"javascript", "js"}, api.LanguageJavaScript},
	{[]string{"java"}, api.LanguageJava},
	{[]string{"html"}, api.LanguageHTML},
	{[]string{"c++", "cpp"}, api.LanguageCPP},
	{[]string{"c#"}, api.LanguageCSharp},
	{[]string{"typescript"}, api.LanguageTypeScript},
	{[]string{"go"}, api.LanguageGo},
}

// Heuristic classifies code by the first non-empty line, where generation
// backends are asked to name the language.
type Heuristic struct{}

var _ Classifier = Heuristic{}

// Classify returns the language named on the first non-empty line of code,
// or api.LanguageUnknown.
func (Heuristic) Classify(code string) api.Language {
	line := strings.ToLower(FirstLine(code))
	if line == "" {
		return api.LanguageUnknown
	}
	for _, r := range rules {
		for _, n := range r.needles {
			if strings.Contains(line, n) {
				return r.lang
			}
		}
	}
	return api.LanguageUnknown
}

// FirstLine returns the first line of code that is non-empty after
// trimming whitespace.
func FirstLine(code string) string {
	for line := range strings.Lines(code) {
		if t := strings.TrimSpace(line); t != "" {
			return t
		}
	}
	return ""
}

// Classify is a convenience wrapper around Heuristic.
func Classify(code string) api.Language {
	return Heuristic{}.Classify(code)
}

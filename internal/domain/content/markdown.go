package content

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// markdownRatioThreshold is the share of Markdown syntax characters above
// which text counts as Markdown even when fewer than two rules match.
const markdownRatioThreshold = 0.05

var headingPattern = regexp.MustCompile(`(?m)^#{1,6}\s+.+$`)

// markdownRules is the literal rule list scored by DetectMarkdown. Order does
// not matter; each rule contributes at most one point.
var markdownRules = []*regexp.Regexp{
	headingPattern,
	regexp.MustCompile("(?m)^```[\\s\\S]*?```$"),
	regexp.MustCompile("`[^`\\n]+`"),
	regexp.MustCompile(`\[.+?\]\(.+?\)`),
	regexp.MustCompile(`!\[.*?\]\(.+?\)`),
	regexp.MustCompile(`\*\*.+?\*\*|__.+?__`),
	regexp.MustCompile(`\*.+?\*|_.+?_`),
	regexp.MustCompile(`~~.+?~~`),
	regexp.MustCompile(`(?m)^[\s]*[-*+]\s+.+$`),
	regexp.MustCompile(`(?m)^[\s]*\d+\.\s+.+$`),
	regexp.MustCompile(`(?m)^>\s*.+$`),
	regexp.MustCompile(`(?m)^[\s]*[-*_]{3,}[\s]*$`),
	regexp.MustCompile(`\|.+\|`),
	regexp.MustCompile(`<[^>]+>`),
	regexp.MustCompile("```mermaid[\\s\\S]*?```"),
}

var markdownCharPattern = regexp.MustCompile("[#*_`\\[\\]()>|~-]")

// DetectMarkdown reports whether s looks like Markdown. It is a scorer, not a
// parser: two or more matching rules, a lone heading, or a syntax character
// ratio above five percent all qualify.
func DetectMarkdown(s string) bool {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return false
	}

	matches := 0
	for _, rule := range markdownRules {
		if rule.MatchString(trimmed) {
			matches++
		}
	}

	if matches >= 2 {
		return true
	}

	if matches == 1 && headingPattern.MatchString(trimmed) {
		return true
	}

	syntaxChars := len(markdownCharPattern.FindAllStringIndex(trimmed, -1))
	ratio := float64(syntaxChars) / float64(utf8.RuneCountInString(trimmed))

	return ratio > markdownRatioThreshold
}

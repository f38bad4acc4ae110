package content

import (
	"regexp"
	"strings"
)

// mermaidKeywords are the diagram declarations a bare Mermaid source may
// start with. Matching is case-insensitive.
var mermaidKeywords = []string{
	"graph",
	"flowchart",
	"sequenceDiagram",
	"pie",
	"gantt",
	"gitgraph",
	"mindmap",
	"timeline",
	"classDiagram",
	"stateDiagram",
	"erDiagram",
	"journey",
	"quadrantChart",
	"requirement",
	"c4Context",
}

// mermaidStructure holds patterns of which at least one must appear in the
// body of a Mermaid source.
var mermaidStructure = []*regexp.Regexp{
	regexp.MustCompile(`-->`),
	regexp.MustCompile(`->>`),
	regexp.MustCompile(`participant`),
	regexp.MustCompile(`title`),
	regexp.MustCompile(`\[.*?\]`),
	regexp.MustCompile(`\{.*?\}`),
	regexp.MustCompile(`\|.*?\|`),
	regexp.MustCompile(`section`),
	regexp.MustCompile(`dateFormat`),
	regexp.MustCompile(`axisFormat`),
	regexp.MustCompile(`class`),
	regexp.MustCompile(`state`),
	regexp.MustCompile(`note`),
	regexp.MustCompile(`loop`),
	regexp.MustCompile(`alt`),
	regexp.MustCompile(`opt`),
	regexp.MustCompile(`par`),
	regexp.MustCompile(`and`),
	regexp.MustCompile(`else`),
	regexp.MustCompile(`end`),
}

// DetectMermaid reports whether s is a bare Mermaid diagram source. Content
// holding a fenced code marker is Markdown, not bare Mermaid.
func DetectMermaid(s string) bool {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return false
	}

	if strings.Contains(trimmed, "```") {
		return false
	}

	lower := strings.ToLower(trimmed)
	startsWithKeyword := false
	for _, kw := range mermaidKeywords {
		if strings.HasPrefix(lower, strings.ToLower(kw)) {
			startsWithKeyword = true
			break
		}
	}
	if !startsWithKeyword {
		return false
	}

	for _, p := range mermaidStructure {
		if p.MatchString(trimmed) {
			return true
		}
	}

	return false
}

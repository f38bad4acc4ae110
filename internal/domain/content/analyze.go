package content

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ericfisherdev/clipview/internal/domain/model"
)

const wordsPerMinute = 200

var (
	titlePattern         = regexp.MustCompile(`(?m)^#\s+(.+)$`)
	headingCapture       = regexp.MustCompile(`(?m)^(#{1,6})\s+(.+)$`)
	fencedBlockPattern   = regexp.MustCompile("```[\\s\\S]*?```")
	mermaidBlockPattern  = regexp.MustCompile("```mermaid[\\s\\S]*?```")
	mermaidBodyPattern   = regexp.MustCompile("```mermaid\\n([\\s\\S]*?)\\n```")
	codeBodyPattern      = regexp.MustCompile("```(\\w+)?\\n([\\s\\S]*?)\\n```")
	inlineCodePattern    = regexp.MustCompile("`[^`\\n]+`")
	linkOrImagePattern   = regexp.MustCompile(`!?\[.+?\]\(.+?\)`)
	imageRefPattern      = regexp.MustCompile(`!\[.*?\]\(.+?\)`)
	tableRowPattern      = regexp.MustCompile(`\|.+\|`)
	syntaxCharPattern    = regexp.MustCompile("[#*_~`\\[\\]()>|]")
	emphasisCharPattern  = regexp.MustCompile("[*_~`]")
	headingMarkPattern   = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	quoteMarkPattern     = regexp.MustCompile(`(?m)^>\s*`)
	bulletMarkPattern    = regexp.MustCompile(`(?m)^[-*+]\s+`)
	orderedMarkPattern   = regexp.MustCompile(`(?m)^\d+\.\s+`)
	whitespacePattern    = regexp.MustCompile(`\s+`)
	anchorStripPattern   = regexp.MustCompile(`[^\w-]`)
	fenceOpenPattern     = regexp.MustCompile("(?m)^```")
	malformedLinkPattern = regexp.MustCompile(`(?m)\[[^\]]*\]\([^)]*$`)
	malformedImgPattern  = regexp.MustCompile(`(?m)!\[[^\]]*\]\([^)]*$`)
	headingLevelPattern  = regexp.MustCompile(`^#+`)
)

// Analyze extracts document metadata from Markdown text.
func Analyze(s string) model.Document {
	doc := model.Document{
		HasCodeBlocks:      fencedBlockPattern.MatchString(s),
		HasMermaidDiagrams: mermaidBlockPattern.MatchString(s),
		HasImages:          imageRefPattern.MatchString(s),
	}

	if m := titlePattern.FindStringSubmatch(s); m != nil {
		doc.Title = strings.TrimSpace(m[1])
	}

	plain := fencedBlockPattern.ReplaceAllString(s, "")
	plain = inlineCodePattern.ReplaceAllString(plain, "")
	plain = linkOrImagePattern.ReplaceAllString(plain, "")
	plain = syntaxCharPattern.ReplaceAllString(plain, "")

	doc.WordCount = len(strings.Fields(plain))
	doc.ReadMinutes = max(1, int(math.Ceil(float64(doc.WordCount)/wordsPerMinute)))

	return doc
}

type tocNode struct {
	entry    model.TOCEntry
	children []*tocNode
}

// TableOfContents builds a heading tree. A heading nests under the closest
// preceding heading with a smaller level.
func TableOfContents(s string) []model.TOCEntry {
	var roots []*tocNode
	var stack []*tocNode

	for i, m := range headingCapture.FindAllStringSubmatch(s, -1) {
		title := strings.TrimSpace(m[2])
		node := &tocNode{entry: model.TOCEntry{
			ID:     fmt.Sprintf("toc-%d", i+1),
			Title:  title,
			Level:  len(m[1]),
			Anchor: slugify(title),
		}}

		for len(stack) > 0 && stack[len(stack)-1].entry.Level >= node.entry.Level {
			stack = stack[:len(stack)-1]
		}

		if len(stack) == 0 {
			roots = append(roots, node)
		} else {
			parent := stack[len(stack)-1]
			parent.children = append(parent.children, node)
		}

		stack = append(stack, node)
	}

	return flattenTOC(roots)
}

func flattenTOC(nodes []*tocNode) []model.TOCEntry {
	if len(nodes) == 0 {
		return nil
	}
	out := make([]model.TOCEntry, 0, len(nodes))
	for _, n := range nodes {
		e := n.entry
		e.Children = flattenTOC(n.children)
		out = append(out, e)
	}
	return out
}

func slugify(title string) string {
	anchor := whitespacePattern.ReplaceAllString(strings.ToLower(title), "-")
	return anchorStripPattern.ReplaceAllString(anchor, "")
}

// ExtractMermaidDiagrams returns the bodies of all ```mermaid fences.
func ExtractMermaidDiagrams(s string) []model.Diagram {
	var diagrams []model.Diagram
	for i, m := range mermaidBodyPattern.FindAllStringSubmatch(s, -1) {
		body := strings.TrimSpace(m[1])
		diagrams = append(diagrams, model.Diagram{
			ID:     fmt.Sprintf("mermaid-%d", i),
			Kind:   DiagramKind(body),
			Source: body,
			Title:  fmt.Sprintf("Diagram %d", i+1),
		})
	}
	return diagrams
}

// DiagramKind names the family of a Mermaid diagram from its first keyword.
func DiagramKind(body string) model.DiagramKind {
	lower := strings.ToLower(strings.TrimSpace(body))

	switch {
	case strings.HasPrefix(lower, "graph"), strings.HasPrefix(lower, "flowchart"):
		return model.DiagramFlowchart
	case strings.HasPrefix(lower, "sequencediagram"), strings.Contains(lower, "participant"):
		return model.DiagramSequence
	case strings.HasPrefix(lower, "gantt"):
		return model.DiagramGantt
	case strings.HasPrefix(lower, "pie"):
		return model.DiagramPie
	case strings.HasPrefix(lower, "gitgraph"):
		return model.DiagramGitGraph
	case strings.HasPrefix(lower, "mindmap"):
		return model.DiagramMindmap
	case strings.HasPrefix(lower, "timeline"):
		return model.DiagramTimeline
	default:
		return model.DiagramOther
	}
}

// ExtractCodeBlocks returns fenced code blocks, skipping Mermaid fences.
// Block IDs count every fence, so they stay stable when diagrams are mixed in.
func ExtractCodeBlocks(s string) []model.CodeBlock {
	var blocks []model.CodeBlock
	for i, m := range codeBodyPattern.FindAllStringSubmatch(s, -1) {
		lang := m[1]
		if lang == "" {
			lang = "text"
		}
		if strings.EqualFold(lang, "mermaid") {
			continue
		}
		blocks = append(blocks, model.CodeBlock{
			ID:       fmt.Sprintf("code-%d", i),
			Language: lang,
			Source:   m[2],
		})
	}
	return blocks
}

// ComplexityScore rates Markdown from 0 to 100 by length, headings, code
// blocks, diagrams, table rows and links.
func ComplexityScore(s string) int {
	count := func(re *regexp.Regexp) float64 {
		return float64(len(re.FindAllStringIndex(s, -1)))
	}

	score := math.Min(float64(utf8.RuneCountInString(s))/1000, 20)
	score += math.Min(count(headingPattern)*2, 15)
	score += math.Min(count(fencedBlockPattern)*5, 20)
	score += math.Min(count(mermaidBlockPattern)*8, 25)
	score += math.Min(count(tableRowPattern)*3, 10)
	score += math.Min(count(linkOrImagePattern), 10)

	return min(int(math.Round(score)), 100)
}

// Summary strips Markdown syntax and cuts the text to at most limit runes,
// preferring a word boundary in the last fifth.
func Summary(s string, limit int) string {
	plain := fencedBlockPattern.ReplaceAllString(s, "")
	plain = inlineCodePattern.ReplaceAllString(plain, "")
	plain = linkOrImagePattern.ReplaceAllString(plain, "")
	plain = headingMarkPattern.ReplaceAllString(plain, "")
	plain = emphasisCharPattern.ReplaceAllString(plain, "")
	plain = quoteMarkPattern.ReplaceAllString(plain, "")
	plain = bulletMarkPattern.ReplaceAllString(plain, "")
	plain = orderedMarkPattern.ReplaceAllString(plain, "")
	plain = strings.TrimSpace(whitespacePattern.ReplaceAllString(plain, " "))

	runes := []rune(plain)
	if len(runes) <= limit {
		return plain
	}

	cut := string(runes[:limit])
	if idx := strings.LastIndex(cut, " "); idx >= 0 && float64(utf8.RuneCountInString(cut[:idx])) > float64(limit)*0.8 {
		return cut[:idx] + "..."
	}
	return cut + "..."
}

// ValidateMarkdown reports structural problems. Unclosed fences and broken
// links or images are errors; ragged tables and skipped heading levels are
// warnings.
func ValidateMarkdown(s string) model.Validation {
	var v model.Validation

	if len(fenceOpenPattern.FindAllStringIndex(s, -1))%2 != 0 {
		v.Errors = append(v.Errors, "Unclosed code block detected")
	}

	if n := len(malformedLinkPattern.FindAllStringIndex(s, -1)); n > 0 {
		v.Errors = append(v.Errors, fmt.Sprintf("%d malformed link(s) detected", n))
	}

	if n := len(malformedImgPattern.FindAllStringIndex(s, -1)); n > 0 {
		v.Errors = append(v.Errors, fmt.Sprintf("%d malformed image(s) detected", n))
	}

	if rows := tableRowPattern.FindAllString(s, -1); len(rows) > 0 {
		columns := make(map[int]struct{})
		for _, row := range rows {
			columns[strings.Count(row, "|")] = struct{}{}
		}
		if len(columns) > 1 {
			v.Warnings = append(v.Warnings, "Inconsistent table column counts detected")
		}
	}

	headings := headingPattern.FindAllString(s, -1)
	for i := 1; i < len(headings); i++ {
		prev := len(headingLevelPattern.FindString(headings[i-1]))
		cur := len(headingLevelPattern.FindString(headings[i]))
		if cur > prev+1 {
			v.Warnings = append(v.Warnings, "Heading level skipped (e.g., h1 directly to h3)")
			break
		}
	}

	return v
}

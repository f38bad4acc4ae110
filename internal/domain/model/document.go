package model

// Document holds metadata extracted from Markdown content.
type Document struct {
	Title              string
	HasCodeBlocks      bool
	HasMermaidDiagrams bool
	HasImages          bool
	WordCount          int
	ReadMinutes        int
}

// TOCEntry is one heading in a table of contents. Children hold the
// headings nested below it.
type TOCEntry struct {
	ID       string
	Title    string
	Level    int
	Anchor   string
	Children []TOCEntry
}

// DiagramKind identifies the family of a Mermaid diagram.
type DiagramKind string

const (
	DiagramFlowchart DiagramKind = "flowchart"
	DiagramSequence  DiagramKind = "sequence"
	DiagramGantt     DiagramKind = "gantt"
	DiagramPie       DiagramKind = "pie"
	DiagramGitGraph  DiagramKind = "gitgraph"
	DiagramMindmap   DiagramKind = "mindmap"
	DiagramTimeline  DiagramKind = "timeline"
	DiagramOther     DiagramKind = "other"
)

// Diagram is a Mermaid diagram found inside a fenced block.
type Diagram struct {
	ID     string
	Kind   DiagramKind
	Source string
	Title  string
}

// CodeBlock is a fenced code block other than a Mermaid diagram.
type CodeBlock struct {
	ID       string
	Language string
	Source   string
}

// Validation is the outcome of a Markdown syntax check. Errors make the
// document invalid; warnings do not.
type Validation struct {
	Errors   []string
	Warnings []string
}

// Valid reports whether no errors were found.
func (v Validation) Valid() bool {
	return len(v.Errors) == 0
}

package httphandler

import (
	"bytes"
	"html"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"

	"github.com/ericfisherdev/clipview/internal/domain/content"
	"github.com/ericfisherdev/clipview/internal/domain/model"
)

// Preview formats.
const (
	FormatMarkdown = "markdown"
	FormatMermaid  = "mermaid"
	FormatHTML     = "html"
	FormatImage    = "image"
	FormatText     = "text"
)

const summaryRunes = 200

var (
	mdRenderer    goldmark.Markdown
	htmlSanitizer *bluemonday.Policy
)

func init() {
	mdRenderer = goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(gmhtml.WithUnsafe()),
	)

	htmlSanitizer = bluemonday.UGCPolicy()
}

// PreviewResponse is a rendered view of one record. Document fields are set
// for markdown only; Diagrams also for mermaid.
type PreviewResponse struct {
	ID       string              `json:"id"`
	Format   string              `json:"format"`
	HTML     string              `json:"html"`
	Document *DocumentResponse   `json:"document,omitempty"`
	TOC      []TOCEntryResponse  `json:"toc,omitempty"`
	Diagrams []DiagramResponse   `json:"diagrams,omitempty"`
	Code     []CodeBlockResponse `json:"code_blocks,omitempty"`
	Errors   []string            `json:"errors,omitempty"`
	Warnings []string            `json:"warnings,omitempty"`
}

// DocumentResponse is Markdown document metadata.
type DocumentResponse struct {
	Title              string `json:"title"`
	Summary            string `json:"summary"`
	WordCount          int    `json:"word_count"`
	ReadMinutes        int    `json:"read_minutes"`
	Complexity         int    `json:"complexity"`
	HasCodeBlocks      bool   `json:"has_code_blocks"`
	HasMermaidDiagrams bool   `json:"has_mermaid_diagrams"`
	HasImages          bool   `json:"has_images"`
	Valid              bool   `json:"valid"`
}

// TOCEntryResponse is one heading of the table of contents.
type TOCEntryResponse struct {
	ID       string             `json:"id"`
	Title    string             `json:"title"`
	Level    int                `json:"level"`
	Anchor   string             `json:"anchor"`
	Children []TOCEntryResponse `json:"children,omitempty"`
}

// DiagramResponse is one Mermaid diagram.
type DiagramResponse struct {
	ID     string `json:"id"`
	Kind   string `json:"kind"`
	Title  string `json:"title"`
	Source string `json:"source"`
}

// CodeBlockResponse is one fenced code block.
type CodeBlockResponse struct {
	ID       string `json:"id"`
	Language string `json:"language"`
	Source   string `json:"source"`
}

// RenderMarkdown converts a markdown string to sanitized HTML.
// Returns empty string for empty input.
func RenderMarkdown(src string) string {
	if src == "" {
		return ""
	}

	var buf bytes.Buffer
	if err := mdRenderer.Convert([]byte(src), &buf); err != nil {
		return htmlSanitizer.Sanitize(src)
	}

	return htmlSanitizer.Sanitize(buf.String())
}

// RenderPreview picks a format for rec and renders it.
func RenderPreview(rec model.Record) PreviewResponse {
	resp := PreviewResponse{ID: rec.ID}

	switch {
	case rec.Type == model.ContentTypeMermaid:
		resp.Format = FormatMermaid
		resp.HTML = `<pre class="mermaid">` + html.EscapeString(rec.Content) + `</pre>`
		resp.Diagrams = []DiagramResponse{{
			ID:     "mermaid-0",
			Kind:   string(content.DiagramKind(rec.Content)),
			Title:  "Diagram 1",
			Source: rec.Content,
		}}

	case rec.Type == model.ContentTypeHTML:
		resp.Format = FormatHTML
		resp.HTML = htmlSanitizer.Sanitize(rec.Content)

	case rec.Type == model.ContentTypeImage:
		resp.Format = FormatImage

	case rec.Type == model.ContentTypeText && content.DetectMarkdown(rec.Content):
		renderMarkdownPreview(&resp, rec.Content)

	default:
		resp.Format = FormatText
		resp.HTML = "<pre>" + html.EscapeString(rec.Content) + "</pre>"
	}

	return resp
}

func renderMarkdownPreview(resp *PreviewResponse, src string) {
	doc := content.Analyze(src)
	validation := content.ValidateMarkdown(src)

	resp.Format = FormatMarkdown
	resp.HTML = RenderMarkdown(src)
	resp.Document = &DocumentResponse{
		Title:              doc.Title,
		Summary:            content.Summary(src, summaryRunes),
		WordCount:          doc.WordCount,
		ReadMinutes:        doc.ReadMinutes,
		Complexity:         content.ComplexityScore(src),
		HasCodeBlocks:      doc.HasCodeBlocks,
		HasMermaidDiagrams: doc.HasMermaidDiagrams,
		HasImages:          doc.HasImages,
		Valid:              validation.Valid(),
	}
	resp.TOC = toTOCResponses(content.TableOfContents(src))
	resp.Errors = validation.Errors
	resp.Warnings = validation.Warnings

	for _, d := range content.ExtractMermaidDiagrams(src) {
		resp.Diagrams = append(resp.Diagrams, DiagramResponse{
			ID:     d.ID,
			Kind:   string(d.Kind),
			Title:  d.Title,
			Source: d.Source,
		})
	}
	for _, c := range content.ExtractCodeBlocks(src) {
		resp.Code = append(resp.Code, CodeBlockResponse{
			ID:       c.ID,
			Language: c.Language,
			Source:   c.Source,
		})
	}
}

func toTOCResponses(entries []model.TOCEntry) []TOCEntryResponse {
	if len(entries) == 0 {
		return nil
	}

	out := make([]TOCEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, TOCEntryResponse{
			ID:       e.ID,
			Title:    e.Title,
			Level:    e.Level,
			Anchor:   e.Anchor,
			Children: toTOCResponses(e.Children),
		})
	}
	return out
}

package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	httphandler "github.com/ericfisherdev/clipview/internal/adapter/driving/http"
)

const idWidth = 8

var (
	accent = lipgloss.Color("#4ade80")
	muted  = lipgloss.Color("#909090")
	warn   = lipgloss.Color("#facc15")

	idStyle      = lipgloss.NewStyle().Foreground(muted)
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(accent)
	labelStyle   = lipgloss.NewStyle().Foreground(muted).Width(14)
	favStyle     = lipgloss.NewStyle().Foreground(warn)
	tagStyle     = lipgloss.NewStyle().Foreground(accent)
	previewStyle = lipgloss.NewStyle()
	badgeStyle   = lipgloss.NewStyle().Foreground(muted).Padding(0, 1)
)

// typeBadge renders the content type as a fixed-width badge.
func typeBadge(t string) string {
	return badgeStyle.Render(fmt.Sprintf("%-7s", t))
}

func shortID(id string) string {
	if len(id) > idWidth {
		return id[:idWidth]
	}
	return id
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms)
}

func star(favorite bool) string {
	if favorite {
		return favStyle.Render("★")
	}
	return " "
}

// oneLine collapses whitespace so a preview fits a table row.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// RenderRecords writes one row per record.
func RenderRecords(w io.Writer, records []httphandler.RecordResponse) {
	if len(records) == 0 {
		fmt.Fprintln(w, idStyle.Render("no records"))
		return
	}

	for _, r := range records {
		row := lipgloss.JoinHorizontal(lipgloss.Top,
			idStyle.Render(shortID(r.ID)), " ",
			star(r.Favorite), " ",
			typeBadge(r.Type), " ",
			previewStyle.Render(oneLine(r.Preview)),
		)

		meta := []string{humanize.Time(fromMillis(r.Timestamp)), humanize.Bytes(uint64(r.Size))}
		if len(r.Tags) > 0 {
			meta = append(meta, tagStyle.Render("#"+strings.Join(r.Tags, " #")))
		}

		fmt.Fprintln(w, row+"  "+idStyle.Render(strings.Join(meta, " · ")))
	}
}

// RenderRecord writes the full record followed by its content.
func RenderRecord(w io.Writer, r httphandler.RecordResponse) {
	field := func(label, value string) {
		fmt.Fprintln(w, labelStyle.Render(label)+value)
	}

	fmt.Fprintln(w, titleStyle.Render(oneLine(r.Preview)))
	field("id", r.ID)
	field("type", r.Type)
	field("captured", fmt.Sprintf("%s (%s)",
		fromMillis(r.Timestamp).Format(time.DateTime), humanize.Time(fromMillis(r.Timestamp))))
	field("size", humanize.Bytes(uint64(r.Size)))
	field("favorite", fmt.Sprintf("%t", r.Favorite))
	if len(r.Tags) > 0 {
		field("tags", strings.Join(r.Tags, ", "))
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, r.Content)
}

// RenderStats writes the history summary.
func RenderStats(w io.Writer, s httphandler.StatsResponse) {
	field := func(label, value string) {
		fmt.Fprintln(w, labelStyle.Render(label)+value)
	}

	fmt.Fprintln(w, titleStyle.Render("Clipboard history"))
	field("items", fmt.Sprintf("%s of %s", humanize.Comma(int64(s.TotalItems)), humanize.Comma(int64(s.MaxItems))))
	field("favorites", humanize.Comma(int64(s.FavoriteItems)))

	types := make([]string, 0, len(s.ByType))
	for t := range s.ByType {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		field("  "+t, humanize.Comma(int64(s.ByType[t])))
	}

	if s.Oldest != nil {
		field("oldest", humanize.Time(fromMillis(*s.Oldest)))
	}
	if s.Newest != nil {
		field("newest", humanize.Time(fromMillis(*s.Newest)))
	}
}

// RenderPreview writes the text parts of a rendered preview. Terminal output
// has no HTML engine, so markdown and mermaid are shown as metadata plus
// sources.
func RenderPreview(w io.Writer, p httphandler.PreviewResponse, content string) {
	fmt.Fprintln(w, titleStyle.Render("format: "+p.Format))

	if d := p.Document; d != nil {
		if d.Title != "" {
			fmt.Fprintln(w, labelStyle.Render("title")+d.Title)
		}
		fmt.Fprintln(w, labelStyle.Render("words")+fmt.Sprintf("%s (%d min read)", humanize.Comma(int64(d.WordCount)), d.ReadMinutes))
		fmt.Fprintln(w, labelStyle.Render("complexity")+fmt.Sprintf("%d/100", d.Complexity))
		if d.Summary != "" {
			fmt.Fprintln(w, labelStyle.Render("summary")+d.Summary)
		}
	}

	if len(p.TOC) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, titleStyle.Render("Contents"))
		renderTOC(w, p.TOC, 0)
	}

	for _, d := range p.Diagrams {
		fmt.Fprintln(w)
		fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("%s (%s)", d.Title, d.Kind)))
		fmt.Fprintln(w, d.Source)
	}

	for _, msg := range p.Errors {
		fmt.Fprintln(w, lipgloss.NewStyle().Foreground(lipgloss.Color("#f87171")).Render("error: "+msg))
	}
	for _, msg := range p.Warnings {
		fmt.Fprintln(w, favStyle.Render("warning: "+msg))
	}

	if p.Document == nil && len(p.Diagrams) == 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, content)
	}
}

func renderTOC(w io.Writer, entries []httphandler.TOCEntryResponse, depth int) {
	for _, e := range entries {
		fmt.Fprintf(w, "%s- %s\n", strings.Repeat("  ", depth), e.Title)
		renderTOC(w, e.Children, depth+1)
	}
}

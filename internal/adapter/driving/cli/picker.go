package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sahilm/fuzzy"

	httphandler "github.com/ericfisherdev/clipview/internal/adapter/driving/http"
)

const pickerRows = 12

var (
	cursorStyle   = lipgloss.NewStyle().Foreground(accent).Bold(true)
	matchStyle    = lipgloss.NewStyle().Foreground(accent).Underline(true)
	selectedStyle = lipgloss.NewStyle().Bold(true)
)

// recordSource adapts records to fuzzy.Source, matching on preview and tags.
type recordSource []httphandler.RecordResponse

func (s recordSource) String(i int) string {
	r := s[i]
	text := oneLine(r.Preview)
	if len(r.Tags) > 0 {
		text += " #" + strings.Join(r.Tags, " #")
	}
	return text
}

func (s recordSource) Len() int { return len(s) }

// PickerModel is a fuzzy-filtered record picker.
type PickerModel struct {
	records recordSource
	input   textinput.Model
	matches fuzzy.Matches
	cursor  int

	chosen   *httphandler.RecordResponse
	canceled bool
}

// NewPickerModel creates a picker over records, newest first.
func NewPickerModel(records []httphandler.RecordResponse) PickerModel {
	input := textinput.New()
	input.Placeholder = "type to filter"
	input.Prompt = "> "
	input.Focus()

	m := PickerModel{records: recordSource(records), input: input}
	m.filter()
	return m
}

// Chosen returns the selected record, or nil when the picker was canceled.
func (m PickerModel) Chosen() *httphandler.RecordResponse {
	return m.chosen
}

// filter recomputes matches for the current query. An empty query keeps
// every record in history order.
func (m *PickerModel) filter() {
	query := strings.TrimSpace(m.input.Value())
	if query == "" {
		m.matches = make(fuzzy.Matches, m.records.Len())
		for i := range m.matches {
			m.matches[i] = fuzzy.Match{Str: m.records.String(i), Index: i}
		}
	} else {
		m.matches = fuzzy.FindFrom(query, m.records)
	}

	if m.cursor >= len(m.matches) {
		m.cursor = max(0, len(m.matches)-1)
	}
}

// Init implements tea.Model.
func (m PickerModel) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (m PickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.canceled = true
			return m, tea.Quit
		case tea.KeyEnter:
			if len(m.matches) > 0 {
				rec := m.records[m.matches[m.cursor].Index]
				m.chosen = &rec
			}
			return m, tea.Quit
		case tea.KeyUp, tea.KeyCtrlP:
			if m.cursor > 0 {
				m.cursor--
			}
			return m, nil
		case tea.KeyDown, tea.KeyCtrlN:
			if m.cursor < len(m.matches)-1 {
				m.cursor++
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.filter()
	return m, cmd
}

// View implements tea.Model.
func (m PickerModel) View() string {
	if m.chosen != nil || m.canceled {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.input.View())
	b.WriteString("\n")

	start := 0
	if m.cursor >= pickerRows {
		start = m.cursor - pickerRows + 1
	}
	end := min(len(m.matches), start+pickerRows)

	for i := start; i < end; i++ {
		match := m.matches[i]
		rec := m.records[match.Index]

		line := fmt.Sprintf("%s %s %s", star(rec.Favorite), typeBadge(rec.Type), highlight(match))
		if i == m.cursor {
			b.WriteString(cursorStyle.Render("▸ ") + selectedStyle.Render(line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}

	b.WriteString(idStyle.Render(fmt.Sprintf("%d/%d  enter copy · esc cancel", len(m.matches), m.records.Len())))
	return b.String()
}

// highlight underlines the matched runes of a fuzzy match.
func highlight(match fuzzy.Match) string {
	if len(match.MatchedIndexes) == 0 {
		return match.Str
	}

	matched := make(map[int]struct{}, len(match.MatchedIndexes))
	for _, idx := range match.MatchedIndexes {
		matched[idx] = struct{}{}
	}

	var b strings.Builder
	for i, r := range match.Str {
		if _, ok := matched[i]; ok {
			b.WriteString(matchStyle.Render(string(r)))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

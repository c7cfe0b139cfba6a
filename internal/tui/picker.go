package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/amishk599/jobscout/internal/model"
)

var (
	pickerTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("39")).
				Padding(1, 0, 1, 2)

	pickerItemStyle = lipgloss.NewStyle().
			Padding(0, 0, 0, 4)

	pickerSelectedStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("39")).
				Bold(true).
				Padding(0, 0, 0, 2)

	pickerHintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Padding(1, 0, 0, 2)
)

var exportFormats = []model.ExportFormat{model.FormatPDF, model.FormatDOCX}

// formatPicker chooses the export format for one posting. It is embedded in
// the detail view rather than run as its own program.
type formatPicker struct {
	company string
	cursor  int
	chosen  *model.ExportFormat
	done    bool
}

func newFormatPicker(company string, preferred model.ExportFormat) formatPicker {
	p := formatPicker{company: company}
	for i, f := range exportFormats {
		if f == preferred {
			p.cursor = i
		}
	}
	return p
}

func (m formatPicker) Update(msg tea.KeyMsg) formatPicker {
	switch msg.String() {
	case "esc", "q":
		m.done = true
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(exportFormats)-1 {
			m.cursor++
		}
	case "enter":
		f := exportFormats[m.cursor]
		m.chosen = &f
		m.done = true
	}
	return m
}

func (m formatPicker) View() string {
	var b strings.Builder
	title := "Export resume"
	if m.company != "" {
		title += " for " + m.company
	}
	b.WriteString(pickerTitleStyle.Render(title))
	b.WriteByte('\n')

	for i, f := range exportFormats {
		label := fmt.Sprintf("%s (%s)", strings.ToUpper(string(f)), f.ContentType())
		if i == m.cursor {
			b.WriteString(pickerSelectedStyle.Render("> "+label) + "\n")
		} else {
			b.WriteString(pickerItemStyle.Render(label) + "\n")
		}
	}

	b.WriteString(pickerHintStyle.Render("↑/↓/j/k navigate  enter export  esc cancel"))
	return b.String()
}

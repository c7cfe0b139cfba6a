package tui

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/amishk599/jobscout/internal/config"
	"github.com/amishk599/jobscout/internal/query"
)

const (
	fieldTitles = iota
	fieldKeywords
	fieldLocations
	fieldSeek
	fieldLinkedIn
	fieldLimit
	numFields
)

var fieldLabels = [numFields]string{"Titles", "Keywords", "Locations", "Seek", "LinkedIn", "Limit"}

// searchForm collects the raw search fields. Values are passed to the
// query builder untouched, so malformed numbers fall back to defaults there.
type searchForm struct {
	inputs [numFields]textinput.Model
	focus  int
}

func newSearchForm(cfg config.SearchConfig) searchForm {
	var f searchForm
	values := [numFields]string{
		strings.Join(cfg.Titles, ", "),
		strings.Join(cfg.Keywords, ", "),
		strings.Join(cfg.Locations, ", "),
		strconv.Itoa(cfg.Allocation["seek"]),
		strconv.Itoa(cfg.Allocation["linkedin"]),
		strconv.Itoa(cfg.Limit),
	}
	placeholders := [numFields]string{
		"backend engineer, platform engineer",
		"go, kubernetes",
		"AU",
		"0-50",
		"0-50",
		"1-100",
	}
	for i := range f.inputs {
		in := textinput.New()
		in.Prompt = ""
		in.Placeholder = placeholders[i]
		in.SetValue(values[i])
		if i >= fieldSeek {
			in.CharLimit = 3
		}
		f.inputs[i] = in
	}
	f.inputs[0].Focus()
	return f
}

func (f searchForm) Input() query.Input {
	return query.Input{
		Titles:    f.inputs[fieldTitles].Value(),
		Keywords:  f.inputs[fieldKeywords].Value(),
		Locations: f.inputs[fieldLocations].Value(),
		Allocation: map[string]string{
			"seek":     f.inputs[fieldSeek].Value(),
			"linkedin": f.inputs[fieldLinkedIn].Value(),
		},
		Limit: f.inputs[fieldLimit].Value(),
	}
}

func (f searchForm) Update(msg tea.KeyMsg) (searchForm, tea.Cmd) {
	switch msg.String() {
	case "tab", "down":
		return f.setFocus((f.focus + 1) % numFields), nil
	case "shift+tab", "up":
		return f.setFocus((f.focus + numFields - 1) % numFields), nil
	}
	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return f, cmd
}

func (f searchForm) setFocus(i int) searchForm {
	f.inputs[f.focus].Blur()
	f.focus = i
	f.inputs[f.focus].Focus()
	return f
}

func (f searchForm) View() string {
	var b strings.Builder
	b.WriteString(detailTitleStyle.Render("New search"))
	b.WriteByte('\n')
	for i, in := range f.inputs {
		label := formLabelStyle
		if i == f.focus {
			label = formFocusedLabelStyle
		}
		b.WriteString("  ")
		b.WriteString(label.Render(fieldLabels[i]))
		b.WriteString(in.View())
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	b.WriteString(hintStyle.Render("  comma separate titles, keywords and locations; counts are per source"))
	return b.String()
}

package audit

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/amishk599/jobhound/internal/model"
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

// SourceOption is one entry of the source picker. An empty Source means all
// sources.
type SourceOption struct {
	Label  string
	Source model.Source
	Count  int
}

// SourceOptions builds the picker entries from the store statistics: all
// sources first, then each adapter.
func SourceOptions(total int, perSource map[model.Source]int) []SourceOption {
	opts := []SourceOption{{Label: "All sources", Count: total}}
	for _, s := range []model.Source{model.SourceSearchIndex, model.SourceInbox} {
		opts = append(opts, SourceOption{Label: sourceName(s), Source: s, Count: perSource[s]})
	}
	return opts
}

type pickerModel struct {
	options []SourceOption
	cursor  int
	chosen  int // -1 = no choice yet, -2 = quit
}

func (m pickerModel) Init() tea.Cmd {
	return nil
}

func (m pickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.chosen = -2
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.options)-1 {
				m.cursor++
			}
		case "enter":
			m.chosen = m.cursor
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m pickerModel) View() string {
	s := pickerTitleStyle.Render("Postings: select a source")
	s += "\n"

	for i, o := range m.options {
		label := fmt.Sprintf("%s (%d)", o.Label, o.Count)
		if i == m.cursor {
			s += pickerSelectedStyle.Render("> "+label) + "\n"
		} else {
			s += pickerItemStyle.Render(label) + "\n"
		}
	}

	s += pickerHintStyle.Render("↑/↓/j/k navigate  enter select  q quit")
	return s
}

// RunSourcePicker shows an interactive source selector.
// Returns the index of the chosen option, or a negative value if the user quit.
func RunSourcePicker(options []SourceOption) (int, error) {
	m := pickerModel{
		options: options,
		chosen:  -1,
	}

	p := tea.NewProgram(m)
	result, err := p.Run()
	if err != nil {
		return -1, err
	}

	final := result.(pickerModel)
	return final.chosen, nil
}

func sourceName(s model.Source) string {
	switch s {
	case model.SourceSearchIndex:
		return "Welcome to the Jungle"
	case model.SourceInbox:
		return "LinkedIn alerts"
	}
	return string(s)
}

package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/pavelanni/flashquiz/internal/quiz"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)
	questionStyle = lipgloss.NewStyle().
			Bold(true).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(1, 2)
	progressStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	listeningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	correctStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	incorrectStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	statusStyle    = lipgloss.NewStyle().Italic(true)
	noteStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(m.tr.T("AppTitle")))
	b.WriteString("\n\n")

	if m.session.Running {
		b.WriteString(progressStyle.Render(m.tr.Td("Progress", map[string]any{
			"N":     m.session.CurrentIndex + 1,
			"Total": len(m.session.Cards),
		})))
		b.WriteString("\n")
	}

	q := questionStyle
	if m.width > 8 {
		q = q.Width(m.width - 4)
	}
	b.WriteString(q.Render(m.question))
	b.WriteString("\n\n")

	b.WriteString(m.heard)
	b.WriteString("\n")

	if m.session.Phase == quiz.PhaseListening {
		b.WriteString(m.spinner.View() + " ")
	}
	b.WriteString(listeningStyle.Render(m.listening))
	b.WriteString("\n\n")

	b.WriteString(correctStyle.Render(m.tr.Td("CorrectCount", map[string]any{"Count": m.session.CorrectCount})))
	b.WriteString("   ")
	b.WriteString(incorrectStyle.Render(m.tr.Td("IncorrectCount", map[string]any{"Count": m.session.IncorrectCount})))
	b.WriteString("\n\n")

	if m.status != "" {
		b.WriteString(statusStyle.Render(m.status))
		b.WriteString("\n")
	}
	if m.note != "" {
		b.WriteString(noteStyle.Render(m.note))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	b.WriteString("\n")
	return b.String()
}

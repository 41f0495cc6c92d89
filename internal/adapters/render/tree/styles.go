package tree

import "github.com/charmbracelet/lipgloss"

type styles struct {
	title      lipgloss.Style
	header     lipgloss.Style
	variable   lipgloss.Style
	typeName   lipgloss.Style
	kind       lipgloss.Style
	value      lipgloss.Style
	unresolved lipgloss.Style
	branch     lipgloss.Style
	empty      lipgloss.Style
	column     lipgloss.Style
	cell       lipgloss.Style
}

func newStyles() styles {
	return styles{
		title:      lipgloss.NewStyle().Bold(true),
		header:     lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		variable:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		typeName:   lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		kind:       lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		value:      lipgloss.NewStyle().Foreground(lipgloss.Color("159")),
		unresolved: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203")),
		branch:     lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
		empty:      lipgloss.NewStyle().Faint(true),
		column:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("250")),
		cell:       lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
	}
}

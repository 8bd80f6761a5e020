package status

import (
	"github.com/bnema/accountpool/internal/domain"
	"github.com/charmbracelet/lipgloss"
)

type styles struct {
	title      lipgloss.Style
	header     lipgloss.Style
	account    lipgloss.Style
	serving    lipgloss.Style
	detail     lipgloss.Style
	warning    lipgloss.Style
	section    lipgloss.Style
	empty      lipgloss.Style
	barBracket lipgloss.Style
	barFill    lipgloss.Style
	barEmpty   lipgloss.Style
	statuses   map[domain.AccountStatus]lipgloss.Style
}

func newStyles() styles {
	return styles{
		title:      lipgloss.NewStyle().Bold(true),
		header:     lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		account:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		serving:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42")),
		detail:     lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		warning:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203")),
		section:    lipgloss.NewStyle().MarginTop(1),
		empty:      lipgloss.NewStyle().Faint(true),
		barBracket: lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
		barFill:    lipgloss.NewStyle().Foreground(lipgloss.Color("159")),
		barEmpty:   lipgloss.NewStyle().Foreground(lipgloss.Color("238")),
		statuses: map[domain.AccountStatus]lipgloss.Style{
			domain.AccountStatusCreated:  lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
			domain.AccountStatusFast:     lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
			domain.AccountStatusRelaxed:  lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
			domain.AccountStatusDisabled: lipgloss.NewStyle().Foreground(lipgloss.Color("203")),
		},
	}
}

func (s styles) status(status domain.AccountStatus) lipgloss.Style {
	if style, ok := s.statuses[status]; ok {
		return style
	}
	return s.detail
}

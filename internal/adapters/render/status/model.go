package status

import (
	"errors"
	"io"

	"github.com/bnema/accountpool/internal/application"
	tea "github.com/charmbracelet/bubbletea"
)

var ErrUnexpectedRenderModel = errors.New("unexpected final bubbletea model type")

type renderReadyMsg struct{}

type model struct {
	pools  []application.PoolStatus
	opts   RenderOptions
	styles styles
	output string
}

func newModel(pools []application.PoolStatus, opts RenderOptions) model {
	return model{
		pools:  pools,
		opts:   opts,
		styles: newStyles(),
	}
}

func (m model) Init() tea.Cmd {
	return func() tea.Msg {
		return renderReadyMsg{}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg.(type) {
	case renderReadyMsg:
		m.output = renderView(m.pools, m.opts, m.styles)
		return m, tea.Quit
	default:
		return m, nil
	}
}

func (m model) View() string {
	return m.output
}

// Render lays out the pools once through a headless bubbletea program and
// returns the final frame.
func Render(pools []application.PoolStatus, opts RenderOptions) (string, error) {
	p := tea.NewProgram(
		newModel(pools, opts),
		tea.WithInput(nil),
		tea.WithOutput(io.Discard),
	)

	finalModel, err := p.Run()
	if err != nil {
		return "", err
	}

	rendered, ok := finalModel.(model)
	if !ok {
		return "", ErrUnexpectedRenderModel
	}

	return rendered.View(), nil
}

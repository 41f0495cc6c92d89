package tree

import (
	"errors"
	"io"

	"github.com/bnema/geppetto/internal/domain"
	tea "github.com/charmbracelet/bubbletea"
)

var ErrUnexpectedRenderModel = errors.New("unexpected final bubbletea model type")

type renderReadyMsg struct{}

type model struct {
	render func(styles) string
	styles styles
	output string
}

func newModel(render func(styles) string) model {
	return model{render: render, styles: newStyles()}
}

func (m model) Init() tea.Cmd {
	return func() tea.Msg {
		return renderReadyMsg{}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg.(type) {
	case renderReadyMsg:
		m.output = m.render(m.styles)
		return m, tea.Quit
	default:
		return m, nil
	}
}

func (m model) View() string {
	return m.output
}

// Render draws the variable tree of gm, or of the sub-tree at opts.Pointer.
func Render(gm *domain.Model, opts RenderOptions) (string, error) {
	if gm == nil {
		return "", errors.New("model is nil")
	}
	return run(func(s styles) string { return renderModel(gm, opts, s) })
}

// RenderResults draws accumulated query records as a table.
func RenderResults(results *domain.QueryResults) (string, error) {
	if results == nil {
		return "", errors.New("query results are nil")
	}
	return run(func(s styles) string { return renderResults(results, s) })
}

func run(render func(styles) string) (string, error) {
	p := tea.NewProgram(
		newModel(render),
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

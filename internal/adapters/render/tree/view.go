package tree

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/bnema/geppetto/internal/domain"
	"github.com/charmbracelet/lipgloss"
)

const (
	maxSeriesValues = 8
	maxJSONWidth    = 60
)

type RenderOptions struct {
	// Pointer limits the view to one variable and its descendants.
	Pointer domain.Pointer
	// MaxDepth stops descending below this many levels; zero means unlimited.
	MaxDepth   int
	HideValues bool
}

func renderModel(gm *domain.Model, opts RenderOptions, s styles) string {
	lines := []string{
		s.title.Render(fmt.Sprintf("Model %s (%s)", gm.Name, gm.ID)),
		s.header.Render(fmt.Sprintf("libraries: %d  variables: %d", len(gm.Libraries()), len(gm.Variables()))),
	}

	roots := gm.Variables()
	if !opts.Pointer.IsRoot() {
		v, err := gm.Find(opts.Pointer)
		if err != nil {
			lines = append(lines, s.unresolved.Render(err.Error()))
			return lipgloss.JoinVertical(lipgloss.Left, lines...)
		}
		roots = []*domain.Variable{v}
	}

	if len(roots) == 0 {
		lines = append(lines, s.empty.Render("No variables."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	w := treeWriter{opts: opts, styles: s, path: map[*domain.CompositeType]struct{}{}}
	for i, v := range roots {
		w.variable(v, "", i == len(roots)-1, 1)
	}
	lines = append(lines, w.lines...)

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

type treeWriter struct {
	opts   RenderOptions
	styles styles
	lines  []string
	// path holds the composites on the current branch so recursive types
	// print once.
	path map[*domain.CompositeType]struct{}
}

func (w *treeWriter) variable(v *domain.Variable, prefix string, last bool, depth int) {
	s := w.styles
	connector, childPrefix := "├─ ", prefix+"│  "
	if last {
		connector, childPrefix = "└─ ", prefix+"   "
	}

	label := s.variable.Render(string(v.ID))
	if name := v.Name(); name != "" && name != string(v.ID) {
		label += s.kind.Render(" " + strconv.Quote(name))
	}
	types := v.Types()
	for i, t := range types {
		sep := " : "
		if i > 0 {
			sep = ", "
		}
		label += s.typeName.Render(sep) + w.typeLabel(t)
	}
	if !w.opts.HideValues {
		if value, ok := v.InitialValue(); ok {
			label += s.branch.Render(" = ") + w.valueLabel(value)
		}
	}
	w.lines = append(w.lines, s.branch.Render(prefix+connector)+label)

	if w.opts.MaxDepth > 0 && depth >= w.opts.MaxDepth {
		return
	}

	var children []*domain.Variable
	var entered []*domain.CompositeType
	for _, t := range types {
		ct, ok := domain.Concrete(t).(*domain.CompositeType)
		if !ok {
			continue
		}
		if _, cycle := w.path[ct]; cycle {
			continue
		}
		w.path[ct] = struct{}{}
		entered = append(entered, ct)
		children = append(children, ct.Variables()...)
	}
	for i, child := range children {
		w.variable(child, childPrefix, i == len(children)-1, depth+1)
	}
	for _, ct := range entered {
		delete(w.path, ct)
	}
}

func (w *treeWriter) typeLabel(t domain.Type) string {
	s := w.styles
	meta := t.Meta()
	switch typed := t.(type) {
	case *domain.SimpleType:
		label := s.typeName.Render(string(meta.ID))
		if typed.Unit != "" {
			label += s.kind.Render(" (" + typed.Unit + ")")
		}
		return label
	case *domain.CompositeType:
		return s.typeName.Render(string(meta.ID)) + s.kind.Render(" [composite]")
	case *domain.ImportType:
		resolved, ok := typed.Resolved()
		if !ok {
			return s.typeName.Render(string(meta.ID)) + s.unresolved.Render(" [import "+typed.URL+", unresolved]")
		}
		return w.typeLabel(resolved) + s.kind.Render(" [from "+typed.URL+"]")
	default:
		return s.typeName.Render(string(meta.ID))
	}
}

func (w *treeWriter) valueLabel(value domain.Value) string {
	s := w.styles
	if iv, ok := value.(*domain.ImportValue); ok {
		resolved, ok := iv.Resolved()
		if !ok {
			return s.unresolved.Render("import " + iv.URL + " (unresolved)")
		}
		value = resolved
	}
	return s.kind.Render(domain.Kind(value)+" ") + s.value.Render(FormatValue(value))
}

// FormatValue renders a concrete value on one line.
func FormatValue(value domain.Value) string {
	switch typed := domain.ConcreteValue(value).(type) {
	case nil:
		return ""
	case domain.Text:
		return strconv.Quote(typed.Text)
	case domain.Quantity:
		return strings.TrimSpace(strconv.FormatFloat(typed.Value, 'g', -1, 64) + " " + typed.Unit)
	case domain.TimeSeries:
		shown := typed.Values
		more := ""
		if len(shown) > maxSeriesValues {
			shown = shown[:maxSeriesValues]
			more = fmt.Sprintf(" …(+%d)", len(typed.Values)-maxSeriesValues)
		}
		parts := make([]string, 0, len(shown))
		for _, f := range shown {
			parts = append(parts, strconv.FormatFloat(f, 'g', -1, 64))
		}
		return strings.TrimSpace("[" + strings.Join(parts, " ") + more + "] " + typed.Unit)
	case domain.JSON:
		data, err := json.Marshal(typed.Data)
		if err != nil {
			return fmt.Sprintf("%v", typed.Data)
		}
		return truncate(string(data), maxJSONWidth)
	case *domain.ImportValue:
		return "import " + typed.URL
	default:
		return fmt.Sprintf("%v", typed)
	}
}

func truncate(text string, width int) string {
	runes := []rune(text)
	if len(runes) <= width {
		return text
	}
	return string(runes[:width-1]) + "…"
}

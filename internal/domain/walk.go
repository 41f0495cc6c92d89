package domain

// UnresolvedImports lists every unresolved import type reachable from v,
// descending through composite types and resolved imports.
func UnresolvedImports(v *Variable) []*ImportType {
	var out []*ImportType
	Walk(v, func(_ *Variable, t Type) {
		if it, ok := t.(*ImportType); ok {
			if _, resolved := it.Resolved(); !resolved {
				out = append(out, it)
			}
		}
	}, nil)
	return out
}

// UnresolvedValues lists every unresolved import value reachable from v.
func UnresolvedValues(v *Variable) []*ImportValue {
	var out []*ImportValue
	Walk(v, nil, func(_ *Variable, value Value) {
		if iv, ok := value.(*ImportValue); ok {
			if _, resolved := iv.Resolved(); !resolved {
				out = append(out, iv)
			}
		}
	})
	return out
}

// Walk visits every type and initial value reachable from v in depth-first
// order. Either callback may be nil. Each composite type is entered once.
func Walk(v *Variable, onType func(*Variable, Type), onValue func(*Variable, Value)) {
	w := walker{onType: onType, onValue: onValue, seen: map[*CompositeType]struct{}{}}
	w.variable(v)
}

type walker struct {
	onType  func(*Variable, Type)
	onValue func(*Variable, Value)
	seen    map[*CompositeType]struct{}
}

func (w *walker) variable(v *Variable) {
	if v == nil {
		return
	}
	for _, t := range v.Types() {
		w.typ(v, t)
	}
	if w.onValue == nil {
		return
	}
	for _, tv := range v.InitialValues() {
		if tv.Value == nil {
			continue
		}
		w.onValue(v, tv.Value)
		if iv, ok := tv.Value.(*ImportValue); ok {
			if resolved, ok := iv.Resolved(); ok && resolved != nil {
				w.onValue(v, resolved)
			}
		}
	}
}

func (w *walker) typ(owner *Variable, t Type) {
	if w.onType != nil {
		w.onType(owner, t)
	}
	switch typed := t.(type) {
	case *ImportType:
		if resolved, ok := typed.Resolved(); ok && resolved != nil {
			w.typ(owner, resolved)
		}
	case *CompositeType:
		if _, ok := w.seen[typed]; ok {
			return
		}
		w.seen[typed] = struct{}{}
		for _, child := range typed.Variables() {
			w.variable(child)
		}
	case *SimpleType:
	}
}

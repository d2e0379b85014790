package filter

// Term is one column predicate of a Map.
type Term struct {
	Column string
	Filter Filter
}

// Map is an insertion-ordered set of column filters. Setting a column that
// is already present replaces its filter but keeps its original position.
// Map values are never modified in place; every mutator returns a copy.
type Map struct {
	terms []Term
}

// Where starts a Map with one term.
func Where(column string, f Filter) Map {
	return Map{}.And(column, f)
}

// And returns a copy of m with column set to f.
func (m Map) And(column string, f Filter) Map {
	out := m.clone(1)
	out.set(column, f)
	return out
}

// Merge returns a copy of m with every term of others applied in order,
// last write wins per column.
func (m Map) Merge(others ...Map) Map {
	n := 0
	for _, o := range others {
		n += len(o.terms)
	}
	out := m.clone(n)
	for _, o := range others {
		for _, t := range o.terms {
			out.set(t.Column, t.Filter)
		}
	}
	return out
}

// Get returns the filter for column.
func (m Map) Get(column string) (Filter, bool) {
	for _, t := range m.terms {
		if t.Column == column {
			return t.Filter, true
		}
	}
	return nil, false
}

// Len returns the number of terms.
func (m Map) Len() int { return len(m.terms) }

// Terms returns the terms in insertion order.
func (m Map) Terms() []Term {
	out := make([]Term, len(m.terms))
	copy(out, m.terms)
	return out
}

// Columns returns the filtered column names in insertion order.
func (m Map) Columns() []string {
	out := make([]string, len(m.terms))
	for i, t := range m.terms {
		out[i] = t.Column
	}
	return out
}

func (m Map) clone(extra int) Map {
	terms := make([]Term, len(m.terms), len(m.terms)+extra)
	copy(terms, m.terms)
	return Map{terms: terms}
}

func (m *Map) set(column string, f Filter) {
	for i := range m.terms {
		if m.terms[i].Column == column {
			m.terms[i].Filter = f
			return
		}
	}
	m.terms = append(m.terms, Term{Column: column, Filter: f})
}

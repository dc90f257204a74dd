package mtl

import (
	"slices"
	"strconv"
	"strings"
)

// Config configures a [Renderer]. The zero value is usable: no external
// providers, no custom filter, and an empty none-string.
type Config struct {
	// Providers are consulted in order before the built-in punctuation
	// and format fields. The first provider to claim a field wins.
	Providers []FieldProvider

	// Filter handles filter names outside the built-in catalog.
	Filter FilterFunc

	// Sanitize, when set, is applied to every rendered string.
	Sanitize func(string) string

	// SanitizeValue, when set, is applied to every resolved field value
	// before filters run.
	SanitizeValue func(string) string

	// ExpandInplace joins every multi-valued field with InplaceSep, as
	// if each expression carried a delimiter.
	ExpandInplace bool

	// InplaceSep is the separator used by ExpandInplace. Defaults to ",".
	InplaceSep string

	// NoneStr is the placeholder substituted for a field that resolves
	// to no values when the expression has no default clause.
	NoneStr string
}

// Renderer renders MTL template strings against a file.
//
// A Renderer owns a per-render variable store and must not be shared by
// concurrent renders; use one Renderer per goroutine. Variable bindings
// do not survive from one Render call to the next.
type Renderer struct {
	providers     []FieldProvider
	filter        FilterFunc
	sanitize      func(string) string
	sanitizeValue func(string) string
	expandInplace bool
	inplaceSep    string
	noneStr       string

	vars map[string][]string
}

// New creates a Renderer from cfg.
func New(cfg Config) *Renderer {
	sep := cfg.InplaceSep
	if sep == "" {
		sep = ","
	}
	return &Renderer{
		providers:     cfg.Providers,
		filter:        cfg.Filter,
		sanitize:      cfg.Sanitize,
		sanitizeValue: cfg.SanitizeValue,
		expandInplace: cfg.ExpandInplace,
		inplaceSep:    sep,
		noneStr:       cfg.NoneStr,
	}
}

// Render parses template and renders it against the file at path,
// returning one string per combination of multi-valued results. An empty
// template renders to no strings.
//
// Errors are [*SyntaxError] for malformed templates and invalid
// constructs, [*UnknownFieldError] for fields no provider claims, and
// whatever a provider returned, unchanged.
func (r *Renderer) Render(path, template string) ([]string, error) {
	ts, err := Parse(template)
	if err != nil {
		return nil, err
	}
	r.vars = make(map[string][]string)
	return r.renderStatement(path, ts)
}

// renderStatement renders the segments of ts in order, accumulating the
// cartesian concatenation of their alternatives.
func (r *Renderer) renderStatement(path string, ts *TemplateString) ([]string, error) {
	var results []string
	for i := range ts.Segments {
		var err error
		results, err = r.renderSegment(path, &ts.Segments[i], results)
		if err != nil {
			return nil, err
		}
	}
	if r.sanitize != nil {
		results = mapValues(results, r.sanitize)
	}
	return results, nil
}

// renderSegment renders one segment and combines it with the
// accumulated results of the preceding segments.
func (r *Renderer) renderSegment(path string, seg *TemplateSegment, results []string) ([]string, error) {
	if results == nil {
		results = []string{""}
	}

	if seg.Expr == nil {
		out := make([]string, len(results))
		for i, res := range results {
			out[i] = res + seg.Pre + seg.Post
		}
		return out, nil
	}
	e := seg.Expr

	var delim string
	if e.HasDelim {
		var err error
		delim, err = r.expandVariablesOne(e.Delim, "delim")
		if err != nil {
			return nil, err
		}
	}

	// Nested clauses are rendered up front; a default clause may carry
	// side effects (variable assignment) and its values feed the
	// built-in format and strip fields.
	var combineVals, boolVals, defaultVals, condVals []string
	var err error
	if e.Combine != nil {
		if combineVals, err = r.renderStatement(path, e.Combine); err != nil {
			return nil, err
		}
	}
	if e.Bool != nil {
		if boolVals, err = r.renderStatement(path, e.Bool); err != nil {
			return nil, err
		}
	}
	if e.Default != nil {
		if defaultVals, err = r.renderStatement(path, e.Default); err != nil {
			return nil, err
		}
	}
	if e.Conditional != nil {
		rendered, err := r.renderStatement(path, e.Conditional.Value)
		if err != nil {
			return nil, err
		}
		// Comparands may reference variables without braces, e.g.
		// {filepath.name endswith %ext?...}.
		for _, c := range rendered {
			expanded, err := r.expandVariables(c)
			if err != nil {
				return nil, err
			}
			condVals = append(condVals, expanded...)
		}
	}

	var vals []string
	switch {
	case strings.HasPrefix(e.Field, "%"):
		stored, ok := r.vars[e.Field[1:]]
		if !ok {
			return nil, syntaxErrorf("variable %q is not defined", e.Field[1:])
		}
		vals = slices.Clone(stored)

	case e.Field == "var":
		if e.Subfield == "" || e.Default == nil {
			return nil, syntaxErrorf("var requires a name and value in form {var:name,value}")
		}
		var assign []string
		for _, v := range defaultVals {
			if v != "" {
				assign = append(assign, v)
			}
		}
		r.vars[e.Subfield] = assign

	default:
		ptrs, ok, err := r.fieldValues(path, e, defaultVals)
		if err != nil {
			return nil, err
		}
		if !ok && e.Default == nil {
			// A default clause rescues an unclaimed field; without one
			// the field is an error.
			return nil, &UnknownFieldError{Field: e.Field}
		}
		for _, p := range ptrs {
			if p != nil {
				vals = append(vals, *p)
			}
		}
		if r.sanitizeValue != nil {
			vals = mapValues(vals, r.sanitizeValue)
		}
	}

	if r.expandInplace || e.HasDelim {
		sep := r.inplaceSep
		if e.HasDelim {
			sep = delim
		}
		if len(vals) > 0 {
			vals = []string{strings.Join(vals, sep)}
		} else {
			vals = nil
		}
	}

	for _, f := range e.Filters {
		if vals, err = r.applyFilter(f, vals); err != nil {
			return nil, err
		}
	}

	if len(e.FindReplace) > 0 {
		out := make([]string, len(vals))
		for i, v := range vals {
			for _, pair := range e.FindReplace {
				find, err := r.expandVariablesOne(pair.Find, "find/replace")
				if err != nil {
					return nil, err
				}
				replace, err := r.expandVariablesOne(pair.Replace, "find/replace")
				if err != nil {
					return nil, err
				}
				v = strings.ReplaceAll(v, find, replace)
			}
			out[i] = v
		}
		vals = out
	}

	if e.Conditional != nil {
		if vals, err = evalConditional(e.Conditional, vals, condVals); err != nil {
			return nil, err
		}
	}

	if e.Combine != nil {
		for _, c := range combineVals {
			if c != "" {
				vals = append(vals, c)
			}
		}
	}

	if e.Bool != nil {
		if len(vals) > 0 {
			vals = boolVals
		} else {
			vals = defaultVals
		}
	} else if len(vals) == 0 && e.Field != "var" {
		if e.Default != nil {
			vals = defaultVals
		} else {
			vals = []string{r.noneStr}
		}
	}

	var rendered []string
	if len(vals) > 0 {
		rendered = make([]string, len(vals))
		for i, v := range vals {
			rendered[i] = seg.Pre + v + seg.Post
		}
	} else {
		rendered = []string{seg.Pre + seg.Post}
	}

	out := make([]string, 0, len(results)*len(rendered))
	for _, res := range results {
		for _, ren := range rendered {
			out = append(out, res+ren)
		}
	}
	return out, nil
}

// fieldValues consults the provider chain: external providers first,
// then the built-in punctuation and format fields.
func (r *Renderer) fieldValues(path string, e *TemplateExpression, def []string) ([]*string, bool, error) {
	for _, p := range r.providers {
		vals, ok, err := p.TemplateValue(path, e.Field, e.Subfield, e.FieldArg, def)
		if ok || err != nil {
			return vals, ok, err
		}
	}
	if vals, ok := punctuationValues(e.Field); ok {
		return Vals(vals...), true, nil
	}
	vals, ok, err := r.formatValues(e.Field, e.Subfield, def)
	if ok || err != nil {
		return Vals(vals...), ok, err
	}
	return nil, false, nil
}

// evalConditional reduces vals to ["True"] or nothing according to the
// comparison.
func evalConditional(cond *Conditional, vals, comparands []string) ([]string, error) {
	var match bool
	switch cond.Operator {
	case "contains", "matches", "startswith", "endswith":
		var test func(v, c string) bool
		switch cond.Operator {
		case "contains":
			test = strings.Contains
		case "matches":
			test = func(v, c string) bool { return v == c }
		case "startswith":
			test = strings.HasPrefix
		case "endswith":
			test = strings.HasSuffix
		}
		// Each comparand may carry |-separated alternatives.
		var split []string
		for _, c := range comparands {
			split = append(split, strings.Split(c, "|")...)
		}
	outer:
		for _, c := range split {
			for _, v := range vals {
				if test(v, c) {
					match = true
					break outer
				}
			}
		}

	case "==", "!=":
		sortedVals := slices.Clone(vals)
		slices.Sort(sortedVals)
		sortedComparands := slices.Clone(comparands)
		slices.Sort(sortedComparands)
		match = slices.Equal(sortedVals, sortedComparands)
		if cond.Operator == "!=" {
			match = !match
		}

	case "<", "<=", ">", ">=":
		if len(comparands) != 1 {
			return nil, syntaxErrorf("comparison operators may only be used with a single conditional value")
		}
		for _, v := range vals {
			fv, err1 := strconv.ParseFloat(v, 64)
			fc, err2 := strconv.ParseFloat(comparands[0], 64)
			if err1 != nil || err2 != nil {
				return nil, syntaxErrorf("comparison operators may only be used with values that can be converted to numbers: %v %v", vals, comparands)
			}
			switch cond.Operator {
			case "<":
				match = fv < fc
			case "<=":
				match = fv <= fc
			case ">":
				match = fv > fc
			case ">=":
				match = fv >= fc
			}
			if match {
				break
			}
		}
	}

	if match != cond.Negated {
		return []string{"True"}, nil
	}
	return nil, nil
}

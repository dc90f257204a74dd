package mtl

import (
	"slices"
	"strconv"
	"strings"

	"al.essio.dev/pkg/shellescape"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// FilterFunc handles filters outside the built-in catalog. It receives
// the filter name, its argument (empty when absent), and the current
// value list. Returning ok=false means the filter is not handled, which
// the evaluator reports as a syntax error.
type FilterFunc func(name, arg string, values []string) (vals []string, ok bool, err error)

// requiresArg lists the built-in filters that demand a non-empty
// argument.
var requiresArg = map[string]bool{
	"split":   true,
	"chop":    true,
	"chomp":   true,
	"append":  true,
	"prepend": true,
	"remove":  true,
	"slice":   true,
	"sslice":  true,
}

// applyFilter applies one |filter invocation to values. Variables in the
// argument are expanded first and must yield a single string.
func (r *Renderer) applyFilter(f Filter, values []string) ([]string, error) {
	var arg string
	if f.HasArg {
		var err error
		arg, err = r.expandVariablesOne(f.Arg, "filter arguments")
		if err != nil {
			return nil, err
		}
	}
	if requiresArg[f.Name] && arg == "" {
		return nil, syntaxErrorf("%s requires arguments", f.Name)
	}

	switch f.Name {
	case "lower":
		return mapValues(values, strings.ToLower), nil
	case "upper":
		return mapValues(values, strings.ToUpper), nil
	case "strip":
		return mapValues(values, strings.TrimSpace), nil
	case "capitalize":
		return mapValues(values, capitalize), nil
	case "titlecase":
		return mapValues(values, cases.Title(language.Und).String), nil
	case "braces":
		return mapValues(values, func(v string) string { return "{" + v + "}" }), nil
	case "parens":
		return mapValues(values, func(v string) string { return "(" + v + ")" }), nil
	case "brackets":
		return mapValues(values, func(v string) string { return "[" + v + "]" }), nil
	case "shell_quote":
		return mapValues(values, shellescape.Quote), nil

	case "split":
		var out []string
		for _, v := range values {
			out = append(out, strings.Split(v, arg)...)
		}
		return out, nil
	case "autosplit":
		var out []string
		for _, v := range values {
			v = strings.ReplaceAll(v, ",", " ")
			v = strings.ReplaceAll(v, ";", " ")
			out = append(out, strings.Fields(v)...)
		}
		return out, nil

	case "chop", "chomp":
		n, err := strconv.Atoi(arg)
		if err != nil || n < 0 {
			return nil, syntaxErrorf("invalid value for %s: %s", f.Name, arg)
		}
		if n == 0 {
			return values, nil
		}
		return mapValues(values, func(v string) string {
			runes := []rune(v)
			if n >= len(runes) {
				return ""
			}
			if f.Name == "chop" {
				return string(runes[:len(runes)-n])
			}
			return string(runes[n:])
		}), nil

	case "sort":
		out := slices.Clone(values)
		slices.Sort(out)
		return out, nil
	case "rsort":
		out := slices.Clone(values)
		slices.Sort(out)
		slices.Reverse(out)
		return out, nil
	case "reverse":
		out := slices.Clone(values)
		slices.Reverse(out)
		return out, nil
	case "uniq":
		var out []string
		for _, v := range values {
			if !slices.Contains(out, v) {
				out = append(out, v)
			}
		}
		return out, nil

	case "join":
		return []string{strings.Join(values, arg)}, nil
	case "append":
		return append(slices.Clone(values), arg), nil
	case "prepend":
		return append([]string{arg}, values...), nil
	case "appends":
		return mapValues(values, func(v string) string { return v + arg }), nil
	case "prepends":
		return mapValues(values, func(v string) string { return arg + v }), nil
	case "remove":
		var out []string
		for _, v := range values {
			if v != arg {
				out = append(out, v)
			}
		}
		return out, nil

	case "slice":
		sl, err := parseSliceArg(arg)
		if err != nil {
			return nil, err
		}
		idx, err := sl.indices(len(values))
		if err != nil {
			return nil, err
		}
		out := make([]string, len(idx))
		for i, j := range idx {
			out[i] = values[j]
		}
		return out, nil
	case "sslice":
		sl, err := parseSliceArg(arg)
		if err != nil {
			return nil, err
		}
		out := make([]string, len(values))
		for i, v := range values {
			runes := []rune(v)
			idx, err := sl.indices(len(runes))
			if err != nil {
				return nil, err
			}
			sliced := make([]rune, len(idx))
			for k, j := range idx {
				sliced[k] = runes[j]
			}
			out[i] = string(sliced)
		}
		return out, nil
	}

	if r.filter != nil {
		vals, ok, err := r.filter(f.Name, arg, values)
		if err != nil {
			return nil, err
		}
		if ok {
			return vals, nil
		}
	}
	return nil, syntaxErrorf("unhandled filter: %s", f.Name)
}

func mapValues(values []string, fn func(string) string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = fn(v)
	}
	return out
}

// capitalize uppercases the first rune and lowercases the rest.
func capitalize(s string) string {
	runes := []rune(s)
	if len(runes) == 0 {
		return s
	}
	return strings.ToUpper(string(runes[:1])) + strings.ToLower(string(runes[1:]))
}

// sliceArgs is a start:end:step slice expression. Nil means the bound
// was omitted.
type sliceArgs struct {
	start, end, step *int
}

// parseSliceArg parses a slice argument in form "start:end:step", where
// each part may be empty or negative.
func parseSliceArg(arg string) (sliceArgs, error) {
	parts := strings.Split(arg, ":")
	if len(parts) > 3 {
		return sliceArgs{}, syntaxErrorf("invalid slice: %s", arg)
	}
	var sl sliceArgs
	dests := []**int{&sl.start, &sl.end, &sl.step}
	for i, part := range parts {
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return sliceArgs{}, syntaxErrorf("invalid slice: %s", arg)
		}
		*dests[i] = &n
	}
	return sl, nil
}

// indices returns the element indices selected by the slice over a
// sequence of length n, with negative bounds and steps handled the way
// list slicing conventionally does.
func (sl sliceArgs) indices(n int) ([]int, error) {
	step := 1
	if sl.step != nil {
		step = *sl.step
		if step == 0 {
			return nil, syntaxErrorf("slice step cannot be zero")
		}
	}

	lower, upper := 0, n
	if step < 0 {
		lower, upper = -1, n-1
	}

	clamp := func(bound *int, def int) int {
		if bound == nil {
			return def
		}
		v := *bound
		if v < 0 {
			v += n
			if v < lower {
				v = lower
			}
		} else if v > upper {
			v = upper
		}
		return v
	}

	var start, end int
	if step > 0 {
		start = clamp(sl.start, lower)
		end = clamp(sl.end, upper)
	} else {
		start = clamp(sl.start, upper)
		end = clamp(sl.end, lower)
	}

	var idx []int
	if step > 0 {
		for i := start; i < end; i += step {
			idx = append(idx, i)
		}
	} else {
		for i := start; i > end; i += step {
			idx = append(idx, i)
		}
	}
	return idx, nil
}

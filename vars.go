package mtl

// Variable expansion for string contexts. Filter arguments, find/replace
// text, and format strings may reference variables as %name; %% escapes a
// literal percent sign. Delimiters are expanded too, but the parser ends a
// delimiter at a single %, so they can hold %% and never %name. A reference to a
// multi-valued variable multiplies the result, so contexts that need a
// single string go through expandVariablesOne.

import "strings"

// expandVariables replaces %name references in s with the values bound
// in the variable store. A multi-valued variable produces one result per
// combination of values. Referencing an undefined variable is a syntax
// error. %% pairs are left alone during scanning and collapsed to a
// single % at the end.
func (r *Renderer) expandVariables(s string) ([]string, error) {
	for i := 0; i < len(s); i++ {
		if s[i] != '%' {
			continue
		}
		if i+1 < len(s) && s[i+1] == '%' {
			i++ // skip the escaped pair
			continue
		}
		j := i + 1
		for j < len(s) && isIdentByte(s[j]) {
			j++
		}
		if j == i+1 {
			continue // bare % is literal
		}
		name := s[i+1 : j]
		vals, ok := r.vars[name]
		if !ok {
			return nil, syntaxErrorf("variable %q is not defined", name)
		}
		tails, err := r.expandVariables(s[j:])
		if err != nil {
			return nil, err
		}
		pre := unescapePercent(s[:i])
		out := make([]string, 0, len(vals)*len(tails))
		for _, v := range vals {
			for _, tail := range tails {
				out = append(out, pre+v+tail)
			}
		}
		return out, nil
	}
	return []string{unescapePercent(s)}, nil
}

// expandVariablesOne expands variables in s and requires the expansion
// to produce exactly one value. what names the context for the error
// message.
func (r *Renderer) expandVariablesOne(s, what string) (string, error) {
	vals, err := r.expandVariables(s)
	if err != nil {
		return "", err
	}
	if len(vals) != 1 {
		return "", syntaxErrorf("%s must expand to a single value, not %d", what, len(vals))
	}
	return vals[0], nil
}

func unescapePercent(s string) string {
	return strings.ReplaceAll(s, "%%", "%")
}

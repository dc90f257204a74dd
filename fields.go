package mtl

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/cast"
)

// HelpEntry is one element of a provider's template help: either a
// markdown paragraph or a two-column table whose first row is the header.
// Exactly one of Text and Table is set.
type HelpEntry struct {
	Text  string
	Table [][]string
}

// FieldProvider supplies values for template fields.
//
// TemplateValue resolves one field for the named file. The def argument
// carries the rendered default clause, which value-transforming fields
// (such as the built-in format field) operate on. The return values
// distinguish three cases:
//
//   - ok=false: the provider does not claim the field; the next provider
//     in the chain is consulted.
//   - ok=true with an empty (or all-nil) slice: the field is claimed but
//     has no value.
//   - ok=true with values: nil entries are stripped by the evaluator
//     before further processing.
//
// A non-nil error aborts the render and is returned to the caller
// unchanged. Providers must be safe for concurrent use and must not
// retain evaluator state.
//
// TemplateHelp describes the provider's fields for help output.
type FieldProvider interface {
	TemplateValue(path, field, subfield, fieldArg string, def []string) (vals []*string, ok bool, err error)
	TemplateHelp() []HelpEntry
}

// punctuation maps field names to the literal characters they render to.
// These fields are how templates spell characters that the grammar
// reserves. Built once; safe for concurrent use.
var punctuation = sync.OnceValue(func() map[string][2]string {
	return map[string][2]string{
		"comma":        {",", "A comma: ','"},
		"semicolon":    {";", "A semicolon: ';'"},
		"questionmark": {"?", "A question mark: '?'"},
		"pipe":         {"|", "A vertical pipe: '|'"},
		"percent":      {"%", "A percent sign: '%'"},
		"ampersand":    {"&", "An ampersand: '&'"},
		"openbrace":    {"{", "An open brace: '{'"},
		"closebrace":   {"}", "A close brace: '}'"},
		"openparens":   {"(", "An open parenthesis: '('"},
		"closeparens":  {")", "A close parenthesis: ')'"},
		"openbracket":  {"[", "An open bracket: '['"},
		"closebracket": {"]", "A close bracket: ']'"},
		"newline":      {"\n", `A newline: '\n'`},
		"lf":           {"\n", `A line feed: '\n', alias for {newline}`},
		"cr":           {"\r", `A carriage return: '\r'`},
		"crlf":         {"\r\n", `A carriage return + line feed: '\r\n'`},
	}
})

// BuiltinHelp describes the punctuation and format fields that every
// Renderer provides, in the same form as [FieldProvider.TemplateHelp].
func BuiltinHelp() []HelpEntry {
	table := [][]string{{"Field", "Description"}}
	names := make([]string, 0, len(punctuation()))
	for name := range punctuation() {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		table = append(table, []string{"{" + name + "}", punctuation()[name][1]})
	}
	return []HelpEntry{
		{Text: "**Punctuation Fields**"},
		{Table: table},
		{Text: "**Formatting Fields**"},
		{Table: [][]string{
			{"Field", "Description"},
			{"{strip,TEMPLATE}", "Strip whitespace from the rendered TEMPLATE value(s)"},
			{"{format:TYPE:FORMAT,TEMPLATE}", "Convert TEMPLATE value(s) to TYPE (int, float, or str) and format with the printf-style code FORMAT, e.g. {format:int:02d,{size}}"},
		}},
	}
}

// punctuationValues resolves the built-in punctuation fields.
func punctuationValues(field string) ([]string, bool) {
	p, ok := punctuation()[field]
	if !ok {
		return nil, false
	}
	return []string{p[0]}, true
}

// formatValues resolves the built-in strip and format fields, which
// transform the rendered default clause rather than read file metadata.
//
// {strip,TEMPLATE} trims whitespace from each rendered value.
// {format:TYPE:FMT,TEMPLATE} converts each value to TYPE (int, float, or
// str) and formats it with the printf-style format code FMT.
func (r *Renderer) formatValues(field, subfield string, def []string) ([]string, bool, error) {
	switch field {
	case "strip":
		vals := make([]string, len(def))
		for i, v := range def {
			vals[i] = strings.TrimSpace(v)
		}
		return vals, true, nil

	case "format":
		typ, format, found := strings.Cut(subfield, ":")
		if !found {
			return nil, false, syntaxErrorf("format requires subfield in form TYPE:FORMAT")
		}
		format, err := r.expandVariablesOne(format, "format string")
		if err != nil {
			return nil, false, err
		}
		vals := make([]string, len(def))
		for i, v := range def {
			vals[i], err = formatValue(typ, format, v)
			if err != nil {
				return nil, false, err
			}
		}
		return vals, true, nil
	}
	return nil, false, nil
}

// formatValue converts raw to typ and renders it with a printf-style
// format code such as 02d or .2f (the leading '%' is implied).
func formatValue(typ, format, raw string) (string, error) {
	switch typ {
	case "int":
		// Convert through float so numeric-looking strings like "2.0"
		// still convert.
		f, err := cast.ToFloat64E(raw)
		if err != nil {
			return "", syntaxErrorf("format: cannot convert %q to int", raw)
		}
		return sprintFormat(format, 'd', int64(f))
	case "float":
		f, err := cast.ToFloat64E(raw)
		if err != nil {
			return "", syntaxErrorf("format: cannot convert %q to float", raw)
		}
		return sprintFormat(format, 'f', f)
	case "str":
		return sprintFormat(format, 's', raw)
	}
	return "", syntaxErrorf("%q is not a valid type for format: must be one of 'int', 'float', 'str'", typ)
}

// sprintFormat applies a printf-style format code to v, appending the
// default verb when the code omits one.
func sprintFormat(format string, verb byte, v any) (string, error) {
	if format == "" {
		format = string(verb)
	}
	if c := format[len(format)-1]; '0' <= c && c <= '9' || c == '.' {
		format += string(verb)
	}
	out := fmt.Sprintf("%"+format, v)
	if strings.Contains(out, "%!") {
		return "", syntaxErrorf("invalid format code %q", format)
	}
	return out, nil
}

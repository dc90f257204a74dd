// Package mtl parses and renders the Metadata Template Language (MTL),
// a small expression language for printing file metadata.
//
// A template string interleaves literal text with brace-delimited
// expressions. Each expression names a field, which is resolved to a list
// of string values by a chain of field providers:
//
//	{filepath.name}: {size} bytes
//
// Fields may be filtered, compared, combined, and defaulted:
//
//	{tags|sort|join(-)}
//	{size > 1000000?big,small}
//	{var:ext,jpg}{filepath.name endswith %ext?match,no match}
//
// A rendered template is a list of strings, not a single string: a
// multi-valued field multiplies the output. The final result is the
// cartesian concatenation of every segment's alternatives, in order.
//
// # Syntax
//
// The grammar in EBNF:
//
//	template    = { segment } .
//	segment     = text [ expression ] text .
//	expression  = "{" [ delim ] field [ subfield ] [ fieldarg ]
//	              { filter } [ findreplace ] [ conditional ]
//	              [ "?" template ] [ "&" template ] [ "," template ] "}" .
//	delim       = "+" { punct } .
//	field       = ident | "%" ident | "var" .
//	subfield    = ( ":" | "." ) subchar { subchar } .
//	fieldarg    = "(" text ")" .
//	filter      = "|" ident [ "(" text ")" ] .
//	findreplace = "/" find "/" replace { "/" find "/" replace } .
//	conditional = " " operator [ " not" ] " " template .
//	operator    = "contains" | "matches" | "startswith" | "endswith"
//	            | "==" | "!=" | "<" | "<=" | ">" | ">=" .
//	ident       = letter { letter | digit | "_" } .
//
// Whitespace inside an expression is significant; nothing is stripped.
// The nested templates introduced by "?", "&", ",", and the conditional
// are full template strings and may themselves contain expressions. They
// end at the first "?", "&", "," or "}" that is not enclosed in braces,
// depending on the clause. Literal braces are written with the built-in
// {openbrace} and {closebrace} fields; the other delimiter characters
// have built-in fields too ({comma}, {questionmark}, {ampersand}, ...).
//
// # Delimiters
//
// A leading "+" joins a multi-valued field into a single value. The
// characters between "+" and the field name are the separator, which may
// be empty:
//
//	{tags}        three values: red green blue
//	{+tags}       one value:    redgreenblue
//	{+, tags}     one value:    red, green, blue
//
// # Variables
//
// {var:name,VALUE} renders VALUE and stores it under name for the rest of
// the render; the assignment itself produces no output. {%name} expands
// the stored values. Inside filter arguments, find/replace text, and
// format strings, %name references are expanded in place and must produce
// exactly one value; %% escapes a literal percent sign. A delimiter ends
// at the first single "%", which starts the field's variable reference
// ({+%name} joins the variable's values), so a delimiter cannot contain a
// %name reference; it may contain %% for a literal percent sign.
//
// # Errors
//
// Parse and render errors are reported as [*SyntaxError]. A field claimed
// by no provider is reported as [*UnknownFieldError]. Missing values are
// never errors; they flow through the default clause or the configured
// none-string.
package mtl

// TemplateString is a parsed template: an ordered sequence of segments.
//
// Build one with [Parse], or obtain rendered output directly with
// [Renderer.Render].
type TemplateString struct {
	Segments []TemplateSegment
}

// TemplateSegment is one atom of a parsed template: literal text around an
// optional expression. A segment with a nil Expr is pure literal.
type TemplateSegment struct {
	Pre  string              // literal text before the expression
	Expr *TemplateExpression // nil for pure literal segments
	Post string              // literal text after the expression
}

// TemplateExpression is the parsed form of one {...} expression.
type TemplateExpression struct {
	// Field names the value source: a provider field such as "size", a
	// variable reference such as "%ext", or the assignment keyword "var".
	Field string

	// Subfield qualifies the field, e.g. "name" in {filepath.name} or
	// "int:02d" in {format:int:02d,...}. Empty when absent.
	Subfield string

	// FieldArg is the parenthesized argument passed opaquely to the
	// provider. HasFieldArg distinguishes {field()} from {field}.
	FieldArg    string
	HasFieldArg bool

	// Delim joins multi-valued results into a single value when HasDelim
	// is set. An empty Delim with HasDelim set joins with no separator.
	Delim    string
	HasDelim bool

	// Filters are applied to the value list in order.
	Filters []Filter

	// FindReplace pairs are applied per value, after filters.
	FindReplace []FindReplace

	// Conditional, when non-nil, turns the expression into a predicate
	// yielding ["True"] or nothing.
	Conditional *Conditional

	// Bool, when non-nil, makes the expression a ternary: it renders to
	// Bool when the field resolved truthy, else to Default.
	Bool *TemplateString

	// Combine, when non-nil, appends its non-empty results to the field's
	// results.
	Combine *TemplateString

	// Default, when non-nil, is rendered when the field produces no
	// values (and is the false arm when Bool is set).
	Default *TemplateString
}

// Filter is one |name or |name(arg) invocation.
type Filter struct {
	Name   string
	Arg    string
	HasArg bool
}

// FindReplace is one /find/replace pair.
type FindReplace struct {
	Find    string
	Replace string
}

// Conditional is a comparison clause such as "contains red" or "> 1024".
type Conditional struct {
	// Operator is one of: contains, matches, startswith, endswith,
	// ==, !=, <, <=, >, >=.
	Operator string

	// Negated inverts the result ("contains not red").
	Negated bool

	// Value is the comparand, itself a full template string. For the
	// string operators each rendered comparand is additionally split on
	// "|" for OR semantics.
	Value *TemplateString
}

// Fields returns the fields referenced by the top-level expressions of
// template, in order, without checking that any provider claims them.
// Fields referenced only inside nested clauses are not included.
func Fields(template string) ([]string, error) {
	ts, err := Parse(template)
	if err != nil {
		return nil, err
	}
	var fields []string
	for _, seg := range ts.Segments {
		if seg.Expr != nil {
			fields = append(fields, seg.Expr.Field)
		}
	}
	return fields, nil
}

// Vals converts plain strings to the value-list form of the
// [FieldProvider] contract.
func Vals(ss ...string) []*string {
	vals := make([]*string, len(ss))
	for i := range ss {
		vals[i] = &ss[i]
	}
	return vals
}

// isIdentByte reports whether c may appear in an identifier.
func isIdentByte(c byte) bool {
	return c == '_' ||
		'a' <= c && c <= 'z' ||
		'A' <= c && c <= 'Z' ||
		'0' <= c && c <= '9'
}

// isIdentStart reports whether c may start an identifier.
func isIdentStart(c byte) bool {
	return c == '_' ||
		'a' <= c && c <= 'z' ||
		'A' <= c && c <= 'Z'
}

package main

import (
	"strings"
	"text/tabwriter"

	"blake.io/mtl"
)

// templateHelp assembles the Template System help section from every
// registered provider plus the built-in fields.
func templateHelp(providers []mtl.FieldProvider) string {
	var b strings.Builder
	b.WriteString("Template System:\n\n")
	b.WriteString(wordWrap(
		"Templates interleave literal text with {field} expressions. "+
			"Fields may carry filters ({tags|sort|join(-)}), conditionals "+
			"({size > 1000000?big,small}), find/replace (/find/replace), "+
			"defaults ({field,default}), and variables ({var:name,value}, "+
			"{%name}). A multi-valued field renders once per value.", 76))
	b.WriteString("\n\n")

	for _, p := range providers {
		writeHelpEntries(&b, p.TemplateHelp())
	}
	writeHelpEntries(&b, mtl.BuiltinHelp())
	return strings.TrimRight(b.String(), "\n")
}

func writeHelpEntries(b *strings.Builder, entries []mtl.HelpEntry) {
	for _, e := range entries {
		if len(e.Table) > 0 {
			tw := tabwriter.NewWriter(b, 2, 4, 2, ' ', 0)
			for _, row := range e.Table {
				tw.Write([]byte(strings.Join(row, "\t") + "\n"))
			}
			tw.Flush()
			b.WriteString("\n")
			continue
		}
		b.WriteString(wordWrap(stripMarkdown(e.Text), 76))
		b.WriteString("\n\n")
	}
}

// stripMarkdown removes the "**" bold markers providers use in their
// help text; terminal help is plain.
func stripMarkdown(s string) string {
	s = strings.ReplaceAll(s, "**", "")
	return strings.TrimSpace(s)
}

// wordWrap wraps s at width columns, preserving paragraph breaks.
func wordWrap(s string, width int) string {
	var b strings.Builder
	for i, para := range strings.Split(s, "\n\n") {
		if i > 0 {
			b.WriteString("\n\n")
		}
		line := 0
		for _, word := range strings.Fields(para) {
			switch {
			case line == 0:
				b.WriteString(word)
				line = len(word)
			case line+1+len(word) > width:
				b.WriteString("\n" + word)
				line = len(word)
			default:
				b.WriteString(" " + word)
				line += 1 + len(word)
			}
		}
	}
	return b.String()
}

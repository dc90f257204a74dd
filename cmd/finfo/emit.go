package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"

	"blake.io/mtl"
)

// column pairs an output name (CSV header, JSON key) with the template
// that produces its values.
type column struct {
	name     string
	template string
}

var (
	nameColon  = regexp.MustCompile(`^([^:{}]+):\s*`)
	nameEquals = regexp.MustCompile(`^([^={}]+)=\s*`)
)

// splitNameTemplate splits an explicit 'name:TEMPLATE' or
// 'name=TEMPLATE' prefix off a print argument. The prefix must appear
// before the first brace; ok reports whether one was found.
func splitNameTemplate(s string) (name, template string, ok bool) {
	if m := nameColon.FindStringSubmatch(s); m != nil {
		return m[1], s[len(m[0]):], true
	}
	if m := nameEquals.FindStringSubmatch(s); m != nil {
		return m[1], s[len(m[0]):], true
	}
	return "", s, false
}

// makeColumn names a print argument. Without an explicit prefix the
// name is the first field in the template, with its subfield appended
// as field:subfield; a template with no fields is its own name.
func makeColumn(s string) column {
	if name, template, ok := splitNameTemplate(s); ok {
		return column{name: name, template: template}
	}
	ts, err := mtl.Parse(s)
	if err != nil {
		// Let the renderer report the syntax error.
		return column{name: s, template: s}
	}
	for _, seg := range ts.Segments {
		if seg.Expr == nil {
			continue
		}
		name := seg.Expr.Field
		if seg.Expr.Subfield != "" {
			name += ":" + seg.Expr.Subfield
		}
		return column{name: name, template: s}
	}
	return column{name: s, template: s}
}

// printer renders templates for files and writes one of the three
// output formats.
type printer struct {
	w        io.Writer
	r        *mtl.Renderer
	sentinel string
	opts     *options
}

// undefined is the replacement for the renderer's sentinel in text and
// CSV output.
func (p *printer) undefined() string {
	return p.opts.undefined
}

func (p *printer) filename(file string) string {
	if p.opts.fullPath {
		return file
	}
	return filepath.Base(file)
}

// writeText prints one line per file: an optional filename header
// followed by every rendered value, space separated (NUL separated with
// --null-separator).
func (p *printer) writeText(cols []column, files []string) error {
	sep := " "
	if p.opts.nullSep {
		sep = "\x00"
	}
	for _, file := range files {
		var rendered []string
		for _, col := range cols {
			vals, err := p.r.Render(file, col.template)
			if err != nil {
				return err
			}
			rendered = append(rendered, vals...)
		}
		header := ""
		if !p.opts.noFilename {
			header = p.filename(file) + ": "
		}
		line := header + strings.Join(rendered, sep)
		line = strings.ReplaceAll(line, p.sentinel, p.undefined())
		if _, err := fmt.Fprintln(p.w, line); err != nil {
			return err
		}
	}
	return nil
}

// writeCSV prints a header row of column names, then one row per file.
// Multi-valued results are joined with spaces within their cell.
func (p *printer) writeCSV(cols []column, files []string) error {
	delim, err := csvDelimiter(p.opts.delimiter)
	if err != nil {
		return err
	}

	if !p.opts.noFilename {
		template := "{filepath.name}"
		if p.opts.fullPath {
			template = "{filepath}"
		}
		cols = append([]column{{name: "filename", template: template}}, cols...)
	}

	cw := csv.NewWriter(p.w)
	cw.Comma = delim
	if !p.opts.noHeader {
		names := make([]string, len(cols))
		for i, col := range cols {
			names[i] = col.name
		}
		if err := cw.Write(names); err != nil {
			return err
		}
	}
	for _, file := range files {
		row := make([]string, len(cols))
		for i, col := range cols {
			vals, err := p.r.Render(file, col.template)
			if err != nil {
				return err
			}
			cell := strings.Join(vals, " ")
			row[i] = strings.ReplaceAll(cell, p.sentinel, p.undefined())
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// writeJSON prints one indented JSON object per file, or a single array
// of objects with --array. Keys are sorted; a single rendered value is
// a string, several are an array.
func (p *printer) writeJSON(cols []column, files []string) error {
	var objects []map[string]any
	for _, file := range files {
		data := make(map[string]any, len(cols)+1)
		for _, col := range cols {
			vals, err := p.r.Render(file, col.template)
			if err != nil {
				return err
			}
			if len(vals) == 1 {
				data[col.name] = p.jsonValue(vals[0])
			} else {
				converted := make([]any, len(vals))
				for i, v := range vals {
					converted[i] = p.jsonValue(v)
				}
				data[col.name] = converted
			}
		}
		if !p.opts.noFilename {
			data["filename"] = p.filename(file)
		}
		objects = append(objects, data)
	}

	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "    ")
	if p.opts.array {
		return enc.Encode(objects)
	}
	for _, data := range objects {
		if err := enc.Encode(data); err != nil {
			return err
		}
	}
	return nil
}

// jsonValue converts one rendered value for JSON output. A wholly
// undefined value becomes null unless --undefined was given.
func (p *printer) jsonValue(v string) any {
	if v == p.sentinel && !p.opts.undefinedSet {
		return nil
	}
	return strings.ReplaceAll(v, p.sentinel, p.opts.undefined)
}

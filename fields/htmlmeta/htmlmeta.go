// Package htmlmeta provides the html template field, which extracts
// values from HTML documents with CSS selectors.
//
// The selector is the field argument and the matched elements' text
// content becomes the value list, one value per match:
//
//	{html(title)}                     document title
//	{html(h2)}                        every second-level heading
//	{html.attr:content(meta[name=author])}
//	                                  the content attribute of the
//	                                  author meta tag
//
// The selector runs to the matching close parenthesis, so it may contain
// spaces and balanced parentheses.
package htmlmeta

import (
	"os"
	"strings"

	"blake.io/mtl"
	"github.com/ericchiang/css"
	"golang.org/x/net/html"
)

var fields = [][]string{
	{"Field", "Description"},
	{"{html(SELECTOR)}", "Text content of each element matching the CSS selector"},
	{"{html.attr:NAME(SELECTOR)}", "Value of attribute NAME on each matching element"},
}

// Provider resolves the html field.
type Provider struct{}

var _ mtl.FieldProvider = Provider{}

func (Provider) TemplateHelp() []mtl.HelpEntry {
	return []mtl.HelpEntry{
		{Text: "**HTML Fields**"},
		{Table: fields},
	}
}

func (Provider) TemplateValue(path, field, subfield, fieldArg string, def []string) ([]*string, bool, error) {
	if field != "html" {
		return nil, false, nil
	}
	if fieldArg == "" {
		return nil, true, &mtl.SyntaxError{Pos: -1, Message: "html requires a CSS selector in form {html(SELECTOR)}"}
	}
	sel, err := css.Parse(fieldArg)
	if err != nil {
		return nil, true, &mtl.SyntaxError{Pos: -1, Message: "html: invalid selector " + fieldArg + ": " + err.Error()}
	}

	attr, hasAttr := strings.CutPrefix(subfield, "attr:")
	if subfield != "" && !hasAttr {
		return nil, true, &mtl.SyntaxError{Pos: -1, Message: "unknown html subfield: " + subfield}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, true, err
	}
	defer f.Close()
	doc, err := html.Parse(f)
	if err != nil {
		return nil, true, err
	}

	var vals []*string
	for _, n := range sel.Select(doc) {
		if hasAttr {
			if v, ok := attrValue(n, attr); ok {
				vals = append(vals, &v)
			} else {
				vals = append(vals, nil)
			}
			continue
		}
		text := strings.Join(strings.Fields(innerText(n)), " ")
		vals = append(vals, &text)
	}
	return vals, true, nil
}

func attrValue(n *html.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

// innerText concatenates the text nodes under n.
func innerText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

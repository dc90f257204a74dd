// Package pathinfo provides the filepath template field and its
// subfields.
package pathinfo

import (
	"path/filepath"
	"strings"

	"blake.io/mtl"
)

var fields = [][]string{
	{"Field", "Description"},
	{"{filepath}", "Full path to the file"},
	{"{filepath.name}", "File name, including any extension"},
	{"{filepath.stem}", "File name without its extension"},
	{"{filepath.suffix}", "File extension, including the leading dot"},
	{"{filepath.parent}", "Path to the directory containing the file"},
}

// Provider resolves the filepath field.
type Provider struct{}

var _ mtl.FieldProvider = Provider{}

func (Provider) TemplateHelp() []mtl.HelpEntry {
	return []mtl.HelpEntry{
		{Text: "**File Path Fields**"},
		{Table: fields},
	}
}

func (Provider) TemplateValue(path, field, subfield, fieldArg string, def []string) ([]*string, bool, error) {
	if field != "filepath" {
		return nil, false, nil
	}
	name := filepath.Base(path)
	switch subfield {
	case "":
		return mtl.Vals(path), true, nil
	case "name":
		return mtl.Vals(name), true, nil
	case "stem":
		return mtl.Vals(strings.TrimSuffix(name, filepath.Ext(name))), true, nil
	case "suffix":
		return mtl.Vals(filepath.Ext(name)), true, nil
	case "parent":
		return mtl.Vals(filepath.Dir(path)), true, nil
	}
	return nil, true, &mtl.SyntaxError{Pos: -1, Message: "unknown filepath subfield: " + subfield}
}

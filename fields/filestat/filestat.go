// Package filestat provides template fields backed by the file's stat
// information: size, ownership, and modification time.
package filestat

import (
	"os"
	"os/user"
	"strconv"
	"syscall"
	"time"

	"blake.io/mtl"
)

var fields = [][]string{
	{"Field", "Description"},
	{"{size}", "Size of file in bytes"},
	{"{uid}", "User identifier of the file owner"},
	{"{gid}", "Group identifier of the file owner"},
	{"{user}", "User name of the file owner"},
	{"{group}", "Group name of the file owner"},
	{"{mtime}", "Modification time, RFC 3339; subfield is a reference-time layout, e.g. {mtime:2006-01-02}"},
}

// Provider resolves the stat-based template fields.
type Provider struct{}

var _ mtl.FieldProvider = Provider{}

func (Provider) TemplateHelp() []mtl.HelpEntry {
	return []mtl.HelpEntry{
		{Text: "**File Information Fields**"},
		{Table: fields},
	}
}

func (Provider) TemplateValue(path, field, subfield, fieldArg string, def []string) ([]*string, bool, error) {
	switch field {
	case "size", "uid", "gid", "user", "group", "mtime":
	default:
		return nil, false, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, true, err
	}

	switch field {
	case "size":
		return mtl.Vals(strconv.FormatInt(info.Size(), 10)), true, nil
	case "mtime":
		layout := time.RFC3339
		if subfield != "" {
			layout = subfield
		}
		return mtl.Vals(info.ModTime().Format(layout)), true, nil
	}

	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return nil, true, nil
	}

	switch field {
	case "uid":
		return mtl.Vals(strconv.Itoa(int(st.Uid))), true, nil
	case "gid":
		return mtl.Vals(strconv.Itoa(int(st.Gid))), true, nil
	case "user":
		u, err := user.LookupId(strconv.Itoa(int(st.Uid)))
		if err != nil {
			return []*string{nil}, true, nil
		}
		return mtl.Vals(u.Username), true, nil
	case "group":
		g, err := user.LookupGroupId(strconv.Itoa(int(st.Gid)))
		if err != nil {
			return []*string{nil}, true, nil
		}
		return mtl.Vals(g.Name), true, nil
	}
	return nil, true, nil
}

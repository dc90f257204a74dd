// Command finfo prints file metadata to standard output by rendering
// metadata templates against each file.
//
// # Usage
//
//	finfo -p TEMPLATE [-p TEMPLATE ...] [flags] FILE...
//
// Each -p/--print template is rendered for every file:
//
//	finfo -p '{filepath.name}: {size} bytes' report.pdf
//	finfo -p '{mtime:2006-01-02}' -p '{user}' *.jpg
//
// Output defaults to plain text, one line per file, prefixed with the
// file name (suppress with -f/--no-filename, or print the full path
// with -P/--path). CSV (-c) and JSON (-j) modes print one column or key
// per template.
//
// Columns and JSON keys are named after the first field in the
// template. Prefix the template with 'name:' or 'name=' to choose a
// different name:
//
//	finfo -c -p 'bytes:{size}' -p 'owner={user}' *.log
//
// Values that resolve to nothing render as the empty string (null in
// JSON); override with -u/--undefined.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"blake.io/mtl"
	"blake.io/mtl/fields/filestat"
	"blake.io/mtl/fields/htmlmeta"
	"blake.io/mtl/fields/pathinfo"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// providers is the field-provider chain, consulted in order before the
// built-in punctuation and format fields.
var providers = []mtl.FieldProvider{
	pathinfo.Provider{},
	filestat.Provider{},
	htmlmeta.Provider{},
}

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.InfoLevel)

	cmd := newCommand(os.Stdout)
	if err := cmd.Execute(); err != nil {
		log.Error().Msg(err.Error())
		var unknown *mtl.UnknownFieldError
		if errors.As(err, &unknown) {
			os.Exit(1)
		}
		os.Exit(2)
	}
}

type options struct {
	templates    []string
	jsonOut      bool
	csvOut       bool
	array        bool
	delimiter    string
	noHeader     bool
	noFilename   bool
	fullPath     bool
	nullSep      bool
	undefined    string
	undefinedSet bool
}

func newCommand(w io.Writer) *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:           "finfo -p TEMPLATE [flags] FILE...",
		Short:         "Print file metadata using metadata templates",
		Long:          "Print file metadata using metadata templates.\n\n" + templateHelp(providers),
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.undefinedSet = cmd.Flags().Changed("undefined")
			if err := validate(&opts, args); err != nil {
				return err
			}
			return run(w, &opts, args)
		},
	}

	f := cmd.Flags()
	f.StringArrayVarP(&opts.templates, "print", "p", nil,
		"template to render for each file; may be repeated")
	f.BoolVarP(&opts.jsonOut, "json", "j", false,
		"print metadata as JSON, one object per file")
	f.BoolVarP(&opts.csvOut, "csv", "c", false,
		"print metadata as CSV, one row per file")
	f.BoolVarP(&opts.array, "array", "a", false,
		"with --json, print a single JSON array instead of one object per file")
	f.StringVarP(&opts.delimiter, "delimiter", "d", "",
		"field delimiter for CSV output; default comma, use '\\t' or 'tab' for tab")
	f.BoolVarP(&opts.noHeader, "no-header", "h", false,
		"do not print the header row with CSV output")
	f.BoolVarP(&opts.noFilename, "no-filename", "f", false,
		"do not print the filename header, column, or JSON key")
	f.BoolVarP(&opts.fullPath, "path", "P", false,
		"print the full file path instead of the filename")
	f.BoolVarP(&opts.nullSep, "null-separator", "0", false,
		"separate rendered values with NUL instead of space in print output")
	f.StringVarP(&opts.undefined, "undefined", "u", "",
		"string to print for undefined values; default empty (null for JSON)")

	// Register --help without a shorthand so -h stays bound to
	// --no-header.
	f.Bool("help", false, "help for finfo")

	cobra.CheckErr(cmd.MarkFlagRequired("print"))
	cmd.MarkFlagsMutuallyExclusive("json", "csv")

	return cmd
}

func validate(opts *options, files []string) error {
	if opts.nullSep && (opts.jsonOut || opts.csvOut) {
		return errors.New("--null-separator may only be used with print output")
	}
	if opts.delimiter != "" && !opts.csvOut {
		return errors.New("--delimiter may only be used with --csv")
	}
	if opts.noHeader && !opts.csvOut {
		return errors.New("--no-header may only be used with --csv")
	}
	if opts.array && !opts.jsonOut {
		return errors.New("--array may only be used with --json")
	}
	if opts.fullPath && opts.noFilename {
		return errors.New("--path requires the filename; remove --no-filename")
	}
	if _, err := csvDelimiter(opts.delimiter); err != nil {
		return err
	}
	for _, file := range files {
		if _, err := os.Stat(file); err != nil {
			return fmt.Errorf("cannot access %s: %w", file, err)
		}
	}
	return nil
}

// csvDelimiter normalizes the --delimiter value. Typing a real tab on
// the command line is awkward, so '\t' and 'tab' mean a tab character.
func csvDelimiter(s string) (rune, error) {
	switch {
	case s == "":
		return ',', nil
	case s == `\t` || strings.EqualFold(s, "tab"):
		return '\t', nil
	}
	runes := []rune(s)
	if len(runes) != 1 {
		return 0, fmt.Errorf("invalid CSV delimiter %q: must be a single character", s)
	}
	return runes[0], nil
}

func run(w io.Writer, opts *options, files []string) error {
	// The renderer substitutes this sentinel for unresolved values; the
	// emitters swap it for the user's undefined string so that text and
	// JSON output can choose different representations.
	sentinel := "__MTL_NONE_" + uuid.NewString() + "__"
	r := mtl.New(mtl.Config{
		Providers: providers,
		NoneStr:   sentinel,
	})

	cols := make([]column, len(opts.templates))
	for i, t := range opts.templates {
		cols[i] = makeColumn(t)
	}

	p := &printer{w: w, r: r, sentinel: sentinel, opts: opts}
	switch {
	case opts.csvOut:
		return p.writeCSV(cols, files)
	case opts.jsonOut:
		return p.writeJSON(cols, files)
	}
	return p.writeText(cols, files)
}

package mtl

import (
	"errors"
	"strings"
	"testing"

	"kr.dev/diff"
)

// testProvider maps "field" or "field:subfield" keys to value lists. A
// key present with a nil slice is claimed with no values.
type testProvider map[string][]string

func (p testProvider) TemplateValue(path, field, subfield, fieldArg string, def []string) ([]*string, bool, error) {
	key := field
	if subfield != "" {
		key += ":" + subfield
	}
	vals, ok := p[key]
	if !ok {
		return nil, false, nil
	}
	return Vals(vals...), true, nil
}

func (p testProvider) TemplateHelp() []HelpEntry { return nil }

// nilProvider claims the "missing" field with a single nil value.
type nilProvider struct{}

func (nilProvider) TemplateValue(path, field, subfield, fieldArg string, def []string) ([]*string, bool, error) {
	if field != "missing" {
		return nil, false, nil
	}
	return []*string{nil}, true, nil
}

func (nilProvider) TemplateHelp() []HelpEntry { return nil }

func testRenderer() *Renderer {
	return New(Config{
		Providers: []FieldProvider{
			testProvider{
				"filepath":      {"/Users/rhet/pears.jpg"},
				"filepath:name": {"pears.jpg"},
				"size":          {"2771656"},
				"n":             {"42"},
				"tags":          {"red", "green", "blue"},
				"a":             {"a", "b"},
				"x":             {"x", "y"},
				"empty":         nil,
			},
			nilProvider{},
		},
		NoneStr: "_",
	})
}

func TestRender(t *testing.T) {
	tests := []struct {
		name     string
		template string
		want     []string
	}{
		{"literal only", "hello world", []string{"hello world"}},
		{"empty template", "", nil},

		{"single field", "{size}", []string{"2771656"}},
		{"field with literal", "{filepath.name}: {size}", []string{"pears.jpg: 2771656"}},
		{"multi value", "{tags}", []string{"red", "green", "blue"}},
		{"multi value with text", "tag: {tags}!", []string{"tag: red!", "tag: green!", "tag: blue!"}},

		{"cartesian product", "{a}{x}", []string{"ax", "ay", "bx", "by"}},
		{"cartesian with literals", "{a}-{x}", []string{"a-x", "a-y", "b-x", "b-y"}},

		{"inline delim", "{+,tags}", []string{"red,green,blue"}},
		{"empty delim", "{+tags}", []string{"redgreenblue"}},
		{"delim with space", "{+, tags}", []string{"red, green, blue"}},
		{"delim on single value", "{+,size}", []string{"2771656"}},
		{"delim on empty respects default", "{+,empty,none}", []string{"none"}},

		{"filter chain", "{tags|sort|join(-)}", []string{"blue-green-red"}},
		{"upper lower equals lower", "{tags|upper|lower}", []string{"red", "green", "blue"}},
		{"sort reverse equals rsort", "{tags|sort|reverse}", []string{"red", "green", "blue"}},
		{"rsort", "{tags|rsort}", []string{"red", "green", "blue"}},

		{"find replace", "{filepath.name/jpg/jpeg}", []string{"pears.jpeg"}},
		{"find replace multiple pairs", "{filepath.name/pears/plums/jpg/png}", []string{"plums.png"}},
		{"find replace per value", "{tags/e/E}", []string{"rEd", "grEEn", "bluE"}},

		{"numeric greater", "{size > 1000?big,small}", []string{"big"}},
		{"numeric less", "{size < 1000?big,small}", []string{"small"}},
		{"numeric gte match", "{size >= 2771656?y,n}", []string{"y"}},
		{"numeric lte", "{size <= 2771655?y,n}", []string{"n"}},
		{"contains", "{tags contains red?y,n}", []string{"y"}},
		{"contains substring", "{tags contains ee?y,n}", []string{"y"}},
		{"contains negated", "{tags contains not red?y,n}", []string{"n"}},
		{"contains bare true", "{tags contains red}", []string{"True"}},
		{"contains bare false", "{tags contains purple}", []string{"_"}},
		{"matches", "{tags matches green?y,n}", []string{"y"}},
		{"matches or alternatives", "{tags matches purple|blue?y,n}", []string{"y"}},
		{"matches no substring", "{tags matches gree?y,n}", []string{"n"}},
		{"startswith", "{filepath.name startswith pear?y,n}", []string{"y"}},
		{"endswith", "{filepath.name endswith .jpg?y,n}", []string{"y"}},
		{"equals whole list", "{size == 2771656?y,n}", []string{"y"}},
		{"not equals", "{size != 2771656?y,n}", []string{"n"}},
		{"operator case insensitive", "{tags CONTAINS red?y,n}", []string{"y"}},

		{"bool truthy", "{tags?has tags,no tags}", []string{"has tags"}},
		{"bool falsy", "{empty?has,none}", []string{"none"}},
		{"bool without default", "{empty?has}", []string{""}},

		{"combine", "{empty&{size},}", []string{"2771656"}},
		{"combine appends", "{+,tags&{size}}", []string{"red,green,blue", "2771656"}},

		{"default unused", "{size,0}", []string{"2771656"}},
		{"default for empty", "{empty,fallback}", []string{"fallback"}},
		{"default for unknown field", "{nosuch,fallback}", []string{"fallback"}},
		{"none str placeholder", "{empty}", []string{"_"}},
		{"nil values stripped", "{missing}", []string{"_"}},
		{"nested field in default", "{empty,{size}}", []string{"2771656"}},

		{"variable round trip", "{var:x,hello}{%x}", []string{"hello"}},
		{"variable multi value", "{var:t,{tags}}{%t}", []string{"red", "green", "blue"}},
		{"variable drops empty strings", "{var:t,}{%t,none}", []string{"none"}},
		{"assignment only", "{var:x,hello}", []string{""}},
		{"variable in comparand", "{var:ext,jpg}{filepath.name endswith %ext?yes,no}", []string{"yes"}},
		{"variable list comparand", "{var:t,{tags}}{tags == %t?same,differs}", []string{"same"}},
		{"variable in filter arg", "{var:d,-}{tags|sort|join(%d)}", []string{"blue-green-red"}},
		{"percent escape in filter arg", "{tags|join(%%)}", []string{"red%green%blue"}},

		{"punctuation comma", "{comma}", []string{","}},
		{"punctuation braces", "{openbrace}{closebrace}", []string{"{}"}},
		{"punctuation pipe and percent", "{pipe}{percent}", []string{"|%"}},
		{"punctuation newline", "a{newline}b", []string{"a\nb"}},
		{"punctuation crlf", "{cr}{lf}", []string{"\r\n"}},
		{"punctuation questionmark", "{questionmark}", []string{"?"}},

		{"strip field", "{strip,  hello  }", []string{"hello"}},
		{"format int passthrough", "{format:int:06d,{size}}", []string{"2771656"}},
		{"format int pads", "{format:int:06d,{n}}", []string{"000042"}},
		{"format float", "{format:float:.2f,{n}}", []string{"42.00"}},
		{"format int from float string", "{format:int:d,41.9}", []string{"41"}},
		{"format str", "{format:str:s,abc}", []string{"abc"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := testRenderer().Render("pears.jpg", tt.template)
			if err != nil {
				t.Fatalf("Render(%q) error: %v", tt.template, err)
			}
			diff.Test(t, t.Errorf, got, tt.want)
		})
	}
}

func TestRenderErrors(t *testing.T) {
	tests := []struct {
		name        string
		template    string
		wantSyntax  bool
		wantUnknown bool
	}{
		{"unknown field", "{nosuch}", false, true},
		{"unknown field with filters", "{nosuch|upper}", false, true},
		{"undefined variable", "{%x}", true, false},
		{"undefined variable in filter arg", "{tags|join(%d)}", true, false},
		{"unknown filter", "{tags|frobnicate}", true, false},
		{"numeric comparison of words", "{tags > 1?y,n}", true, false},
		{"numeric comparison multiple comparands", "{var:t,{tags}}{size > %t?y,n}", true, false},
		{"split requires argument", "{tags|split}", true, false},
		{"multi-valued filter arg", "{var:t,{tags}}{tags|join(%t)}", true, false},
		{"format bad subfield", "{format:int,{size}}", true, false},
		{"format bad type", "{format:bool:d,{size}}", true, false},
		{"format non-numeric", "{format:int:d,pears}", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := testRenderer().Render("pears.jpg", tt.template)
			if err == nil {
				t.Fatalf("Render(%q): expected error", tt.template)
			}
			var synErr *SyntaxError
			if got := errors.As(err, &synErr); got != tt.wantSyntax {
				t.Errorf("Render(%q) error = %v; syntax error = %v, want %v", tt.template, err, got, tt.wantSyntax)
			}
			var unknownErr *UnknownFieldError
			if got := errors.As(err, &unknownErr); got != tt.wantUnknown {
				t.Errorf("Render(%q) error = %v; unknown field = %v, want %v", tt.template, err, got, tt.wantUnknown)
			}
		})
	}
}

func TestRenderConditionalDuality(t *testing.T) {
	// For any operator, the plain and negated forms are complementary
	// when the field resolves.
	templates := []string{
		"{tags contains %s red}",
		"{tags matches %s red}",
		"{filepath.name startswith %s pear}",
		"{filepath.name endswith %s xyz}",
		"{size == %s 2771656}",
		"{size != %s 2771656}",
		"{size > %s 1000}",
		"{size <= %s 1000}",
	}
	for _, template := range templates {
		plain := strings.Replace(template, "%s ", "", 1)
		negated := strings.Replace(template, "%s", "not", 1)

		r := New(Config{Providers: testRenderer().providers})
		gotPlain, err := r.Render("pears.jpg", plain)
		if err != nil {
			t.Fatalf("Render(%q) error: %v", plain, err)
		}
		gotNegated, err := r.Render("pears.jpg", negated)
		if err != nil {
			t.Fatalf("Render(%q) error: %v", negated, err)
		}

		plainTrue := len(gotPlain) == 1 && gotPlain[0] == "True"
		negatedTrue := len(gotNegated) == 1 && gotNegated[0] == "True"
		if plainTrue == negatedTrue {
			t.Errorf("%q = %v and %q = %v; want exactly one True", plain, gotPlain, negated, gotNegated)
		}
	}
}

func TestRenderVariablesDoNotLeak(t *testing.T) {
	r := testRenderer()
	if _, err := r.Render("pears.jpg", "{var:x,hello}{%x}"); err != nil {
		t.Fatalf("first render: %v", err)
	}
	_, err := r.Render("pears.jpg", "{%x}")
	var synErr *SyntaxError
	if !errors.As(err, &synErr) {
		t.Fatalf("second render: got %v, want SyntaxError for undefined variable", err)
	}
}

func TestRenderExpandInplace(t *testing.T) {
	r := New(Config{
		Providers:     testRenderer().providers,
		ExpandInplace: true,
	})
	got, err := r.Render("pears.jpg", "{tags}")
	if err != nil {
		t.Fatal(err)
	}
	diff.Test(t, t.Errorf, got, []string{"red,green,blue"})

	r = New(Config{
		Providers:     testRenderer().providers,
		ExpandInplace: true,
		InplaceSep:    "; ",
	})
	got, err = r.Render("pears.jpg", "{tags}")
	if err != nil {
		t.Fatal(err)
	}
	diff.Test(t, t.Errorf, got, []string{"red; green; blue"})
}

func TestRenderSanitizeHooks(t *testing.T) {
	r := New(Config{
		Providers:     testRenderer().providers,
		SanitizeValue: strings.ToUpper,
		Sanitize: func(s string) string {
			return strings.ReplaceAll(s, " ", "_")
		},
	})
	got, err := r.Render("pears.jpg", "tag {tags|slice(:1)}")
	if err != nil {
		t.Fatal(err)
	}
	diff.Test(t, t.Errorf, got, []string{"tag_RED"})
}

func TestRenderCustomFilter(t *testing.T) {
	r := New(Config{
		Providers: testRenderer().providers,
		Filter: func(name, arg string, values []string) ([]string, bool, error) {
			if name != "first" {
				return nil, false, nil
			}
			if len(values) == 0 {
				return nil, true, nil
			}
			return values[:1], true, nil
		},
	})
	got, err := r.Render("pears.jpg", "{tags|first}")
	if err != nil {
		t.Fatal(err)
	}
	diff.Test(t, t.Errorf, got, []string{"red"})

	_, err = r.Render("pears.jpg", "{tags|second}")
	var synErr *SyntaxError
	if !errors.As(err, &synErr) {
		t.Fatalf("unhandled custom filter: got %v, want SyntaxError", err)
	}
}

func TestRenderProviderOrder(t *testing.T) {
	// The first provider to claim a field wins, and external providers
	// may shadow the built-ins.
	first := testProvider{"size": {"1"}, "comma": {"shadowed"}}
	second := testProvider{"size": {"2"}}
	r := New(Config{Providers: []FieldProvider{first, second}})

	got, err := r.Render("f", "{size} {comma}")
	if err != nil {
		t.Fatal(err)
	}
	diff.Test(t, t.Errorf, got, []string{"1 shadowed"})
}

func TestFields(t *testing.T) {
	tests := []struct {
		template string
		want     []string
	}{
		{"no fields here", nil},
		{"{filepath.name}: {size}", []string{"filepath", "size"}},
		{"{var:x,{size}}{%x}", []string{"var", "%x"}},
	}
	for _, tt := range tests {
		got, err := Fields(tt.template)
		if err != nil {
			t.Fatalf("Fields(%q) error: %v", tt.template, err)
		}
		diff.Test(t, t.Errorf, got, tt.want)
	}
}

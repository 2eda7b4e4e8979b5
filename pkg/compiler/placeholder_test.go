package compiler

import (
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/dlclark/regexp2"
)

func TestPlaceholders(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []Placeholder
	}{
		{"None", "plain text", nil},
		{"Single", "{x}", []Placeholder{{0, 3, "x"}}},
		{"Trimmed", "a { x } b", []Placeholder{{2, 7, "x"}}},
		{"Two", "{a}-{b}", []Placeholder{{0, 3, "a"}, {4, 7, "b"}}},
		{"Escaped", `\{x} {y}`, []Placeholder{{5, 8, "y"}}},
		{"Empty Braces", "{} { }", nil},
		{"Unclosed", "{x", nil},
		{"Multibyte Prefix", "é{x}", []Placeholder{{2, 5, "x"}}},
		{"Stops At First Close", "{a}b}", []Placeholder{{0, 3, "a"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Placeholders(tt.input)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Placeholders(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestPlaceholders_NoMatchErrors(t *testing.T) {
	if placeholderRe.MatchTimeout != regexp2.DefaultMatchTimeout {
		t.Fatalf("MatchTimeout = %v, want no timeout", placeholderRe.MatchTimeout)
	}

	// A long literal mixing placeholders and escaped braces.
	text := strings.Repeat(`{a} \{b} `, 2000) + "{z}"
	m, err := placeholderRe.FindStringMatch(text)
	count := 0
	for m != nil && err == nil {
		count++
		m, err = placeholderRe.FindNextMatch(m)
	}
	if err != nil {
		t.Fatalf("match error: %v", err)
	}
	if count != 2001 {
		t.Errorf("regexp found %d matches, want 2001", count)
	}
	names := PlaceholderNames(text)
	if len(names) != count || names[len(names)-1] != "z" {
		t.Errorf("PlaceholderNames found %d, last %q", len(names), names[len(names)-1])
	}
}

func TestReplacePlaceholders(t *testing.T) {
	known := map[string]string{"n": "hi", "e": ""}
	lookup := func(name string) (string, bool) {
		v, ok := known[name]
		return v, ok
	}

	tests := []struct {
		input    string
		expected string
	}{
		{"{n}", "hi"},
		{"{n}{n}!", "hihi!"},
		{"{ n } and {other}", "hi and {other}"},
		{`\{n} {n}`, `\{n} hi`},
		{"[{e}]", "[]"},
		{"no braces", "no braces"},
	}

	for _, tt := range tests {
		if got := ReplacePlaceholders(tt.input, lookup); got != tt.expected {
			t.Errorf("ReplacePlaceholders(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestSegments(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []Segment
	}{
		{"Text Only", `a\tb\n`, []Segment{{Text: "a\tb\n"}}},
		{"Var Only", "{x}", []Segment{{Var: "x"}}},
		{"Mixed", "x={x}, y={y}\\n", []Segment{
			{Text: "x="}, {Var: "x"}, {Text: ", y="}, {Var: "y"}, {Text: "\n"},
		}},
		{"Escaped Brace Is Text", `\{x} is {x}`, []Segment{{Text: "{x} is "}, {Var: "x"}}},
		{"Empty", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Segments(tt.input)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Segments(%q) = %+v, want %+v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestUnescape(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{`plain`, "plain"},
		{`a\nb`, "a\nb"},
		{`\\`, `\`},
		{`\"q\"`, `"q"`},
		{`\{\}`, "{}"},
		{`\q`, `\q`},
		{`end\`, `end\`},
	}
	for _, tt := range tests {
		if got := Unescape(tt.input); got != tt.expected {
			t.Errorf("Unescape(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestFoldConstant(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Constant
		ok    bool
	}{
		{"Single", "3", Constant{Int: 3}, true},
		{"Rejoined Sum", "3 + 2", Constant{Int: 5}, true},
		{"Precedence", "2 + 3 * 4", Constant{Int: 14}, true},
		{"Parentheses", "( 2 + 4 ) / 3 - 1", Constant{Int: 1}, true},
		{"Truncating Division", "- 7 / 2", Constant{Int: -3}, true},
		{"Unary Signs", "- - 3 + + 1", Constant{Int: 4}, true},
		{"Split Decimal", "1 . 5 * 2", Constant{Float: 3, IsFloat: true}, true},
		{"Leading Dot", ". 5", Constant{Float: 0.5, IsFloat: true}, true},
		{"Mixed Promotes", "1 + 0 . 5", Constant{Float: 1.5, IsFloat: true}, true},
		{"Integer Division By Zero", "1 / 0", Constant{}, false},
		{"Float Division By Zero", "1 . 0 / 0", Constant{}, false},
		{"Identifier", "y + 1", Constant{}, false},
		{"Adjacent Numbers", "3 2", Constant{}, false},
		{"Dangling Operator", "3 +", Constant{}, false},
		{"Unclosed", "( 3", Constant{}, false},
		{"Two Dots", "1 . 2 . 3", Constant{}, false},
		{"Quoted", `"3"`, Constant{}, false},
		{"Empty", "", Constant{}, false},
		{"Overflow", "99999999999999999999", Constant{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FoldConstant(tt.input)
			if ok != tt.ok || ok && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("FoldConstant(%q) = %+v, %v; want %+v, %v", tt.input, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestConstantConversions(t *testing.T) {
	tests := []struct {
		c     Constant
		int32 int32
		float float64
	}{
		{Constant{Int: 5}, 5, 5},
		{Constant{Float: 1.9, IsFloat: true}, 1, 1.9},
		{Constant{Float: -1.9, IsFloat: true}, -1, -1.9},
		{Constant{Float: 1e20, IsFloat: true}, math.MaxInt32, 1e20},
		{Constant{Float: -1e20, IsFloat: true}, math.MinInt32, -1e20},
		{Constant{Int: math.MaxInt32 + 1}, math.MinInt32, math.MaxInt32 + 1},
	}
	for _, tt := range tests {
		if got := tt.c.Int32(); got != tt.int32 {
			t.Errorf("%+v.Int32() = %d, want %d", tt.c, got, tt.int32)
		}
		if got := tt.c.Float64(); got != tt.float {
			t.Errorf("%+v.Float64() = %g, want %g", tt.c, got, tt.float)
		}
	}
}

func TestNumberText(t *testing.T) {
	tests := []struct {
		input string
		want  string
		ok    bool
	}{
		{"3", "3", true},
		{"- 3", "-3", true},
		{"2 . 5", "2.5", true},
		{"1.2.3", "", false},
		{"x", "", false},
		{".", "", false},
		{"--1", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := NumberText(tt.input)
		if got != tt.want || ok != tt.ok {
			t.Errorf("NumberText(%q) = %q, %v; want %q, %v", tt.input, got, ok, tt.want, tt.ok)
		}
	}
}

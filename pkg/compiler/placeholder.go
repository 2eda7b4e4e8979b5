package compiler

import (
	"strings"

	"github.com/dlclark/regexp2"
)

// placeholderRe matches {name} unless the brace is escaped as \{.
// The name runs to the first closing brace.
//
// regexp2 only returns a match error when MatchTimeout expires. The
// pattern cannot backtrack past one brace pair, so the timeout is pinned
// to "never" and the errors from the find calls below are always nil.
var placeholderRe = func() *regexp2.Regexp {
	re := regexp2.MustCompile(`(?<!\\)\{([^}]*)\}`, regexp2.None)
	re.MatchTimeout = regexp2.DefaultMatchTimeout
	return re
}()

// Placeholder is one {name} reference inside a literal. Start and End
// are byte offsets covering the braces.
type Placeholder struct {
	Start int
	End   int
	Name  string
}

// runeOffsets maps rune indexes of s to byte offsets, with one extra
// entry for len(s). regexp2 reports match positions in runes.
func runeOffsets(s string) []int {
	offsets := make([]int, 0, len(s)+1)
	for i := range s {
		offsets = append(offsets, i)
	}
	return append(offsets, len(s))
}

// Placeholders returns every {name} in text, in order. Names are
// trimmed; braces enclosing only whitespace are not placeholders.
func Placeholders(text string) []Placeholder {
	if !strings.Contains(text, "{") {
		return nil
	}
	var out []Placeholder
	var offsets []int
	m, _ := placeholderRe.FindStringMatch(text) // nil error: no timeout
	for m != nil {
		name := strings.TrimSpace(m.GroupByNumber(1).String())
		if name != "" {
			if offsets == nil {
				offsets = runeOffsets(text)
			}
			out = append(out, Placeholder{
				Start: offsets[m.Index],
				End:   offsets[m.Index+m.Length],
				Name:  name,
			})
		}
		m, _ = placeholderRe.FindNextMatch(m)
	}
	return out
}

// PlaceholderNames returns the names referenced by text, in order of
// appearance, with duplicates kept.
func PlaceholderNames(text string) []string {
	phs := Placeholders(text)
	names := make([]string, len(phs))
	for i, ph := range phs {
		names[i] = ph.Name
	}
	return names
}

// ReplacePlaceholders rewrites each placeholder for which fn reports a
// replacement. Other placeholders are left as written.
func ReplacePlaceholders(text string, fn func(name string) (string, bool)) string {
	phs := Placeholders(text)
	if len(phs) == 0 {
		return text
	}
	var sb strings.Builder
	last := 0
	for _, ph := range phs {
		repl, ok := fn(ph.Name)
		if !ok {
			continue
		}
		sb.WriteString(text[last:ph.Start])
		sb.WriteString(repl)
		last = ph.End
	}
	sb.WriteString(text[last:])
	return sb.String()
}

// Segment is a piece of print text: either plain text with escapes
// already resolved, or a reference to the variable Var.
type Segment struct {
	Text string
	Var  string
}

// IsVar reports whether the segment is a placeholder.
func (s Segment) IsVar() bool { return s.Var != "" }

// Segments splits a print literal into text and placeholder pieces.
// Adjacent text is merged and empty text pieces are dropped.
func Segments(text string) []Segment {
	var out []Segment
	addText := func(s string) {
		s = Unescape(s)
		if s == "" {
			return
		}
		if n := len(out); n > 0 && !out[n-1].IsVar() {
			out[n-1].Text += s
			return
		}
		out = append(out, Segment{Text: s})
	}
	last := 0
	for _, ph := range Placeholders(text) {
		addText(text[last:ph.Start])
		out = append(out, Segment{Var: ph.Name})
		last = ph.End
	}
	addText(text[last:])
	return out
}

// Unescape resolves \n \t \\ \{ \} and \" in print text. Any other
// backslash sequence is kept verbatim.
func Unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 == len(s) {
			sb.WriteByte(c)
			continue
		}
		switch s[i+1] {
		case 'n':
			sb.WriteByte('\n')
		case 't':
			sb.WriteByte('\t')
		case '\\', '{', '}', '"':
			sb.WriteByte(s[i+1])
		default:
			sb.WriteByte(c)
			continue
		}
		i++
	}
	return sb.String()
}

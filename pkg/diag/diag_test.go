package diag

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"

	"vencc/pkg/compiler"
)

func assertContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Errorf("Expected output to contain %q, but it didn't.\nOutput:\n%s", substr, output)
	}
}

func TestPrint(t *testing.T) {
	src := "@ x i 1\n  >> {y}\n"
	_, _, errs, _ := compiler.Build(src, false)
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %v", errs)
	}

	var buf bytes.Buffer
	Printer{Out: &buf, NoColor: true}.Print(src, errs)
	out := buf.String()

	want := "Undeclared: line 2: variable \"y\" is not declared\n" +
		"2 |   >> {y}\n" +
		"  |   ^~~~~~\n"
	if out != want {
		t.Errorf("Print output mismatch.\ngot:\n%q\nwant:\n%q", out, want)
	}
	if strings.Contains(out, "\x1b[") {
		t.Errorf("NoColor output contains escape codes:\n%q", out)
	}
}

func TestPrint_GutterWidth(t *testing.T) {
	var src strings.Builder
	src.WriteString("@ x i 1\n")
	for range 10 {
		src.WriteString("; filler\n")
	}
	src.WriteString(">> {zz}\n")
	_, _, errs, _ := compiler.Build(src.String(), false)
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %v", errs)
	}

	var buf bytes.Buffer
	Printer{Out: &buf, NoColor: true}.Print(src.String(), errs)
	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %q", lines)
	}
	if lines[1] != "12 | >> {zz}" {
		t.Errorf("source line = %q", lines[1])
	}
	if lines[2] != "   | ^~~~~~~" {
		t.Errorf("marker line = %q", lines[2])
	}
}

func TestPrint_Color(t *testing.T) {
	saved := color.NoColor
	color.NoColor = false
	defer func() { color.NoColor = saved }()

	src := ">> {y}\n"
	_, _, errs, _ := compiler.Build(src, false)

	var buf bytes.Buffer
	Printer{Out: &buf}.Print(src, errs)
	assertContains(t, buf.String(), "\x1b[31;1mUndeclared\x1b[0m")
}

func TestPrint_LineOutOfRange(t *testing.T) {
	errs := []compiler.VarError{&compiler.Undeclared{Pos: compiler.Pos{At: 7}, Name: "z"}}
	var buf bytes.Buffer
	Printer{Out: &buf, NoColor: true}.Print("", errs)
	out := buf.String()
	assertContains(t, out, "line 8:")
	if strings.Contains(out, "|") {
		t.Errorf("snippet printed for a line that does not exist:\n%s", out)
	}
}

func TestSummary(t *testing.T) {
	one := []compiler.VarError{&compiler.Undeclared{Name: "a"}}
	if got := Summary(one); got != "1 error" {
		t.Errorf("Summary = %q", got)
	}
	if got := Summary(append(one, one[0])); got != "2 errors" {
		t.Errorf("Summary = %q", got)
	}
}

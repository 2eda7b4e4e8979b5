package repl

import (
	"bytes"
	"strings"
	"testing"
)

func assertContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Errorf("Expected output to contain %q, but it didn't.\nOutput:\n%s", substr, output)
	}
}

func newTestREPL(target string) (*REPL, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	r := New(Options{Target: target, Out: &out, Err: &errOut, NoColor: true})
	return r, &out, &errOut
}

func TestEval_AcceptsLines(t *testing.T) {
	r, out, errOut := newTestREPL("c")

	r.Eval("@@ n i 1")
	r.Eval("* n + 1")
	r.Eval(">> {n}")
	if errOut.Len() != 0 {
		t.Fatalf("unexpected errors:\n%s", errOut.String())
	}
	assertContains(t, out.String(), "v_n = v_n + (1);")
	if want := "@@ n i 1\n* n + 1\n>> {n}\n"; r.Source() != want {
		t.Errorf("Source() = %q, want %q", r.Source(), want)
	}
}

func TestEval_DropsBadLine(t *testing.T) {
	r, _, errOut := newTestREPL("c")

	r.Eval("@ a i 1")
	r.Eval(">> {missing}")
	assertContains(t, errOut.String(), "Undeclared")
	assertContains(t, errOut.String(), "1 error, input dropped")
	if r.Source() != "@ a i 1\n" {
		t.Errorf("bad line kept: %q", r.Source())
	}
}

func TestEval_Block(t *testing.T) {
	r, out, errOut := newTestREPL("c")

	r.Eval("@@ a i 1")
	out.Reset()
	r.Eval("? (a == 1) {")
	if !r.Continuing() {
		t.Fatalf("block not left open")
	}
	if out.Len() != 0 {
		t.Errorf("compiled an unfinished block:\n%s", out.String())
	}
	r.Eval(">> one")
	r.Eval("}")
	if r.Continuing() {
		t.Fatalf("block still open")
	}
	if errOut.Len() != 0 {
		t.Fatalf("unexpected errors:\n%s", errOut.String())
	}
	assertContains(t, out.String(), "if (v_a == 1)")
}

func TestEval_EscapedBracesDoNotOpenBlock(t *testing.T) {
	r, _, _ := newTestREPL("c")
	r.Eval(">> \\{literal")
	if r.Continuing() {
		t.Errorf("escaped brace opened a block")
	}
}

func TestCommands(t *testing.T) {
	r, out, errOut := newTestREPL("")

	if r.Target() != "lx8664" {
		t.Errorf("default target = %q", r.Target())
	}
	r.Eval(":target rs")
	if r.Target() != "rust" {
		t.Errorf("alias not resolved: %q", r.Target())
	}
	r.Eval(":target nope")
	assertContains(t, errOut.String(), "unknown target")
	if r.Target() != "rust" {
		t.Errorf("bad :target changed target to %q", r.Target())
	}

	r.Eval(">> hi")
	out.Reset()
	r.Eval(":show")
	if out.String() != ">> hi\n" {
		t.Errorf(":show = %q", out.String())
	}

	r.Eval(":reset")
	if r.Source() != "" {
		t.Errorf(":reset kept %q", r.Source())
	}

	out.Reset()
	r.Eval(":targets")
	assertContains(t, out.String(), "rust (rs)")
	assertContains(t, out.String(), "win32 (WHM)")

	r.Eval(":bogus")
	assertContains(t, errOut.String(), "unknown command :bogus")

	for _, cmd := range []string{":quit", ":q", "exit"} {
		if !r.Eval(cmd) {
			t.Errorf("%s did not quit", cmd)
		}
	}
	if r.Eval("") {
		t.Errorf("empty line quit")
	}
}

func TestHistoryFile(t *testing.T) {
	if got := historyFile(Options{HistoryFile: "/tmp/h"}); got != "/tmp/h" {
		t.Errorf("historyFile = %q", got)
	}
	if got := historyFile(Options{}); got != "" && !strings.HasSuffix(got, ".vencc_history") {
		t.Errorf("historyFile = %q", got)
	}
}

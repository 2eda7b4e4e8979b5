// Package repl is an interactive session: each accepted line is added
// to a running program and the whole program is recompiled.
package repl

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"

	"vencc/pkg/codegen"
	"vencc/pkg/diag"
	"vencc/pkg/driver"
	"vencc/pkg/logs"
)

const (
	prompt     = "ven> "
	contPrompt = "...> "
)

type Options struct {
	Target     string
	NoOptimize bool
	// HistoryFile defaults to ~/.vencc_history.
	HistoryFile string
	Out         io.Writer
	Err         io.Writer
	NoColor     bool
	Logger      *slog.Logger
}

type REPL struct {
	opts    Options
	target  string
	lines   []string
	pending []string
	depth   int
	printer diag.Printer
}

func New(opts Options) *REPL {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Err == nil {
		opts.Err = os.Stderr
	}
	if opts.Logger == nil {
		opts.Logger = logs.Discard()
	}
	target := opts.Target
	if target == "" {
		target = driver.DefaultTarget
	}
	return &REPL{
		opts:    opts,
		target:  target,
		printer: diag.Printer{Out: opts.Err, NoColor: opts.NoColor},
	}
}

// Source returns the accepted program so far.
func (r *REPL) Source() string {
	if len(r.lines) == 0 {
		return ""
	}
	return strings.Join(r.lines, "\n") + "\n"
}

// Target is the current target id.
func (r *REPL) Target() string { return r.target }

// Continuing reports whether an if block is still open.
func (r *REPL) Continuing() bool { return r.depth > 0 }

// Eval handles one input line and reports whether the session should
// end.
func (r *REPL) Eval(line string) (quit bool) {
	trimmed := strings.TrimSpace(line)
	if r.depth == 0 {
		if trimmed == "" {
			return false
		}
		if trimmed == "exit" || strings.HasPrefix(trimmed, ":") {
			return r.command(trimmed)
		}
	}

	r.pending = append(r.pending, line)
	r.depth += strings.Count(line, "{") - strings.Count(line, "\\{")
	r.depth -= strings.Count(line, "}") - strings.Count(line, "\\}")
	if r.depth > 0 {
		return false
	}
	r.depth = 0

	chunk := r.pending
	r.pending = nil
	candidate := append(append([]string(nil), r.lines...), chunk...)
	src := strings.Join(candidate, "\n") + "\n"

	art, err := driver.Compile(src, driver.Options{
		Target:     r.target,
		NoOptimize: r.opts.NoOptimize,
		Logger:     r.opts.Logger,
	})
	var ce *driver.CompileError
	switch {
	case errors.As(err, &ce):
		r.printer.Print(ce.Source, ce.Errors)
		fmt.Fprintf(r.opts.Err, "%s, input dropped\n", diag.Summary(ce.Errors))
		return false
	case err != nil:
		fmt.Fprintf(r.opts.Err, "error: %v\n", err)
		return false
	}

	r.lines = candidate
	fmt.Fprint(r.opts.Out, art.Text)
	return false
}

func (r *REPL) command(cmd string) bool {
	name, arg, _ := strings.Cut(cmd, " ")
	arg = strings.TrimSpace(arg)
	switch name {
	case ":quit", ":q", "exit":
		return true
	case ":target":
		if arg == "" {
			fmt.Fprintln(r.opts.Out, r.target)
			return false
		}
		e, err := driver.Resolve(arg)
		if err != nil {
			fmt.Fprintf(r.opts.Err, "error: %v\n", err)
			return false
		}
		r.target = e.Target()
		fmt.Fprintf(r.opts.Out, "target %s\n", r.target)
	case ":targets":
		for _, t := range codegen.Targets() {
			if aliases := codegen.Aliases(t); len(aliases) > 0 {
				fmt.Fprintf(r.opts.Out, "%s (%s)\n", t, strings.Join(aliases, ", "))
				continue
			}
			fmt.Fprintln(r.opts.Out, t)
		}
	case ":reset":
		r.lines = nil
		fmt.Fprintln(r.opts.Out, "session cleared")
	case ":show":
		fmt.Fprint(r.opts.Out, r.Source())
	case ":help":
		fmt.Fprintln(r.opts.Out, ":target [name]  show or set the target")
		fmt.Fprintln(r.opts.Out, ":targets        list targets")
		fmt.Fprintln(r.opts.Out, ":show           print the session source")
		fmt.Fprintln(r.opts.Out, ":reset          clear the session")
		fmt.Fprintln(r.opts.Out, ":quit           leave")
	default:
		fmt.Fprintf(r.opts.Err, "unknown command %s (try :help)\n", name)
	}
	return false
}

func historyFile(opts Options) string {
	if opts.HistoryFile != "" {
		return opts.HistoryFile
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".vencc_history")
	}
	return ""
}

// Run reads lines from the terminal until :quit or EOF. Ctrl-C drops
// an unfinished block.
func (r *REPL) Run() error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:      prompt,
		HistoryFile: historyFile(r.opts),
		Stdout:      r.opts.Out,
		Stderr:      r.opts.Err,
	})
	if err != nil {
		return err
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			r.pending, r.depth = nil, 0
			rl.SetPrompt(prompt)
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if r.Eval(line) {
			return nil
		}
		if r.Continuing() {
			rl.SetPrompt(contPrompt)
		} else {
			rl.SetPrompt(prompt)
		}
	}
}

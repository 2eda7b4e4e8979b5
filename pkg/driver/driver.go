// Package driver ties the front end and the emitters together. It is
// what the CLI, the REPL and the HTTP server call.
package driver

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/zeebo/blake3"
	"golang.org/x/text/unicode/norm"

	"vencc/pkg/codegen"
	"vencc/pkg/compiler"
	"vencc/pkg/logs"
)

// DefaultTarget is used when Options.Target is empty.
const DefaultTarget = "lx8664"

var ErrUnknownTarget = errors.New("unknown target")

// Options control a single compilation.
type Options struct {
	// Target is a target name or alias, e.g. "c", "rs", "win64".
	Target string
	// NoOptimize skips both optimisation passes.
	NoOptimize bool
	Logger     *slog.Logger
}

// Artifact is the result of a successful compilation.
type Artifact struct {
	Target    string
	Extension string
	Text      string
	Digest    [32]byte
	Program   *compiler.Program
	Stats     compiler.Stats
}

// DigestHex returns the blake3 digest of Text in hex.
func (a *Artifact) DigestHex() string {
	return hex.EncodeToString(a.Digest[:])
}

// CompileError carries every error the parser collected along with the
// normalised source they refer to.
type CompileError struct {
	Source string
	Errors []compiler.VarError
}

func (e *CompileError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d errors:", len(e.Errors))
	for _, err := range e.Errors {
		sb.WriteString("\n\t")
		sb.WriteString(err.Error())
	}
	return sb.String()
}

func (e *CompileError) Unwrap() []error {
	return compiler.Errors(e.Errors)
}

// Resolve maps a target name or alias to its emitter.
func Resolve(target string) (codegen.Emitter, error) {
	if target == "" {
		target = DefaultTarget
	}
	e, ok := codegen.Lookup(target)
	if !ok {
		return nil, fmt.Errorf("%w %q (have %s)", ErrUnknownTarget, target, strings.Join(codegen.Targets(), ", "))
	}
	return e, nil
}

// Compile runs the whole pipeline over src. On parse errors the result
// is a *CompileError and no artifact.
func Compile(src string, opts Options) (*Artifact, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logs.Discard()
	}

	emitter, err := Resolve(opts.Target)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	src = norm.NFC.String(src)
	prog, _, errs, stats := compiler.Build(src, !opts.NoOptimize)
	if len(errs) > 0 {
		logger.Debug("compile failed",
			"target", emitter.Target(),
			"errors", len(errs),
		)
		return nil, &CompileError{Source: src, Errors: errs}
	}

	text := emitter.Emit(prog)
	art := &Artifact{
		Target:    emitter.Target(),
		Extension: emitter.Extension(),
		Text:      text,
		Digest:    blake3.Sum256([]byte(text)),
		Program:   prog,
		Stats:     stats,
	}
	logger.Debug("compiled",
		"target", art.Target,
		"nodes", len(prog.Nodes),
		"removed", stats.Removed,
		"fused", stats.Fused,
		"inlined", stats.Inlined,
		"bytes", len(text),
		"elapsed", time.Since(start),
	)
	return art, nil
}

// Check parses src without emitting anything and returns the errors
// found, if any.
func Check(src string) []compiler.VarError {
	_, _, errs, _ := compiler.Build(norm.NFC.String(src), false)
	return errs
}

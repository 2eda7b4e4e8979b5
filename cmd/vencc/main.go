package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"git.sr.ht/~sircmpwn/getopt"

	"vencc/pkg/codegen"
	"vencc/pkg/config"
	"vencc/pkg/diag"
	"vencc/pkg/driver"
	"vencc/pkg/logs"
	"vencc/pkg/repl"
	"vencc/pkg/server"
	"vencc/pkg/store"
	"vencc/pkg/utils"
)

const usage = `usage: vencc [options] file.ven

options:
  -t TARGET  target id or alias (default lx8664, see -l)
  -o FILE    output file, - for stdout (default: input with target extension)
  -c FILE    config file (default: ./vencc.cue, then the user config dir)
  -n         disable optimisation
  -d         debug logging
  -l         list targets and exit
  -r         start the interactive REPL
  -s ADDR    serve the compiler over HTTP on ADDR
  -v         print the program and optimiser stats to stderr
  -h         show this help
`

type options struct {
	target     string
	output     string
	configFile string
	noOptimize bool
	debug      bool
	list       bool
	repl       bool
	listen     string
	verbose    bool
	input      string
}

func main() {
	os.Exit(run(os.Args, os.Stdout, os.Stderr))
}

func parseArgs(args []string) (options, bool, error) {
	var o options
	opts, optind, err := getopt.Getopts(args, "t:o:c:ndlrs:vh")
	if err != nil {
		return o, false, err
	}
	for _, opt := range opts {
		switch opt.Option {
		case 't':
			o.target = opt.Value
		case 'o':
			o.output = opt.Value
		case 'c':
			o.configFile = opt.Value
		case 'n':
			o.noOptimize = true
		case 'd':
			o.debug = true
		case 'l':
			o.list = true
		case 'r':
			o.repl = true
		case 's':
			o.listen = opt.Value
		case 'v':
			o.verbose = true
		case 'h':
			return o, true, nil
		}
	}
	rest := args[optind:]
	if len(rest) > 1 {
		return o, false, fmt.Errorf("expected one input file, got %d", len(rest))
	}
	if len(rest) == 1 {
		o.input = rest[0]
	}
	return o, false, nil
}

// settings merges flags over the config files.
func settings(o options) (config.Config, error) {
	paths := config.Discover()
	if o.configFile != "" {
		paths = []string{o.configFile}
	}
	cfg, err := config.Load(paths...)
	if err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	flags := config.Config{
		Target: o.target,
		Output: o.output,
		Listen: o.listen,
	}
	if o.noOptimize {
		off := false
		flags.Optimize = &off
	}
	if o.debug {
		flags.LogLevel = "debug"
	}
	return cfg.Merge(flags), nil
}

func run(args []string, stdout, stderr io.Writer) int {
	o, help, err := parseArgs(args)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n%s", err, usage)
		return 1
	}
	if help {
		fmt.Fprint(stdout, usage)
		return 0
	}
	if o.list {
		listTargets(stdout)
		return 0
	}

	cfg, err := settings(o)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	level, err := logs.ParseLevel(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	logs.SetLevel(level)
	logger, closeLog, err := logs.Open(cfg.LogFile)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	defer closeLog()

	switch {
	case o.repl:
		r := repl.New(repl.Options{
			Target:      cfg.Target,
			NoOptimize:  !cfg.OptimizeOr(true),
			HistoryFile: cfg.History,
			Out:         stdout,
			Err:         stderr,
			Logger:      logger,
		})
		if err := r.Run(); err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
			return 1
		}
		return 0
	case cfg.Listen != "":
		return serve(cfg, logger, stderr)
	}

	if o.input == "" {
		fmt.Fprintf(stderr, "error: no input file\n%s", usage)
		return 1
	}
	return compileFile(o, cfg, logger, stdout, stderr)
}

func compileFile(o options, cfg config.Config, logger *slog.Logger, stdout, stderr io.Writer) int {
	if filepath.Ext(o.input) != ".ven" {
		fmt.Fprintf(stderr, "error: %s: input must be a .ven file\n", o.input)
		return 1
	}
	fullPath, _, err := utils.GetPathInfo(o.input)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	data, err := os.ReadFile(fullPath)
	if err != nil {
		fmt.Fprintln(stderr, "read error:", err)
		return 1
	}

	art, err := driver.Compile(string(data), driver.Options{
		Target:     cfg.Target,
		NoOptimize: !cfg.OptimizeOr(true),
		Logger:     logger.With("file", o.input),
	})
	var ce *driver.CompileError
	switch {
	case errors.As(err, &ce):
		diag.Printer{Out: stderr}.Print(ce.Source, ce.Errors)
		fmt.Fprintf(stderr, "%s: %s\n", o.input, diag.Summary(ce.Errors))
		return 1
	case err != nil:
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	if o.verbose {
		fmt.Fprintln(stderr, "Program")
		for _, n := range art.Program.Nodes {
			fmt.Fprintln(stderr, " ", n)
		}
		fmt.Fprintf(stderr, "removed %d, fused %d, inlined %d\n",
			art.Stats.Removed, art.Stats.Fused, art.Stats.Inlined)
	}

	out := cfg.Output
	if out == "-" {
		fmt.Fprint(stdout, art.Text)
		return 0
	}
	if out == "" {
		out = utils.OutputPath(o.input, art.Extension)
	}
	wrote, err := utils.WriteIfChanged(out, []byte(art.Text), art.Digest)
	if err != nil {
		fmt.Fprintf(stderr, "failed to write %q: %v\n", out, err)
		return 1
	}
	logger.Info("compiled", "target", art.Target, "output", out, "written", wrote)
	return 0
}

func serve(cfg config.Config, logger *slog.Logger, stderr io.Writer) int {
	artifacts := store.New(0)
	if cfg.CacheDir != "" {
		if err := artifacts.LoadFrom(cfg.CacheDir); err != nil {
			fmt.Fprintf(stderr, "error: cache: %v\n", err)
			return 1
		}
		logger.Info("cache loaded", "dir", cfg.CacheDir, "artifacts", len(artifacts.List()))
		defer func() {
			if err := artifacts.PersistTo(cfg.CacheDir); err != nil {
				logger.Error("cache", "err", err)
			}
		}()
	}

	srv := server.New(server.Options{
		Target:     cfg.Target,
		NoOptimize: !cfg.OptimizeOr(true),
		Logger:     logger,
		Store:      artifacts,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	served := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case <-ctx.Done():
		case <-served:
			return
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown", "err", err)
		}
	}()

	// The watcher exits when serving ends, whether or not a signal came.
	// A Shutdown already under way drains before the cache is persisted.
	err := srv.ListenAndServe(cfg.Listen)
	close(served)
	wg.Wait()
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func listTargets(w io.Writer) {
	for _, t := range codegen.Targets() {
		e, _ := codegen.Lookup(t)
		line := fmt.Sprintf("%-7s %s", t, e.Extension())
		if aliases := codegen.Aliases(t); len(aliases) > 0 {
			line += "  (" + strings.Join(aliases, ", ") + ")"
		}
		fmt.Fprintln(w, line)
	}
}

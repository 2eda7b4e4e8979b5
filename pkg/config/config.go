package config

import (
	"errors"
	"os"
	"path/filepath"
)

// FileName is looked up in the working directory and the user config
// directory.
const FileName = "vencc.cue"

// Config holds every setting a vencc.cue file can provide. Zero values
// mean "not set"; Optimize is a pointer so an explicit false survives.
type Config struct {
	Target   string
	Output   string
	Optimize *bool
	LogLevel string
	LogFile  string
	Listen   string
	History  string
	// CacheDir persists the server's artifact store between runs.
	CacheDir string
}

// Load reads paths in order of precedence. Missing files are an error;
// use Discover to find the ones that exist.
func Load(paths ...string) (Config, error) {
	var cfg Config
	if len(paths) == 0 {
		return cfg, nil
	}
	loader := NewLoader(paths, Schema)

	fields := []struct {
		path   string
		target any
	}{
		{"target", &cfg.Target},
		{"output", &cfg.Output},
		{"log_level", &cfg.LogLevel},
		{"log_file", &cfg.LogFile},
		{"listen", &cfg.Listen},
		{"history", &cfg.History},
		{"cache_dir", &cfg.CacheDir},
	}
	for _, f := range fields {
		if err := assign(loader, f.path, f.target); err != nil {
			return Config{}, err
		}
	}

	var optimize bool
	err := loader.AssignFirst("optimize", &optimize)
	switch {
	case err == nil:
		cfg.Optimize = &optimize
	case !errors.Is(err, ErrValueNotFound):
		return Config{}, err
	}
	return cfg, nil
}

func assign(loader Loader, path string, target any) error {
	err := loader.AssignFirst(path, target)
	if errors.Is(err, ErrValueNotFound) {
		return nil
	}
	return err
}

// Discover returns the config files that exist, nearest first: the
// working directory, then $XDG_CONFIG_HOME/vencc (or its platform
// equivalent).
func Discover() []string {
	var candidates []string
	if wd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(wd, FileName))
	}
	if dir, err := os.UserConfigDir(); err == nil {
		candidates = append(candidates, filepath.Join(dir, "vencc", FileName))
	}

	var found []string
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			found = append(found, c)
		}
	}
	return found
}

// Merge overlays o onto c: every field set in o replaces c's.
func (c Config) Merge(o Config) Config {
	if o.Target != "" {
		c.Target = o.Target
	}
	if o.Output != "" {
		c.Output = o.Output
	}
	if o.Optimize != nil {
		c.Optimize = o.Optimize
	}
	if o.LogLevel != "" {
		c.LogLevel = o.LogLevel
	}
	if o.LogFile != "" {
		c.LogFile = o.LogFile
	}
	if o.Listen != "" {
		c.Listen = o.Listen
	}
	if o.History != "" {
		c.History = o.History
	}
	if o.CacheDir != "" {
		c.CacheDir = o.CacheDir
	}
	return c
}

// OptimizeOr returns the configured optimize flag, or def when unset.
func (c Config) OptimizeOr(def bool) bool {
	if c.Optimize == nil {
		return def
	}
	return *c.Optimize
}

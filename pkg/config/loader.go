// Package config reads vencc.cue files. Several files may be given;
// for every setting the first file that defines it wins.
package config

import (
	"errors"
	"os"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

var ErrValueNotFound = errors.New("value not found")

// Schema is the closed set of settings a vencc.cue file may carry.
const Schema = `
target?:    string
output?:    string
optimize?:  bool
log_level?: "debug" | "info" | "warn" | "error"
log_file?:  string
listen?:    string
history?:   string
cache_dir?: string
`

type Loader struct {
	getRoots func() ([]root, error)
}

type root struct {
	value cue.Value
	path  string
}

// NewLoader compiles each file once, on first use, and checks it
// against schemaSrc when that is not empty.
func NewLoader(filePaths []string, schemaSrc string) Loader {
	return Loader{
		getRoots: sync.OnceValues(func() (ret []root, err error) {
			var schema cue.Value
			if schemaSrc != "" {
				ctx := cuecontext.New()
				schema = ctx.CompileString("close({" + schemaSrc + "})")
				if err := schema.Err(); err != nil {
					return nil, err
				}
			}

			for _, filePath := range filePaths {
				content, err := os.ReadFile(filePath)
				if err != nil {
					return nil, err
				}

				ctx := cuecontext.New()
				value := ctx.CompileBytes(content, cue.Filename(filePath))
				if err := value.Err(); err != nil {
					return nil, err
				}
				if schema.Exists() {
					if err := schema.Unify(value).Validate(); err != nil {
						return nil, err
					}
				}

				ret = append(ret, root{value: value, path: filePath})
			}
			return
		}),
	}
}

// AssignFirst decodes the value at path from the first file that has
// it into target.
func (l Loader) AssignFirst(path string, target any) error {
	roots, err := l.getRoots()
	if err != nil {
		return err
	}

	cuePath := cue.ParsePath(path)
	for _, r := range roots {
		value := r.value.LookupPath(cuePath)
		if value.Err() != nil || !value.Exists() {
			continue
		}
		return value.Decode(target)
	}
	return ErrValueNotFound
}

// Source reports which file defines path, or "" when none does.
func (l Loader) Source(path string) string {
	roots, err := l.getRoots()
	if err != nil {
		return ""
	}
	cuePath := cue.ParsePath(path)
	for _, r := range roots {
		if v := r.value.LookupPath(cuePath); v.Err() == nil && v.Exists() {
			return r.path
		}
	}
	return ""
}

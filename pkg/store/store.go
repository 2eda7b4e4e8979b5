// Package store keeps compiled artifacts in memory, keyed by content
// digest, with an upper bound on total size. It can be loaded from and
// persisted to a host directory.
package store

import (
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"sync"
	"time"
)

// DefaultMaxBytes bounds the store when New is given zero.
const DefaultMaxBytes = 16 << 20

// validName is a hex blake3-256 digest followed by an output extension.
var validName = regexp.MustCompile(`^[0-9a-f]{64}\.(c|rs|ll|asm)$`)

var (
	ErrNotFound    = errors.New("artifact not found")
	ErrInvalidName = errors.New("invalid artifact name")
	ErrTooLarge    = errors.New("artifact larger than store")
)

type Entry struct {
	Data     []byte
	Created  time.Time
	Accessed time.Time
}

type Store struct {
	mu       sync.RWMutex
	entries  map[string]*Entry
	dirty    map[string]bool
	used     int
	maxBytes int
}

func New(maxBytes int) *Store {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Store{
		entries:  make(map[string]*Entry),
		dirty:    make(map[string]bool),
		maxBytes: maxBytes,
	}
}

// Name is the key an artifact with the given hex digest and extension
// is stored under.
func Name(digest, ext string) string {
	return digest + ext
}

// Put stores a copy of data under name. When the store is full the
// least recently accessed artifacts are evicted first.
func (s *Store) Put(name string, data []byte) error {
	if !validName.MatchString(name) {
		return ErrInvalidName
	}
	if len(data) > s.maxBytes {
		return ErrTooLarge
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if existing, ok := s.entries[name]; ok {
		// Content addressed: same name, same bytes.
		existing.Accessed = now
		return nil
	}
	for s.used+len(data) > s.maxBytes {
		s.evictLocked()
	}

	s.entries[name] = &Entry{
		Data:     append([]byte(nil), data...),
		Created:  now,
		Accessed: now,
	}
	s.used += len(data)
	s.dirty[name] = true
	return nil
}

func (s *Store) evictLocked() {
	var oldest string
	var at time.Time
	for name, e := range s.entries {
		if oldest == "" || e.Accessed.Before(at) {
			oldest, at = name, e.Accessed
		}
	}
	s.used -= len(s.entries[oldest].Data)
	delete(s.entries, oldest)
	s.dirty[oldest] = true
}

// Get returns the artifact stored under name and marks it as used.
func (s *Store) Get(name string) ([]byte, error) {
	if !validName.MatchString(name) {
		return nil, ErrInvalidName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[name]
	if !ok {
		return nil, ErrNotFound
	}
	e.Accessed = time.Now()
	return e.Data, nil
}

func (s *Store) Delete(name string) error {
	if !validName.MatchString(name) {
		return ErrInvalidName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[name]
	if !ok {
		return ErrNotFound
	}
	s.used -= len(e.Data)
	delete(s.entries, name)
	s.dirty[name] = true
	return nil
}

// Used returns the total size of stored artifacts in bytes.
func (s *Store) Used() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.used
}

// List returns the stored names, sorted.
func (s *Store) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// LoadFrom adds every validly named file in dir. A missing dir is not
// an error. Files that no longer fit are skipped.
func (s *Store) LoadFrom(dir string) error {
	files, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, f := range files {
		name := f.Name()
		if f.IsDir() || !validName.MatchString(name) {
			continue
		}
		if _, ok := s.entries[name]; ok {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil || s.used+len(raw) > s.maxBytes {
			continue
		}

		e := &Entry{Data: raw, Created: time.Now()}
		if info, err := f.Info(); err == nil {
			e.Created = info.ModTime()
		}
		e.Accessed = e.Created
		s.entries[name] = e
		s.used += len(raw)
	}
	return nil
}

// PersistTo writes new artifacts to dir and removes evicted ones. The
// first I/O error is returned; the failed names stay dirty.
func (s *Store) PersistTo(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	s.mu.Lock()
	writes := make(map[string][]byte)
	var removes []string
	for name := range s.dirty {
		if e, ok := s.entries[name]; ok {
			writes[name] = e.Data
		} else {
			removes = append(removes, name)
		}
		delete(s.dirty, name)
	}
	s.mu.Unlock()

	var firstErr error
	fail := func(name string, err error) {
		s.mu.Lock()
		s.dirty[name] = true
		s.mu.Unlock()
		if firstErr == nil {
			firstErr = err
		}
	}

	for _, name := range removes {
		if err := os.Remove(filepath.Join(dir, name)); err != nil && !os.IsNotExist(err) {
			fail(name, err)
		}
	}
	for name, data := range writes {
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			fail(name, err)
		}
	}
	return firstErr
}

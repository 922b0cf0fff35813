package store

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// BookPriority weights how strongly a book is favored in each
// deliberation mode's retrieval bias. War-mode book selection multiplies
// its domain/tone affinity score by Priority.War; quick and
// normal modes are reserved for future biasing and default to neutral.
type BookPriority struct {
	Normal float64 `yaml:"normal"`
	War    float64 `yaml:"war"`
	Quick  float64 `yaml:"quick"`
}

// BookMetadata describes a single doctrine source: its identity, the
// domains and tones it contributes to, and its per-mode retrieval
// priority. One YAML file per book lives under
// <baseDir>/books/metadata/<book_id>.yaml. Unknown book ids fall back to
// DefaultBookMetadata rather than an error.
type BookMetadata struct {
	BookID  string       `yaml:"book_id"`
	Title   string       `yaml:"title"`
	Author  string       `yaml:"author"`
	Version string       `yaml:"version"`
	Domains []string     `yaml:"domains"`
	Tones   []string     `yaml:"tones"`
	Priority BookPriority `yaml:"priority"`
}

// DefaultBookMetadata returns the zero-information metadata used for a
// book_id the registry has never heard of: no domain or tone affinity,
// and a neutral 0.5 priority in every mode.
func DefaultBookMetadata(bookID string) BookMetadata {
	return BookMetadata{
		BookID:   bookID,
		Priority: BookPriority{Normal: 0.5, War: 0.5, Quick: 0.5},
	}
}

// BookRegistry holds the set of known books in memory, loaded from YAML
// and optionally kept fresh with an fsnotify watch so an operator can add
// or edit book metadata without restarting the process.
type BookRegistry struct {
	dir string

	mu    sync.RWMutex
	books map[string]BookMetadata

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// LoadBookRegistry reads every *.yaml file in <baseDir>/books/metadata.
func LoadBookRegistry(baseDir string) (*BookRegistry, error) {
	dir := filepath.Join(baseDir, "books", "metadata")
	r := &BookRegistry{dir: dir, books: make(map[string]BookMetadata)}
	if err := r.reload(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *BookRegistry) reload() error {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("store: reading book registry directory: %w", err)
	}

	books := make(map[string]BookMetadata, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(r.dir, e.Name()))
		if err != nil {
			return fmt.Errorf("store: reading %s: %w", e.Name(), err)
		}
		var meta BookMetadata
		if err := yaml.Unmarshal(data, &meta); err != nil {
			return fmt.Errorf("store: parsing %s: %w", e.Name(), err)
		}
		if meta.BookID == "" {
			return fmt.Errorf("store: %s is missing book_id", e.Name())
		}
		books[meta.BookID] = meta
	}

	r.mu.Lock()
	r.books = books
	r.mu.Unlock()
	return nil
}

// Get returns the metadata for a book, or false if unknown.
func (r *BookRegistry) Get(bookID string) (BookMetadata, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.books[bookID]
	return m, ok
}

// Metadata returns a book's metadata, falling back to
// DefaultBookMetadata for an unregistered book_id: unknown books get
// empty domain/tone sets and 0.5 priorities, never an error.
func (r *BookRegistry) Metadata(bookID string) BookMetadata {
	if m, ok := r.Get(bookID); ok {
		return m
	}
	return DefaultBookMetadata(bookID)
}

// AllBooks is an alias for All.
func (r *BookRegistry) AllBooks() []BookMetadata { return r.All() }

// BooksForDomain returns every book whose metadata lists the given domain.
func (r *BookRegistry) BooksForDomain(d string) []BookMetadata {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []BookMetadata
	for _, m := range r.books {
		for _, md := range m.Domains {
			if md == d {
				out = append(out, m)
				break
			}
		}
	}
	return out
}

// All returns every registered book's metadata.
func (r *BookRegistry) All() []BookMetadata {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]BookMetadata, 0, len(r.books))
	for _, m := range r.books {
		out = append(out, m)
	}
	return out
}

// Save writes a book's metadata to disk. If a watch is active, the
// resulting fsnotify event will pick it up automatically.
func (r *BookRegistry) Save(meta BookMetadata) error {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("store: creating book registry directory: %w", err)
	}
	data, err := yaml.Marshal(meta)
	if err != nil {
		return fmt.Errorf("store: marshaling book metadata: %w", err)
	}
	path := filepath.Join(r.dir, meta.BookID+".yaml")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		return err
	}

	r.mu.Lock()
	r.books[meta.BookID] = meta
	r.mu.Unlock()
	return nil
}

// Watch starts an fsnotify watch on the metadata directory, reloading the
// in-memory registry whenever a file is written, renamed into place, or
// removed. Call StopWatch to release the watcher.
func (r *BookRegistry) Watch() error {
	if r.watcher != nil {
		return nil
	}
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("store: creating book registry directory: %w", err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("store: starting book registry watch: %w", err)
	}
	if err := w.Add(r.dir); err != nil {
		w.Close()
		return fmt.Errorf("store: watching %s: %w", r.dir, err)
	}

	r.watcher = w
	r.done = make(chan struct{})
	go r.watchLoop()
	return nil
}

func (r *BookRegistry) watchLoop() {
	for {
		select {
		case event, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if !strings.HasSuffix(event.Name, ".yaml") {
				continue
			}
			if err := r.reload(); err != nil {
				slog.Error("store: reloading book registry", "error", err)
			}
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("store: book registry watch error", "error", err)
		case <-r.done:
			return
		}
	}
}

// StopWatch stops the fsnotify watch started by Watch, if any.
func (r *BookRegistry) StopWatch() error {
	if r.watcher == nil {
		return nil
	}
	close(r.done)
	err := r.watcher.Close()
	r.watcher = nil
	return err
}

// Package source holds the per-load registry of raw source files. The
// registry is created once per load operation and threaded explicitly
// through the pipeline, so concurrent unrelated loads never share mutable
// state. It caches each file split into lines, which diagnostic rendering
// uses to print the offending line under a caret.
package source

import (
	"strings"

	"github.com/vk/tyco/internal/diag"
)

// File is one registered source file.
type File struct {
	Path  string
	Text  string
	Lines []string
}

// Line returns the 1-based line n, or "" when out of range.
func (f *File) Line(n int) string {
	if n < 1 || n > len(f.Lines) {
		return ""
	}
	return f.Lines[n-1]
}

// Registry maps file paths to their cached line splits.
type Registry struct {
	files map[string]*File
	order []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{files: make(map[string]*File)}
}

// Add registers a file, splitting it into lines once. Re-registering a path
// returns the existing entry unchanged.
func (r *Registry) Add(path, text string) *File {
	if f, ok := r.files[path]; ok {
		return f
	}
	f := &File{
		Path:  path,
		Text:  text,
		Lines: strings.Split(text, "\n"),
	}
	r.files[path] = f
	r.order = append(r.order, path)
	return f
}

// File returns the registered file for path, or nil.
func (r *Registry) File(path string) *File {
	return r.files[path]
}

// Paths returns the registration order of all files.
func (r *Registry) Paths() []string {
	return append([]string(nil), r.order...)
}

// Annotate attaches the cached offending source line to a diagnostic so its
// rendering can draw the caret. It returns the same diagnostic for
// convenience at return sites.
func (r *Registry) Annotate(d *diag.Diagnostic) *diag.Diagnostic {
	if d == nil {
		return nil
	}
	if f := r.files[d.Subject.Filename]; f != nil {
		d.SourceLine = f.Line(d.Subject.Start.Line)
	}
	return d
}

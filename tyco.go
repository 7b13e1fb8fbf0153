// Package tyco loads Tyco documents: typed configuration files with
// struct schemas, instance rows, cross-file references, and string
// templates.
//
// Load runs the full pipeline over a set of files and returns an
// assembled Context. Files lex and parse concurrently; schema merging,
// validation, reference resolution, and template expansion then run in
// declaration order so the result is deterministic for a given input
// set. The first error anywhere stops the load and is returned as a
// diagnostic pointing at the offending file, line, and column.
package tyco

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/vk/tyco/internal/ctxlog"
	"github.com/vk/tyco/internal/diag"
	"github.com/vk/tyco/internal/lexer"
	"github.com/vk/tyco/internal/parser"
	"github.com/vk/tyco/internal/source"
)

// File is one named input document. Path is used in diagnostics and for
// the per-file scoping of default assignments; it does not need to exist
// on disk.
type File struct {
	Path string
	Text string
}

// Load parses, validates, and assembles a set of documents into a
// Context. Struct schemas merge across all files before any row is
// validated, so a file may use structs declared in another.
func Load(ctx context.Context, files []File, opts ...Option) (*Context, error) {
	log := ctxlog.FromContext(ctx)
	var o loadOptions
	for _, opt := range opts {
		opt(&o)
	}

	// Register all sources up front so the concurrent lexers only ever
	// read the registry.
	reg := source.NewRegistry()
	for _, f := range files {
		reg.Add(f.Path, f.Text)
	}

	docs := make([]*parser.Document, len(files))
	g, _ := errgroup.WithContext(ctx)
	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			toks, d := lexer.New(reg, f.Path, f.Text).Scan()
			if d != nil {
				return reg.Annotate(d)
			}
			doc, d := parser.Parse(f.Path, toks)
			if d != nil {
				return reg.Annotate(d)
			}
			docs[i] = doc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	log.Debug("parsed documents", "files", len(files))

	c := newContext(reg, o)
	steps := []func() *diag.Diagnostic{
		func() *diag.Diagnostic { return c.declareStructs(docs) },
		func() *diag.Diagnostic { return c.validateDocs(docs) },
		func() *diag.Diagnostic { return c.buildIndex() },
		func() *diag.Diagnostic { return c.resolveRefs() },
		func() *diag.Diagnostic { return c.expandTemplates() },
	}
	for _, step := range steps {
		if d := step(); d != nil {
			return nil, reg.Annotate(d)
		}
	}
	log.Debug("context assembled",
		"structs", len(c.structOrder),
		"globals", len(c.globalOrder))
	return c, nil
}

// LoadString loads a single in-memory document.
func LoadString(ctx context.Context, text string, opts ...Option) (*Context, error) {
	return Load(ctx, []File{{Path: "<string>", Text: text}}, opts...)
}

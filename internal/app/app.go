package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/goccy/go-yaml"

	"github.com/vk/tyco"
	"github.com/vk/tyco/internal/ctxlog"
	"github.com/vk/tyco/internal/fsutil"
)

// App encapsulates one compile run: source discovery, loading, and
// output encoding.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	config *Config
}

// NewApp constructs the application with its own isolated logger.
// Diagnostics and log records go to errW; only the compiled output is
// written to outW.
func NewApp(outW, errW io.Writer, cfg *Config) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, errW)
	return &App{outW: outW, logger: logger, config: cfg}
}

// Run discovers the sources, loads them, and writes the exported tree
// in the configured format.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)

	paths, err := fsutil.CollectSources(a.config.Path)
	if err != nil {
		return err
	}
	a.logger.Debug("Sources collected.", "count", len(paths))

	files := make([]tyco.File, 0, len(paths))
	for _, p := range paths {
		text, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		files = append(files, tyco.File{Path: p, Text: string(text)})
	}

	var opts []tyco.Option
	if a.config.StrictGlobals {
		opts = append(opts, tyco.StrictGlobals())
	}
	tctx, err := tyco.Load(ctx, files, opts...)
	if err != nil {
		return err
	}
	a.logger.Debug("Context loaded.", "structs", len(tctx.StructNames()))

	switch a.config.Format {
	case "yaml":
		tree, err := tctx.Export()
		if err != nil {
			return err
		}
		data, err := yaml.MarshalWithOptions(tree, yaml.Indent(2))
		if err != nil {
			return err
		}
		_, err = a.outW.Write(data)
		return err
	default:
		data, err := tctx.ExportJSON(a.config.Pretty)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(a.outW, string(data))
		return err
	}
}

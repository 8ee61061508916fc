// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package export drives a page through rendering and conversion for a list
// of output formats and writes the resulting files.
//
// Each format is rendered separately because rules may be restricted to
// some formats. Rendering is sequential; conversions of the rendered
// markup run concurrently, bounded by the configured parallelism.
package export

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/outline-pandoc/internal/convert"
	"github.com/pdiddy/outline-pandoc/internal/logging"
	"github.com/pdiddy/outline-pandoc/internal/render"
	"github.com/pdiddy/outline-pandoc/internal/rules"
	"github.com/pdiddy/outline-pandoc/pkg/types"
)

const defaultParallelism = 2

// PageSource loads a page tree by name.
type PageSource interface {
	Page(ctx context.Context, name string) (types.Page, error)
}

// BatchResult holds the outcome of an export run.
type BatchResult struct {
	Converted int
	Failed    int
}

// Total returns the number of page and format pairs attempted.
func (r BatchResult) Total() int {
	return r.Converted + r.Failed
}

// HasFailures reports whether any conversion failed.
func (r BatchResult) HasFailures() bool {
	return r.Failed > 0
}

func (r *BatchResult) add(o BatchResult) {
	r.Converted += o.Converted
	r.Failed += o.Failed
}

// Exporter renders and converts pages.
type Exporter struct {
	pages     PageSource
	engine    *render.Engine
	converter convert.Converter
	cfg       types.ExportConfig
	logger    *slog.Logger
}

// New creates an Exporter. A nil logger discards diagnostics.
func New(pages PageSource, engine *render.Engine, c convert.Converter, cfg types.ExportConfig, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = logging.Discard()
	}
	if len(cfg.Formats) == 0 {
		cfg.Formats = types.DefaultFormats
	}
	return &Exporter{pages: pages, engine: engine, converter: c, cfg: cfg, logger: logger}
}

// RenderPage returns the intermediate markup of the named page for format.
func (e *Exporter) RenderPage(ctx context.Context, name string, rs rules.RuleSet, format types.Format) (string, error) {
	page, err := e.pages.Page(ctx, name)
	if err != nil {
		return "", err
	}
	return e.engine.Render(ctx, page.Blocks, rs, format)
}

// ExportPages exports each named page, printing per-file status to w and a
// summary line at the end. Per-format conversion failures are counted, not
// returned; an error is returned only when a page cannot be loaded or
// rendered, or ctx is cancelled.
func (e *Exporter) ExportPages(ctx context.Context, names []string, rs rules.RuleSet, w io.Writer) (BatchResult, error) {
	var total BatchResult
	for _, name := range names {
		r, err := e.ExportPage(ctx, name, rs, w)
		total.add(r)
		if err != nil {
			return total, err
		}
	}
	fmt.Fprintf(w, "\nExport summary: %d converted, %d failed (total: %d)\n",
		total.Converted, total.Failed, total.Total())
	return total, nil
}

// job is one rendered format waiting for conversion.
type job struct {
	format types.Format
	markup string
	path   string
	err    error
}

// ExportPage renders the named page once per configured format and
// converts the results concurrently.
func (e *Exporter) ExportPage(ctx context.Context, name string, rs rules.RuleSet, w io.Writer) (BatchResult, error) {
	var result BatchResult

	page, err := e.pages.Page(ctx, name)
	if err != nil {
		return result, err
	}
	if err := os.MkdirAll(e.cfg.OutputDir, 0o755); err != nil {
		return result, fmt.Errorf("creating output directory: %w", err)
	}
	base := FileBase(page.Name)

	jobs := make([]*job, 0, len(e.cfg.Formats))
	for _, f := range e.cfg.Formats {
		markup, err := e.engine.Render(ctx, page.Blocks, rs, f)
		if err != nil {
			return result, fmt.Errorf("rendering %s as %s: %w", page.Name, f, err)
		}
		if e.cfg.KeepMarkup {
			mdPath := filepath.Join(e.cfg.OutputDir, base+"."+string(f)+".md")
			if err := os.WriteFile(mdPath, []byte(markup), 0o644); err != nil {
				return result, fmt.Errorf("writing markup %s: %w", mdPath, err)
			}
		}
		jobs = append(jobs, &job{
			format: f,
			markup: markup,
			path:   filepath.Join(e.cfg.OutputDir, base+f.Extension()),
		})
	}

	limit := e.cfg.Converter.Parallelism
	if limit <= 0 {
		limit = defaultParallelism
	}
	var g errgroup.Group
	g.SetLimit(limit)
	for _, j := range jobs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			j.err = e.convertOne(ctx, j)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return result, err
	}

	// Report in format order regardless of completion order.
	for _, j := range jobs {
		label := base + j.format.Extension()
		if j.err != nil {
			fmt.Fprintf(w, "failed:  %s (%v)\n", label, j.err)
			e.logger.Warn("conversion failed", "page", page.Name, "format", j.format, "error", j.err)
			result.Failed++
			continue
		}
		fmt.Fprintf(w, "converted: %s\n", label)
		result.Converted++
	}
	return result, nil
}

func (e *Exporter) convertOne(ctx context.Context, j *job) error {
	out, err := e.converter.Convert(ctx, j.markup, j.format)
	if err != nil {
		return err
	}
	if err := os.WriteFile(j.path, out, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", j.path, err)
	}
	return nil
}

// FileBase turns a page name into a file name stem. Namespace separators
// become "___" as in graph page files; other path-hostile characters
// become "_".
func FileBase(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, "/", "___")
	name = strings.Map(func(r rune) rune {
		switch r {
		case '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		if r < 0x20 {
			return '_'
		}
		return r
	}, name)
	if name == "" || name == "." || name == ".." {
		return "untitled"
	}
	return name
}

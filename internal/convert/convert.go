// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package convert turns rendered intermediate markup into final documents.
// The production backend runs pandoc inside a container so that the host
// needs only docker or podman.
package convert

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pdiddy/outline-pandoc/internal/container"
	"github.com/pdiddy/outline-pandoc/pkg/types"
)

// DefaultImage is the pandoc image used when none is configured. The latex
// variant carries a TeX distribution for raw latex passthrough blocks.
const DefaultImage = "pandoc/latex:latest"

// Converter produces a document in format from markdown markup.
type Converter interface {
	Convert(ctx context.Context, markup string, format types.Format) ([]byte, error)
}

// Pandoc converts markup by piping it through the pandoc container image.
type Pandoc struct {
	runtime   container.Runtime
	image     string
	extraArgs []string
	mounts    []container.Mount
}

// NewPandoc creates a converter that runs cfg.Image (or DefaultImage) on rt.
// It verifies that the image exists locally before returning. Each
// directory in cfg.Mounts is bound read-only at its absolute host path.
func NewPandoc(ctx context.Context, rt container.Runtime, cfg types.ConverterConfig) (*Pandoc, error) {
	image := cfg.Image
	if image == "" {
		image = DefaultImage
	}
	if err := rt.ImageExists(ctx, image); err != nil {
		return nil, fmt.Errorf("pandoc image not available in %s (pull %s first): %w", rt.Name(), image, err)
	}

	mounts := make([]container.Mount, 0, len(cfg.Mounts))
	for _, dir := range cfg.Mounts {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return nil, fmt.Errorf("resolving mount %s: %w", dir, err)
		}
		mounts = append(mounts, container.Mount{Source: abs, ReadOnly: true})
	}
	return &Pandoc{runtime: rt, image: image, extraArgs: cfg.ExtraArgs, mounts: mounts}, nil
}

// Args returns the pandoc command line for format.
func (p *Pandoc) Args(format types.Format) []string {
	args := []string{"-f", "markdown", "-t", string(format), "--standalone"}
	args = append(args, p.extraArgs...)
	return append(args, "-o", "-")
}

// Convert pipes markup through pandoc and returns the produced document.
func (p *Pandoc) Convert(ctx context.Context, markup string, format types.Format) ([]byte, error) {
	if format == "" {
		return nil, fmt.Errorf("output format not set")
	}
	var out bytes.Buffer
	job := container.Job{Image: p.image, Args: p.Args(format), Mounts: p.mounts}
	if err := p.runtime.Run(ctx, job, strings.NewReader(markup), &out); err != nil {
		return nil, fmt.Errorf("converting to %s with pandoc: %w", format, err)
	}
	if out.Len() == 0 {
		return nil, fmt.Errorf("pandoc produced empty %s output", format)
	}
	return out.Bytes(), nil
}

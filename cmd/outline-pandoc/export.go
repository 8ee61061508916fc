// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/outline-pandoc/internal/container"
	"github.com/pdiddy/outline-pandoc/internal/convert"
	"github.com/pdiddy/outline-pandoc/internal/export"
	"github.com/pdiddy/outline-pandoc/internal/render"
	"github.com/pdiddy/outline-pandoc/internal/rules"
)

var exportCmd = &cobra.Command{
	Use:   "export [pages...]",
	Short: "Render pages and convert them with pandoc",
	Long: `Export renders each page once per output format, applying the rules that
apply to that format, and converts the markup with pandoc in a container.
Files are written to --out as <page>.<ext>.

A rule file that cannot be fetched or parsed is reported and the export
continues without rules. A rule with an invalid regular expression stops
the export. Run "ingest" first so that pages, block references, and assets
are current.`,
	RunE: runExport,
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	all, _ := cmd.Flags().GetBool("all")
	if len(args) == 0 && !all {
		return fmt.Errorf("page name required: provide one or more pages, or --all")
	}

	cfg, err := exportConfig()
	if err != nil {
		return err
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	names := args
	if all {
		pages, err := store.Pages(ctx)
		if err != nil {
			return err
		}
		names = names[:0:0]
		for _, p := range pages {
			names = append(names, p.Name)
		}
	}

	rs, err := rules.NewLoader(cfg.Rules).LoadOrEmpty(ctx, cfg.Rules.Location, logger)
	if err != nil {
		return err
	}

	rt, err := container.Select(ctx, cfg.Converter.Backend)
	if err != nil {
		return err
	}
	conv, err := convert.NewPandoc(ctx, rt, cfg.Converter)
	if err != nil {
		return err
	}

	engine := render.New(store, render.WithLogger(logger))
	ex := export.New(store, engine, conv, cfg, logger)

	result, err := ex.ExportPages(ctx, names, rs, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	if result.HasFailures() {
		return fmt.Errorf("%d conversion(s) failed", result.Failed)
	}
	return nil
}

func init() {
	f := exportCmd.Flags()
	f.StringSlice("format", nil, "output formats, comma-separated (default docx,pptx,html,latex)")
	f.String("out", "export", "output directory")
	f.Bool("keep-markup", false, "also write the intermediate markup as <page>.<format>.md")
	f.Bool("all", false, "export every indexed page")
	f.String("backend", "auto", "container runtime: auto, docker, or podman")
	f.String("image", convert.DefaultImage, "pandoc container image")
	f.StringSlice("pandoc-arg", nil, "extra argument passed to pandoc (repeatable)")
	f.StringSlice("mount", nil, "extra host directory to mount read-only into the pandoc container (repeatable)")
	f.Int("parallelism", 2, "concurrent pandoc runs per page")
	addRulesFlags(exportCmd)

	rootCmd.AddCommand(exportCmd)
}

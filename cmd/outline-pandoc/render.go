// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/pdiddy/outline-pandoc/internal/export"
	"github.com/pdiddy/outline-pandoc/internal/render"
	"github.com/pdiddy/outline-pandoc/internal/rules"
	"github.com/pdiddy/outline-pandoc/pkg/types"
)

var renderCmd = &cobra.Command{
	Use:   "render <page>",
	Short: "Print the intermediate markup of a page for one format",
	Long: `Render prints the markdown that export would hand to pandoc for the given
format, after references, assets, and rules have been applied. No container
runtime is needed.`,
	Args: cobra.ExactArgs(1),
	RunE: runRender,
}

func runRender(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	f, _ := cmd.Flags().GetString("format")
	format := types.Format(f)
	if format == "" {
		return fmt.Errorf("--format must not be empty")
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	cfg := rulesConfig()
	rs, err := rules.NewLoader(cfg).LoadOrEmpty(ctx, cfg.Location, logger)
	if err != nil {
		return err
	}

	engine := render.New(store, render.WithLogger(logger))
	ex := export.New(store, engine, nil, types.ExportConfig{}, logger)
	markup, err := ex.RenderPage(ctx, args[0], rs, format)
	if err != nil {
		return err
	}
	_, err = io.WriteString(cmd.OutOrStdout(), markup)
	return err
}

func init() {
	renderCmd.Flags().String("format", string(types.FormatLaTeX), "output format whose rules apply")
	addRulesFlags(renderCmd)

	rootCmd.AddCommand(renderCmd)
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/pdiddy/outline-pandoc/internal/graph"
)

var pagesCmd = &cobra.Command{
	Use:   "pages [page]",
	Short: "List indexed pages or dump one page's block tree",
	Long: `Without arguments, pages lists every indexed page with its block count.
With a page name, it dumps that page's block tree as YAML or JSON, which is
the input the renderer sees.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPages,
}

func runPages(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	w := cmd.OutOrStdout()
	if len(args) == 1 {
		dump, _ := cmd.Flags().GetString("dump")
		page, err := store.Page(ctx, args[0])
		if err != nil {
			return err
		}
		return graph.WritePage(w, page, graph.DumpFormat(dump))
	}

	pages, err := store.Pages(ctx)
	if err != nil {
		return err
	}
	return formatPages(w, pages)
}

func formatPages(w io.Writer, pages []graph.PageSummary) error {
	if len(pages) == 0 {
		_, err := fmt.Fprintln(w, "No pages indexed. Run \"outline-pandoc ingest\" first.")
		return err
	}
	fmt.Fprintf(w, "%-40s  %6s  %s\n", "Page", "Blocks", "File")
	for _, p := range pages {
		name := p.Name
		if len(name) > 40 {
			name = name[:37] + "..."
		}
		fmt.Fprintf(w, "%-40s  %6d  %s\n", name, p.Blocks, p.Path)
	}
	_, err := fmt.Fprintf(w, "\n%d pages\n", len(pages))
	return err
}

func init() {
	pagesCmd.Flags().String("dump", string(graph.DumpYAML), "dump format for a single page: yaml or json")

	rootCmd.AddCommand(pagesCmd)
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/outline-pandoc/internal/graph"
	"github.com/pdiddy/outline-pandoc/pkg/types"
)

// Flag names double as viper keys, so outline-pandoc.yaml and
// OUTLINE_PANDOC_* variables use the same spelling (dashes become
// underscores in environment variables).

func graphConfig() types.GraphConfig {
	return types.GraphConfig{
		GraphDir: viper.GetString("graph-dir"),
		IndexDir: viper.GetString("index-dir"),
	}
}

func rulesConfig() types.RulesConfig {
	return types.RulesConfig{
		HTTPConfig: types.HTTPConfig{
			Timeout:    viper.GetDuration("http-timeout"),
			UserAgent:  viper.GetString("user-agent"),
			MaxRetries: viper.GetInt("max-retries"),
		},
		Location: viper.GetString("rules"),
	}
}

func converterConfig() types.ConverterConfig {
	return types.ConverterConfig{
		Backend:     types.ConverterBackend(viper.GetString("backend")),
		Image:       viper.GetString("image"),
		ExtraArgs:   viper.GetStringSlice("pandoc-arg"),
		Mounts:      viper.GetStringSlice("mount"),
		Parallelism: viper.GetInt("parallelism"),
	}
}

// exportConfig also mounts the graph's assets directory into the converter
// container, since rendered image links point at absolute host paths.
func exportConfig() (types.ExportConfig, error) {
	formats, err := types.ParseFormats(viper.GetStringSlice("format"))
	if err != nil {
		return types.ExportConfig{}, err
	}
	gc := graphConfig()
	cc := converterConfig()
	assets, err := graph.AssetsDir(gc)
	if err != nil {
		return types.ExportConfig{}, fmt.Errorf("resolving assets directory: %w", err)
	}
	if info, err := os.Stat(assets); err == nil && info.IsDir() {
		cc.Mounts = append(cc.Mounts, assets)
	}
	return types.ExportConfig{
		Rules:      rulesConfig(),
		Graph:      gc,
		Converter:  cc,
		OutputDir:  viper.GetString("out"),
		Formats:    formats,
		KeepMarkup: viper.GetBool("keep-markup"),
	}, nil
}

func openStore() (*graph.Store, error) {
	return graph.NewStore(graphConfig())
}

// addRulesFlags registers the rule file flags shared by export, render,
// and rules check.
func addRulesFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("rules", "", "rule file path or http(s) URL (JSON or YAML)")
	f.Duration("http-timeout", 0, "timeout for fetching a remote rule file (default 30s)")
	f.String("user-agent", "", "User-Agent for remote rule fetches")
	f.Int("max-retries", 0, "retries on HTTP 429/503 when fetching rules (default 3)")
}

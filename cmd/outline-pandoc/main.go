// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the outline-pandoc CLI. It indexes an
// outline graph, renders pages through a rule file, and converts them with
// pandoc.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/outline-pandoc/internal/logging"
)

// version is set at build time via ldflags.
var version = "dev"

// logger is built from --log-level and --log-format before any command runs.
var logger = logging.Discard()

// rootCmd is the base command for the outline-pandoc CLI.
var rootCmd = &cobra.Command{
	Use:   "outline-pandoc",
	Short: "Export outline pages to docx, pptx, html, and latex through pandoc",
	Long: `outline-pandoc turns pages of an outliner graph (indented markdown bullets
with ((block)) references and assets) into documents.

Pages are first indexed into a local SQLite store with "ingest". "export"
renders a page once per output format, applying the environment and content
rules of a rule file, and converts the result with pandoc running in docker
or podman. "render" prints the intermediate markup without converting it.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := viper.BindPFlags(cmd.Flags()); err != nil {
			return err
		}
		l, err := logging.New(viper.GetString("log-level"), viper.GetString("log-format"), os.Stderr)
		if err != nil {
			return err
		}
		logger = l
		slog.SetDefault(l)
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./outline-pandoc.yaml or ~/.config/outline-pandoc/outline-pandoc.yaml)")
	pf.String("graph-dir", ".", "outline graph directory (contains pages/, journals/, assets/)")
	pf.String("index-dir", "", "index database directory (default: <graph-dir>/.outline-pandoc)")
	pf.String("log-level", "info", "diagnostic log level: debug, info, warn, or error")
	pf.String("log-format", "text", "diagnostic log format: text or json")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("outline-pandoc")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "outline-pandoc"))
		}
	}

	viper.SetEnvPrefix("OUTLINE_PANDOC")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

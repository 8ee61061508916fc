// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/outline-pandoc/internal/rules"
	"github.com/pdiddy/outline-pandoc/pkg/types"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect rule files",
}

var rulesCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Load a rule file and list the rules that apply to each format",
	Long: `Check loads the rule file given by --rules strictly: unlike export, any
read, parse, or pattern error is reported and the command fails. On success
it lists, per format, the environment and content rules in the order they
are applied.`,
	Args: cobra.NoArgs,
	RunE: runRulesCheck,
}

func runRulesCheck(cmd *cobra.Command, args []string) error {
	cfg := rulesConfig()
	if cfg.Location == "" {
		return fmt.Errorf("--rules is required")
	}
	formats, err := types.ParseFormats(viper.GetStringSlice("format"))
	if err != nil {
		return err
	}

	rs, err := rules.NewLoader(cfg).Load(cmd.Context(), cfg.Location)
	var perr *rules.PatternError
	if errors.As(err, &perr) {
		return fmt.Errorf("invalid rule: %w", err)
	}
	if err != nil {
		return err
	}

	printRuleSet(cmd.OutOrStdout(), rs, formats)
	return nil
}

// printRuleSet writes one section per format listing the eligible rules.
func printRuleSet(w io.Writer, rs rules.RuleSet, formats []types.Format) {
	fmt.Fprintf(w, "%d environment rule(s), %d content rule(s)\n", len(rs.Environment), len(rs.Content))
	for _, f := range formats {
		active := rs.ForFormat(f)
		fmt.Fprintf(w, "\n%s: %s\n", f, active)
		for _, r := range active.Environment {
			fmt.Fprintf(w, "  environment  %-20s %-5s %s\n", r.Name, r.MatchType, r.Match)
		}
		for _, r := range active.Content {
			fmt.Fprintf(w, "  content      %-20s %-5s %s\n", r.Name, r.MatchType, r.Trigger)
		}
	}
}

func init() {
	rulesCheckCmd.Flags().StringSlice("format", nil, "formats to list (default docx,pptx,html,latex)")
	addRulesFlags(rulesCheckCmd)

	rulesCmd.AddCommand(rulesCheckCmd)
	rootCmd.AddCommand(rulesCmd)
}

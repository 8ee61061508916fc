// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package rules defines content and environment rewrite rules, loads them
// from JSON or YAML rule files, and applies them to block text.
//
// A rule file has two top-level groups, Environment and Content, each a
// mapping from rule name to rule body. Declaration order is preserved and
// significant: content rules nest in the order they match and the first
// matching environment rule wins.
package rules

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/pdiddy/outline-pandoc/pkg/types"
)

// MatchType selects literal or regular-expression matching.
type MatchType string

const (
	MatchExact MatchType = "exact"
	MatchRegex MatchType = "regex"
)

func normalizeMatchType(m MatchType) MatchType {
	if MatchType(strings.ToLower(strings.TrimSpace(string(m)))) == MatchRegex {
		return MatchRegex
	}
	return MatchExact
}

// latexFence is the pandoc raw attribute that passes its body through to
// LaTeX output untouched.
const latexFence = "```{=latex}"

// WrapLatex fences value as a raw LaTeX block. An empty value stays empty.
func WrapLatex(value string) string {
	if value == "" {
		return ""
	}
	return "\n" + latexFence + "\n" + value + "\n```\n"
}

// ContentSpec is the body of a content rule as written in a rule file.
type ContentSpec struct {
	Trigger     string         `json:"trigger" yaml:"trigger"`
	Replacement string         `json:"replacement" yaml:"replacement"`
	Front       string         `json:"front" yaml:"front"`
	Back        string         `json:"back" yaml:"back"`
	MatchType   MatchType      `json:"matchType" yaml:"matchType"`
	IsLatex     bool           `json:"islatex" yaml:"islatex"`
	Formats     []types.Format `json:"formats" yaml:"formats"`
}

// EnvironmentSpec is the body of an environment rule as written in a rule file.
type EnvironmentSpec struct {
	Match     string         `json:"match" yaml:"match"`
	Begin     string         `json:"begin" yaml:"begin"`
	End       string         `json:"end" yaml:"end"`
	MatchType MatchType      `json:"matchType" yaml:"matchType"`
	IsLatex   bool           `json:"islatex" yaml:"islatex"`
	Formats   []types.Format `json:"formats" yaml:"formats"`
}

// ContentRule rewrites text in place and may add wrapper fragments around
// the rewritten line. Build one with NewContentRule.
type ContentRule struct {
	Name        string
	Trigger     string
	Replacement string
	Front       string
	Back        string
	MatchType   MatchType
	IsLatex     bool
	Formats     []types.Format

	pattern *regexp.Regexp
}

// NewContentRule builds a content rule: it defaults the match type, compiles
// the trigger for regex rules, and fences Front/Back when IsLatex is set.
func NewContentRule(name string, spec ContentSpec) (ContentRule, error) {
	r := ContentRule{
		Name:        name,
		Trigger:     spec.Trigger,
		Replacement: spec.Replacement,
		Front:       spec.Front,
		Back:        spec.Back,
		MatchType:   normalizeMatchType(spec.MatchType),
		IsLatex:     spec.IsLatex,
		Formats:     slices.Clone(spec.Formats),
	}
	if r.MatchType == MatchRegex {
		re, err := regexp.Compile(spec.Trigger)
		if err != nil {
			return ContentRule{}, &PatternError{Group: groupContent, Rule: name, Pattern: spec.Trigger, Err: err}
		}
		r.pattern = re
	}
	if r.IsLatex {
		r.Front = WrapLatex(r.Front)
		r.Back = WrapLatex(r.Back)
	}
	return r, nil
}

// Pattern returns the compiled trigger, or nil for exact rules.
func (r ContentRule) Pattern() *regexp.Regexp { return r.pattern }

// AppliesTo reports whether the rule is eligible for format f.
func (r ContentRule) AppliesTo(f types.Format) bool { return appliesTo(r.Formats, f) }

// EnvironmentRule replaces a block whose whole text matches with a
// begin/end pair around the block's rendered children. Build one with
// NewEnvironmentRule.
type EnvironmentRule struct {
	Name      string
	Match     string
	Begin     string
	End       string
	MatchType MatchType
	IsLatex   bool
	Formats   []types.Format

	pattern *regexp.Regexp
	whole   *regexp.Regexp
}

// NewEnvironmentRule builds an environment rule. Regex rules are compiled
// twice: anchored at both ends, for whole-content selection and capture
// expansion of selected content, and as written, for expansion against
// content the rule only partly matches.
func NewEnvironmentRule(name string, spec EnvironmentSpec) (EnvironmentRule, error) {
	r := EnvironmentRule{
		Name:      name,
		Match:     spec.Match,
		Begin:     spec.Begin,
		End:       spec.End,
		MatchType: normalizeMatchType(spec.MatchType),
		IsLatex:   spec.IsLatex,
		Formats:   slices.Clone(spec.Formats),
	}
	if r.MatchType == MatchRegex {
		re, err := regexp.Compile(spec.Match)
		if err != nil {
			return EnvironmentRule{}, &PatternError{Group: groupEnvironment, Rule: name, Pattern: spec.Match, Err: err}
		}
		whole, err := regexp.Compile(`^(?:` + spec.Match + `)$`)
		if err != nil {
			return EnvironmentRule{}, &PatternError{Group: groupEnvironment, Rule: name, Pattern: spec.Match, Err: err}
		}
		r.pattern, r.whole = re, whole
	}
	if r.IsLatex {
		r.Begin = WrapLatex(r.Begin)
		r.End = WrapLatex(r.End)
	}
	return r, nil
}

// Pattern returns the compiled match pattern, or nil for exact rules.
func (r EnvironmentRule) Pattern() *regexp.Regexp { return r.pattern }

// AppliesTo reports whether the rule is eligible for format f.
func (r EnvironmentRule) AppliesTo(f types.Format) bool { return appliesTo(r.Formats, f) }

// Matches reports whether content selects this rule: the anchored pattern
// must span all of content for regex rules, and content must equal Match
// for exact rules.
func (r EnvironmentRule) Matches(content string) bool {
	if r.MatchType == MatchRegex && r.whole != nil {
		return r.whole.MatchString(content)
	}
	return content == r.Match
}

func appliesTo(formats []types.Format, f types.Format) bool {
	return len(formats) == 0 || slices.Contains(formats, f)
}

// RuleSet is an ordered collection of environment and content rules.
type RuleSet struct {
	Environment []EnvironmentRule
	Content     []ContentRule
}

// IsEmpty reports whether the set holds no rules at all.
func (rs RuleSet) IsEmpty() bool {
	return len(rs.Environment) == 0 && len(rs.Content) == 0
}

// ForFormat returns the rules eligible for f, keeping declaration order.
func (rs RuleSet) ForFormat(f types.Format) RuleSet {
	var out RuleSet
	for _, r := range rs.Environment {
		if r.AppliesTo(f) {
			out.Environment = append(out.Environment, r)
		}
	}
	for _, r := range rs.Content {
		if r.AppliesTo(f) {
			out.Content = append(out.Content, r)
		}
	}
	return out
}

// String summarizes the set for log lines.
func (rs RuleSet) String() string {
	return fmt.Sprintf("%d environment, %d content", len(rs.Environment), len(rs.Content))
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/outline-pandoc/pkg/types"
)

func mustContent(t *testing.T, name string, spec ContentSpec) ContentRule {
	t.Helper()
	r, err := NewContentRule(name, spec)
	require.NoError(t, err)
	return r
}

func mustEnv(t *testing.T, name string, spec EnvironmentSpec) EnvironmentRule {
	t.Helper()
	r, err := NewEnvironmentRule(name, spec)
	require.NoError(t, err)
	return r
}

func TestExpand(t *testing.T) {
	groups := []string{"whole", "one", "two", ""}
	tests := []struct {
		template string
		want     string
	}{
		{"", ""},
		{"no refs", "no refs"},
		{"$1", "one"},
		{"<$2|$1>", "<two|one>"},
		{"$0", ""},
		{"$3", ""},
		{"$9", ""},
		{"$12", ""},
		{"cost $", "cost $"},
		{"$1$1", "oneone"},
	}
	for _, tt := range tests {
		if got := Expand(tt.template, groups); got != tt.want {
			t.Errorf("Expand(%q) = %q, want %q", tt.template, got, tt.want)
		}
	}
}

func TestApplyContentRule_Exact(t *testing.T) {
	rule := mustContent(t, "bold", ContentSpec{Trigger: "**", Front: `\textbf{`, Back: "}"})

	tests := []struct {
		name string
		text string
		want Fragment
	}{
		{
			name: "replaces first occurrence only",
			text: "Some **note**",
			want: Fragment{Front: `\textbf{`, Middle: "Some note**", Back: "}"},
		},
		{
			name: "no trigger is a no-op",
			text: "plain",
			want: Fragment{Middle: "plain"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ApplyContentRule(rule, tt.text))
		})
	}
}

func TestApplyContentRule_Regex(t *testing.T) {
	rule := mustContent(t, "cite", ContentSpec{
		Trigger:     `\[@(\w+)\]`,
		MatchType:   MatchRegex,
		Replacement: `\cite{$1}`,
		Front:       "<$1>",
		Back:        "</$1>",
	})

	t.Run("every match is replaced and wraps accumulate", func(t *testing.T) {
		got := ApplyContentRule(rule, "see [@knuth] and [@lamport]")
		assert.Equal(t, `see \cite{knuth} and \cite{lamport}`, got.Middle)
		assert.Equal(t, "<lamport><knuth>", got.Front)
		assert.Equal(t, "</knuth></lamport>", got.Back)
	})

	t.Run("no match leaves text and wraps empty", func(t *testing.T) {
		got := ApplyContentRule(rule, "nothing cited")
		assert.Equal(t, Fragment{Middle: "nothing cited"}, got)
	})

	t.Run("non-participating group expands empty", func(t *testing.T) {
		opt := mustContent(t, "opt", ContentSpec{
			Trigger:     `a(b)?c`,
			MatchType:   MatchRegex,
			Replacement: "[$1]",
		})
		assert.Equal(t, "[]", ApplyContentRule(opt, "ac").Middle)
		assert.Equal(t, "[b]", ApplyContentRule(opt, "abc").Middle)
	})
}

func TestApplyContentRules(t *testing.T) {
	t.Run("empty rule list is identity", func(t *testing.T) {
		for _, text := range []string{"", "text", "  padded  ", `\weird{$1}`} {
			assert.Equal(t, text, ApplyContentRules(text, nil))
		}
	})

	t.Run("first matching rule is innermost", func(t *testing.T) {
		r1 := mustContent(t, "r1", ContentSpec{Trigger: "A", Replacement: "a", Front: "(1", Back: "1)"})
		r2 := mustContent(t, "r2", ContentSpec{Trigger: "B", Replacement: "b", Front: "(2", Back: "2)"})
		assert.Equal(t, "(2(1ab1)2)", ApplyContentRules("AB", []ContentRule{r1, r2}))
	})

	t.Run("later rules see earlier rewrites", func(t *testing.T) {
		r1 := mustContent(t, "r1", ContentSpec{Trigger: "x", Replacement: "y"})
		r2 := mustContent(t, "r2", ContentSpec{Trigger: "y", Replacement: "z", Front: "<", Back: ">"})
		assert.Equal(t, "<z>", ApplyContentRules("x", []ContentRule{r1, r2}))
	})

	t.Run("non-matching rules add nothing", func(t *testing.T) {
		r1 := mustContent(t, "r1", ContentSpec{Trigger: "missing", Front: "[", Back: "]"})
		r2 := mustContent(t, "r2", ContentSpec{Trigger: "text", Front: "<", Back: ">"})
		assert.Equal(t, "<some >", ApplyContentRules("some text", []ContentRule{r1, r2}))
	})

	t.Run("bold example", func(t *testing.T) {
		bold := mustContent(t, "bold", ContentSpec{Trigger: "**", Front: `\textbf{`, Back: "}"})
		assert.Equal(t, `\textbf{Some note**}`, ApplyContentRules("Some **note**", []ContentRule{bold}))
	})

	t.Run("latex fenced wrappers", func(t *testing.T) {
		bold := mustContent(t, "bold", ContentSpec{Trigger: "**", Front: `\textbf{`, Back: "}", IsLatex: true})
		want := "\n```{=latex}\n\\textbf{\n```\n" + "Some note**" + "\n```{=latex}\n}\n```\n"
		assert.Equal(t, want, ApplyContentRules("Some **note**", []ContentRule{bold}))
	})
}

func TestApplyEnvironmentRule(t *testing.T) {
	theorem := mustEnv(t, "theorem", EnvironmentSpec{
		Match:     `Theorem: (.*)`,
		MatchType: MatchRegex,
		Begin:     `\begin{theorem}[$1]`,
		End:       `\end{theorem} % $1`,
	})

	begin, end := ApplyEnvironmentRule(theorem, "Theorem: Pythagoras")
	assert.Equal(t, `\begin{theorem}[Pythagoras]`, begin)
	assert.Equal(t, `\end{theorem} % Pythagoras`, end)

	begin, end = ApplyEnvironmentRule(theorem, "Lemma")
	assert.Equal(t, `\begin{theorem}[$1]`, begin, "no match returns raw fragments")
	assert.Equal(t, `\end{theorem} % $1`, end)

	begin, _ = ApplyEnvironmentRule(theorem, "Lemma. Theorem: inline")
	assert.Equal(t, `\begin{theorem}[inline]`, begin, "partial match expands from the first match")

	exact := mustEnv(t, "proof", EnvironmentSpec{Match: "Proof", Begin: "B $1", End: "E"})
	begin, end = ApplyEnvironmentRule(exact, "Proof")
	assert.Equal(t, "B $1", begin, "exact rules never expand")
	assert.Equal(t, "E", end)
}

func TestApplyEnvironmentRule_ExpandsSelectingMatch(t *testing.T) {
	alt := mustEnv(t, "alt", EnvironmentSpec{
		Match:     `(a)|(ab)`,
		MatchType: MatchRegex,
		Begin:     `[$1|$2]`,
		End:       `end $2`,
	})

	rule, ok := SelectEnvironment("ab", []EnvironmentRule{alt})
	require.True(t, ok)
	begin, end := ApplyEnvironmentRule(rule, "ab")
	assert.Equal(t, "[|ab]", begin, "groups come from the branch that spans the content")
	assert.Equal(t, "end ab", end)

	begin, _ = ApplyEnvironmentRule(alt, "a")
	assert.Equal(t, "[a|]", begin)
}

func TestSelectEnvironment(t *testing.T) {
	partial := mustEnv(t, "partial", EnvironmentSpec{Match: "Note", MatchType: MatchRegex, Begin: "P"})
	first := mustEnv(t, "first", EnvironmentSpec{Match: "Note.*", MatchType: MatchRegex, Begin: "1"})
	second := mustEnv(t, "second", EnvironmentSpec{Match: "Note: x", Begin: "2"})
	alt := mustEnv(t, "alt", EnvironmentSpec{Match: "a|ab", MatchType: MatchRegex, Begin: "A"})

	tests := []struct {
		name    string
		content string
		rules   []EnvironmentRule
		want    string
		wantOK  bool
	}{
		{"regex must span whole content", "Note: x", []EnvironmentRule{partial}, "", false},
		{"first match wins", "Note: x", []EnvironmentRule{partial, first, second}, "first", true},
		{"exact requires equality", "Note: x ", []EnvironmentRule{second}, "", false},
		{"exact equality selects", "Note: x", []EnvironmentRule{second, first}, "second", true},
		{"alternation anchored as a whole", "ab", []EnvironmentRule{alt}, "alt", true},
		{"no rules", "Note", nil, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := SelectEnvironment(tt.content, tt.rules)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got.Name)
		})
	}
}

func TestRuleSet_ForFormat(t *testing.T) {
	rs := RuleSet{
		Environment: []EnvironmentRule{
			mustEnv(t, "any", EnvironmentSpec{Match: "a"}),
			mustEnv(t, "latex-only", EnvironmentSpec{Match: "b", Formats: []types.Format{types.FormatLaTeX}}),
		},
		Content: []ContentRule{
			mustContent(t, "web", ContentSpec{Trigger: "c", Formats: []types.Format{types.FormatHTML, types.FormatDOCX}}),
			mustContent(t, "all", ContentSpec{Trigger: "d"}),
		},
	}

	latex := rs.ForFormat(types.FormatLaTeX)
	env, content := ruleNames(latex)
	assert.Equal(t, []string{"any", "latex-only"}, env)
	assert.Equal(t, []string{"all"}, content)

	docx := rs.ForFormat(types.FormatDOCX)
	env, content = ruleNames(docx)
	assert.Equal(t, []string{"any"}, env)
	assert.Equal(t, []string{"web", "all"}, content)
}

func TestWrapLatex(t *testing.T) {
	assert.Equal(t, "", WrapLatex(""))
	assert.Equal(t, "\n```{=latex}\n\\item \n```\n", WrapLatex(`\item `))
}

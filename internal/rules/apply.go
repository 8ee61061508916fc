// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package rules

import (
	"regexp"
	"strconv"
	"strings"
)

// groupRef matches positional capture references in rule templates.
var groupRef = regexp.MustCompile(`\$(\d+)`)

// Expand substitutes $N in template with submatches[N]. submatches follows
// the regexp convention: index 0 is the whole match and is never
// substituted, so $0 expands to "". References to groups that do not exist
// also expand to "".
func Expand(template string, submatches []string) string {
	if template == "" || !strings.Contains(template, "$") {
		return template
	}
	return groupRef.ReplaceAllStringFunc(template, func(ref string) string {
		n, err := strconv.Atoi(ref[1:])
		if err != nil || n < 1 || n >= len(submatches) {
			return ""
		}
		return submatches[n]
	})
}

// submatchStrings converts a FindStringSubmatchIndex result into strings,
// mapping groups that did not participate to "".
func submatchStrings(s string, loc []int) []string {
	out := make([]string, len(loc)/2)
	for i := range out {
		if loc[2*i] >= 0 {
			out[i] = s[loc[2*i]:loc[2*i+1]]
		}
	}
	return out
}

// Fragment is the result of applying one content rule: the wrapper text to
// place before and after the line, and the rewritten line itself.
type Fragment struct {
	Front  string
	Middle string
	Back   string
}

// ApplyContentRule applies a single rule to text.
//
// Regex rules replace every match with the expanded replacement; each match
// also contributes its expanded front (prepended) and back (appended).
// Exact rules replace only the first occurrence of the trigger and
// contribute the static front and back once.
func ApplyContentRule(rule ContentRule, text string) Fragment {
	if rule.MatchType == MatchRegex && rule.pattern != nil {
		return applyRegexContent(rule, text)
	}
	if !strings.Contains(text, rule.Trigger) {
		return Fragment{Middle: text}
	}
	return Fragment{
		Front:  rule.Front,
		Middle: strings.Replace(text, rule.Trigger, rule.Replacement, 1),
		Back:   rule.Back,
	}
}

func applyRegexContent(rule ContentRule, text string) Fragment {
	matches := rule.pattern.FindAllStringSubmatchIndex(text, -1)
	if matches == nil {
		return Fragment{Middle: text}
	}

	var (
		out         strings.Builder
		front, back string
		last        int
	)
	for _, loc := range matches {
		groups := submatchStrings(text, loc)
		out.WriteString(text[last:loc[0]])
		out.WriteString(Expand(rule.Replacement, groups))
		last = loc[1]

		front = Expand(rule.Front, groups) + front
		back += Expand(rule.Back, groups)
	}
	out.WriteString(text[last:])

	return Fragment{Front: front, Middle: out.String(), Back: back}
}

// ApplyContentRules folds rules over text in order. Every rule sees the
// text as rewritten by the rules before it; each matching rule's wrapper
// goes outside the wrappers already collected, so the first rule to match
// ends up innermost.
func ApplyContentRules(text string, rules []ContentRule) string {
	var outerFront, outerBack string
	for _, r := range rules {
		f := ApplyContentRule(r, text)
		text = f.Middle
		outerFront = f.Front + outerFront
		outerBack += f.Back
	}
	return outerFront + text + outerBack
}

// ApplyEnvironmentRule resolves the begin and end fragments of rule for
// content. Regex rules expand $N references from the match that spans all
// of content, which is the match that selected the rule; failing that,
// from the first match in content. Without a match, or for exact rules,
// the raw fragments are returned.
func ApplyEnvironmentRule(rule EnvironmentRule, content string) (begin, end string) {
	if rule.MatchType == MatchRegex && rule.pattern != nil {
		var loc []int
		if rule.whole != nil {
			loc = rule.whole.FindStringSubmatchIndex(content)
		}
		if loc == nil {
			loc = rule.pattern.FindStringSubmatchIndex(content)
		}
		if loc == nil {
			return rule.Begin, rule.End
		}
		groups := submatchStrings(content, loc)
		return Expand(rule.Begin, groups), Expand(rule.End, groups)
	}
	return rule.Begin, rule.End
}

// SelectEnvironment returns the first rule that matches the whole of
// content. Later rules are not evaluated once one matches.
func SelectEnvironment(content string, rules []EnvironmentRule) (EnvironmentRule, bool) {
	for _, r := range rules {
		if r.Matches(content) {
			return r, true
		}
	}
	return EnvironmentRule{}, false
}

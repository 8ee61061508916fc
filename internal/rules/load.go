// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package rules

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/outline-pandoc/internal/httputil"
	"github.com/pdiddy/outline-pandoc/pkg/types"
)

const (
	groupEnvironment = "Environment"
	groupContent     = "Content"

	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "outline-pandoc/0.1"
)

var (
	// ErrUnavailable reports that the rule file could not be read or fetched.
	ErrUnavailable = errors.New("rule file unavailable")

	// ErrMalformed reports that the rule file could not be parsed.
	ErrMalformed = errors.New("malformed rule file")
)

// PatternError reports a regex rule whose pattern does not compile. It is
// a rule-authoring error and is never downgraded to an empty rule set.
type PatternError struct {
	Group   string
	Rule    string
	Pattern string
	Err     error
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("%s rule %q: invalid pattern %q: %v", strings.ToLower(e.Group), e.Rule, e.Pattern, e.Err)
}

func (e *PatternError) Unwrap() error { return e.Err }

// Loader reads rule files from the local filesystem or over HTTP.
type Loader struct {
	client     *http.Client
	userAgent  string
	maxRetries int
}

// NewLoader creates a Loader using the HTTP settings in cfg.
func NewLoader(cfg types.RulesConfig) *Loader {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	return &Loader{
		client:     &http.Client{Timeout: timeout},
		userAgent:  ua,
		maxRetries: cfg.MaxRetries,
	}
}

// WithClient returns a copy of l that issues requests through client.
func (l *Loader) WithClient(client *http.Client) *Loader {
	cp := *l
	cp.client = client
	return &cp
}

// Load reads and compiles the rule file at location, which is a path, a
// file:// URL, or an http(s) URL. An empty location yields an empty set.
//
// On failure the returned RuleSet is always empty. The error wraps
// ErrUnavailable or ErrMalformed, or is a *PatternError.
func (l *Loader) Load(ctx context.Context, location string) (RuleSet, error) {
	if location == "" {
		return RuleSet{}, nil
	}
	data, err := l.read(ctx, location)
	if err != nil {
		return RuleSet{}, err
	}
	rs, err := Parse(data)
	if err != nil {
		return RuleSet{}, fmt.Errorf("loading rules from %s: %w", location, err)
	}
	return rs, nil
}

// LoadOrEmpty is the fail-soft entry point used by exports: fetch and
// parse failures are logged and produce an empty set with a nil error, so
// the export proceeds without rewriting. Pattern errors are returned.
func (l *Loader) LoadOrEmpty(ctx context.Context, location string, logger *slog.Logger) (RuleSet, error) {
	rs, err := l.Load(ctx, location)
	if err == nil {
		logger.Debug("rules loaded", "location", location, "environment", len(rs.Environment), "content", len(rs.Content))
		return rs, nil
	}
	var perr *PatternError
	if errors.As(err, &perr) {
		return RuleSet{}, err
	}
	logger.Error("failed to load rules; continuing without rules", "location", location, "error", err)
	return RuleSet{}, nil
}

func (l *Loader) read(ctx context.Context, location string) ([]byte, error) {
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		return l.fetch(ctx, location)
	}
	path := strings.TrimPrefix(location, "file://")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return data, nil
}

func (l *Loader) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("User-Agent", l.userAgent)
	req.Header.Set("Accept", "application/json, application/yaml;q=0.9, */*;q=0.5")

	resp, err := httputil.DoWithRetry(ctx, l.client, req, l.maxRetries)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching %s: %v", ErrUnavailable, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: fetching %s: HTTP %d", ErrUnavailable, url, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrUnavailable, url, err)
	}
	return data, nil
}

// Parse compiles a rule file. JSON input is read token by token and YAML
// input through the node tree, so rules keep the order in which their names
// appear in the file. A name repeated within a group keeps its first
// position and its last body.
func Parse(data []byte) (RuleSet, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return RuleSet{}, fmt.Errorf("%w: empty document", ErrMalformed)
	}
	var (
		b   builder
		err error
	)
	if trimmed[0] == '{' {
		err = parseJSON(trimmed, &b)
	} else {
		err = parseYAML(trimmed, &b)
	}
	if err != nil {
		return RuleSet{}, err
	}
	return b.ruleSet(), nil
}

// builder collects compiled rules in declaration order.
type builder struct {
	env        []EnvironmentRule
	envIndex   map[string]int
	content    []ContentRule
	contentIdx map[string]int
}

func (b *builder) addEnvironment(name string, spec EnvironmentSpec) error {
	r, err := NewEnvironmentRule(name, spec)
	if err != nil {
		return err
	}
	if b.envIndex == nil {
		b.envIndex = make(map[string]int)
	}
	if i, ok := b.envIndex[name]; ok {
		b.env[i] = r
		return nil
	}
	b.envIndex[name] = len(b.env)
	b.env = append(b.env, r)
	return nil
}

func (b *builder) addContent(name string, spec ContentSpec) error {
	r, err := NewContentRule(name, spec)
	if err != nil {
		return err
	}
	if b.contentIdx == nil {
		b.contentIdx = make(map[string]int)
	}
	if i, ok := b.contentIdx[name]; ok {
		b.content[i] = r
		return nil
	}
	b.contentIdx[name] = len(b.content)
	b.content = append(b.content, r)
	return nil
}

func (b *builder) ruleSet() RuleSet {
	return RuleSet{Environment: b.env, Content: b.content}
}

func parseJSON(data []byte, b *builder) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := expectDelim(dec, '{'); err != nil {
		return err
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		group, _ := tok.(string)

		switch group {
		case groupEnvironment:
			err = eachJSONEntry(dec, func(name string) error {
				var spec EnvironmentSpec
				if err := dec.Decode(&spec); err != nil {
					return fmt.Errorf("%w: environment rule %q: %v", ErrMalformed, name, err)
				}
				return b.addEnvironment(name, spec)
			})
		case groupContent:
			err = eachJSONEntry(dec, func(name string) error {
				var spec ContentSpec
				if err := dec.Decode(&spec); err != nil {
					return fmt.Errorf("%w: content rule %q: %v", ErrMalformed, name, err)
				}
				return b.addContent(name, spec)
			})
		default:
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return fmt.Errorf("%w: %v", ErrMalformed, err)
			}
		}
		if err != nil {
			return err
		}
	}
	return expectDelim(dec, '}')
}

// eachJSONEntry walks one group object, calling fn with the decoder
// positioned at each rule body. A null group is treated as empty.
func eachJSONEntry(dec *json.Decoder, fn func(name string) error) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if tok == nil {
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("%w: rule group must be an object", ErrMalformed)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		name, _ := tok.(string)
		if err := fn(name); err != nil {
			return err
		}
	}
	return expectDelim(dec, '}')
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("%w: expected %q, found %v", ErrMalformed, want, tok)
	}
	return nil
}

func parseYAML(data []byte, b *builder) error {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	root := resolveAlias(&doc)
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = resolveAlias(root.Content[0])
	}
	if root.Kind != yaml.MappingNode {
		return fmt.Errorf("%w: top level must be a mapping", ErrMalformed)
	}

	for i := 0; i+1 < len(root.Content); i += 2 {
		group := root.Content[i].Value
		body := resolveAlias(root.Content[i+1])

		var err error
		switch group {
		case groupEnvironment:
			err = eachYAMLEntry(body, func(name string, n *yaml.Node) error {
				var spec EnvironmentSpec
				if err := n.Decode(&spec); err != nil {
					return fmt.Errorf("%w: environment rule %q: %v", ErrMalformed, name, err)
				}
				return b.addEnvironment(name, spec)
			})
		case groupContent:
			err = eachYAMLEntry(body, func(name string, n *yaml.Node) error {
				var spec ContentSpec
				if err := n.Decode(&spec); err != nil {
					return fmt.Errorf("%w: content rule %q: %v", ErrMalformed, name, err)
				}
				return b.addContent(name, spec)
			})
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func eachYAMLEntry(group *yaml.Node, fn func(name string, n *yaml.Node) error) error {
	if group.Kind == yaml.ScalarNode && group.Tag == "!!null" {
		return nil
	}
	if group.Kind != yaml.MappingNode {
		return fmt.Errorf("%w: rule group must be a mapping", ErrMalformed)
	}
	for i := 0; i+1 < len(group.Content); i += 2 {
		if err := fn(group.Content[i].Value, resolveAlias(group.Content[i+1])); err != nil {
			return err
		}
	}
	return nil
}

func resolveAlias(n *yaml.Node) *yaml.Node {
	for n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	return n
}

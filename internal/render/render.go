// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package render turns an outline block tree into pandoc-flavoured markdown
// for one output format by applying a rule set.
//
// Rendering is depth-first and strictly sequential: a block's text is
// written before its children, and a sibling is written only after the
// previous sibling's whole subtree. Rules are filtered by format once per
// render and the asset listing is fetched once per render.
package render

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/pdiddy/outline-pandoc/internal/rules"
	"github.com/pdiddy/outline-pandoc/pkg/types"
)

// orderListMarker is the property that marks a sibling group as a numbered list.
const orderListMarker = "logseq.order-list-type:: number"

// propertyMarker starts the property lines that trail a referenced block's text.
const propertyMarker = "id:: "

var (
	// blockRef matches a ((uuid)) block reference.
	blockRef = regexp.MustCompile(`\(\(\s*([0-9a-f]{8}-[0-9a-f]{4}-[1-5][0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12})\s*\)\)`)

	// imageRef matches markdown image syntax ![alt](url).
	imageRef = regexp.MustCompile(`!\[(.*?)\]\((.*?)\)`)
)

// BlockStore resolves block references and lists stored assets.
type BlockStore interface {
	// Lookup returns the text of the block with the given id, or "" when
	// there is no such block.
	Lookup(ctx context.Context, id string) (string, error)

	// Assets lists the stored assets.
	Assets(ctx context.Context) ([]types.Asset, error)
}

// ListMarkup holds the fragments emitted around numbered sibling groups.
type ListMarkup struct {
	Begin string
	Item  string
	End   string
}

// LatexList returns list markup made of raw LaTeX enumerate fences. The
// fences pass through pandoc untouched for LaTeX targets.
func LatexList() ListMarkup {
	return ListMarkup{
		Begin: rules.WrapLatex(`\begin{enumerate}`),
		Item:  rules.WrapLatex(`\item `),
		End:   rules.WrapLatex(`\end{enumerate}`),
	}
}

// Engine renders block trees. It is safe to reuse across renders; each
// Render call keeps its state on the stack.
type Engine struct {
	store  BlockStore
	list   ListMarkup
	logger *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithListMarkup replaces the default LaTeX enumerate markup.
func WithListMarkup(m ListMarkup) Option {
	return func(e *Engine) { e.list = m }
}

// WithLogger sets the diagnostic logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// New creates an Engine backed by store. A nil store resolves no
// references and lists no assets.
func New(store BlockStore, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		list:   LatexList(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// pass carries the per-render inputs through the recursion.
type pass struct {
	active rules.RuleSet
	assets []types.Asset
	out    *strings.Builder
}

// Render renders blocks for format using the rules in rs that apply to
// format. It fails only when the asset listing cannot be fetched or ctx
// is cancelled; unresolved references drop the affected block silently.
func (e *Engine) Render(ctx context.Context, blocks []types.Block, rs rules.RuleSet, format types.Format) (string, error) {
	var assets []types.Asset
	if e.store != nil {
		var err error
		assets, err = e.store.Assets(ctx)
		if err != nil {
			return "", fmt.Errorf("listing assets: %w", err)
		}
	}

	var out strings.Builder
	p := pass{
		active: rs.ForFormat(format),
		assets: assets,
		out:    &out,
	}
	e.logger.Debug("render started", "format", format, "rules", p.active.String(), "assets", len(assets))

	if err := e.visit(ctx, p, blocks); err != nil {
		return "", err
	}
	return out.String(), nil
}

func (e *Engine) visit(ctx context.Context, p pass, blocks []types.Block) error {
	texts, ordered := stripOrderMarkers(blocks)
	if ordered {
		p.out.WriteString(e.list.Begin)
	}

	for i, b := range blocks {
		if err := ctx.Err(); err != nil {
			return err
		}
		if texts[i] == "" {
			continue
		}

		content, ok := e.resolveReference(ctx, texts[i])
		if !ok {
			continue
		}
		content = resolveImages(content, p.assets)
		line := rules.ApplyContentRules(content, p.active.Content)

		if env, ok := rules.SelectEnvironment(line, p.active.Environment); ok {
			begin, end := rules.ApplyEnvironmentRule(env, line)
			p.out.WriteString(begin + "\n")
			if err := e.visit(ctx, p, b.Children); err != nil {
				return err
			}
			p.out.WriteString(end + "\n\n")
			continue
		}

		if ordered {
			p.out.WriteString(e.list.Item)
		}
		p.out.WriteString(strings.TrimSpace(line) + "\n\n")
		if err := e.visit(ctx, p, b.Children); err != nil {
			return err
		}
	}

	if ordered {
		p.out.WriteString(e.list.End)
	}
	return nil
}

// stripOrderMarkers returns the text of each sibling with the numbered-list
// marker removed, and whether any sibling carried the marker. The blocks
// themselves are not modified.
func stripOrderMarkers(blocks []types.Block) ([]string, bool) {
	texts := make([]string, len(blocks))
	ordered := false
	for i, b := range blocks {
		texts[i] = b.Content
		if b.Content == "" {
			continue
		}
		trimmed := strings.TrimSpace(b.Content)
		cleaned := strings.TrimSpace(strings.Replace(trimmed, orderListMarker, "", 1))
		if cleaned != trimmed {
			texts[i] = cleaned
			ordered = true
		}
	}
	return texts, ordered
}

// resolveReference strips one pair of [[ ]] link brackets and splices in
// the text of a ((uuid)) reference. It reports false when the reference
// cannot be resolved, in which case the block is dropped.
func (e *Engine) resolveReference(ctx context.Context, text string) (string, bool) {
	content := strings.TrimSpace(text)
	content = strings.Replace(content, "[[", "", 1)
	content = strings.Replace(content, "]]", "", 1)

	m := blockRef.FindStringSubmatch(content)
	if m == nil {
		return content, true
	}
	if e.store == nil {
		e.logger.Debug("dropping block with unresolved reference", "ref", m[1])
		return "", false
	}
	ref, err := e.store.Lookup(ctx, m[1])
	if err != nil || ref == "" {
		e.logger.Debug("dropping block with unresolved reference", "ref", m[1], "error", err)
		return "", false
	}

	content = strings.Replace(content, m[0], ref, 1)
	if i := strings.Index(content, propertyMarker); i >= 0 {
		content = content[:i]
	}
	return content, true
}

// resolveImages rewrites each image URL to the path of the first stored
// asset whose path ends with the URL's file name.
func resolveImages(content string, assets []types.Asset) string {
	if !strings.Contains(content, "![") {
		return content
	}
	return imageRef.ReplaceAllStringFunc(content, func(match string) string {
		m := imageRef.FindStringSubmatch(match)
		alt, url := m[1], m[2]
		if asset, ok := findAsset(url, assets); ok {
			url = asset.Path
		}
		url = strings.ReplaceAll(url, `\`, "/")
		return "![" + alt + "](" + url + ")"
	})
}

func findAsset(url string, assets []types.Asset) (types.Asset, bool) {
	name := url[strings.LastIndex(url, "/")+1:]
	if name == "" {
		return types.Asset{}, false
	}
	for _, a := range assets {
		if strings.HasSuffix(a.Path, name) {
			return a, true
		}
	}
	return types.Asset{}, false
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package outline

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/outline-pandoc/pkg/types"
)

const samplePage = "title:: Lecture Notes\ntags:: physics\n\n" +
	"- Introduction\n" +
	"  spans two lines\n" +
	"\t- Detail A\n" +
	"\t  id:: 6f1c2a3b-4d5e-4f60-8a7b-9c0d1e2f3a4b\n" +
	"\t\t- Deeper\n" +
	"\t- Detail B\n" +
	"- Second root\n" +
	"-\n" +
	"- Last\n"

func parseSample(t *testing.T) types.Page {
	t.Helper()
	page, err := Parse("lecture-notes", strings.NewReader(samplePage))
	require.NoError(t, err)
	return page
}

func contents(blocks []types.Block) []string {
	out := make([]string, len(blocks))
	for i, b := range blocks {
		out[i] = b.Content
	}
	return out
}

func TestParse_Structure(t *testing.T) {
	page := parseSample(t)

	assert.Equal(t, "Lecture Notes", page.Name, "title property overrides the file name")
	assert.Equal(t, map[string]string{"title": "Lecture Notes", "tags": "physics"}, page.Properties)

	require.Len(t, page.Blocks, 4)
	assert.Equal(t, []string{"Introduction\nspans two lines", "Second root", "", "Last"}, contents(page.Blocks))

	intro := page.Blocks[0]
	require.Len(t, intro.Children, 2)
	assert.Equal(t, []string{"Detail A\nid:: 6f1c2a3b-4d5e-4f60-8a7b-9c0d1e2f3a4b", "Detail B"}, contents(intro.Children))
	assert.Equal(t, []string{"Deeper"}, contents(intro.Children[0].Children))

	assert.Equal(t, 7, types.CountBlocks(page.Blocks))
}

func TestParse_BlockIDs(t *testing.T) {
	page := parseSample(t)
	detailA := page.Blocks[0].Children[0]
	assert.Equal(t, "6f1c2a3b-4d5e-4f60-8a7b-9c0d1e2f3a4b", detailA.ID, "id:: property is used")

	again := parseSample(t)
	assert.Equal(t, page.Blocks[1].ID, again.Blocks[1].ID, "generated ids are stable across parses")
	assert.NotEqual(t, page.Blocks[1].ID, page.Blocks[3].ID)

	seen := make(map[string]bool)
	for _, b := range page.Blocks {
		b.Walk(func(b types.Block) bool {
			assert.False(t, seen[b.ID], "duplicate id %s", b.ID)
			seen[b.ID] = true
			return true
		})
	}
}

func TestParse_SpaceIndentation(t *testing.T) {
	src := "- root\n  - child\n    - grandchild\n      more text\n  - sibling\n"
	page, err := Parse("p", strings.NewReader(src))
	require.NoError(t, err)

	require.Len(t, page.Blocks, 1)
	root := page.Blocks[0]
	assert.Equal(t, []string{"child", "sibling"}, contents(root.Children))
	assert.Equal(t, []string{"grandchild\nmore text"}, contents(root.Children[0].Children))
}

func TestParse_PreambleText(t *testing.T) {
	page, err := Parse("p", strings.NewReader("alias:: q\nFree text before bullets\n- bullet\n"))
	require.NoError(t, err)
	assert.Equal(t, "p", page.Name)
	assert.Equal(t, []string{"Free text before bullets", "bullet"}, contents(page.Blocks))
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "projects___2026%20plan.md")
	require.NoError(t, os.WriteFile(path, []byte("- one\n- two\n"), 0o644))

	page, err := ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, "projects/2026 plan", page.Name)
	assert.Equal(t, path, page.Path)
	assert.Len(t, page.Blocks, 2)

	_, err = ParseFile(filepath.Join(dir, "missing.md"))
	assert.Error(t, err)
}

func TestProperty(t *testing.T) {
	content := "Text\ncollapsed:: true\nID:: 6f1c2a3b-4d5e-4f60-8a7b-9c0d1e2f3a4b"

	v, ok := Property(content, "collapsed")
	assert.True(t, ok)
	assert.Equal(t, "true", v)

	_, ok = Property(content, "missing")
	assert.False(t, ok)

	assert.Equal(t, "6f1c2a3b-4d5e-4f60-8a7b-9c0d1e2f3a4b", BlockID(content))
	assert.Equal(t, "", BlockID("id:: not-a-uuid"))
}

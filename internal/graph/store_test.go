// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/outline-pandoc/pkg/types"
)

const refID = "6f1c2a3b-4d5e-4f60-8a7b-9c0d1e2f3a4b"

// --- test helpers ---

func testSetup(t *testing.T) (*Store, string) {
	t.Helper()
	graphDir := t.TempDir()
	for _, dir := range []string{pagesDir, journalsDir, filepath.Join(assetsDir, "sub")} {
		if err := os.MkdirAll(filepath.Join(graphDir, dir), 0o755); err != nil {
			t.Fatal(err)
		}
	}

	store, err := NewStore(types.GraphConfig{GraphDir: graphDir})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store, graphDir
}

func writeFile(t *testing.T, graphDir, rel, content string) string {
	t.Helper()
	path := filepath.Join(graphDir, rel)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func ingest(t *testing.T, store *Store) (IngestSummary, string) {
	t.Helper()
	var buf strings.Builder
	summary, err := store.Ingest(context.Background(), &buf)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	return summary, buf.String()
}

const notesPage = "- Intro\n" +
	"\t- Referenced fact\n" +
	"\t  id:: " + refID + "\n" +
	"\t- Second child\n" +
	"- Closing\n"

// --- schema tests ---

func TestNewStoreCreatesSchema(t *testing.T) {
	store, _ := testSetup(t)

	for _, table := range []string{"pages", "blocks", "assets", "indexing_status"} {
		var count int
		err := store.db.QueryRow(
			`SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table,
		).Scan(&count)
		if err != nil {
			t.Fatalf("checking table %s: %v", table, err)
		}
		if count == 0 {
			t.Errorf("table %s does not exist", table)
		}
	}
}

func TestNewStoreIndexDir(t *testing.T) {
	graphDir := t.TempDir()
	indexDir := filepath.Join(t.TempDir(), "idx")

	store, err := NewStore(types.GraphConfig{GraphDir: graphDir, IndexDir: indexDir})
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	if _, err := os.Stat(filepath.Join(indexDir, dbFile)); err != nil {
		t.Errorf("database not created in index dir: %v", err)
	}
	if _, err := NewStore(types.GraphConfig{}); err == nil {
		t.Error("expected error for empty graph dir")
	}
}

// --- ingest tests ---

func TestIngest(t *testing.T) {
	store, graphDir := testSetup(t)
	writeFile(t, graphDir, filepath.Join(pagesDir, "notes.md"), notesPage)
	writeFile(t, graphDir, filepath.Join(journalsDir, "2026_10_18.md"), "- journal entry\n")
	writeFile(t, graphDir, filepath.Join(assetsDir, "b.png"), "png")
	writeFile(t, graphDir, filepath.Join(assetsDir, "sub", "a.png"), "png")
	writeFile(t, graphDir, filepath.Join(assetsDir, ".DS_Store"), "junk")

	summary, log := ingest(t, store)
	if summary.Indexed != 2 {
		t.Errorf("Indexed = %d, want 2", summary.Indexed)
	}
	if summary.Assets != 2 {
		t.Errorf("Assets = %d, want 2", summary.Assets)
	}
	if !strings.Contains(log, "indexed  notes (4 blocks)") {
		t.Errorf("log missing page line:\n%s", log)
	}

	// Second run: nothing changed.
	summary, _ = ingest(t, store)
	if summary.Skipped != 2 || summary.Indexed != 0 || summary.Updated != 0 {
		t.Errorf("second run = %+v, want 2 skipped", summary)
	}

	// Changing a file updates it.
	writeFile(t, graphDir, filepath.Join(pagesDir, "notes.md"), notesPage+"- Appendix\n")
	summary, _ = ingest(t, store)
	if summary.Updated != 1 || summary.Skipped != 1 {
		t.Errorf("third run = %+v, want 1 updated, 1 skipped", summary)
	}

	page, err := store.Page(context.Background(), "notes")
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Blocks) != 3 {
		t.Errorf("root blocks after update = %d, want 3", len(page.Blocks))
	}
}

func TestIngestRemovesDeletedPages(t *testing.T) {
	store, graphDir := testSetup(t)
	path := writeFile(t, graphDir, filepath.Join(pagesDir, "gone.md"), "- soon removed\n  id:: "+refID+"\n")
	ingest(t, store)

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	summary, log := ingest(t, store)
	if summary.Removed != 1 {
		t.Errorf("Removed = %d, want 1", summary.Removed)
	}
	if !strings.Contains(log, "removed") {
		t.Errorf("log should mention removal:\n%s", log)
	}
	if _, err := store.Page(context.Background(), "gone"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Page after removal: err = %v, want ErrNotFound", err)
	}
	if text, _ := store.Lookup(context.Background(), refID); text != "" {
		t.Errorf("block of removed page still resolvable: %q", text)
	}
}

func TestIngestTitleCollision(t *testing.T) {
	store, graphDir := testSetup(t)
	first := writeFile(t, graphDir, filepath.Join(pagesDir, "a.md"), "title:: Shared\n- from a\n")
	writeFile(t, graphDir, filepath.Join(pagesDir, "b.md"), "title:: Shared\n- from b\n")

	summary, log := ingest(t, store)
	if summary.Indexed != 1 || summary.Failed != 1 {
		t.Fatalf("summary = %+v, want 1 indexed, 1 failed", summary)
	}
	if !strings.Contains(log, `page name "Shared" already used by pages/a.md`) {
		t.Errorf("log should name the owning file:\n%s", log)
	}

	// The first file keeps its page and is still skipped when unchanged.
	summary, _ = ingest(t, store)
	if summary.Skipped != 1 || summary.Failed != 1 {
		t.Errorf("second run = %+v, want 1 skipped, 1 failed", summary)
	}
	page, err := store.Page(context.Background(), "Shared")
	if err != nil {
		t.Fatal(err)
	}
	if page.Path != first || page.Blocks[0].Content != "from a" {
		t.Errorf("page = %s %q, want a.md content", page.Path, page.Blocks[0].Content)
	}
}

func TestIngestTitleTakeoverAfterRename(t *testing.T) {
	store, graphDir := testSetup(t)
	old := writeFile(t, graphDir, filepath.Join(pagesDir, "a.md"), "title:: Shared\n- body\n")
	ingest(t, store)

	if err := os.Rename(old, filepath.Join(graphDir, pagesDir, "b.md")); err != nil {
		t.Fatal(err)
	}
	summary, _ := ingest(t, store)
	if summary.Indexed != 1 || summary.Failed != 0 {
		t.Errorf("summary = %+v, want 1 indexed, 0 failed", summary)
	}

	var rows int
	if err := store.db.QueryRow(`SELECT count(*) FROM indexing_status WHERE path = ?`, old).Scan(&rows); err != nil {
		t.Fatal(err)
	}
	if rows != 0 {
		t.Errorf("status row for %s should be released", old)
	}
	page, err := store.Page(context.Background(), "Shared")
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(page.Path) != "b.md" {
		t.Errorf("page path = %s, want b.md", page.Path)
	}
}

func TestIngestMissingDirectories(t *testing.T) {
	graphDir := t.TempDir()
	store, err := NewStore(types.GraphConfig{GraphDir: graphDir})
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	summary, _ := ingest(t, store)
	if summary.Total() != 0 || summary.Assets != 0 {
		t.Errorf("empty graph summary = %+v", summary)
	}
}

func TestIngestCancelled(t *testing.T) {
	store, graphDir := testSetup(t)
	writeFile(t, graphDir, filepath.Join(pagesDir, "a.md"), "- a\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := store.Ingest(ctx, &bytes.Buffer{}); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

// --- read tests ---

func TestLookup(t *testing.T) {
	store, graphDir := testSetup(t)
	writeFile(t, graphDir, filepath.Join(pagesDir, "notes.md"), notesPage)
	ingest(t, store)

	tests := []struct {
		name string
		id   string
		want string
	}{
		{"known id", refID, "Referenced fact\nid:: " + refID},
		{"unknown id", "00000000-0000-4000-8000-000000000000", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.Lookup(context.Background(), tt.id)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("Lookup(%s) = %q, want %q", tt.id, got, tt.want)
			}
		})
	}
}

func TestAssetsOrderAndPaths(t *testing.T) {
	store, graphDir := testSetup(t)
	writeFile(t, graphDir, filepath.Join(assetsDir, "b.png"), "12345")
	writeFile(t, graphDir, filepath.Join(assetsDir, "sub", "a.png"), "1")
	ingest(t, store)

	assets, err := store.Assets(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(assets) != 2 {
		t.Fatalf("got %d assets, want 2", len(assets))
	}
	if !strings.HasSuffix(assets[0].Path, "/assets/b.png") || assets[0].Size != 5 {
		t.Errorf("assets[0] = %+v", assets[0])
	}
	if !strings.HasSuffix(assets[1].Path, "/assets/sub/a.png") {
		t.Errorf("assets[1] = %+v", assets[1])
	}
	if !filepath.IsAbs(filepath.FromSlash(assets[0].Path)) {
		t.Errorf("asset path should be absolute: %s", assets[0].Path)
	}

	dir, err := AssetsDir(types.GraphConfig{GraphDir: graphDir})
	if err != nil {
		t.Fatal(err)
	}
	for _, a := range assets {
		if !strings.HasPrefix(a.Path, filepath.ToSlash(dir)+"/") {
			t.Errorf("asset %s is outside AssetsDir %s", a.Path, dir)
		}
	}
}

func TestPageTree(t *testing.T) {
	store, graphDir := testSetup(t)
	writeFile(t, graphDir, filepath.Join(pagesDir, "notes.md"), "title:: Notes\n"+notesPage)
	ingest(t, store)

	page, err := store.Page(context.Background(), "NOTES")
	if err != nil {
		t.Fatal(err)
	}
	if page.Name != "Notes" {
		t.Errorf("Name = %q, want Notes", page.Name)
	}
	if page.Properties["title"] != "Notes" {
		t.Errorf("Properties = %v", page.Properties)
	}
	if len(page.Blocks) != 2 {
		t.Fatalf("roots = %d, want 2", len(page.Blocks))
	}
	intro := page.Blocks[0]
	if intro.Content != "Intro" || len(intro.Children) != 2 {
		t.Fatalf("intro = %+v", intro)
	}
	if intro.Children[0].ID != refID {
		t.Errorf("child id = %s, want %s", intro.Children[0].ID, refID)
	}
	if intro.Children[1].Content != "Second child" {
		t.Errorf("second child = %q", intro.Children[1].Content)
	}
	if page.Blocks[1].Content != "Closing" {
		t.Errorf("closing = %q", page.Blocks[1].Content)
	}

	if _, err := store.Page(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown page err = %v, want ErrNotFound", err)
	}
}

func TestPages(t *testing.T) {
	store, graphDir := testSetup(t)
	writeFile(t, graphDir, filepath.Join(pagesDir, "zeta.md"), "- z\n")
	writeFile(t, graphDir, filepath.Join(pagesDir, "Alpha.md"), "- a\n\t- b\n")
	ingest(t, store)

	pages, err := store.Pages(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(pages) != 2 {
		t.Fatalf("got %d pages, want 2", len(pages))
	}
	if pages[0].Name != "Alpha" || pages[0].Blocks != 2 {
		t.Errorf("pages[0] = %+v", pages[0])
	}
	if pages[1].Name != "zeta" || pages[1].Blocks != 1 {
		t.Errorf("pages[1] = %+v", pages[1])
	}
}

// --- dump tests ---

func TestWritePage(t *testing.T) {
	page := types.Page{
		Name: "p",
		Blocks: []types.Block{
			{ID: "1", Content: "root", Children: []types.Block{{ID: "2", Content: "child"}}},
		},
	}

	var y bytes.Buffer
	if err := WritePage(&y, page, DumpYAML); err != nil {
		t.Fatal(err)
	}
	var fromYAML types.Page
	if err := yaml.Unmarshal(y.Bytes(), &fromYAML); err != nil {
		t.Fatalf("invalid YAML: %v", err)
	}
	if fromYAML.Blocks[0].Children[0].Content != "child" {
		t.Errorf("YAML dump lost nesting: %s", y.String())
	}

	var j bytes.Buffer
	if err := WritePage(&j, page, DumpJSON); err != nil {
		t.Fatal(err)
	}
	var fromJSON types.Page
	if err := json.Unmarshal(j.Bytes(), &fromJSON); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if fromJSON.Name != "p" {
		t.Errorf("JSON name = %q", fromJSON.Name)
	}

	if err := WritePage(&j, page, "toml"); err == nil {
		t.Error("expected error for unsupported format")
	}
}

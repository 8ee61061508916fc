// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package graph indexes an outline graph directory (pages/, journals/,
// assets/) into SQLite and serves block lookups, asset listings, and page
// trees to the renderer.
package graph

import (
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/zeebo/blake3"

	"github.com/pdiddy/outline-pandoc/internal/outline"
	"github.com/pdiddy/outline-pandoc/pkg/types"
)

const (
	pagesDir    = "pages"
	journalsDir = "journals"
	assetsDir   = "assets"
	indexDir    = ".outline-pandoc"
	dbFile      = "graph.db"
)

// ErrNotFound reports a page that is not in the index.
var ErrNotFound = errors.New("not found")

// Store manages the graph index database.
type Store struct {
	db       *sql.DB
	graphDir string
}

// NewStore opens or creates the index for cfg.GraphDir. The database lives
// in cfg.IndexDir, or GraphDir/.outline-pandoc when IndexDir is empty.
func NewStore(cfg types.GraphConfig) (*Store, error) {
	if cfg.GraphDir == "" {
		return nil, fmt.Errorf("graph directory not set")
	}
	dir := cfg.IndexDir
	if dir == "" {
		dir = filepath.Join(cfg.GraphDir, indexDir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	dbPath := filepath.Join(dir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, graphDir: cfg.GraphDir}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// AssetsDir returns the absolute path of the graph's assets directory,
// the prefix of every path listed by Assets.
func AssetsDir(cfg types.GraphConfig) (string, error) {
	return filepath.Abs(filepath.Join(cfg.GraphDir, assetsDir))
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS pages (
			name TEXT PRIMARY KEY COLLATE NOCASE,
			path TEXT NOT NULL UNIQUE,
			properties TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS blocks (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL,
			page TEXT NOT NULL REFERENCES pages(name) ON DELETE CASCADE,
			parent INTEGER REFERENCES blocks(rowid) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			content TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_blocks_id ON blocks(id)`,
		`CREATE INDEX IF NOT EXISTS idx_blocks_page ON blocks(page)`,
		`CREATE TABLE IF NOT EXISTS assets (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			path TEXT NOT NULL UNIQUE,
			size INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS indexing_status (
			path TEXT PRIMARY KEY,
			content_hash TEXT NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// IngestSummary holds counts from an indexing run.
type IngestSummary struct {
	Indexed int
	Updated int
	Skipped int
	Removed int
	Failed  int
	Assets  int
}

// Total returns the number of page files processed.
func (s IngestSummary) Total() int {
	return s.Indexed + s.Updated + s.Skipped + s.Failed
}

// Ingest parses every page under pages/ and journals/ and refreshes the
// asset listing. Files whose BLAKE3 content hash is unchanged since the
// last run are skipped; pages whose files have disappeared are removed.
func (s *Store) Ingest(ctx context.Context, w io.Writer) (IngestSummary, error) {
	var summary IngestSummary

	files, err := s.pageFiles()
	if err != nil {
		return summary, err
	}

	seen := make(map[string]bool, len(files))
	for _, path := range files {
		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}
		seen[path] = true
		rel := s.rel(path)

		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", rel, err)
			summary.Failed++
			continue
		}
		sum := blake3.Sum256(data)
		hash := hex.EncodeToString(sum[:])

		var stored string
		err = s.db.QueryRowContext(ctx,
			`SELECT content_hash FROM indexing_status WHERE path = ?`, path,
		).Scan(&stored)
		if err == nil && stored == hash {
			summary.Skipped++
			continue
		}
		isUpdate := err == nil

		page, err := outline.ParseFile(path)
		if err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", rel, err)
			summary.Failed++
			continue
		}
		if err := s.ingestPage(ctx, page, hash); err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", rel, err)
			summary.Failed++
			continue
		}

		n := types.CountBlocks(page.Blocks)
		if isUpdate {
			fmt.Fprintf(w, "updated  %s (%d blocks)\n", page.Name, n)
			summary.Updated++
		} else {
			fmt.Fprintf(w, "indexed  %s (%d blocks)\n", page.Name, n)
			summary.Indexed++
		}
	}

	removed, err := s.removeMissing(ctx, seen, w)
	if err != nil {
		return summary, err
	}
	summary.Removed = removed

	assets, err := s.refreshAssets(ctx)
	if err != nil {
		return summary, err
	}
	summary.Assets = assets

	fmt.Fprintf(w, "\nindexed: %d, updated: %d, skipped: %d, removed: %d, failed: %d, assets: %d\n",
		summary.Indexed, summary.Updated, summary.Skipped, summary.Removed, summary.Failed, summary.Assets)
	return summary, nil
}

func (s *Store) rel(path string) string {
	if r, err := filepath.Rel(s.graphDir, path); err == nil {
		return r
	}
	return path
}

// pageFiles lists the markdown files under pages/ and journals/ in
// lexical order. Missing directories are not errors.
func (s *Store) pageFiles() ([]string, error) {
	var files []string
	for _, dir := range []string{pagesDir, journalsDir} {
		root := filepath.Join(s.graphDir, dir)
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) && path == root {
					return fs.SkipDir
				}
				return err
			}
			if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".md") {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("listing %s: %w", dir, err)
		}
	}
	sort.Strings(files)
	return files, nil
}

func (s *Store) ingestPage(ctx context.Context, page types.Page, hash string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	// Another file may already hold this page name through its title::.
	// While that file exists it keeps the name; once it is gone this file
	// takes over and the stale file's status row goes with it.
	var owner string
	err = tx.QueryRowContext(ctx,
		`SELECT path FROM pages WHERE name = ? AND path != ?`, page.Name, page.Path,
	).Scan(&owner)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("checking page name: %w", err)
	default:
		if _, statErr := os.Stat(owner); !errors.Is(statErr, fs.ErrNotExist) {
			return fmt.Errorf("page name %q already used by %s", page.Name, s.rel(owner))
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM indexing_status WHERE path = ?`, owner); err != nil {
			return fmt.Errorf("releasing page name: %w", err)
		}
	}

	// A page may be renamed by a title:: edit; drop whatever this file held before.
	if _, err := tx.ExecContext(ctx, `DELETE FROM blocks WHERE page IN (SELECT name FROM pages WHERE path = ?)`, page.Path); err != nil {
		return fmt.Errorf("deleting old blocks: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM pages WHERE path = ? OR name = ?`, page.Path, page.Name); err != nil {
		return fmt.Errorf("deleting old page: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM blocks WHERE page = ?`, page.Name); err != nil {
		return fmt.Errorf("deleting old blocks: %w", err)
	}

	props, _ := json.Marshal(page.Properties)
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO pages (name, path, properties) VALUES (?, ?, ?)`,
		page.Name, page.Path, string(props),
	); err != nil {
		return fmt.Errorf("inserting page: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO blocks (id, page, parent, position, content) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	if err := insertBlocks(ctx, stmt, page.Name, sql.NullInt64{}, page.Blocks); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO indexing_status (path, content_hash) VALUES (?, ?)
		 ON CONFLICT(path) DO UPDATE SET content_hash=excluded.content_hash`,
		page.Path, hash,
	); err != nil {
		return fmt.Errorf("updating indexing status: %w", err)
	}

	return tx.Commit()
}

func insertBlocks(ctx context.Context, stmt *sql.Stmt, page string, parent sql.NullInt64, blocks []types.Block) error {
	for i, b := range blocks {
		res, err := stmt.ExecContext(ctx, b.ID, page, parent, i, b.Content)
		if err != nil {
			return fmt.Errorf("inserting block %s: %w", b.ID, err)
		}
		row, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("reading block row: %w", err)
		}
		if err := insertBlocks(ctx, stmt, page, sql.NullInt64{Int64: row, Valid: true}, b.Children); err != nil {
			return err
		}
	}
	return nil
}

// removeMissing deletes pages whose source files were not seen in this run.
func (s *Store) removeMissing(ctx context.Context, seen map[string]bool, w io.Writer) (int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT path FROM indexing_status`)
	if err != nil {
		return 0, fmt.Errorf("listing indexed files: %w", err)
	}
	var gone []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scanning indexed file: %w", err)
		}
		if !seen[p] {
			gone = append(gone, p)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for _, p := range gone {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return 0, fmt.Errorf("beginning transaction: %w", err)
		}
		_, err1 := tx.ExecContext(ctx, `DELETE FROM blocks WHERE page IN (SELECT name FROM pages WHERE path = ?)`, p)
		_, err2 := tx.ExecContext(ctx, `DELETE FROM pages WHERE path = ?`, p)
		_, err3 := tx.ExecContext(ctx, `DELETE FROM indexing_status WHERE path = ?`, p)
		if err := errors.Join(err1, err2, err3); err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("removing %s: %w", p, err)
		}
		if err := tx.Commit(); err != nil {
			return 0, fmt.Errorf("removing %s: %w", p, err)
		}
		fmt.Fprintf(w, "removed  %s\n", s.rel(p))
	}
	return len(gone), nil
}

// refreshAssets replaces the asset table with the current contents of
// assets/, in lexical path order.
func (s *Store) refreshAssets(ctx context.Context) (int, error) {
	root := filepath.Join(s.graphDir, assetsDir)
	var assets []types.Asset
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path == root {
				return fs.SkipDir
			}
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		assets = append(assets, types.Asset{Path: filepath.ToSlash(abs), Size: info.Size()})
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("listing assets: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM assets`); err != nil {
		return 0, fmt.Errorf("clearing assets: %w", err)
	}
	for _, a := range assets {
		if _, err := tx.ExecContext(ctx, `INSERT INTO assets (path, size) VALUES (?, ?)`, a.Path, a.Size); err != nil {
			return 0, fmt.Errorf("inserting asset %s: %w", a.Path, err)
		}
	}
	return len(assets), tx.Commit()
}

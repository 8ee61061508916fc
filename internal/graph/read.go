// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package graph

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pdiddy/outline-pandoc/pkg/types"
)

// Lookup returns the content of the block with the given id, or "" when the
// id is unknown. When an id is declared more than once, the earliest
// indexed block wins.
func (s *Store) Lookup(ctx context.Context, id string) (string, error) {
	var content string
	err := s.db.QueryRowContext(ctx,
		`SELECT content FROM blocks WHERE id = ? ORDER BY rowid LIMIT 1`, id,
	).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("looking up block %s: %w", id, err)
	}
	return content, nil
}

// Assets lists stored assets in lexical path order.
func (s *Store) Assets(ctx context.Context) ([]types.Asset, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT path, size FROM assets ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("listing assets: %w", err)
	}
	defer rows.Close()

	var assets []types.Asset
	for rows.Next() {
		var a types.Asset
		if err := rows.Scan(&a.Path, &a.Size); err != nil {
			return nil, fmt.Errorf("scanning asset: %w", err)
		}
		assets = append(assets, a)
	}
	return assets, rows.Err()
}

// PageSummary describes an indexed page.
type PageSummary struct {
	Name   string `json:"name" yaml:"name"`
	Path   string `json:"path" yaml:"path"`
	Blocks int    `json:"blocks" yaml:"blocks"`
}

// Pages lists indexed pages sorted by name.
func (s *Store) Pages(ctx context.Context) ([]PageSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT p.name, p.path, count(b.rowid)
		 FROM pages p LEFT JOIN blocks b ON b.page = p.name
		 GROUP BY p.name, p.path
		 ORDER BY p.name COLLATE NOCASE`)
	if err != nil {
		return nil, fmt.Errorf("listing pages: %w", err)
	}
	defer rows.Close()

	var out []PageSummary
	for rows.Next() {
		var p PageSummary
		if err := rows.Scan(&p.Name, &p.Path, &p.Blocks); err != nil {
			return nil, fmt.Errorf("scanning page: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Page rebuilds the block tree of the named page. Names match
// case-insensitively. It returns an error wrapping ErrNotFound for unknown
// pages.
func (s *Store) Page(ctx context.Context, name string) (types.Page, error) {
	var (
		page  types.Page
		props sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT name, path, properties FROM pages WHERE name = ?`, name,
	).Scan(&page.Name, &page.Path, &props)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Page{}, fmt.Errorf("page %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return types.Page{}, fmt.Errorf("loading page %q: %w", name, err)
	}
	if props.Valid && props.String != "" && props.String != "null" {
		if err := json.Unmarshal([]byte(props.String), &page.Properties); err != nil {
			return types.Page{}, fmt.Errorf("decoding properties of %q: %w", name, err)
		}
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT rowid, id, parent, content FROM blocks WHERE page = ? ORDER BY position, rowid`, page.Name)
	if err != nil {
		return types.Page{}, fmt.Errorf("loading blocks of %q: %w", name, err)
	}
	defer rows.Close()

	type row struct {
		rowid int64
		block types.Block
	}
	children := make(map[int64][]row)
	var roots []row
	for rows.Next() {
		var (
			r      row
			parent sql.NullInt64
		)
		if err := rows.Scan(&r.rowid, &r.block.ID, &parent, &r.block.Content); err != nil {
			return types.Page{}, fmt.Errorf("scanning block: %w", err)
		}
		if parent.Valid {
			children[parent.Int64] = append(children[parent.Int64], r)
		} else {
			roots = append(roots, r)
		}
	}
	if err := rows.Err(); err != nil {
		return types.Page{}, err
	}

	var build func([]row) []types.Block
	build = func(rs []row) []types.Block {
		if len(rs) == 0 {
			return nil
		}
		out := make([]types.Block, len(rs))
		for i, r := range rs {
			out[i] = r.block
			out[i].Children = build(children[r.rowid])
		}
		return out
	}
	page.Blocks = build(roots)
	return page, nil
}

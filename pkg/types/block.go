// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the outline-pandoc pipeline:
// outline blocks, stored assets, output formats, and stage configuration.
package types

// Block is a node of an outline page. Blocks are read-only once loaded; the
// renderer derives cleaned text from Content without writing it back.
type Block struct {
	// ID is the block identifier used by ((uuid)) references. Blocks without
	// an id:: property receive a generated UUID at parse time.
	ID string `json:"id" yaml:"id"`

	// Content is the raw block text, including any key:: value property lines.
	Content string `json:"content" yaml:"content"`

	// Children are the nested blocks in document order.
	Children []Block `json:"children,omitempty" yaml:"children,omitempty"`
}

// Walk calls fn for b and each of its descendants, parents before children.
// Walk stops early and returns false when fn returns false.
func (b Block) Walk(fn func(Block) bool) bool {
	if !fn(b) {
		return false
	}
	for _, c := range b.Children {
		if !c.Walk(fn) {
			return false
		}
	}
	return true
}

// CountBlocks returns the number of blocks in the forest rooted at blocks.
func CountBlocks(blocks []Block) int {
	n := 0
	for _, b := range blocks {
		b.Walk(func(Block) bool {
			n++
			return true
		})
	}
	return n
}

// Asset is a file stored alongside the outline (images, attachments).
type Asset struct {
	// Path is the absolute storage path with forward slashes.
	Path string `json:"path" yaml:"path"`

	// Size is the file size in bytes.
	Size int64 `json:"size" yaml:"size"`
}

// Page is a named top-level outline document.
type Page struct {
	// Name is the page title as derived from its file name.
	Name string `json:"name" yaml:"name"`

	// Path is the source file the page was parsed from.
	Path string `json:"path" yaml:"path"`

	// Properties holds the page-level key:: value pairs found before the first bullet.
	Properties map[string]string `json:"properties,omitempty" yaml:"properties,omitempty"`

	// Blocks are the root blocks of the page in document order.
	Blocks []Block `json:"blocks" yaml:"blocks"`
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package outline parses outliner pages written as indented markdown
// bullets into block trees.
//
// A page is a sequence of "- " bullets nested by tabs (or two-space
// steps). Lines that are not bullets continue the block above them, which
// is how multi-line text and key:: value properties are stored. Lines
// before the first bullet are page properties.
package outline

import (
	"bufio"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/pdiddy/outline-pandoc/pkg/types"
)

// propertyLine matches a key:: value property line.
var propertyLine = regexp.MustCompile(`^([A-Za-z0-9_.\-]+)::\s*(.*)$`)

// maxLineSize bounds a single line; pages with embedded data URIs can be long.
const maxLineSize = 4 << 20

// ParseFile parses the page at path. The page name is derived from the file
// name unless the page declares a title:: property.
func ParseFile(path string) (types.Page, error) {
	f, err := os.Open(path)
	if err != nil {
		return types.Page{}, fmt.Errorf("opening page %s: %w", path, err)
	}
	defer f.Close()

	page, err := Parse(PageName(path), f)
	if err != nil {
		return types.Page{}, fmt.Errorf("parsing page %s: %w", path, err)
	}
	page.Path = path
	return page, nil
}

// PageName derives a page name from a file name: the extension is dropped,
// "___" becomes a namespace separator, and percent-escapes are decoded.
func PageName(path string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	base = strings.ReplaceAll(base, "___", "/")
	if dec, err := url.PathUnescape(base); err == nil {
		return dec
	}
	return base
}

// node is the mutable form of a block used while the tree is assembled.
type node struct {
	level    int
	lines    []string
	children []*node
}

// Parse reads a page named name from r.
func Parse(name string, r io.Reader) (types.Page, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var (
		roots []*node
		stack []*node
		pre   []string
	)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		level, rest := indentation(line)

		if isBullet(rest) {
			n := &node{level: level, lines: []string{strings.TrimPrefix(strings.TrimPrefix(rest, "-"), " ")}}
			for len(stack) > 0 && stack[len(stack)-1].level >= level {
				stack = stack[:len(stack)-1]
			}
			if len(stack) == 0 {
				roots = append(roots, n)
			} else {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, n)
			}
			stack = append(stack, n)
			continue
		}

		if len(stack) == 0 {
			pre = append(pre, line)
			continue
		}
		cur := stack[len(stack)-1]
		cur.lines = append(cur.lines, continuation(line, cur.level))
	}
	if err := sc.Err(); err != nil {
		return types.Page{}, err
	}

	page := types.Page{Name: name}
	props, text := splitPreamble(pre)
	if len(props) > 0 {
		page.Properties = props
		if title := props["title"]; title != "" {
			page.Name = title
		}
	}
	if text != "" {
		roots = append([]*node{{lines: []string{text}}}, roots...)
	}

	page.Blocks = build(page.Name, "", roots)
	return page, nil
}

// indentation returns the nesting level of line and the text after its
// indentation. A tab counts as one level, as does each pair of spaces.
func indentation(line string) (int, string) {
	level, spaces := 0, 0
	i := 0
	for ; i < len(line); i++ {
		switch line[i] {
		case '\t':
			level++
			spaces = 0
		case ' ':
			spaces++
			if spaces == 2 {
				level++
				spaces = 0
			}
		default:
			return level, line[i:]
		}
	}
	return level, ""
}

func isBullet(s string) bool {
	return s == "-" || strings.HasPrefix(s, "- ")
}

// continuation strips the block's own indentation plus the two columns
// that align text under the bullet marker. Deeper indentation is kept.
func continuation(line string, level int) string {
	for range level {
		switch {
		case strings.HasPrefix(line, "\t"):
			line = line[1:]
		case strings.HasPrefix(line, "  "):
			line = line[2:]
		}
	}
	return strings.TrimPrefix(line, "  ")
}

// splitPreamble separates page properties from any other text found
// before the first bullet.
func splitPreamble(lines []string) (map[string]string, string) {
	props := make(map[string]string)
	var text []string
	for _, l := range lines {
		t := strings.TrimSpace(l)
		if t == "" {
			continue
		}
		if m := propertyLine.FindStringSubmatch(t); m != nil {
			props[strings.ToLower(m[1])] = strings.TrimSpace(m[2])
			continue
		}
		text = append(text, t)
	}
	return props, strings.Join(text, "\n")
}

func build(page, path string, nodes []*node) []types.Block {
	if len(nodes) == 0 {
		return nil
	}
	out := make([]types.Block, len(nodes))
	for i, n := range nodes {
		pos := path + "/" + strconv.Itoa(i)
		content := strings.TrimRight(strings.Join(n.lines, "\n"), "\n ")
		id := BlockID(content)
		if id == "" {
			id = uuid.NewSHA1(uuid.NameSpaceURL, []byte(page+"#"+pos)).String()
		}
		out[i] = types.Block{
			ID:       id,
			Content:  content,
			Children: build(page, pos, n.children),
		}
	}
	return out
}

// BlockID returns the UUID declared by an id:: property in content, or ""
// when there is none or it is not a valid UUID.
func BlockID(content string) string {
	v, ok := Property(content, "id")
	if !ok {
		return ""
	}
	id, err := uuid.Parse(v)
	if err != nil {
		return ""
	}
	return id.String()
}

// Property returns the value of the first key:: value line in content
// whose key matches key case-insensitively.
func Property(content, key string) (string, bool) {
	for _, l := range strings.Split(content, "\n") {
		m := propertyLine.FindStringSubmatch(strings.TrimSpace(l))
		if m != nil && strings.EqualFold(m[1], key) {
			return strings.TrimSpace(m[2]), true
		}
	}
	return "", false
}

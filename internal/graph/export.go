// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package graph

import (
	"encoding/json"
	"fmt"
	"io"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/outline-pandoc/pkg/types"
)

// DumpFormat selects the serialization used by WritePage.
type DumpFormat string

const (
	DumpYAML DumpFormat = "yaml"
	DumpJSON DumpFormat = "json"
)

// WritePage serializes a page tree to w as YAML or JSON, for inspecting
// what the renderer will see.
func WritePage(w io.Writer, page types.Page, format DumpFormat) error {
	switch format {
	case DumpYAML, "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(page); err != nil {
			return fmt.Errorf("marshaling YAML: %w", err)
		}
		return enc.Close()
	case DumpJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(page); err != nil {
			return fmt.Errorf("marshaling JSON: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unsupported dump format %q: use yaml or json", format)
	}
}

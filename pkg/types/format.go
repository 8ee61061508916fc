// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"strings"
)

// Format identifies a conversion target. Rule files list formats by these
// identifiers; any other string is passed through to the converter as-is.
type Format string

const (
	FormatDOCX  Format = "docx"
	FormatPPTX  Format = "pptx"
	FormatHTML  Format = "html"
	FormatLaTeX Format = "latex"
)

// DefaultFormats is the export set used when no --format is given.
var DefaultFormats = []Format{FormatDOCX, FormatPPTX, FormatHTML, FormatLaTeX}

// Extension returns the output file extension for f, including the dot.
func (f Format) Extension() string {
	switch f {
	case FormatLaTeX:
		return ".tex"
	case "markdown", "gfm", "commonmark":
		return ".md"
	case "plain":
		return ".txt"
	case "":
		return ""
	}
	return "." + string(f)
}

// ParseFormats splits comma-separated format lists such as "docx,html" and
// returns them in order without duplicates. An empty input yields DefaultFormats.
func ParseFormats(values []string) ([]Format, error) {
	var out []Format
	seen := make(map[Format]bool)
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.ToLower(strings.TrimSpace(part))
			if part == "" {
				continue
			}
			if strings.ContainsAny(part, " /\\") {
				return nil, fmt.Errorf("invalid format %q", part)
			}
			f := Format(part)
			if !seen[f] {
				seen[f] = true
				out = append(out, f)
			}
		}
	}
	if len(out) == 0 {
		return append([]Format(nil), DefaultFormats...), nil
	}
	return out, nil
}

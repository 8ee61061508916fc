//go:build mage

// Package main contains Mage build targets for outline-pandoc developer tooling.
package main

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binDir  = "bin"
	binName = "outline-pandoc"
	cmdPkg  = "./cmd/outline-pandoc"

	// sampleGraph is the scratch graph created by Init for manual runs.
	sampleGraph = "sample-graph"

	pandocImage = "pandoc/latex:latest"
)

var binPath = filepath.Join(binDir, binName)

// Init creates a sample graph with one page and an empty rule file.
func Init() error {
	for _, dir := range []string{"pages", "journals", "assets"} {
		p := filepath.Join(sampleGraph, dir)
		if err := os.MkdirAll(p, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", p, err)
		}
		fmt.Println("  ", p)
	}
	files := map[string]string{
		filepath.Join(sampleGraph, "pages", "welcome.md"): "- Welcome\n\t- logseq.order-list-type:: number\n\t  first point\n\t- logseq.order-list-type:: number\n\t  second point\n",
		filepath.Join(sampleGraph, "rules.yaml"):          "Environment: {}\nContent: {}\n",
	}
	for path, content := range files {
		if _, err := os.Stat(path); err == nil {
			continue
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
		fmt.Println("  ", path)
	}
	fmt.Println("Sample graph initialized.")
	return nil
}

// Build compiles the CLI binary into bin/.
func Build() error {
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", binDir, err)
	}
	version, err := sh.Output("git", "describe", "--tags", "--always", "--dirty")
	if err != nil {
		version = "dev"
	}
	ldflags := "-X main.version=" + version
	if err := sh.RunV("go", "build", "-ldflags", ldflags, "-o", binPath, cmdPkg); err != nil {
		return fmt.Errorf("go build: %w", err)
	}
	fmt.Printf("Built %s\n", binPath)
	return nil
}

// Test runs the unit tests with the race detector.
func Test() error {
	return sh.RunV("go", "test", "-race", "./...")
}

// Golden regenerates the render golden files after an intentional output change.
func Golden() error {
	return sh.RunV("go", "test", "./internal/render/", "-run", "TestRender_Golden", "-update")
}

// Pull fetches the pandoc image used by export.
func Pull() error {
	runtime := "docker"
	if _, err := sh.Output("docker", "info"); err != nil {
		runtime = "podman"
	}
	return sh.RunV(runtime, "pull", pandocImage)
}

// Sample ingests the sample graph and exports its welcome page.
func Sample() error {
	mg.Deps(Init, Build)
	if err := sh.RunV(binPath, "ingest", "--graph-dir", sampleGraph); err != nil {
		return err
	}
	return sh.RunV(binPath, "export", "welcome",
		"--graph-dir", sampleGraph,
		"--rules", filepath.Join(sampleGraph, "rules.yaml"),
		"--out", filepath.Join(sampleGraph, "export"),
		"--keep-markup")
}

// Stats prints project metrics: Go production/test LOC and documentation word count.
func Stats() error {
	var prod, tests int
	err := filepath.WalkDir(".", func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && strings.HasPrefix(d.Name(), "_") {
			return filepath.SkipDir
		}
		if d.IsDir() || filepath.Ext(path) != ".go" {
			return nil
		}
		n, err := countLines(path)
		if err != nil {
			return err
		}
		if strings.HasSuffix(path, "_test.go") {
			tests += n
		} else {
			prod += n
		}
		return nil
	})
	if err != nil {
		return err
	}

	words := 0
	for _, doc := range []string{"README.md", "DESIGN.md", "SPEC_FULL.md"} {
		data, err := os.ReadFile(doc)
		if err != nil {
			continue
		}
		words += len(strings.Fields(string(data)))
	}

	fmt.Printf("Lines of code (Go, production): %d\n", prod)
	fmt.Printf("Lines of code (Go, tests):      %d\n", tests)
	fmt.Printf("Words (documentation):           %d\n", words)
	return nil
}

// countLines counts the non-blank lines of the file at path.
func countLines(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading %s: %w", path, err)
	}
	n := 0
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		if strings.TrimSpace(sc.Text()) != "" {
			n++
		}
	}
	return n, sc.Err()
}

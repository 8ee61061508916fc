// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used when rule files are fetched
// from a URL.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "outline-pandoc/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`

	// MaxRetries bounds retries on HTTP 429 (0 uses the default).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// RulesConfig locates the rule file.
type RulesConfig struct {
	HTTPConfig `yaml:",inline"`

	// Location is a local path or an http(s) URL of a JSON or YAML rule file.
	Location string `json:"location" yaml:"location"`
}

// GraphConfig holds settings for the graph store.
type GraphConfig struct {
	// GraphDir is the outline graph root (contains pages/, journals/, assets/).
	GraphDir string `json:"graph_dir" yaml:"graph_dir"`

	// IndexDir is where the SQLite database lives (default: GraphDir/.outline-pandoc).
	IndexDir string `json:"index_dir" yaml:"index_dir"`
}

// ConverterBackend identifies the container runtime preference.
type ConverterBackend string

const (
	BackendAuto   ConverterBackend = "auto"
	BackendDocker ConverterBackend = "docker"
	BackendPodman ConverterBackend = "podman"
)

// ConverterConfig holds settings for the pandoc conversion stage.
type ConverterConfig struct {
	// Backend selects the container runtime: auto, docker, or podman.
	Backend ConverterBackend `json:"backend" yaml:"backend"`

	// Image is the pandoc container image (default "pandoc/latex:latest").
	Image string `json:"image" yaml:"image"`

	// ExtraArgs are appended to every pandoc invocation.
	ExtraArgs []string `json:"extra_args,omitempty" yaml:"extra_args,omitempty"`

	// Mounts lists host directories bound read-only into the converter
	// container at the same path, so absolute asset paths in the markup
	// resolve inside it.
	Mounts []string `json:"mounts,omitempty" yaml:"mounts,omitempty"`

	// Parallelism bounds concurrent conversions of one page (default 2).
	Parallelism int `json:"parallelism" yaml:"parallelism"`
}

// ExportConfig groups the settings for one export run.
type ExportConfig struct {
	Rules     RulesConfig     `json:"rules" yaml:"rules"`
	Graph     GraphConfig     `json:"graph" yaml:"graph"`
	Converter ConverterConfig `json:"converter" yaml:"converter"`

	// OutputDir is where converted files are written.
	OutputDir string `json:"output_dir" yaml:"output_dir"`

	// Formats lists the requested output formats in order.
	Formats []Format `json:"formats" yaml:"formats"`

	// KeepMarkup also writes the intermediate markup per format as <page>.<format>.md.
	KeepMarkup bool `json:"keep_markup" yaml:"keep_markup"`
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package container runs conversion tools inside docker or podman. The
// pandoc converter is the only caller; the runtime knows nothing about
// document formats and simply pipes bytes through a container.
package container

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/pdiddy/outline-pandoc/pkg/types"
)

const (
	binDocker = "docker"
	binPodman = "podman"
)

// Runtime is a container engine able to run a one-shot container with
// piped stdin and stdout.
type Runtime interface {
	// Name returns the runtime binary ("docker" or "podman").
	Name() string

	// Available reports whether the binary is on PATH and its daemon or
	// service answers an info command.
	Available(ctx context.Context) bool

	// ImageExists returns nil when image is present locally.
	ImageExists(ctx context.Context, image string) error

	// Run starts job.Image with job.Args appended after the image name,
	// feeding stdin and copying the container's stdout to stdout. The
	// container is removed on exit. Stderr output is folded into the
	// returned error.
	Run(ctx context.Context, job Job, stdin io.Reader, stdout io.Writer) error
}

// Job describes one container run.
type Job struct {
	Image  string
	Args   []string
	Mounts []Mount
}

// Mount binds a host directory into the container.
type Mount struct {
	Source   string
	Target   string
	ReadOnly bool
}

// flag renders m as a -v argument value. An empty Target mounts Source at
// the same path inside the container.
func (m Mount) flag() string {
	target := m.Target
	if target == "" {
		target = m.Source
	}
	v := m.Source + ":" + target
	if m.ReadOnly {
		v += ":ro"
	}
	return v
}

// executor abstracts process execution for tests.
type executor interface {
	LookPath(file string) (string, error)
	RunSilent(ctx context.Context, name string, args ...string) error
	RunPiped(ctx context.Context, name string, args []string, stdin io.Reader, stdout, stderr io.Writer) error
}

type osExecutor struct{}

func (osExecutor) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func (osExecutor) RunSilent(ctx context.Context, name string, args ...string) error {
	return exec.CommandContext(ctx, name, args...).Run()
}

func (osExecutor) RunPiped(ctx context.Context, name string, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	return cmd.Run()
}

// engine implements Runtime. Docker and podman differ only in the binary
// and the subcommand that checks for a local image.
type engine struct {
	bin        string
	imageCheck []string
	exec       executor
}

func (e *engine) Name() string { return e.bin }

func (e *engine) Available(ctx context.Context) bool {
	if _, err := e.exec.LookPath(e.bin); err != nil {
		return false
	}
	return e.exec.RunSilent(ctx, e.bin, "info") == nil
}

func (e *engine) ImageExists(ctx context.Context, image string) error {
	args := append(append([]string{}, e.imageCheck...), image)
	if err := e.exec.RunSilent(ctx, e.bin, args...); err != nil {
		return fmt.Errorf("image %s not found in %s: %w", image, e.bin, err)
	}
	return nil
}

func (e *engine) Run(ctx context.Context, job Job, stdin io.Reader, stdout io.Writer) error {
	full := make([]string, 0, len(job.Args)+2*len(job.Mounts)+4)
	full = append(full, "run", "--rm", "-i")
	for _, m := range job.Mounts {
		full = append(full, "-v", m.flag())
	}
	full = append(full, job.Image)
	full = append(full, job.Args...)

	var stderr bytes.Buffer
	if err := e.exec.RunPiped(ctx, e.bin, full, stdin, stdout, &stderr); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("running %s container %s: %w: %s", e.bin, job.Image, err, msg)
		}
		return fmt.Errorf("running %s container %s: %w", e.bin, job.Image, err)
	}
	return nil
}

func newDocker(x executor) *engine {
	return &engine{bin: binDocker, imageCheck: []string{"image", "inspect"}, exec: x}
}

func newPodman(x executor) *engine {
	return &engine{bin: binPodman, imageCheck: []string{"image", "exists"}, exec: x}
}

var defaultExec executor = osExecutor{}

// Select returns the runtime for backend. The auto backend (or "") tries
// docker first and falls back to podman.
func Select(ctx context.Context, backend types.ConverterBackend) (Runtime, error) {
	return selectRuntime(ctx, defaultExec, backend)
}

func selectRuntime(ctx context.Context, x executor, backend types.ConverterBackend) (Runtime, error) {
	var candidates []*engine
	switch backend {
	case types.BackendDocker:
		candidates = []*engine{newDocker(x)}
	case types.BackendPodman:
		candidates = []*engine{newPodman(x)}
	case types.BackendAuto, "":
		candidates = []*engine{newDocker(x), newPodman(x)}
	default:
		return nil, fmt.Errorf("unknown container backend %q: use auto, docker, or podman", backend)
	}

	names := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if c.Available(ctx) {
			return c, nil
		}
		names = append(names, c.bin)
	}
	return nil, fmt.Errorf("no container runtime available: %s not found or not operational",
		strings.Join(names, " nor "))
}

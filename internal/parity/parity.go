package parity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"upapasta/internal/fileutil"
	"upapasta/internal/logging"
	"upapasta/internal/services"
	"upapasta/internal/stage"
)

// Name identifies the parity stage.
const Name = "parity"

// Backend is the closed set of parity tools. The selection is resolved once
// at configuration time to a concrete Generator.
type Backend string

const (
	BackendParPar Backend = "parpar"
	BackendPar2   Backend = "par2"
)

// ParseBackend validates a backend string.
func ParseBackend(value string) (Backend, error) {
	switch Backend(strings.ToLower(strings.TrimSpace(value))) {
	case BackendParPar:
		return BackendParPar, nil
	case BackendPar2:
		return BackendPar2, nil
	default:
		return "", services.Wrap(services.ErrValidation, Name, "parse backend",
			fmt.Sprintf("unknown parity backend %q", value), nil)
	}
}

// Request describes one parity generation.
type Request struct {
	// ArchivePath is the file the parity set protects.
	ArchivePath string
	// Redundancy is the percentage of recovery data to generate.
	Redundancy int
	// SliceSize is the slice-size hint in bytes, derived from the target
	// post size.
	SliceSize uint64
	// Force deletes a pre-existing parity set before running.
	Force bool
	// DryRun resolves and validates paths without spawning the tool.
	DryRun bool
}

// Generator is the common capability interface both backends implement.
type Generator interface {
	Backend() Backend
	Generate(ctx context.Context, req Request) (stage.Result, error)
}

// Option configures a generator.
type Option func(*runner)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec stage.Executor) Option {
	return func(r *runner) {
		if exec != nil {
			r.exec = exec
		}
	}
}

// NewGenerator resolves the backend selection to a concrete generator.
func NewGenerator(backend Backend, binary string, logger *slog.Logger, opts ...Option) (Generator, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("parity binary required")
	}
	base := runner{
		binary: binary,
		exec:   stage.CommandExecutor{},
		logger: logging.NewComponentLogger(logger, "parity"),
	}
	for _, opt := range opts {
		opt(&base)
	}
	switch backend {
	case BackendParPar:
		return &parparGenerator{runner: base}, nil
	case BackendPar2:
		return &par2Generator{runner: base}, nil
	default:
		return nil, fmt.Errorf("unknown parity backend %q", backend)
	}
}

type runner struct {
	binary string
	exec   stage.Executor
	logger *slog.Logger
}

// IndexPath returns the base .par2 path for an archive.
func IndexPath(archivePath string) string {
	archivePath = filepath.Clean(archivePath)
	ext := filepath.Ext(archivePath)
	return strings.TrimSuffix(archivePath, ext) + ".par2"
}

// CollectOutputs returns the parity set for an archive: the index file
// followed by its volume files in lexical order. Directory scanning is used
// instead of globbing so bracket characters in names stay literal.
func CollectOutputs(archivePath string) ([]string, error) {
	index := IndexPath(archivePath)
	dir := filepath.Dir(index)
	prefix := strings.TrimSuffix(filepath.Base(index), ".par2")

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var volumes []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, prefix+".vol") && strings.HasSuffix(name, ".par2") {
			volumes = append(volumes, filepath.Join(dir, name))
		}
	}
	sort.Strings(volumes)

	var outputs []string
	if fileutil.Exists(index) {
		outputs = append(outputs, index)
	}
	return append(outputs, volumes...), nil
}

// preflight validates the request and applies force semantics. It returns the
// index path the backend should produce.
func (r *runner) preflight(req Request) (string, error) {
	archivePath := filepath.Clean(strings.TrimSpace(req.ArchivePath))
	// In a dry run the input may itself be a predicted path from a
	// simulated upstream stage, so its absence is not an error.
	if !fileutil.Exists(archivePath) && !req.DryRun {
		return "", services.Wrap(services.ErrValidation, Name, "probe input",
			fmt.Sprintf("input file %s does not exist", archivePath), nil)
	}
	if req.Redundancy < 1 || req.Redundancy > 100 {
		return "", services.Wrap(services.ErrValidation, Name, "check redundancy",
			fmt.Sprintf("redundancy %d%% out of range", req.Redundancy), nil)
	}

	index := IndexPath(archivePath)
	if fileutil.Exists(index) {
		if !req.Force {
			return "", services.Wrap(services.ErrConflict, Name, "probe target",
				fmt.Sprintf("%s already exists (use force to overwrite)", index), nil)
		}
		if !req.DryRun {
			existing, err := CollectOutputs(archivePath)
			if err != nil {
				return "", services.Wrap(services.ErrExternalTool, Name, "scan existing parity set", "", err)
			}
			for _, path := range existing {
				if err := os.Remove(path); err != nil {
					return "", services.Wrap(services.ErrExternalTool, Name, "remove existing parity file", path, err)
				}
			}
		}
	}
	return index, nil
}

func (r *runner) generate(ctx context.Context, req Request, backend Backend, args []string) (stage.Result, error) {
	start := time.Now()
	logger := logging.WithContext(ctx, r.logger)

	index, err := r.preflight(req)
	if err != nil {
		return stage.Failed(Name, err).WithDuration(time.Since(start)), err
	}

	if req.DryRun {
		logger.Info("dry-run: would generate parity set",
			logging.String("backend", string(backend)),
			logging.String("index", index),
			logging.Int("redundancy_percent", req.Redundancy),
			logging.String(logging.FieldEventType, "parity_simulated"),
		)
		return stage.Simulated(Name, index).WithDuration(time.Since(start)), nil
	}

	logger.Info("generating parity set",
		logging.String("backend", string(backend)),
		logging.String("input", req.ArchivePath),
		logging.Int("redundancy_percent", req.Redundancy),
	)

	if err := r.exec.Run(ctx, r.binary, args, stage.ExecOptions{
		OnLine: func(line string) {
			logger.Debug("parity output", logging.String("line", line))
		},
	}); err != nil {
		wrapped := services.Wrap(services.ErrExternalTool, Name, "run "+string(backend), "parity generation failed", err)
		return stage.Failed(Name, wrapped).WithDuration(time.Since(start)), wrapped
	}

	outputs, err := CollectOutputs(req.ArchivePath)
	if err != nil {
		wrapped := services.Wrap(services.ErrExternalTool, Name, "scan outputs", "", err)
		return stage.Failed(Name, wrapped).WithDuration(time.Since(start)), wrapped
	}
	if len(outputs) == 0 {
		err := services.Wrap(services.ErrExternalTool, Name, "verify outputs",
			fmt.Sprintf("%s exited cleanly but produced no parity files", backend), nil)
		return stage.Failed(Name, err).WithDuration(time.Since(start)), err
	}

	logger.Info("parity set generated", logging.Int("files", len(outputs)))
	return stage.Succeeded(Name, outputs...).WithDuration(time.Since(start)), nil
}

type parparGenerator struct {
	runner
}

func (g *parparGenerator) Backend() Backend { return BackendParPar }

func (g *parparGenerator) Generate(ctx context.Context, req Request) (stage.Result, error) {
	index := IndexPath(req.ArchivePath)
	args := []string{
		"-r", fmt.Sprintf("%d%%", req.Redundancy),
		"-s", fmt.Sprintf("%db", req.SliceSize),
		"-o", index,
		req.ArchivePath,
	}
	return g.generate(ctx, req, BackendParPar, args)
}

type par2Generator struct {
	runner
}

func (g *par2Generator) Backend() Backend { return BackendPar2 }

func (g *par2Generator) Generate(ctx context.Context, req Request) (stage.Result, error) {
	index := IndexPath(req.ArchivePath)
	args := []string{
		"create",
		fmt.Sprintf("-r%d", req.Redundancy),
		fmt.Sprintf("-s%d", req.SliceSize),
		index,
		req.ArchivePath,
	}
	return g.generate(ctx, req, BackendPar2, args)
}

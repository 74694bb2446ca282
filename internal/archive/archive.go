package archive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"upapasta/internal/fileutil"
	"upapasta/internal/logging"
	"upapasta/internal/services"
	"upapasta/internal/stage"
)

// Name identifies the archiving stage.
const Name = "archive"

// Request describes one archive creation.
type Request struct {
	// Source is the absolute path of the folder to archive.
	Source string
	// Force deletes a pre-existing target archive before running.
	Force bool
	// DryRun resolves and validates paths without spawning the tool.
	DryRun bool
	// Progress receives completion percentages parsed from tool output.
	Progress func(percent int)
}

// Option configures the runner.
type Option func(*Runner)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec stage.Executor) Option {
	return func(r *Runner) {
		if exec != nil {
			r.exec = exec
		}
	}
}

// Runner wraps the rar CLI. The archive is created store-only: the payload is
// assumed to be already compressed.
type Runner struct {
	binary string
	exec   stage.Executor
	logger *slog.Logger
}

// New constructs an archive runner.
func New(binary string, logger *slog.Logger, opts ...Option) (*Runner, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("rar binary required")
	}
	runner := &Runner{
		binary: binary,
		exec:   stage.CommandExecutor{},
		logger: logging.NewComponentLogger(logger, "archive"),
	}
	for _, opt := range opts {
		opt(runner)
	}
	return runner, nil
}

// TargetPath returns the archive path for a source folder: a sibling file
// named after the folder.
func TargetPath(source string) string {
	source = filepath.Clean(source)
	return filepath.Join(filepath.Dir(source), filepath.Base(source)+".rar")
}

// Create archives the source folder into a sibling .rar file.
func (r *Runner) Create(ctx context.Context, req Request) (stage.Result, error) {
	start := time.Now()
	logger := logging.WithContext(ctx, r.logger)

	source := filepath.Clean(strings.TrimSpace(req.Source))
	if !fileutil.IsDir(source) {
		err := services.Wrap(services.ErrValidation, Name, "probe source",
			fmt.Sprintf("%s is not a directory", source), nil)
		return stage.Failed(Name, err).WithDuration(time.Since(start)), err
	}

	target := TargetPath(source)
	if fileutil.Exists(target) {
		if !req.Force {
			err := services.Wrap(services.ErrConflict, Name, "probe target",
				fmt.Sprintf("%s already exists (use force to overwrite)", target), nil)
			return stage.Failed(Name, err).WithDuration(time.Since(start)), err
		}
		if !req.DryRun {
			if err := os.Remove(target); err != nil {
				wrapped := services.Wrap(services.ErrExternalTool, Name, "remove existing target", "", err)
				return stage.Failed(Name, wrapped).WithDuration(time.Since(start)), wrapped
			}
		}
	}

	if req.DryRun {
		logger.Info("dry-run: would create archive",
			logging.String("target", target),
			logging.String(logging.FieldEventType, "archive_simulated"),
		)
		return stage.Simulated(Name, target).WithDuration(time.Since(start)), nil
	}

	// Run in the parent directory so entries are stored relative to the
	// folder name instead of absolute paths.
	parent := filepath.Dir(source)
	args := []string{"a", "-r", "-m0", target, filepath.Base(source)}

	logger.Info("creating store-only archive",
		logging.String("source", source),
		logging.String("target", target),
	)

	if err := r.exec.Run(ctx, r.binary, args, stage.ExecOptions{
		Dir: parent,
		OnLine: func(line string) {
			if percent, ok := parsePercent(line); ok && req.Progress != nil {
				req.Progress(percent)
			}
			logger.Debug("rar output", logging.String("line", line))
		},
	}); err != nil {
		wrapped := services.Wrap(services.ErrExternalTool, Name, "run rar", "archive creation failed", err)
		return stage.Failed(Name, wrapped).WithDuration(time.Since(start)), wrapped
	}

	if !fileutil.Exists(target) {
		err := services.Wrap(services.ErrExternalTool, Name, "verify output",
			fmt.Sprintf("rar exited cleanly but %s is missing", target), nil)
		return stage.Failed(Name, err).WithDuration(time.Since(start)), err
	}

	logger.Info("archive created",
		logging.String("target", target),
		logging.Int64("size_bytes", fileutil.SizeOf(target)),
	)
	return stage.Succeeded(Name, target).WithDuration(time.Since(start)), nil
}

var percentPattern = regexp.MustCompile(`(\d{1,3})%`)

func parsePercent(line string) (int, bool) {
	match := percentPattern.FindStringSubmatch(line)
	if match == nil {
		return 0, false
	}
	percent, err := strconv.Atoi(match[1])
	if err != nil || percent > 100 {
		return 0, false
	}
	return percent, true
}

package transmit

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

	"upapasta/internal/credentials"
	"upapasta/internal/fileutil"
	"upapasta/internal/logging"
	"upapasta/internal/services"
	"upapasta/internal/stage"
)

// Name identifies the transmit stage.
const Name = "transmit"

// Progress is a snapshot of upload progress parsed from tool output. Fields
// stay zero until the matching line has been seen.
type Progress struct {
	TotalArticles    int
	UploadedArticles int
	TotalMiB         float64
	Finished         bool
}

// Request describes one upload.
type Request struct {
	// Files are the payload in posting order, the archive first.
	Files []string
	// ManifestPath is where the NZB manifest must be written. The caller
	// resolved conflicts already, so an existing file here is overwritten.
	ManifestPath string
	// Subject is the posting subject.
	Subject string
	// Group overrides the newsgroup from the credentials.
	Group string
	// ArticleSize is the article size in bytes passed to the tool.
	ArticleSize uint64
	// DryRun resolves and validates paths without spawning the tool.
	DryRun bool
	// Progress receives parsed progress snapshots.
	Progress func(Progress)
}

// Option configures the transmitter.
type Option func(*Transmitter)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec stage.Executor) Option {
	return func(t *Transmitter) {
		if exec != nil {
			t.exec = exec
		}
	}
}

// Transmitter wraps the nyuu CLI.
type Transmitter struct {
	binary string
	creds  credentials.Credentials
	exec   stage.Executor
	logger *slog.Logger
}

// New constructs a transmitter bound to one server's credentials.
func New(binary string, creds credentials.Credentials, logger *slog.Logger, opts ...Option) (*Transmitter, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("nyuu binary required")
	}
	transmitter := &Transmitter{
		binary: binary,
		creds:  creds,
		exec:   stage.CommandExecutor{},
		logger: logging.NewComponentLogger(logger, "transmit"),
	}
	for _, opt := range opts {
		opt(transmitter)
	}
	return transmitter, nil
}

// Upload posts the payload files and writes the NZB manifest.
func (t *Transmitter) Upload(ctx context.Context, req Request) (stage.Result, error) {
	start := time.Now()
	logger := logging.WithContext(ctx, t.logger)

	if len(req.Files) == 0 {
		err := services.Wrap(services.ErrValidation, Name, "check payload", "nothing to upload", nil)
		return stage.Failed(Name, err).WithDuration(time.Since(start)), err
	}
	// Predicted paths from simulated upstream stages are allowed in a dry
	// run.
	if !req.DryRun {
		for _, file := range req.Files {
			if !fileutil.Exists(file) {
				err := services.Wrap(services.ErrValidation, Name, "check payload",
					fmt.Sprintf("payload file %s does not exist", file), nil)
				return stage.Failed(Name, err).WithDuration(time.Since(start)), err
			}
		}
	}

	group := strings.TrimSpace(req.Group)
	if group == "" {
		group = t.creds.Group
	}
	if group == "" {
		err := services.Wrap(services.ErrConfiguration, Name, "resolve group",
			"no newsgroup given and USENET_GROUP is unset", nil)
		return stage.Failed(Name, err).WithDuration(time.Since(start)), err
	}

	manifest := filepath.Clean(req.ManifestPath)
	if manifest == "." || manifest == "" {
		err := services.Wrap(services.ErrValidation, Name, "resolve manifest", "manifest path required", nil)
		return stage.Failed(Name, err).WithDuration(time.Since(start)), err
	}

	if req.DryRun {
		logger.Info("dry-run: would upload",
			logging.Int("files", len(req.Files)),
			logging.String("group", group),
			logging.String("manifest", manifest),
			logging.String(logging.FieldEventType, "transmit_simulated"),
		)
		return stage.Simulated(Name, manifest).WithDuration(time.Since(start)), nil
	}

	// The conflict decision already authorized this path, so a leftover
	// manifest from an earlier run is removed instead of tripping the tool.
	if fileutil.Exists(manifest) {
		if err := os.Remove(manifest); err != nil {
			wrapped := services.Wrap(services.ErrExternalTool, Name, "remove stale manifest", "", err)
			return stage.Failed(Name, wrapped).WithDuration(time.Since(start)), wrapped
		}
	}

	args := t.buildArgs(req, group, manifest)
	logger.Info("uploading",
		logging.Int("files", len(req.Files)),
		logging.String("subject", req.Subject),
		logging.String("group", group),
		logging.String("host", t.creds.Host),
	)

	parser := newProgressParser()
	if err := t.exec.Run(ctx, t.binary, args, stage.ExecOptions{
		OnLine: func(line string) {
			if snapshot, ok := parser.parse(line); ok && req.Progress != nil {
				req.Progress(snapshot)
			}
			logger.Debug("nyuu output", logging.String("line", line))
		},
	}); err != nil {
		wrapped := services.Wrap(services.ErrExternalTool, Name, "run nyuu", "upload failed", err)
		return stage.Failed(Name, wrapped).WithDuration(time.Since(start)), wrapped
	}

	if !fileutil.Exists(manifest) {
		err := services.Wrap(services.ErrExternalTool, Name, "verify manifest",
			fmt.Sprintf("nyuu exited cleanly but %s is missing", manifest), nil)
		return stage.Failed(Name, err).WithDuration(time.Since(start)), err
	}

	logger.Info("upload complete",
		logging.String("manifest", manifest),
		logging.Int64("manifest_bytes", fileutil.SizeOf(manifest)),
	)
	return stage.Succeeded(Name, manifest).WithDuration(time.Since(start)), nil
}

func (t *Transmitter) buildArgs(req Request, group, manifest string) []string {
	args := []string{
		"-h", t.creds.Host,
		"-P", strconv.Itoa(t.creds.Port),
	}
	if t.creds.SSL {
		args = append(args, "-S")
	}
	if t.creds.Username != "" {
		args = append(args, "-u", t.creds.Username)
	}
	if t.creds.Password != "" {
		args = append(args, "-p", t.creds.Password)
	}
	args = append(args,
		"-n", strconv.Itoa(t.creds.Connections),
		"-g", group,
	)
	if req.Subject != "" {
		args = append(args, "-s", req.Subject)
	}
	if req.ArticleSize > 0 {
		args = append(args, "-a", strconv.FormatUint(req.ArticleSize, 10))
	}
	args = append(args, "-o", manifest)
	return append(args, req.Files...)
}

var (
	totalPattern    = regexp.MustCompile(`Uploading (\d+) article\(s\).*?(\d+(?:\.\d+)?) MiB`)
	uploadedPattern = regexp.MustCompile(`Uploaded (\d+)/(\d+) articles`)
	finishedPattern = regexp.MustCompile(`Finished uploading (\d+(?:\.\d+)?) MiB`)
)

type progressParser struct {
	current Progress
}

func newProgressParser() *progressParser {
	return &progressParser{}
}

// parse folds one output line into the running progress state. It reports
// whether the line changed anything.
func (p *progressParser) parse(line string) (Progress, bool) {
	if match := totalPattern.FindStringSubmatch(line); match != nil {
		p.current.TotalArticles, _ = strconv.Atoi(match[1])
		p.current.TotalMiB, _ = strconv.ParseFloat(match[2], 64)
		return p.current, true
	}
	if match := uploadedPattern.FindStringSubmatch(line); match != nil {
		p.current.UploadedArticles, _ = strconv.Atoi(match[1])
		if total, err := strconv.Atoi(match[2]); err == nil && total > 0 {
			p.current.TotalArticles = total
		}
		return p.current, true
	}
	if match := finishedPattern.FindStringSubmatch(line); match != nil {
		p.current.TotalMiB, _ = strconv.ParseFloat(match[1], 64)
		p.current.UploadedArticles = p.current.TotalArticles
		p.current.Finished = true
		return p.current, true
	}
	return Progress{}, false
}

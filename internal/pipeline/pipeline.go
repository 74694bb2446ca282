// Package pipeline sequences the publishing workflow: conflict check,
// descriptor, archive, parity, transmit, cleanup. The controller owns every
// intermediate artifact created during a run and guarantees its release on
// any exit path.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"upapasta/internal/archive"
	"upapasta/internal/conflict"
	"upapasta/internal/fileutil"
	"upapasta/internal/logging"
	"upapasta/internal/parity"
	"upapasta/internal/services"
	"upapasta/internal/stage"
	"upapasta/internal/transmit"
)

// RunStatus is the aggregate outcome of one run.
type RunStatus string

const (
	StatusSuccess RunStatus = "success"
	StatusPartial RunStatus = "partial"
	StatusFailure RunStatus = "failure"
)

// RunConfiguration is built once from CLI input plus environment and is
// read-only for the duration of the run.
type RunConfiguration struct {
	Source         string
	Subject        string
	Group          string
	Redundancy     int
	PostSize       uint64
	ArticleSize    uint64
	ConflictPolicy conflict.Policy
	OutputTemplate string

	DryRun       bool
	SkipArchive  bool
	SkipParity   bool
	SkipTransmit bool
	Force        bool
	KeepFiles    bool
}

// RunOutcome is the controller's only product. Run always returns one, even
// when the run aborts before the first stage.
type RunOutcome struct {
	RunID          string
	Status         RunStatus
	Decision       conflict.Decision
	StageResults   []stage.Result
	ManifestPath   string
	DescriptorPath string
	RemainingFiles []string
	FailedStage    string
	Message        string
	Duration       time.Duration
}

// Archiver creates the store-only archive.
type Archiver interface {
	Create(ctx context.Context, req archive.Request) (stage.Result, error)
}

// ParityGenerator produces the parity set for an archive.
type ParityGenerator interface {
	Generate(ctx context.Context, req parity.Request) (stage.Result, error)
}

// Transmitter uploads the payload and writes the manifest.
type Transmitter interface {
	Upload(ctx context.Context, req transmit.Request) (stage.Result, error)
}

// Summarizer writes the descriptor artifact and returns its path.
type Summarizer interface {
	Write(ctx context.Context, source string) (string, error)
}

// Option configures the controller.
type Option func(*Controller)

// WithSummarizer enables descriptor generation.
func WithSummarizer(s Summarizer) Option {
	return func(c *Controller) { c.summarizer = s }
}

// WithLogger sets the controller's base logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) { c.base = logger }
}

// WithProbe overrides the filesystem probe used for conflict resolution
// (primarily for tests).
func WithProbe(probe conflict.Probe) Option {
	return func(c *Controller) {
		if probe != nil {
			c.probe = probe
		}
	}
}

// WithArchiveProgress registers a side channel for archive percentages.
func WithArchiveProgress(fn func(percent int)) Option {
	return func(c *Controller) { c.archiveProgress = fn }
}

// WithUploadProgress registers a side channel for upload progress snapshots.
func WithUploadProgress(fn func(transmit.Progress)) Option {
	return func(c *Controller) { c.uploadProgress = fn }
}

// Controller drives one run at a time. It is not safe for concurrent use;
// callers serialize runs against the same source themselves.
type Controller struct {
	cfg         RunConfiguration
	archiver    Archiver
	parityGen   ParityGenerator
	transmitter Transmitter
	summarizer  Summarizer
	probe       conflict.Probe

	archiveProgress func(int)
	uploadProgress  func(transmit.Progress)

	base   *slog.Logger
	logger *slog.Logger
}

// New constructs a controller for one configuration.
func New(cfg RunConfiguration, archiver Archiver, parityGen ParityGenerator, transmitter Transmitter, opts ...Option) *Controller {
	c := &Controller{
		cfg:         cfg,
		archiver:    archiver,
		parityGen:   parityGen,
		transmitter: transmitter,
		probe:       conflict.ExistsProbe,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.NewComponentLogger(c.base, "pipeline")
	return c
}

// run carries the mutable state of one invocation.
type run struct {
	outcome     RunOutcome
	registry    *cleanupRegistry
	archivePath string
	payload     []string
	descriptor  bool
	anySkipped  bool
	nfoFailed   bool
}

// Run executes the pipeline. It never panics or returns an error; every
// failure is folded into the outcome.
func (c *Controller) Run(ctx context.Context) RunOutcome {
	start := time.Now()
	state := &run{
		outcome:  RunOutcome{RunID: uuid.NewString(), Status: StatusSuccess},
		registry: newCleanupRegistry(c.logger),
	}
	ctx = services.WithRunID(ctx, state.outcome.RunID)
	logger := logging.WithContext(ctx, c.logger)

	// Release runs exactly once, whatever path leaves this function,
	// including a cancelled context surfacing as a stage failure.
	defer func() {
		state.registry.release()
		state.outcome.RemainingFiles = c.remainingFiles(state)
		state.outcome.Duration = time.Since(start)
	}()

	if err := c.validate(); err != nil {
		c.fail(state, "init", err)
		return state.outcome
	}

	decision, err := conflict.Resolve(c.cfg.OutputTemplate, c.sourceName(), c.baseDir(), c.cfg.ConflictPolicy, c.probe)
	if err != nil {
		c.fail(state, "conflict", err)
		return state.outcome
	}
	state.outcome.Decision = decision
	if decision.Action == conflict.ActionAbort {
		err := services.Wrap(services.ErrConflict, "conflict", "resolve manifest path",
			fmt.Sprintf("%s already exists and the conflict policy is fail", decision.Path), nil)
		c.fail(state, "conflict", err)
		return state.outcome
	}
	logger.Info("manifest path resolved",
		logging.String("path", decision.Path),
		logging.String("action", string(decision.Action)),
	)

	c.summarize(ctx, state, logger)

	if !c.archiveStage(ctx, state) {
		return state.outcome
	}
	if !c.parityStage(ctx, state) {
		return state.outcome
	}
	if !c.transmitStage(ctx, state, decision.Path) {
		return state.outcome
	}

	if state.anySkipped || state.nfoFailed {
		state.outcome.Status = StatusPartial
	}
	logger.Info("run complete",
		logging.String("status", string(state.outcome.Status)),
		logging.String(logging.FieldEventType, "run_complete"),
	)
	return state.outcome
}

func (c *Controller) validate() error {
	if !fileutil.Exists(c.cfg.Source) {
		return services.Wrap(services.ErrValidation, "init", "check source",
			fmt.Sprintf("source %s does not exist", c.cfg.Source), nil)
	}
	if c.cfg.Redundancy < 1 || c.cfg.Redundancy > 100 {
		return services.Wrap(services.ErrValidation, "init", "check redundancy",
			fmt.Sprintf("redundancy %d%% out of range", c.cfg.Redundancy), nil)
	}
	return nil
}

func (c *Controller) sourceName() string {
	return fileutil.BaseName(c.cfg.Source)
}

func (c *Controller) baseDir() string {
	return parentDir(c.cfg.Source)
}

// summarize is best-effort: failures downgrade the run to partial, never
// abort it. The descriptor is generated at most once per run and is never
// registered for cleanup.
func (c *Controller) summarize(ctx context.Context, state *run, logger *slog.Logger) {
	if c.summarizer == nil || state.descriptor {
		return
	}
	state.descriptor = true
	if c.cfg.DryRun {
		logger.Info("dry-run: would write descriptor")
		return
	}
	path, err := c.summarizer.Write(ctx, c.cfg.Source)
	if err != nil {
		state.nfoFailed = true
		logger.Warn("descriptor generation failed", logging.Error(err))
		return
	}
	state.outcome.DescriptorPath = path
}

// archiveStage returns false when the run is over.
func (c *Controller) archiveStage(ctx context.Context, state *run) bool {
	// A single-file input passes through unchanged. The file is
	// user-supplied, so it is never registered for cleanup.
	if !fileutil.IsDir(c.cfg.Source) {
		state.archivePath = c.cfg.Source
		state.anySkipped = true
		c.record(state, stage.Skipped(archive.Name, "single-file input passed through"))
		return true
	}

	if c.cfg.SkipArchive {
		existing := archive.TargetPath(c.cfg.Source)
		if !fileutil.Exists(existing) {
			err := services.Wrap(services.ErrValidation, archive.Name, "reuse archive",
				fmt.Sprintf("archiving skipped but %s does not exist", existing), nil)
			c.fail(state, archive.Name, err)
			return false
		}
		state.archivePath = existing
		state.anySkipped = true
		c.record(state, stage.Skipped(archive.Name, fmt.Sprintf("reusing %s", existing)))
		return true
	}

	result, err := c.archiver.Create(services.WithStage(ctx, archive.Name), archive.Request{
		Source:   c.cfg.Source,
		Force:    c.cfg.Force,
		DryRun:   c.cfg.DryRun,
		Progress: c.archiveProgress,
	})
	c.record(state, result)
	if err != nil {
		c.fail(state, archive.Name, err)
		return false
	}
	state.archivePath = result.Outputs[0]
	if !result.Simulated {
		state.registry.register(result.Outputs...)
	}
	return true
}

func (c *Controller) parityStage(ctx context.Context, state *run) bool {
	if c.cfg.SkipParity {
		index := parity.IndexPath(state.archivePath)
		if fileutil.Exists(index) {
			existing, err := parity.CollectOutputs(state.archivePath)
			if err != nil {
				c.fail(state, parity.Name, services.Wrap(services.ErrExternalTool, parity.Name, "scan existing parity set", "", err))
				return false
			}
			state.payload = existing
			state.anySkipped = true
			c.record(state, stage.Skipped(parity.Name, fmt.Sprintf("reusing %s", index)))
			return true
		}
		state.anySkipped = true
		c.record(state, stage.Skipped(parity.Name, "parity generation skipped"))
		return true
	}

	result, err := c.parityGen.Generate(services.WithStage(ctx, parity.Name), parity.Request{
		ArchivePath: state.archivePath,
		Redundancy:  c.cfg.Redundancy,
		SliceSize:   c.cfg.PostSize,
		Force:       c.cfg.Force,
		DryRun:      c.cfg.DryRun,
	})
	c.record(state, result)
	if err != nil {
		c.fail(state, parity.Name, err)
		return false
	}
	state.payload = result.Outputs
	if !result.Simulated {
		state.registry.register(result.Outputs...)
	}
	return true
}

func (c *Controller) transmitStage(ctx context.Context, state *run, manifest string) bool {
	if c.cfg.SkipTransmit {
		// The intermediates are the product of a skip-transmit run, so
		// the registry must not delete them.
		state.registry.keep()
		state.anySkipped = true
		c.record(state, stage.Skipped(transmit.Name, "upload skipped, artifacts kept"))
		return true
	}

	files := append([]string{state.archivePath}, state.payload...)
	result, err := c.transmitter.Upload(services.WithStage(ctx, transmit.Name), transmit.Request{
		Files:        files,
		ManifestPath: manifest,
		Subject:      c.subject(),
		Group:        c.cfg.Group,
		ArticleSize:  c.cfg.ArticleSize,
		DryRun:       c.cfg.DryRun,
		Progress:     c.uploadProgress,
	})
	c.record(state, result)
	if err != nil {
		c.fail(state, transmit.Name, err)
		return false
	}
	state.outcome.ManifestPath = manifest
	if c.cfg.KeepFiles {
		state.registry.keep()
	}
	return true
}

func (c *Controller) subject() string {
	if c.cfg.Subject != "" {
		return c.cfg.Subject
	}
	return c.sourceName()
}

func (c *Controller) record(state *run, result stage.Result) {
	state.outcome.StageResults = append(state.outcome.StageResults, result)
}

// fail moves the run to the absorbing failure state. Artifacts created by
// prior successful stages are released by the deferred registry call unless
// the operator asked to keep them.
func (c *Controller) fail(state *run, stageName string, err error) {
	state.outcome.Status = StatusFailure
	state.outcome.FailedStage = stageName
	state.outcome.Message = services.Details(err)
	if c.cfg.KeepFiles {
		state.registry.keep()
	}
	c.logger.Error("run failed",
		logging.String(logging.FieldStage, stageName),
		logging.Error(err),
	)
}

// remainingFiles lists the files this run touched that still exist after
// cleanup: the manifest, the descriptor, and any kept intermediates.
func (c *Controller) remainingFiles(state *run) []string {
	seen := map[string]bool{}
	var remaining []string
	consider := func(path string) {
		if path == "" || path == c.cfg.Source || seen[path] {
			return
		}
		seen[path] = true
		if fileutil.Exists(path) {
			remaining = append(remaining, path)
		}
	}
	for _, result := range state.outcome.StageResults {
		if result.Simulated {
			continue
		}
		for _, path := range result.Outputs {
			consider(path)
		}
	}
	consider(state.outcome.ManifestPath)
	consider(state.outcome.DescriptorPath)
	consider(state.archivePath)
	for _, path := range state.payload {
		consider(path)
	}
	return remaining
}

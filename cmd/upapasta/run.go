package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"upapasta/internal/archive"
	"upapasta/internal/config"
	"upapasta/internal/conflict"
	"upapasta/internal/credentials"
	"upapasta/internal/fileutil"
	"upapasta/internal/history"
	"upapasta/internal/logging"
	"upapasta/internal/nfo"
	"upapasta/internal/parity"
	"upapasta/internal/pipeline"
	"upapasta/internal/transmit"
)

// Exit codes mirror the stage that sank the run.
const (
	exitFailure  = 1
	exitParity   = 2
	exitTransmit = 3
)

type runFlags struct {
	dryRun      bool
	redundancy  int
	backend     string
	postSize    string
	subject     string
	group       string
	skipRar     bool
	skipPar     bool
	skipUpload  bool
	force       bool
	envFile     string
	keepFiles   bool
	onConflict  string
	output      string
	noNFO       bool
	logLevel    string
	articleSize string
}

func registerRunFlags(cmd *cobra.Command, flags *runFlags) {
	f := cmd.Flags()
	f.BoolVar(&flags.dryRun, "dry-run", false, "Show what would happen without running any tool")
	f.IntVarP(&flags.redundancy, "redundancy", "r", 15, "Parity redundancy in percent")
	f.StringVar(&flags.backend, "backend", "", "Parity backend (parpar or par2)")
	f.StringVar(&flags.postSize, "post-size", "", "Target post size, e.g. 20M")
	f.StringVarP(&flags.subject, "subject", "s", "", "Posting subject (default: source name)")
	f.StringVarP(&flags.group, "group", "g", "", "Newsgroup (default: from .env)")
	f.BoolVar(&flags.skipRar, "skip-rar", false, "Reuse an existing archive instead of creating one")
	f.BoolVar(&flags.skipPar, "skip-par", false, "Skip parity generation")
	f.BoolVar(&flags.skipUpload, "skip-upload", false, "Skip the upload and keep the artifacts")
	f.BoolVarP(&flags.force, "force", "f", false, "Overwrite pre-existing archive and parity files")
	f.StringVar(&flags.envFile, "env-file", "", "Credentials file (default: .env)")
	f.BoolVar(&flags.keepFiles, "keep-files", false, "Keep intermediate files after the upload")
	f.StringVar(&flags.onConflict, "on-conflict", "", "Manifest conflict policy (rename, overwrite, fail)")
	f.StringVar(&flags.output, "output", "", "Manifest path template, {name} expands to the source name")
	f.BoolVar(&flags.noNFO, "no-nfo", false, "Skip the NFO descriptor")
	f.StringVar(&flags.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	f.StringVar(&flags.articleSize, "article-size", "", "Article size hint, e.g. 700K")
}

// runSettings is the merge of configuration file defaults and command-line
// overrides for one invocation.
type runSettings struct {
	pipeline.RunConfiguration
	Backend parity.Backend
	EnvFile string
	NFO     bool
}

// mergeRunSettings folds flag overrides over the config defaults. changed
// reports whether a flag was given explicitly.
func mergeRunSettings(cfg *config.Config, flags *runFlags, changed func(name string) bool, source string) (runSettings, error) {
	settings := runSettings{
		RunConfiguration: pipeline.RunConfiguration{
			Source:         source,
			Subject:        flags.subject,
			Group:          cfg.Upload.Group,
			Redundancy:     cfg.Upload.Redundancy,
			PostSize:       cfg.PostSizeBytes(),
			OutputTemplate: cfg.Upload.OutputTemplate,
			DryRun:         flags.dryRun,
			SkipArchive:    flags.skipRar,
			SkipParity:     flags.skipPar,
			SkipTransmit:   flags.skipUpload,
			Force:          flags.force,
			KeepFiles:      cfg.Upload.KeepFiles || flags.keepFiles,
		},
		EnvFile: cfg.Upload.EnvFile,
		NFO:     cfg.NFO.Enabled && !flags.noNFO,
	}

	if changed("redundancy") {
		settings.Redundancy = flags.redundancy
	}
	if changed("group") {
		settings.Group = flags.group
	}
	if changed("output") {
		settings.OutputTemplate = flags.output
	}
	if changed("env-file") {
		settings.EnvFile = flags.envFile
	}
	if changed("post-size") {
		bytes, err := humanize.ParseBytes(flags.postSize)
		if err != nil {
			return runSettings{}, fmt.Errorf("parse post size %q: %w", flags.postSize, err)
		}
		settings.PostSize = bytes
	}
	if changed("article-size") {
		bytes, err := humanize.ParseBytes(flags.articleSize)
		if err != nil {
			return runSettings{}, fmt.Errorf("parse article size %q: %w", flags.articleSize, err)
		}
		settings.ArticleSize = bytes
	}

	policyValue := cfg.Upload.ConflictPolicy
	if changed("on-conflict") {
		policyValue = flags.onConflict
	}
	policy, err := conflict.ParsePolicy(policyValue)
	if err != nil {
		return runSettings{}, err
	}
	settings.ConflictPolicy = policy

	backendValue := cfg.Upload.Backend
	if changed("backend") {
		backendValue = flags.backend
	}
	backend, err := parity.ParseBackend(backendValue)
	if err != nil {
		return runSettings{}, err
	}
	settings.Backend = backend

	return settings, nil
}

// exitCodeFor maps a failed run outcome to the process exit code.
func exitCodeFor(outcome pipeline.RunOutcome) int {
	if outcome.Status != pipeline.StatusFailure {
		return 0
	}
	switch outcome.FailedStage {
	case parity.Name:
		return exitParity
	case transmit.Name:
		return exitTransmit
	default:
		return exitFailure
	}
}

func runPipeline(cmd *cobra.Command, cmdCtx *commandContext, flags *runFlags, sourceArg string) error {
	cfg, err := cmdCtx.ensureConfig()
	if err != nil {
		return err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	source, err := config.ExpandPath(sourceArg)
	if err != nil {
		return fmt.Errorf("resolve source path: %w", err)
	}

	settings, err := mergeRunSettings(cfg, flags, cmd.Flags().Changed, source)
	if err != nil {
		return err
	}

	logger, err := newRunLogger(cfg, flags.logLevel)
	if err != nil {
		return err
	}

	// Concurrent runs against the same source are not safe; a per-source
	// lock serializes them across processes.
	lockPath := filepath.Join(cfg.LockDir(), fileutil.SanitizeFileName(filepath.Base(source))+".lock")
	lock := flock.New(lockPath)
	held, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire run lock: %w", err)
	}
	if !held {
		return &exitError{code: exitFailure, message: fmt.Sprintf("another run is already working on %s", source)}
	}
	defer func() { _ = lock.Unlock() }()

	var creds credentials.Credentials
	if !settings.SkipTransmit {
		creds, err = credentials.Load(settings.EnvFile)
		if err != nil {
			return &exitError{code: exitTransmit, message: err.Error()}
		}
	}

	archiver, err := archive.New(cfg.Tools.Rar, logger)
	if err != nil {
		return err
	}
	parityBinary := cfg.Tools.ParPar
	if settings.Backend == parity.BackendPar2 {
		parityBinary = cfg.Tools.Par2
	}
	generator, err := parity.NewGenerator(settings.Backend, parityBinary, logger)
	if err != nil {
		return err
	}
	transmitter, err := transmit.New(cfg.Tools.Nyuu, creds, logger)
	if err != nil {
		return err
	}

	opts := []pipeline.Option{pipeline.WithLogger(logger)}
	if settings.NFO {
		opts = append(opts, pipeline.WithSummarizer(nfo.New(cfg.NFO.Banner, cfg.Tools.FFprobe, logger)))
	}
	if meter := newProgressMeter(); meter != nil {
		opts = append(opts,
			pipeline.WithArchiveProgress(meter.archivePercent),
			pipeline.WithUploadProgress(meter.uploadSnapshot),
		)
		defer meter.finish()
	}

	controller := pipeline.New(settings.RunConfiguration, archiver, generator, transmitter, opts...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	outcome := controller.Run(ctx)

	fmt.Fprintln(cmd.OutOrStdout(), renderRunSummary(settings, outcome))
	journalRun(cfg, logger, source, outcome)

	if code := exitCodeFor(outcome); code != 0 {
		return &exitError{code: code, message: outcome.Message}
	}
	return nil
}

func newRunLogger(cfg *config.Config, levelOverride string) (*slog.Logger, error) {
	level := cfg.Logging.Level
	if levelOverride != "" {
		level = levelOverride
	}
	return logging.New(logging.Options{
		Level:  level,
		Format: cfg.Logging.Format,
		OutputPaths: []string{
			"stderr",
			filepath.Join(cfg.Paths.LogDir, "upapasta.log"),
		},
	})
}

// journalRun records the outcome best-effort; a broken journal never fails
// the command.
func journalRun(cfg *config.Config, logger *slog.Logger, source string, outcome pipeline.RunOutcome) {
	if !cfg.History.Enabled {
		return
	}
	store, err := history.Open(cfg.Paths.LogDir)
	if err != nil {
		logger.Warn("run journal unavailable", logging.Error(err))
		return
	}
	defer store.Close()
	if err := store.RecordRun(context.Background(), source, outcome); err != nil {
		logger.Warn("run journal write failed", logging.Error(err))
	}
}

// Package nfo renders a human-readable descriptor for the upload. The
// descriptor is informational only: it is written next to the source, never
// transmitted and never cleaned up, and any failure here must not abort a run.
package nfo

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"upapasta/internal/fileutil"
	"upapasta/internal/logging"
	"upapasta/internal/media/ffprobe"
)

// DefaultBanner is used when the configuration does not supply one.
const DefaultBanner = `. . . . . . . . . . . . . . . . . . . . . . . .
:        u p a p a s t a   r e l e a s e        :
'. . . . . . . . . . . . . . . . . . . . . . . .'`

// Probe inspects one media file. It matches ffprobe.Inspect's shape so tests
// can substitute canned results.
type Probe func(ctx context.Context, path string) (ffprobe.Result, error)

// Option configures the summarizer.
type Option func(*Summarizer)

// WithProbe injects a media probe (primarily for tests).
func WithProbe(probe Probe) Option {
	return func(s *Summarizer) {
		if probe != nil {
			s.probe = probe
		}
	}
}

// WithClock injects the timestamp source (primarily for tests).
func WithClock(now func() time.Time) Option {
	return func(s *Summarizer) {
		if now != nil {
			s.now = now
		}
	}
}

// Summarizer writes .nfo descriptors.
type Summarizer struct {
	banner string
	probe  Probe
	now    func() time.Time
	logger *slog.Logger
	titler cases.Caser
}

// New constructs a summarizer. ffprobeBinary may be empty, in which case the
// default binary name is used for probing.
func New(banner, ffprobeBinary string, logger *slog.Logger, opts ...Option) *Summarizer {
	if strings.TrimSpace(banner) == "" {
		banner = DefaultBanner
	}
	s := &Summarizer{
		banner: banner,
		probe: func(ctx context.Context, path string) (ffprobe.Result, error) {
			return ffprobe.Inspect(ctx, ffprobeBinary, path)
		},
		now:    time.Now,
		logger: logging.NewComponentLogger(logger, "nfo"),
		titler: cases.Title(language.English),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TargetPath returns the descriptor path for a source: a sibling .nfo file.
func TargetPath(source string) string {
	source = filepath.Clean(source)
	return filepath.Join(filepath.Dir(source), fileutil.BaseName(source)+".nfo")
}

// mediaExtensions are the files worth probing.
var mediaExtensions = map[string]bool{
	".avi": true, ".flac": true, ".m4v": true, ".mkv": true,
	".mp3": true, ".mp4": true, ".ts": true, ".wav": true,
}

// Write renders the descriptor for the source and returns its path.
func (s *Summarizer) Write(ctx context.Context, source string) (string, error) {
	source = filepath.Clean(source)
	if !fileutil.Exists(source) {
		return "", fmt.Errorf("nfo: %s does not exist", source)
	}

	target := TargetPath(source)
	body, err := s.render(ctx, source)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(target, []byte(body), 0o644); err != nil {
		return "", fmt.Errorf("nfo: write %s: %w", target, err)
	}

	s.logger.Info("descriptor written", logging.String("path", target))
	return target, nil
}

func (s *Summarizer) render(ctx context.Context, source string) (string, error) {
	var b strings.Builder
	b.WriteString(s.banner)
	b.WriteString("\n\n")

	// The embedded name must never leak the local directory layout.
	name := fileutil.SanitizeFileName(fileutil.BaseName(source))
	title := s.titler.String(strings.ReplaceAll(name, ".", " "))

	fmt.Fprintf(&b, "Title      : %s\n", title)
	fmt.Fprintf(&b, "Name       : %s\n", name)
	fmt.Fprintf(&b, "Date       : %s\n", s.now().UTC().Format("2006-01-02"))

	if fileutil.IsDir(source) {
		total, count, err := fileutil.DirStats(source)
		if err != nil {
			return "", fmt.Errorf("nfo: scan %s: %w", source, err)
		}
		fmt.Fprintf(&b, "Files      : %d\n", count)
		fmt.Fprintf(&b, "Total size : %s\n", humanize.IBytes(uint64(total)))
		b.WriteString("\nContents\n--------\n")
		if err := s.renderTree(ctx, &b, source); err != nil {
			return "", err
		}
	} else {
		fmt.Fprintf(&b, "Total size : %s\n", humanize.IBytes(uint64(fileutil.SizeOf(source))))
		b.WriteString("\n")
		s.renderMediaInfo(ctx, &b, source, "")
	}

	return b.String(), nil
}

func (s *Summarizer) renderTree(ctx context.Context, b *strings.Builder, root string) error {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("nfo: walk %s: %w", root, err)
	}
	sort.Strings(files)

	for _, path := range files {
		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = filepath.Base(path)
		}
		fmt.Fprintf(b, "  %-48s %10s\n", rel, humanize.IBytes(uint64(fileutil.SizeOf(path))))
		if mediaExtensions[strings.ToLower(filepath.Ext(path))] {
			s.renderMediaInfo(ctx, b, path, "    ")
		}
	}
	return nil
}

// renderMediaInfo appends technical attributes for a media file. Probe
// failures are logged and skipped so a broken file cannot sink the
// descriptor.
func (s *Summarizer) renderMediaInfo(ctx context.Context, b *strings.Builder, path, indent string) {
	result, err := s.probe(ctx, path)
	if err != nil {
		s.logger.Warn("media probe failed",
			logging.String("path", path),
			logging.Error(err),
		)
		return
	}

	if duration := result.DurationSeconds(); duration > 0 {
		fmt.Fprintf(b, "%sDuration   : %s\n", indent, formatDuration(duration))
	}
	if resolution := result.Resolution(); resolution != "" {
		fmt.Fprintf(b, "%sResolution : %s\n", indent, resolution)
	}
	if codec := result.VideoCodec(); codec != "" {
		fmt.Fprintf(b, "%sCodec      : %s\n", indent, codec)
	}
	if rate := result.BitRate(); rate > 0 {
		fmt.Fprintf(b, "%sBitrate    : %s/s\n", indent, humanize.SI(float64(rate), "b"))
	}
}

func formatDuration(seconds float64) string {
	total := int(seconds)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}

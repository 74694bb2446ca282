package main

import (
	"os"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"upapasta/internal/transmit"
)

// progressMeter renders archive and upload progress bars on a terminal. It is
// a pure side channel: the pipeline never waits on it.
type progressMeter struct {
	mu      sync.Mutex
	archive *progressbar.ProgressBar
	upload  *progressbar.ProgressBar
}

// newProgressMeter returns nil when stderr is not a terminal, disabling the
// bars entirely.
func newProgressMeter() *progressMeter {
	if !isatty.IsTerminal(os.Stderr.Fd()) && !isatty.IsCygwinTerminal(os.Stderr.Fd()) {
		return nil
	}
	return &progressMeter{}
}

func newBar(max int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(max,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func (m *progressMeter) archivePercent(percent int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.archive == nil {
		m.archive = newBar(100, "archiving")
	}
	_ = m.archive.Set(percent)
}

func (m *progressMeter) uploadSnapshot(p transmit.Progress) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upload == nil {
		if p.TotalArticles == 0 {
			return
		}
		m.upload = newBar(p.TotalArticles, "uploading")
	}
	if p.Finished {
		_ = m.upload.Finish()
		return
	}
	_ = m.upload.Set(p.UploadedArticles)
}

func (m *progressMeter) finish() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.archive != nil {
		_ = m.archive.Finish()
	}
	if m.upload != nil {
		_ = m.upload.Finish()
	}
}

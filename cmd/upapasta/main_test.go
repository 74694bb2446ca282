package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"upapasta/internal/pipeline"
	"upapasta/internal/stage"
)

func TestVersionCommand(t *testing.T) {
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("version returned error: %v", err)
	}
	if !strings.HasPrefix(out.String(), "upapasta ") {
		t.Fatalf("unexpected output: %q", out.String())
	}
}

func TestRootHelpWithoutArguments(t *testing.T) {
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("help returned error: %v", err)
	}
	if !strings.Contains(out.String(), "upapasta") {
		t.Fatalf("help output missing usage: %q", out.String())
	}
}

func TestRenderRunSummaryShowsStagesAndStatus(t *testing.T) {
	settings := runSettings{}
	settings.Source = "/data/photos"
	settings.Subject = "photos"
	settings.Group = "alt.binaries.test"

	outcome := pipeline.RunOutcome{
		RunID:        "run-1",
		Status:       pipeline.StatusSuccess,
		ManifestPath: "/data/photos.nzb",
		Duration:     42 * time.Second,
		StageResults: []stage.Result{
			stage.Succeeded("archive", "/data/photos.rar").WithDuration(10 * time.Second),
			stage.Succeeded("parity", "/data/photos.par2").WithDuration(12 * time.Second),
			stage.Succeeded("transmit", "/data/photos.nzb").WithDuration(20 * time.Second),
		},
	}

	summary := renderRunSummary(settings, outcome)

	for _, want := range []string{"SUCCESS", "photos", "alt.binaries.test", "/data/photos.nzb", "archive", "parity", "transmit"} {
		if !strings.Contains(summary, want) {
			t.Fatalf("summary missing %q:\n%s", want, summary)
		}
	}
}

func TestRenderRunSummaryMarksSimulatedStages(t *testing.T) {
	outcome := pipeline.RunOutcome{
		RunID:  "run-2",
		Status: pipeline.StatusSuccess,
		StageResults: []stage.Result{
			stage.Simulated("archive", "/data/photos.rar"),
		},
	}

	summary := renderRunSummary(runSettings{}, outcome)
	if !strings.Contains(summary, "simulated") {
		t.Fatalf("simulated marker missing:\n%s", summary)
	}
}

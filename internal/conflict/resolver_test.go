package conflict_test

import (
	"os"
	"path/filepath"
	"testing"

	"upapasta/internal/conflict"
)

func probeFor(existing ...string) conflict.Probe {
	set := make(map[string]struct{}, len(existing))
	for _, p := range existing {
		set[p] = struct{}{}
	}
	return func(path string) bool {
		_, ok := set[path]
		return ok
	}
}

func TestResolveProceedsWhenPathFree(t *testing.T) {
	decision, err := conflict.Resolve("{name}.nzb", "photos", "/data", conflict.PolicyRename, probeFor())
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if decision.Action != conflict.ActionProceed {
		t.Fatalf("unexpected action: %s", decision.Action)
	}
	if decision.Path != filepath.Join("/data", "photos.nzb") {
		t.Fatalf("unexpected path: %s", decision.Path)
	}
}

func TestResolveOverwriteKeepsPath(t *testing.T) {
	existing := filepath.Join("/data", "photos.nzb")
	decision, err := conflict.Resolve("{name}.nzb", "photos", "/data", conflict.PolicyOverwrite, probeFor(existing))
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if decision.Action != conflict.ActionProceed || decision.Path != existing {
		t.Fatalf("unexpected decision: %+v", decision)
	}
}

func TestResolveFailAborts(t *testing.T) {
	existing := filepath.Join("/data", "photos.nzb")
	decision, err := conflict.Resolve("{name}.nzb", "photos", "/data", conflict.PolicyFail, probeFor(existing))
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if decision.Action != conflict.ActionAbort {
		t.Fatalf("expected abort, got %s", decision.Action)
	}
}

func TestResolveRenameSkipsOccupiedSuffixes(t *testing.T) {
	existing := []string{
		filepath.Join("/data", "photos.nzb"),
		filepath.Join("/data", "photos_1.nzb"),
		filepath.Join("/data", "photos_2.nzb"),
	}
	decision, err := conflict.Resolve("{name}.nzb", "photos", "/data", conflict.PolicyRename, probeFor(existing...))
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if decision.Action != conflict.ActionRenamed {
		t.Fatalf("expected renamed, got %s", decision.Action)
	}
	if want := filepath.Join("/data", "photos_3.nzb"); decision.Path != want {
		t.Fatalf("unexpected path: got %s want %s", decision.Path, want)
	}
}

func TestResolveIsIdempotentWithoutFilesystemMutation(t *testing.T) {
	probe := probeFor(filepath.Join("/data", "photos.nzb"))
	first, err := conflict.Resolve("{name}.nzb", "photos", "/data", conflict.PolicyRename, probe)
	if err != nil {
		t.Fatalf("first Resolve returned error: %v", err)
	}
	second, err := conflict.Resolve("{name}.nzb", "photos", "/data", conflict.PolicyRename, probe)
	if err != nil {
		t.Fatalf("second Resolve returned error: %v", err)
	}
	if first != second {
		t.Fatalf("decisions differ: %+v vs %+v", first, second)
	}
}

func TestResolveAbsoluteTemplateIgnoresBaseDir(t *testing.T) {
	decision, err := conflict.Resolve("/out/{name}.nzb", "photos", "/data", conflict.PolicyRename, probeFor())
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if decision.Path != filepath.Join("/out", "photos.nzb") {
		t.Fatalf("unexpected path: %s", decision.Path)
	}
}

func TestResolveDoesNotCreateFiles(t *testing.T) {
	dir := t.TempDir()
	decision, err := conflict.Resolve("{name}.nzb", "photos", dir, conflict.PolicyRename, nil)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if _, err := os.Stat(decision.Path); !os.IsNotExist(err) {
		t.Fatalf("resolver must not create %s", decision.Path)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty dir, found %d entries", len(entries))
	}
}

func TestParsePolicy(t *testing.T) {
	if _, err := conflict.ParsePolicy("ask"); err == nil {
		t.Fatal("expected error for unknown policy")
	}
	policy, err := conflict.ParsePolicy(" Rename ")
	if err != nil {
		t.Fatalf("ParsePolicy returned error: %v", err)
	}
	if policy != conflict.PolicyRename {
		t.Fatalf("unexpected policy: %s", policy)
	}
}

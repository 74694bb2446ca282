package conflict

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"upapasta/internal/services"
)

// Policy governs what happens when the desired output path already exists.
type Policy string

const (
	PolicyRename    Policy = "rename"
	PolicyOverwrite Policy = "overwrite"
	PolicyFail      Policy = "fail"
)

// ParsePolicy validates a policy string.
func ParsePolicy(value string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(value))) {
	case PolicyRename:
		return PolicyRename, nil
	case PolicyOverwrite:
		return PolicyOverwrite, nil
	case PolicyFail:
		return PolicyFail, nil
	default:
		return "", services.Wrap(services.ErrValidation, "conflict", "parse policy",
			fmt.Sprintf("unknown conflict policy %q", value), nil)
	}
}

// Action describes the resolution the pipeline should take.
type Action string

const (
	ActionProceed Action = "proceed"
	ActionRenamed Action = "renamed"
	ActionAbort   Action = "abort"
)

// Decision is the resolved output path plus the action taken to reach it.
// Computed once, before any stage runs.
type Decision struct {
	Path   string
	Action Action
}

// Probe reports whether a path exists. Injectable for tests.
type Probe func(path string) bool

// ExistsProbe checks the real filesystem.
func ExistsProbe(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Rename probing is bounded so a pathological directory cannot stall the
// pre-flight check.
const maxRenameProbes = 10000

// Resolve expands the output template against the source name and applies the
// conflict policy. It only probes existence; it never creates or locks the
// resolved path.
func Resolve(template, sourceName, baseDir string, policy Policy, probe Probe) (Decision, error) {
	if probe == nil {
		probe = ExistsProbe
	}
	if strings.TrimSpace(sourceName) == "" {
		return Decision{}, services.Wrap(services.ErrValidation, "conflict", "expand template", "empty source name", nil)
	}

	expanded := strings.ReplaceAll(template, "{name}", sourceName)
	if strings.TrimSpace(expanded) == "" {
		return Decision{}, services.Wrap(services.ErrValidation, "conflict", "expand template", "empty output path", nil)
	}
	if !filepath.IsAbs(expanded) {
		expanded = filepath.Join(baseDir, expanded)
	}
	expanded = filepath.Clean(expanded)

	if !probe(expanded) {
		return Decision{Path: expanded, Action: ActionProceed}, nil
	}

	switch policy {
	case PolicyOverwrite:
		return Decision{Path: expanded, Action: ActionProceed}, nil
	case PolicyFail:
		return Decision{Path: expanded, Action: ActionAbort}, nil
	case PolicyRename:
		renamed, ok := nextFreePath(expanded, probe)
		if !ok {
			return Decision{}, services.Wrap(services.ErrConflict, "conflict", "rename probe",
				fmt.Sprintf("no free path near %s after %d attempts", expanded, maxRenameProbes), nil)
		}
		return Decision{Path: renamed, Action: ActionRenamed}, nil
	default:
		return Decision{}, services.Wrap(services.ErrValidation, "conflict", "apply policy",
			fmt.Sprintf("unknown conflict policy %q", policy), nil)
	}
}

// nextFreePath appends an incrementing numeric counter before the extension
// until an unused path is found: photos.nzb, photos_1.nzb, photos_2.nzb, ...
func nextFreePath(path string, probe Probe) (string, bool) {
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	for i := 1; i <= maxRenameProbes; i++ {
		candidate := fmt.Sprintf("%s_%d%s", base, i, ext)
		if !probe(candidate) {
			return candidate, true
		}
	}
	return "", false
}

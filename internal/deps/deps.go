package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"upapasta/internal/config"
)

// Requirement defines an external tool the pipeline relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Requirements returns the tool set for the configured pipeline. The parity
// backend that is not selected and ffprobe are optional: the run can proceed
// without them.
func Requirements(cfg *config.Config) []Requirement {
	tools := config.Default().Tools
	if cfg != nil {
		tools = cfg.Tools
	}
	backend := defaultBackendFor(cfg)
	return []Requirement{
		{Name: "rar", Command: tools.Rar, Description: "store-only archive creation"},
		{Name: "parpar", Command: tools.ParPar, Description: "PAR2 parity generation (backend A)", Optional: backend != "parpar"},
		{Name: "par2", Command: tools.Par2, Description: "PAR2 parity generation (backend B)", Optional: backend != "par2"},
		{Name: "nyuu", Command: tools.Nyuu, Description: "Usenet upload and NZB manifest"},
		{Name: "ffprobe", Command: tools.FFprobe, Description: "media attributes for the NFO descriptor", Optional: true},
	}
}

func defaultBackendFor(cfg *config.Config) string {
	if cfg == nil {
		return "parpar"
	}
	return cfg.Upload.Backend
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}

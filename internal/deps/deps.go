// Package deps verifies the external binaries vodstitch shells out to.
package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"vodstitch/internal/config"
)

// Requirement defines an external dependency vodstitch relies on.
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

// Requirements returns the binary checks for the configured toolchain.
func Requirements(cfg *config.Config) []Requirement {
	return []Requirement{
		{
			Name:        "TwitchDownloader",
			Command:     cfg.TwitchDownloaderBinary,
			Description: "Downloads VOD video and chat, renders chat replay video",
		},
		{
			Name:        "ffmpeg",
			Command:     cfg.FFmpegBinary,
			Description: "Composes video and chat side by side",
		},
		{
			Name:        "ffprobe",
			Command:     cfg.FFprobeBinary,
			Description: "Validates finished media files",
			Optional:    true,
		},
	}
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

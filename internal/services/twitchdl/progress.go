package twitchdl

import (
	"regexp"
	"strconv"
	"strings"
)

// TwitchDownloaderCLI status lines look like
// "[STATUS] - Downloading 42%" or "Rendering Video 13%".
var percentPattern = regexp.MustCompile(`(\d{1,3})%`)

func parseProgress(line string) (ProgressUpdate, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return ProgressUpdate{}, false
	}
	match := percentPattern.FindStringSubmatch(trimmed)
	if match == nil {
		return ProgressUpdate{}, false
	}
	percent, err := strconv.ParseFloat(match[1], 64)
	if err != nil || percent < 0 || percent > 100 {
		return ProgressUpdate{}, false
	}
	return ProgressUpdate{
		Stage:   progressStage(trimmed),
		Percent: percent,
		Message: trimmed,
	}, true
}

func progressStage(line string) string {
	lower := strings.ToLower(line)
	switch {
	case strings.Contains(lower, "finaliz"):
		return "finalizing"
	case strings.Contains(lower, "render"):
		return "rendering"
	case strings.Contains(lower, "download"):
		return "downloading"
	case strings.Contains(lower, "combin"):
		return "combining"
	default:
		return "working"
	}
}

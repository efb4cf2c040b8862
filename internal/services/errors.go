package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrGone          = errors.New("gone")
	ErrTimeout       = errors.New("timeout")
	ErrCancelled     = errors.New("cancelled")
	ErrTransient     = errors.New("transient failure")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// HintFromLog scans captured tool output for known failure signatures and
// returns remediation advice suitable for surfacing to the user.
func HintFromLog(log string) string {
	if log == "" {
		return ""
	}
	if strings.Contains(log, "Couldn't find a valid ICU package installed") || strings.Contains(log, "dotnet-missing-libicu") {
		return "Your container is missing ICU. Fix Dockerfile: add `libicu-dev` (or `libicu72`) to apt-get install, then redeploy."
	}
	if strings.Contains(log, "Quality not found") || strings.Contains(log, "Unable to find requested quality") {
		return "Requested quality isn't available for this VOD. Try `1080p` instead of `1080p60`, or leave quality on Auto/Best."
	}
	if strings.Contains(log, "429") || strings.Contains(log, "Too Many Requests") {
		return "Twitch is rate limiting you. Lower threads (2), and consider setting bandwidth."
	}
	return ""
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}

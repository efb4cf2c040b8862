package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a job.
type Status string

const (
	StatusPending       Status = "pending"
	StatusDownloading   Status = "downloading"
	StatusDownloaded    Status = "downloaded"
	StatusChatRendering Status = "chat_rendering"
	StatusChatRendered  Status = "chat_rendered"
	StatusCombining     Status = "combining"
	StatusCompleted     Status = "completed"
	StatusFailed        Status = "failed"
)

// CancelledMessage is the error message set on jobs cancelled by a user.
const CancelledMessage = "cancelled by user"

var allStatuses = []Status{
	StatusPending,
	StatusDownloading,
	StatusDownloaded,
	StatusChatRendering,
	StatusChatRendered,
	StatusCombining,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var processingStatuses = map[Status]struct{}{
	StatusDownloading:   {},
	StatusChatRendering: {},
	StatusCombining:     {},
}

// Rollback targets when a processing job is reclaimed or reset.
var stageRollbackTransitions = map[Status]Status{
	StatusDownloading:   StatusPending,
	StatusChatRendering: StatusDownloaded,
	StatusCombining:     StatusChatRendered,
}

// Job represents a download job persisted in SQLite.
type Job struct {
	ID              int64
	Key             string
	VodID           string
	Title           string
	Status          Status
	ParamsJSON      string
	VideoFile       string
	ChatJSONFile    string
	ChatVideoFile   string
	FinalFile       string
	ErrorMessage    string
	Hint            string
	LogText         string
	LastLogLine     string
	ProgressStage   string
	ProgressPercent float64
	ProgressMessage string
	CancelRequested bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
	StartedAt       *time.Time
	FinishedAt      *time.Time
	LastHeartbeat   *time.Time
}

// HealthSummary describes aggregated job counts per key lifecycle state.
type HealthSummary struct {
	Total      int
	Pending    int
	Processing int
	Failed     int
	Completed  int
}

// DatabaseHealth captures diagnostic information about the queue database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	TableExists      bool
	IntegrityCheck   bool
	TotalJobs        int
	Error            string
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsProcessing returns true when the status reflects an in-flight stage.
func (j Job) IsProcessing() bool {
	return IsProcessingStatus(j.Status)
}

// IsFinished reports whether the job reached a terminal state.
func (j Job) IsFinished() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

// IsProcessingStatus reports whether a status reflects an in-flight stage.
func IsProcessingStatus(status Status) bool {
	_, ok := processingStatuses[status]
	return ok
}

// ArtifactPaths lists every file the job may have written, final output last.
func (j Job) ArtifactPaths() []string {
	var paths []string
	for _, p := range []string{j.VideoFile, j.ChatJSONFile, j.ChatVideoFile, j.FinalFile} {
		if strings.TrimSpace(p) != "" {
			paths = append(paths, p)
		}
	}
	return paths
}

// IntermediatePaths lists files safe to delete once the final file exists.
func (j Job) IntermediatePaths() []string {
	var paths []string
	for _, p := range []string{j.VideoFile, j.ChatJSONFile, j.ChatVideoFile} {
		if strings.TrimSpace(p) != "" && p != j.FinalFile {
			paths = append(paths, p)
		}
	}
	return paths
}

// SetProgress updates all three progress fields together.
func (j *Job) SetProgress(stage, message string, percent float64) {
	j.ProgressStage = stage
	j.ProgressMessage = message
	j.ProgressPercent = percent
}

// SetFailed marks the job as failed with the given error message.
func (j *Job) SetFailed(message string) {
	now := time.Now().UTC()
	j.Status = StatusFailed
	j.ErrorMessage = message
	j.ProgressStage = "Failed"
	j.ProgressMessage = message
	j.ProgressPercent = 0
	j.LastHeartbeat = nil
	j.FinishedAt = &now
}

package api

import (
	"slices"
	"time"

	"vodstitch/internal/deps"
	"vodstitch/internal/queue"
	"vodstitch/internal/workflow"
)

// FromJob converts a queue record to its API representation.
func FromJob(job *queue.Job) Job {
	if job == nil {
		return Job{}
	}

	dto := Job{
		ID:     job.ID,
		Key:    job.Key,
		VodID:  job.VodID,
		Title:  job.Title,
		Status: string(job.Status),
		Progress: JobProgress{
			Stage:   job.ProgressStage,
			Percent: job.ProgressPercent,
			Message: job.ProgressMessage,
		},
		ErrorMessage:    job.ErrorMessage,
		Hint:            job.Hint,
		LastLogLine:     job.LastLogLine,
		FinalFile:       job.FinalFile,
		CancelRequested: job.CancelRequested,
	}
	if !job.CreatedAt.IsZero() {
		dto.CreatedAt = job.CreatedAt.UTC().Format(dateTimeFormat)
	}
	if !job.UpdatedAt.IsZero() {
		dto.UpdatedAt = job.UpdatedAt.UTC().Format(dateTimeFormat)
	}
	dto.StartedAt = formatOptionalTime(job.StartedAt)
	dto.FinishedAt = formatOptionalTime(job.FinishedAt)
	return dto
}

// FromJobDetail converts a queue record including its captured log.
func FromJobDetail(job *queue.Job) JobDetail {
	return JobDetail{
		Job: FromJob(job),
		Log: job.LogText,
	}
}

// FromJobs converts queue records into listing summaries, preserving order.
func FromJobs(jobs []*queue.Job) []JobSummary {
	if len(jobs) == 0 {
		return nil
	}
	out := make([]JobSummary, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, JobSummary{
			Key:        job.Key,
			VodID:      job.VodID,
			Status:     string(job.Status),
			Stage:      job.ProgressStage,
			StartedAt:  formatOptionalTime(job.StartedAt),
			FinishedAt: formatOptionalTime(job.FinishedAt),
		})
	}
	return out
}

// FromStatusSummary converts a workflow status summary to API payload.
func FromStatusSummary(summary workflow.StatusSummary) WorkflowStatus {
	healthNames := make([]string, 0, len(summary.StageHealth))
	for name := range summary.StageHealth {
		healthNames = append(healthNames, name)
	}
	slices.Sort(healthNames)

	health := make([]StageHealth, 0, len(healthNames))
	for _, name := range healthNames {
		h := summary.StageHealth[name]
		health = append(health, StageHealth{
			Name:   name,
			Ready:  h.Ready,
			Detail: h.Detail,
		})
	}

	stats := make(map[string]int, len(summary.QueueStats))
	for status, count := range summary.QueueStats {
		stats[string(status)] = count
	}

	wf := WorkflowStatus{
		Running:     summary.Running,
		QueueStats:  stats,
		StageHealth: health,
	}
	if summary.LastError != "" {
		wf.LastError = summary.LastError
	}
	if summary.LastJob != nil {
		last := FromJob(summary.LastJob)
		wf.LastJob = &last
	}
	return wf
}

// FromDependencyStatuses converts dependency probe results to API payloads.
func FromDependencyStatuses(statuses []deps.Status) []DependencyStatus {
	if len(statuses) == 0 {
		return nil
	}
	out := make([]DependencyStatus, 0, len(statuses))
	for _, status := range statuses {
		out = append(out, DependencyStatus{
			Name:        status.Name,
			Command:     status.Command,
			Description: status.Description,
			Optional:    status.Optional,
			Available:   status.Available,
			Detail:      status.Detail,
		})
	}
	return out
}

// MergeQueueStats normalizes queue stats so every known status has an entry.
func MergeQueueStats(stats map[queue.Status]int) map[string]int {
	merged := make(map[string]int, len(queue.AllStatuses()))
	for _, status := range queue.AllStatuses() {
		merged[string(status)] = 0
	}
	for status, count := range stats {
		merged[string(status)] = count
	}
	return merged
}

func formatOptionalTime(value *time.Time) string {
	if value == nil || value.IsZero() {
		return ""
	}
	return value.UTC().Format(dateTimeFormat)
}

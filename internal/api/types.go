package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Job describes a queue entry in a transport-friendly format.
type Job struct {
	ID              int64       `json:"id"`
	Key             string      `json:"job_id"`
	VodID           string      `json:"vod_id"`
	Title           string      `json:"title,omitempty"`
	Status          string      `json:"status"`
	Progress        JobProgress `json:"progress"`
	ErrorMessage    string      `json:"error,omitempty"`
	Hint            string      `json:"hint,omitempty"`
	LastLogLine     string      `json:"last_log_line,omitempty"`
	FinalFile       string      `json:"final_file,omitempty"`
	CancelRequested bool        `json:"cancel_requested"`
	CreatedAt       string      `json:"created_at,omitempty"`
	UpdatedAt       string      `json:"updated_at,omitempty"`
	StartedAt       string      `json:"started_at,omitempty"`
	FinishedAt      string      `json:"finished_at,omitempty"`
}

// JobProgress captures stage progress information for a queue entry.
type JobProgress struct {
	Stage   string  `json:"stage"`
	Percent float64 `json:"percent"`
	Message string  `json:"message"`
}

// JobDetail extends Job with the captured tool log.
type JobDetail struct {
	Job
	Log string `json:"log,omitempty"`
}

// JobSummary is the compact listing shape used by the jobs index.
type JobSummary struct {
	Key        string `json:"job_id"`
	VodID      string `json:"vod_id"`
	Status     string `json:"status"`
	Stage      string `json:"stage"`
	StartedAt  string `json:"started_at,omitempty"`
	FinishedAt string `json:"finished_at,omitempty"`
}

// WorkflowStatus summarizes workflow execution state.
type WorkflowStatus struct {
	Running     bool           `json:"running"`
	QueueStats  map[string]int `json:"queue_stats"`
	LastError   string         `json:"last_error,omitempty"`
	LastJob     *Job           `json:"last_job,omitempty"`
	StageHealth []StageHealth  `json:"stage_health"`
}

// StageHealth mirrors readiness reporting for workflow stages.
type StageHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool               `json:"running"`
	PID          int                `json:"pid"`
	QueueDBPath  string             `json:"queue_db_path"`
	LockFilePath string             `json:"lock_file_path"`
	Workflow     WorkflowStatus     `json:"workflow"`
	Dependencies []DependencyStatus `json:"dependencies"`
}

// JobListResponse wraps a collection of job summaries.
type JobListResponse struct {
	Jobs []JobSummary `json:"jobs"`
}

// CreateJobResponse returns the key of a freshly queued job.
type CreateJobResponse struct {
	Key string `json:"job_id"`
}

// OKResponse is the generic acknowledgement payload.
type OKResponse struct {
	OK bool `json:"ok"`
}

// HealthResponse answers liveness probes.
type HealthResponse struct {
	OK        bool  `json:"ok"`
	Timestamp int64 `json:"ts"`
}

// ErrorResponse carries a human-readable failure detail.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

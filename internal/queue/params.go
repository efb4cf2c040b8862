package queue

import (
	"encoding/json"
	"fmt"
)

// Params captures the validated request parameters a job was created with.
// They are persisted as JSON on the job row so restarting the daemon never
// loses the information needed to rebuild external commands.
type Params struct {
	Quality         string  `json:"quality"`
	Threads         int     `json:"threads"`
	BandwidthKiB    int     `json:"bandwidth_kib,omitempty"`
	Beginning       string  `json:"beginning,omitempty"`
	Ending          string  `json:"ending,omitempty"`
	IncludeChat     bool    `json:"include_chat"`
	ChatWidth       int     `json:"chat_width"`
	ChatHeight      int     `json:"chat_height"`
	FontSize        int     `json:"font_size"`
	Framerate       int     `json:"framerate"`
	UpdateRate      float64 `json:"update_rate"`
	BackgroundColor string  `json:"background_color"`
	Outline         bool    `json:"outline"`
}

// Marshal serializes params for storage.
func (p Params) Marshal() (string, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshal job params: %w", err)
	}
	return string(raw), nil
}

// ParseParams decodes the stored parameter JSON of a job.
func ParseParams(raw string) (Params, error) {
	var params Params
	if raw == "" {
		return params, fmt.Errorf("job has no stored parameters")
	}
	if err := json.Unmarshal([]byte(raw), &params); err != nil {
		return params, fmt.Errorf("parse job params: %w", err)
	}
	return params, nil
}

// Params decodes the job's stored parameters.
func (j *Job) Params() (Params, error) {
	return ParseParams(j.ParamsJSON)
}

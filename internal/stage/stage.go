// Package stage defines the contract between the workflow manager and the
// per-stage handlers that move jobs through the pipeline.
package stage

import (
	"context"

	"vodstitch/internal/queue"
)

// Handler describes the contract the workflow manager needs from each stage.
type Handler interface {
	// Prepare derives stage inputs (paths, labels) and mutates the job
	// before execution; the manager persists the job afterwards.
	Prepare(context.Context, *queue.Job) error
	// Execute performs the stage work, updating job progress as it goes.
	Execute(context.Context, *queue.Job) error
	// HealthCheck reports whether the stage could run right now.
	HealthCheck(context.Context) Health
}

// Health summarizes the readiness of a workflow stage.
type Health struct {
	Name   string
	Ready  bool
	Detail string
}

// Healthy constructs a ready Health record.
func Healthy(name string) Health {
	return Health{Name: name, Ready: true}
}

// Unhealthy constructs an unhealthy Health record with context detail.
func Unhealthy(name, detail string) Health {
	return Health{Name: name, Ready: false, Detail: detail}
}

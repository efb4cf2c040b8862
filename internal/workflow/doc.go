// Package workflow advances queue jobs through the processing pipeline.
//
// The Manager polls the queue, reclaims stale work via heartbeats, and feeds
// jobs into the registered stage handlers (downloader, chat renderer,
// composer) while capturing progress and failure metadata. After a job
// reaches a terminal state the manager enforces the retention cap so old
// outputs do not fill the download volume.
package workflow

// Package api defines wire-format types and converters for the HTTP and IPC
// surface. It validates incoming job requests against the same rules the
// download tools expect and translates internal queue models into
// transport-friendly DTOs.
//
// DTOs use camelCase JSON tags. Internal enums (queue.Status) are exposed as
// lowercase strings. Timestamps use RFC3339 with milliseconds.
package api

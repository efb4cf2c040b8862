// Package services holds shared helpers consumed by the workflow stage
// handlers and external tool integrations: context annotation for logging,
// structured error markers, and error hint classification for user-facing
// failure messages.
package services

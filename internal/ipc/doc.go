// Package ipc provides local daemon control over a Unix domain socket using
// JSON-RPC. The CLI talks to a running daemon through this channel so queue
// maintenance never races the worker loop.
package ipc

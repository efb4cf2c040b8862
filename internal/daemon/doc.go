// Package daemon hosts the long-running vodstitch process: it enforces
// single-instance execution with a lock file, runs the workflow manager,
// and serves the HTTP job API.
package daemon

// Package twitchdl wraps the TwitchDownloaderCLI binary.
//
// The client builds the videodownload, chatdownload, and chatrender command
// lines, streams process output line by line to a caller-provided sink, and
// parses the CLI's progress output. The binary's argument contract is a
// fixed, version-pinned external surface; nothing here inspects media
// itself. Command execution is abstracted behind Executor so stages can be
// tested without the binary installed.
package twitchdl

package models

import "time"

// RunStatus is the outcome of one admin bridge invocation.
type RunStatus string

const (
	RunStatusSuccess      RunStatus = "success"
	RunStatusScriptFailed RunStatus = "script_failed"
	RunStatusSpawnFailed  RunStatus = "spawn_failed"
)

// BridgeRun records a single admin bridge operation and its captured output.
type BridgeRun struct {
	ID         string    `json:"id"`
	Op         string    `json:"op"`
	Repo       string    `json:"repo,omitempty"`
	Status     RunStatus `json:"status"`
	ExitCode   int       `json:"exit_code"`
	Stdout     string    `json:"stdout,omitempty"`
	Stderr     string    `json:"stderr,omitempty"`
	Message    string    `json:"message"`
	StartedAt  time.Time `json:"started_at"`
	DurationMs int64     `json:"duration_ms"`
}

// Package daemon tracks the running portfolio server through a state file.
package daemon

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// State describes a running server. It is stored as JSON in the PID file.
type State struct {
	PID       int       `json:"pid"`
	Port      int       `json:"port"`
	Addr      string    `json:"addr,omitempty"`
	CSV       string    `json:"csv,omitempty"`
	StartedAt time.Time `json:"started_at"`
}

// URL returns the base URL the server listens on.
func (s State) URL() string {
	host := "localhost"
	if s.Addr != "" {
		host = s.Addr
	}
	return fmt.Sprintf("http://%s:%d", host, s.Port)
}

// PIDFile manages the server state file.
type PIDFile struct {
	Path string
}

// NewPIDFile creates a PIDFile manager for the given path.
func NewPIDFile(path string) *PIDFile {
	return &PIDFile{Path: path}
}

// Write records the current process with the given listen port.
func (p *PIDFile) Write(port int, csv string) error {
	return p.WriteState(State{PID: os.Getpid(), Port: port, CSV: csv, StartedAt: time.Now().UTC()})
}

// WriteState writes st to the file, creating the parent directory if needed.
func (p *PIDFile) WriteState(st State) error {
	if err := os.MkdirAll(filepath.Dir(p.Path), 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(p.Path, append(data, '\n'), 0o644)
}

// ReadState reads the file. A bare integer is accepted as a PID with no
// other details.
func (p *PIDFile) ReadState() (State, error) {
	data, err := os.ReadFile(p.Path)
	if err != nil {
		return State{}, err
	}
	trimmed := strings.TrimSpace(string(data))
	if pid, err := strconv.Atoi(trimmed); err == nil {
		return State{PID: pid}, nil
	}
	var st State
	if err := json.Unmarshal([]byte(trimmed), &st); err != nil || st.PID <= 0 {
		if err == nil {
			err = fmt.Errorf("missing pid")
		}
		return State{}, fmt.Errorf("invalid PID file content: %w", err)
	}
	return st, nil
}

// Read returns the PID from the file.
func (p *PIDFile) Read() (int, error) {
	st, err := p.ReadState()
	if err != nil {
		return 0, err
	}
	return st.PID, nil
}

// Remove deletes the PID file.
func (p *PIDFile) Remove() error {
	return os.Remove(p.Path)
}

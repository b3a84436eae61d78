// Package config loads the flock definitions of a project.
//
// A project file lists flocks, each a named group of processes started
// together. Files are YAML (flok.yaml, flok.yml) or TOML (flok.toml):
//
//	flocks:
//	  - display_name: Backend
//	    processes:
//	      - display_name: API
//	        command: go run ./cmd/api
//	        watch: true
//	      - display_name: Worker
//	        command: go run ./cmd/worker
//	        watch:
//	          debounce_seconds: 0.5
//
// The definitions are immutable once loaded.
package config

import (
	"time"
)

// Debounce used when watch is given as a plain true.
const DefaultDebounce = 2 * time.Second

// Debounce used when watch is a mapping without debounce_seconds.
const DefaultMappingDebounce = time.Second

// FlockSet is the ordered list of flocks; order is display order.
type FlockSet struct {
	Flocks []Flock
}

// Flock is a named group of processes launched together.
type Flock struct {
	DisplayName string
	Processes   []Process
}

// Process describes one command of a flock.
type Process struct {
	DisplayName string
	// Command is a shell command line, run through the user's shell.
	Command string
	Watch   Watch
}

// Watch controls restart-on-change for a process.
type Watch struct {
	Enabled  bool
	Debounce time.Duration
}

// Disabled reports whether auto-restart is off.
func (w Watch) Disabled() bool {
	return !w.Enabled
}

// ProcessCount returns the number of processes across all flocks.
func (s *FlockSet) ProcessCount() int {
	n := 0
	for _, f := range s.Flocks {
		n += len(f.Processes)
	}
	return n
}

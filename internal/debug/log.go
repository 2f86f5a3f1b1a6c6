// Package debug is a small category logger for load-time and host-side
// diagnostics. It is never used on the render thread.
package debug

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

type sink struct {
	mu   sync.Mutex
	w    io.Writer
	f    *os.File // set when logging to a file, synced per line
	last map[string]uint64
}

var std sink

// Enable starts logging to path, truncating it. It does nothing when
// logging is already on.
func Enable(path string) error {
	std.mu.Lock()
	defer std.mu.Unlock()
	if std.w != nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	std.w, std.f = f, f
	std.line("debug", "log opened")
	return nil
}

// EnableWriter logs to w instead of a file.
func EnableWriter(w io.Writer) {
	std.mu.Lock()
	defer std.mu.Unlock()
	std.closeFile()
	std.w = w
}

// Disable stops logging and closes the log file.
func Disable() {
	std.mu.Lock()
	defer std.mu.Unlock()
	std.closeFile()
	std.w = nil
	std.last = nil
}

func Enabled() bool {
	std.mu.Lock()
	defer std.mu.Unlock()
	return std.w != nil
}

// Log writes one line under category.
func Log(category, format string, args ...any) {
	std.mu.Lock()
	defer std.mu.Unlock()
	if std.w != nil {
		std.line(category, fmt.Sprintf(format, args...))
	}
}

// Rising logs a monotonic counter, such as an engine stat, only when it has
// grown since the last call for the same category and name. Hosts poll it
// from their UI or reporting loop.
func Rising(category, name string, v uint64) {
	std.mu.Lock()
	defer std.mu.Unlock()
	if std.w == nil {
		return
	}
	key := category + "/" + name
	prev, seen := std.last[key]
	if seen && v <= prev {
		return
	}
	if std.last == nil {
		std.last = map[string]uint64{}
	}
	std.last[key] = v
	if v > 0 {
		std.line(category, fmt.Sprintf("%s %d (+%d)", name, v, v-prev))
	}
}

func (s *sink) line(category, msg string) {
	fmt.Fprintf(s.w, "%s %-10s %s\n", time.Now().Format("15:04:05.000"), category, msg)
	if s.f != nil {
		s.f.Sync()
	}
}

func (s *sink) closeFile() {
	if s.f != nil {
		s.f.Close()
		s.f = nil
	}
}

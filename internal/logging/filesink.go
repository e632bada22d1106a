package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Per-concern append-only log files (error.log, cmd_error.log,
// respond_error.log, stats.log). Lines are timestamped; a failed write
// is reported to the console and otherwise swallowed so logging can
// never take down the pipeline.

var (
	mu     sync.Mutex
	logDir = "."
)

// SetLogDir sets the directory file logs are written under.
func SetLogDir(dir string) {
	mu.Lock()
	defer mu.Unlock()
	if dir != "" {
		logDir = dir
	}
}

// ToFile appends one timestamped line to the named log file.
func ToFile(name, line string) {
	if name == "" {
		name = "other.log"
	}
	stamp := time.Now().Format("01/02/06 15:04:05")
	mu.Lock()
	path := filepath.Join(logDir, name)
	mu.Unlock()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		fmt.Fprintln(os.Stderr, "log write failed:", err)
		return
	}
	defer f.Close()
	if _, err := fmt.Fprintf(f, "%s %s\n", stamp, line); err != nil {
		fmt.Fprintln(os.Stderr, "log write failed:", err)
	}
}

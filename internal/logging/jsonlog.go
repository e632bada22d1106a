package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"
)

// JSON lines on stdout carry the console stream; the per-concern files
// in filesink.go (error.log, cmd_error.log, ...) hold the append logs
// the site tooling tails. ErrorTo feeds both at once.

const app = "skeetstats"

// out is swappable so tests can capture the stream.
var out io.Writer = os.Stdout

type entry struct {
	App     string         `json:"app"`
	Level   string         `json:"level"`
	Time    string         `json:"time"`
	Message string         `json:"message"`
	Fields  map[string]any `json:"fields,omitempty"`
}

func Log(level, msg string, fields map[string]any) {
	e := entry{App: app, Level: level, Time: time.Now().UTC().Format(time.RFC3339Nano), Message: msg, Fields: fields}
	b, _ := json.Marshal(e)
	fmt.Fprintln(out, string(b))
}

func Info(msg string, fields map[string]any)  { Log("info", msg, fields) }
func Error(msg string, fields map[string]any) { Log("error", msg, fields) }

// ErrorTo reports err on the console stream and appends it to the
// named per-concern log file.
func ErrorTo(concern, msg string, err error) {
	Error(msg, map[string]any{"error": err.Error()})
	ToFile(concern, msg+": "+err.Error())
}

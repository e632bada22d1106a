package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	out = &buf
	t.Cleanup(func() { out = os.Stdout })
	return &buf
}

func TestLogEmitsAppAndLevel(t *testing.T) {
	buf := capture(t)
	Info("starting", map[string]any{"handle": "bot.bsky.social"})
	var e entry
	if err := json.Unmarshal(buf.Bytes(), &e); err != nil {
		t.Fatal(err)
	}
	if e.App != "skeetstats" || e.Level != "info" || e.Message != "starting" {
		t.Fatalf("entry: %+v", e)
	}
	if e.Fields["handle"] != "bot.bsky.social" {
		t.Fatalf("fields: %+v", e.Fields)
	}
}

func TestErrorToWritesBothSinks(t *testing.T) {
	buf := capture(t)
	dir := t.TempDir()
	SetLogDir(dir)
	t.Cleanup(func() { SetLogDir(".") })

	ErrorTo("error.log", "Error fetching stats", errors.New("boom"))

	if !strings.Contains(buf.String(), `"level":"error"`) {
		t.Fatalf("console stream: %s", buf.String())
	}
	b, err := os.ReadFile(filepath.Join(dir, "error.log"))
	if err != nil {
		t.Fatal(err)
	}
	line := strings.TrimRight(string(b), "\n")
	// MM/DD/YY HH:MM:SS prefix, then the concern line
	ok, _ := regexp.MatchString(`^\d{2}/\d{2}/\d{2} \d{2}:\d{2}:\d{2} Error fetching stats: boom$`, line)
	if !ok {
		t.Fatalf("file line: %q", line)
	}
}

func TestToFileAppends(t *testing.T) {
	dir := t.TempDir()
	SetLogDir(dir)
	t.Cleanup(func() { SetLogDir(".") })
	ToFile("stats.log", "error processing did:plc:a: boom")
	ToFile("stats.log", "error processing did:plc:b: boom")
	b, err := os.ReadFile(filepath.Join(dir, "stats.log"))
	if err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(string(b), "\n"); n != 2 {
		t.Fatalf("expected 2 lines, got %d: %s", n, b)
	}
}

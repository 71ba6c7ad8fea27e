// Copyright 2026 The Pacwrap Authors
// SPDX-License-Identifier: Apache-2.0

package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func openTestLog(t *testing.T) (*TransactionLog, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pacwrap.log")
	log, err := Open(path, "pacwrap", "op-1234")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { log.Close() })
	log.now = func() time.Time {
		return time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	}
	return log, path
}

func TestRecordFormat(t *testing.T) {
	t.Parallel()

	log, path := openTestLog(t)
	if err := log.Record(Info, "editor", "installed %d packages", 3); err != nil {
		t.Fatalf("Record: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	want := "2026-03-14T09:26:53Z pacwrap op-1234 [INFO] editor installed 3 packages\n"
	if string(data) != want {
		t.Errorf("log line = %q, want %q", data, want)
	}
}

func TestRecordFlattensNewlines(t *testing.T) {
	t.Parallel()

	log, path := openTestLog(t)
	if err := log.Record(Warn, "", "multi\nline\nmessage"); err != nil {
		t.Fatalf("Record: %v", err)
	}
	data, _ := os.ReadFile(path)
	if got := strings.Count(string(data), "\n"); got != 1 {
		t.Errorf("record produced %d lines, want 1", got)
	}
	if !strings.Contains(string(data), "[WARN] - multi line message") {
		t.Errorf("unexpected line: %q", data)
	}
}

func TestAppendAcrossOpens(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "pacwrap.log")
	for i := 0; i < 2; i++ {
		log, err := Open(path, "pacwrap", "op")
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		if err := log.Record(Info, "base", "pass"); err != nil {
			t.Fatalf("Record: %v", err)
		}
		log.Close()
	}
	lines, err := Tail(path, 10)
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if len(lines) != 2 {
		t.Errorf("Tail returned %d lines, want 2", len(lines))
	}
}

func TestTailLimits(t *testing.T) {
	t.Parallel()

	log, path := openTestLog(t)
	for i := 0; i < 5; i++ {
		if err := log.Record(Info, "base", "line %d", i); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	lines, err := Tail(path, 2)
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if len(lines) != 2 || !strings.HasSuffix(lines[1], "line 4") {
		t.Errorf("Tail = %q", lines)
	}
}

func TestTailEmpty(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "pacwrap.log")
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	lines, err := Tail(path, 5)
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if len(lines) != 0 {
		t.Errorf("Tail on empty file = %q", lines)
	}
}

// Copyright 2026 The Pacwrap Authors
// SPDX-License-Identifier: Apache-2.0

package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Level mirrors the severity of a transaction log line.
type Level int

const (
	Info Level = iota
	Warn
	Error
	Debug
)

func (l Level) String() string {
	switch l {
	case Info:
		return "INFO"
	case Warn:
		return "WARN"
	case Error:
		return "ERROR"
	case Debug:
		return "DEBUG"
	default:
		return "INFO"
	}
}

// TransactionLog appends timestamped records to the shared pacwrap
// log file. Safe for concurrent use; each Record is a single write so
// lines from concurrent invocations never interleave mid-line.
type TransactionLog struct {
	mu     sync.Mutex
	file   *os.File
	opID   string
	module string

	// now is replaced in tests for reproducible timestamps.
	now func() time.Time
}

// Open opens (creating if needed) the transaction log at path. The
// module name identifies the writing binary ("pacwrap" or
// "pacwrap-agent"); opID ties together all records of one invocation.
func Open(path, module, opID string) (*TransactionLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening transaction log: %w", err)
	}
	return &TransactionLog{file: file, opID: opID, module: module, now: time.Now}, nil
}

// Record appends one line to the log. Container may be empty for
// fleet-level records. Newlines in the message are flattened so a
// record is always exactly one line.
func (l *TransactionLog) Record(level Level, container, format string, args ...any) error {
	message := fmt.Sprintf(format, args...)
	message = strings.ReplaceAll(message, "\n", " ")
	if container == "" {
		container = "-"
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	line := fmt.Sprintf("%s %s %s [%s] %s %s\n",
		l.now().UTC().Format(time.RFC3339), l.module, l.opID, level, container, message)
	if _, err := l.file.WriteString(line); err != nil {
		return fmt.Errorf("appending to transaction log: %w", err)
	}
	return nil
}

// Close closes the underlying file.
func (l *TransactionLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

// Tail returns the last n lines of the log file at path. Used by
// "pacwrap log". Returns fewer lines when the file is shorter.
func Tail(path string, n int) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading transaction log: %w", err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) == 1 && lines[0] == "" {
		return nil, nil
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines, nil
}

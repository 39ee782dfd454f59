package runlog

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// ErrClosed is returned by Append after Close.
var ErrClosed = errors.New("runlog: closed")

// maxLineSize bounds a single JSONL record when reading.
const maxLineSize = 16 * 1024 * 1024

// JSONLLogger appends records to a newline-delimited JSON file.
type JSONLLogger struct {
	mu   sync.Mutex
	path string
	f    *os.File
}

// OpenJSONL opens path for appending, creating it and its directory if
// needed. Existing content is never truncated.
func OpenJSONL(path string) (*JSONLLogger, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create run log directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open run log: %w", err)
	}
	return &JSONLLogger{path: path, f: f}, nil
}

func (l *JSONLLogger) Path() string { return l.path }

// Append writes rec as one line and syncs it to disk before returning.
func (l *JSONLLogger) Append(rec JobRecord) error {
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode job record %s: %w", rec.JobID, err)
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.f == nil {
		return ErrClosed
	}
	if _, err := l.f.Write(line); err != nil {
		return fmt.Errorf("append job record %s: %w", rec.JobID, err)
	}
	if err := l.f.Sync(); err != nil {
		return fmt.Errorf("sync run log: %w", err)
	}
	return nil
}

func (l *JSONLLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.f == nil {
		return nil
	}
	err := l.f.Close()
	l.f = nil
	return err
}

// Read decodes every record from a JSONL stream. Blank lines are skipped.
// A malformed final line without a trailing newline is treated as a torn
// write and ignored; any other malformed line is an error.
func Read(r io.Reader) ([]JobRecord, error) {
	var records []JobRecord

	br := bufio.NewReaderSize(r, 64*1024)
	lineNo := 0
	for {
		line, err := br.ReadBytes('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return records, fmt.Errorf("read run log: %w", err)
		}
		atEOF := errors.Is(err, io.EOF)
		if len(line) > 0 {
			lineNo++
		}
		if len(line) > maxLineSize {
			return records, fmt.Errorf("run log line %d exceeds %d bytes", lineNo, maxLineSize)
		}

		trimmed := bytes.TrimSpace(line)
		if len(trimmed) > 0 {
			var rec JobRecord
			if decodeErr := json.Unmarshal(trimmed, &rec); decodeErr != nil {
				if atEOF && !bytes.HasSuffix(line, []byte("\n")) {
					return records, nil
				}
				return records, fmt.Errorf("run log line %d: %w", lineNo, decodeErr)
			}
			records = append(records, rec)
		}

		if atEOF {
			return records, nil
		}
	}
}

// ReadFile reads every record in the JSONL file at path.
func ReadFile(path string) ([]JobRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open run log: %w", err)
	}
	defer f.Close()
	return Read(f)
}

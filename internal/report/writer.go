// Package report persists run output: a human-readable per-run text file
// and an optional sqlite history of successes across runs.
package report

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iptvterm/terminator/internal/check"
)

const ruleLine = "----------------------------------------"

// Writer appends success records to a single timestamped file, one file
// per run. Appends are mutex-protected so scheduler workers can write
// concurrently; record order in the file is not a contract.
type Writer struct {
	mu    sync.Mutex
	f     *os.File
	w     *bufio.Writer
	path  string
	runID string
	count int
}

// NewWriter creates the run report in dir, falling back to the working
// directory when dir is unusable.
func NewWriter(dir string) (*Writer, error) {
	runID := uuid.NewString()
	now := time.Now()
	name := "terminator_report_" + now.Format("20060102_150405") + ".txt"

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		path = name
		f, err = os.Create(path)
		if err != nil {
			return nil, fmt.Errorf("create report: %w", err)
		}
	}
	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "IPTV Terminator report\n")
	fmt.Fprintf(w, "Run: %s\n", runID)
	fmt.Fprintf(w, "Date: %s\n", now.Format("2006-01-02 15:04:05"))
	fmt.Fprintln(w, ruleLine)
	return &Writer{f: f, w: w, path: path, runID: runID}, nil
}

// Path returns where the report is being written.
func (w *Writer) Path() string { return w.path }

// RunID returns the report's run identifier.
func (w *Writer) RunID() string { return w.runID }

// Count returns how many records were appended.
func (w *Writer) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// Append writes one success record: labeled URL/USER-or-MAC/PASS/EXP lines
// separated from the next record by a rule line.
func (w *Writer) Append(r check.VerificationResult) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintf(w.w, "URL: %s\n", r.Host)
	if r.Username != "" {
		fmt.Fprintf(w.w, "USER: %s\n", r.Username)
	} else {
		fmt.Fprintf(w.w, "MAC: %s\n", r.MAC)
	}
	fmt.Fprintf(w.w, "PASS: %s\n", r.Password)
	fmt.Fprintf(w.w, "EXP: %s\n", r.Expiry)
	fmt.Fprintln(w.w, ruleLine)
	w.count++
	return w.w.Flush()
}

// Close flushes and closes the report file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.w.Flush(); err != nil {
		w.f.Close()
		return err
	}
	return w.f.Close()
}

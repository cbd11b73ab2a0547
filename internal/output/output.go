// Package output writes scan results in text, JSON, JSONL or CSV form.
package output

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/maxvaer/smugprobe/internal/detector"
)

// Record is one check result tagged with the scan and target it belongs to.
type Record struct {
	ScanID string `json:"scan_id"`
	Target string `json:"target"`
	detector.CheckResult
}

// Stats holds aggregate scan statistics.
type Stats struct {
	Targets    int
	Checks     int
	Vulnerable int
	Failed     int // checks without a result (baseline errors)
	Duration   time.Duration
}

// Writer is implemented by each output format.
type Writer interface {
	WriteHeader() error
	WriteResult(rec *Record) error
	WriteFooter(stats Stats) error
	Close() error
}

// New returns the writer for format, writing to outputFile or stdout.
func New(format, outputFile string, noColor bool) (Writer, error) {
	w, closer, err := create(outputFile)
	if err != nil {
		return nil, err
	}
	switch format {
	case "", "text":
		return &TextWriter{w: w, closer: closer, noColor: noColor || outputFile != ""}, nil
	case "json":
		return &JSONWriter{w: w, closer: closer}, nil
	case "jsonl":
		return &JSONWriter{w: w, closer: closer, lines: true}, nil
	case "csv":
		return newCSVWriter(w, closer), nil
	}
	if closer != nil {
		closer.Close()
	}
	return nil, fmt.Errorf("unknown output format %q", format)
}

func create(outputFile string) (io.Writer, io.Closer, error) {
	if outputFile == "" {
		return os.Stdout, nil, nil
	}
	f, err := os.Create(outputFile)
	if err != nil {
		return nil, nil, fmt.Errorf("creating output file: %w", err)
	}
	return f, f, nil
}

func closeIfSet(c io.Closer) error {
	if c != nil {
		return c.Close()
	}
	return nil
}

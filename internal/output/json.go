package output

import (
	"encoding/json"
	"io"
)

// JSONWriter writes results as a JSON array, or one object per line when
// lines is set.
type JSONWriter struct {
	w       io.Writer
	closer  io.Closer
	lines   bool
	entries []*Record
}

func (j *JSONWriter) WriteHeader() error { return nil }

func (j *JSONWriter) WriteResult(rec *Record) error {
	if j.lines {
		return json.NewEncoder(j.w).Encode(rec)
	}
	j.entries = append(j.entries, rec)
	return nil
}

func (j *JSONWriter) WriteFooter(_ Stats) error {
	if j.lines {
		return nil
	}
	if j.entries == nil {
		j.entries = []*Record{}
	}
	enc := json.NewEncoder(j.w)
	enc.SetIndent("", "  ")
	return enc.Encode(j.entries)
}

func (j *JSONWriter) Close() error { return closeIfSet(j.closer) }

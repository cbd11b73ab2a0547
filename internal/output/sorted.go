package output

import (
	"slices"
	"strings"
)

// SortedWriter buffers results and replays them sorted by a field when
// WriteFooter is called. It wraps any other Writer.
type SortedWriter struct {
	inner   Writer
	sortBy  string
	results []*Record
}

// SortKeys lists the accepted sortBy values.
var SortKeys = []string{"target", "check", "vulnerable"}

// NewSortedWriter wraps inner and buffers results for sorted replay.
func NewSortedWriter(inner Writer, sortBy string) *SortedWriter {
	return &SortedWriter{inner: inner, sortBy: sortBy}
}

func (w *SortedWriter) WriteHeader() error {
	return w.inner.WriteHeader()
}

func (w *SortedWriter) WriteResult(rec *Record) error {
	w.results = append(w.results, rec)
	return nil
}

func (w *SortedWriter) WriteFooter(stats Stats) error {
	slices.SortStableFunc(w.results, func(a, b *Record) int {
		switch w.sortBy {
		case "target":
			return strings.Compare(a.Target, b.Target)
		case "check":
			return strings.Compare(a.CheckType, b.CheckType)
		case "vulnerable":
			// Vulnerable first.
			return boolRank(b.Vulnerable) - boolRank(a.Vulnerable)
		default:
			return 0
		}
	})
	for _, r := range w.results {
		if err := w.inner.WriteResult(r); err != nil {
			return err
		}
	}
	return w.inner.WriteFooter(stats)
}

func (w *SortedWriter) Close() error {
	return w.inner.Close()
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}

package output

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"
)

// CSVWriter writes results in CSV format.
type CSVWriter struct {
	w      *csv.Writer
	closer io.Closer
}

func newCSVWriter(w io.Writer, closer io.Closer) *CSVWriter {
	return &CSVWriter{w: csv.NewWriter(w), closer: closer}
}

func (c *CSVWriter) WriteHeader() error {
	return c.w.Write([]string{
		"scan_id", "target", "check_type", "vulnerable", "payload_index",
		"normal_status", "attack_status", "normal_duration_ms", "attack_duration_ms",
		"payload_errors", "timestamp",
	})
}

func (c *CSVWriter) WriteResult(rec *Record) error {
	var index, attackStatus, attackMS string
	if rec.PayloadIndex != nil {
		index = strconv.Itoa(*rec.PayloadIndex)
	}
	if rec.AttackStatus != nil {
		attackStatus = *rec.AttackStatus
	}
	if rec.AttackDurationMS != nil {
		attackMS = strconv.FormatUint(*rec.AttackDurationMS, 10)
	}
	return c.w.Write([]string{
		rec.ScanID,
		rec.Target,
		rec.CheckType,
		strconv.FormatBool(rec.Vulnerable),
		index,
		rec.NormalStatus,
		attackStatus,
		strconv.FormatUint(rec.NormalDurationMS, 10),
		attackMS,
		strconv.Itoa(rec.PayloadErrors),
		rec.Timestamp.Format(time.RFC3339Nano),
	})
}

func (c *CSVWriter) WriteFooter(_ Stats) error {
	c.w.Flush()
	return c.w.Error()
}

func (c *CSVWriter) Close() error { return closeIfSet(c.closer) }

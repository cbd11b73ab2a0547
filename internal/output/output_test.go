package output

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxvaer/smugprobe/internal/detector"
)

var stamp = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func vulnerableRecord() *Record {
	idx, status, ms := 4, "Connection Timeout", uint64(10000)
	return &Record{
		ScanID: "scan-1",
		Target: "http://a.test",
		CheckResult: detector.CheckResult{
			CheckType:        "TE.TE",
			Vulnerable:       true,
			PayloadIndex:     &idx,
			NormalStatus:     "HTTP/1.1 200 OK",
			AttackStatus:     &status,
			NormalDurationMS: 50,
			AttackDurationMS: &ms,
			Timestamp:        stamp,
		},
	}
}

func safeRecord(target, check string) *Record {
	return &Record{
		ScanID: "scan-1",
		Target: target,
		CheckResult: detector.CheckResult{
			CheckType:        check,
			NormalStatus:     "HTTP/1.1 200 OK",
			NormalDurationMS: 40,
			Timestamp:        stamp,
		},
	}
}

func TestJSONWriterArray(t *testing.T) {
	var buf bytes.Buffer
	w := &JSONWriter{w: &buf}
	require.NoError(t, w.WriteHeader())
	require.NoError(t, w.WriteResult(vulnerableRecord()))
	require.NoError(t, w.WriteResult(safeRecord("http://b.test", "CL.TE")))
	require.NoError(t, w.WriteFooter(Stats{}))

	var got []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 2)

	assert.Equal(t, "scan-1", got[0]["scan_id"])
	assert.Equal(t, "http://a.test", got[0]["target"])
	assert.Equal(t, "TE.TE", got[0]["check_type"])
	assert.Equal(t, true, got[0]["vulnerable"])
	assert.EqualValues(t, 4, got[0]["payload_index"])
	assert.Equal(t, "Connection Timeout", got[0]["attack_status"])
	assert.EqualValues(t, 10000, got[0]["attack_duration_ms"])

	assert.Nil(t, got[1]["payload_index"])
	assert.Nil(t, got[1]["attack_status"])
	assert.Nil(t, got[1]["attack_duration_ms"])
	assert.NotContains(t, got[1], "payload_errors")
}

func TestJSONWriterEmptyArray(t *testing.T) {
	var buf bytes.Buffer
	w := &JSONWriter{w: &buf}
	require.NoError(t, w.WriteFooter(Stats{}))
	assert.Equal(t, "[]\n", buf.String())
}

func TestJSONLWriter(t *testing.T) {
	var buf bytes.Buffer
	w := &JSONWriter{w: &buf, lines: true}
	require.NoError(t, w.WriteResult(vulnerableRecord()))
	require.NoError(t, w.WriteResult(safeRecord("http://b.test", "CL.TE")))
	require.NoError(t, w.WriteFooter(Stats{}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	var rec Record
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "TE.TE", rec.CheckType)
	assert.Equal(t, 4, *rec.PayloadIndex)
	assert.True(t, rec.Timestamp.Equal(stamp))
}

func TestCSVWriter(t *testing.T) {
	var buf bytes.Buffer
	w := newCSVWriter(&buf, nil)
	require.NoError(t, w.WriteHeader())
	require.NoError(t, w.WriteResult(vulnerableRecord()))
	require.NoError(t, w.WriteResult(safeRecord("http://b.test", "CL.TE")))
	require.NoError(t, w.WriteFooter(Stats{}))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "check_type", rows[0][2])
	assert.Equal(t, []string{"scan-1", "http://a.test", "TE.TE", "true", "4",
		"HTTP/1.1 200 OK", "Connection Timeout", "50", "10000", "0", "2024-05-01T12:00:00Z"}, rows[1])
	assert.Equal(t, "", rows[2][4])
	assert.Equal(t, "", rows[2][6])
}

func TestTextWriter(t *testing.T) {
	var buf bytes.Buffer
	w := &TextWriter{w: &buf, noColor: true}
	require.NoError(t, w.WriteHeader())
	require.NoError(t, w.WriteResult(vulnerableRecord()))
	require.NoError(t, w.WriteResult(safeRecord("http://b.test", "CL.TE")))

	out := buf.String()
	assert.Contains(t, out, "VULNERABLE  TE.TE  http://a.test  payload 4: Connection Timeout")
	assert.Contains(t, out, "safe        CL.TE  http://b.test")
}

func TestSortedWriter(t *testing.T) {
	var buf bytes.Buffer
	inner := &JSONWriter{w: &buf, lines: true}
	w := NewSortedWriter(inner, "vulnerable")

	require.NoError(t, w.WriteResult(safeRecord("http://b.test", "CL.TE")))
	require.NoError(t, w.WriteResult(vulnerableRecord()))
	require.NoError(t, w.WriteResult(safeRecord("http://c.test", "TE.CL")))
	assert.Empty(t, buf.String())
	require.NoError(t, w.WriteFooter(Stats{}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], `"vulnerable":true`)
	assert.Contains(t, lines[1], "http://b.test")
	assert.Contains(t, lines[2], "http://c.test")
}

func TestNewWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jsonl")
	w, err := New("jsonl", path, false)
	require.NoError(t, err)
	require.NoError(t, w.WriteResult(vulnerableRecord()))
	require.NoError(t, w.WriteFooter(Stats{}))
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"check_type":"TE.TE"`)

	_, err = New("xml", "", false)
	assert.Error(t, err)
}

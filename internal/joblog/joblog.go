// Package joblog keeps the operator-facing CSV record of every job run, including the full
// aggregate failure message.
package joblog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Outcome values.
const (
	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

// Entry is one row in the job log.
type Entry struct {
	Timestamp time.Time
	Job       string
	RunID     string
	TenantID  string
	AsOfDate  string
	Outcome   string
	Processed int
	Failures  int
	Message   string
}

// Failed reports whether the run failed.
func (e Entry) Failed() bool { return e.Outcome == OutcomeFailed }

// Header is the CSV header for job-log.csv.
const Header = "timestamp,job,run_id,tenant_id,as_of_date,outcome,processed,failures,message"

// FileName is the log's file name inside its directory.
const FileName = "job-log.csv"

const (
	numFields    = 9
	colTimestamp = 0
	colJob       = 1
	colRunID     = 2
	colTenantID  = 3
	colAsOfDate  = 4
	colOutcome   = 5
	colProcessed = 6
	colFailures  = 7
	colMessage   = 8
)

// MarshalEntry converts an Entry to a CSV row.
func MarshalEntry(e Entry) []string {
	row := make([]string, numFields)
	row[colTimestamp] = e.Timestamp.UTC().Format(time.RFC3339)
	row[colJob] = e.Job
	row[colRunID] = e.RunID
	row[colTenantID] = e.TenantID
	row[colAsOfDate] = e.AsOfDate
	row[colOutcome] = e.Outcome
	row[colProcessed] = strconv.Itoa(e.Processed)
	row[colFailures] = strconv.Itoa(e.Failures)
	row[colMessage] = e.Message
	return row
}

// UnmarshalEntry converts a CSV row to an Entry.
func UnmarshalEntry(record []string) (Entry, error) {
	if len(record) != numFields {
		return Entry{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	ts, err := time.Parse(time.RFC3339, record[colTimestamp])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing timestamp %q: %w", record[colTimestamp], err)
	}
	processed, err := strconv.Atoi(record[colProcessed])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing processed %q: %w", record[colProcessed], err)
	}
	failures, err := strconv.Atoi(record[colFailures])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing failures %q: %w", record[colFailures], err)
	}

	return Entry{
		Timestamp: ts,
		Job:       record[colJob],
		RunID:     record[colRunID],
		TenantID:  record[colTenantID],
		AsOfDate:  record[colAsOfDate],
		Outcome:   record[colOutcome],
		Processed: processed,
		Failures:  failures,
		Message:   record[colMessage],
	}, nil
}

// Log appends to and reads <dir>/job-log.csv. Appends from one process are serialized.
type Log struct {
	dir string
	mu  sync.Mutex
}

// New returns the job log kept in dir.
func New(dir string) *Log {
	return &Log{dir: dir}
}

// Path returns the CSV file path.
func (l *Log) Path() string {
	return filepath.Join(l.dir, FileName)
}

// Append writes entries, creating the directory, file and header if needed.
func (l *Log) Append(entries ...Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return fmt.Errorf("creating job log dir: %w", err)
	}

	path := l.Path()
	needsHeader := false
	if _, err := os.Stat(path); os.IsNotExist(err) {
		needsHeader = true
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening job log: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if needsHeader {
		if err := cw.Write(strings.Split(Header, ",")); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}
	for i, e := range entries {
		if err := cw.Write(MarshalEntry(e)); err != nil {
			return fmt.Errorf("writing entry %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Read returns every entry in the log, or nil when the file does not exist.
func (l *Log) Read() ([]Entry, error) {
	f, err := os.Open(l.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening job log: %w", err)
	}
	defer f.Close()

	return readEntries(f)
}

func readEntries(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading job log CSV: %w", err)
	}

	if len(records) <= 1 {
		return nil, nil
	}

	var entries []Entry
	for i, rec := range records[1:] {
		e, err := UnmarshalEntry(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Query narrows a list of entries.
type Query struct {
	Job        string
	FailedOnly bool
	// Limit keeps only the most recent entries; zero keeps all.
	Limit int
}

// Select returns the entries matching q, oldest first.
func Select(entries []Entry, q Query) []Entry {
	var out []Entry
	for _, e := range entries {
		if q.Job != "" && e.Job != q.Job {
			continue
		}
		if q.FailedOnly && !e.Failed() {
			continue
		}
		out = append(out, e)
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[len(out)-q.Limit:]
	}
	return out
}

package audit

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"wasender/pkg/logx"
)

// Delivery statuses as they appear in the audit file. The values are part of
// the file format consumed by downstream reporting, do not rename them.
const (
	StatusSent    = "ENVIADO"
	StatusError   = "ERROR"
	StatusSkipped = "SALTADO"
)

const (
	header       = "timestamp,nombre,telefono,mensaje,estado,error"
	timeLayout   = "2006-01-02 15:04:05"
	maxMsgLength = 200
)

// Entry is one audited delivery attempt.
type Entry struct {
	Time    time.Time
	Name    string
	Phone   string
	Message string
	Status  string
	Detail  string
}

// Log is an append-only CSV audit trail. Each record is flushed before Record
// returns so a crash mid-run loses at most the attempt in flight. The file is
// reopened per append; runs are long and slow, keeping the handle open buys
// nothing.
type Log struct {
	mu   sync.Mutex
	path string
	log  logx.Logger
}

// Open ensures the audit file exists with its header row and returns the log.
// An existing non-empty file is appended to as-is.
func Open(path string, log logx.Logger) (*Log, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("audit: creating directory: %w", err)
		}
	}
	info, err := os.Stat(path)
	if err == nil && info.Size() > 0 {
		return &Log{path: path, log: log}, nil
	}
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("audit: stat %s: %w", path, err)
	}
	if err := os.WriteFile(path, []byte(header+"\n"), 0o644); err != nil {
		return nil, fmt.Errorf("audit: writing header: %w", err)
	}
	log.Info("audit trail ready", logx.String("path", path))
	return &Log{path: path, log: log}, nil
}

// Record appends one entry. The message is truncated to keep rows bounded;
// the full text was already logged at send time.
func (l *Log) Record(e Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("audit: opening %s: %w", l.path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	rec := []string{
		e.Time.Format(timeLayout),
		e.Name,
		e.Phone,
		truncate(e.Message, maxMsgLength),
		e.Status,
		e.Detail,
	}
	if err := w.Write(rec); err != nil {
		return fmt.Errorf("audit: writing record: %w", err)
	}
	w.Flush()
	return w.Error()
}

// Tail returns up to n of the most recent entries, oldest first. Rows that do
// not parse are skipped, the trail may predate the current format.
func (l *Log) Tail(n int) ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	var out []Entry
	first := true
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("audit: reading %s: %w", l.path, err)
		}
		if first {
			first = false
			continue
		}
		if len(rec) < 6 {
			continue
		}
		ts, terr := time.ParseInLocation(timeLayout, rec[0], time.Local)
		if terr != nil {
			continue
		}
		out = append(out, Entry{
			Time:    ts,
			Name:    rec[1],
			Phone:   rec[2],
			Message: rec[3],
			Status:  rec[4],
			Detail:  rec[5],
		})
	}
	if n > 0 && len(out) > n {
		out = out[len(out)-n:]
	}
	return out, nil
}

// Path returns the audit file location.
func (l *Log) Path() string { return l.path }

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

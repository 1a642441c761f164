// Package audit records successful unbans in append-only report files.
//
// One Sink backs one audit scope: a whole run in single-page mode, or one
// batch in multi-page mode. Files are created exclusively and every line is
// synced to disk before Append returns.
package audit

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/Sternrassler/guild-unban/pkg/pagination"
	"github.com/disgoorg/snowflake/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	auditFilesCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "unban_audit_files_created_total",
		Help: "Total audit report files created",
	})

	auditLinesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "unban_audit_lines_total",
		Help: "Total lines appended to audit report files",
	})

	auditErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "unban_audit_errors_total",
		Help: "Audit file errors by operation",
	}, []string{"operation"})
)

// ErrClosed is returned by Append on a closed sink.
var ErrClosed = errors.New("audit sink closed")

// Sink is an append-only audit file.
type Sink struct {
	f     *os.File
	path  string
	lines int
}

// Create creates a fresh, empty audit file at path. It fails if the file
// already exists.
func Create(path string) (*Sink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		auditErrorsTotal.WithLabelValues("create").Inc()
		return nil, fmt.Errorf("create audit file: %w", err)
	}
	auditFilesCreatedTotal.Inc()
	return &Sink{f: f, path: path}, nil
}

// Append writes "<display name> (<user id>)" and syncs it to disk.
func (s *Sink) Append(record pagination.BanRecord) error {
	if s.f == nil {
		return ErrClosed
	}

	line := fmt.Sprintf("%s (%s)\n", record.DisplayName, record.UserID)
	if _, err := s.f.WriteString(line); err != nil {
		auditErrorsTotal.WithLabelValues("write").Inc()
		return fmt.Errorf("append to %s: %w", s.path, err)
	}
	if err := s.f.Sync(); err != nil {
		auditErrorsTotal.WithLabelValues("sync").Inc()
		return fmt.Errorf("sync %s: %w", s.path, err)
	}

	s.lines++
	auditLinesTotal.Inc()
	return nil
}

// Lines returns the number of lines appended so far.
func (s *Sink) Lines() int {
	return s.lines
}

// Path returns the file path.
func (s *Sink) Path() string {
	return s.path
}

// Close closes the file. Closing twice is a no-op.
func (s *Sink) Close() error {
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	if err != nil {
		auditErrorsTotal.WithLabelValues("close").Inc()
		return fmt.Errorf("close %s: %w", s.path, err)
	}
	return nil
}

// WithSink creates a sink at path, runs fn with it, and closes it when fn
// returns. A close error is reported only if fn succeeded.
func WithSink(path string, fn func(*Sink) error) (err error) {
	sink, err := Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sink.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(sink)
}

// FileName returns the audit file path for one scope of a run. batch 0
// selects the single-batch name; batches of one run share startedAt.
func FileName(dir string, guildID snowflake.ID, batch int, startedAt time.Time) string {
	ms := strconv.FormatInt(startedAt.UnixMilli(), 10)

	var name string
	if batch <= 0 {
		name = "unban_report_" + guildID.String() + "_" + ms + ".txt"
	} else {
		name = "unban_report_" + guildID.String() + "_batch_" + strconv.Itoa(batch) + "_" + ms + ".txt"
	}
	return filepath.Join(dir, name)
}

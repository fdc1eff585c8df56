package launch

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/renameio/v2"

	"github.com/hugo-lorenzo-mato/timeoffset/internal/rendezvous"
)

// ExitStatus is how one member process ended.
type ExitStatus struct {
	Rank     int           `json:"rank"`
	PID      int           `json:"pid,omitempty"`
	ExitCode int           `json:"exit_code"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}

// Report describes a finished launch.
type Report struct {
	JobID      string              `json:"job_id"`
	Size       int                 `json:"size"`
	Command    []string            `json:"command"`
	Rendezvous string              `json:"rendezvous"`
	Started    time.Time           `json:"started"`
	Finished   time.Time           `json:"finished"`
	Exits      []ExitStatus        `json:"exits"`
	Members    []rendezvous.Member `json:"members"`
	Failure    string              `json:"failure,omitempty"`
}

// FailedRanks lists ranks whose process did not exit cleanly.
func (r *Report) FailedRanks() []int {
	var ranks []int
	for _, e := range r.Exits {
		if e.failed() {
			ranks = append(ranks, e.Rank)
		}
	}
	return ranks
}

func (e ExitStatus) failed() bool {
	return e.ExitCode != 0 || e.Error != ""
}

// err describes a failed member, or returns nil.
func (e ExitStatus) err() error {
	if !e.failed() {
		return nil
	}
	if e.Error != "" {
		return fmt.Errorf("rank %d: %s", e.Rank, e.Error)
	}
	return fmt.Errorf("rank %d: exit code %d", e.Rank, e.ExitCode)
}

// Released counts members whose release was accepted.
func (r *Report) Released() int {
	n := 0
	for _, m := range r.Members {
		if m.Released() {
			n++
		}
	}
	return n
}

// WriteAudit writes the report as indented JSON, replacing path atomically.
func WriteAudit(path string, r *Report) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding audit: %w", err)
	}
	data = append(data, '\n')
	if err := renameio.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing audit %s: %w", path, err)
	}
	return nil
}

// ReadAudit loads a report written by WriteAudit. The read is scoped to the
// file's directory.
func ReadAudit(path string) (*Report, error) {
	root, err := os.OpenRoot(filepath.Dir(path))
	if err != nil {
		return nil, err
	}
	defer root.Close()

	f, err := root.Open(filepath.Base(path))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("reading audit %s: %w", path, err)
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decoding audit %s: %w", path, err)
	}
	return &r, nil
}

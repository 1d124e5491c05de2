// Package report collects the outcome of a navigation test run and renders, persists and lists it.
package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
)

const (
	// ConfigurationAttachment is the name the effective configuration is attached under.
	ConfigurationAttachment = "Configuration"
	// FileName is the name of the machine-readable report.
	FileName = "report.json"
)

// Status is the outcome of a step.
type Status string

// Step outcomes.
const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// StepResult is the outcome of one step of a scenario.
type StepResult struct {
	Name     string        `json:"name"`
	Status   Status        `json:"status"`
	Err      string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}

// Report is the outcome of one scenario run.
type Report struct {
	RunID       uuid.UUID         `json:"run_id"`
	Seed        int64             `json:"seed"`
	Started     time.Time         `json:"started"`
	Finished    time.Time         `json:"finished"`
	Steps       []StepResult      `json:"steps"`
	Attachments map[string][]byte `json:"-"`
}

// New returns an empty report for a run started now.
func New(seed int64) *Report {
	return &Report{
		RunID:       uuid.New(),
		Seed:        seed,
		Started:     time.Now().UTC(),
		Attachments: map[string][]byte{},
	}
}

// Add records the outcome of a step. A nil err with StatusFailed is recorded without a message.
func (r *Report) Add(name string, status Status, err error, duration time.Duration) {
	result := StepResult{Name: name, Status: status, Duration: duration}
	if err != nil {
		result.Err = err.Error()
	}
	r.Steps = append(r.Steps, result)
}

// Step returns the result of the named step.
func (r *Report) Step(name string) (StepResult, bool) {
	for _, s := range r.Steps {
		if s.Name == name {
			return s, true
		}
	}
	return StepResult{}, false
}

// Passed reports whether no step failed.
func (r *Report) Passed() bool {
	for _, s := range r.Steps {
		if s.Status == StatusFailed {
			return false
		}
	}
	return true
}

// Attach stores data under name. It is written next to the report as <name>.csv.
func (r *Report) Attach(name string, data []byte) {
	if r.Attachments == nil {
		r.Attachments = map[string][]byte{}
	}
	r.Attachments[name] = data
}

// AttachRows encodes rows as CSV and attaches them under name.
func (r *Report) AttachRows(name string, rows [][]string) error {
	buf := new(bytes.Buffer)
	w := csv.NewWriter(buf)
	if err := w.WriteAll(rows); err != nil {
		return errors.Wrapf(err, "error encoding attachment %s", name)
	}
	r.Attach(name, buf.Bytes())
	return nil
}

// WriteDir writes report.json and every attachment into <dir>/<run id> and returns that directory.
func (r *Report) WriteDir(dir string) (string, error) {
	runDir := filepath.Join(dir, r.RunID.String())
	if err := os.MkdirAll(runDir, 0o750); err != nil {
		return "", errors.Wrapf(err, "error creating report directory %s", runDir)
	}

	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(runDir, FileName), b, 0o600); err != nil {
		return "", errors.Wrap(err, "error writing report")
	}

	for name, data := range r.Attachments {
		if err := os.WriteFile(filepath.Join(runDir, name+".csv"), data, 0o600); err != nil {
			return "", errors.Wrapf(err, "error writing attachment %s", name)
		}
	}
	return runDir, nil
}

// FormatDuration renders d with an SI prefix, such as "1.5 s" or "20 ms".
func FormatDuration(d time.Duration) string {
	return humanize.SIWithDigits(d.Seconds(), 2, "s")
}

// Table renders a human summary of the steps.
func (r *Report) Table() string {
	t := table.NewWriter()
	t.SetTitle("run " + r.RunID.String() + " seed " + strconv.FormatInt(r.Seed, 10))
	t.AppendHeader(table.Row{"#", "Step", "Status", "Duration", "Error"})
	for i, s := range r.Steps {
		t.AppendRow(table.Row{i + 1, s.Name, string(s.Status), FormatDuration(s.Duration), s.Err})
	}
	verdict := "PASSED"
	if !r.Passed() {
		verdict = "FAILED"
	}
	t.AppendFooter(table.Row{"", "", verdict, FormatDuration(r.Finished.Sub(r.Started)), ""})
	return t.Render()
}

// Summary returns the report as a map that can be returned from DoCommand.
func (r *Report) Summary() map[string]interface{} {
	steps := make([]interface{}, 0, len(r.Steps))
	for _, s := range r.Steps {
		steps = append(steps, map[string]interface{}{
			"name":        s.Name,
			"status":      string(s.Status),
			"error":       s.Err,
			"duration_ms": float64(s.Duration.Milliseconds()),
		})
	}
	attachments := make([]string, 0, len(r.Attachments))
	for name := range r.Attachments {
		attachments = append(attachments, name)
	}
	sort.Strings(attachments)
	attachmentNames := make([]interface{}, 0, len(attachments))
	for _, name := range attachments {
		attachmentNames = append(attachmentNames, name)
	}

	return map[string]interface{}{
		"run_id":      r.RunID.String(),
		"seed":        strconv.FormatInt(r.Seed, 10),
		"passed":      r.Passed(),
		"started":     r.Started.Format(time.RFC3339Nano),
		"finished":    r.Finished.Format(time.RFC3339Nano),
		"steps":       steps,
		"attachments": attachmentNames,
	}
}

package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Report group names
const (
	GroupFlowManager = "flowmanager_report"
	GroupAuth        = "auth_report"
)

// Record is the outcome of a single checked expectation.
// Errors is nil exactly when Success is true.
type Record struct {
	Success bool    `json:"success"`
	Errors  *string `json:"errors"`
	Name    string  `json:"name"`
}

// Pass returns a successful record
func Pass(name string) Record {
	return Record{Success: true, Name: name}
}

// Fail returns a failed record with the given error message
func Fail(name, format string, args ...any) Record {
	msg := fmt.Sprintf(format, args...)
	return Record{Success: false, Errors: &msg, Name: name}
}

// Error returns the error message or an empty string
func (r Record) Error() string {
	if r.Errors == nil {
		return ""
	}
	return *r.Errors
}

// Report accumulates records per check group in the order they were produced.
// Records are only ever appended.
type Report struct {
	order  []string
	groups map[string][]Record
}

// NewReport creates an empty report
func NewReport() *Report {
	return &Report{groups: make(map[string][]Record)}
}

// Append adds records to the end of a group
func (r *Report) Append(group string, records ...Record) {
	if _, ok := r.groups[group]; !ok {
		r.order = append(r.order, group)
		r.groups[group] = make([]Record, 0, len(records))
	}
	r.groups[group] = append(r.groups[group], records...)
}

// Groups returns group names in the order they were first written
func (r *Report) Groups() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Group returns a copy of the records of one group
func (r *Report) Group(name string) ([]Record, bool) {
	recs, ok := r.groups[name]
	if !ok {
		return nil, false
	}
	out := make([]Record, len(recs))
	copy(out, recs)
	return out, true
}

// Get returns every group with its records
func (r *Report) Get() map[string][]Record {
	out := make(map[string][]Record, len(r.groups))
	for _, name := range r.order {
		out[name], _ = r.Group(name)
	}
	return out
}

// Summary counts total and failed records
func (r *Report) Summary() (total, failed int) {
	for _, recs := range r.groups {
		for _, rec := range recs {
			total++
			if !rec.Success {
				failed++
			}
		}
	}
	return total, failed
}

// Success reports whether every record passed
func (r *Report) Success() bool {
	_, failed := r.Summary()
	return failed == 0
}

// Failures returns the failed records of all groups, group order preserved
func (r *Report) Failures() []Record {
	var out []Record
	for _, name := range r.order {
		for _, rec := range r.groups[name] {
			if !rec.Success {
				out = append(out, rec)
			}
		}
	}
	return out
}

// MarshalJSON encodes the report as {group: [records...]}
func (r *Report) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Get())
}

// UnmarshalJSON decodes a report produced by MarshalJSON.
// Group order falls back to the canonical check order.
func (r *Report) UnmarshalJSON(data []byte) error {
	var groups map[string][]Record
	if err := json.Unmarshal(data, &groups); err != nil {
		return err
	}

	*r = *NewReport()
	for _, name := range []string{GroupFlowManager, GroupAuth} {
		if recs, ok := groups[name]; ok {
			r.Append(name, recs...)
			delete(groups, name)
		}
	}
	for name, recs := range groups {
		r.Append(name, recs...)
	}
	return nil
}

// Run is one complete execution of the check sequences
type Run struct {
	ID         string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Success    bool      `json:"success"`
	Total      int       `json:"total"`
	Failed     int       `json:"failed"`
	Report     *Report   `json:"report"`
}

package scheduler

import (
	"time"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusUnknown   Status = "UNKNOWN"
	StatusRunning   Status = "RUNNING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusCancelled Status = "CANCELLED"
)

// Done reports whether s is a final state.
func (s Status) Done() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Job is a snapshot of one pipeline execution.
type Job struct {
	ID       string    `json:"id"`
	Pipeline string    `json:"pipeline"`
	Status   Status    `json:"status"`
	Started  time.Time `json:"started"`
	Ended    time.Time `json:"ended,omitzero"`
	// Elements counts the elements drained at the outputs.
	Elements int64  `json:"elements"`
	Error    string `json:"error,omitempty"`
}

// Duration is the run time so far, or the total once the job has ended.
func (j Job) Duration() time.Duration {
	if j.Ended.IsZero() {
		return time.Since(j.Started)
	}
	return j.Ended.Sub(j.Started)
}

// history is a fixed-size ring of finished jobs.
type history struct {
	jobs []Job
	next int
	full bool
}

func newHistory(size int) *history {
	return &history{jobs: make([]Job, size)}
}

func (h *history) add(j Job) {
	h.jobs[h.next] = j
	h.next = (h.next + 1) % len(h.jobs)
	if h.next == 0 {
		h.full = true
	}
}

// list returns the jobs from oldest to newest.
func (h *history) list() []Job {
	if !h.full {
		return append([]Job(nil), h.jobs[:h.next]...)
	}
	out := make([]Job, 0, len(h.jobs))
	out = append(out, h.jobs[h.next:]...)
	return append(out, h.jobs[:h.next]...)
}

// find returns the most recent entry for id.
func (h *history) find(id string) (Job, bool) {
	jobs := h.list()
	for i := len(jobs) - 1; i >= 0; i-- {
		if jobs[i].ID == id {
			return jobs[i], true
		}
	}
	return Job{}, false
}

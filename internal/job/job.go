package job

import (
	"errors"
	"fmt"
	"time"

	"github.com/fwerner/sitrep/internal/intel"
)

// ErrJobNotFound is returned when a job id has no record in the store.
var ErrJobNotFound = errors.New("job not found")

// Status is the lifecycle state of a scan job.
type Status string

const (
	StatusQueued    Status = "QUEUED"
	StatusFetching  Status = "FETCHING"
	StatusResolving Status = "RESOLVING"
	StatusAnalyzing Status = "ANALYZING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

// Terminal reports whether no further transitions are allowed from s.
func (s Status) Terminal() bool { return s == StatusCompleted || s == StatusFailed }

// rank orders the forward progression. FAILED is reachable from any
// non-terminal state and so has no rank.
var rank = map[Status]int{
	StatusQueued:    0,
	StatusFetching:  1,
	StatusResolving: 2,
	StatusAnalyzing: 3,
	StatusCompleted: 4,
}

// CanTransition reports whether moving from one status to the next follows
// the forward-only lifecycle. Any non-terminal state may move to FAILED;
// terminal states accept nothing.
func CanTransition(from, to Status) bool {
	if from.Terminal() {
		return false
	}
	if to == StatusFailed {
		return true
	}
	fromRank, ok := rank[from]
	if !ok {
		return false
	}
	toRank, ok := rank[to]
	if !ok {
		return false
	}
	return toRank > fromRank
}

// Job is one scan request and its current lifecycle state. Result is set only
// once the job reaches COMPLETED.
type Job struct {
	ID        string       `json:"id"`
	Topic     string       `json:"topic"`
	Window    intel.Window `json:"window"`
	Status    Status       `json:"status"`
	Message   string       `json:"message,omitempty"`
	Result    string       `json:"result,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// NewJob builds a fresh QUEUED job for a raw topic string. Mode prefixes in
// the topic select the reporting window.
func NewJob(id, rawTopic string) Job {
	topic, window := intel.ParseTopic(rawTopic)
	now := time.Now().UTC()
	return Job{
		ID:        id,
		Topic:     topic,
		Window:    window,
		Status:    StatusQueued,
		Message:   "queued",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Advance validates and applies a status transition, stamping the message and
// update time.
func (j *Job) Advance(to Status, message string) error {
	if !CanTransition(j.Status, to) {
		return fmt.Errorf("invalid transition %s -> %s", j.Status, to)
	}
	j.Status = to
	j.Message = message
	j.UpdatedAt = time.Now().UTC()
	return nil
}

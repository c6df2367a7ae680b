package broadcast

import (
	"encoding/json"

	"github.com/veedran/reelsmith/internal/jobs"
)

// Event types pushed to real-time listeners.
const (
	TypeJobStarted     = "job_started"
	TypeProgressUpdate = "progress_update"
	TypeJobCompleted   = "job_completed"
	TypeJobFailed      = "job_failed"
	TypeJobCancelled   = "job_cancelled"
	TypeJobsSnapshot   = "jobs_snapshot"
	TypeWebhookUpdate  = "webhook_update"
)

// Event is the wire form of one job state change.
type Event struct {
	Type      string          `json:"type"`
	JobID     string          `json:"job_id,omitempty"`
	Stage     int             `json:"stage,omitempty"`
	StageName string          `json:"stage_name,omitempty"`
	Progress  int             `json:"progress,omitempty"`
	Error     string          `json:"error,omitempty"`
	Result    *jobs.Result    `json:"result,omitempty"`
	Job       *jobs.Job       `json:"job,omitempty"`
	Jobs      []*jobs.Job     `json:"jobs,omitempty"`
	TaskID    string          `json:"task_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// ProgressEvent builds the per-stage update pushed between pipeline stages.
func ProgressEvent(job *jobs.Job) Event {
	return Event{
		Type:      TypeProgressUpdate,
		JobID:     job.ID,
		Stage:     job.CurrentStage,
		StageName: job.StageName,
		Progress:  job.Progress,
	}
}

// TerminalEvent builds the completion/failure/cancellation event for a job
// that has reached a terminal status.
func TerminalEvent(job *jobs.Job) Event {
	switch job.Status {
	case jobs.StatusCompleted:
		return Event{Type: TypeJobCompleted, JobID: job.ID, Result: job.Result, Job: job}
	case jobs.StatusFailed:
		return Event{Type: TypeJobFailed, JobID: job.ID, Error: job.Error, Stage: job.CurrentStage, StageName: job.StageName}
	default:
		return Event{Type: TypeJobCancelled, JobID: job.ID}
	}
}

package jobs

import "time"

type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// rank orders statuses along the allowed forward path. Transitions to a
// lower or equal-rank-but-different status are regressions and get rejected.
func (s Status) rank() int {
	switch s {
	case StatusQueued:
		return 0
	case StatusRunning:
		return 1
	case StatusCompleted, StatusFailed, StatusCancelled:
		return 2
	default:
		return -1
	}
}

// TotalStages is the fixed length of the reel pipeline.
const TotalStages = 4

// Request is the validated automation input, retained on the job record.
type Request struct {
	SteamAppID     string `json:"steam_app_id"`
	GameTitle      string `json:"game_title,omitempty"`
	CustomVideoURL string `json:"custom_video_url,omitempty"`
	Count          int    `json:"count,omitempty"`
}

// Result references the final compiled reel. At least one of the two
// fields is populated on a completed job.
type Result struct {
	LocalPath string `json:"local_path,omitempty"`
	RemoteURL string `json:"remote_url,omitempty"`
}

// Job is one tracked end-to-end reel creation.
type Job struct {
	ID           string     `json:"job_id"`
	Status       Status     `json:"status"`
	CurrentStage int        `json:"current_stage"`
	TotalStages  int        `json:"total_stages"`
	StageName    string     `json:"stage_name"`
	Progress     int        `json:"progress"`
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	Result       *Result    `json:"result,omitempty"`
	Error        string     `json:"error,omitempty"`
	Request      Request    `json:"request"`

	seq uint64
}

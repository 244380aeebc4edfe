package domain

import "time"

// JobStatus is the lifecycle state of a job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// MaxRetries is the retry budget for a failing job. A job passes through
// pending->processing at most MaxRetries+1 times before it is terminally
// failed.
const MaxRetries = 3

// Request is the immutable snapshot of the admitted request a job was
// created from.
type Request struct {
	Prompt      string `json:"prompt"`
	Wallet      string `json:"wallet"`
	CallbackURL string `json:"callback_url,omitempty"`
	ClientIP    string `json:"client_ip,omitempty"`
}

// Job is a single admitted unit of work. ID and Cost are fixed at creation;
// only status, timestamps, retries and result/error mutate afterwards.
type Job struct {
	ID          string     `json:"id"`
	Request     Request    `json:"request"`
	Status      JobStatus  `json:"status"`
	Tier        string     `json:"tier"`
	CostUSD     float64    `json:"cost_usd"`
	Retries     int        `json:"retries"`
	Result      string     `json:"result,omitempty"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Terminal reports whether the job has reached a final state. Terminal jobs
// never transition again.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// Clone returns a copy of the job safe to hand outside the scheduler's lock.
func (j *Job) Clone() *Job {
	c := *j
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

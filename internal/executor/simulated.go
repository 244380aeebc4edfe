package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/shreed27/AgentHub-sub004/internal/domain"
)

// Simulated is a stand-in executor for local runs and tests. It sleeps for a
// configured latency, honoring cancellation, then answers with a canned
// response for the job's tier.
type Simulated struct {
	Latency time.Duration
}

// NewSimulated creates a simulated executor.
func NewSimulated(latency time.Duration) *Simulated {
	return &Simulated{Latency: latency}
}

// Execute waits out the configured latency and returns a canned result.
func (s *Simulated) Execute(ctx context.Context, job *domain.Job) (string, error) {
	select {
	case <-time.After(s.Latency):
	case <-ctx.Done():
		return "", fmt.Errorf("execution canceled: %w", ctx.Err())
	}

	switch job.Tier {
	case "complex":
		return fmt.Sprintf("scheduled automation for request %q", job.Request.Prompt), nil
	case "standard":
		return fmt.Sprintf("executed action for request %q", job.Request.Prompt), nil
	default:
		return fmt.Sprintf("answer for %q: simulated response", job.Request.Prompt), nil
	}
}

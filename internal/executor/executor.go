// Package executor defines the boundary to the unit of work a job performs.
// The real implementation (natural-language execution against an LLM or
// trading backend) lives outside this module.
package executor

import (
	"context"

	"github.com/shreed27/AgentHub-sub004/internal/domain"
)

// Executor runs one job attempt and returns its result. The scheduler treats
// any error identically regardless of cause; implementations that care about
// cancellation must observe ctx themselves.
type Executor interface {
	Execute(ctx context.Context, job *domain.Job) (string, error)
}

// Func adapts a plain function to the Executor interface.
type Func func(ctx context.Context, job *domain.Job) (string, error)

func (f Func) Execute(ctx context.Context, job *domain.Job) (string, error) {
	return f(ctx, job)
}

package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shreed27/AgentHub-sub004/internal/domain"
)

type attemptResult struct {
	result string
	err    error
}

// workerLoop drains the queue: claim the next eligible job, run it, then
// immediately try again. When the queue is empty it parks until a wake
// signal; a periodic tick self-heals any missed signal.
func (s *Scheduler) workerLoop(n int) {
	defer s.wg.Done()

	logger := s.logger.With(slog.Int("worker", n))
	logger.Debug("Worker started")

	ticker := time.NewTicker(s.cfg.DrainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			logger.Debug("Worker stopping")
			return
		default:
		}

		if job, ok := s.claimNext(); ok {
			s.runJob(job)
			continue
		}

		select {
		case <-s.ctx.Done():
			logger.Debug("Worker stopping")
			return
		case <-s.wake:
		case <-ticker.C:
		}
	}
}

// claimNext pops queue ids until it finds one whose job is still pending,
// then claims it. Ids whose jobs were cancelled (or otherwise moved on)
// while queued are discarded: enqueue-time status is not trusted at dequeue
// time.
func (s *Scheduler) claimNext() (*domain.Job, bool) {
	s.mu.Lock()

	for len(s.queue) > 0 {
		id := s.queue[0]
		s.queue = s.queue[1:]

		job, ok := s.jobs[id]
		if !ok || job.Status != domain.JobStatusPending {
			continue
		}

		now := time.Now().UTC()
		job.Status = domain.JobStatusProcessing
		job.StartedAt = &now
		job.UpdatedAt = now
		clone := job.Clone()
		s.mu.Unlock()

		s.persist(s.ctx, clone)
		return clone, true
	}

	s.mu.Unlock()
	return nil, false
}

// runJob races one executor attempt against the per-job timeout and applies
// the outcome. A timeout is indistinguishable from an executor failure.
func (s *Scheduler) runJob(job *domain.Job) {
	attemptCtx, cancel := context.WithTimeout(s.ctx, s.cfg.JobTimeout)
	defer cancel()

	resCh := make(chan attemptResult, 1)
	go func() {
		result, err := s.executor.Execute(attemptCtx, job)
		resCh <- attemptResult{result: result, err: err}
	}()

	var outcome attemptResult
	select {
	case outcome = <-resCh:
	case <-attemptCtx.Done():
		if s.ctx.Err() != nil {
			// Shutdown, not a job failure: put the attempt back without
			// spending retry budget. Recovery requeues it next start.
			s.releaseForRestart(job.ID)
			return
		}
		outcome = attemptResult{err: fmt.Errorf("%w after %s", domain.ErrExecutionTimeout, s.cfg.JobTimeout)}
	}

	if outcome.err != nil {
		s.applyFailure(job.ID, outcome.err)
		return
	}
	s.applySuccess(job.ID, outcome.result)
}

// applySuccess records a completed attempt. If the job was cancelled while
// executing, the late result is discarded.
func (s *Scheduler) applySuccess(id, result string) {
	s.mu.Lock()
	job, ok := s.jobs[id]
	if !ok || job.Status != domain.JobStatusProcessing {
		s.mu.Unlock()
		return
	}

	now := time.Now().UTC()
	job.Status = domain.JobStatusCompleted
	job.Result = result
	job.UpdatedAt = now
	job.CompletedAt = &now
	clone := job.Clone()
	s.mu.Unlock()

	s.persist(s.ctx, clone)
	s.notifyTerminal(clone)

	s.logger.Info("Job completed",
		slog.String("job_id", id),
		slog.Int("retries", clone.Retries),
	)
}

// applyFailure either re-enqueues the job at the tail with one more retry
// spent, or marks it terminally failed once the budget is exhausted.
func (s *Scheduler) applyFailure(id string, attemptErr error) {
	s.mu.Lock()
	job, ok := s.jobs[id]
	if !ok || job.Status != domain.JobStatusProcessing {
		s.mu.Unlock()
		return
	}

	now := time.Now().UTC()

	if job.Retries < domain.MaxRetries {
		job.Retries++
		job.Status = domain.JobStatusPending
		job.StartedAt = nil
		job.UpdatedAt = now
		s.queue = append(s.queue, id)
		clone := job.Clone()
		s.mu.Unlock()

		s.persist(s.ctx, clone)
		s.signalWake()

		s.logger.Warn("Job attempt failed, requeued",
			slog.String("job_id", id),
			slog.Int("retries", clone.Retries),
			slog.Int("max_retries", domain.MaxRetries),
			slog.String("error", attemptErr.Error()),
		)
		return
	}

	job.Status = domain.JobStatusFailed
	job.Error = attemptErr.Error()
	job.UpdatedAt = now
	job.CompletedAt = &now
	clone := job.Clone()
	s.mu.Unlock()

	s.persist(s.ctx, clone)
	s.notifyTerminal(clone)

	s.logger.Error("Job failed permanently",
		slog.String("job_id", id),
		slog.Int("retries", clone.Retries),
		slog.String("error", attemptErr.Error()),
	)
}

// releaseForRestart returns a claimed job to pending during shutdown.
func (s *Scheduler) releaseForRestart(id string) {
	s.mu.Lock()
	job, ok := s.jobs[id]
	if !ok || job.Status != domain.JobStatusProcessing {
		s.mu.Unlock()
		return
	}
	job.Status = domain.JobStatusPending
	job.StartedAt = nil
	job.UpdatedAt = time.Now().UTC()
	clone := job.Clone()
	s.mu.Unlock()

	s.persist(context.Background(), clone)
}

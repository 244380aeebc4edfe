// Package scheduler owns the job map, the FIFO queue and the bounded worker
// pool that drains it.
package scheduler

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shreed27/AgentHub-sub004/internal/domain"
	"github.com/shreed27/AgentHub-sub004/internal/executor"
	"github.com/shreed27/AgentHub-sub004/internal/store"
)

// Notifier receives every terminal job transition. Implementations must be
// safe for concurrent use.
type Notifier interface {
	NotifyTerminal(ctx context.Context, job *domain.Job)
}

// NopNotifier discards terminal events.
type NopNotifier struct{}

func (NopNotifier) NotifyTerminal(context.Context, *domain.Job) {}

// Config holds scheduler configuration.
type Config struct {
	Concurrency    int
	JobTimeout     time.Duration
	DrainInterval  time.Duration
	Retention      time.Duration
	RetentionSweep time.Duration

	Executor executor.Executor
	Store    store.Store
	Notifier Notifier
	Logger   *slog.Logger
}

// Scheduler admits jobs into an in-memory map plus FIFO id queue and drains
// them with a fixed pool of worker goroutines. Every job mutation happens
// under one mutex and is written through to the store before any webhook
// fires.
type Scheduler struct {
	cfg      *Config
	logger   *slog.Logger
	executor executor.Executor
	store    store.Store
	notifier Notifier

	mu    sync.Mutex
	jobs  map[string]*domain.Job
	queue []string

	wake   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a scheduler. Call Start to recover persisted jobs and begin
// draining.
func New(cfg *Config) *Scheduler {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.DrainInterval <= 0 {
		cfg.DrainInterval = time.Second
	}
	if cfg.RetentionSweep <= 0 {
		cfg.RetentionSweep = time.Hour
	}
	if cfg.Notifier == nil {
		cfg.Notifier = NopNotifier{}
	}
	if cfg.Store == nil {
		cfg.Store = store.Nop{}
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cfg:      cfg,
		logger:   cfg.Logger,
		executor: cfg.Executor,
		store:    cfg.Store,
		notifier: cfg.Notifier,
		jobs:     make(map[string]*domain.Job),
		queue:    make([]string, 0),
		wake:     make(chan struct{}, cfg.Concurrency),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start loads persisted jobs, requeues any that were lost mid-flight, and
// spawns the worker pool and retention sweeper.
func (s *Scheduler) Start() error {
	if err := s.recover(); err != nil {
		return err
	}

	s.logger.Info("Starting scheduler",
		slog.Int("concurrency", s.cfg.Concurrency),
		slog.Duration("job_timeout", s.cfg.JobTimeout),
	)

	for i := 0; i < s.cfg.Concurrency; i++ {
		s.wg.Add(1)
		go s.workerLoop(i)
	}

	s.wg.Add(1)
	go s.retentionLoop()

	return nil
}

// Stop halts the worker pool. In-flight attempts are abandoned; their jobs
// are reset to pending and picked up again on the next Start.
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping scheduler...")
	s.cancel()
	s.wg.Wait()
	s.logger.Info("Scheduler stopped")
}

// Enqueue creates a pending job from an admitted request and queues it.
func (s *Scheduler) Enqueue(ctx context.Context, req domain.Request, tier string, costUSD float64) (*domain.Job, error) {
	now := time.Now().UTC()
	job := &domain.Job{
		ID:        uuid.NewString(),
		Request:   req,
		Status:    domain.JobStatusPending,
		Tier:      tier,
		CostUSD:   costUSD,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.jobs[job.ID] = job
	s.queue = append(s.queue, job.ID)
	clone := job.Clone()
	s.mu.Unlock()

	s.persist(ctx, clone)
	s.signalWake()

	s.logger.Info("Job enqueued",
		slog.String("job_id", job.ID),
		slog.String("tier", tier),
		slog.Float64("cost_usd", costUSD),
	)

	return clone, nil
}

// Get returns a copy of the job with the given id.
func (s *Scheduler) Get(id string) (*domain.Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, false
	}
	return job.Clone(), true
}

// List returns copies of all known jobs, newest first.
func (s *Scheduler) List() []*domain.Job {
	s.mu.Lock()
	jobs := make([]*domain.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, job.Clone())
	}
	s.mu.Unlock()

	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	return jobs
}

// Cancel marks a pending or processing job cancelled. It returns false for
// unknown ids and for jobs already in a terminal state. A cancelled queued
// job stays in the queue; the stale-dequeue check discards it.
func (s *Scheduler) Cancel(id string) bool {
	s.mu.Lock()
	job, ok := s.jobs[id]
	if !ok || job.Status.Terminal() {
		s.mu.Unlock()
		return false
	}

	now := time.Now().UTC()
	job.Status = domain.JobStatusCancelled
	job.UpdatedAt = now
	job.CompletedAt = &now
	clone := job.Clone()
	s.mu.Unlock()

	s.persist(context.Background(), clone)
	s.notifyTerminal(clone)

	s.logger.Info("Job cancelled", slog.String("job_id", id))
	return true
}

// Remove deletes a terminal job from memory and the store.
func (s *Scheduler) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	job, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return domain.ErrJobNotFound
	}
	if !job.Status.Terminal() {
		s.mu.Unlock()
		return domain.ErrJobActive
	}
	delete(s.jobs, id)
	s.mu.Unlock()

	if err := s.store.Delete(ctx, id); err != nil {
		s.logger.Error("Failed to delete job from store",
			slog.String("job_id", id),
			slog.String("error", err.Error()),
		)
	}
	return nil
}

// Stats reports queue depth and per-status job counts.
func (s *Scheduler) Stats() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := map[string]int{"queued": len(s.queue)}
	for _, job := range s.jobs {
		stats[string(job.Status)]++
	}
	return stats
}

// recover reloads every stored job. Jobs found pending or processing are
// reset to pending and requeued in creation order; a processing job is
// assumed lost with the previous process, not resumed mid-flight.
func (s *Scheduler) recover() error {
	stored, err := s.store.LoadAll(s.ctx)
	if err != nil {
		return err
	}
	if len(stored) == 0 {
		return nil
	}

	sort.Slice(stored, func(i, j int) bool {
		return stored[i].CreatedAt.Before(stored[j].CreatedAt)
	})

	requeued := 0
	for _, job := range stored {
		if !job.Status.Terminal() {
			job.Status = domain.JobStatusPending
			job.StartedAt = nil
			job.UpdatedAt = time.Now().UTC()
		}

		s.mu.Lock()
		s.jobs[job.ID] = job
		if job.Status == domain.JobStatusPending {
			s.queue = append(s.queue, job.ID)
			requeued++
		}
		s.mu.Unlock()

		if !job.Status.Terminal() {
			s.persist(s.ctx, job.Clone())
		}
	}

	s.logger.Info("Recovered persisted jobs",
		slog.Int("loaded", len(stored)),
		slog.Int("requeued", requeued),
	)
	return nil
}

func (s *Scheduler) signalWake() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// persist writes a job record through to the store. Failures are logged and
// swallowed: durability is best-effort by design.
func (s *Scheduler) persist(ctx context.Context, job *domain.Job) {
	if err := s.store.Save(ctx, job); err != nil {
		s.logger.Error("Failed to persist job",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
	}
}

// notifyTerminal hands a terminal job to the notifier off the worker's
// critical path. The store write always precedes this call.
func (s *Scheduler) notifyTerminal(job *domain.Job) {
	if job.Request.CallbackURL == "" {
		return
	}
	go s.notifier.NotifyTerminal(context.Background(), job)
}

func (s *Scheduler) retentionLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.RetentionSweep)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.sweepExpired()
		}
	}
}

// sweepExpired deletes terminal jobs whose completion is older than the
// retention window, from memory and the store.
func (s *Scheduler) sweepExpired() {
	cutoff := time.Now().UTC().Add(-s.cfg.Retention)

	s.mu.Lock()
	var expired []string
	for id, job := range s.jobs {
		if job.Status.Terminal() && job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		delete(s.jobs, id)
	}
	s.mu.Unlock()

	for _, id := range expired {
		if err := s.store.Delete(s.ctx, id); err != nil {
			s.logger.Error("Failed to delete expired job",
				slog.String("job_id", id),
				slog.String("error", err.Error()),
			)
		}
	}

	if len(expired) > 0 {
		s.logger.Info("Retention sweep removed jobs", slog.Int("count", len(expired)))
	}
}

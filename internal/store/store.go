// Package store provides write-through persistence for job records.
//
// Durability is best-effort: the scheduler logs and swallows Save failures
// rather than failing the transition, so a store outage degrades crash
// recovery but never execution.
package store

import (
	"context"

	"github.com/shreed27/AgentHub-sub004/internal/domain"
)

// Store is the durable mirror of the scheduler's job map. Save is called
// after every job mutation, before any external notification fires.
type Store interface {
	Save(ctx context.Context, job *domain.Job) error
	Get(ctx context.Context, id string) (*domain.Job, error)
	LoadAll(ctx context.Context) ([]*domain.Job, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

// Nop discards every write. Used when persistence is disabled.
type Nop struct{}

func (Nop) Save(context.Context, *domain.Job) error { return nil }

func (Nop) Get(context.Context, string) (*domain.Job, error) {
	return nil, domain.ErrJobNotFound
}

func (Nop) LoadAll(context.Context) ([]*domain.Job, error) { return nil, nil }

func (Nop) Delete(context.Context, string) error { return nil }

func (Nop) Close() error { return nil }

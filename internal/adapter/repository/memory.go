package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hive-corporation/ioc-console/internal/core/domain"
)

// MemoryRepository keeps indicators in process memory, in insertion order.
// Its lifetime is the lifetime of the process.
type MemoryRepository struct {
	mu      sync.RWMutex
	iocs    []domain.IOC
	latency time.Duration
	now     func() time.Time
	newID   func() string
}

type MemoryOption func(*MemoryRepository)

// WithLatency delays every call by d, honouring context cancellation.
func WithLatency(d time.Duration) MemoryOption {
	return func(r *MemoryRepository) { r.latency = d }
}

func WithClock(now func() time.Time) MemoryOption {
	return func(r *MemoryRepository) { r.now = now }
}

func WithIDGenerator(newID func() string) MemoryOption {
	return func(r *MemoryRepository) { r.newID = newID }
}

// WithSeed preloads records verbatim, keeping their ids, dates and statuses.
func WithSeed(iocs ...domain.IOC) MemoryOption {
	return func(r *MemoryRepository) {
		for _, ioc := range iocs {
			r.iocs = append(r.iocs, ioc.Clone())
		}
	}
}

func NewMemoryRepository(opts ...MemoryOption) *MemoryRepository {
	r := &MemoryRepository{
		now:   time.Now,
		newID: func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *MemoryRepository) wait(ctx context.Context) error {
	if r.latency <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(r.latency)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *MemoryRepository) indexOf(id string) int {
	for i := range r.iocs {
		if r.iocs[i].ID == id {
			return i
		}
	}
	return -1
}

func (r *MemoryRepository) List(ctx context.Context) ([]domain.IOC, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.IOC, len(r.iocs))
	for i, ioc := range r.iocs {
		out[i] = ioc.Clone()
	}
	return out, nil
}

func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*domain.IOC, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	i := r.indexOf(id)
	if i == -1 {
		return nil, domain.ErrNotFound
	}
	ioc := r.iocs[i].Clone()
	return &ioc, nil
}

func (r *MemoryRepository) Create(ctx context.Context, ioc domain.IOC) (*domain.IOC, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored := ioc.Clone()
	stored.ID = r.newID()
	for r.indexOf(stored.ID) != -1 {
		stored.ID = r.newID()
	}
	stored.DateReported = r.now()
	stored.Status = domain.StatusPending
	if stored.Tags == nil {
		stored.Tags = []string{}
	}

	r.iocs = append(r.iocs, stored)

	out := stored.Clone()
	return &out, nil
}

func (r *MemoryRepository) Update(ctx context.Context, id string, patch domain.IOCPatch) (*domain.IOC, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i == -1 {
		return nil, domain.ErrNotFound
	}
	patch.Apply(&r.iocs[i])

	out := r.iocs[i].Clone()
	return &out, nil
}

func (r *MemoryRepository) Delete(ctx context.Context, id string) (bool, error) {
	if err := r.wait(ctx); err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i == -1 {
		return false, nil
	}
	r.iocs = append(r.iocs[:i], r.iocs[i+1:]...)
	return true, nil
}

func (r *MemoryRepository) Ping(ctx context.Context) error {
	return ctx.Err()
}

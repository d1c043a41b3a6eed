package memory

import (
	"context"
	"sync"
	"time"

	"github.com/frankieli/raffle_engine/internal/modules/raffle/domain"
)

// DrawRepository keeps draw history in process memory.
type DrawRepository struct {
	mu      sync.RWMutex
	records map[string]*domain.DrawRecord
	order   []string // insertion order, oldest first
}

func NewDrawRepository() *DrawRepository {
	return &DrawRepository{records: make(map[string]*domain.DrawRecord)}
}

func (r *DrawRepository) Create(ctx context.Context, record *domain.DrawRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	record.CreatedAt = now
	record.UpdatedAt = now
	r.records[record.RequestID] = clone(record)
	r.order = append(r.order, record.RequestID)
	return nil
}

func (r *DrawRepository) UpdateResult(ctx context.Context, requestID string, result domain.DrawResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[requestID]
	if !ok {
		return domain.ErrDrawNotFound
	}
	idx := result.WinnerIndex
	at := result.CompletedAt
	rec.Status = domain.DrawStatusCompleted
	rec.Winner = result.Winner
	rec.WinnerIndex = &idx
	rec.RandomValue = result.RandomValue
	rec.CompletedAt = &at
	rec.UpdatedAt = time.Now()
	return nil
}

func (r *DrawRepository) Get(ctx context.Context, requestID string) (*domain.DrawRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[requestID]
	if !ok {
		return nil, domain.ErrDrawNotFound
	}
	return clone(rec), nil
}

func (r *DrawRepository) ListRecent(ctx context.Context, limit int) ([]*domain.DrawRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if limit <= 0 {
		return nil, nil
	}
	out := make([]*domain.DrawRecord, 0, limit)
	for i := len(r.order) - 1; i >= 0 && len(out) < limit; i-- {
		rec := clone(r.records[r.order[i]])
		rec.Entries = nil
		out = append(out, rec)
	}
	return out, nil
}

func clone(rec *domain.DrawRecord) *domain.DrawRecord {
	cp := *rec
	cp.Entries = append([]domain.DrawEntry(nil), rec.Entries...)
	if rec.WinnerIndex != nil {
		idx := *rec.WinnerIndex
		cp.WinnerIndex = &idx
	}
	if rec.CompletedAt != nil {
		at := *rec.CompletedAt
		cp.CompletedAt = &at
	}
	return &cp
}

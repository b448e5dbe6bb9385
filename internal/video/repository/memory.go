package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/romariotrain/hls-vod/internal/video/models"
)

var ErrTxDone = errors.New("transaction already committed or rolled back")

// MemoryStore keeps videos and outbox records in process. Writes made through
// a transaction stay invisible until Commit.
type MemoryStore struct {
	mu     sync.RWMutex
	videos map[uuid.UUID]*models.Video
	outbox []models.OutboxRecord
	nextID int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		videos: make(map[uuid.UUID]*models.Video),
	}
}

type memoryTx struct {
	store   *MemoryStore
	mu      sync.Mutex
	created map[uuid.UUID]bool
	videos  map[uuid.UUID]*models.Video
	events  []models.OutboxRecord
	done    bool
}

func (s *MemoryStore) BeginTx(ctx context.Context) (Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &memoryTx{
		store:   s,
		created: make(map[uuid.UUID]bool),
		videos:  make(map[uuid.UUID]*models.Video),
	}, nil
}

func (s *MemoryStore) tx(tx Tx) (*memoryTx, error) {
	mt, ok := tx.(*memoryTx)
	if !ok || mt.store != s {
		return nil, fmt.Errorf("%w: foreign transaction", models.ErrInvalidArgument)
	}
	if mt.done {
		return nil, ErrTxDone
	}
	return mt, nil
}

func (s *MemoryStore) CreateTx(ctx context.Context, tx Tx, v *models.Video) error {
	if v == nil || v.ID == uuid.Nil {
		return models.ErrInvalidArgument
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	mt, err := s.tx(tx)
	if err != nil {
		return err
	}
	mt.mu.Lock()
	defer mt.mu.Unlock()

	s.mu.RLock()
	_, exists := s.videos[v.ID]
	s.mu.RUnlock()
	if exists || mt.created[v.ID] {
		return models.ErrConflict
	}

	mt.created[v.ID] = true
	mt.videos[v.ID] = copyVideo(v)
	return nil
}

func (s *MemoryStore) UpdateTx(ctx context.Context, tx Tx, v *models.Video) error {
	if v == nil || v.ID == uuid.Nil {
		return models.ErrInvalidArgument
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	mt, err := s.tx(tx)
	if err != nil {
		return err
	}
	mt.mu.Lock()
	defer mt.mu.Unlock()

	current, ok := mt.videos[v.ID]
	if !ok {
		s.mu.RLock()
		current, ok = s.videos[v.ID]
		s.mu.RUnlock()
		if !ok {
			return models.ErrNotFound
		}
	}

	updated := copyVideo(current)
	updated.Caption = v.Caption
	updated.TargetResolution = v.TargetResolution
	updated.ProcessedStream = copyString(v.ProcessedStream)
	updated.UpdatedAt = v.UpdatedAt
	mt.videos[v.ID] = updated
	return nil
}

func (s *MemoryStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Video, error) {
	if id == uuid.Nil {
		return nil, models.ErrInvalidArgument
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.videos[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return copyVideo(v), nil
}

func (s *MemoryStore) List(ctx context.Context, f models.ListFilter) ([]*models.Video, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	out := make([]*models.Video, 0, len(s.videos))
	for _, v := range s.videos {
		if f.TargetResolution != "" && v.TargetResolution != f.TargetResolution {
			continue
		}
		out = append(out, copyVideo(v))
	}
	s.mu.RUnlock()

	// newest first, like the SQL store
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return []*models.Video{}, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *MemoryStore) AddTx(ctx context.Context, tx Tx, event models.DomainEvent) error {
	if event == nil {
		return models.ErrInvalidArgument
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	mt, err := s.tx(tx)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	mt.mu.Lock()
	defer mt.mu.Unlock()
	mt.events = append(mt.events, models.OutboxRecord{
		EventID:     event.EventID().String(),
		EventType:   event.EventType(),
		AggregateID: event.AggregateID().String(),
		Payload:     payload,
		OccurredAt:  event.OccurredAt(),
	})
	return nil
}

func (s *MemoryStore) GetPending(ctx context.Context, limit int) ([]models.OutboxRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.OutboxRecord, 0)
	for _, rec := range s.outbox {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, rec)
	}
	return out, nil
}

// MarkProcessed drops the record; the memory store keeps no relay history.
func (s *MemoryStore) MarkProcessed(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, rec := range s.outbox {
		if rec.ID == id {
			s.outbox = append(s.outbox[:i], s.outbox[i+1:]...)
			return nil
		}
	}
	return models.ErrNotFound
}

func (t *memoryTx) Commit() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return ErrTxDone
	}
	t.done = true

	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for id := range t.created {
		if _, exists := s.videos[id]; exists {
			return models.ErrConflict
		}
	}
	for id, v := range t.videos {
		s.videos[id] = v
	}
	for _, rec := range t.events {
		s.nextID++
		rec.ID = s.nextID
		s.outbox = append(s.outbox, rec)
	}
	return nil
}

func (t *memoryTx) Rollback() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.done = true
	return nil
}

func copyVideo(v *models.Video) *models.Video {
	cp := *v
	cp.ProcessedStream = copyString(v.ProcessedStream)
	return &cp
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	cp := *s
	return &cp
}

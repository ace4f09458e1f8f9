package mutation

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/trackroom/backend/internal/apperrors"
	"gorm.io/gorm"
)

// GormStore applies field patches directly against the relational store.
// The store is last-write-wins; no merge is attempted here.
type GormStore struct {
	DB *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{DB: db}
}

func (s *GormStore) Apply(ctx context.Context, ref EntityRef, value interface{}) error {
	result := s.DB.WithContext(ctx).
		Table(ref.Table).
		Where("id = ?", ref.ID).
		Update(ref.Field, value)
	if result.Error != nil {
		return fmt.Errorf("applying %s: %v: %w", ref, result.Error, apperrors.ErrTransient)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("applying %s: row missing: %w", ref, apperrors.ErrNotFound)
	}
	return nil
}

// Registry hands out one Writer per editing session (keyed by user). Each
// writer owns its own event loop, so edits from one session stay ordered
// while different sessions never block each other.
type Registry struct {
	mu        sync.Mutex
	writers   map[uuid.UUID]*Writer
	newWriter func(userID uuid.UUID) *Writer
}

func NewRegistry(newWriter func(userID uuid.UUID) *Writer) *Registry {
	return &Registry{
		writers:   make(map[uuid.UUID]*Writer),
		newWriter: newWriter,
	}
}

func (r *Registry) For(userID uuid.UUID) *Writer {
	r.mu.Lock()
	defer r.mu.Unlock()

	if w, ok := r.writers[userID]; ok {
		return w
	}
	w := r.newWriter(userID)
	r.writers[userID] = w
	return w
}

// Drop closes and forgets a session's writer; debouncing edits are
// discarded, never sent.
func (r *Registry) Drop(userID uuid.UUID) {
	r.mu.Lock()
	w, ok := r.writers[userID]
	if ok {
		delete(r.writers, userID)
	}
	r.mu.Unlock()

	if ok {
		w.Close()
	}
}

// CloseAll shuts every writer down, for server shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	writers := make([]*Writer, 0, len(r.writers))
	for _, w := range r.writers {
		writers = append(writers, w)
	}
	r.writers = make(map[uuid.UUID]*Writer)
	r.mu.Unlock()

	for _, w := range writers {
		w.Close()
	}
}

package worker

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"dragonfly-id/internal/model"
)

type memoryStore struct {
	rows      map[string]model.Sighting
	createErr error
	existsErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{rows: make(map[string]model.Sighting)}
}

func (s *memoryStore) ExistsByEventID(eventID string) (bool, error) {
	if s.existsErr != nil {
		return false, s.existsErr
	}
	_, ok := s.rows[eventID]
	return ok, nil
}

func (s *memoryStore) Create(sighting *model.Sighting) error {
	if s.createErr != nil {
		return s.createErr
	}
	sighting.ID = uint(len(s.rows) + 1)
	s.rows[sighting.EventID] = *sighting
	return nil
}

func payload(t *testing.T, s model.Sighting) []byte {
	t.Helper()
	b, err := json.Marshal(s)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestHandlePersistsOnce(t *testing.T) {
	store := newMemoryStore()
	w := NewSightingSyncWorker(nil, store, "sighting.sync")
	s := model.NewSighting(3, "Brown Hawker", 0.92, "model", "/data/uploads/a.jpg", time.Now())

	if !w.handle(payload(t, s)) {
		t.Fatal("first delivery should be acked")
	}
	if !w.handle(payload(t, s)) {
		t.Fatal("duplicate delivery should be acked")
	}
	if len(store.rows) != 1 {
		t.Errorf("stored %d rows, want 1", len(store.rows))
	}
	if got := store.rows[s.EventID]; got.Label != "Brown Hawker" || got.ObserverID != 3 {
		t.Errorf("stored %+v", got)
	}
}

func TestHandleRejects(t *testing.T) {
	s := model.NewSighting(1, "Blue Dasher", 0.8, "model", "x.jpg", time.Now())
	noID := s
	noID.EventID = ""

	tests := []struct {
		name  string
		body  []byte
		store *memoryStore
	}{
		{"bad json", []byte("{"), newMemoryStore()},
		{"missing event id", payload(t, noID), newMemoryStore()},
		{"create fails", payload(t, s), &memoryStore{rows: map[string]model.Sighting{}, createErr: errors.New("db down")}},
		{"lookup fails", payload(t, s), &memoryStore{rows: map[string]model.Sighting{}, existsErr: errors.New("db down")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewSightingSyncWorker(nil, tt.store, "sighting.sync")
			if w.handle(tt.body) {
				t.Error("expected nack")
			}
		})
	}
}

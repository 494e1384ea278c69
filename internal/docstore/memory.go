package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is a process-local Store used by tests and by development runs
// without a database. Filters match top-level keys by deep equality.
type Memory struct {
	mu    sync.RWMutex
	docs  map[uuid.UUID]Document
	order []uuid.UUID
	now   func() time.Time
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		docs: make(map[uuid.UUID]Document),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (m *Memory) Insert(_ context.Context, collection string, body any) (Document, error) {
	raw, err := encodeObject(body)
	if err != nil {
		return Document{}, fmt.Errorf("encode %s document: %w", collection, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	doc := Document{
		ID:         uuid.New(),
		Collection: collection,
		Body:       append(json.RawMessage(nil), raw...),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	m.docs[doc.ID] = doc
	m.order = append(m.order, doc.ID)
	return doc, nil
}

func (m *Memory) Get(_ context.Context, collection string, id uuid.UUID) (Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.docs[id]
	if !ok || doc.Collection != collection {
		return Document{}, ErrNotFound
	}
	return doc, nil
}

func (m *Memory) Find(_ context.Context, collection string, filter map[string]any) ([]Document, error) {
	want, err := normaliseFilter(filter)
	if err != nil {
		return nil, fmt.Errorf("encode %s filter: %w", collection, err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	docs := make([]Document, 0)
	for _, id := range m.order {
		doc := m.docs[id]
		if doc.Collection != collection {
			continue
		}
		ok, err := matches(doc.Body, want)
		if err != nil {
			return nil, fmt.Errorf("match %s document %s: %w", collection, id, err)
		}
		if ok {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

func (m *Memory) Merge(_ context.Context, collection string, id uuid.UUID, patch any) (Document, error) {
	raw, err := encodeObject(patch)
	if err != nil {
		return Document{}, fmt.Errorf("encode %s patch: %w", collection, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.docs[id]
	if !ok || doc.Collection != collection {
		return Document{}, ErrNotFound
	}

	var current, changes map[string]json.RawMessage
	if err := json.Unmarshal(doc.Body, &current); err != nil {
		return Document{}, fmt.Errorf("decode %s document: %w", collection, err)
	}
	if err := json.Unmarshal(raw, &changes); err != nil {
		return Document{}, fmt.Errorf("decode %s patch: %w", collection, err)
	}
	if current == nil {
		current = make(map[string]json.RawMessage, len(changes))
	}
	for k, v := range changes {
		current[k] = v
	}

	merged, err := json.Marshal(current)
	if err != nil {
		return Document{}, fmt.Errorf("encode %s document: %w", collection, err)
	}
	doc.Body = merged
	doc.UpdatedAt = m.now()
	m.docs[id] = doc
	return doc, nil
}

func (m *Memory) Delete(_ context.Context, collection string, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.docs[id]
	if !ok || doc.Collection != collection {
		return false, nil
	}
	delete(m.docs, id)
	for i, existing := range m.order {
		if existing == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return true, nil
}

func (m *Memory) Ping(context.Context) error { return nil }

// normaliseFilter round-trips filter values through JSON so they compare
// equal to decoded document values (numbers become float64 and so on).
func normaliseFilter(filter map[string]any) (map[string]any, error) {
	if len(filter) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(filter)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func matches(body json.RawMessage, want map[string]any) (bool, error) {
	if len(want) == 0 {
		return true, nil
	}
	var have map[string]any
	if err := json.Unmarshal(body, &have); err != nil {
		return false, err
	}
	for k, v := range want {
		got, ok := have[k]
		if !ok || !reflect.DeepEqual(got, v) {
			return false, nil
		}
	}
	return true, nil
}

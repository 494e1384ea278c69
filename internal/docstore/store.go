// Package docstore stores schemaless JSON documents grouped into named
// collections. Records are inserted, fetched by id, found by a JSON
// containment filter, merged field-by-field and deleted.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no document matches the collection and id.
var ErrNotFound = errors.New("document not found")

// Document is a stored JSON body plus the metadata the store manages.
type Document struct {
	ID         uuid.UUID
	Collection string
	Body       json.RawMessage
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Store is the document-store capability used by the record gateway.
//
// Find returns documents whose body contains every key/value in filter,
// oldest first; a nil or empty filter matches the whole collection.
// Merge overwrites only the top-level keys present in patch.
// Delete reports whether a document was removed.
type Store interface {
	Insert(ctx context.Context, collection string, body any) (Document, error)
	Get(ctx context.Context, collection string, id uuid.UUID) (Document, error)
	Find(ctx context.Context, collection string, filter map[string]any) ([]Document, error)
	Merge(ctx context.Context, collection string, id uuid.UUID, patch any) (Document, error)
	Delete(ctx context.Context, collection string, id uuid.UUID) (bool, error)
	Ping(ctx context.Context) error
}

// encodeObject marshals v and insists on a JSON object, the only body shape
// the store accepts.
func encodeObject(v any) (json.RawMessage, error) {
	if raw, ok := v.(json.RawMessage); ok {
		return checkObject(raw)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return checkObject(b)
}

func checkObject(b []byte) (json.RawMessage, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(b, &obj); err != nil {
		return nil, errors.New("document body must be a JSON object")
	}
	if obj == nil {
		return json.RawMessage("{}"), nil
	}
	return b, nil
}

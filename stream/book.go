package stream

import (
	"encoding/json"
	"sync"
)

// Book coalesces per-symbol streamed state for venues that send a full
// snapshot first and partial deltas afterwards. T is the venue's typed
// payload; delta application re-unmarshals the raw delta into a copy of the
// stored value so only fields present on the wire overwrite.
type Book[T any] struct {
	mu   sync.Mutex
	byID map[string]T
}

func NewBook[T any]() *Book[T] {
	return &Book[T]{byID: make(map[string]T)}
}

// ApplySnapshot replaces the stored state for key with a freshly decoded
// value. Previous state, if any, is discarded entirely.
func (b *Book[T]) ApplySnapshot(key string, raw json.RawMessage) (T, error) {
	var next T
	if err := json.Unmarshal(raw, &next); err != nil {
		return next, err
	}
	b.mu.Lock()
	b.byID[key] = next
	b.mu.Unlock()
	return next, nil
}

// ApplyDelta merges the raw delta over the stored state for key and returns
// the merged value. The second return is false when no snapshot has arrived
// yet for the key; such deltas must not be emitted.
func (b *Book[T]) ApplyDelta(key string, raw json.RawMessage) (T, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	merged, ok := b.byID[key]
	if !ok {
		var zero T
		return zero, false, nil
	}
	if err := json.Unmarshal(raw, &merged); err != nil {
		return merged, false, err
	}
	b.byID[key] = merged
	return merged, true, nil
}

// Has reports whether a snapshot was stored for key.
func (b *Book[T]) Has(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.byID[key]
	return ok
}

// Package queue is the crash-durable record of operations that could not be
// delivered immediately. Items are appended while offline and replayed
// oldest-first by the sync coordinator once connectivity returns.
package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"veracity/internal/store"
)

// ErrPersist wraps a failure to durably record an enqueue. Unlike cache
// failures this is surfaced to the caller: silently dropping queued user work
// is unacceptable.
var ErrPersist = errors.New("queue: failed to persist item")

// Kind identifies the remote operation an item carries.
type Kind string

const (
	KindAnalysis       Kind = "analysis"
	KindQuizSubmission Kind = "quiz_submission"
	KindReport         Kind = "report"
)

// ValidKind reports whether k is a known operation kind.
func ValidKind(k Kind) bool {
	switch k {
	case KindAnalysis, KindQuizSubmission, KindReport:
		return true
	}
	return false
}

const keyPrefix = "queue/"

// Item is one pending remote operation. Only the attempt counter and the
// dead-letter flag mutate after creation.
type Item struct {
	ID           string    `json:"id"`
	Kind         Kind      `json:"kind"`
	Payload      []byte    `json:"payload"`
	EnqueuedAt   time.Time `json:"enqueued_at"`
	Attempts     int       `json:"attempts"`
	DeadLettered bool      `json:"dead_lettered"`
}

// Queue is the durable, ordered store of pending operations. All mutations
// are serialized through the exclusive lock; the durable write completes
// before Enqueue returns.
type Queue struct {
	kv  store.KV
	log *zap.Logger
	mu  sync.Mutex
}

// Open returns a queue over the given store.
func Open(kv store.KV, log *zap.Logger) *Queue {
	if log == nil {
		log = zap.NewNop()
	}
	return &Queue{kv: kv, log: log.Named("queue")}
}

// Enqueue durably appends a new item and returns its identifier. A process
// restart immediately after a successful return still observes the item.
func (q *Queue) Enqueue(kind Kind, payload []byte) (string, error) {
	if !ValidKind(kind) {
		return "", fmt.Errorf("queue: unknown kind %q", kind)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	item := Item{
		ID:         uuid.NewString(),
		Kind:       kind,
		Payload:    payload,
		EnqueuedAt: time.Now().UTC(),
	}
	if err := q.put(item); err != nil {
		return "", fmt.Errorf("%w: %v", ErrPersist, err)
	}

	q.log.Debug("item enqueued", zap.String("id", item.ID), zap.String("kind", string(kind)))
	return item.ID, nil
}

// ListPending returns all non-dead-lettered items, oldest first.
func (q *Queue) ListPending() ([]Item, error) {
	items, err := q.list()
	if err != nil {
		return nil, err
	}
	pending := items[:0]
	for _, it := range items {
		if !it.DeadLettered {
			pending = append(pending, it)
		}
	}
	return pending, nil
}

// ListDeadLettered returns items excluded from replay, oldest first.
func (q *Queue) ListDeadLettered() ([]Item, error) {
	items, err := q.list()
	if err != nil {
		return nil, err
	}
	dead := items[:0]
	for _, it := range items {
		if it.DeadLettered {
			dead = append(dead, it)
		}
	}
	return dead, nil
}

// Remove deletes an item after confirmed delivery. Removing a missing id is a
// no-op, not an error.
func (q *Queue) Remove(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.kv.Delete(keyPrefix + id)
}

// MarkAttempt increments an item's attempt counter and returns the new count.
// Marking a missing item returns 0 without error: the item may have been
// removed by a concurrent confirmed delivery.
func (q *Queue) MarkAttempt(id string) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	item, ok, err := q.get(id)
	if err != nil || !ok {
		return 0, err
	}
	item.Attempts++
	if err := q.put(item); err != nil {
		return 0, err
	}
	return item.Attempts, nil
}

// DeadLetter marks an item as excluded from future replay passes. The item is
// retained for inspection rather than deleted.
func (q *Queue) DeadLetter(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	item, ok, err := q.get(id)
	if err != nil || !ok {
		return err
	}
	if item.DeadLettered {
		return nil
	}
	item.DeadLettered = true
	if err := q.put(item); err != nil {
		return err
	}
	q.log.Warn("item dead-lettered",
		zap.String("id", id),
		zap.String("kind", string(item.Kind)),
		zap.Int("attempts", item.Attempts))
	return nil
}

// Clear removes all items, dead-lettered included.
func (q *Queue) Clear() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.kv.DeletePrefix(keyPrefix)
}

// Depth returns the number of pending, non-dead-lettered items.
func (q *Queue) Depth() (int, error) {
	pending, err := q.ListPending()
	if err != nil {
		return 0, err
	}
	return len(pending), nil
}

func (q *Queue) put(item Item) error {
	data, err := json.Marshal(item)
	if err != nil {
		return err
	}
	return q.kv.Set(keyPrefix+item.ID, data)
}

func (q *Queue) get(id string) (Item, bool, error) {
	data, err := q.kv.Get(keyPrefix + id)
	if errors.Is(err, store.ErrKeyNotFound) {
		return Item{}, false, nil
	}
	if err != nil {
		return Item{}, false, err
	}
	var item Item
	if err := json.Unmarshal(data, &item); err != nil {
		return Item{}, false, err
	}
	return item, true, nil
}

func (q *Queue) list() ([]Item, error) {
	pairs, err := q.kv.Scan(keyPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to scan queue range: %w", err)
	}

	items := make([]Item, 0, len(pairs))
	for _, p := range pairs {
		var it Item
		if err := json.Unmarshal(p.Value, &it); err != nil {
			q.log.Warn("skipping corrupt queue item", zap.String("key", p.Key), zap.Error(err))
			continue
		}
		items = append(items, it)
	}
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].EnqueuedAt.Equal(items[j].EnqueuedAt) {
			return items[i].EnqueuedAt.Before(items[j].EnqueuedAt)
		}
		return items[i].ID < items[j].ID
	})
	return items, nil
}

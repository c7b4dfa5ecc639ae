package wideevent

import (
	"context"
	"encoding/json"
	"sync"

	"docledger/internal/storage"
)

// Queue is the bounded durable backlog of undelivered events. Every mutation
// reads the whole array, changes it in memory and writes it back.
//
// The mutex serializes access within this process only. Two processes sharing
// one storage file can still interleave read/clear/write and lose events;
// the last writer wins.
type Queue struct {
	mu       sync.Mutex
	store    storage.Local
	key      string
	capacity int
}

// NewQueue returns a queue over store. A capacity below 1 uses DefaultQueueCapacity.
func NewQueue(store storage.Local, capacity int) *Queue {
	if capacity < 1 {
		capacity = DefaultQueueCapacity
	}
	return &Queue{store: store, key: QueueKey, capacity: capacity}
}

// Enqueue appends event, evicting the oldest entries beyond capacity, and
// returns the resulting length. Storage failures drop the event and return 0.
func (q *Queue) Enqueue(ctx context.Context, event WideEvent) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	events := q.read(ctx)
	events = append(events, event)
	if over := len(events) - q.capacity; over > 0 {
		events = events[over:]
	}
	if !q.write(ctx, events) {
		return 0
	}
	return len(events)
}

// Drain returns every queued event in insertion order and clears the queue.
func (q *Queue) Drain(ctx context.Context) []WideEvent {
	q.mu.Lock()
	defer q.mu.Unlock()

	events := q.read(ctx)
	if len(events) == 0 || q.store == nil {
		return nil
	}
	if err := q.store.RemoveItem(ctx, q.key); err != nil {
		return nil
	}
	return events
}

// Events returns the queued events without changing the queue.
func (q *Queue) Events(ctx context.Context) []WideEvent {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.read(ctx)
}

// Len returns the number of queued events.
func (q *Queue) Len(ctx context.Context) int {
	return len(q.Events(ctx))
}

// read treats a missing store, missing key, failed read or corrupt JSON as empty.
func (q *Queue) read(ctx context.Context) []WideEvent {
	if q.store == nil {
		return nil
	}
	raw, ok, err := q.store.GetItem(ctx, q.key)
	if err != nil || !ok || raw == "" {
		return nil
	}
	var events []WideEvent
	if err := json.Unmarshal([]byte(raw), &events); err != nil {
		return nil
	}
	return events
}

func (q *Queue) write(ctx context.Context, events []WideEvent) bool {
	if q.store == nil {
		return false
	}
	b, err := json.Marshal(events)
	if err != nil {
		return false
	}
	return q.store.SetItem(ctx, q.key, string(b)) == nil
}

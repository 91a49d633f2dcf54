package task

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/maestro-api/maestro/internal/domain"
	"github.com/maestro-api/maestro/internal/store"
)

// queueEntry is one ordering hint held by the queue: the task id plus the
// two sort keys frozen at enqueue time. The entry carries no task state;
// validity is re-checked against the store when it is popped.
type queueEntry struct {
	id        uuid.UUID
	score     int
	createdAt time.Time
}

// entryHeap orders entries by priority score descending, ties broken by
// earliest creation time (FIFO within a priority level).
type entryHeap []queueEntry

func (h entryHeap) Len() int { return len(h) }

func (h entryHeap) Less(i, j int) bool {
	if h[i].score != h[j].score {
		return h[i].score > h[j].score
	}
	return h[i].createdAt.Before(h[j].createdAt)
}

func (h entryHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *entryHeap) Push(x any) { *h = append(*h, x.(queueEntry)) }

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	entry := old[n-1]
	*h = old[:n-1]
	return entry
}

// PriorityQueue is the in-memory dispatch ordering structure. It holds task
// identifiers only; the store's status column is the source of truth and the
// queue tolerates staleness by revalidating on Dequeue.
//
// Enqueue and Dequeue are called concurrently by the submit path and the
// dispatch loop; all access is serialized by a single mutex.
type PriorityQueue struct {
	mu      sync.Mutex
	entries entryHeap
	store   store.TaskStore
	logger  *slog.Logger
}

// NewPriorityQueue creates an empty queue backed by the given store for
// revalidation of popped entries.
func NewPriorityQueue(taskStore store.TaskStore, logger *slog.Logger) *PriorityQueue {
	q := &PriorityQueue{
		entries: entryHeap{},
		store:   taskStore,
		logger:  logger.With("component", "priority_queue"),
	}
	heap.Init(&q.entries)
	return q
}

// Enqueue adds a task's ordering hint to the queue. The priority score is a
// pure function of the priority level; two tasks at the same level are
// strictly FIFO-ordered by creation time, with no re-weighting by age.
func (q *PriorityQueue) Enqueue(task *domain.Task) {
	q.mu.Lock()
	defer q.mu.Unlock()

	heap.Push(&q.entries, queueEntry{
		id:        task.ID,
		score:     task.PriorityScore(),
		createdAt: task.CreatedAt,
	})

	q.logger.Debug("task enqueued",
		"task_id", task.ID,
		"priority", task.Priority,
		"priority_score", task.PriorityScore(),
		"queue_len", q.entries.Len())
}

// Dequeue pops the highest-priority entry that still refers to a pending
// task. Entries whose task is no longer pending in the store (cancelled,
// already claimed, or deleted out-of-band) are discarded and the next
// candidate is tried. Returns (nil, nil) when the queue is exhausted.
func (q *PriorityQueue) Dequeue(ctx context.Context) (*domain.Task, error) {
	for {
		entry, ok := q.pop()
		if !ok {
			return nil, nil
		}

		current, err := q.store.GetByID(ctx, entry.id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				q.logger.Warn("discarding queue entry for unknown task", "task_id", entry.id)
				continue
			}
			// Transient store errors must not strand the task: put the
			// entry back so the next poll retries it.
			q.push(entry)
			return nil, fmt.Errorf("failed to revalidate queued task %s: %w", entry.id, err)
		}

		if current.Status != domain.TaskStatusPending {
			q.logger.Debug("discarding stale queue entry",
				"task_id", entry.id,
				"status", current.Status)
			continue
		}

		return current, nil
	}
}

// push re-inserts an entry under the lock.
func (q *PriorityQueue) push(entry queueEntry) {
	q.mu.Lock()
	defer q.mu.Unlock()
	heap.Push(&q.entries, entry)
}

// pop removes and returns the top entry under the lock.
func (q *PriorityQueue) pop() (queueEntry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.entries.Len() == 0 {
		return queueEntry{}, false
	}
	return heap.Pop(&q.entries).(queueEntry), true
}

// Len returns the number of entries currently held, including any that may
// have gone stale since enqueue.
func (q *PriorityQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.entries.Len()
}

// Reconcile rebuilds the queue's index from the store's pending tasks. It is
// used at startup to recover work that was pending when the previous process
// exited. Entries already in the queue are replaced wholesale; the store is
// authoritative.
func (q *PriorityQueue) Reconcile(ctx context.Context) (int, error) {
	pending := domain.TaskStatusPending
	tasks, err := q.store.List(ctx, &pending, 0)
	if err != nil {
		return 0, fmt.Errorf("failed to list pending tasks: %w", err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	q.entries = q.entries[:0]
	for _, t := range tasks {
		q.entries = append(q.entries, queueEntry{
			id:        t.ID,
			score:     t.PriorityScore(),
			createdAt: t.CreatedAt,
		})
	}
	heap.Init(&q.entries)

	q.logger.Info("queue reconciled against store", "pending_count", len(tasks))
	return len(tasks), nil
}

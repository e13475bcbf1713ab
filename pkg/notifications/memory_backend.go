package notifications

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vintasoftware/vintasend-go/pkg/attachments"
)

// MemoryBackend is an in-memory implementation of Backend. Suitable for
// development and testing. It also persists attachment metadata by embedding
// the in-memory metadata store, making it attachment-capable.
type MemoryBackend struct {
	*attachments.MemoryMetadataStore

	mu            sync.RWMutex
	notifications map[uuid.UUID]Notification
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		MemoryMetadataStore: attachments.NewMemoryMetadataStore(),
		notifications:       make(map[uuid.UUID]Notification),
	}
}

func (b *MemoryBackend) Persist(ctx context.Context, n Notification) (*Notification, error) {
	if n.IsPersisted() {
		return nil, ErrAlreadyPersisted
	}
	if err := n.Validate(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	n.ID = uuid.New()
	if n.Status == "" {
		n.Status = StatusPendingSend
	}
	n.CreatedAt = now
	n.UpdatedAt = now

	b.notifications[n.ID] = n
	stored := n
	return &stored, nil
}

func (b *MemoryBackend) PersistUpdate(ctx context.Context, n Notification) (*Notification, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	current, ok := b.notifications[n.ID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotificationNotFound, n.ID)
	}
	if current.Status != StatusPendingSend {
		return nil, fmt.Errorf("%w: %s", ErrNotPending, n.ID)
	}

	n.CreatedAt = current.CreatedAt
	n.UpdatedAt = time.Now()
	b.notifications[n.ID] = n
	stored := n
	return &stored, nil
}

func (b *MemoryBackend) MarkSent(ctx context.Context, id uuid.UUID, checkIsPending bool) error {
	return b.transition(id, StatusSent, checkIsPending, StatusPendingSend)
}

func (b *MemoryBackend) MarkFailed(ctx context.Context, id uuid.UUID, checkIsPending bool) error {
	return b.transition(id, StatusFailed, checkIsPending, StatusPendingSend)
}

func (b *MemoryBackend) MarkRead(ctx context.Context, id uuid.UUID, checkIsSent bool) error {
	return b.transition(id, StatusRead, checkIsSent, StatusSent)
}

func (b *MemoryBackend) Cancel(ctx context.Context, id uuid.UUID) error {
	return b.transition(id, StatusCancelled, true, StatusPendingSend)
}

// transition applies a conditional status change under the write lock,
// mirroring the atomic conditional update a database backend performs.
func (b *MemoryBackend) transition(id uuid.UUID, next Status, check bool, expected Status) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	n, ok := b.notifications[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotificationNotFound, id)
	}
	if check && n.Status != expected {
		if expected == StatusSent {
			return fmt.Errorf("%w: %s is %s", ErrNotSent, id, n.Status)
		}
		return fmt.Errorf("%w: %s is %s", ErrNotPending, id, n.Status)
	}

	now := time.Now()
	n.Status = next
	n.UpdatedAt = now
	switch next {
	case StatusSent:
		n.SentAt = &now
	case StatusRead:
		n.ReadAt = &now
	}

	b.notifications[id] = n
	return nil
}

func (b *MemoryBackend) Get(ctx context.Context, id uuid.UUID, forUpdate bool) (*Notification, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n, ok := b.notifications[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotificationNotFound, id)
	}
	// Return a copy to prevent external mutation of stored data.
	found := n
	return &found, nil
}

func (b *MemoryBackend) ListPending(ctx context.Context) ([]Notification, error) {
	return b.list(func(n Notification) bool {
		return n.Status == StatusPendingSend && n.IsDue(time.Now())
	}), nil
}

func (b *MemoryBackend) ListPendingForUser(ctx context.Context, userID string) ([]Notification, error) {
	return b.list(func(n Notification) bool {
		return n.Status == StatusPendingSend && n.IsDue(time.Now()) &&
			n.Recipient.Kind == RecipientAccount && n.Recipient.UserID == userID
	}), nil
}

func (b *MemoryBackend) ListScheduled(ctx context.Context) ([]Notification, error) {
	return b.list(func(n Notification) bool {
		return n.Status == StatusPendingSend && !n.IsDue(time.Now())
	}), nil
}

func (b *MemoryBackend) ListScheduledForUser(ctx context.Context, userID string) ([]Notification, error) {
	return b.list(func(n Notification) bool {
		return n.Status == StatusPendingSend && !n.IsDue(time.Now()) &&
			n.Recipient.Kind == RecipientAccount && n.Recipient.UserID == userID
	}), nil
}

func (b *MemoryBackend) ListAll(ctx context.Context, limit, offset int) ([]Notification, error) {
	if limit <= 0 {
		return nil, ErrInvalidBatchSize
	}

	all := b.list(func(Notification) bool { return true })
	if offset >= len(all) {
		return []Notification{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (b *MemoryBackend) StoreContextUsed(ctx context.Context, id uuid.UUID, used Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	n, ok := b.notifications[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotificationNotFound, id)
	}
	n.ContextUsed = used
	n.UpdatedAt = time.Now()
	b.notifications[id] = n
	return nil
}

func (b *MemoryBackend) BulkPersist(ctx context.Context, batch []Notification) ([]Notification, error) {
	stored := make([]Notification, 0, len(batch))
	for _, n := range batch {
		persisted, err := b.Persist(ctx, n)
		if err != nil {
			return stored, err
		}
		stored = append(stored, *persisted)
	}
	return stored, nil
}

// list returns matching notifications ordered by creation time, oldest first,
// with id as a tiebreaker for stable pagination.
func (b *MemoryBackend) list(match func(Notification) bool) []Notification {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var result []Notification
	for _, n := range b.notifications {
		if match(n) {
			result = append(result, n)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID.String() < result[j].ID.String()
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

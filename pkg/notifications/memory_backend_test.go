package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPendingEmail(userID string) Notification {
	return Notification{
		Recipient:    AccountRecipient(userID),
		Type:         TypeEmail,
		Title:        "Welcome",
		BodyTemplate: "welcome.html",
		ContextName:  "welcome",
	}
}

func TestMemoryBackend_Persist(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()

	t.Run("assigns identity and defaults", func(t *testing.T) {
		stored, err := b.Persist(ctx, newPendingEmail("u1"))
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, stored.ID)
		assert.Equal(t, StatusPendingSend, stored.Status)
		assert.False(t, stored.CreatedAt.IsZero())
		assert.Equal(t, stored.CreatedAt, stored.UpdatedAt)
	})

	t.Run("rejects already persisted input", func(t *testing.T) {
		n := newPendingEmail("u1")
		n.ID = uuid.New()
		_, err := b.Persist(ctx, n)
		assert.ErrorIs(t, err, ErrAlreadyPersisted)
	})

	t.Run("rejects invalid recipient", func(t *testing.T) {
		n := newPendingEmail("u1")
		n.Recipient = Recipient{}
		_, err := b.Persist(ctx, n)
		assert.ErrorIs(t, err, ErrInvalidRecipient)
	})
}

func TestMemoryBackend_PersistUpdate(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()

	stored, err := b.Persist(ctx, newPendingEmail("u1"))
	require.NoError(t, err)

	t.Run("updates pending notification", func(t *testing.T) {
		edited := *stored
		edited.Title = "Updated"
		updated, err := b.PersistUpdate(ctx, edited)
		require.NoError(t, err)
		assert.Equal(t, "Updated", updated.Title)
		assert.Equal(t, stored.CreatedAt, updated.CreatedAt)
	})

	t.Run("unknown id", func(t *testing.T) {
		missing := *stored
		missing.ID = uuid.New()
		_, err := b.PersistUpdate(ctx, missing)
		assert.ErrorIs(t, err, ErrNotificationNotFound)
	})

	t.Run("refuses non-pending notification", func(t *testing.T) {
		require.NoError(t, b.MarkSent(ctx, stored.ID, true))
		_, err := b.PersistUpdate(ctx, *stored)
		assert.ErrorIs(t, err, ErrNotPending)
	})
}

func TestMemoryBackend_StatusTransitions(t *testing.T) {
	ctx := context.Background()

	persist := func(t *testing.T, b *MemoryBackend) uuid.UUID {
		t.Helper()
		stored, err := b.Persist(ctx, newPendingEmail("u1"))
		require.NoError(t, err)
		return stored.ID
	}

	t.Run("mark sent stamps sentAt", func(t *testing.T) {
		b := NewMemoryBackend()
		id := persist(t, b)
		require.NoError(t, b.MarkSent(ctx, id, true))

		got, err := b.Get(ctx, id, false)
		require.NoError(t, err)
		assert.Equal(t, StatusSent, got.Status)
		require.NotNil(t, got.SentAt)
	})

	t.Run("mark sent twice fails the pending check", func(t *testing.T) {
		b := NewMemoryBackend()
		id := persist(t, b)
		require.NoError(t, b.MarkSent(ctx, id, true))
		assert.ErrorIs(t, b.MarkSent(ctx, id, true), ErrNotPending)
	})

	t.Run("mark read requires sent", func(t *testing.T) {
		b := NewMemoryBackend()
		id := persist(t, b)
		assert.ErrorIs(t, b.MarkRead(ctx, id, true), ErrNotSent)

		require.NoError(t, b.MarkSent(ctx, id, true))
		require.NoError(t, b.MarkRead(ctx, id, true))

		got, err := b.Get(ctx, id, false)
		require.NoError(t, err)
		assert.Equal(t, StatusRead, got.Status)
		require.NotNil(t, got.ReadAt)
	})

	t.Run("cancel only pending", func(t *testing.T) {
		b := NewMemoryBackend()
		id := persist(t, b)
		require.NoError(t, b.Cancel(ctx, id))
		assert.ErrorIs(t, b.Cancel(ctx, id), ErrNotPending)
	})

	t.Run("mark failed", func(t *testing.T) {
		b := NewMemoryBackend()
		id := persist(t, b)
		require.NoError(t, b.MarkFailed(ctx, id, true))

		got, err := b.Get(ctx, id, false)
		require.NoError(t, err)
		assert.Equal(t, StatusFailed, got.Status)
	})

	t.Run("unchecked transition skips the state guard", func(t *testing.T) {
		b := NewMemoryBackend()
		id := persist(t, b)
		require.NoError(t, b.MarkFailed(ctx, id, true))
		require.NoError(t, b.MarkSent(ctx, id, false))
	})

	t.Run("unknown id", func(t *testing.T) {
		b := NewMemoryBackend()
		assert.ErrorIs(t, b.MarkSent(ctx, uuid.New(), true), ErrNotificationNotFound)
	})
}

func TestMemoryBackend_Listings(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()
	future := time.Now().Add(2 * time.Hour)

	due, err := b.Persist(ctx, newPendingEmail("u1"))
	require.NoError(t, err)

	scheduled := newPendingEmail("u1")
	scheduled.SendAfter = &future
	schedStored, err := b.Persist(ctx, scheduled)
	require.NoError(t, err)

	other, err := b.Persist(ctx, newPendingEmail("u2"))
	require.NoError(t, err)

	sent, err := b.Persist(ctx, newPendingEmail("u1"))
	require.NoError(t, err)
	require.NoError(t, b.MarkSent(ctx, sent.ID, true))

	t.Run("pending excludes scheduled and sent", func(t *testing.T) {
		got, err := b.ListPending(ctx)
		require.NoError(t, err)
		ids := make([]uuid.UUID, 0, len(got))
		for _, n := range got {
			ids = append(ids, n.ID)
		}
		assert.ElementsMatch(t, []uuid.UUID{due.ID, other.ID}, ids)
	})

	t.Run("pending for user filters by account", func(t *testing.T) {
		got, err := b.ListPendingForUser(ctx, "u2")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, other.ID, got[0].ID)
	})

	t.Run("scheduled returns future sends only", func(t *testing.T) {
		got, err := b.ListScheduled(ctx)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, schedStored.ID, got[0].ID)
	})

	t.Run("scheduled for user", func(t *testing.T) {
		got, err := b.ListScheduledForUser(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, got, 1)

		none, err := b.ListScheduledForUser(ctx, "u2")
		require.NoError(t, err)
		assert.Empty(t, none)
	})
}

func TestMemoryBackend_ListAll(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()

	for range 5 {
		_, err := b.Persist(ctx, newPendingEmail("u1"))
		require.NoError(t, err)
	}

	t.Run("pages without overlap", func(t *testing.T) {
		seen := make(map[uuid.UUID]bool)
		for offset := 0; ; offset += 2 {
			page, err := b.ListAll(ctx, 2, offset)
			require.NoError(t, err)
			if len(page) == 0 {
				break
			}
			for _, n := range page {
				assert.False(t, seen[n.ID], "duplicate across pages")
				seen[n.ID] = true
			}
		}
		assert.Len(t, seen, 5)
	})

	t.Run("rejects non-positive limit", func(t *testing.T) {
		_, err := b.ListAll(ctx, 0, 0)
		assert.ErrorIs(t, err, ErrInvalidBatchSize)
	})
}

func TestMemoryBackend_StoreContextUsed(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()

	stored, err := b.Persist(ctx, newPendingEmail("u1"))
	require.NoError(t, err)

	used := Context{"name": "Jo"}
	require.NoError(t, b.StoreContextUsed(ctx, stored.ID, used))

	got, err := b.Get(ctx, stored.ID, false)
	require.NoError(t, err)
	assert.Equal(t, used, got.ContextUsed)

	assert.ErrorIs(t, b.StoreContextUsed(ctx, uuid.New(), used), ErrNotificationNotFound)
}

func TestMemoryBackend_BulkPersist(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()

	batch := []Notification{newPendingEmail("u1"), newPendingEmail("u2")}
	stored, err := b.BulkPersist(ctx, batch)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.NotEqual(t, stored[0].ID, stored[1].ID)

	all, err := b.ListAll(ctx, 10, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

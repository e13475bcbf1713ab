package notifications

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/vintasoftware/vintasend-go/pkg/attachments"
)

type mockAdapter struct {
	mock.Mock
	key     string
	typ     Type
	enqueue bool
}

func newMockAdapter(key string, typ Type) *mockAdapter {
	return &mockAdapter{key: key, typ: typ}
}

func (m *mockAdapter) Key() string                { return m.key }
func (m *mockAdapter) NotificationType() Type     { return m.typ }
func (m *mockAdapter) EnqueueNotifications() bool { return m.enqueue }
func (m *mockAdapter) SupportsAttachments() bool  { return false }

func (m *mockAdapter) Send(ctx context.Context, n Notification, renderContext Context) error {
	args := m.Called(ctx, n, renderContext)
	return args.Error(0)
}

type mockQueue struct {
	mock.Mock
}

func (m *mockQueue) EnqueueNotification(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func welcomeResolver(t *testing.T) *ContextResolver {
	t.Helper()
	return MustNewContextResolver(map[string]ContextGenerator{
		"welcome": func(_ context.Context, params map[string]any) (Context, error) {
			return Context{"name": params["name"]}, nil
		},
	})
}

func newTestPipeline(t *testing.T, opts ...PipelineOption) (*Pipeline, *MemoryBackend) {
	t.Helper()
	backend := NewMemoryBackend()
	opts = append([]PipelineOption{WithPipelineLogger(quietLogger())}, opts...)
	p, err := NewPipeline(backend, welcomeResolver(t), opts...)
	require.NoError(t, err)
	return p, backend
}

func TestNewPipeline(t *testing.T) {
	t.Run("requires a backend", func(t *testing.T) {
		_, err := NewPipeline(nil, nil)
		assert.ErrorIs(t, err, ErrBackendNil)
	})

	t.Run("nil resolver is replaced with an empty one", func(t *testing.T) {
		p, err := NewPipeline(NewMemoryBackend(), nil)
		require.NoError(t, err)
		assert.NotNil(t, p)
	})
}

func TestAttachmentCapable(t *testing.T) {
	assert.True(t, AttachmentCapable(NewMemoryBackend()))

	var plain Backend = struct{ Backend }{}
	assert.False(t, AttachmentCapable(plain))
}

func TestPipeline_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("immediate send invokes the adapter exactly once", func(t *testing.T) {
		adapter := newMockAdapter("email-primary", TypeEmail)
		adapter.On("Send", mock.Anything, mock.Anything, Context{"name": "Jo"}).Return(nil).Once()

		p, backend := newTestPipeline(t, WithAdapters(adapter))

		n := newPendingEmail("u1")
		n.ContextParameters = map[string]any{"name": "Jo"}

		created, err := p.Create(ctx, n)
		require.NoError(t, err)
		adapter.AssertExpectations(t)

		got, err := backend.Get(ctx, created.ID, false)
		require.NoError(t, err)
		assert.Equal(t, StatusSent, got.Status)
		assert.NotNil(t, got.SentAt)
		assert.Equal(t, Context{"name": "Jo"}, got.ContextUsed)
	})

	t.Run("future schedule persists without sending", func(t *testing.T) {
		adapter := newMockAdapter("email-primary", TypeEmail)
		p, backend := newTestPipeline(t, WithAdapters(adapter))

		future := time.Now().Add(time.Hour)
		n := newPendingEmail("u1")
		n.SendAfter = &future

		created, err := p.Create(ctx, n)
		require.NoError(t, err)
		adapter.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)

		got, err := backend.Get(ctx, created.ID, false)
		require.NoError(t, err)
		assert.Equal(t, StatusPendingSend, got.Status)
	})

	t.Run("returns the persisted record even when the send fails", func(t *testing.T) {
		adapter := newMockAdapter("email-primary", TypeEmail)
		adapter.On("Send", mock.Anything, mock.Anything, mock.Anything).Return(assert.AnError).Once()

		p, backend := newTestPipeline(t,
			WithAdapters(adapter),
			WithRaiseErrorOnFailedSend(true),
		)

		created, err := p.Create(ctx, newPendingEmail("u1"))
		require.NotNil(t, created)
		assert.ErrorIs(t, err, ErrAdapterSendFailed)

		got, err := backend.Get(ctx, created.ID, false)
		require.NoError(t, err)
		assert.Equal(t, StatusFailed, got.Status)
	})

	t.Run("rejects already persisted input", func(t *testing.T) {
		p, _ := newTestPipeline(t)
		n := newPendingEmail("u1")
		n.ID = uuid.New()
		_, err := p.Create(ctx, n)
		assert.ErrorIs(t, err, ErrAlreadyPersisted)
	})

	t.Run("rejects a non-pending initial status", func(t *testing.T) {
		p, _ := newTestPipeline(t)
		n := newPendingEmail("u1")
		n.Status = StatusSent
		_, err := p.Create(ctx, n)
		assert.ErrorIs(t, err, ErrInvalidStatus)
	})

	t.Run("rejects attachments without a store", func(t *testing.T) {
		p, _ := newTestPipeline(t)
		n := newPendingEmail("u1")
		n.Attachments = []attachments.Input{attachments.NewUploadBytes([]byte("data"), "a.txt")}
		_, err := p.Create(ctx, n)
		assert.ErrorIs(t, err, ErrAttachmentStoreMissing)
	})

	t.Run("processes attachments against the store", func(t *testing.T) {
		driver, err := attachments.NewLocalDriver(t.TempDir(), "")
		require.NoError(t, err)

		backend := NewMemoryBackend()
		store, err := attachments.NewStore(driver, backend)
		require.NoError(t, err)

		p, err := NewPipeline(backend, welcomeResolver(t),
			WithPipelineLogger(quietLogger()),
			WithAttachmentStore(store),
		)
		require.NoError(t, err)

		n := newPendingEmail("u1")
		n.Attachments = []attachments.Input{attachments.NewUploadBytes([]byte("invoice"), "invoice.txt")}

		created, err := p.Create(ctx, n)
		require.NoError(t, err)

		linked, err := store.GetAttachments(ctx, created.ID)
		require.NoError(t, err)
		require.Len(t, linked, 1)
		assert.Equal(t, "invoice.txt", linked[0].File.Filename)
	})
}

func TestPipeline_Send(t *testing.T) {
	ctx := context.Background()

	persist := func(t *testing.T, b *MemoryBackend) *Notification {
		t.Helper()
		n := newPendingEmail("u1")
		n.ContextParameters = map[string]any{"name": "Jo"}
		stored, err := b.Persist(ctx, n)
		require.NoError(t, err)
		return stored
	}

	t.Run("missing adapter is logged in lenient mode", func(t *testing.T) {
		p, backend := newTestPipeline(t)
		n := persist(t, backend)
		assert.NoError(t, p.Send(ctx, n))
	})

	t.Run("missing adapter fails in strict mode", func(t *testing.T) {
		p, backend := newTestPipeline(t, WithRaiseErrorOnFailedSend(true))
		n := persist(t, backend)
		assert.ErrorIs(t, p.Send(ctx, n), ErrAdapterNotFound)
	})

	t.Run("unpersisted notification fails regardless of mode", func(t *testing.T) {
		adapter := newMockAdapter("email-primary", TypeEmail)
		p, _ := newTestPipeline(t, WithAdapters(adapter))

		n := newPendingEmail("u1")
		assert.ErrorIs(t, p.Send(ctx, &n), ErrNotificationNotPersisted)
		adapter.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unpersisted notification fails even without a matching adapter", func(t *testing.T) {
		p, _ := newTestPipeline(t)

		n := newPendingEmail("u1")
		assert.ErrorIs(t, p.Send(ctx, &n), ErrNotificationNotPersisted)
	})

	t.Run("empty context name dispatches with an empty context", func(t *testing.T) {
		adapter := newMockAdapter("email-primary", TypeEmail)
		adapter.On("Send", mock.Anything, mock.Anything, Context{}).Return(nil).Once()

		backend := NewMemoryBackend()
		p, err := NewPipeline(backend, nil,
			WithPipelineLogger(quietLogger()),
			WithAdapters(adapter),
		)
		require.NoError(t, err)

		n := newPendingEmail("u1")
		n.ContextName = ""
		created, err := p.Create(ctx, n)
		require.NoError(t, err)
		assert.Equal(t, StatusSent, created.Status)

		got, err := backend.Get(ctx, created.ID, false)
		require.NoError(t, err)
		assert.Equal(t, StatusSent, got.Status)
		adapter.AssertExpectations(t)
	})

	t.Run("adapter failure marks FAILED and is swallowed when lenient", func(t *testing.T) {
		adapter := newMockAdapter("email-primary", TypeEmail)
		adapter.On("Send", mock.Anything, mock.Anything, mock.Anything).Return(assert.AnError).Once()

		p, backend := newTestPipeline(t, WithAdapters(adapter))
		n := persist(t, backend)

		assert.NoError(t, p.Send(ctx, n))
		assert.Equal(t, StatusFailed, n.Status)

		got, err := backend.Get(ctx, n.ID, false)
		require.NoError(t, err)
		assert.Equal(t, StatusFailed, got.Status)
	})

	t.Run("one adapter failing does not stop the others", func(t *testing.T) {
		good := newMockAdapter("email-primary", TypeEmail)
		good.On("Send", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
		bad := newMockAdapter("email-fallback", TypeEmail)
		bad.On("Send", mock.Anything, mock.Anything, mock.Anything).Return(assert.AnError).Once()

		p, backend := newTestPipeline(t,
			WithAdapters(good, bad),
			WithRaiseErrorOnFailedSend(true),
		)
		n := persist(t, backend)

		err := p.Send(ctx, n)
		assert.ErrorIs(t, err, ErrAdapterSendFailed)
		good.AssertExpectations(t)
		bad.AssertExpectations(t)
	})

	t.Run("adapters of a different type are not matched", func(t *testing.T) {
		sms := newMockAdapter("sms-primary", TypeSMS)
		p, backend := newTestPipeline(t,
			WithAdapters(sms),
			WithRaiseErrorOnFailedSend(true),
		)
		n := persist(t, backend)

		assert.ErrorIs(t, p.Send(ctx, n), ErrAdapterNotFound)
		sms.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("context resolution failure skips the adapter", func(t *testing.T) {
		adapter := newMockAdapter("email-primary", TypeEmail)
		p, backend := newTestPipeline(t,
			WithAdapters(adapter),
			WithRaiseErrorOnFailedSend(true),
		)

		n := newPendingEmail("u1")
		n.ContextName = "unknown"
		stored, err := backend.Persist(ctx, n)
		require.NoError(t, err)

		err = p.Send(ctx, stored)
		assert.ErrorIs(t, err, ErrContextResolutionFailed)
		adapter.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("stored context bypasses the resolver", func(t *testing.T) {
		stored := Context{"name": "Stored"}
		adapter := newMockAdapter("email-primary", TypeEmail)
		adapter.On("Send", mock.Anything, mock.Anything, stored).Return(nil).Once()

		p, backend := newTestPipeline(t, WithAdapters(adapter))

		n := newPendingEmail("u1")
		n.ContextName = "unknown"
		n.ContextUsed = stored
		persisted, err := backend.Persist(ctx, n)
		require.NoError(t, err)

		assert.NoError(t, p.Send(ctx, persisted))
		adapter.AssertExpectations(t)
	})

	t.Run("queue-capable adapter enqueues instead of sending", func(t *testing.T) {
		adapter := newMockAdapter("email-queued", TypeEmail)
		adapter.enqueue = true

		queue := new(mockQueue)
		p, backend := newTestPipeline(t,
			WithAdapters(adapter),
			WithQueueService(queue),
		)
		n := persist(t, backend)
		queue.On("EnqueueNotification", mock.Anything, n.ID).Return(nil).Once()

		assert.NoError(t, p.Send(ctx, n))
		queue.AssertExpectations(t)
		adapter.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("missing queue service is non-fatal even in strict mode", func(t *testing.T) {
		adapter := newMockAdapter("email-queued", TypeEmail)
		adapter.enqueue = true

		p, backend := newTestPipeline(t,
			WithAdapters(adapter),
			WithRaiseErrorOnFailedSend(true),
		)
		n := persist(t, backend)

		assert.NoError(t, p.Send(ctx, n))
		adapter.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("enqueue failure propagates in strict mode", func(t *testing.T) {
		adapter := newMockAdapter("email-queued", TypeEmail)
		adapter.enqueue = true

		queue := new(mockQueue)
		p, backend := newTestPipeline(t,
			WithAdapters(adapter),
			WithQueueService(queue),
			WithRaiseErrorOnFailedSend(true),
		)
		n := persist(t, backend)
		queue.On("EnqueueNotification", mock.Anything, n.ID).Return(assert.AnError).Once()

		assert.ErrorIs(t, p.Send(ctx, n), ErrEnqueueFailed)
	})

	t.Run("success records the adapter used", func(t *testing.T) {
		adapter := newMockAdapter("email-primary", TypeEmail)
		adapter.On("Send", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()

		p, backend := newTestPipeline(t, WithAdapters(adapter))
		n := persist(t, backend)

		require.NoError(t, p.Send(ctx, n))
		assert.Equal(t, "email-primary", n.AdapterUsed)
		assert.Equal(t, StatusSent, n.Status)
	})
}

func TestPipeline_DelayedSend(t *testing.T) {
	ctx := context.Background()

	t.Run("invokes only queue-capable adapters directly", func(t *testing.T) {
		queued := newMockAdapter("email-queued", TypeEmail)
		queued.enqueue = true
		queued.On("Send", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()

		inline := newMockAdapter("email-inline", TypeEmail)

		queue := new(mockQueue)
		p, backend := newTestPipeline(t,
			WithAdapters(queued, inline),
			WithQueueService(queue),
		)

		n := newPendingEmail("u1")
		n.ContextParameters = map[string]any{"name": "Jo"}
		stored, err := backend.Persist(ctx, n)
		require.NoError(t, err)

		require.NoError(t, p.DelayedSend(ctx, stored.ID))
		queued.AssertExpectations(t)
		inline.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
		queue.AssertNotCalled(t, "EnqueueNotification", mock.Anything, mock.Anything)

		got, err := backend.Get(ctx, stored.ID, false)
		require.NoError(t, err)
		assert.Equal(t, StatusSent, got.Status)
	})

	t.Run("no queue-capable adapter fails in strict mode", func(t *testing.T) {
		inline := newMockAdapter("email-inline", TypeEmail)
		p, backend := newTestPipeline(t,
			WithAdapters(inline),
			WithRaiseErrorOnFailedSend(true),
		)

		stored, err := backend.Persist(ctx, newPendingEmail("u1"))
		require.NoError(t, err)

		assert.ErrorIs(t, p.DelayedSend(ctx, stored.ID), ErrAdapterNotFound)
	})

	t.Run("unknown id in strict mode", func(t *testing.T) {
		p, _ := newTestPipeline(t, WithRaiseErrorOnFailedSend(true))
		assert.ErrorIs(t, p.DelayedSend(ctx, uuid.New()), ErrNotificationNotFound)
	})
}

func TestPipeline_Resend(t *testing.T) {
	ctx := context.Background()

	sendOnce := func(t *testing.T, p *Pipeline, backend *MemoryBackend) *Notification {
		t.Helper()
		n := newPendingEmail("u1")
		n.ContextParameters = map[string]any{"name": "Jo"}
		created, err := p.Create(ctx, n)
		require.NoError(t, err)
		got, err := backend.Get(ctx, created.ID, false)
		require.NoError(t, err)
		return got
	}

	t.Run("resend is additive and leaves the original untouched", func(t *testing.T) {
		adapter := newMockAdapter("email-primary", TypeEmail)
		adapter.On("Send", mock.Anything, mock.Anything, mock.Anything).Return(nil).Twice()

		p, backend := newTestPipeline(t, WithAdapters(adapter))
		orig := sendOnce(t, p, backend)

		fresh, err := p.Resend(ctx, orig.ID, false)
		require.NoError(t, err)
		assert.NotEqual(t, orig.ID, fresh.ID)
		assert.Nil(t, fresh.SendAfter)
		assert.Equal(t, orig.Recipient, fresh.Recipient)
		assert.Equal(t, orig.BodyTemplate, fresh.BodyTemplate)

		after, err := backend.Get(ctx, orig.ID, false)
		require.NoError(t, err)
		assert.Equal(t, orig.Status, after.Status)
		assert.Equal(t, orig.UpdatedAt, after.UpdatedAt)
		adapter.AssertExpectations(t)
	})

	t.Run("stored context is reused verbatim", func(t *testing.T) {
		adapter := newMockAdapter("email-primary", TypeEmail)
		adapter.On("Send", mock.Anything, mock.Anything, Context{"name": "Jo"}).Return(nil).Twice()

		p, backend := newTestPipeline(t, WithAdapters(adapter))
		orig := sendOnce(t, p, backend)
		require.NotNil(t, orig.ContextUsed)

		fresh, err := p.Resend(ctx, orig.ID, true)
		require.NoError(t, err)
		assert.Equal(t, orig.ContextUsed, fresh.ContextUsed)
		adapter.AssertExpectations(t)
	})

	t.Run("stored context missing", func(t *testing.T) {
		p, backend := newTestPipeline(t, WithRaiseErrorOnFailedSend(true))

		stored, err := backend.Persist(ctx, newPendingEmail("u1"))
		require.NoError(t, err)

		_, err = p.Resend(ctx, stored.ID, true)
		assert.ErrorIs(t, err, ErrStoredContextMissing)
	})

	t.Run("future-scheduled original cannot be resent", func(t *testing.T) {
		p, backend := newTestPipeline(t, WithRaiseErrorOnFailedSend(true))

		future := time.Now().Add(time.Hour)
		n := newPendingEmail("u1")
		n.SendAfter = &future
		stored, err := backend.Persist(ctx, n)
		require.NoError(t, err)

		_, err = p.Resend(ctx, stored.ID, false)
		assert.ErrorIs(t, err, ErrScheduledInFuture)
	})

	t.Run("unknown id in strict mode", func(t *testing.T) {
		p, _ := newTestPipeline(t, WithRaiseErrorOnFailedSend(true))
		_, err := p.Resend(ctx, uuid.New(), false)
		assert.ErrorIs(t, err, ErrNotificationNotFound)
	})

	t.Run("precondition failures surface in lenient mode too", func(t *testing.T) {
		p, backend := newTestPipeline(t)

		_, err := p.Resend(ctx, uuid.New(), false)
		assert.ErrorIs(t, err, ErrNotificationNotFound)

		future := time.Now().Add(time.Hour)
		n := newPendingEmail("u1")
		n.SendAfter = &future
		stored, err := backend.Persist(ctx, n)
		require.NoError(t, err)

		_, err = p.Resend(ctx, stored.ID, false)
		assert.ErrorIs(t, err, ErrScheduledInFuture)

		_, err = p.Resend(ctx, stored.ID, true)
		assert.ErrorIs(t, err, ErrScheduledInFuture)
	})
}

func TestPipeline_SendPending(t *testing.T) {
	ctx := context.Background()

	t.Run("sends every due notification", func(t *testing.T) {
		adapter := newMockAdapter("email-primary", TypeEmail)
		adapter.On("Send", mock.Anything, mock.Anything, mock.Anything).Return(nil).Times(3)

		p, backend := newTestPipeline(t,
			WithAdapters(adapter),
			WithMaxConcurrentSends(2),
		)

		for i := 0; i < 3; i++ {
			n := newPendingEmail("u1")
			n.ContextParameters = map[string]any{"name": "Jo"}
			_, err := backend.Persist(ctx, n)
			require.NoError(t, err)
		}

		require.NoError(t, p.SendPending(ctx))
		adapter.AssertExpectations(t)

		remaining, err := backend.ListPending(ctx)
		require.NoError(t, err)
		assert.Empty(t, remaining)
	})

	t.Run("a failing notification does not stop the rest", func(t *testing.T) {
		broken := func(n Notification) bool { return n.Title == "broken" }

		adapter := newMockAdapter("email-primary", TypeEmail)
		adapter.On("Send", mock.Anything, mock.MatchedBy(broken), mock.Anything).
			Return(assert.AnError).Once()
		adapter.On("Send", mock.Anything, mock.Anything, mock.Anything).
			Return(nil).Times(2)

		p, backend := newTestPipeline(t, WithAdapters(adapter))

		for _, title := range []string{"broken", "fine", "also fine"} {
			n := newPendingEmail("u1")
			n.Title = title
			n.ContextParameters = map[string]any{"name": "Jo"}
			_, err := backend.Persist(ctx, n)
			require.NoError(t, err)
		}

		require.NoError(t, p.SendPending(ctx))
		adapter.AssertExpectations(t)
		adapter.AssertNumberOfCalls(t, "Send", 3)
	})

	t.Run("strict mode joins per-notification errors after all sends ran", func(t *testing.T) {
		adapter := newMockAdapter("email-primary", TypeEmail)
		adapter.On("Send", mock.Anything, mock.Anything, mock.Anything).Return(assert.AnError).Times(2)

		p, backend := newTestPipeline(t,
			WithAdapters(adapter),
			WithRaiseErrorOnFailedSend(true),
		)

		for i := 0; i < 2; i++ {
			n := newPendingEmail("u1")
			n.ContextParameters = map[string]any{"name": "Jo"}
			_, err := backend.Persist(ctx, n)
			require.NoError(t, err)
		}

		err := p.SendPending(ctx)
		assert.ErrorIs(t, err, ErrAdapterSendFailed)
		adapter.AssertExpectations(t)
	})
}

func TestPipeline_MarkReadAndCancel(t *testing.T) {
	ctx := context.Background()
	adapter := newMockAdapter("email-primary", TypeEmail)
	adapter.On("Send", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()

	p, backend := newTestPipeline(t, WithAdapters(adapter))

	n := newPendingEmail("u1")
	n.ContextParameters = map[string]any{"name": "Jo"}
	sent, err := p.Create(ctx, n)
	require.NoError(t, err)

	require.NoError(t, p.MarkRead(ctx, sent.ID))
	got, err := backend.Get(ctx, sent.ID, false)
	require.NoError(t, err)
	assert.Equal(t, StatusRead, got.Status)

	future := time.Now().Add(time.Hour)
	scheduled := newPendingEmail("u1")
	scheduled.SendAfter = &future
	pending, err := p.Create(ctx, scheduled)
	require.NoError(t, err)

	require.NoError(t, p.Cancel(ctx, pending.ID))
	got, err = backend.Get(ctx, pending.ID, false)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, got.Status)
}

func TestPipeline_Update(t *testing.T) {
	ctx := context.Background()
	p, backend := newTestPipeline(t)

	stored, err := backend.Persist(ctx, newPendingEmail("u1"))
	require.NoError(t, err)

	edited := *stored
	edited.Title = "Edited"
	updated, err := p.Update(ctx, edited)
	require.NoError(t, err)
	assert.Equal(t, "Edited", updated.Title)

	unpersisted := newPendingEmail("u1")
	_, err = p.Update(ctx, unpersisted)
	assert.ErrorIs(t, err, ErrNotificationNotPersisted)
}

func TestPipeline_MigrateToBackend(t *testing.T) {
	ctx := context.Background()
	p, source := newTestPipeline(t)

	var sourceIDs []uuid.UUID
	for i := 0; i < 5; i++ {
		stored, err := source.Persist(ctx, newPendingEmail("u1"))
		require.NoError(t, err)
		sourceIDs = append(sourceIDs, stored.ID)
	}

	t.Run("moves every record in batches", func(t *testing.T) {
		dest := NewMemoryBackend()
		count, err := p.MigrateToBackend(ctx, dest, 2)
		require.NoError(t, err)
		assert.Equal(t, 5, count)

		moved, err := dest.ListAll(ctx, 10, 0)
		require.NoError(t, err)
		require.Len(t, moved, 5)
		for _, n := range moved {
			assert.NotContains(t, sourceIDs, n.ID, "destination must assign fresh ids")
		}
	})

	t.Run("nil destination", func(t *testing.T) {
		_, err := p.MigrateToBackend(ctx, nil, 2)
		assert.ErrorIs(t, err, ErrBackendNil)
	})

	t.Run("invalid batch size", func(t *testing.T) {
		_, err := p.MigrateToBackend(ctx, NewMemoryBackend(), 0)
		assert.ErrorIs(t, err, ErrInvalidBatchSize)
	})
}

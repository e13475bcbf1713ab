// Package notifications implements the notification dispatch pipeline:
// creation, immediate and scheduled sending, queued delivery, resending, and
// backend migration, with the notification lifecycle tracked in a pluggable
// backend.
//
// # Architecture
//
//   - Backend: persistence of records and atomic status transitions
//   - Adapter: renders and delivers one channel (email, SMS, in-app, push)
//   - QueueService: accepts notification ids for asynchronous delivery
//   - ContextResolver: maps named context generators to render contexts
//   - Pipeline: the orchestrator tying the contracts together
//
// # Lifecycle
//
// A notification moves PENDING_SEND -> SENT (successful delivery), FAILED
// (adapter error), or CANCELLED (explicit cancel); SENT may move to READ for
// in-app acknowledgment. READ and CANCELLED are terminal, and FAILED records
// are only retried through Resend, which creates a new record instead of
// mutating the failed one.
//
// # Usage
//
//	backend := notifications.NewMemoryBackend()
//	resolver := notifications.MustNewContextResolver(map[string]notifications.ContextGenerator{
//	    "welcome": func(ctx context.Context, params map[string]any) (notifications.Context, error) {
//	        return notifications.Context{"name": params["name"]}, nil
//	    },
//	})
//
//	pipeline, err := notifications.NewPipeline(backend, resolver,
//	    notifications.WithAdapters(emailAdapter),
//	    notifications.WithQueueService(queue),
//	)
//
//	notif, err := pipeline.Create(ctx, notifications.Notification{
//	    Recipient:    notifications.AccountRecipient("user-123"),
//	    Type:         notifications.TypeEmail,
//	    Title:        "Welcome!",
//	    BodyTemplate: "welcome_email",
//	    ContextName:  "welcome",
//	})
//
// # Error propagation
//
// A single configuration flag (RaiseErrorOnFailedSend) switches every
// non-fatal dispatch condition between "log and return" and "return the
// error". Failures stay isolated per adapter and per notification in both
// modes, and best-effort side effects (status marking, context storage)
// only ever log. Precondition violations, like sending a notification that
// was never persisted, are fatal regardless of the flag.
package notifications

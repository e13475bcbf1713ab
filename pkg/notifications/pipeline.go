package notifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/vintasoftware/vintasend-go/pkg/attachments"
	"github.com/vintasoftware/vintasend-go/pkg/logger"
)

// ErrAttachmentStoreMissing is returned when a notification carries
// attachments but the pipeline was built without an attachment store.
var ErrAttachmentStoreMissing = errors.New("notification has attachments but no attachment store is configured")

// Config holds pipeline configuration loadable from the environment.
type Config struct {
	// RaiseErrorOnFailedSend switches every non-fatal dispatch condition from
	// "log and return" to "return the error". Precondition violations are
	// fatal regardless.
	RaiseErrorOnFailedSend bool `env:"NOTIFICATIONS_RAISE_ERROR_ON_FAILED_SEND" envDefault:"false"`

	// MaxConcurrentSends caps in-flight sends during SendPending.
	// Zero means unlimited.
	MaxConcurrentSends int `env:"NOTIFICATIONS_MAX_CONCURRENT_SENDS" envDefault:"0"`
}

// Pipeline is the notification dispatch orchestrator. It decides immediate
// versus scheduled versus queued delivery, runs the per-notification
// send/mark-status sequence, and exposes create/resend/bulk-migrate
// operations.
//
// The pipeline takes no locks; conditional status transitions are delegated
// to the backend through the check flags on status-mutating calls.
type Pipeline struct {
	backend  Backend
	resolver *ContextResolver
	adapters []Adapter
	queue    QueueService
	store    *attachments.Store
	logger   *slog.Logger

	raiseErrorOnFailedSend bool
	maxConcurrentSends     int
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithAdapters registers delivery adapters. May be passed multiple times.
func WithAdapters(adapters ...Adapter) PipelineOption {
	return func(p *Pipeline) {
		for _, a := range adapters {
			if a != nil {
				p.adapters = append(p.adapters, a)
			}
		}
	}
}

// WithQueueService injects the queue used by adapters that enqueue instead of
// sending inline.
func WithQueueService(q QueueService) PipelineOption {
	return func(p *Pipeline) { p.queue = q }
}

// WithAttachmentStore enables attachment processing during Create.
func WithAttachmentStore(store *attachments.Store) PipelineOption {
	return func(p *Pipeline) { p.store = store }
}

// WithPipelineLogger sets the logger for dispatch failures and best-effort
// warnings.
func WithPipelineLogger(log *slog.Logger) PipelineOption {
	return func(p *Pipeline) {
		if log != nil {
			p.logger = log
		}
	}
}

// WithConfig applies a Config struct.
func WithConfig(cfg Config) PipelineOption {
	return func(p *Pipeline) {
		p.raiseErrorOnFailedSend = cfg.RaiseErrorOnFailedSend
		p.maxConcurrentSends = cfg.MaxConcurrentSends
	}
}

// WithRaiseErrorOnFailedSend switches the pipeline into strict propagation.
func WithRaiseErrorOnFailedSend(raise bool) PipelineOption {
	return func(p *Pipeline) { p.raiseErrorOnFailedSend = raise }
}

// WithMaxConcurrentSends caps in-flight sends during SendPending.
func WithMaxConcurrentSends(limit int) PipelineOption {
	return func(p *Pipeline) {
		if limit > 0 {
			p.maxConcurrentSends = limit
		}
	}
}

// NewPipeline creates a dispatch pipeline over the given backend and context
// resolver. A nil resolver is replaced with an empty one so notifications
// without a context name still dispatch.
func NewPipeline(backend Backend, resolver *ContextResolver, opts ...PipelineOption) (*Pipeline, error) {
	if backend == nil {
		return nil, ErrBackendNil
	}
	if resolver == nil {
		resolver = MustNewContextResolver(nil)
	}

	p := &Pipeline{
		backend:  backend,
		resolver: resolver,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p, nil
}

// Backend returns the pipeline's backend.
func (p *Pipeline) Backend() Backend { return p.backend }

// AttachmentCapable reports whether a backend can persist attachment
// metadata. Backends declare the capability by implementing
// attachments.MetadataStore; detection is a type assertion, not method
// probing.
func AttachmentCapable(b Backend) bool {
	_, ok := b.(attachments.MetadataStore)
	return ok
}

// Create persists the notification and immediately sends it when it has no
// schedule or the schedule has already passed. Scheduled notifications stay
// PENDING_SEND until a later SendPending pass or queue worker picks them up.
//
// The persisted record is returned even when the subsequent send fails, so
// callers can inspect or resend it.
func (p *Pipeline) Create(ctx context.Context, n Notification) (*Notification, error) {
	if n.IsPersisted() {
		return nil, ErrAlreadyPersisted
	}
	if err := n.Validate(); err != nil {
		return nil, err
	}
	if len(n.Attachments) > 0 && p.store == nil {
		return nil, ErrAttachmentStoreMissing
	}
	if n.Status == "" {
		n.Status = StatusPendingSend
	}
	if n.Status != StatusPendingSend {
		return nil, fmt.Errorf("%w: new notifications must be %s", ErrInvalidStatus, StatusPendingSend)
	}

	persisted, err := p.backend.Persist(ctx, n)
	if err != nil {
		return nil, err
	}

	if len(n.Attachments) > 0 {
		if _, err := p.store.ProcessAttachments(ctx, n.Attachments, persisted.ID); err != nil {
			return persisted, err
		}
	}

	if persisted.IsDue(time.Now()) {
		if err := p.Send(ctx, persisted); err != nil {
			return persisted, err
		}
	}
	return persisted, nil
}

// Send dispatches the notification through every adapter matching its type.
//
// Adapter failures are isolated: one adapter failing never prevents the
// remaining adapters from being attempted. In strict mode the per-adapter
// errors are joined and returned after all adapters ran; in lenient mode they
// are logged and swallowed. A missing id is a programmer error and is
// returned regardless of mode.
func (p *Pipeline) Send(ctx context.Context, n *Notification) error {
	if !n.IsPersisted() {
		return ErrNotificationNotPersisted
	}
	matched := p.adaptersFor(n.Type)
	if len(matched) == 0 {
		return p.failSend(ctx, fmt.Errorf("%w: %q", ErrAdapterNotFound, n.Type),
			logger.NotificationID(n.ID),
			logger.NotificationType(n.Type),
		)
	}
	return p.deliver(ctx, n, matched, true)
}

// DelayedSend is the companion to queued delivery: a worker dequeues a
// notification id and hands it here. Only queue-capable adapters are invoked,
// directly, bypassing re-enqueue.
func (p *Pipeline) DelayedSend(ctx context.Context, id uuid.UUID) error {
	n, err := p.backend.Get(ctx, id, true)
	if err != nil {
		return p.failSend(ctx, err, logger.NotificationID(id))
	}

	var queued []Adapter
	for _, a := range p.adaptersFor(n.Type) {
		if a.EnqueueNotifications() {
			queued = append(queued, a)
		}
	}
	if len(queued) == 0 {
		return p.failSend(ctx,
			fmt.Errorf("%w: no queue-capable adapter for type %q", ErrAdapterNotFound, n.Type),
			logger.NotificationID(id),
			logger.NotificationType(n.Type),
		)
	}

	return p.deliver(ctx, n, queued, false)
}

// Resend creates a fresh notification copying the original's addressing,
// template, and context-name fields, with no schedule, and sends it
// immediately. The original record is never mutated: resend is additive and
// preserves audit history.
//
// When useStoredContext is set the stored context is reused verbatim;
// otherwise the context is regenerated.
//
// Lookup and precondition failures are returned regardless of propagation
// mode: the caller needs the fresh record, so a nil error guarantees a
// non-nil notification.
func (p *Pipeline) Resend(ctx context.Context, id uuid.UUID, useStoredContext bool) (*Notification, error) {
	orig, err := p.backend.Get(ctx, id, false)
	if err != nil {
		return nil, err
	}
	if !orig.IsDue(time.Now()) {
		return nil, fmt.Errorf("%w: scheduled for %s", ErrScheduledInFuture, orig.SendAfter.Format(time.RFC3339))
	}
	if useStoredContext && orig.ContextUsed == nil {
		return nil, fmt.Errorf("%w: %s", ErrStoredContextMissing, id)
	}

	fresh := Notification{
		Recipient:         orig.Recipient,
		Type:              orig.Type,
		Title:             orig.Title,
		BodyTemplate:      orig.BodyTemplate,
		SubjectTemplate:   orig.SubjectTemplate,
		ContextName:       orig.ContextName,
		ContextParameters: orig.ContextParameters,
		ExtraParams:       orig.ExtraParams,
		Status:            StatusPendingSend,
	}
	if useStoredContext {
		fresh.ContextUsed = orig.ContextUsed
	}

	persisted, err := p.backend.Persist(ctx, fresh)
	if err != nil {
		return nil, err
	}

	if err := p.Send(ctx, persisted); err != nil {
		return persisted, err
	}
	return persisted, nil
}

// SendPending fetches all due PENDING_SEND notifications and sends each
// independently and concurrently. Failures are isolated per notification; in
// strict mode they are joined into the returned error after every send
// completed.
func (p *Pipeline) SendPending(ctx context.Context) error {
	pending, err := p.backend.ListPending(ctx)
	if err != nil {
		return err
	}

	g := new(errgroup.Group)
	if p.maxConcurrentSends > 0 {
		g.SetLimit(p.maxConcurrentSends)
	}

	var (
		mu   sync.Mutex
		errs []error
	)
	for i := range pending {
		n := pending[i]
		g.Go(func() error {
			if err := p.Send(ctx, &n); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("notification %s: %w", n.ID, err))
				mu.Unlock()
			}
			// Errors are collected, never returned: a failed send must not
			// cancel the remaining sends.
			return nil
		})
	}
	_ = g.Wait()

	return errors.Join(errs...)
}

// Cancel transitions a pending notification to CANCELLED.
func (p *Pipeline) Cancel(ctx context.Context, id uuid.UUID) error {
	return p.backend.Cancel(ctx, id)
}

// MarkRead transitions a SENT notification to READ. Used by in-app channels
// to record recipient acknowledgment.
func (p *Pipeline) MarkRead(ctx context.Context, id uuid.UUID) error {
	return p.backend.MarkRead(ctx, id, true)
}

// Update applies pre-send edits to a PENDING_SEND notification.
func (p *Pipeline) Update(ctx context.Context, n Notification) (*Notification, error) {
	if !n.IsPersisted() {
		return nil, ErrNotificationNotPersisted
	}
	if err := n.Validate(); err != nil {
		return nil, err
	}
	return p.backend.PersistUpdate(ctx, n)
}

// Get returns the notification with the given id.
func (p *Pipeline) Get(ctx context.Context, id uuid.UUID) (*Notification, error) {
	return p.backend.Get(ctx, id, false)
}

// ListPendingForUser returns a user's due PENDING_SEND notifications.
func (p *Pipeline) ListPendingForUser(ctx context.Context, userID string) ([]Notification, error) {
	return p.backend.ListPendingForUser(ctx, userID)
}

// ListScheduledForUser returns a user's future-scheduled notifications.
func (p *Pipeline) ListScheduledForUser(ctx context.Context, userID string) ([]Notification, error) {
	return p.backend.ListScheduledForUser(ctx, userID)
}

// MigrateToBackend pages through every notification in the current backend
// and bulk-persists them, stripped of ids, into the destination. Purely a
// data-movement operation with no status-transition semantics. Returns the
// number of notifications migrated.
func (p *Pipeline) MigrateToBackend(ctx context.Context, dest Backend, batchSize int) (int, error) {
	if dest == nil {
		return 0, ErrBackendNil
	}
	if batchSize <= 0 {
		return 0, ErrInvalidBatchSize
	}

	migrated := 0
	for offset := 0; ; offset += batchSize {
		page, err := p.backend.ListAll(ctx, batchSize, offset)
		if err != nil {
			return migrated, err
		}
		if len(page) == 0 {
			return migrated, nil
		}

		for i := range page {
			page[i].ID = uuid.Nil
		}
		if _, err := dest.BulkPersist(ctx, page); err != nil {
			return migrated, err
		}
		migrated += len(page)
	}
}

// deliver runs the per-adapter send sequence. allowEnqueue routes
// queue-capable adapters through the queue service; DelayedSend disables it
// to invoke them directly.
func (p *Pipeline) deliver(ctx context.Context, n *Notification, adapters []Adapter, allowEnqueue bool) error {
	var errs []error
	contextStored := n.ContextUsed != nil

	for _, a := range adapters {
		if allowEnqueue && a.EnqueueNotifications() {
			if p.queue == nil {
				// Always non-fatal and per-adapter: a missing queue must not
				// block sibling adapters, regardless of propagation mode.
				p.logger.LogAttrs(ctx, slog.LevelWarn, "skipping queue-backed adapter",
					logger.NotificationID(n.ID),
					logger.AdapterKey(a.Key()),
					logger.Error(ErrQueueServiceMissing),
				)
				continue
			}
			if err := p.queue.EnqueueNotification(ctx, n.ID); err != nil {
				wrapped := fmt.Errorf("%w: adapter %q: %v", ErrEnqueueFailed, a.Key(), err)
				if fail := p.failSend(ctx, wrapped, logger.NotificationID(n.ID), logger.AdapterKey(a.Key())); fail != nil {
					errs = append(errs, fail)
				}
			}
			continue
		}

		renderCtx := n.ContextUsed
		if renderCtx == nil && n.ContextName == "" {
			// No named context to resolve. Adapters render from the
			// notification's own fields.
			renderCtx = Context{}
		}
		if renderCtx == nil {
			resolved, err := p.resolver.Resolve(ctx, n.ContextName, n.ContextParameters)
			if err != nil {
				wrapped := errors.Join(ErrContextResolutionFailed, err)
				if fail := p.failSend(ctx, wrapped,
					logger.NotificationID(n.ID),
					logger.AdapterKey(a.Key()),
					logger.ContextName(n.ContextName),
				); fail != nil {
					errs = append(errs, fail)
				}
				// The adapter is not invoked either way.
				continue
			}
			renderCtx = resolved
		}

		if err := a.Send(ctx, *n, renderCtx); err != nil {
			p.bestEffort(ctx, "mark failed", n.ID, p.backend.MarkFailed(ctx, n.ID, true))
			n.Status = StatusFailed

			wrapped := fmt.Errorf("%w: adapter %q: %v", ErrAdapterSendFailed, a.Key(), err)
			if fail := p.failSend(ctx, wrapped, logger.NotificationID(n.ID), logger.AdapterKey(a.Key())); fail != nil {
				errs = append(errs, fail)
			}
			continue
		}

		p.bestEffort(ctx, "mark sent", n.ID, p.backend.MarkSent(ctx, n.ID, true))
		if !contextStored {
			p.bestEffort(ctx, "store context used", n.ID, p.backend.StoreContextUsed(ctx, n.ID, renderCtx))
			contextStored = true
		}

		now := time.Now()
		n.Status = StatusSent
		n.SentAt = &now
		n.ContextUsed = renderCtx
		n.AdapterUsed = a.Key()
	}

	return errors.Join(errs...)
}

func (p *Pipeline) adaptersFor(t Type) []Adapter {
	var matched []Adapter
	for _, a := range p.adapters {
		if a.NotificationType() == t {
			matched = append(matched, a)
		}
	}
	return matched
}

// failSend applies the configured propagation mode to a non-fatal dispatch
// failure: strict returns the error, lenient logs and swallows it.
func (p *Pipeline) failSend(ctx context.Context, err error, attrs ...slog.Attr) error {
	if p.raiseErrorOnFailedSend {
		return err
	}
	p.logger.LogAttrs(ctx, slog.LevelError, "notification dispatch failure",
		append(attrs, logger.Error(err))...)
	return nil
}

// bestEffort logs err and deliberately discards it. Status marking and
// context storage must never mask the outcome of a delivery attempt.
func (p *Pipeline) bestEffort(ctx context.Context, action string, id uuid.UUID, err error) {
	if err == nil {
		return
	}
	p.logger.LogAttrs(ctx, slog.LevelWarn, "best-effort operation failed",
		slog.String("action", action),
		logger.NotificationID(id),
		logger.Error(err),
	)
}

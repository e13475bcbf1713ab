package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/vintasoftware/vintasend-go/pkg/notifications"
)

const (
	notificationsCollection = "notifications"
	filesCollection         = "attachment_files"
	attachmentsCollection   = "notification_attachments"
)

// Backend is a MongoDB implementation of notifications.Backend. It also
// implements attachments.MetadataStore, making it attachment-capable.
//
// Status transitions use conditional updates (filter on the expected status),
// so concurrent senders cannot double-transition a notification.
type Backend struct {
	db            *mongo.Database
	notifications *mongo.Collection
	files         *mongo.Collection
	attachments   *mongo.Collection
}

// NewBackend creates a backend over an established database handle.
func NewBackend(db *mongo.Database) *Backend {
	return &Backend{
		db:            db,
		notifications: db.Collection(notificationsCollection),
		files:         db.Collection(filesCollection),
		attachments:   db.Collection(attachmentsCollection),
	}
}

// EnsureIndexes creates the indexes the backend queries rely on. The unique
// checksum index is what closes the attachment dedup race: the second of two
// concurrent uploads of identical content fails its insert instead of
// creating a duplicate record.
func (b *Backend) EnsureIndexes(ctx context.Context) error {
	_, err := b.notifications.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "send_after", Value: 1}}},
		{Keys: bson.D{{Key: "recipient.user_id", Value: 1}, {Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("notification indexes: %w", err)
	}

	_, err = b.files.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "checksum", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("file indexes: %w", err)
	}

	_, err = b.attachments.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "notification_id", Value: 1}}},
		{Keys: bson.D{{Key: "file_id", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("attachment indexes: %w", err)
	}
	return nil
}

// notificationDoc is the persisted shape of a notification. Ids are stored as
// canonical uuid strings.
type notificationDoc struct {
	ID                string                  `bson:"_id"`
	Recipient         notifications.Recipient `bson:"recipient"`
	Type              string                  `bson:"type"`
	Title             string                  `bson:"title"`
	BodyTemplate      string                  `bson:"body_template"`
	SubjectTemplate   string                  `bson:"subject_template,omitempty"`
	ContextName       string                  `bson:"context_name"`
	ContextParameters map[string]any          `bson:"context_parameters,omitempty"`
	ContextUsed       map[string]any          `bson:"context_used,omitempty"`
	SendAfter         *time.Time              `bson:"send_after,omitempty"`
	Status            string                  `bson:"status"`
	AdapterUsed       string                  `bson:"adapter_used,omitempty"`
	ExtraParams       map[string]any          `bson:"extra_params,omitempty"`
	SentAt            *time.Time              `bson:"sent_at,omitempty"`
	ReadAt            *time.Time              `bson:"read_at,omitempty"`
	CreatedAt         time.Time               `bson:"created_at"`
	UpdatedAt         time.Time               `bson:"updated_at"`
}

func newNotificationDoc(n notifications.Notification) notificationDoc {
	return notificationDoc{
		ID:                n.ID.String(),
		Recipient:         n.Recipient,
		Type:              string(n.Type),
		Title:             n.Title,
		BodyTemplate:      n.BodyTemplate,
		SubjectTemplate:   n.SubjectTemplate,
		ContextName:       n.ContextName,
		ContextParameters: n.ContextParameters,
		ContextUsed:       n.ContextUsed,
		SendAfter:         n.SendAfter,
		Status:            string(n.Status),
		AdapterUsed:       n.AdapterUsed,
		ExtraParams:       n.ExtraParams,
		SentAt:            n.SentAt,
		ReadAt:            n.ReadAt,
		CreatedAt:         n.CreatedAt,
		UpdatedAt:         n.UpdatedAt,
	}
}

func (d notificationDoc) toDomain() (notifications.Notification, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return notifications.Notification{}, fmt.Errorf("malformed notification id %q: %w", d.ID, err)
	}

	var used notifications.Context
	if d.ContextUsed != nil {
		used = notifications.Context(d.ContextUsed)
	}

	return notifications.Notification{
		ID:                id,
		Recipient:         d.Recipient,
		Type:              notifications.Type(d.Type),
		Title:             d.Title,
		BodyTemplate:      d.BodyTemplate,
		SubjectTemplate:   d.SubjectTemplate,
		ContextName:       d.ContextName,
		ContextParameters: d.ContextParameters,
		ContextUsed:       used,
		SendAfter:         d.SendAfter,
		Status:            notifications.Status(d.Status),
		AdapterUsed:       d.AdapterUsed,
		ExtraParams:       d.ExtraParams,
		SentAt:            d.SentAt,
		ReadAt:            d.ReadAt,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
	}, nil
}

func (b *Backend) Persist(ctx context.Context, n notifications.Notification) (*notifications.Notification, error) {
	if n.IsPersisted() {
		return nil, notifications.ErrAlreadyPersisted
	}
	if err := n.Validate(); err != nil {
		return nil, err
	}

	now := time.Now()
	n.ID = uuid.New()
	if n.Status == "" {
		n.Status = notifications.StatusPendingSend
	}
	n.CreatedAt = now
	n.UpdatedAt = now

	if _, err := b.notifications.InsertOne(ctx, newNotificationDoc(n)); err != nil {
		return nil, fmt.Errorf("persist notification: %w", err)
	}
	return &n, nil
}

func (b *Backend) PersistUpdate(ctx context.Context, n notifications.Notification) (*notifications.Notification, error) {
	n.UpdatedAt = time.Now()

	res, err := b.notifications.UpdateOne(ctx,
		bson.M{"_id": n.ID.String(), "status": string(notifications.StatusPendingSend)},
		bson.M{"$set": bson.M{
			"recipient":          n.Recipient,
			"type":               string(n.Type),
			"title":              n.Title,
			"body_template":      n.BodyTemplate,
			"subject_template":   n.SubjectTemplate,
			"context_name":       n.ContextName,
			"context_parameters": n.ContextParameters,
			"send_after":         n.SendAfter,
			"extra_params":       n.ExtraParams,
			"updated_at":         n.UpdatedAt,
		}},
	)
	if err != nil {
		return nil, fmt.Errorf("update notification: %w", err)
	}
	if res.MatchedCount == 0 {
		return nil, b.missingOrWrongState(ctx, n.ID, notifications.StatusPendingSend)
	}
	return b.Get(ctx, n.ID, false)
}

func (b *Backend) MarkSent(ctx context.Context, id uuid.UUID, checkIsPending bool) error {
	return b.transition(ctx, id, notifications.StatusSent, checkIsPending, notifications.StatusPendingSend, "sent_at")
}

func (b *Backend) MarkFailed(ctx context.Context, id uuid.UUID, checkIsPending bool) error {
	return b.transition(ctx, id, notifications.StatusFailed, checkIsPending, notifications.StatusPendingSend, "")
}

func (b *Backend) MarkRead(ctx context.Context, id uuid.UUID, checkIsSent bool) error {
	return b.transition(ctx, id, notifications.StatusRead, checkIsSent, notifications.StatusSent, "read_at")
}

func (b *Backend) Cancel(ctx context.Context, id uuid.UUID) error {
	return b.transition(ctx, id, notifications.StatusCancelled, true, notifications.StatusPendingSend, "")
}

// transition runs a single conditional update. The expected-status filter is
// what makes the transition atomic under concurrent senders.
func (b *Backend) transition(ctx context.Context, id uuid.UUID, next notifications.Status, check bool, expected notifications.Status, stampField string) error {
	filter := bson.M{"_id": id.String()}
	if check {
		filter["status"] = string(expected)
	}

	now := time.Now()
	set := bson.M{"status": string(next), "updated_at": now}
	if stampField != "" {
		set[stampField] = now
	}

	res, err := b.notifications.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("transition to %s: %w", next, err)
	}
	if res.MatchedCount == 0 {
		return b.missingOrWrongState(ctx, id, expected)
	}
	return nil
}

// missingOrWrongState disambiguates a zero-match conditional update.
func (b *Backend) missingOrWrongState(ctx context.Context, id uuid.UUID, expected notifications.Status) error {
	count, err := b.notifications.CountDocuments(ctx, bson.M{"_id": id.String()})
	if err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("%w: %s", notifications.ErrNotificationNotFound, id)
	}
	if expected == notifications.StatusSent {
		return fmt.Errorf("%w: %s", notifications.ErrNotSent, id)
	}
	return fmt.Errorf("%w: %s", notifications.ErrNotPending, id)
}

// Get returns the notification with the given id. MongoDB has no row locks;
// forUpdate is accepted for interface compatibility and relies on the
// conditional transitions for consistency instead.
func (b *Backend) Get(ctx context.Context, id uuid.UUID, forUpdate bool) (*notifications.Notification, error) {
	var doc notificationDoc
	err := b.notifications.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: %s", notifications.ErrNotificationNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get notification: %w", err)
	}

	n, err := doc.toDomain()
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (b *Backend) ListPending(ctx context.Context) ([]notifications.Notification, error) {
	return b.find(ctx, pendingFilter(time.Now()), nil)
}

func (b *Backend) ListPendingForUser(ctx context.Context, userID string) ([]notifications.Notification, error) {
	filter := pendingFilter(time.Now())
	filter["recipient.kind"] = string(notifications.RecipientAccount)
	filter["recipient.user_id"] = userID
	return b.find(ctx, filter, nil)
}

func (b *Backend) ListScheduled(ctx context.Context) ([]notifications.Notification, error) {
	return b.find(ctx, scheduledFilter(time.Now()), nil)
}

func (b *Backend) ListScheduledForUser(ctx context.Context, userID string) ([]notifications.Notification, error) {
	filter := scheduledFilter(time.Now())
	filter["recipient.kind"] = string(notifications.RecipientAccount)
	filter["recipient.user_id"] = userID
	return b.find(ctx, filter, nil)
}

func (b *Backend) ListAll(ctx context.Context, limit, offset int) ([]notifications.Notification, error) {
	if limit <= 0 {
		return nil, notifications.ErrInvalidBatchSize
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))
	return b.find(ctx, bson.M{}, opts)
}

func (b *Backend) StoreContextUsed(ctx context.Context, id uuid.UUID, used notifications.Context) error {
	res, err := b.notifications.UpdateOne(ctx,
		bson.M{"_id": id.String()},
		bson.M{"$set": bson.M{"context_used": map[string]any(used), "updated_at": time.Now()}},
	)
	if err != nil {
		return fmt.Errorf("store context used: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", notifications.ErrNotificationNotFound, id)
	}
	return nil
}

func (b *Backend) BulkPersist(ctx context.Context, batch []notifications.Notification) ([]notifications.Notification, error) {
	if len(batch) == 0 {
		return nil, nil
	}

	now := time.Now()
	docs := make([]any, 0, len(batch))
	stored := make([]notifications.Notification, 0, len(batch))
	for _, n := range batch {
		if n.IsPersisted() {
			return nil, notifications.ErrAlreadyPersisted
		}
		if err := n.Validate(); err != nil {
			return nil, err
		}
		n.ID = uuid.New()
		if n.Status == "" {
			n.Status = notifications.StatusPendingSend
		}
		n.CreatedAt = now
		n.UpdatedAt = now
		docs = append(docs, newNotificationDoc(n))
		stored = append(stored, n)
	}

	if _, err := b.notifications.InsertMany(ctx, docs); err != nil {
		return nil, fmt.Errorf("bulk persist: %w", err)
	}
	return stored, nil
}

func (b *Backend) find(ctx context.Context, filter bson.M, opts *options.FindOptionsBuilder) ([]notifications.Notification, error) {
	if opts == nil {
		opts = options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	}

	cur, err := b.notifications.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer cur.Close(ctx)

	var result []notifications.Notification
	for cur.Next(ctx) {
		var doc notificationDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode notification: %w", err)
		}
		n, err := doc.toDomain()
		if err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return result, nil
}

func pendingFilter(now time.Time) bson.M {
	return bson.M{
		"status": string(notifications.StatusPendingSend),
		"$or": bson.A{
			bson.M{"send_after": bson.M{"$exists": false}},
			bson.M{"send_after": nil},
			bson.M{"send_after": bson.M{"$lte": now}},
		},
	}
}

func scheduledFilter(now time.Time) bson.M {
	return bson.M{
		"status":     string(notifications.StatusPendingSend),
		"send_after": bson.M{"$gt": now},
	}
}

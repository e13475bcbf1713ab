package mongodb

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vintasoftware/vintasend-go/pkg/attachments"
	"github.com/vintasoftware/vintasend-go/pkg/notifications"
)

func TestNotificationDoc_RoundTrip(t *testing.T) {
	now := time.Now().Truncate(time.Millisecond)
	sendAfter := now.Add(time.Hour)

	n := notifications.Notification{
		ID:                uuid.New(),
		Recipient:         notifications.AccountRecipient("u1"),
		Type:              notifications.TypeEmail,
		Title:             "Welcome",
		BodyTemplate:      "welcome.html",
		SubjectTemplate:   "Hi {{.name}}",
		ContextName:       "welcome",
		ContextParameters: map[string]any{"name": "Jo"},
		ContextUsed:       notifications.Context{"name": "Jo"},
		SendAfter:         &sendAfter,
		Status:            notifications.StatusPendingSend,
		AdapterUsed:       "email",
		ExtraParams:       map[string]any{"campaign": "q3"},
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	doc := newNotificationDoc(n)
	assert.Equal(t, n.ID.String(), doc.ID)

	got, err := doc.toDomain()
	require.NoError(t, err)
	assert.Equal(t, n, got)
}

func TestNotificationDoc_MalformedID(t *testing.T) {
	_, err := notificationDoc{ID: "not-a-uuid"}.toDomain()
	assert.Error(t, err)
}

func TestFileDoc_RoundTrip(t *testing.T) {
	now := time.Now().Truncate(time.Millisecond)
	rec := attachments.FileRecord{
		ID:          uuid.New(),
		Filename:    "invoice.pdf",
		ContentType: "application/pdf",
		Size:        2048,
		Checksum:    "ab12",
		Storage:     attachments.StorageIdentifiers{Driver: "s3", Key: "ab/ab12"},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	got, err := newFileDoc(rec).toDomain()
	require.NoError(t, err)
	assert.Equal(t, rec, got)
}

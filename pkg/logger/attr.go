package logger

import (
	"log/slog"
	"strconv"
)

// Group creates a slog group attribute from the provided attributes.
func Group(name string, attrs ...slog.Attr) slog.Attr {
	return slog.Attr{Key: name, Value: slog.GroupValue(attrs...)}
}

// Errors groups multiple non-nil errors under the key "errors".
// If all errors are nil, it returns an empty Attr.
func Errors(errs ...error) slog.Attr {
	as := make([]slog.Attr, 0, len(errs))
	for i, err := range errs {
		if err != nil {
			as = append(as, slog.Any(strconv.Itoa(i), err))
		}
	}
	if len(as) == 0 {
		return slog.Attr{}
	}
	return slog.Attr{Key: "errors", Value: slog.GroupValue(as...)}
}

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// NotificationID records the notification identifier under the key "notification_id".
// If id is nil, it returns an empty Attr.
func NotificationID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("notification_id", id)
}

// UserID records the user identifier under the key "user_id".
// If id is nil, it returns an empty Attr.
func UserID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("user_id", id)
}

// AdapterKey records the delivery adapter key under the key "adapter_key".
func AdapterKey(key string) slog.Attr {
	return slog.String("adapter_key", key)
}

// NotificationType records the delivery channel under the key "notification_type".
func NotificationType(t any) slog.Attr {
	if t == nil {
		return slog.Attr{}
	}
	return slog.Any("notification_type", t)
}

// FileID records the attachment file identifier under the key "file_id".
// If id is nil, it returns an empty Attr.
func FileID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("file_id", id)
}

// Checksum records a content checksum under the key "checksum".
func Checksum(sum string) slog.Attr {
	return slog.String("checksum", sum)
}

// Queue records a queue name under the key "queue".
func Queue(name string) slog.Attr {
	return slog.String("queue", name)
}

// ContextName records a context generator name under the key "context_name".
func ContextName(name string) slog.Attr {
	return slog.String("context_name", name)
}

// Status records a notification status under the key "status".
func Status(status any) slog.Attr {
	if status == nil {
		return slog.Attr{}
	}
	return slog.Any("status", status)
}

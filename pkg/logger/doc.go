// Package logger provides a slog.Logger factory with structured defaults and
// context-aware attribute injection for the notification pipeline.
//
// The factory produces loggers with either JSON (production) or text
// (development) output, static service attributes, and optional extractors
// that pull request-scoped values out of a context.Context at log time.
//
// # Usage
//
// Settings usually come from the environment through pkg/config:
//
//	log := logger.NewFromConfig(config.MustLoad[logger.Config](),
//	    logger.WithAttr(slog.String("component", "dispatch")),
//	)
//
//	log.LogAttrs(ctx, slog.LevelInfo, "notification sent",
//	    logger.NotificationID(n.ID),
//	    logger.AdapterKey("email-adapter"),
//	)
//
// The attribute helpers in attr.go keep log keys consistent across packages:
// notification_id, adapter_key, file_id, checksum, and friends.
package logger

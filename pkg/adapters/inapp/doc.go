// Package inapp delivers in-app notifications backed by the notification
// store itself: a delivered notification is one the recipient can list in
// their inbox. An optional Publisher pushes live events to connected clients
// so open sessions update without polling; the in-memory Hub provides a
// single-process implementation with per-user fan-out and slow-consumer
// dropping.
package inapp

// Package notify delivers one-off user notifications (toasts) for document
// editing operations.
package notify

import (
	"context"
	"log/slog"
	"strings"
	"sync"
)

// Variant is the severity of a notification.
type Variant string

const (
	Success Variant = "success"
	Warning Variant = "warning"
	Error   Variant = "error"
	Info    Variant = "info"
)

// Notification is a single message shown to the user. Key is the catalog
// key the message was rendered from.
type Notification struct {
	Variant Variant `json:"variant" yaml:"variant"`
	Key     string  `json:"key" yaml:"key"`
	Message string  `json:"message" yaml:"message"`
}

// Sink receives notifications. Notify must not block on the user.
type Sink interface {
	Notify(ctx context.Context, n Notification)
}

// Args are interpolated into catalog templates as {name}.
type Args map[string]string

// Catalog renders message keys into user-facing text.
type Catalog map[string]string

// Render returns the message for key with args substituted. Unknown keys
// render as the key itself.
func (c Catalog) Render(key string, args Args) string {
	msg, ok := c[key]
	if !ok {
		msg = key
	}
	for name, val := range args {
		msg = strings.ReplaceAll(msg, "{"+name+"}", val)
	}
	return msg
}

// TableRowDetection holds the row detection messages.
var TableRowDetection = Catalog{
	"alreadyCancelled":      "This request has already been cancelled, or it has completed",
	"cancelled":             "Request successfully cancelled",
	"detectionResultsEmpty": "No rows were detected",
	"done":                  "Row detection completed",
	"failure":               "An error occured while detecting rows: {errorMessage}",
}

// Document holds the document editing messages.
var Document = Catalog{
	"saveSuccess":    "Saved",
	"saveFailure":    "Failed saving",
	"deleteFailure":  "Failed deleting",
	"exportFailure":  "Failed exporting",
	"uploading":      "Uploading {fileName}",
	"uploadSuccess":  "Uploaded",
	"uploadFailure":  "Failed uploading",
	"rescanSuccess":  "Rescan started",
	"rescanFailure":  "Failed rescanning",
	"feedbackSent":   "Thank you for your feedback",
	"feedbackFailed": "Failed sending feedback",
}

// Errors holds generic error messages.
var Errors = Catalog{
	"connectionError": "Connection error: {errorMessage}",
}

// Reporter tells the user how a one-shot document operation went.
type Reporter struct {
	Sink Sink
	// Messages defaults to Document.
	Messages Catalog
	// IsConnection picks out failures that never reached the backend. They
	// are reported with the Errors catalog.
	IsConnection func(error) bool
}

// Info sends an informational message.
func (r Reporter) Info(ctx context.Context, key string, args Args) {
	r.Sink.Notify(ctx, Notification{Variant: Info, Key: key, Message: r.messages().Render(key, args)})
}

// Report sends successKey when err is nil and failureKey, followed by the
// error text, otherwise. An empty key sends nothing for that outcome,
// except that connection failures are always reported. err is returned
// unchanged.
func (r Reporter) Report(ctx context.Context, successKey, failureKey string, err error) error {
	switch {
	case err == nil:
		if successKey != "" {
			r.Sink.Notify(ctx, Notification{Variant: Success, Key: successKey, Message: r.messages().Render(successKey, nil)})
		}
	case r.IsConnection != nil && r.IsConnection(err):
		r.Sink.Notify(ctx, Notification{
			Variant: Error,
			Key:     "connectionError",
			Message: Errors.Render("connectionError", Args{"errorMessage": err.Error()}),
		})
	case failureKey != "":
		r.Sink.Notify(ctx, Notification{
			Variant: Error,
			Key:     failureKey,
			Message: r.messages().Render(failureKey, nil) + ": " + err.Error(),
		})
	}
	return err
}

func (r Reporter) messages() Catalog {
	if r.Messages == nil {
		return Document
	}
	return r.Messages
}

// LogSink writes notifications to a structured logger.
type LogSink struct {
	Logger *slog.Logger
}

// Notify implements Sink.
func (s LogSink) Notify(ctx context.Context, n Notification) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	level := slog.LevelInfo
	switch n.Variant {
	case Warning:
		level = slog.LevelWarn
	case Error:
		level = slog.LevelError
	}
	logger.Log(ctx, level, n.Message, "variant", string(n.Variant), "key", n.Key)
}

// Recorder keeps every notification it receives. Safe for concurrent use.
type Recorder struct {
	mu   sync.Mutex
	sent []Notification
}

// Notify implements Sink.
func (r *Recorder) Notify(_ context.Context, n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
}

// All returns a copy of the recorded notifications in arrival order.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.sent))
	copy(out, r.sent)
	return out
}

// Len returns how many notifications were recorded.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

// Multi fans a notification out to several sinks.
type Multi []Sink

// Notify implements Sink.
func (m Multi) Notify(ctx context.Context, n Notification) {
	for _, s := range m {
		s.Notify(ctx, n)
	}
}

package notify

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

func TestCatalog_Render(t *testing.T) {
	t.Run("interpolates args", func(t *testing.T) {
		got := TableRowDetection.Render("failure", Args{"errorMessage": "boom"})
		want := "An error occured while detecting rows: boom"
		if got != want {
			t.Errorf("expected %q, got %q", want, got)
		}
	})

	t.Run("unknown key renders as key", func(t *testing.T) {
		if got := TableRowDetection.Render("nope", nil); got != "nope" {
			t.Errorf("expected nope, got %q", got)
		}
	})

	t.Run("missing arg leaves placeholder", func(t *testing.T) {
		got := Errors.Render("connectionError", nil)
		if !strings.Contains(got, "{errorMessage}") {
			t.Errorf("expected placeholder to remain, got %q", got)
		}
	})
}

func TestLogSink_Notify(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	LogSink{Logger: logger}.Notify(context.Background(), Notification{
		Variant: Warning,
		Key:     "alreadyCancelled",
		Message: "already cancelled",
	})

	out := buf.String()
	if !strings.Contains(out, "level=WARN") {
		t.Errorf("expected WARN level, got %s", out)
	}
	if !strings.Contains(out, "key=alreadyCancelled") {
		t.Errorf("expected key attribute, got %s", out)
	}
}

func TestRecorder_Concurrent(t *testing.T) {
	r := &Recorder{}
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Notify(context.Background(), Notification{Variant: Info})
		}()
	}
	wg.Wait()

	if r.Len() != 10 {
		t.Errorf("expected 10 notifications, got %d", r.Len())
	}
}

func TestMulti_Notify(t *testing.T) {
	a, b := &Recorder{}, &Recorder{}
	Multi{a, b}.Notify(context.Background(), Notification{Variant: Success, Key: "done"})

	if a.Len() != 1 || b.Len() != 1 {
		t.Errorf("expected both sinks to receive, got %d and %d", a.Len(), b.Len())
	}
}

func TestReporter(t *testing.T) {
	ctx := context.Background()
	errOffline := errors.New("dial tcp: connection refused")
	errServer := errors.New("500 Internal Server Error")
	newReporter := func() (Reporter, *Recorder) {
		rec := &Recorder{}
		return Reporter{Sink: rec, IsConnection: func(err error) bool { return err == errOffline }}, rec
	}

	t.Run("success", func(t *testing.T) {
		r, rec := newReporter()
		if err := r.Report(ctx, "uploadSuccess", "uploadFailure", nil); err != nil {
			t.Fatal(err)
		}
		sent := rec.All()
		if len(sent) != 1 || sent[0].Variant != Success || sent[0].Message != "Uploaded" {
			t.Errorf("unexpected notifications: %+v", sent)
		}
	})

	t.Run("failure carries the error", func(t *testing.T) {
		r, rec := newReporter()
		if err := r.Report(ctx, "", "deleteFailure", errServer); err != errServer {
			t.Errorf("expected error to pass through, got %v", err)
		}
		sent := rec.All()
		if len(sent) != 1 || sent[0].Variant != Error || sent[0].Message != "Failed deleting: 500 Internal Server Error" {
			t.Errorf("unexpected notifications: %+v", sent)
		}
	})

	t.Run("connection failure uses the generic message", func(t *testing.T) {
		r, rec := newReporter()
		r.Report(ctx, "", "exportFailure", errOffline)
		sent := rec.All()
		if len(sent) != 1 || sent[0].Key != "connectionError" || sent[0].Message != "Connection error: dial tcp: connection refused" {
			t.Errorf("unexpected notifications: %+v", sent)
		}
	})

	t.Run("empty keys stay quiet", func(t *testing.T) {
		r, rec := newReporter()
		r.Report(ctx, "", "", nil)
		r.Report(ctx, "", "", errServer)
		if rec.Len() != 0 {
			t.Errorf("expected no notifications, got %+v", rec.All())
		}
	})

	t.Run("info", func(t *testing.T) {
		r, rec := newReporter()
		r.Info(ctx, "uploading", Args{"fileName": "a.pdf"})
		sent := rec.All()
		if len(sent) != 1 || sent[0].Variant != Info || sent[0].Message != "Uploading a.pdf" {
			t.Errorf("unexpected notifications: %+v", sent)
		}
	})
}

package rowdetect

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackzampolin/docscan/internal/notify"
	"github.com/jackzampolin/docscan/internal/templateless"
)

const (
	testDocID  = "99"
	testPageID = "88"
	testTable  = "77"
)

var (
	testTableBox = templateless.BoundingBox{XMin: 0.05, YMin: 0.05, XMax: 0.1, YMax: 0.1}
	testRow      = templateless.BoundingBox{XMin: 0.75, YMin: 0.05, XMax: 0.1, YMax: 0.1}
)

func newTestCoordinator(client *mockClient) (*Coordinator, *notify.Recorder) {
	rec := &notify.Recorder{}
	return New(Config{Client: client, Saver: client, Sink: rec}), rec
}

// started returns a coordinator with a detection already requested.
func started(t *testing.T, client *mockClient) (*Coordinator, *notify.Recorder) {
	t.Helper()
	c, rec := newTestCoordinator(client)
	res := c.RequestDetection(context.Background(), testDocID, testPageID, testTableBox, []templateless.BoundingBox{testRow}, testTable)
	if res.Error != "" {
		t.Fatalf("unexpected request error: %s", res.Error)
	}
	return c, rec
}

func TestRowIDs(t *testing.T) {
	t.Run("sequential zero padded ids in input order", func(t *testing.T) {
		rows := []templateless.BoundingBox{
			{XMin: 0.9}, {XMin: 0.1}, {XMin: 0.5},
		}
		got := RowIDs(rows)
		want := []string{"row_0001", "row_0002", "row_0003"}
		for i, r := range got {
			if r.BoxID != want[i] {
				t.Errorf("row %d: expected %s, got %s", i, want[i], r.BoxID)
			}
			if r.BoundingBox != rows[i] {
				t.Errorf("row %d: box changed", i)
			}
		}
	})

	t.Run("does not truncate past four digits", func(t *testing.T) {
		got := RowIDs(make([]templateless.BoundingBox, 10000))
		if got[9998].BoxID != "row_9999" {
			t.Errorf("expected row_9999, got %s", got[9998].BoxID)
		}
		if got[9999].BoxID != "row_10000" {
			t.Errorf("expected row_10000, got %s", got[9999].BoxID)
		}
	})

	t.Run("empty input", func(t *testing.T) {
		if got := RowIDs(nil); len(got) != 0 {
			t.Errorf("expected no rows, got %d", len(got))
		}
	})
}

func TestCoordinator_RequestDetection(t *testing.T) {
	t.Run("success records poll target", func(t *testing.T) {
		client := &mockClient{RequestID: "abc"}
		c, rec := newTestCoordinator(client)

		res := c.RequestDetection(context.Background(), testDocID, testPageID, testTableBox, []templateless.BoundingBox{testRow, testRow}, testTable)

		if res.RequestID != "abc" || res.Error != "" {
			t.Errorf("unexpected result: %+v", res)
		}
		target, ok := c.Target()
		if !ok {
			t.Fatal("expected poll target to be set")
		}
		if target.DocumentID != testDocID || target.DocumentPageID != testPageID {
			t.Errorf("unexpected target: %+v", target)
		}
		if c.ActiveRequestID() != "abc" {
			t.Errorf("expected active request abc, got %q", c.ActiveRequestID())
		}
		if c.Status() != Pending {
			t.Errorf("expected pending, got %s", c.Status())
		}
		if rec.Len() != 0 {
			t.Errorf("expected no notification, got %v", rec.All())
		}
		if c.Busy() {
			t.Error("expected busy to be released")
		}

		p := client.lastPayload
		if p.TableID != testTable || p.Table != testTableBox {
			t.Errorf("unexpected payload: %+v", p)
		}
		if len(p.Rows) != 2 || p.Rows[0].BoxID != "row_0001" || p.Rows[1].BoxID != "row_0002" {
			t.Errorf("unexpected rows: %+v", p.Rows)
		}
	})

	t.Run("failure notifies and leaves no target", func(t *testing.T) {
		client := &mockClient{RequestErr: errBoom}
		c, rec := newTestCoordinator(client)

		res := c.RequestDetection(context.Background(), testDocID, testPageID, testTableBox, nil, testTable)

		if res.RequestID != "" || res.Error != "boom" {
			t.Errorf("unexpected result: %+v", res)
		}
		if c.Awaiting() {
			t.Error("expected no poll target")
		}
		if c.Status() != None {
			t.Errorf("expected null status, got %s", c.Status())
		}
		sent := rec.All()
		if len(sent) != 1 {
			t.Fatalf("expected 1 notification, got %d", len(sent))
		}
		if sent[0].Variant != notify.Error || sent[0].Key != "failure" {
			t.Errorf("unexpected notification: %+v", sent[0])
		}
		if !strings.Contains(sent[0].Message, "boom") {
			t.Errorf("expected message to contain error, got %q", sent[0].Message)
		}
		if c.Busy() {
			t.Error("expected busy to be released")
		}
	})

	t.Run("new request resets a terminal status", func(t *testing.T) {
		client := &mockClient{RequestID: "abc", StatusReply: statusReply("done", []string{`{}`}, "t")}
		c, _ := started(t, client)
		c.PollOnce(context.Background())
		if c.Status() != Done {
			t.Fatalf("expected done, got %s", c.Status())
		}

		client.RequestID = "def"
		c.RequestDetection(context.Background(), testDocID, testPageID, testTableBox, nil, testTable)
		if c.Status() != Pending {
			t.Errorf("expected pending, got %s", c.Status())
		}
		if c.ActiveRequestID() != "def" {
			t.Errorf("expected def, got %s", c.ActiveRequestID())
		}
	})
}

func TestCoordinator_PollOnce(t *testing.T) {
	ctx := context.Background()

	t.Run("no target returns empty without I/O", func(t *testing.T) {
		client := &mockClient{StatusReply: statusReply("done", []string{`{}`}, "abc")}
		c, rec := newTestCoordinator(client)

		for i := 0; i < 3; i++ {
			if got := c.PollOnce(ctx); len(got) != 0 {
				t.Errorf("expected empty result, got %v", got)
			}
		}
		if client.statusCalls.Load() != 0 {
			t.Errorf("expected no status calls, got %d", client.statusCalls.Load())
		}
		if rec.Len() != 0 || c.Awaiting() {
			t.Error("expected no notification and no target")
		}
	})

	t.Run("pending keeps target", func(t *testing.T) {
		client := &mockClient{RequestID: "abc", StatusReply: statusReply("pending", nil, "")}
		c, rec := started(t, client)

		if got := c.PollOnce(ctx); len(got) != 0 {
			t.Errorf("expected empty result, got %v", got)
		}
		if !c.Awaiting() {
			t.Error("expected target to remain")
		}
		if rec.Len() != 0 {
			t.Errorf("expected no notification, got %v", rec.All())
		}
		if c.Status() != Pending {
			t.Errorf("expected pending, got %s", c.Status())
		}
	})

	t.Run("done with rows", func(t *testing.T) {
		client := &mockClient{RequestID: "abc", StatusReply: statusReply("done", []string{`{}`}, "abc")}
		c, rec := started(t, client)

		got := c.PollOnce(ctx)
		if len(got) != 1 || string(got[0]) != "{}" {
			t.Errorf("expected [{}], got %v", got)
		}
		sent := rec.All()
		if len(sent) != 1 || sent[0].Variant != notify.Success || sent[0].Key != "done" {
			t.Errorf("unexpected notifications: %+v", sent)
		}
		if c.Status() != Done {
			t.Errorf("expected done, got %s", c.Status())
		}
		if c.Awaiting() {
			t.Error("expected target to be cleared")
		}
		if c.ActiveRequestID() != "" {
			t.Errorf("expected active request to be cleared, got %q", c.ActiveRequestID())
		}
	})

	t.Run("terminal without rows is normalized to done", func(t *testing.T) {
		cases := []struct {
			name  string
			reply func() *templateless.TableRowDetectionStatus
		}{
			{"done empty", func() *templateless.TableRowDetectionStatus { return statusReply("done", nil, "") }},
			{"rows without table id", func() *templateless.TableRowDetectionStatus { return statusReply("done", []string{`{}`}, "") }},
			{"table id without rows", func() *templateless.TableRowDetectionStatus { return statusReply("done", nil, "abc") }},
			{"error without rows", func() *templateless.TableRowDetectionStatus { return statusReply("error", nil, "") }},
			{"null status", func() *templateless.TableRowDetectionStatus { return &templateless.TableRowDetectionStatus{} }},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				client := &mockClient{RequestID: "abc", StatusReply: tc.reply()}
				c, rec := started(t, client)

				if got := c.PollOnce(ctx); len(got) != 0 {
					t.Errorf("expected empty result, got %v", got)
				}
				sent := rec.All()
				if len(sent) != 1 || sent[0].Variant != notify.Warning || sent[0].Key != "detectionResultsEmpty" {
					t.Errorf("unexpected notifications: %+v", sent)
				}
				if c.Status() != Done {
					t.Errorf("expected done, got %s", c.Status())
				}
				if c.Awaiting() {
					t.Error("expected target to be cleared")
				}
			})
		}
	})

	t.Run("notification per terminal status", func(t *testing.T) {
		cases := []struct {
			status  string
			variant notify.Variant
			key     string
			want    Status
		}{
			{"cancelled", notify.Warning, "alreadyCancelled", Cancelled},
			{"error", notify.Error, "failure", Errored},
			{"exploded", notify.Error, "failure", Status{Kind: StatusUnknown, Raw: "exploded"}},
		}
		for _, tc := range cases {
			t.Run(tc.status, func(t *testing.T) {
				reply := statusReply(tc.status, []string{`{"y":1}`}, "abc")
				reply.ErrorMessage = "model overloaded"
				client := &mockClient{RequestID: "abc", StatusReply: reply}
				c, rec := started(t, client)

				got := c.PollOnce(ctx)
				if len(got) != 1 {
					t.Errorf("expected rows to be returned, got %v", got)
				}
				sent := rec.All()
				if len(sent) != 1 || sent[0].Variant != tc.variant || sent[0].Key != tc.key {
					t.Fatalf("unexpected notifications: %+v", sent)
				}
				if tc.variant == notify.Error && !strings.Contains(sent[0].Message, "model overloaded") {
					t.Errorf("expected backend message in %q", sent[0].Message)
				}
				if c.Status() != tc.want {
					t.Errorf("expected %s, got %s", tc.want, c.Status())
				}
			})
		}
	})

	t.Run("connection error is not terminal", func(t *testing.T) {
		client := &mockClient{RequestID: "abc", StatusErr: errBoom}
		c, rec := started(t, client)

		if got := c.PollOnce(ctx); len(got) != 0 {
			t.Errorf("expected empty result, got %v", got)
		}
		if !c.Awaiting() {
			t.Fatal("expected target to survive a connection error")
		}
		if rec.Len() != 0 {
			t.Errorf("expected no notification, got %v", rec.All())
		}

		client.setStatus(statusReply("done", []string{`{}`}, "abc"), nil)
		if got := c.PollOnce(ctx); len(got) != 1 {
			t.Errorf("expected retry to return rows, got %v", got)
		}
		if rec.Len() != 1 {
			t.Errorf("expected 1 notification, got %d", rec.Len())
		}
	})

	t.Run("missing or forbidden page ends the job", func(t *testing.T) {
		for _, err := range []error{
			&templateless.NotFoundError{Entity: templateless.EntityDocument, ID: testDocID, Status: "404 Not Found"},
			fmt.Errorf("get row detection status: %w", templateless.ErrForbidden),
		} {
			client := &mockClient{RequestID: "abc", StatusErr: err}
			c, rec := started(t, client)

			if got := c.PollOnce(ctx); len(got) != 0 {
				t.Errorf("expected empty result, got %v", got)
			}
			c.PollOnce(ctx)

			if c.Awaiting() {
				t.Errorf("%v: expected target to be cleared", err)
			}
			if c.Status() != Errored {
				t.Errorf("%v: expected error status, got %s", err, c.Status())
			}
			sent := rec.All()
			if len(sent) != 1 || sent[0].Variant != notify.Error || sent[0].Key != "failure" {
				t.Fatalf("%v: expected one failure notification, got %+v", err, sent)
			}
			if !strings.Contains(sent[0].Message, err.Error()) {
				t.Errorf("expected message to carry %q, got %q", err.Error(), sent[0].Message)
			}
			if client.statusCalls.Load() != 1 {
				t.Errorf("expected polling to stop after the first failure, got %d calls", client.statusCalls.Load())
			}
		}
	})

	t.Run("two polls in succession notify once", func(t *testing.T) {
		client := &mockClient{RequestID: "abc", StatusReply: statusReply("done", []string{`{}`}, "abc")}
		c, rec := started(t, client)

		first := c.PollOnce(ctx)
		second := c.PollOnce(ctx)

		if len(first) != 1 || len(second) != 0 {
			t.Errorf("expected rows once, got %v then %v", first, second)
		}
		if rec.Len() != 1 {
			t.Errorf("expected exactly 1 notification, got %d", rec.Len())
		}
	})
}

func TestCoordinator_PollOnce_Concurrent(t *testing.T) {
	for _, reply := range []*templateless.TableRowDetectionStatus{
		statusReply("done", []string{`{}`}, "abc"),
		statusReply("done", nil, ""),
		statusReply("error", []string{`{}`}, "abc"),
	} {
		client := &mockClient{RequestID: "abc", StatusReply: reply, StatusGate: make(chan struct{})}
		c, rec := started(t, client)

		const pollers = 8
		var wg sync.WaitGroup
		results := make([]int, pollers)
		for i := 0; i < pollers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i] = len(c.PollOnce(context.Background()))
			}(i)
		}

		// Every poller must be past the target check before any reply.
		deadline := time.Now().Add(5 * time.Second)
		for client.statusCalls.Load() < pollers {
			if time.Now().After(deadline) {
				t.Fatalf("only %d pollers reached the backend", client.statusCalls.Load())
			}
			time.Sleep(time.Millisecond)
		}
		close(client.StatusGate)
		wg.Wait()

		if rec.Len() != 1 {
			t.Errorf("status %s: expected exactly 1 notification, got %d: %+v", *reply.Status, rec.Len(), rec.All())
		}
		withRows := 0
		for _, n := range results {
			if n > 0 {
				withRows++
			}
		}
		if len(reply.DetectionResults) > 0 && withRows != 1 {
			t.Errorf("expected exactly one poller to get rows, got %d", withRows)
		}
	}
}

func TestCoordinator_PollOnce_StaleAfterNewRequest(t *testing.T) {
	client := &mockClient{
		RequestID:   "first",
		StatusReply: statusReply("done", []string{`{}`}, "abc"),
		StatusGate:  make(chan struct{}),
	}
	c, rec := started(t, client)

	done := make(chan []DetectionResult)
	go func() { done <- c.PollOnce(context.Background()) }()

	for client.statusCalls.Load() < 1 {
		time.Sleep(time.Millisecond)
	}

	client.RequestID = "second"
	c.RequestDetection(context.Background(), testDocID, "other-page", testTableBox, nil, testTable)
	close(client.StatusGate)

	if got := <-done; len(got) != 0 {
		t.Errorf("expected stale poll to return empty, got %v", got)
	}
	if rec.Len() != 0 {
		t.Errorf("expected no notification from stale poll, got %v", rec.All())
	}
	target, ok := c.Target()
	if !ok || target.DocumentPageID != "other-page" {
		t.Errorf("expected newer target to survive, got %+v %v", target, ok)
	}
	if c.Status() != Pending {
		t.Errorf("expected pending, got %s", c.Status())
	}
}

func TestCoordinator_CancelDetection(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name    string
		err     error
		variant notify.Variant
		key     string
		want    Status
	}{
		{"success", nil, notify.Success, "cancelled", Cancelled},
		{"already cancelled", &templateless.ConflictError{Status: "409 Conflict", Message: templateless.DetectionAlreadyCompleted}, notify.Warning, "alreadyCancelled", Cancelled},
		{"other conflict", &templateless.ConflictError{Status: "409 Conflict", Message: "locked"}, notify.Error, "failure", Errored},
		{"generic failure", errBoom, notify.Error, "failure", Errored},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := &mockClient{RequestID: "abc", StatusReply: statusReply("pending", nil, ""), CancelErr: tc.err}
			c, rec := started(t, client)

			c.CancelDetection(ctx, testDocID, testPageID)

			sent := rec.All()
			if len(sent) != 1 || sent[0].Variant != tc.variant || sent[0].Key != tc.key {
				t.Fatalf("unexpected notifications: %+v", sent)
			}
			if c.Status() != tc.want {
				t.Errorf("expected %s, got %s", tc.want, c.Status())
			}
			if len(client.cancelledIDs) != 1 || client.cancelledIDs[0] != "abc" {
				t.Errorf("expected cancel of abc, got %v", client.cancelledIDs)
			}
			if c.ActiveRequestID() != "" {
				t.Errorf("expected active request to be cleared, got %q", c.ActiveRequestID())
			}
			if !c.Awaiting() {
				t.Error("cancel must not touch the poll target")
			}
			if c.Busy() {
				t.Error("expected busy to be released")
			}
		})
	}

	t.Run("cancel then poll observing cancelled notifies twice", func(t *testing.T) {
		// Cancel reports independently of the poll target, so a poll that
		// later sees the backend's cancelled status also reports once.
		client := &mockClient{RequestID: "abc", StatusReply: statusReply("cancelled", []string{`{}`}, "abc")}
		c, rec := started(t, client)

		c.CancelDetection(ctx, testDocID, testPageID)
		c.PollOnce(ctx)
		c.PollOnce(ctx)

		sent := rec.All()
		if len(sent) != 2 {
			t.Fatalf("expected 2 notifications, got %+v", sent)
		}
		if sent[0].Key != "cancelled" || sent[1].Key != "alreadyCancelled" {
			t.Errorf("unexpected order: %+v", sent)
		}
	})
}

func TestCoordinator_CancelOverlappingNewRequest(t *testing.T) {
	client := &mockClient{
		RequestID:   "first",
		StatusReply: statusReply("pending", nil, ""),
		CancelGate:  make(chan struct{}),
		Entered:     make(chan struct{}, 1),
	}
	c, rec := started(t, client)

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.CancelDetection(context.Background(), testDocID, testPageID)
	}()
	<-client.Entered

	client.setRequestID("second")
	res := c.RequestDetection(context.Background(), testDocID, "p2", testTableBox, nil, testTable)
	if res.RequestID != "second" {
		t.Fatalf("expected second request, got %+v", res)
	}
	close(client.CancelGate)
	<-done

	if len(client.cancelledIDs) != 1 || client.cancelledIDs[0] != "first" {
		t.Errorf("expected cancel of first, got %v", client.cancelledIDs)
	}
	if c.ActiveRequestID() != "second" {
		t.Errorf("expected second to stay active, got %q", c.ActiveRequestID())
	}
	if c.Status() != Pending {
		t.Errorf("expected pending, got %s", c.Status())
	}
	target, ok := c.Target()
	if !ok || target.DocumentPageID != "p2" {
		t.Errorf("expected p2 to be awaited, got %+v %v", target, ok)
	}
	sent := rec.All()
	if len(sent) != 1 || sent[0].Key != "cancelled" {
		t.Errorf("expected the cancel to be reported once, got %+v", sent)
	}
}

func TestCoordinator_BusyWhileInFlight(t *testing.T) {
	ops := []struct {
		name string
		gate func(*mockClient) chan struct{}
		run  func(*Coordinator)
	}{
		{
			name: "request",
			gate: func(m *mockClient) chan struct{} { m.RequestGate = make(chan struct{}); return m.RequestGate },
			run: func(c *Coordinator) {
				c.RequestDetection(context.Background(), testDocID, testPageID, testTableBox, nil, testTable)
			},
		},
		{
			name: "cancel",
			gate: func(m *mockClient) chan struct{} { m.CancelGate = make(chan struct{}); return m.CancelGate },
			run:  func(c *Coordinator) { c.CancelDetection(context.Background(), testDocID, testPageID) },
		},
		{
			name: "save",
			gate: func(m *mockClient) chan struct{} { m.SaveGate = make(chan struct{}); return m.SaveGate },
			run: func(c *Coordinator) {
				c.SaveCorrections(context.Background(), testDocID, []templateless.Page{{ID: "1"}})
			},
		},
	}

	for _, op := range ops {
		t.Run(op.name, func(t *testing.T) {
			client := &mockClient{RequestID: "abc", Entered: make(chan struct{}, 1)}
			gate := op.gate(client)
			c, _ := newTestCoordinator(client)
			if c.Busy() {
				t.Fatal("expected idle coordinator")
			}

			done := make(chan struct{})
			go func() {
				defer close(done)
				op.run(c)
			}()
			<-client.Entered

			if !c.Busy() {
				t.Error("expected busy while the call is in flight")
			}
			close(gate)
			<-done
			if c.Busy() {
				t.Error("expected busy to be released")
			}
		})
	}
}

func TestCoordinator_SetStatus(t *testing.T) {
	c, _ := newTestCoordinator(&mockClient{})
	c.SetStatus(Errored)
	if c.Status() != Errored {
		t.Errorf("expected error, got %s", c.Status())
	}
}

func TestCoordinator_Resume(t *testing.T) {
	client := &mockClient{StatusReply: statusReply("done", []string{`{}`}, testTable)}
	c, rec := newTestCoordinator(client)

	c.Resume(PollTarget{DocumentID: testDocID, DocumentPageID: testPageID}, "req-1")
	if !c.Awaiting() || c.ActiveRequestID() != "req-1" || c.Status() != Pending {
		t.Fatalf("unexpected state after resume: awaiting=%v id=%q status=%s", c.Awaiting(), c.ActiveRequestID(), c.Status())
	}

	if rows := c.PollOnce(context.Background()); len(rows) != 1 {
		t.Errorf("expected 1 row, got %d", len(rows))
	}
	if rec.Len() != 1 {
		t.Errorf("expected 1 notification, got %d", rec.Len())
	}
	if c.Awaiting() {
		t.Error("expected target to be cleared")
	}
}

func TestCoordinator_SaveCorrections(t *testing.T) {
	ctx := context.Background()
	pages := []templateless.Page{{ID: "1"}, {ID: "2"}, {ID: "3"}}

	t.Run("saves every page in order", func(t *testing.T) {
		client := &mockClient{}
		c, rec := newTestCoordinator(client)

		res := c.SaveCorrections(ctx, testDocID, pages)

		if !res.OK || res.Saved != 3 || len(res.Errors) != 0 {
			t.Errorf("unexpected result: %+v", res)
		}
		if strings.Join(client.savedPages, ",") != "1,2,3" {
			t.Errorf("unexpected save order: %v", client.savedPages)
		}
		sent := rec.All()
		if len(sent) != 1 || sent[0].Variant != notify.Success || sent[0].Key != "saveSuccess" {
			t.Errorf("unexpected notifications: %+v", sent)
		}
	})

	t.Run("stops at first failure", func(t *testing.T) {
		client := &mockClient{SaveErrAt: "2", SaveErr: errBoom}
		c, rec := newTestCoordinator(client)

		res := c.SaveCorrections(ctx, testDocID, pages)

		if res.OK || res.Saved != 1 {
			t.Errorf("unexpected result: %+v", res)
		}
		if len(res.Errors) != 1 || res.Errors[0] != "boom" {
			t.Errorf("unexpected errors: %v", res.Errors)
		}
		if strings.Join(client.savedPages, ",") != "1" {
			t.Errorf("expected only page 1 saved, got %v", client.savedPages)
		}
		sent := rec.All()
		if len(sent) != 1 || sent[0].Variant != notify.Error {
			t.Fatalf("unexpected notifications: %+v", sent)
		}
		if sent[0].Message != "Failed saving: boom" {
			t.Errorf("unexpected message: %q", sent[0].Message)
		}
		if c.Busy() {
			t.Error("expected busy to be released")
		}
	})

	t.Run("no pages still reports success", func(t *testing.T) {
		c, rec := newTestCoordinator(&mockClient{})
		res := c.SaveCorrections(ctx, testDocID, nil)
		if !res.OK || rec.Len() != 1 {
			t.Errorf("unexpected result %+v / %d notifications", res, rec.Len())
		}
	})
}

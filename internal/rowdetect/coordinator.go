// Package rowdetect coordinates table row detection jobs for the page
// editor: start a job, poll it until it ends, cancel it, and tell the user
// about each outcome exactly once.
//
// Polling is driven from outside. PollOnce may be called at any cadence
// and from any number of goroutines; the poll target is claimed under a
// lock before a notification fires, so overlapping polls that observe the
// same terminal status notify once.
package rowdetect

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/jackzampolin/docscan/internal/notify"
	"github.com/jackzampolin/docscan/internal/templateless"
)

// Config configures a Coordinator.
type Config struct {
	Client DetectionClient
	Saver  CorrectionSaver
	Sink   notify.Sink
	Logger *slog.Logger

	// Messages default to notify.TableRowDetection and notify.Document.
	DetectionMessages notify.Catalog
	DocumentMessages  notify.Catalog
}

// Coordinator owns the row detection state of one editing session.
type Coordinator struct {
	client   DetectionClient
	saver    CorrectionSaver
	sink     notify.Sink
	logger   *slog.Logger
	messages notify.Catalog
	docMsgs  notify.Catalog

	mu              sync.Mutex
	target          *PollTarget
	activeRequestID string
	status          Status

	busy atomic.Int32
}

// New creates a Coordinator.
func New(cfg Config) *Coordinator {
	c := &Coordinator{
		client:   cfg.Client,
		saver:    cfg.Saver,
		sink:     cfg.Sink,
		logger:   cfg.Logger,
		messages: cfg.DetectionMessages,
		docMsgs:  cfg.DocumentMessages,
		status:   None,
	}
	if c.sink == nil {
		c.sink = notify.LogSink{Logger: cfg.Logger}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.logger = c.logger.With("session", uuid.NewString())
	if c.messages == nil {
		c.messages = notify.TableRowDetection
	}
	if c.docMsgs == nil {
		c.docMsgs = notify.Document
	}
	return c
}

// Status returns the status of the active request.
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// SetStatus overrides the displayed status. The editor uses this to show
// a request as pending right after it starts.
func (c *Coordinator) SetStatus(s Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = s
}

// Busy reports whether a start, cancel or save call is in flight.
func (c *Coordinator) Busy() bool {
	return c.busy.Load() > 0
}

// Target returns the current poll target, if any.
func (c *Coordinator) Target() (PollTarget, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.target == nil {
		return PollTarget{}, false
	}
	return *c.target, true
}

// Awaiting reports whether a detection outcome is still expected.
func (c *Coordinator) Awaiting() bool {
	_, ok := c.Target()
	return ok
}

// ActiveRequestID returns the id of the job a cancel would target.
func (c *Coordinator) ActiveRequestID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeRequestID
}

// Resume picks up a job started elsewhere, e.g. by an earlier process.
// The job is awaited on target and cancels go to requestID.
func (c *Coordinator) Resume(target PollTarget, requestID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.target = &target
	c.activeRequestID = requestID
	c.status = Pending
}

func (c *Coordinator) acquire() func() {
	c.busy.Add(1)
	return func() { c.busy.Add(-1) }
}

// RequestDetection starts a row detection job for a table region on a
// page. Rows get sequential row_NNNN ids in input order.
func (c *Coordinator) RequestDetection(ctx context.Context, documentID, documentPageID string, table templateless.BoundingBox, rows []templateless.BoundingBox, tableID string) RequestResult {
	defer c.acquire()()

	c.SetStatus(None)
	payload := templateless.TableRowDetectionPayload{
		Table:   table,
		Rows:    RowIDs(rows),
		TableID: tableID,
	}

	log := c.logger.With("document_id", documentID, "page_id", documentPageID, "table_id", tableID)
	resp, err := c.client.RequestTableRowDetection(ctx, documentID, documentPageID, payload)
	if err != nil {
		msg := templateless.ExtractErrorMessage(err)
		log.Warn("row detection request failed", "error", err)

		c.mu.Lock()
		c.status = None
		c.activeRequestID = ""
		c.target = nil
		c.mu.Unlock()

		c.send(ctx, notify.Error, "failure", notify.Args{"errorMessage": msg})
		return RequestResult{Error: msg}
	}

	c.mu.Lock()
	c.target = &PollTarget{DocumentID: documentID, DocumentPageID: documentPageID}
	c.activeRequestID = resp.ActiveRowDetectionRequestID
	c.status = Pending
	c.mu.Unlock()

	log.Debug("row detection requested", "request_id", resp.ActiveRowDetectionRequestID, "rows", len(rows))
	return RequestResult{RequestID: resp.ActiveRowDetectionRequestID}
}

// PollOnce checks the awaited job once. It returns the detected rows when
// the job finished with a usable result and nil otherwise. With no poll
// target it returns immediately without any I/O.
func (c *Coordinator) PollOnce(ctx context.Context) []DetectionResult {
	c.mu.Lock()
	target := c.target
	c.mu.Unlock()
	if target == nil {
		return nil
	}

	log := c.logger.With("document_id", target.DocumentID, "page_id", target.DocumentPageID)
	res, err := c.client.GetTableRowDetectionStatus(ctx, target.DocumentID, target.DocumentPageID)
	if err != nil {
		if !isGone(err) {
			// Transient: keep the target so the next trigger retries.
			log.Warn("row detection status unavailable", "error", err)
			return nil
		}
		if !c.claim(target, Errored) {
			return nil
		}
		log.Warn("row detection status lost", "error", err)
		c.send(ctx, notify.Error, "failure", notify.Args{"errorMessage": templateless.ExtractErrorMessage(err)})
		return nil
	}

	status := ParseStatus(res.Status)
	if status.Kind == StatusPending {
		return nil
	}

	if len(res.DetectionResults) == 0 || res.TableID == "" {
		if !c.claim(target, Done) {
			return nil
		}
		log.Info("row detection finished without rows", "status", status.String())
		c.send(ctx, notify.Warning, "detectionResultsEmpty", nil)
		return nil
	}

	if !c.claim(target, status) {
		return nil
	}

	switch status.Kind {
	case StatusCancelled:
		c.send(ctx, notify.Warning, "alreadyCancelled", nil)
	case StatusDone:
		c.send(ctx, notify.Success, "done", nil)
	default:
		c.send(ctx, notify.Error, "failure", notify.Args{"errorMessage": res.ErrorMessage})
	}

	log.Info("row detection finished", "status", status.String(), "rows", len(res.DetectionResults))
	return res.DetectionResults
}

// isGone reports errors after which polling the same page can never succeed.
func isGone(err error) bool {
	var nf *templateless.NotFoundError
	return errors.As(err, &nf) || errors.Is(err, templateless.ErrForbidden)
}

// claim clears target if it is still the current poll target and records
// the observed status. Only the caller that gets true may notify.
func (c *Coordinator) claim(target *PollTarget, status Status) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.target != target {
		return false
	}
	c.target = nil
	c.activeRequestID = ""
	c.status = status
	return true
}

// CancelDetection asks the backend to cancel the active job. The outcome
// is reported to the user regardless of the poll target; a job that had
// already ended is reported as cancelled, not as an error.
func (c *Coordinator) CancelDetection(ctx context.Context, documentID, documentPageID string) {
	defer c.acquire()()

	requestID := c.ActiveRequestID()
	log := c.logger.With("document_id", documentID, "page_id", documentPageID, "request_id", requestID)

	err := c.client.CancelTableRowDetection(ctx, documentID, documentPageID, requestID)

	var status Status
	switch {
	case err == nil:
		status = Cancelled
		c.send(ctx, notify.Success, "cancelled", nil)
	case templateless.IsAlreadyCancelled(err):
		status = Cancelled
		log.Debug("row detection already finished", "error", err)
		c.send(ctx, notify.Warning, "alreadyCancelled", nil)
	default:
		status = Errored
		log.Warn("row detection cancel failed", "error", err)
		c.send(ctx, notify.Error, "failure", notify.Args{"errorMessage": templateless.ExtractErrorMessage(err)})
	}

	// A request started while the cancel was in flight owns the state now.
	c.mu.Lock()
	if c.activeRequestID == requestID {
		c.status = status
		c.activeRequestID = ""
	}
	c.mu.Unlock()
}

// SaveCorrections persists each page's corrections in order and stops at
// the first failure. The user is notified once for the whole batch.
func (c *Coordinator) SaveCorrections(ctx context.Context, documentID string, pages []templateless.Page) SaveResult {
	defer c.acquire()()

	saved := 0
	for _, p := range pages {
		err := c.saver.SavePageCorrections(ctx, documentID, p.ID, templateless.PageCorrections{
			CorrectedFields: p.CorrectedItems,
			CorrectedTables: p.CorrectedTables,
		})
		if err != nil {
			msg := templateless.ExtractErrorMessage(err)
			c.logger.Warn("saving corrections failed",
				"document_id", documentID, "page_id", p.ID, "saved", saved, "error", err)
			c.sink.Notify(ctx, notify.Notification{
				Variant: notify.Error,
				Key:     "saveFailure",
				Message: c.docMsgs.Render("saveFailure", nil) + ": " + msg,
			})
			return SaveResult{OK: false, Errors: []string{msg}, Saved: saved}
		}
		saved++
	}

	c.sink.Notify(ctx, notify.Notification{
		Variant: notify.Success,
		Key:     "saveSuccess",
		Message: c.docMsgs.Render("saveSuccess", nil),
	})
	return SaveResult{OK: true, Saved: saved}
}

func (c *Coordinator) send(ctx context.Context, v notify.Variant, key string, args notify.Args) {
	c.sink.Notify(ctx, notify.Notification{
		Variant: v,
		Key:     key,
		Message: c.messages.Render(key, args),
	})
}

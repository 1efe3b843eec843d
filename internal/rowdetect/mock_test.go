package rowdetect

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/jackzampolin/docscan/internal/templateless"
)

// mockClient is a DetectionClient and CorrectionSaver with scripted replies.
type mockClient struct {
	mu sync.Mutex

	RequestID  string
	RequestErr error

	StatusReply *templateless.TableRowDetectionStatus
	StatusErr   error
	// StatusGate, when set, is received from before each status reply.
	StatusGate chan struct{}

	CancelErr error

	// RequestGate, CancelGate and SaveGate, when set, are received from
	// before the call proceeds. Entered is signalled (non-blocking) once the
	// call is waiting on its gate.
	RequestGate chan struct{}
	CancelGate  chan struct{}
	SaveGate    chan struct{}
	Entered     chan struct{}

	// SaveErrAt fails the save of the page with this id.
	SaveErrAt string
	SaveErr   error

	lastPayload  templateless.TableRowDetectionPayload
	cancelledIDs []string
	savedPages   []string
	statusCalls  atomic.Int64
}

func (m *mockClient) RequestTableRowDetection(_ context.Context, _, _ string, payload templateless.TableRowDetectionPayload) (*templateless.TableRowDetectionResponse, error) {
	m.wait(m.RequestGate)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastPayload = payload
	if m.RequestErr != nil {
		return nil, m.RequestErr
	}
	return &templateless.TableRowDetectionResponse{ActiveRowDetectionRequestID: m.RequestID}, nil
}

func (m *mockClient) GetTableRowDetectionStatus(ctx context.Context, _, _ string) (*templateless.TableRowDetectionStatus, error) {
	m.statusCalls.Add(1)
	if m.StatusGate != nil {
		select {
		case <-m.StatusGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.StatusErr != nil {
		return nil, m.StatusErr
	}
	return m.StatusReply, nil
}

func (m *mockClient) CancelTableRowDetection(_ context.Context, _, _, requestID string) error {
	m.wait(m.CancelGate)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelledIDs = append(m.cancelledIDs, requestID)
	return m.CancelErr
}

func (m *mockClient) SavePageCorrections(_ context.Context, _, pageID string, _ templateless.PageCorrections) error {
	m.wait(m.SaveGate)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErrAt == pageID {
		return m.SaveErr
	}
	m.savedPages = append(m.savedPages, pageID)
	return nil
}

func (m *mockClient) wait(gate chan struct{}) {
	if gate == nil {
		return
	}
	if m.Entered != nil {
		select {
		case m.Entered <- struct{}{}:
		default:
		}
	}
	<-gate
}

func (m *mockClient) setRequestID(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestID = id
}

func (m *mockClient) setStatus(reply *templateless.TableRowDetectionStatus, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StatusReply = reply
	m.StatusErr = err
}

func strPtr(s string) *string { return &s }

func statusReply(status string, results []string, tableID string) *templateless.TableRowDetectionStatus {
	reply := &templateless.TableRowDetectionStatus{Status: strPtr(status), TableID: tableID}
	for _, r := range results {
		reply.DetectionResults = append(reply.DetectionResults, json.RawMessage(r))
	}
	return reply
}

var errBoom = errors.New("boom")

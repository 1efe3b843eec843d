package rowdetect

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackzampolin/docscan/internal/templateless"
)

// DetectionResult is one detected row geometry, passed through untouched.
type DetectionResult = json.RawMessage

// PollTarget identifies the page whose detection outcome is awaited.
type PollTarget struct {
	DocumentID     string `json:"document_id" yaml:"document_id"`
	DocumentPageID string `json:"document_page_id" yaml:"document_page_id"`
}

// RequestResult is returned by RequestDetection. Error is set and RequestID
// empty when the job could not be started.
type RequestResult struct {
	RequestID string `json:"request_id" yaml:"request_id"`
	Error     string `json:"error,omitempty" yaml:"error,omitempty"`
}

// SaveResult is returned by SaveCorrections.
type SaveResult struct {
	OK     bool     `json:"ok" yaml:"ok"`
	Errors []string `json:"errors,omitempty" yaml:"errors,omitempty"`
	Saved  int      `json:"saved" yaml:"saved"`
}

// DetectionClient talks to the backend detection job API.
type DetectionClient interface {
	RequestTableRowDetection(ctx context.Context, documentID, documentPageID string, payload templateless.TableRowDetectionPayload) (*templateless.TableRowDetectionResponse, error)
	GetTableRowDetectionStatus(ctx context.Context, documentID, documentPageID string) (*templateless.TableRowDetectionStatus, error)
	CancelTableRowDetection(ctx context.Context, documentID, documentPageID, requestID string) error
}

// CorrectionSaver persists per-page corrections.
type CorrectionSaver interface {
	SavePageCorrections(ctx context.Context, documentID, documentPageID string, corrections templateless.PageCorrections) error
}

// RowIDs assigns row_0001, row_0002, ... to rows in input order.
func RowIDs(rows []templateless.BoundingBox) []templateless.BoundingBoxWithID {
	out := make([]templateless.BoundingBoxWithID, len(rows))
	for i, r := range rows {
		out[i] = templateless.BoundingBoxWithID{
			BoundingBox: r,
			BoxID:       fmt.Sprintf("row_%04d", i+1),
		}
	}
	return out
}

package templateless

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// BoundingBox is a rectangle in normalized page coordinates (0-1).
type BoundingBox struct {
	XMin float64 `json:"xmin" yaml:"xmin"`
	YMin float64 `json:"ymin" yaml:"ymin"`
	XMax float64 `json:"xmax" yaml:"xmax"`
	YMax float64 `json:"ymax" yaml:"ymax"`
}

// BoundingBoxWithID is a BoundingBox carrying a box identifier.
type BoundingBoxWithID struct {
	BoundingBox
	BoxID string `json:"boxId" yaml:"boxId"`
}

// TableRowDetectionPayload is the body of a row detection request.
type TableRowDetectionPayload struct {
	Table   BoundingBox         `json:"table"`
	Rows    []BoundingBoxWithID `json:"rows"`
	TableID string              `json:"tableId"`
}

// TableRowDetectionResponse is returned when a detection job is accepted.
type TableRowDetectionResponse struct {
	ActiveRowDetectionRequestID string `json:"activeRowDetectionRequestId"`
}

// TableRowDetectionStatus is the backend's view of the latest detection job
// on a page. Status is nil when the backend reports null.
type TableRowDetectionStatus struct {
	DetectionResults []json.RawMessage `json:"detectionResults,omitempty"`
	ErrorMessage     string            `json:"errorMessage,omitempty"`
	Status           *string           `json:"status"`
	TableID          string            `json:"tableId,omitempty"`
}

func pagePath(documentID, documentPageID string) string {
	return fmt.Sprintf("/documents/%s/pages/%s", url.PathEscape(documentID), url.PathEscape(documentPageID))
}

// RequestTableRowDetection starts a row detection job for a table region.
func (c *Client) RequestTableRowDetection(ctx context.Context, documentID, documentPageID string, payload TableRowDetectionPayload) (*TableRowDetectionResponse, error) {
	var resp TableRowDetectionResponse
	err := c.do(ctx, call{
		method: http.MethodPatch,
		path:   pagePath(documentID, documentPageID) + "/detectTableRows",
		body:   payload,
		entity: EntityDocument,
		id:     documentID,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetTableRowDetectionStatus returns the status of the page's detection job.
func (c *Client) GetTableRowDetectionStatus(ctx context.Context, documentID, documentPageID string) (*TableRowDetectionStatus, error) {
	var resp TableRowDetectionStatus
	err := c.do(ctx, call{
		method: http.MethodGet,
		path:   pagePath(documentID, documentPageID) + "/tableRowDetectionRequestStatus",
		entity: EntityDocument,
		id:     documentID,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// CancelTableRowDetection asks the backend to cancel a detection job.
// A job that already finished yields a *ConflictError whose
// AlreadyCancelled reports true.
func (c *Client) CancelTableRowDetection(ctx context.Context, documentID, documentPageID, requestID string) error {
	return c.do(ctx, call{
		method: http.MethodPatch,
		path:   pagePath(documentID, documentPageID) + "/cancelTableRowDetectionRequest/" + url.PathEscape(requestID),
		entity: EntityDocument,
		id:     documentID,
	}, nil)
}

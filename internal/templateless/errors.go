package templateless

import (
	"errors"
	"fmt"
	"net/http"
)

// DetectionAlreadyCompleted is the backend message sent with a 409 when a
// row detection request can no longer be cancelled.
const DetectionAlreadyCompleted = "detectionAlreadyCompleted"

// Entity names the kind of resource a request targeted, used for 404 mapping.
type Entity string

const (
	EntityDefinition   Entity = "definition"
	EntityDocument     Entity = "document"
	EntityOrganization Entity = "organization"
	EntityPrompt       Entity = "prompt"
	EntityUser         Entity = "user"
	EntityUnknown      Entity = "unknown"
)

// ErrForbidden is returned for 403 responses.
var ErrForbidden = errors.New("forbidden")

// APIError is a non-2xx response that has no more specific mapping.
type APIError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Status, e.Message)
	}
	return e.Status
}

// NotFoundError is returned for 404 responses.
type NotFoundError struct {
	Entity Entity
	ID     string
	Status string
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s %s not found: %s", e.Entity, e.ID, e.Status)
	}
	return fmt.Sprintf("%s not found: %s", e.Entity, e.Status)
}

// ConflictError is returned for 409 responses.
type ConflictError struct {
	Status  string
	Message string
}

func (e *ConflictError) Error() string {
	return e.Status
}

// AlreadyCancelled reports whether the conflict means the row detection
// request was already cancelled or has completed.
func (e *ConflictError) AlreadyCancelled() bool {
	return e.Message == DetectionAlreadyCompleted
}

// InternalServerError is returned for 500 and 502 responses.
type InternalServerError struct {
	Status string
}

func (e *InternalServerError) Error() string {
	return e.Status
}

// IsAlreadyCancelled reports whether err is a conflict flagged as an already
// cancelled or completed detection.
func IsAlreadyCancelled(err error) bool {
	var conflict *ConflictError
	return errors.As(err, &conflict) && conflict.AlreadyCancelled()
}

// statusError maps a failed response to a typed error. Returns nil for 2xx.
func statusError(resp *http.Response, entity Entity, id, message string) error {
	if resp.StatusCode < 400 {
		return nil
	}

	status := fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	switch resp.StatusCode {
	case http.StatusNotFound:
		if entity == "" {
			entity = EntityUnknown
		}
		return &NotFoundError{Entity: entity, ID: id, Status: status}
	case http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrForbidden, status)
	case http.StatusConflict:
		return &ConflictError{Status: status, Message: message}
	case http.StatusInternalServerError, http.StatusBadGateway:
		return &InternalServerError{Status: status}
	default:
		return &APIError{StatusCode: resp.StatusCode, Status: status, Message: message}
	}
}

// ExtractErrorMessage returns a user-facing message for err.
func ExtractErrorMessage(err error) string {
	if err == nil || err.Error() == "" {
		return "An unknown error occurred."
	}
	return err.Error()
}

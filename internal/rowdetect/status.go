package rowdetect

// StatusKind classifies a row detection status.
type StatusKind int

const (
	// StatusNone means no status has been observed (null).
	StatusNone StatusKind = iota
	StatusPending
	StatusDone
	StatusCancelled
	StatusError
	// StatusUnknown is any value the backend sends that is not recognized.
	// It is handled like StatusError.
	StatusUnknown
)

// Wire values of the recognized statuses.
const (
	rawPending   = "pending"
	rawDone      = "done"
	rawCancelled = "cancelled"
	rawError     = "error"
)

// Status is the state of a detection request. Raw keeps the backend's
// literal value for StatusUnknown.
type Status struct {
	Kind StatusKind
	Raw  string
}

var (
	None      = Status{Kind: StatusNone}
	Pending   = Status{Kind: StatusPending, Raw: rawPending}
	Done      = Status{Kind: StatusDone, Raw: rawDone}
	Cancelled = Status{Kind: StatusCancelled, Raw: rawCancelled}
	Errored   = Status{Kind: StatusError, Raw: rawError}
)

// ParseStatus maps a backend status value. nil is StatusNone.
func ParseStatus(raw *string) Status {
	if raw == nil {
		return None
	}
	switch *raw {
	case rawPending:
		return Pending
	case rawDone:
		return Done
	case rawCancelled:
		return Cancelled
	case rawError:
		return Errored
	default:
		return Status{Kind: StatusUnknown, Raw: *raw}
	}
}

// IsTerminal reports whether the status ends a detection job.
func (s Status) IsTerminal() bool {
	switch s.Kind {
	case StatusDone, StatusCancelled, StatusError, StatusUnknown:
		return true
	}
	return false
}

// String returns the wire value, or "null" for StatusNone.
func (s Status) String() string {
	if s.Kind == StatusNone {
		return "null"
	}
	return s.Raw
}

// MarshalText renders the status for JSON and YAML output.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

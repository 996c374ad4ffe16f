package radio

import (
	"github.com/pkg/errors"
)

// ErrorKind tells the three failure outcomes of a lookup apart.
type ErrorKind int

const (
	// KindInvalidURL means no status endpoint or mount point could be derived.
	KindInvalidURL ErrorKind = iota + 1
	// KindConnect means the status endpoint could not be reached.
	KindConnect
	// KindParse means the endpoint answered with something that is not a
	// status document.
	KindParse
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidURL:
		return "invalid_url"
	case KindConnect:
		return "connect"
	case KindParse:
		return "parse"
	}
	return "unknown"
}

// Sentinels for errors.Is.
var (
	ErrInvalidURL = errors.New("invalid stream url")
	ErrConnect    = errors.New("could not connect to status endpoint")
	ErrParse      = errors.New("could not parse status document")
)

// StatusError is returned by every resolver operation that fails. Its Error
// text is the operator-facing sentence shown in chat.
type StatusError struct {
	Kind ErrorKind
	// Endpoint is the status URL for Connect and Parse, the offending input
	// for InvalidURL.
	Endpoint string
	Err      error
}

func (e *StatusError) Error() string {
	switch e.Kind {
	case KindConnect:
		return "Could not connect to: " + e.Endpoint
	case KindParse:
		return "Was unable to get JSON data from: " + e.Endpoint
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return msgInvalidStatusURL
}

func (e *StatusError) Unwrap() error { return e.Err }

// Is matches the sentinel belonging to the error's kind.
func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrInvalidURL:
		return e.Kind == KindInvalidURL
	case ErrConnect:
		return e.Kind == KindConnect
	case ErrParse:
		return e.Kind == KindParse
	}
	return false
}

// KindOf returns the kind of a resolver error, or 0 for nil and foreign errors.
func KindOf(err error) ErrorKind {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Kind
	}
	return 0
}

func invalidURL(input, msg string) error {
	return &StatusError{Kind: KindInvalidURL, Endpoint: input, Err: errors.New(msg)}
}

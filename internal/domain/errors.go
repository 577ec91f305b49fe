package domain

import "errors"

// RetriableError defines an interface for errors that can be retried
type RetriableError interface {
	error
	IsRetriable() bool
}

// IsRetriable checks if an error is retriable
func IsRetriable(err error) bool {
	var re RetriableError
	if errors.As(err, &re) {
		return re.IsRetriable()
	}
	return false
}

// NetworkError represents a network-related error that may be retriable
type NetworkError struct {
	Op        string // Operation that failed (e.g., "send", "fetch")
	Err       error  // Underlying error
	Retriable bool   // Whether this error is retriable
}

func (e *NetworkError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *NetworkError) IsRetriable() bool {
	return e.Retriable
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// NewNetworkError creates a new retriable network error
func NewNetworkError(op string, err error) *NetworkError {
	return &NetworkError{Op: op, Err: err, Retriable: true}
}

// NewFatalNetworkError creates a non-retriable network error
func NewFatalNetworkError(op string, err error) *NetworkError {
	return &NetworkError{Op: op, Err: err, Retriable: false}
}

// ConfigError represents a configuration error (never retriable)
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return "config error [" + e.Field + "]: " + e.Err.Error()
}

func (e *ConfigError) IsRetriable() bool {
	return false
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// QuoteErrorKind classifies quote fetch failures.
type QuoteErrorKind int

const (
	QuoteThrottled QuoteErrorKind = iota + 1
	QuoteUpstream
	QuoteNoData
)

func (k QuoteErrorKind) String() string {
	switch k {
	case QuoteThrottled:
		return "throttled"
	case QuoteUpstream:
		return "upstream_error"
	case QuoteNoData:
		return "no_data"
	default:
		return "unknown"
	}
}

// QuoteError is returned by the quote provider and the quote service.
// Only throttling is retriable; every other kind surfaces immediately.
type QuoteError struct {
	Kind QuoteErrorKind
	Err  error
}

func (e *QuoteError) Error() string {
	if e.Err == nil {
		return "quote " + e.Kind.String()
	}
	return "quote " + e.Kind.String() + ": " + e.Err.Error()
}

func (e *QuoteError) IsRetriable() bool {
	return e.Kind == QuoteThrottled
}

func (e *QuoteError) Unwrap() error {
	return e.Err
}

// Is matches the kind sentinels, so errors.Is(err, ErrThrottled) works on wrapped values.
func (e *QuoteError) Is(target error) bool {
	t, ok := target.(*QuoteError)
	return ok && t.Err == nil && t.Kind == e.Kind
}

// NewQuoteError wraps err with a failure kind.
func NewQuoteError(kind QuoteErrorKind, err error) *QuoteError {
	return &QuoteError{Kind: kind, Err: err}
}

var (
	// ErrThrottled matches any throttling QuoteError.
	ErrThrottled = &QuoteError{Kind: QuoteThrottled}

	// ErrUpstream matches non-throttling provider failures (network, status, malformed body).
	ErrUpstream = &QuoteError{Kind: QuoteUpstream}

	// ErrNoData matches an empty provider response. It is an outcome, not a fault.
	ErrNoData = &QuoteError{Kind: QuoteNoData}

	// ErrSendFailed is returned when the messaging channel rejects a message
	ErrSendFailed = errors.New("send failed")

	// ErrConfigNotFound is returned when configuration file is missing
	ErrConfigNotFound = errors.New("configuration not found")
)

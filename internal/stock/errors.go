package stock

import (
	"errors"
	"fmt"
	"net"
	"syscall"

	"github.com/rickgao/geohash/internal/api"
	"github.com/rickgao/geohash/internal/model"
)

var (
	ErrNotYetPosted = errors.New("value not yet posted")
	ErrNoConnection = errors.New("no connection")
	ErrNetwork      = errors.New("network error")

	// ErrConflictingValue is returned by Cache.Put when a different value is
	// already cached for the date.
	ErrConflictingValue = errors.New("conflicting value for date")

	// ErrServiceStopped is returned by Submit after Stop.
	ErrServiceStopped = errors.New("stock service stopped")
)

// FetchKind classifies a fetch failure.
type FetchKind int

const (
	KindNotYetPosted FetchKind = iota + 1
	KindNoConnection
	KindNetwork
)

func (k FetchKind) String() string {
	switch k {
	case KindNotYetPosted:
		return "not_yet_posted"
	case KindNoConnection:
		return "no_connection"
	case KindNetwork:
		return "network_error"
	default:
		return "unknown"
	}
}

// ResponseCode maps the kind onto the wire response code.
func (k FetchKind) ResponseCode() model.ResponseCode {
	switch k {
	case KindNotYetPosted:
		return model.ResponseNotYetPosted
	case KindNoConnection:
		return model.ResponseNoConnection
	default:
		return model.ResponseNetworkError
	}
}

func (k FetchKind) sentinel() error {
	switch k {
	case KindNotYetPosted:
		return ErrNotYetPosted
	case KindNoConnection:
		return ErrNoConnection
	default:
		return ErrNetwork
	}
}

// FetchError is a classified fetch failure.
type FetchError struct {
	Kind FetchKind
	Date model.Date
	Err  error
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("fetch %s: %s", e.Date, e.Kind)
	}
	return fmt.Sprintf("fetch %s: %s: %v", e.Date, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Is matches the sentinel for the error's kind.
func (e *FetchError) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// CodeOf returns the response code for err. A nil error is ResponseOK and an
// unclassified error is a network error.
func CodeOf(err error) model.ResponseCode {
	if err == nil {
		return model.ResponseOK
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind.ResponseCode()
	}
	return model.ResponseNetworkError
}

// classify wraps a source error into a FetchError.
func classify(date model.Date, err error) *FetchError {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe
	}
	return &FetchError{Kind: kindOf(err), Date: date, Err: err}
}

func kindOf(err error) FetchKind {
	if errors.Is(err, api.ErrNotAvailable) {
		return KindNotYetPosted
	}
	if isNoConnection(err) {
		return KindNoConnection
	}
	return KindNetwork
}

// isNoConnection reports failures to reach the source at all: name
// resolution, dial errors and unreachable networks.
func isNoConnection(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	if errors.Is(err, syscall.ENETUNREACH) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	return false
}

package search

import "fmt"

// Kind classifies a failed search.
type Kind int

const (
	KindEmptyQuery Kind = iota + 1
	KindBadRequest
	KindNotFound
	KindServerError
	KindNetworkError
	KindUnexpected
)

func (k Kind) String() string {
	switch k {
	case KindEmptyQuery:
		return "EMPTY_QUERY"
	case KindBadRequest:
		return "BAD_REQUEST"
	case KindNotFound:
		return "NOT_FOUND"
	case KindServerError:
		return "SERVER_ERROR"
	case KindNetworkError:
		return "NETWORK_ERROR"
	case KindUnexpected:
		return "UNEXPECTED_ERROR"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

var messages = map[Kind]string{
	KindEmptyQuery:   "Please enter a search query.",
	KindBadRequest:   "Bad Request. Please check your input.",
	KindNotFound:     "No products found. Please try a different search.",
	KindServerError:  "Internal Server Error. Please try again later.",
	KindNetworkError: "Network error. Please check your connection.",
	KindUnexpected:   "An unexpected error occurred.",
}

// Error is a classified search failure. Its message is meant for the user.
// Status is the HTTP status when a response was received.
type Error struct {
	Kind   Kind
	Status int
}

var (
	ErrEmptyQuery   = &Error{Kind: KindEmptyQuery}
	ErrBadRequest   = &Error{Kind: KindBadRequest}
	ErrNotFound     = &Error{Kind: KindNotFound}
	ErrServerError  = &Error{Kind: KindServerError}
	ErrNetworkError = &Error{Kind: KindNetworkError}
	ErrUnexpected   = &Error{Kind: KindUnexpected}
)

func (e *Error) Error() string {
	msg := messages[e.Kind]
	if e.Kind == KindUnexpected && e.Status != 0 {
		return fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	return msg
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrNotFound)
// holds whatever the status.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// errorForStatus classifies a non-2xx response.
func errorForStatus(status int) *Error {
	switch status {
	case 400:
		return &Error{Kind: KindBadRequest, Status: status}
	case 404:
		return &Error{Kind: KindNotFound, Status: status}
	case 500:
		return &Error{Kind: KindServerError, Status: status}
	default:
		return &Error{Kind: KindUnexpected, Status: status}
	}
}

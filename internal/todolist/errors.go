package todolist

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/nhle/todo-client/internal/apiclient"
)

// ErrorKind classifies why loading the collection failed.
type ErrorKind int

const (
	KindGeneric ErrorKind = iota
	KindUnauthenticated
	KindForbidden
	KindNetwork
)

func (k ErrorKind) String() string {
	switch k {
	case KindUnauthenticated:
		return "unauthenticated"
	case KindForbidden:
		return "forbidden"
	case KindNetwork:
		return "network"
	default:
		return "generic"
	}
}

// LoadError is the user-visible result of a failed refresh.
type LoadError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *LoadError) Error() string { return e.Message }

func (e *LoadError) Unwrap() error { return e.Err }

// classify turns a fetch error into a LoadError with the message shown
// above the list.
func classify(err error, baseURL string) *LoadError {
	switch {
	case apiclient.StatusCode(err) == http.StatusUnauthorized:
		return &LoadError{
			Kind:    KindUnauthenticated,
			Message: "Your session expired or you are not logged in.",
			Err:     err,
		}
	case apiclient.StatusCode(err) == http.StatusForbidden:
		return &LoadError{
			Kind:    KindForbidden,
			Message: "Access denied (403). Check your account permissions.",
			Err:     err,
		}
	case apiclient.IsNetworkError(err):
		msg := fmt.Sprintf("Network Error: could not reach the backend. Is %s running?", baseURL)
		if apiclient.IsTimeout(err) {
			msg = fmt.Sprintf("Network Error: the backend at %s did not answer in time.", baseURL)
		}
		return &LoadError{Kind: KindNetwork, Message: msg, Err: err}
	}

	msg := fmt.Sprintf("Failed to load todos. Make sure the backend is running on %s", baseURL)
	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) {
		msg = "Failed to load todos: " + apiErr.Message
	}
	return &LoadError{Kind: KindGeneric, Message: msg, Err: err}
}

// Describe renders a mutation error for a toast. Network failures read
// differently from server failures.
func Describe(err error, baseURL string) string {
	var apiErr *apiclient.APIError
	switch {
	case apiclient.IsNetworkError(err):
		return fmt.Sprintf("could not reach the backend at %s", baseURL)
	case errors.As(err, &apiErr):
		return "request failed: " + apiErr.Message
	case err != nil:
		return err.Error()
	}
	return ""
}

package hackmd

import (
	"errors"
	"fmt"
)

// Sentinel errors for the fatal failure classes. Per-document download
// failures are absorbed by the content fetcher and never surface here.
var (
	// ErrMissingArgument marks required configuration that was not
	// supplied. It is reported before any network or prompt activity.
	ErrMissingArgument = errors.New("missing required argument")

	// ErrTokenNotFound means the landing page carried no CSRF marker.
	// That indicates a page-format change, not a transient condition.
	ErrTokenNotFound = errors.New("no CSRF token found")

	// ErrLoginFailed means the service rejected the credentials.
	ErrLoginFailed = errors.New("login failure")

	// ErrListingFailed means the team overview request failed.
	ErrListingFailed = errors.New("listing failure")
)

// MissingArgument wraps ErrMissingArgument with the option name.
func MissingArgument(arg string) error {
	return fmt.Errorf("%w: --%s", ErrMissingArgument, arg)
}

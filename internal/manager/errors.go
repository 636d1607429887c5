package manager

import (
	"context"
	"errors"
	"net"

	"github.com/rmehra06/galleryctl/internal/api"
)

var (
	// ErrCapacityExceeded means the upload would push the set past the
	// 20-image cap. Checked before any request is issued.
	ErrCapacityExceeded = errors.New("image limit reached (20 per project)")

	// ErrNotFound means the identity does not address any image in the set.
	ErrNotFound = errors.New("image not found in set")

	// ErrBadOrder means a reorder specification is not a permutation of the
	// current set.
	ErrBadOrder = errors.New("reorder must include every current image exactly once")

	// ErrBusy means another mutation for this project is still in flight.
	ErrBusy = errors.New("another operation is in progress for this project")

	// ErrClosed means the manager was torn down.
	ErrClosed = errors.New("image set manager is closed")
)

// DisplayMessage reduces any operation error to a single human-readable
// string for the view layer. Server-provided messages win; transport
// failures collapse to a generic retry hint.
func DisplayMessage(err error) string {
	if err == nil {
		return ""
	}

	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}

	switch {
	case errors.Is(err, ErrCapacityExceeded),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrBadOrder),
		errors.Is(err, ErrBusy),
		errors.Is(err, ErrClosed),
		errors.Is(err, api.ErrCredentialExpired):
		return err.Error()
	}

	var netErr net.Error
	if (errors.As(err, &netErr) && netErr.Timeout()) || errors.Is(err, context.DeadlineExceeded) {
		return "request timed out, please try again"
	}

	return "network error, please try again"
}

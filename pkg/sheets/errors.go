package sheets

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
)

var (
	// ErrUnauthenticated marks failures that a fresh token may fix.
	ErrUnauthenticated = errors.New("sheets: unauthenticated")
	// ErrUnavailable marks transient API failures worth retrying.
	ErrUnavailable = errors.New("sheets: unavailable")

	errClientNotInitialized = errors.New("sheets client not initialized")
	errSpreadsheetRequired  = errors.New("spreadsheet id is required")
)

// IsAuthError reports whether err was classified as an authentication failure.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrUnauthenticated)
}

// IsTransient reports whether err was classified as a retryable API failure.
func IsTransient(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// Classify tags err with ErrUnauthenticated or ErrUnavailable when the underlying
// API or transport error warrants it. Other errors are returned unchanged.
func Classify(err error) error {
	if err == nil || IsAuthError(err) || IsTransient(err) {
		return err
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr != nil {
		switch {
		case apiErr.Code == http.StatusForbidden && isRateLimited(apiErr):
			return fmt.Errorf("%w: %w", ErrUnavailable, err)
		case apiErr.Code == http.StatusUnauthorized, apiErr.Code == http.StatusForbidden:
			return fmt.Errorf("%w: %w", ErrUnauthenticated, err)
		case apiErr.Code == http.StatusRequestTimeout,
			apiErr.Code == http.StatusTooManyRequests,
			apiErr.Code >= http.StatusInternalServerError:
			return fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		return err
	}

	var tokenErr *oauth2.RetrieveError
	if errors.As(err, &tokenErr) {
		return fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	return err
}

// isRateLimited reports the 403 reasons Google uses for quota exhaustion.
func isRateLimited(apiErr *googleapi.Error) bool {
	for _, item := range apiErr.Errors {
		switch item.Reason {
		case "rateLimitExceeded", "userRateLimitExceeded":
			return true
		}
	}
	return false
}

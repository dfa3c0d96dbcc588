package provider

import (
	"errors"
	"fmt"
	"io"
	"net/http"
)

// Sentinel errors.
var (
	ErrRateLimited         = errors.New("provider: rate limited by vendor")
	ErrAuthFailed          = errors.New("provider: authentication failed")
	ErrInvalidRequest      = errors.New("provider: invalid request")
	ErrProviderUnavailable = errors.New("provider: vendor unavailable")
)

// mapHTTPError converts a non-2xx vendor response into a sentinel error,
// consuming and closing the body. Returns nil for 2xx.
func mapHTTPError(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		return ErrRateLimited
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrAuthFailed
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", ErrInvalidRequest, string(body))
	default:
		return ErrProviderUnavailable
	}
}

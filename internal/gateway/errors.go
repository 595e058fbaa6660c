package gateway

import (
	"errors"
	"fmt"
)

// Gateway errors. Resolution errors (unknown provider, missing credential)
// come from the credentials package and pass through unchanged.
var (
	// ErrEmptyPrompt indicates the request carried no prompt text.
	ErrEmptyPrompt = errors.New("prompt is empty")
	// ErrNoProviderAvailable indicates auto-selection found zero usable providers.
	ErrNoProviderAvailable = errors.New("no provider available")
	// ErrTimeout indicates the outbound call did not complete within the bound.
	ErrTimeout = errors.New("upstream timeout")
)

// maxErrorBodyLen bounds upstream error bodies surfaced to callers.
const maxErrorBodyLen = 512

// UpstreamError reports a non-2xx response from an upstream provider.
type UpstreamError struct {
	Provider   string // Provider that produced the error.
	StatusCode int    // Upstream HTTP status, zero when unknown.
	Body       string // Truncated response body excerpt.
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("provider %s returned status %d: %s", e.Provider, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("provider %s error: %s", e.Provider, e.Body)
}

// truncateBody bounds an upstream body excerpt.
func truncateBody(body string) string {
	if len(body) > maxErrorBodyLen {
		return body[:maxErrorBodyLen]
	}
	return body
}

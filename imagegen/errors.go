package imagegen

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// Sentinel errors.
var (
	ErrEmptyPrompt          = errors.New("imagegen: prompt cannot be empty")
	ErrNoImage              = errors.New("imagegen: provider returned no image")
	ErrUnknownSelector      = errors.New("imagegen: unknown provider selector")
	ErrProviderUnconfigured = errors.New("imagegen: provider is not configured")
	ErrUndecodableImage     = errors.New("imagegen: image data could not be decoded")
	errResponseTooLarge     = errors.New("imagegen: response exceeds size limit")
)

var (
	rateLimitKeywords = []string{"rate limit", "rate_limit", "ratelimit", "too many requests", "quota", "resource_exhausted"}
	rejectionKeywords = []string{"safety", "content_policy", "blocked", "rejected"}
)

// FailureClass decides how the retry layer treats a provider failure.
type FailureClass int

const (
	// ClassTransport covers network errors, timeouts, 5xx, and anything
	// unrecognized.
	ClassTransport FailureClass = iota
	// ClassRateLimited is the only retryable class.
	ClassRateLimited
	// ClassRejected covers non-429 4xx responses and content refusals.
	ClassRejected
	// ClassEmpty is a successful call that produced no usable image.
	ClassEmpty
)

// String returns the snake_case label stored in history.
func (c FailureClass) String() string {
	switch c {
	case ClassRateLimited:
		return "rate_limited"
	case ClassRejected:
		return "rejected"
	case ClassEmpty:
		return "empty"
	default:
		return "transport"
	}
}

// ProviderError is the error type returned by every Provider.
type ProviderError struct {
	Provider   string
	Class      FailureClass
	StatusCode int // 0 when no HTTP response was received
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("imagegen: %s failed (%s, HTTP %d): %v", e.Provider, e.Class, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("imagegen: %s failed (%s): %v", e.Provider, e.Class, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// HTTPStatusError is a non-2xx response from a plain HTTP endpoint.
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// wrapError converts a raw failure into a classified *ProviderError.
// Errors that already are ProviderErrors pass through.
func wrapError(provider string, err error) *ProviderError {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe
	}
	return &ProviderError{
		Provider:   provider,
		Class:      Classify(err),
		StatusCode: StatusCode(err),
		Err:        err,
	}
}

// emptyError reports a call that succeeded without a usable image.
func emptyError(provider string, err error) *ProviderError {
	if err == nil {
		err = ErrNoImage
	}
	return &ProviderError{Provider: provider, Class: ClassEmpty, Err: err}
}

// Classify maps an error to its FailureClass. The HTTP status decides
// first: 429 is rate limited and any other 4xx is rejected. Only errors
// without a status, or with a 5xx, fall through to the wording checks.
// Network and deadline errors are transport before any wording check,
// since request URLs can contain the keywords.
func Classify(err error) FailureClass {
	if err == nil {
		return ClassTransport
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Class
	}

	status := StatusCode(err)
	switch {
	case status == 429:
		return ClassRateLimited
	case status >= 400 && status < 500:
		return ClassRejected
	case status == 0 && isNetworkError(err):
		return ClassTransport
	}

	msg := strings.ToLower(err.Error())
	if containsAny(msg, rateLimitKeywords) {
		return ClassRateLimited
	}
	if containsAny(msg, rejectionKeywords) {
		return ClassRejected
	}
	return ClassTransport
}

// IsRetryable reports whether err is worth another attempt.
func IsRetryable(err error) bool {
	return err != nil && Classify(err) == ClassRateLimited
}

// StatusCode extracts the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var pe *ProviderError
	if errors.As(err, &pe) && pe.StatusCode != 0 {
		return pe.StatusCode
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	var httpErr *HTTPStatusError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	return 0
}

// isNetworkError reports timeouts and connection failures.
func isNetworkError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

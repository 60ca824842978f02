package metrics

import "time"

// WebDAVMetrics provides observability for WebDAV request handling.
//
// The adapter falls back to NewNoopWebDAVMetrics when none is supplied.
type WebDAVMetrics interface {
	// RecordRequest records a completed request.
	//
	// Parameters:
	//   - method: HTTP method (e.g., "PROPFIND", "LOCK")
	//   - share: Share name the request targeted ("" if unresolved)
	//   - status: HTTP status code written
	//   - duration: Time taken to process the request
	RecordRequest(method, share string, status int, duration time.Duration)

	// RecordRequestStart increments the in-flight gauge for method.
	RecordRequestStart(method string)

	// RecordRequestEnd decrements the in-flight gauge for method.
	RecordRequestEnd(method string)

	// RecordBytesTransferred records body bytes.
	//
	// Parameters:
	//   - direction: "read" (GET) or "write" (PUT)
	//   - bytes: Number of bytes transferred
	RecordBytesTransferred(direction string, bytes int64)

	// RecordRateLimited counts requests rejected by the rate limiter.
	RecordRateLimited()
}

type noopWebDAVMetrics struct{}

// NewNoopWebDAVMetrics returns a WebDAVMetrics that discards everything.
func NewNoopWebDAVMetrics() WebDAVMetrics {
	return noopWebDAVMetrics{}
}

func (noopWebDAVMetrics) RecordRequest(method, share string, status int, duration time.Duration) {}
func (noopWebDAVMetrics) RecordRequestStart(method string)                                       {}
func (noopWebDAVMetrics) RecordRequestEnd(method string)                                         {}
func (noopWebDAVMetrics) RecordBytesTransferred(direction string, bytes int64)                   {}
func (noopWebDAVMetrics) RecordRateLimited()                                                     {}

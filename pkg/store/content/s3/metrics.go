package s3

import (
	"io"
	"time"
)

// S3Metrics provides observability for S3 operations. It is optional; a nil
// S3ContentStoreConfig.Metrics disables collection.
type S3Metrics interface {
	// ObserveOperation records an S3 call with its duration and outcome.
	ObserveOperation(operation string, duration time.Duration, err error)

	// RecordBytes records bytes transferred ("read" or "write").
	RecordBytes(operation string, bytes int64)
}

type noopMetrics struct{}

func (noopMetrics) ObserveOperation(operation string, duration time.Duration, err error) {}
func (noopMetrics) RecordBytes(operation string, bytes int64)                            {}

// metricsReadCloser counts the bytes read from an object body and reports
// them on Close.
type metricsReadCloser struct {
	io.ReadCloser
	metrics   S3Metrics
	bytesRead int64
}

func (m *metricsReadCloser) Read(p []byte) (int, error) {
	n, err := m.ReadCloser.Read(p)
	m.bytesRead += int64(n)
	return n, err
}

func (m *metricsReadCloser) Close() error {
	m.metrics.RecordBytes("read", m.bytesRead)
	return m.ReadCloser.Close()
}

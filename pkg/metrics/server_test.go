package metrics

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerDefaults(t *testing.T) {
	s := NewServer(0, 0)
	assert.Equal(t, defaultPort, s.Port())
	assert.Equal(t, defaultShutdownTimeout, s.shutdownTimeout)

	s = NewServer(19090, time.Second)
	assert.Equal(t, 19090, s.Port())
	assert.Equal(t, time.Second, s.shutdownTimeout)
}

func TestServerWithoutRegistry(t *testing.T) {
	require.False(t, IsEnabled())
	s := NewServer(19090, 0)

	rec := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServerStartAndCancel(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := listener.Addr().(*net.TCPAddr).Port
	require.NoError(t, listener.Close())

	s := NewServer(port, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("metrics server did not stop")
	}
}

func TestServerStartPortInUse(t *testing.T) {
	listener, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	defer listener.Close()

	s := NewServer(listener.Addr().(*net.TCPAddr).Port, 0)
	assert.Error(t, s.Start(context.Background()))
}

func TestServerStopIsIdempotent(t *testing.T) {
	s := NewServer(19091, 0)
	assert.NoError(t, s.Stop(context.Background()))
	assert.NoError(t, s.Stop(context.Background()))
}

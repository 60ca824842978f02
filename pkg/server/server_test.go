package server

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/marmos91/dittodav/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAdapter blocks in Serve until its context ends, or fails at once when
// failWith is set.
type fakeAdapter struct {
	protocol string
	port     int
	failWith error

	registry *registry.Registry
	stopped  atomic.Int32
}

func (f *fakeAdapter) Serve(ctx context.Context) error {
	if f.failWith != nil {
		return f.failWith
	}
	<-ctx.Done()
	return nil
}

func (f *fakeAdapter) SetRegistry(reg *registry.Registry) { f.registry = reg }
func (f *fakeAdapter) Stop(context.Context) error {
	f.stopped.Add(1)
	return nil
}
func (f *fakeAdapter) Protocol() string { return f.protocol }
func (f *fakeAdapter) Port() int        { return f.port }

func TestAddAdapter(t *testing.T) {
	reg := registry.NewRegistry(nil)
	s := New(reg, nil)

	first := &fakeAdapter{protocol: "WebDAV", port: 8080}
	require.NoError(t, s.AddAdapter(first))
	assert.Same(t, reg, first.registry)

	assert.Error(t, s.AddAdapter(&fakeAdapter{protocol: "WebDAV", port: 8081}))
	assert.Error(t, s.AddAdapter(&fakeAdapter{protocol: "Other", port: 8080}))
	assert.Len(t, s.Adapters(), 1)

	assert.Panics(t, func() { _ = s.AddAdapter(nil) })
	assert.Panics(t, func() { New(nil, nil) })
}

func TestServeNoAdapters(t *testing.T) {
	s := New(registry.NewRegistry(nil), nil)
	assert.Error(t, s.Serve(context.Background()))
}

func TestServeCancellation(t *testing.T) {
	s := New(registry.NewRegistry(nil), nil)
	a := &fakeAdapter{protocol: "WebDAV", port: 8080}
	require.NoError(t, s.AddAdapter(a))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return")
	}
	assert.Equal(t, int32(1), a.stopped.Load())
}

func TestServeAdapterFailureStopsOthers(t *testing.T) {
	s := New(registry.NewRegistry(nil), nil)
	healthy := &fakeAdapter{protocol: "WebDAV", port: 8080}
	broken := &fakeAdapter{protocol: "Broken", port: 8081, failWith: errors.New("bind failed")}
	require.NoError(t, s.AddAdapter(healthy))
	require.NoError(t, s.AddAdapter(broken))

	err := s.Serve(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bind failed")
	assert.Equal(t, int32(1), healthy.stopped.Load())

	assert.Panics(t, func() { _ = s.Serve(context.Background()) })
}

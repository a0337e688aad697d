package runctx_test

import (
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	natsserver "github.com/nats-io/nats-server/v2/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	micro "github.com/charbonats/nats-micro"
	"github.com/charbonats/nats-micro/runctx"
)

func runServer(t *testing.T) *server.Server {
	t.Helper()
	opts := natsserver.DefaultTestOptions
	opts.Port = -1
	return natsserver.RunServer(&opts)
}

func TestContextTeardownRunsInReverseOrder(t *testing.T) {
	c := runctx.New(nil)
	var order []int
	c.Enter(func() { order = append(order, 1) })
	c.Enter(func() { order = append(order, 2) })
	c.Enter(func() { order = append(order, 3) })
	c.Close()
	assert.Equal(t, []int{3, 2, 1}, order)
}

func TestContextConnectAndAddServiceTeardown(t *testing.T) {
	srv := runServer(t)
	defer srv.Shutdown()

	c := runctx.New(nil)

	nc, err := c.Connect(micro.ConnectConfig{URL: srv.ClientURL()})
	require.NoError(t, err)
	require.NotNil(t, nc)
	assert.True(t, nc.IsConnected())

	svc, err := c.AddService(micro.ServiceOptions{
		Config: micro.ServiceConfig{Name: "ctxsvc", Version: "0.1.0"},
	})
	require.NoError(t, err)
	assert.False(t, svc.Stopped())

	c.Close()
	assert.True(t, svc.Stopped())
	assert.True(t, nc.IsClosed())
}

func TestContextCancelIsIdempotentAndUnblocksWait(t *testing.T) {
	c := runctx.New(nil)
	done := make(chan struct{})
	go func() {
		c.Wait()
		close(done)
	}()

	c.Cancel()
	c.Cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait did not unblock after Cancel")
	}
	assert.True(t, c.Cancelled())
}

func TestContextWaitForReturnsOnCancelBeforeCompletion(t *testing.T) {
	c := runctx.New(nil)
	c.Cancel()

	called := false
	err := c.WaitFor(func() error {
		called = true
		<-time.After(time.Hour)
		return nil
	})
	require.NoError(t, err)
	assert.True(t, c.Cancelled())
	_ = called
}

func TestContextAsContextReportsCancellation(t *testing.T) {
	c := runctx.New(nil)
	stdCtx := c.AsContext()

	select {
	case <-stdCtx.Done():
		t.Fatal("context should not be done yet")
	default:
	}
	assert.NoError(t, stdCtx.Err())

	c.Cancel()

	select {
	case <-stdCtx.Done():
	default:
		t.Fatal("context should be done after Cancel")
	}
	assert.Error(t, stdCtx.Err())
}

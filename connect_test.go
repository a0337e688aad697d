package micro_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	micro "github.com/charbonats/nats-micro"
)

func TestConnectDialsServer(t *testing.T) {
	srv := RunServerOnPort(-1)
	defer srv.Shutdown()

	var gotErr *micro.NATSError
	nc, err := micro.Connect(micro.ConnectConfig{
		URL:          srv.ClientURL(),
		MaxReconnect: 1,
		ErrorHandler: func(e *micro.NATSError) { gotErr = e },
	})
	require.NoError(t, err)
	defer nc.Close()

	assert.True(t, nc.IsConnected())
	assert.Nil(t, gotErr)
}

func TestConnectDefaultsURL(t *testing.T) {
	srv := RunServerOnPort(4222)
	defer srv.Shutdown()

	nc, err := micro.Connect(micro.ConnectConfig{})
	require.NoError(t, err)
	defer nc.Close()

	assert.True(t, nc.IsConnected())
	time.Sleep(10 * time.Millisecond)
}

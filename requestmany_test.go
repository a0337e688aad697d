package micro_test

import (
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	micro "github.com/charbonats/nats-micro"
)

func TestRequestManyCollectsUntilMaxWait(t *testing.T) {
	_, clientConn, cleanup := connectPair(t)
	defer cleanup()

	sub, err := clientConn.Subscribe("fanout", func(msg *nats.Msg) {
		_ = msg.Respond([]byte("reply"))
	})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	replies, err := micro.RequestMany(clientConn, "fanout", nil, micro.RequestManyOpts{
		MaxWait: 200 * time.Millisecond,
	})
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Equal(t, "reply", string(replies[0].Data))
}

func TestRequestManyStopsAtMaxCount(t *testing.T) {
	_, clientConn, cleanup := connectPair(t)
	defer cleanup()

	for i := 0; i < 3; i++ {
		sub, err := clientConn.Subscribe("fanout2", func(msg *nats.Msg) {
			_ = msg.Respond([]byte("reply"))
		})
		require.NoError(t, err)
		defer sub.Unsubscribe()
	}

	replies, err := micro.RequestMany(clientConn, "fanout2", nil, micro.RequestManyOpts{
		MaxWait:  time.Second,
		MaxCount: 2,
	})
	require.NoError(t, err)
	assert.Len(t, replies, 2)
}

func TestRequestManyStopsOnSentinel(t *testing.T) {
	_, clientConn, cleanup := connectPair(t)
	defer cleanup()

	sub, err := clientConn.Subscribe("fanout3", func(msg *nats.Msg) {
		_ = msg.Respond([]byte("reply"))
		_ = msg.Respond(nil)
	})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	replies, err := micro.RequestMany(clientConn, "fanout3", nil, micro.RequestManyOpts{
		MaxWait:        time.Second,
		StopOnSentinel: true,
	})
	require.NoError(t, err)
	assert.Len(t, replies, 1)
}

func TestRequestManyIteratorNext(t *testing.T) {
	_, clientConn, cleanup := connectPair(t)
	defer cleanup()

	sub, err := clientConn.Subscribe("fanout4", func(msg *nats.Msg) {
		_ = msg.Respond([]byte("one"))
	})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	it, err := micro.NewRequestManyIterator(clientConn, "fanout4", nil, micro.RequestManyOpts{
		MaxWait: 200 * time.Millisecond,
	})
	require.NoError(t, err)
	defer it.Close()

	msg, ok := it.Next()
	require.True(t, ok)
	assert.Equal(t, "one", string(msg.Data))

	_, ok = it.Next()
	assert.False(t, ok)
}

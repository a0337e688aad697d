package micro_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	micro "github.com/charbonats/nats-micro"
)

func TestGroupNestedPrefixComposition(t *testing.T) {
	svcConn, clientConn, cleanup := connectPair(t)
	defer cleanup()

	svc, err := micro.AddService(micro.ServiceOptions{
		Conn:   svcConn,
		Config: micro.ServiceConfig{Name: "nested", Version: "0.1.0"},
	})
	require.NoError(t, err)
	defer svc.Stop()

	v1, err := svc.AddGroup("v1", "", 0, 0)
	require.NoError(t, err)
	accounts, err := v1.AddGroup("accounts", "", 0, 0)
	require.NoError(t, err)

	_, err = accounts.AddEndpoint(micro.EndpointOpts{
		Name: "get",
		Handler: func(req micro.Request) error {
			return req.Respond([]byte("account"), nil)
		},
	})
	require.NoError(t, err)

	resp, err := clientConn.Request("v1.accounts.get", nil, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "account", string(resp.Data))
}

func TestGroupInheritsQueueGroupDefault(t *testing.T) {
	svcConn, clientConn, cleanup := connectPair(t)
	defer cleanup()

	svc, err := micro.AddService(micro.ServiceOptions{
		Conn:   svcConn,
		Config: micro.ServiceConfig{Name: "qg", Version: "0.1.0", QueueGroup: "workers"},
	})
	require.NoError(t, err)
	defer svc.Stop()

	g, err := svc.AddGroup("v1", "", 0, 0)
	require.NoError(t, err)
	_, err = g.AddEndpoint(micro.EndpointOpts{
		Name:    "job",
		Handler: func(req micro.Request) error { return req.Respond(nil, nil) },
	})
	require.NoError(t, err)

	info := svc.Info()
	require.Len(t, info.Endpoints, 1)
	assert.Equal(t, "workers", info.Endpoints[0].QueueGroup)

	resp, err := clientConn.Request("v1.job", nil, time.Second)
	require.NoError(t, err)
	assert.Empty(t, resp.Data)
}

func TestAddGroupRejectsMultiTokenWildcard(t *testing.T) {
	svcConn, _, cleanup := connectPair(t)
	defer cleanup()

	svc, err := micro.AddService(micro.ServiceOptions{
		Conn:   svcConn,
		Config: micro.ServiceConfig{Name: "wildcard", Version: "0.1.0"},
	})
	require.NoError(t, err)
	defer svc.Stop()

	_, err = svc.AddGroup("a.>", "", 0, 0)
	assert.Error(t, err)

	v1, err := svc.AddGroup("v1", "", 0, 0)
	require.NoError(t, err)
	_, err = v1.AddGroup("b.>", "", 0, 0)
	assert.Error(t, err)
}

package micro_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	micro "github.com/charbonats/nats-micro"
)

func TestUUIDIDGeneratorProducesParsableUUID(t *testing.T) {
	id, err := micro.UUIDIDGenerator()
	require.NoError(t, err)
	_, err = uuid.Parse(id)
	assert.NoError(t, err)
}

func TestAddServiceWithUUIDIDGenerator(t *testing.T) {
	svcConn, _, cleanup := connectPair(t)
	defer cleanup()

	svc, err := micro.AddService(micro.ServiceOptions{
		Conn:        svcConn,
		Config:      micro.ServiceConfig{Name: "uuidsvc", Version: "0.1.0"},
		IDGenerator: micro.UUIDIDGenerator,
	})
	require.NoError(t, err)
	defer svc.Stop()

	_, err = uuid.Parse(svc.ID())
	assert.NoError(t, err)
}

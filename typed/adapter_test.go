package typed_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charbonats/nats-micro/typed"
)

type greeting struct {
	Message string `json:"message"`
}

func TestJSONAdapterRoundTrip(t *testing.T) {
	adapter := typed.JSONAdapter[greeting]{}
	data, err := adapter.Encode(greeting{Message: "hi"})
	require.NoError(t, err)

	decoded, err := adapter.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, greeting{Message: "hi"}, decoded)
	assert.Equal(t, typed.ContentTypeJSON, adapter.ContentType())
}

func TestJSONAdapterDecodeEmpty(t *testing.T) {
	adapter := typed.JSONAdapter[greeting]{}
	decoded, err := adapter.Decode(nil)
	require.NoError(t, err)
	assert.Equal(t, greeting{}, decoded)
}

func TestRawAdapterPassthrough(t *testing.T) {
	adapter := typed.RawAdapter{}
	data, err := adapter.Encode([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)

	decoded, err := adapter.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), decoded)
	assert.Equal(t, typed.ContentTypeOctetStream, adapter.ContentType())
}

func TestTextAdapterPassthrough(t *testing.T) {
	adapter := typed.TextAdapter{}
	data, err := adapter.Encode("hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	decoded, err := adapter.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, "hello", decoded)
}

func TestNoneAdapter(t *testing.T) {
	adapter := typed.NoneAdapter{}
	data, err := adapter.Encode(typed.None{})
	require.NoError(t, err)
	assert.Nil(t, data)

	decoded, err := adapter.Decode([]byte("ignored"))
	require.NoError(t, err)
	assert.Equal(t, typed.None{}, decoded)
}

package typed_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	micro "github.com/charbonats/nats-micro"
	"github.com/charbonats/nats-micro/typed"
)

type lookupParams struct {
	Zone string `param:"zone"`
}

type lookupRequest struct {
	Name string `json:"name"`
}

type lookupResponse struct {
	Address string `json:"address"`
}

type lookupError struct {
	Reason string `json:"reason"`
}

var errZoneNotFound = errors.New("zone not found")

func newLookupOperation(t *testing.T) *typed.Operation[lookupParams, lookupRequest, lookupResponse, lookupError] {
	t.Helper()
	addr, err := typed.NewAddress[lookupParams]("dns.zone.{zone}")
	require.NoError(t, err)

	return &typed.Operation[lookupParams, lookupRequest, lookupResponse, lookupError]{
		Name:            "lookup",
		Address:         addr,
		RequestAdapter:  typed.JSONAdapter[lookupRequest]{},
		ResponseAdapter: typed.JSONAdapter[lookupResponse]{},
		ErrorAdapter:    typed.JSONAdapter[lookupError]{},
		Catch: []typed.CatchEntry[lookupError]{
			{
				Matches:     func(err error) bool { return errors.Is(err, errZoneNotFound) },
				Code:        "404",
				Description: "Zone Not Found",
				Format:      func(err error) lookupError { return lookupError{Reason: err.Error()} },
			},
		},
		Handle: func(req *typed.Request[lookupParams, lookupRequest, lookupResponse, lookupError]) error {
			if req.Params().Zone == "missing" {
				return errZoneNotFound
			}
			return req.Respond(lookupResponse{Address: "10.0.0.1 (" + req.Data().Name + ")"})
		},
	}
}

func runTypedServer(t *testing.T) (*nats.Conn, func()) {
	t.Helper()
	opts := natsserver.DefaultTestOptions
	opts.Port = -1
	srv := natsserver.RunServer(&opts)
	nc, err := nats.Connect(srv.ClientURL())
	require.NoError(t, err)
	return nc, func() {
		nc.Close()
		srv.Shutdown()
	}
}

func TestOperationAttachAndRespond(t *testing.T) {
	nc, cleanup := runTypedServer(t)
	defer cleanup()

	svc, err := micro.AddService(micro.ServiceOptions{
		Conn:   nc,
		Config: micro.ServiceConfig{Name: "dns", Version: "0.1.0"},
	})
	require.NoError(t, err)
	defer svc.Stop()

	_, err = typed.Attach(svc, newLookupOperation(t))
	require.NoError(t, err)

	payload, err := (typed.JSONAdapter[lookupRequest]{}).Encode(lookupRequest{Name: "www"})
	require.NoError(t, err)

	resp, err := nc.Request("dns.zone.example", payload, time.Second)
	require.NoError(t, err)

	var out lookupResponse
	require.NoError(t, json.Unmarshal(resp.Data, &out))
	assert.Equal(t, "10.0.0.1 (www)", out.Address)
	assert.Equal(t, "200", resp.Header.Get(micro.HeaderServiceSuccessCode))
}

func TestOperationAttachCatchesTypedError(t *testing.T) {
	nc, cleanup := runTypedServer(t)
	defer cleanup()

	svc, err := micro.AddService(micro.ServiceOptions{
		Conn:   nc,
		Config: micro.ServiceConfig{Name: "dns2", Version: "0.1.0"},
	})
	require.NoError(t, err)
	defer svc.Stop()

	_, err = typed.Attach(svc, newLookupOperation(t))
	require.NoError(t, err)

	payload, err := (typed.JSONAdapter[lookupRequest]{}).Encode(lookupRequest{Name: "www"})
	require.NoError(t, err)

	resp, err := nc.Request("dns.zone.missing", payload, time.Second)
	require.NoError(t, err)

	assert.Equal(t, "404", resp.Header.Get(micro.HeaderServiceErrorCode))
	assert.Equal(t, "Zone Not Found", resp.Header.Get(micro.HeaderServiceError))

	var out lookupError
	require.NoError(t, json.Unmarshal(resp.Data, &out))
	assert.Equal(t, errZoneNotFound.Error(), out.Reason)
}

func TestOperationDispatchRoutesDecodeErrorsThroughCatch(t *testing.T) {
	nc, cleanup := runTypedServer(t)
	defer cleanup()

	svc, err := micro.AddService(micro.ServiceOptions{
		Conn:   nc,
		Config: micro.ServiceConfig{Name: "dns3", Version: "0.1.0"},
	})
	require.NoError(t, err)
	defer svc.Stop()

	addr, err := typed.NewAddress[lookupParams]("dns3.zone.{zone}")
	require.NoError(t, err)

	op := &typed.Operation[lookupParams, lookupRequest, lookupResponse, lookupError]{
		Name:            "lookup",
		Address:         addr,
		RequestAdapter:  typed.JSONAdapter[lookupRequest]{},
		ResponseAdapter: typed.JSONAdapter[lookupResponse]{},
		ErrorAdapter:    typed.JSONAdapter[lookupError]{},
		Catch: []typed.CatchEntry[lookupError]{
			{
				Matches:     func(err error) bool { return true },
				Code:        "400",
				Description: "Bad Request",
				Format:      func(err error) lookupError { return lookupError{Reason: "decode failed"} },
			},
		},
		Handle: func(req *typed.Request[lookupParams, lookupRequest, lookupResponse, lookupError]) error {
			return req.Respond(lookupResponse{Address: "unreachable"})
		},
	}
	_, err = typed.Attach(svc, op)
	require.NoError(t, err)

	resp, err := nc.Request("dns3.zone.example", []byte("not json"), time.Second)
	require.NoError(t, err)

	assert.Equal(t, "400", resp.Header.Get(micro.HeaderServiceErrorCode))

	var out lookupError
	require.NoError(t, json.Unmarshal(resp.Data, &out))
	assert.Equal(t, "decode failed", out.Reason)
}

package micro_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	micro "github.com/charbonats/nats-micro"
)

func addHeaderMiddleware(key, value string) micro.Middleware {
	return func(req micro.Request, next micro.NextHandler) *micro.Response {
		resp := next(req)
		if resp != nil {
			resp.AddHeader(key, value)
		}
		return resp
	}
}

func TestApplyMiddlewaresNoopWithoutAny(t *testing.T) {
	called := false
	handler := micro.ApplyMiddlewares(func(req micro.Request) error {
		called = true
		return req.Respond([]byte("ok"), nil)
	}, nil)

	req := micro.NewStubRequest("subj", nil, nil)
	require.NoError(t, handler(req))
	assert.True(t, called)
	assert.Equal(t, "ok", string(req.RespondData))
}

func TestApplyMiddlewaresRunsInOrderAndRewritesResponse(t *testing.T) {
	var order []string
	trace := func(name string) micro.Middleware {
		return func(req micro.Request, next micro.NextHandler) *micro.Response {
			order = append(order, name+":enter")
			resp := next(req)
			order = append(order, name+":exit")
			return resp
		}
	}

	handler := micro.ApplyMiddlewares(
		func(req micro.Request) error { return req.Respond([]byte("body"), nil) },
		[]micro.Middleware{trace("outer"), addHeaderMiddleware("X-Trace", "yes"), trace("inner")},
	)

	req := micro.NewStubRequest("subj", nil, nil)
	require.NoError(t, handler(req))
	assert.Equal(t, "body", string(req.RespondData))
	assert.Equal(t, "yes", req.RespondHdr.Get("X-Trace"))
	assert.Equal(t, []string{"outer:enter", "inner:enter", "inner:exit", "outer:exit"}, order)
}

func TestApplyMiddlewaresMapsHandlerErrorToGeneric500(t *testing.T) {
	handler := micro.ApplyMiddlewares(
		func(req micro.Request) error { return errors.New("boom") },
		[]micro.Middleware{addHeaderMiddleware("X-Seen", "1")},
	)

	req := micro.NewStubRequest("subj", nil, nil)
	require.NoError(t, handler(req))
	assert.Equal(t, "500", req.RespondHdr.Get(micro.HeaderServiceErrorCode))
	assert.Equal(t, "Internal Server Error", req.RespondHdr.Get(micro.HeaderServiceError))
	assert.Equal(t, "1", req.RespondHdr.Get("X-Seen"))
}

func TestApplyMiddlewaresSkipsGeneric500WhenHandlerAlreadyResponded(t *testing.T) {
	handler := micro.ApplyMiddlewares(
		func(req micro.Request) error {
			_ = req.Respond([]byte("already sent"), nil)
			return errors.New("boom, but too late")
		},
		[]micro.Middleware{addHeaderMiddleware("X-Seen", "1")},
	)

	req := micro.NewStubRequest("subj", nil, nil)
	require.NoError(t, handler(req))
	assert.Equal(t, "already sent", string(req.RespondData))
	assert.Empty(t, req.RespondHdr.Get(micro.HeaderServiceErrorCode))
}

package micro

import "github.com/nats-io/nats.go"

// Response holds the data and headers a middleware chain's terminal
// handler produced, without having published it yet. Middlewares observe
// and may rewrite it before the outermost wrapper finally sends it.
type Response struct {
	Origin Request

	data    []byte
	headers nats.Header
}

func (r *Response) Data() []byte { return r.data }

func (r *Response) Headers() nats.Header { return r.headers }

func (r *Response) SetData(data []byte) { r.data = data }

func (r *Response) AddHeader(key, value string) {
	if r.headers == nil {
		r.headers = nats.Header{}
	}
	r.headers.Set(key, value)
}

func (r *Response) RemoveHeader(key string) {
	r.headers.Del(key)
}

// NextHandler runs the remainder of a middleware chain and returns the
// response it produced, without publishing it.
type NextHandler func(req Request) *Response

// Middleware observes or rewrites a request/response pair. Calling next
// runs the wrapped handler (or the next middleware) and returns its
// captured response; the middleware may inspect or replace it before
// returning its own.
type Middleware func(req Request, next NextHandler) *Response

// ApplyMiddlewares wraps handler with an ordered chain of middlewares. The
// outermost element of middlewares runs first and is responsible, once
// the chain unwinds, for nothing more than returning its result: the
// returned Handler itself performs at most one publish (none if the chain
// returns a nil Response or the request carries no reply subject),
// preserving the one-reply invariant of spec §4.4.
func ApplyMiddlewares(handler Handler, middlewares []Middleware) Handler {
	if len(middlewares) == 0 {
		return handler
	}
	next := terminalNext(handler)
	for i := len(middlewares) - 1; i >= 0; i-- {
		next = chainNext(next, middlewares[i])
	}
	return finalHandler(next)
}

func terminalNext(handler Handler) NextHandler {
	return func(req Request) *Response {
		captured := newCapturedRequest(req)
		if err := handler(captured); err != nil && !captured.hasResponded() {
			_ = captured.RespondError("500", "Internal Server Error", nil, nil)
		}
		return captured.response()
	}
}

func chainNext(next NextHandler, mw Middleware) NextHandler {
	return func(req Request) *Response {
		return mw(req, next)
	}
}

func finalHandler(next NextHandler) Handler {
	return func(req Request) error {
		resp := next(req)
		if resp == nil {
			return nil
		}
		return resp.Origin.Respond(resp.data, resp.headers)
	}
}

// capturedRequest is a Request that records a Respond/RespondError call
// instead of publishing it, so a middleware can inspect or rewrite the
// result before the chain's outer edge actually sends it.
type capturedRequest struct {
	Request
	resp *Response
}

func newCapturedRequest(req Request) *capturedRequest {
	return &capturedRequest{Request: req}
}

func (c *capturedRequest) Respond(data []byte, headers nats.Header) error {
	if c.resp != nil {
		return ErrRespond
	}
	c.resp = &Response{Origin: c.Request, data: data, headers: headers}
	return nil
}

func (c *capturedRequest) RespondError(code, description string, data []byte, headers nats.Header) error {
	if headers == nil {
		headers = nats.Header{}
	}
	headers.Set(HeaderServiceErrorCode, code)
	headers.Set(HeaderServiceError, description)
	return c.Respond(data, headers)
}

func (c *capturedRequest) hasResponded() bool {
	return c.resp != nil
}

func (c *capturedRequest) response() *Response {
	return c.resp
}

package typed

import (
	"errors"

	micro "github.com/charbonats/nats-micro"
)

// CatchEntry maps an error, matched by its Matches function (MatchAs builds
// an errors.As based one), to a structured error reply (spec §4.5). Entries
// are tried in order; the first match wins.
type CatchEntry[Err any] struct {
	// Matches reports whether err should be handled by this entry.
	Matches func(err error) bool

	Code        string
	Description string

	// Format builds the typed error body to send. If nil, the zero value
	// of Err is sent.
	Format func(err error) Err
}

// Operation binds an address template and a request/response/error schema
// quadruple to a handler, standing in for the class-decorator based
// DecoratedEndpoint/EndpointDecorator pair of the reference implementation
// (Go has no decorator equivalent; generics plus a builder struct are the
// idiomatic substitute).
type Operation[P, Req, Res, Err any] struct {
	Name    string
	Address *Address[P]

	RequestAdapter  Adapter[Req]
	ResponseAdapter Adapter[Res]
	ErrorAdapter    Adapter[Err]

	// StatusCode is returned on success via Nats-Service-Success-Code.
	// Defaults to 200.
	StatusCode string

	Catch []CatchEntry[Err]

	Metadata map[string]string

	Handle func(req *Request[P, Req, Res, Err]) error
}

// Request is the typed view an Operation's handler sees: decoded
// placeholders, decoded body, and encode-aware reply methods (spec §4.5).
type Request[P, Req, Res, Err any] struct {
	raw micro.Request
	op  *Operation[P, Req, Res, Err]

	params P
	data   Req
}

func (r *Request[P, Req, Res, Err]) Params() P { return r.params }

func (r *Request[P, Req, Res, Err]) Data() Req { return r.data }

func (r *Request[P, Req, Res, Err]) Headers() map[string][]string {
	return map[string][]string(r.raw.Headers())
}

// Respond encodes value with the response adapter and sends a success
// reply carrying the operation's status code.
func (r *Request[P, Req, Res, Err]) Respond(value Res) error {
	data, err := r.op.ResponseAdapter.Encode(value)
	if err != nil {
		return err
	}
	code := r.op.StatusCode
	if code == "" {
		code = "200"
	}
	return r.raw.Respond(data, successHeaders(code, r.op.ResponseAdapter.ContentType()))
}

// RespondError encodes value with the error adapter and sends a structured
// error reply.
func (r *Request[P, Req, Res, Err]) RespondError(code, description string, value Err) error {
	data, err := r.op.ErrorAdapter.Encode(value)
	if err != nil {
		return err
	}
	return r.raw.RespondError(code, description, data, contentTypeHeader(r.op.ErrorAdapter.ContentType()))
}

func successHeaders(code, contentType string) map[string][]string {
	h := map[string][]string{micro.HeaderServiceSuccessCode: {code}}
	if contentType != "" {
		h["Content-Type"] = []string{contentType}
	}
	return h
}

func contentTypeHeader(contentType string) map[string][]string {
	if contentType == "" {
		return nil
	}
	return map[string][]string{"Content-Type": {contentType}}
}

// dispatch decodes an inbound raw request into a typed Request, invokes
// the operation's handler, and maps any returned error through the catch
// table. An error with no matching catch entry propagates unchanged so
// the service-level wrapper (spec §4.2) converts it to a generic 500.
func (op *Operation[P, Req, Res, Err]) dispatch(raw micro.Request) error {
	params, err := op.Address.GetParams(raw.Subject())
	if err != nil {
		return op.tryCatch(raw, err)
	}
	data, err := op.RequestAdapter.Decode(raw.Data())
	if err != nil {
		return op.tryCatch(raw, err)
	}
	typed := &Request[P, Req, Res, Err]{raw: raw, op: op, params: params, data: data}

	handlerErr := op.Handle(typed)
	if handlerErr == nil {
		return nil
	}
	return op.tryCatch(raw, handlerErr)
}

// tryCatch maps srcErr through the catch table, regardless of whether it
// came from decoding the request or from the handler itself: the catch
// table applies uniformly to every error source an operation can produce
// (spec §7). An error with no matching entry propagates unchanged so the
// service-level wrapper converts it to a generic 500.
func (op *Operation[P, Req, Res, Err]) tryCatch(raw micro.Request, srcErr error) error {
	typed := &Request[P, Req, Res, Err]{raw: raw, op: op}
	for _, entry := range op.Catch {
		if !entry.Matches(srcErr) {
			continue
		}
		var body Err
		if entry.Format != nil {
			body = entry.Format(srcErr)
		}
		return typed.RespondError(entry.Code, entry.Description, body)
	}
	return srcErr
}

// MatchAs returns a CatchEntry matcher using errors.As against a target of
// type T.
func MatchAs[T error]() func(err error) bool {
	return func(err error) bool {
		var target T
		return errors.As(err, &target)
	}
}

// micro.Handler built from an Operation, for Attach.
func (op *Operation[P, Req, Res, Err]) handler() micro.Handler {
	return func(req micro.Request) error {
		return op.dispatch(req)
	}
}

// Attach registers the operation as an endpoint on a service.
func Attach[P, Req, Res, Err any](svc *micro.Service, op *Operation[P, Req, Res, Err]) (*micro.Endpoint, error) {
	return svc.AddEndpoint(micro.EndpointOpts{
		Name:     op.Name,
		Subject:  op.Address.String(),
		Handler:  op.handler(),
		Metadata: op.Metadata,
	})
}

// AttachToGroup registers the operation as an endpoint on a group.
func AttachToGroup[P, Req, Res, Err any](g *micro.Group, op *Operation[P, Req, Res, Err]) (*micro.Endpoint, error) {
	return g.AddEndpoint(micro.EndpointOpts{
		Name:     op.Name,
		Subject:  op.Address.String(),
		Handler:  op.handler(),
		Metadata: op.Metadata,
	})
}

package micro

import (
	"fmt"

	"github.com/nats-io/nats.go"
)

// Header names used on the reply of a request (spec §3).
const (
	HeaderServiceSuccessCode = "Nats-Service-Success-Code"
	HeaderServiceErrorCode   = "Nats-Service-Error-Code"
	HeaderServiceError       = "Nats-Service-Error"
)

// Request is the interface a handler sees for an inbound endpoint request.
// An interface is used, rather than a concrete struct, so that a service
// can be exercised with a stub implementation in tests without a running
// NATS connection.
type Request interface {
	// Subject is the subject on which the request was received. For a
	// wildcard endpoint this may differ from the endpoint's own subject.
	Subject() string

	// Headers are the inbound headers of the request, never nil.
	Headers() nats.Header

	// Data is the raw payload of the request.
	Data() []byte

	// Respond sends a success response. Respond must be called at most
	// once per request; additional calls return ErrRespond.
	Respond(data []byte, headers nats.Header) error

	// RespondError sends an error response: code is a short machine
	// readable identifier, description is a human readable message.
	RespondError(code, description string, data []byte, headers nats.Header) error
}

// natsRequest is the Request implementation backed by a live NATS message.
type natsRequest struct {
	nc  *nats.Conn
	msg *nats.Msg

	responded bool
}

func newNATSRequest(nc *nats.Conn, msg *nats.Msg) *natsRequest {
	return &natsRequest{nc: nc, msg: msg}
}

func (r *natsRequest) Subject() string {
	return r.msg.Subject
}

func (r *natsRequest) Headers() nats.Header {
	if r.msg.Header == nil {
		return nats.Header{}
	}
	return r.msg.Header
}

func (r *natsRequest) Data() []byte {
	return r.msg.Data
}

func (r *natsRequest) Respond(data []byte, headers nats.Header) error {
	if r.responded {
		return fmt.Errorf("%w: request already responded to", ErrRespond)
	}
	if r.msg.Reply == "" {
		r.responded = true
		return nil
	}
	reply := &nats.Msg{Subject: r.msg.Reply, Data: data, Header: headers}
	if err := r.nc.PublishMsg(reply); err != nil {
		return fmt.Errorf("%w: %w", ErrRespond, err)
	}
	r.responded = true
	return nil
}

func (r *natsRequest) hasResponded() bool {
	return r.responded
}

func (r *natsRequest) RespondError(code, description string, data []byte, headers nats.Header) error {
	if headers == nil {
		headers = nats.Header{}
	}
	headers.Set(HeaderServiceErrorCode, code)
	headers.Set(HeaderServiceError, description)
	return r.Respond(data, headers)
}

// RespondJSON marshals v and sends it as a success response.
func RespondJSON(r Request, v any, headers nats.Header) error {
	data, err := marshalResponse(v)
	if err != nil {
		return err
	}
	return r.Respond(data, headers)
}

// StubRequest is a Request test double: it records whatever the handler
// sent and never touches the network. Use it to unit test handlers.
type StubRequest struct {
	SubjectVal string
	HeadersVal nats.Header
	DataVal    []byte

	Responded    bool
	RespondData  []byte
	RespondHdr   nats.Header
	ErrorCode    string
	ErrorDesc    string
}

func NewStubRequest(subject string, data []byte, headers nats.Header) *StubRequest {
	if headers == nil {
		headers = nats.Header{}
	}
	return &StubRequest{SubjectVal: subject, DataVal: data, HeadersVal: headers}
}

func (s *StubRequest) Subject() string     { return s.SubjectVal }
func (s *StubRequest) Headers() nats.Header { return s.HeadersVal }
func (s *StubRequest) Data() []byte        { return s.DataVal }

func (s *StubRequest) Respond(data []byte, headers nats.Header) error {
	if s.Responded {
		return fmt.Errorf("%w: request already responded to", ErrRespond)
	}
	s.Responded = true
	s.RespondData = data
	s.RespondHdr = headers
	return nil
}

func (s *StubRequest) hasResponded() bool {
	return s.Responded
}

func (s *StubRequest) RespondError(code, description string, data []byte, headers nats.Header) error {
	if headers == nil {
		headers = nats.Header{}
	}
	headers.Set(HeaderServiceErrorCode, code)
	headers.Set(HeaderServiceError, description)
	s.ErrorCode = code
	s.ErrorDesc = description
	return s.Respond(data, headers)
}

package micro

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/nats-io/nats.go"
)

// ServiceError is raised when a point-to-point reply carries the
// structured error headers (spec §4.6).
type ServiceError struct {
	Code        string
	Description string
	Subject     string
	Data        []byte
	Headers     nats.Header
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("service error %s: %s", e.Code, e.Description)
}

// Client issues point-to-point requests and fleet-wide discovery requests
// against the monitoring surface of every service on the bus (spec §4.6,
// §4.7).
type Client struct {
	nc             *nats.Conn
	apiPrefix      string
	defaultMaxWait RequestManyOpts
}

// NewClient builds a Client bound to nc. apiPrefix defaults to APIPrefix.
func NewClient(nc *nats.Conn, apiPrefix string) *Client {
	if apiPrefix == "" {
		apiPrefix = APIPrefix
	}
	return &Client{nc: nc, apiPrefix: apiPrefix}
}

// Request sends a single request and returns its payload. If the reply
// carries Nats-Service-Error-Code, a *ServiceError is returned instead.
func (c *Client) Request(ctx context.Context, subject string, data []byte, headers nats.Header) ([]byte, error) {
	msg := &nats.Msg{Subject: subject, Data: data, Header: headers}
	resp, err := c.nc.RequestMsgWithContext(ctx, msg)
	if err != nil {
		return nil, err
	}
	if resp.Header != nil {
		if code := resp.Header.Get(HeaderServiceErrorCode); code != "" {
			return nil, &ServiceError{
				Code:        code,
				Description: resp.Header.Get(HeaderServiceError),
				Subject:     subject,
				Data:        resp.Data,
				Headers:     resp.Header,
			}
		}
	}
	return resp.Data, nil
}

func (c *Client) controlSubject(verb Verb, name string) string {
	subject, _ := ControlSubject(c.apiPrefix, verb, name, "")
	return subject
}

// Ping collects PingInfo from every matching instance (spec §4.7).
func (c *Client) Ping(service string, opts RequestManyOpts) ([]PingInfo, error) {
	return requestManyDecode(c.nc, c.controlSubject(PingVerb, service), opts, decodePingInfo)
}

// Info collects ServiceInfo from every matching instance.
func (c *Client) Info(service string, opts RequestManyOpts) ([]ServiceInfo, error) {
	return requestManyDecode(c.nc, c.controlSubject(InfoVerb, service), opts, decodeServiceInfo)
}

// Stats collects ServiceStats from every matching instance.
func (c *Client) Stats(service string, opts RequestManyOpts) ([]ServiceStats, error) {
	return requestManyDecode(c.nc, c.controlSubject(StatsVerb, service), opts, decodeServiceStats)
}

func requestManyDecode[T any](nc *nats.Conn, subject string, opts RequestManyOpts, decode func(*nats.Msg) (T, error)) ([]T, error) {
	msgs, err := RequestMany(nc, subject, nil, opts)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(msgs))
	for _, msg := range msgs {
		v, err := decode(msg)
		if err != nil {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

func decodePingInfo(msg *nats.Msg) (PingInfo, error) {
	var v PingInfo
	err := json.Unmarshal(msg.Data, &v)
	return v, err
}

func decodeServiceInfo(msg *nats.Msg) (ServiceInfo, error) {
	var v ServiceInfo
	err := json.Unmarshal(msg.Data, &v)
	return v, err
}

func decodeServiceStats(msg *nats.Msg) (ServiceStats, error) {
	var v ServiceStats
	err := json.Unmarshal(msg.Data, &v)
	return v, err
}

// Service returns a view of the Client scoped to a single service kind
// (spec §4.7, second tier).
func (c *Client) Service(name string) *ServiceClient {
	return &ServiceClient{client: c, name: name}
}

// ServiceClient is the per-kind tier of the discovery façade.
type ServiceClient struct {
	client *Client
	name   string
}

func (s *ServiceClient) Ping(opts RequestManyOpts) ([]PingInfo, error) {
	return s.client.Ping(s.name, opts)
}

func (s *ServiceClient) Info(opts RequestManyOpts) ([]ServiceInfo, error) {
	return s.client.Info(s.name, opts)
}

func (s *ServiceClient) Stats(opts RequestManyOpts) ([]ServiceStats, error) {
	return s.client.Stats(s.name, opts)
}

// Instance returns a view scoped to a single service instance, which
// degenerates request-many into a single deterministic-subject request
// (spec §4.7, third tier).
func (s *ServiceClient) Instance(id string) *InstanceClient {
	return &InstanceClient{client: s.client, name: s.name, id: id}
}

// InstanceClient is the per-instance tier of the discovery façade.
type InstanceClient struct {
	client *Client
	name   string
	id     string
}

func (i *InstanceClient) subject(verb Verb) string {
	subject, _ := ControlSubject(i.client.apiPrefix, verb, i.name, i.id)
	return subject
}

func (i *InstanceClient) Ping(ctx context.Context) (PingInfo, error) {
	var v PingInfo
	data, err := i.client.Request(ctx, i.subject(PingVerb), nil, nil)
	if err != nil {
		return v, err
	}
	err = json.Unmarshal(data, &v)
	return v, err
}

func (i *InstanceClient) Info(ctx context.Context) (ServiceInfo, error) {
	var v ServiceInfo
	data, err := i.client.Request(ctx, i.subject(InfoVerb), nil, nil)
	if err != nil {
		return v, err
	}
	err = json.Unmarshal(data, &v)
	return v, err
}

func (i *InstanceClient) Stats(ctx context.Context) (ServiceStats, error) {
	var v ServiceStats
	data, err := i.client.Request(ctx, i.subject(StatsVerb), nil, nil)
	if err != nil {
		return v, err
	}
	err = json.Unmarshal(data, &v)
	return v, err
}

// successCode parses the Nats-Service-Success-Code header, if present.
func successCode(headers nats.Header) (int, bool) {
	raw := headers.Get(HeaderServiceSuccessCode)
	if raw == "" {
		return 0, false
	}
	code, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return code, true
}

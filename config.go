package micro

import (
	"maps"

	"github.com/nats-io/nats.go"
)

// ServiceConfig describes a service before it is started (spec §3).
type ServiceConfig struct {
	// Name is the kind of the service, shared by every instance of it.
	// Must use the identifier charset [A-Za-z0-9_-].
	Name string

	// Version must be a valid semantic version.
	Version string

	// Description is a free-form human readable description.
	Description string

	// Metadata is arbitrary string data exposed in INFO/STATS/PING.
	Metadata map[string]string

	// QueueGroup is the default queue group for endpoints that don't
	// override it. Defaults to DefaultQueueGroup ("q").
	QueueGroup string

	// PendingMsgsLimitByEndpoint and PendingBytesLimitByEndpoint are the
	// default per-endpoint subscription limits (spec §3).
	PendingMsgsLimitByEndpoint  int
	PendingBytesLimitByEndpoint int

	// APIPrefix overrides the default "$SRV" monitoring subject root.
	APIPrefix string

	// ErrorHandler, if set, is invoked whenever the underlying NATS
	// connection reports an async error for one of this service's own
	// subscriptions. Errors on other subscriptions sharing the same
	// connection are not passed to it.
	ErrorHandler func(*Service, *NATSError)

	// DoneHandler, if set, is invoked once the service has fully stopped.
	DoneHandler func(*Service)
}

func (c ServiceConfig) withDefaults() ServiceConfig {
	if c.QueueGroup == "" {
		c.QueueGroup = DefaultQueueGroup
	}
	if c.PendingMsgsLimitByEndpoint == 0 {
		c.PendingMsgsLimitByEndpoint = nats.DefaultSubPendingMsgsLimit
	}
	if c.PendingBytesLimitByEndpoint == 0 {
		c.PendingBytesLimitByEndpoint = nats.DefaultSubPendingBytesLimit
	}
	if c.Metadata == nil {
		c.Metadata = map[string]string{}
	}
	if c.APIPrefix == "" {
		c.APIPrefix = APIPrefix
	}
	return c
}

// endpointConfig merges explicit call arguments with the service defaults,
// producing the effective EndpointConfig. The group layer, when present,
// is applied by Group.AddEndpoint before this is called (spec §4.2: merge
// order is "explicit call arguments -> parent group defaults -> service
// defaults").
func (c ServiceConfig) endpointConfig(opts EndpointOpts) EndpointConfig {
	subject := opts.Subject
	if subject == "" {
		subject = opts.Name
	}
	queueGroup := opts.QueueGroup
	if queueGroup == "" {
		queueGroup = c.QueueGroup
	}
	pendingMsgsLimit := opts.PendingMsgsLimit
	if pendingMsgsLimit == 0 {
		pendingMsgsLimit = c.PendingMsgsLimitByEndpoint
	}
	pendingBytesLimit := opts.PendingBytesLimit
	if pendingBytesLimit == 0 {
		pendingBytesLimit = c.PendingBytesLimitByEndpoint
	}
	return EndpointConfig{
		Name:              opts.Name,
		Subject:           subject,
		Handler:           ApplyMiddlewares(opts.Handler, opts.Middlewares),
		QueueGroup:        queueGroup,
		Metadata:          cloneMetadata(opts.Metadata),
		PendingMsgsLimit:  pendingMsgsLimit,
		PendingBytesLimit: pendingBytesLimit,
	}
}

// EndpointOpts are the explicit, caller-supplied arguments to
// Service.AddEndpoint / Group.AddEndpoint, before merging with group and
// service defaults.
type EndpointOpts struct {
	Name              string
	Subject           string
	Handler           Handler
	Middlewares       []Middleware
	QueueGroup        string
	Metadata          map[string]string
	PendingMsgsLimit  int
	PendingBytesLimit int
}

// EndpointConfig is the fully resolved configuration of a registered
// endpoint (spec §3).
type EndpointConfig struct {
	Name              string
	Subject           string
	Handler           Handler
	QueueGroup        string
	Metadata          map[string]string
	PendingMsgsLimit  int
	PendingBytesLimit int
}

// GroupConfig is a prefix-and-defaults node (spec §3, §4.3).
type GroupConfig struct {
	// Name becomes the subject prefix. Must not contain the multi-token
	// wildcard ">".
	Name string

	QueueGroup                  string
	PendingMsgsLimitByEndpoint  int
	PendingBytesLimitByEndpoint int
}

// child returns a new GroupConfig nested under this one, propagating any
// default not explicitly overridden (spec §4.3).
func (g GroupConfig) child(name string, queueGroup string, pendingMsgsLimit, pendingBytesLimit int) GroupConfig {
	if queueGroup == "" {
		queueGroup = g.QueueGroup
	}
	if pendingMsgsLimit == 0 {
		pendingMsgsLimit = g.PendingMsgsLimitByEndpoint
	}
	if pendingBytesLimit == 0 {
		pendingBytesLimit = g.PendingBytesLimitByEndpoint
	}
	return GroupConfig{
		Name:                        g.Name + "." + name,
		QueueGroup:                  queueGroup,
		PendingMsgsLimitByEndpoint:  pendingMsgsLimit,
		PendingBytesLimitByEndpoint: pendingBytesLimit,
	}
}

func cloneMetadata(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return maps.Clone(m)
}

package micro

import "fmt"

// Group is a subject prefix together with default endpoint settings,
// shared by every endpoint added under it (spec §4.3). A group has no
// runtime existence of its own; only the endpoints eventually registered
// through it exist as subscriptions.
type Group struct {
	config  GroupConfig
	service *Service
}

// AddGroup derives a child group nested under this one. Unset fields
// inherit the parent group's defaults.
func (g *Group) AddGroup(name string, queueGroup string, pendingMsgsLimit, pendingBytesLimit int) (*Group, error) {
	if !validGroupName(name) {
		return nil, fmt.Errorf("%w: group name %q must not contain \">\"", ErrConfigValidation, name)
	}
	return &Group{
		config:  g.config.child(name, queueGroup, pendingMsgsLimit, pendingBytesLimit),
		service: g.service,
	}, nil
}

// AddEndpoint registers an endpoint under this group's prefix, merging the
// call's explicit options with the group's defaults before falling back to
// the service's own defaults.
func (g *Group) AddEndpoint(opts EndpointOpts) (*Endpoint, error) {
	subject := opts.Subject
	if subject == "" {
		subject = opts.Name
	}
	opts.Subject = g.config.Name + "." + subject
	if opts.QueueGroup == "" {
		opts.QueueGroup = g.config.QueueGroup
	}
	if opts.PendingMsgsLimit == 0 {
		opts.PendingMsgsLimit = g.config.PendingMsgsLimitByEndpoint
	}
	if opts.PendingBytesLimit == 0 {
		opts.PendingBytesLimit = g.config.PendingBytesLimitByEndpoint
	}
	return g.service.AddEndpoint(opts)
}

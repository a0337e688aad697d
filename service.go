package micro

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSError wraps an asynchronous NATS error delivered to a service's
// ErrorHandler, identifying which subscription produced it.
type NATSError struct {
	Subject string
	Err     error
}

func (e *NATSError) Error() string {
	return fmt.Sprintf("nats: subject %q: %v", e.Subject, e.Err)
}

func (e *NATSError) Unwrap() error {
	return e.Err
}

// IDGenerator produces unique service instance ids. The default generates
// a random 24-hex-char token (spec §3); see UUIDIDGenerator for an opt-in
// alternate based on github.com/google/uuid.
type IDGenerator func() (string, error)

// DefaultIDGenerator returns a random 24-character hex token.
func DefaultIDGenerator() (string, error) {
	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// ServiceOptions configure a Service at construction time.
type ServiceOptions struct {
	Config      ServiceConfig
	Conn        *nats.Conn
	Logger      *slog.Logger
	IDGenerator IDGenerator
	APIPrefix   string
	Clock       func() time.Time
}

// Service is a named, versioned collection of endpoints plus the
// standardized PING/INFO/STATS monitoring surface (spec §3-§4.1).
type Service struct {
	nc     *nats.Conn
	id     string
	config ServiceConfig
	prefix string
	l      *slog.Logger
	clock  func() time.Time

	started time.Time

	mu        sync.RWMutex
	endpoints []*Endpoint
	stopped   bool

	pingSubs  []*nats.Subscription
	infoSubs  []*nats.Subscription
	statsSubs []*nats.Subscription

	pingPayload []byte
}

// AddService creates a Service bound to an already-connected NATS
// connection, and starts its monitoring subscriptions (spec §3: "Starting
// a service subscribes all monitoring subjects before returning").
func AddService(opt ServiceOptions) (*Service, error) {
	if !validServiceName(opt.Config.Name) {
		return nil, fmt.Errorf("%w: invalid service name %q", ErrConfigValidation, opt.Config.Name)
	}
	if opt.Conn == nil {
		return nil, fmt.Errorf("%w: nats connection is required", ErrConfigValidation)
	}
	if opt.Logger == nil {
		opt.Logger = slog.Default().With("component", "micro", "service", opt.Config.Name)
	}
	if opt.IDGenerator == nil {
		opt.IDGenerator = DefaultIDGenerator
	}
	if opt.Clock == nil {
		opt.Clock = time.Now
	}
	id, err := opt.IDGenerator()
	if err != nil {
		return nil, fmt.Errorf("generating service id: %w", err)
	}
	prefix := opt.APIPrefix
	if prefix == "" {
		prefix = opt.Config.APIPrefix
	}
	if prefix == "" {
		prefix = APIPrefix
	}
	svc := &Service{
		nc:      opt.Conn,
		id:      id,
		config:  opt.Config.withDefaults(),
		prefix:  prefix,
		l:       opt.Logger,
		clock:   opt.Clock,
		started: opt.Clock(),
	}
	svc.cachePing()
	if err := svc.start(); err != nil {
		return nil, err
	}
	svc.wireConnHandlers()
	svc.l.Info("service started", "id", svc.id, "version", svc.config.Version)
	return svc, nil
}

// wireConnHandlers chains this service's ErrorHandler and reconnect-triggered
// reset onto whatever handlers the connection already carries, so that
// several services sharing one *nats.Conn all observe reconnects and none of
// them clobbers another's async error reporting.
func (s *Service) wireConnHandlers() {
	prevErr := s.nc.Opts.AsyncErrorCB
	s.nc.SetErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
		if prevErr != nil {
			prevErr(nc, sub, err)
		}
		if s.config.ErrorHandler == nil || !s.ownsSubscription(sub) {
			return
		}
		subject := ""
		if sub != nil {
			subject = sub.Subject
		}
		s.config.ErrorHandler(s, &NATSError{Subject: subject, Err: err})
	})

	prevReconnect := s.nc.Opts.ReconnectedCB
	s.nc.SetReconnectHandler(func(nc *nats.Conn) {
		if prevReconnect != nil {
			prevReconnect(nc)
		}
		s.cachePing()
		s.Reset()
	})
}

// ownsSubscription reports whether sub belongs to this service, either one
// of its monitoring subscriptions or one of its registered endpoints.
func (s *Service) ownsSubscription(sub *nats.Subscription) bool {
	if sub == nil {
		return false
	}
	for _, candidates := range [][]*nats.Subscription{s.pingSubs, s.infoSubs, s.statsSubs} {
		for _, existing := range candidates {
			if existing == sub {
				return true
			}
		}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ep := range s.endpoints {
		if ep.sub == sub {
			return true
		}
	}
	return false
}

func (s *Service) start() error {
	for verb, handler := range map[Verb]nats.MsgHandler{
		PingVerb:  s.handlePing,
		InfoVerb:  s.handleInfo,
		StatsVerb: s.handleStats,
	} {
		subs, err := s.subscribeVerb(verb, handler)
		if err != nil {
			return err
		}
		switch verb {
		case PingVerb:
			s.pingSubs = subs
		case InfoVerb:
			s.infoSubs = subs
		case StatsVerb:
			s.statsSubs = subs
		}
	}
	return nil
}

// subscribeVerb subscribes the three monitoring subjects for verb as plain
// (non-queue) subscriptions: every running instance of a service must reply
// independently to the fleet-wide and per-kind subjects, not compete for
// delivery in a shared queue group, or Client.Ping/Info/Stats would collect
// at most one reply from the whole fleet instead of one per instance.
func (s *Service) subscribeVerb(verb Verb, handler nats.MsgHandler) ([]*nats.Subscription, error) {
	subjects := controlSubjects(s.prefix, verb, s.config.Name, s.id)
	subs := make([]*nats.Subscription, 0, len(subjects))
	for _, subject := range subjects {
		sub, err := s.nc.Subscribe(subject, handler)
		if err != nil {
			for _, existing := range subs {
				_ = existing.Unsubscribe()
			}
			return nil, fmt.Errorf("subscribing %s: %w", subject, err)
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

func (s *Service) handlePing(msg *nats.Msg) {
	if msg.Reply == "" {
		return
	}
	_ = msg.Respond(s.pingPayload)
}

func (s *Service) handleInfo(msg *nats.Msg) {
	if msg.Reply == "" {
		return
	}
	data, err := marshalResponse(s.Info())
	if err != nil {
		s.l.Error("marshaling info response", "err", err)
		return
	}
	_ = msg.Respond(data)
}

func (s *Service) handleStats(msg *nats.Msg) {
	if msg.Reply == "" {
		return
	}
	data, err := marshalResponse(s.Stats())
	if err != nil {
		s.l.Error("marshaling stats response", "err", err)
		return
	}
	_ = msg.Respond(data)
}

func (s *Service) cachePing() {
	payload, err := marshalResponse(s.pingInfo())
	if err != nil {
		payload = nil
	}
	s.pingPayload = payload
}

func (s *Service) identity() ServiceIdentity {
	return ServiceIdentity{
		Name:     s.config.Name,
		ID:       s.id,
		Version:  s.config.Version,
		Metadata: cloneMetadata(s.config.Metadata),
	}
}

func (s *Service) pingInfo() PingInfo {
	return PingInfo{ServiceIdentity: s.identity(), Type: PingResponseType}
}

// ID returns the instance id assigned at construction; it never changes.
func (s *Service) ID() string { return s.id }

// Info returns a deep copy of the service's INFO snapshot (spec §5).
func (s *Service) Info() ServiceInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info := ServiceInfo{
		ServiceIdentity: s.identity(),
		Type:            InfoResponseType,
		Description:     s.config.Description,
		Endpoints:       make([]EndpointInfo, 0, len(s.endpoints)),
	}
	for _, ep := range s.endpoints {
		info.Endpoints = append(info.Endpoints, ep.info())
	}
	return info
}

// Stats returns a deep copy of the service's STATS snapshot (spec §5).
func (s *Service) Stats() ServiceStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := ServiceStats{
		ServiceIdentity: s.identity(),
		Type:            StatsResponseType,
		Started:         s.started.UTC().Format(time.RFC3339Nano),
		Endpoints:       make([]EndpointStats, 0, len(s.endpoints)),
	}
	for _, ep := range s.endpoints {
		stats.Endpoints = append(stats.Endpoints, ep.snapshot())
	}
	return stats
}

// Reset clears accumulated statistics for every endpoint (spec §4: Service.reset).
func (s *Service) Reset() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ep := range s.endpoints {
		ep.reset()
	}
}

// Stopped reports whether Stop has been called.
func (s *Service) Stopped() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stopped
}

// AddGroup creates a top-level group bound to this service.
func (s *Service) AddGroup(name string, queueGroup string, pendingMsgsLimit, pendingBytesLimit int) (*Group, error) {
	if !validGroupName(name) {
		return nil, fmt.Errorf("%w: group name %q must not contain \">\"", ErrConfigValidation, name)
	}
	if queueGroup == "" {
		queueGroup = s.config.QueueGroup
	}
	if pendingMsgsLimit == 0 {
		pendingMsgsLimit = s.config.PendingMsgsLimitByEndpoint
	}
	if pendingBytesLimit == 0 {
		pendingBytesLimit = s.config.PendingBytesLimitByEndpoint
	}
	return &Group{
		config: GroupConfig{
			Name:                        name,
			QueueGroup:                  queueGroup,
			PendingMsgsLimitByEndpoint:  pendingMsgsLimit,
			PendingBytesLimitByEndpoint: pendingBytesLimit,
		},
		service: s,
	}, nil
}

// AddEndpoint registers a new endpoint on the service (spec §4.2).
func (s *Service) AddEndpoint(opts EndpointOpts) (*Endpoint, error) {
	if opts.Name == "" {
		return nil, fmt.Errorf("%w: endpoint name", ErrArgRequired)
	}
	if opts.Handler == nil {
		return nil, ErrHandlerRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil, ErrServiceStopped
	}
	config := s.config.endpointConfig(opts)
	ep := newEndpoint(config)
	sub, err := s.nc.QueueSubscribe(config.Subject, config.QueueGroup, func(msg *nats.Msg) {
		ep.dispatch(newNATSRequest(s.nc, msg))
	})
	if err != nil {
		return nil, fmt.Errorf("subscribing %s: %w", config.Subject, err)
	}
	ep.sub = sub
	s.endpoints = append(s.endpoints, ep)
	return ep, nil
}

// Stop drains every endpoint subscription, then unsubscribes the
// monitoring subjects. Both phases run concurrently within themselves
// (spec §3: "both steps are concurrent within themselves").
func (s *Service) Stop() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	endpoints := make([]*Endpoint, len(s.endpoints))
	copy(endpoints, s.endpoints)
	allSubs := make([]*nats.Subscription, 0, len(s.pingSubs)+len(s.infoSubs)+len(s.statsSubs))
	allSubs = append(allSubs, s.statsSubs...)
	allSubs = append(allSubs, s.infoSubs...)
	allSubs = append(allSubs, s.pingSubs...)
	s.mu.Unlock()

	var wg sync.WaitGroup
	errs := make([]error, len(endpoints))
	for i, ep := range endpoints {
		wg.Add(1)
		go func(i int, ep *Endpoint) {
			defer wg.Done()
			errs[i] = ep.stop()
		}(i, ep)
	}
	wg.Wait()

	subErrs := make([]error, len(allSubs))
	var subWg sync.WaitGroup
	for i, sub := range allSubs {
		subWg.Add(1)
		go func(i int, sub *nats.Subscription) {
			defer subWg.Done()
			subErrs[i] = sub.Unsubscribe()
		}(i, sub)
	}
	subWg.Wait()

	s.l.Info("service stopped", "id", s.id)
	if s.config.DoneHandler != nil {
		s.config.DoneHandler(s)
	}
	return errors.Join(append(errs, subErrs...)...)
}

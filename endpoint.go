package micro

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// Handler processes a single request received by an endpoint. Returning an
// error causes the dispatch wrapper to record the error on the endpoint's
// statistics and, unless the handler already sent its own response, to
// send a generic 500 response.
type Handler func(req Request) error

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(req Request) error

func marshalResponse(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMarshalResponse, err)
	}
	return data, nil
}

// Endpoint manages a single registered request handler: its configuration,
// live subscription and accumulated statistics.
type Endpoint struct {
	config EndpointConfig

	mu      sync.Mutex
	stats   EndpointStats
	started time.Time

	sub *nats.Subscription
}

func newEndpoint(config EndpointConfig) *Endpoint {
	return &Endpoint{
		config: config,
		stats: EndpointStats{
			Name:       config.Name,
			Subject:    config.Subject,
			QueueGroup: config.QueueGroup,
		},
	}
}

// reset clears the accumulated statistics for this endpoint.
func (e *Endpoint) reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stats = EndpointStats{
		Name:       e.config.Name,
		Subject:    e.config.Subject,
		QueueGroup: e.config.QueueGroup,
	}
}

// stop drains the endpoint's subscription, if any.
func (e *Endpoint) stop() error {
	if e.sub == nil {
		return nil
	}
	err := e.sub.Drain()
	e.sub = nil
	return err
}

func (e *Endpoint) info() EndpointInfo {
	return EndpointInfo{
		Name:       e.config.Name,
		Subject:    e.config.Subject,
		QueueGroup: e.config.QueueGroup,
		Metadata:   cloneMetadata(e.config.Metadata),
	}
}

func (e *Endpoint) snapshot() EndpointStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

// dispatch wraps the endpoint's handler with the timing and counter
// bookkeeping that feeds STATS, plus the generic 500 fallback when a
// handler returns an error without having replied itself.
func (e *Endpoint) dispatch(req Request) {
	start := time.Now()

	e.mu.Lock()
	e.stats.NumRequests++
	e.mu.Unlock()

	err := e.config.Handler(req)

	elapsed := time.Since(start).Nanoseconds()

	e.mu.Lock()
	if err != nil {
		e.stats.NumErrors++
		e.stats.LastError = err.Error()
	}
	e.stats.ProcessingTime += elapsed
	e.stats.AverageProcessingTime = e.stats.ProcessingTime / e.stats.NumRequests
	e.mu.Unlock()

	if err != nil && !alreadyResponded(req) {
		_ = req.RespondError("500", "Internal Server Error", nil, nil)
	}
}

// respondedChecker is implemented by Request implementations that can
// report whether Respond/RespondError has already fired, so dispatch does
// not attempt a second reply on top of one the handler already sent.
type respondedChecker interface {
	hasResponded() bool
}

func alreadyResponded(req Request) bool {
	rc, ok := req.(respondedChecker)
	return ok && rc.hasResponded()
}

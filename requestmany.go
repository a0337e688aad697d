package micro

import (
	"time"

	"github.com/nats-io/nats.go"
)

// defaultMaxWait is used when neither MaxWait nor MaxInterval is set
// (spec §4.6).
const defaultMaxWait = 500 * time.Millisecond

// RequestManyOpts configures a request-many call (spec §4.6). The zero
// value requests the default 500ms overall wait with no count or idle
// cutoff.
type RequestManyOpts struct {
	Headers nats.Header

	// ReplyInbox overrides the auto-generated reply subject.
	ReplyInbox string

	// MaxWait bounds the overall collection window, measured from
	// publication. Defaults to 500ms if both MaxWait and MaxInterval are
	// zero.
	MaxWait time.Duration

	// MaxCount stops collection once this many replies have arrived; the
	// subscription auto-unsubscribes at that count.
	MaxCount int

	// MaxInterval stops collection once this long has elapsed with no
	// reply received.
	MaxInterval time.Duration

	// StopOnSentinel stops collection, without counting the triggering
	// reply, as soon as a reply with an empty body arrives.
	StopOnSentinel bool
}

func (o RequestManyOpts) withDefaults() RequestManyOpts {
	if o.MaxWait == 0 && o.MaxInterval == 0 {
		o.MaxWait = defaultMaxWait
	}
	return o
}

// RequestMany publishes a single request and collects replies until the
// first of up to three termination conditions fires (spec §4.6). It never
// returns an error solely because zero replies were collected.
func RequestMany(nc *nats.Conn, subject string, payload []byte, opts RequestManyOpts) ([]*nats.Msg, error) {
	opts = opts.withDefaults()
	inbox := opts.ReplyInbox
	if inbox == "" {
		inbox = nc.NewInbox()
	}

	msgs := make(chan *nats.Msg, 64)
	sub, err := nc.ChanSubscribe(inbox, msgs)
	if err != nil {
		return nil, err
	}
	defer safeUnsubscribe(sub)
	if opts.MaxCount > 0 {
		_ = sub.AutoUnsubscribe(opts.MaxCount)
	}

	var overallTimer, idleTimer *time.Timer
	var overallC, idleC <-chan time.Time
	if opts.MaxWait > 0 {
		overallTimer = time.NewTimer(opts.MaxWait)
		defer overallTimer.Stop()
		overallC = overallTimer.C
	}
	resetIdle := func() {}
	if opts.MaxInterval > 0 {
		idleTimer = time.NewTimer(opts.MaxInterval)
		defer idleTimer.Stop()
		idleC = idleTimer.C
		resetIdle = func() {
			if !idleTimer.Stop() {
				select {
				case <-idleTimer.C:
				default:
				}
			}
			idleTimer.Reset(opts.MaxInterval)
		}
	}

	reply := &nats.Msg{Subject: subject, Data: payload, Header: opts.Headers, Reply: inbox}
	if err := nc.PublishMsg(reply); err != nil {
		return nil, err
	}

	var replies []*nats.Msg
	for {
		select {
		case msg := <-msgs:
			if opts.StopOnSentinel && len(msg.Data) == 0 {
				return replies, nil
			}
			replies = append(replies, msg)
			resetIdle()
			if opts.MaxCount > 0 && len(replies) >= opts.MaxCount {
				return replies, nil
			}
		case <-overallC:
			return replies, nil
		case <-idleC:
			return replies, nil
		}
	}
}

func safeUnsubscribe(sub *nats.Subscription) {
	if sub.IsValid() {
		_ = sub.Unsubscribe()
	}
}

// RequestManyIterator streams replies to a request-many call as they
// arrive, applying the same termination rules as RequestMany.
type RequestManyIterator struct {
	nc   *nats.Conn
	sub  *nats.Subscription
	msgs chan *nats.Msg

	opts RequestManyOpts

	overallTimer *time.Timer
	idleTimer    *time.Timer
	overallC     <-chan time.Time
	idleC        <-chan time.Time

	received int
	closed   bool
}

// NewRequestManyIterator publishes the request and returns an iterator
// over its replies. Call Close when done, even after exhausting Next.
func NewRequestManyIterator(nc *nats.Conn, subject string, payload []byte, opts RequestManyOpts) (*RequestManyIterator, error) {
	opts = opts.withDefaults()
	inbox := opts.ReplyInbox
	if inbox == "" {
		inbox = nc.NewInbox()
	}
	msgs := make(chan *nats.Msg, 64)
	sub, err := nc.ChanSubscribe(inbox, msgs)
	if err != nil {
		return nil, err
	}
	if opts.MaxCount > 0 {
		_ = sub.AutoUnsubscribe(opts.MaxCount)
	}

	it := &RequestManyIterator{nc: nc, sub: sub, msgs: msgs, opts: opts}
	if opts.MaxWait > 0 {
		it.overallTimer = time.NewTimer(opts.MaxWait)
		it.overallC = it.overallTimer.C
	}
	if opts.MaxInterval > 0 {
		it.idleTimer = time.NewTimer(opts.MaxInterval)
		it.idleC = it.idleTimer.C
	}

	reply := &nats.Msg{Subject: subject, Data: payload, Header: opts.Headers, Reply: inbox}
	if err := nc.PublishMsg(reply); err != nil {
		it.Close()
		return nil, err
	}
	return it, nil
}

func (it *RequestManyIterator) resetIdle() {
	if it.idleTimer == nil {
		return
	}
	if !it.idleTimer.Stop() {
		select {
		case <-it.idleTimer.C:
		default:
		}
	}
	it.idleTimer.Reset(it.opts.MaxInterval)
}

// Next blocks until the next reply, or returns (nil, false) once any
// termination condition has fired.
func (it *RequestManyIterator) Next() (*nats.Msg, bool) {
	if it.closed {
		return nil, false
	}
	if it.opts.MaxCount > 0 && it.received >= it.opts.MaxCount {
		return nil, false
	}
	select {
	case msg, ok := <-it.msgs:
		if !ok {
			return nil, false
		}
		it.received++
		it.resetIdle()
		if it.opts.StopOnSentinel && len(msg.Data) == 0 {
			return nil, false
		}
		return msg, true
	case <-it.overallC:
		return nil, false
	case <-it.idleC:
		return nil, false
	}
}

// Close releases the iterator's subscription and timers. Safe to call more
// than once.
func (it *RequestManyIterator) Close() {
	if it.closed {
		return
	}
	it.closed = true
	if it.overallTimer != nil {
		it.overallTimer.Stop()
	}
	if it.idleTimer != nil {
		it.idleTimer.Stop()
	}
	safeUnsubscribe(it.sub)
}

// TransformIterator decodes each raw reply from it using decode, skipping
// replies decode rejects.
func TransformIterator[T any](it *RequestManyIterator, decode func(*nats.Msg) (T, error)) func() (T, bool) {
	return func() (T, bool) {
		for {
			msg, ok := it.Next()
			if !ok {
				var zero T
				return zero, false
			}
			v, err := decode(msg)
			if err != nil {
				continue
			}
			return v, true
		}
	}
}

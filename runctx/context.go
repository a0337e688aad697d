// Package runctx provides a scoped lifecycle for a process that hosts one
// or more services: a teardown stack, a one-shot cancel flag, and OS
// signal trapping (spec §4.8). It is the Go counterpart of the reference
// implementation's Context, built on an explicit teardown slice and
// sync.Once instead of contextlib.AsyncExitStack.
package runctx

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	micro "github.com/charbonats/nats-micro"
	"github.com/nats-io/nats.go"
)

// Context owns an ordered teardown stack and a one-shot cancel flag.
// Teardown runs in reverse order of acquisition on Close, regardless of
// error or cancellation (spec §4.8).
type Context struct {
	logger *slog.Logger

	mu       sync.Mutex
	teardown []func()

	cancelOnce sync.Once
	cancelCh   chan struct{}

	conn *nats.Conn
}

// New creates an empty Context.
func New(logger *slog.Logger) *Context {
	if logger == nil {
		logger = slog.Default().With("component", "runctx")
	}
	return &Context{logger: logger, cancelCh: make(chan struct{})}
}

// Enter registers release to run, in LIFO order, when the context closes.
func (c *Context) Enter(release func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.teardown = append(c.teardown, release)
}

// Connect dials the NATS server and registers the connection's Close for
// teardown. It does not return an error when the context is already
// cancelled; it simply does not connect.
func (c *Context) Connect(cfg micro.ConnectConfig) (*nats.Conn, error) {
	if c.Cancelled() {
		return nil, nil
	}
	nc, err := micro.Connect(cfg)
	if err != nil {
		return nil, err
	}
	c.conn = nc
	c.Enter(func() { nc.Close() })
	return nc, nil
}

// Conn returns the connection established by Connect, or nil.
func (c *Context) Conn() *nats.Conn {
	return c.conn
}

// AddService starts a service and registers its Stop for teardown.
func (c *Context) AddService(opt micro.ServiceOptions) (*micro.Service, error) {
	if opt.Conn == nil {
		opt.Conn = c.conn
	}
	svc, err := micro.AddService(opt)
	if err != nil {
		return nil, err
	}
	c.Enter(func() {
		if err := svc.Stop(); err != nil {
			c.logger.Error("stopping service", "err", err)
		}
	})
	return svc, nil
}

// TrapSignal converts the given OS signals (SIGINT, SIGTERM by default)
// into a call to Cancel.
func (c *Context) TrapSignal(signals ...os.Signal) {
	if len(signals) == 0 {
		signals = defaultSignals
	}
	notify := make(chan os.Signal, 1)
	signal.Notify(notify, signals...)
	go func() {
		select {
		case sig := <-notify:
			c.logger.Info("signal received", "signal", sig)
			c.Cancel()
		case <-c.cancelCh:
		}
	}()
	c.Enter(func() { signal.Stop(notify) })
}

// Cancel sets the cancel flag. Safe to call more than once or
// concurrently.
func (c *Context) Cancel() {
	c.cancelOnce.Do(func() { close(c.cancelCh) })
}

// Cancelled reports whether Cancel has been called.
func (c *Context) Cancelled() bool {
	select {
	case <-c.cancelCh:
		return true
	default:
		return false
	}
}

// Wait blocks until Cancel is called.
func (c *Context) Wait() {
	<-c.cancelCh
}

// Done returns a channel closed when Cancel is called, for use in select
// statements and as a context.Context's Done channel via AsContext.
func (c *Context) Done() <-chan struct{} {
	return c.cancelCh
}

// WaitFor runs fn in a goroutine and returns when either fn returns or the
// context is cancelled, whichever happens first. It never returns an error
// solely because the context was cancelled; check Cancelled to tell the
// two cases apart.
func (c *Context) WaitFor(fn func() error) error {
	done := make(chan error, 1)
	go func() {
		done <- fn()
	}()
	select {
	case err := <-done:
		return err
	case <-c.cancelCh:
		return nil
	}
}

// Close runs the teardown stack in reverse order of registration. Errors
// are not expected from teardown callbacks; panics are not recovered so a
// programming error in a callback surfaces immediately.
func (c *Context) Close() {
	c.mu.Lock()
	stack := c.teardown
	c.teardown = nil
	c.mu.Unlock()

	for i := len(stack) - 1; i >= 0; i-- {
		stack[i]()
	}
}

var defaultSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}

// Run composes the whole lifecycle: optionally trap signals, connect, run
// setup, then wait for cancellation; teardown always runs on return (spec
// §4.8: "run(setup, opts...) composes these").
func Run(connectCfg micro.ConnectConfig, trapSignals bool, setup func(*Context) error) error {
	ctx := New(nil)
	defer ctx.Close()

	if trapSignals {
		ctx.TrapSignal()
	}

	if _, err := ctx.Connect(connectCfg); err != nil {
		return err
	}
	if ctx.Cancelled() {
		return nil
	}

	if setup != nil {
		if err := ctx.WaitFor(func() error { return setup(ctx) }); err != nil {
			return err
		}
		if ctx.Cancelled() {
			return nil
		}
	}

	ctx.Wait()
	return nil
}

// AsContext adapts Context to the standard context.Context interface so
// it can be threaded through request-scoped calls (e.g. Client.Request).
func (c *Context) AsContext() context.Context {
	return &stdContextAdapter{c}
}

type stdContextAdapter struct {
	c *Context
}

func (a *stdContextAdapter) Deadline() (deadline time.Time, ok bool) { return deadline, false }

func (a *stdContextAdapter) Done() <-chan struct{} { return a.c.cancelCh }

func (a *stdContextAdapter) Err() error {
	if a.c.Cancelled() {
		return context.Canceled
	}
	return nil
}

func (a *stdContextAdapter) Value(key any) any { return nil }

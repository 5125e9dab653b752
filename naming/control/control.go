// Package control is the front door of the naming service: callers queue
// resolve and register requests and wait for the answer, while the DHT
// behaviour consumes the queue on its own goroutine.
package control

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"gitlab.com/alternet/naming-service/naming/record"
)

var ErrClosed = errors.New("naming control closed")

var tracer = otel.Tracer("gitlab.com/alternet/naming-service/naming/control")

func startSpan(ctx context.Context, op string, name record.Name) (context.Context, trace.Span) {
	return tracer.Start(ctx, "naming."+op, trace.WithAttributes(attribute.String("naming.name", name.String())))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Control is safe for concurrent use; share the pointer.
type Control struct {
	requests chan Request
	done     chan struct{}

	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
}

// New returns the control handle and the queue the behaviour reads from.
// The queue is closed after Close once every in-flight send has returned.
func New(queueSize int) (*Control, <-chan Request) {
	c := &Control{
		requests: make(chan Request, queueSize),
		done:     make(chan struct{}),
	}
	return c, c.requests
}

func (c *Control) send(ctx context.Context, req Request) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		zlog.Warn("request on closed control", zap.Stringer("request", req.RequestID()))
		return ErrClosed
	}
	select {
	case c.requests <- req:
		return nil
	case <-c.done:
		zlog.Warn("control closed while queueing request", zap.Stringer("request", req.RequestID()))
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ResolveAsync queues a resolution and returns where its answer will arrive.
// Queueing failures are delivered on the same channel.
func (c *Control) ResolveAsync(ctx context.Context, name record.Name) <-chan ResolveResponse {
	reply := make(chan ResolveResponse, 1)
	if err := c.send(ctx, &ResolveRequest{ID: uuid.New(), Name: name, Reply: reply}); err != nil {
		reply <- ResolveResponse{Err: err}
	}
	return reply
}

// Resolve returns the addresses currently published for name. An empty
// result with a nil error means nobody has published a valid record.
func (c *Control) Resolve(ctx context.Context, name record.Name) (addrs []multiaddr.Multiaddr, err error) {
	ctx, span := startSpan(ctx, "Resolve", name)
	defer func() {
		span.SetAttributes(attribute.Int("naming.addrs", len(addrs)))
		endSpan(span, err)
	}()

	select {
	case res := <-c.ResolveAsync(ctx, name):
		return res.Addrs, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Control) RegisterAsync(ctx context.Context, name record.Name) <-chan error {
	reply := make(chan error, 1)
	if err := c.send(ctx, &RegisterRequest{ID: uuid.New(), Name: name, Reply: reply}); err != nil {
		reply <- err
	}
	return reply
}

// Register claims name for this node and publishes it.
func (c *Control) Register(ctx context.Context, name record.Name) (err error) {
	ctx, span := startSpan(ctx, "Register", name)
	defer func() { endSpan(span, err) }()

	return wait(ctx, c.RegisterAsync(ctx, name))
}

// Deregister stops republishing name. It returns once the request is queued.
func (c *Control) Deregister(ctx context.Context, name record.Name) error {
	return c.send(ctx, &DeregisterRequest{ID: uuid.New(), Name: name})
}

// Grant leases subdomain to leasee until the given time.
func (c *Control) Grant(ctx context.Context, subdomain record.Name, leasee peer.ID, until time.Time) (err error) {
	ctx, span := startSpan(ctx, "Grant", subdomain)
	span.SetAttributes(attribute.String("naming.leasee", leasee.String()))
	defer func() { endSpan(span, err) }()

	reply := make(chan error, 1)
	req := &GrantRequest{ID: uuid.New(), Subdomain: subdomain, Leasee: leasee, Until: until, Reply: reply}
	if err := c.send(ctx, req); err != nil {
		return err
	}
	return wait(ctx, reply)
}

func wait(ctx context.Context, reply <-chan error) error {
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting requests. It is safe to call more than once.
func (c *Control) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.mu.Lock()
		c.closed = true
		close(c.requests)
		c.mu.Unlock()
	})
}

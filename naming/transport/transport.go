// Package transport wraps a libp2p transport so that addresses may name
// their peer by domain (/an/<domain>). Listening on such an address
// registers the domain; dialing one resolves it first.
package transport

import (
	"context"
	"sync"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/transport"
	"github.com/multiformats/go-multiaddr"
	"github.com/pkg/errors"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/iter"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"gitlab.com/alternet/naming-service/naming/maddr"
	"gitlab.com/alternet/naming-service/naming/record"
)

// Naming is the part of the control plane the transport needs.
// *control.Control implements it.
type Naming interface {
	Resolve(ctx context.Context, name record.Name) ([]multiaddr.Multiaddr, error)
	RegisterAsync(ctx context.Context, name record.Name) <-chan error
	Deregister(ctx context.Context, name record.Name) error
}

type ListenerID uint64

// Event is a connection accepted on a listener started with ListenOn, or the
// error that stopped the listener.
type Event struct {
	ListenerID ListenerID
	Conn       transport.CapableConn
	Err        error
}

type Registration struct {
	Domain record.Name
	Err    error
}

type Config struct {
	Self   peer.ID
	Inner  transport.Transport
	Naming Naming
	// EnableDeregister withdraws a domain once its last listener is gone.
	EnableDeregister bool
}

type Transport struct {
	self             peer.ID
	naming           Naming
	enableDeregister bool

	innerMu sync.Mutex
	inner   transport.Transport

	mu        sync.Mutex
	listeners map[ListenerID]*tracked
	// reserved holds ids whose ListenOn has not finished yet
	reserved map[ListenerID]struct{}
	domains  map[record.Name]int
	nextID   ListenerID

	registrations conc.WaitGroup
	results       chan Registration
	events        chan Event
	closed        chan struct{}
	closeOnce     sync.Once
}

type tracked struct {
	listener transport.Listener
	domain   record.Name
	named    bool
}

var _ transport.Transport = (*Transport)(nil)

func New(cfg Config) *Transport {
	return &Transport{
		self:             cfg.Self,
		naming:           cfg.Naming,
		enableDeregister: cfg.EnableDeregister,
		inner:            cfg.Inner,
		listeners:        make(map[ListenerID]*tracked),
		reserved:         make(map[ListenerID]struct{}),
		domains:          make(map[record.Name]int),
		results:          make(chan Registration, 16),
		events:           make(chan Event, 16),
		closed:           make(chan struct{}),
	}
}

// Events carries what listeners started with ListenOn accept.
func (t *Transport) Events() <-chan Event { return t.events }

// Registrations carries the outcome of every domain registration.
func (t *Transport) Registrations() <-chan Registration { return t.results }

// Run logs registration outcomes until ctx is done or the transport closes.
func (t *Transport) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.closed:
			return
		case r := <-t.results:
			if r.Err != nil {
				zlog.Sugar().Errorf("failed to register %s: %v", r.Domain, r.Err)
				continue
			}
			zlog.Info("registered domain", zap.Stringer("domain", r.Domain))
		}
	}
}

func (t *Transport) allocID() ListenerID {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextID++
	return t.nextID
}

func (t *Transport) isClosed() bool {
	select {
	case <-t.closed:
		return true
	default:
		return false
	}
}

// listen rewrites addr, listens on the inner transport and registers the
// domain when it is the first listener for it.
func (t *Transport) listen(id ListenerID, addr multiaddr.Multiaddr) (transport.Listener, error) {
	if t.isClosed() {
		return nil, ErrClosed
	}
	self, err := multiaddr.NewComponent("p2p", t.self.String())
	if err != nil {
		return nil, errors.Wrap(err, "building /p2p component")
	}
	domain, rewritten, named, err := maddr.ReplaceListenMarker(addr, self)
	if err != nil {
		return nil, err
	}

	t.innerMu.Lock()
	l, err := t.inner.Listen(rewritten)
	t.innerMu.Unlock()
	if err != nil {
		return nil, &Error{Op: "listen", Err: err}
	}

	t.mu.Lock()
	t.listeners[id] = &tracked{listener: l, domain: domain, named: named}
	first := false
	if named {
		t.domains[domain]++
		first = t.domains[domain] == 1
	}
	t.mu.Unlock()

	if first {
		t.register(domain)
	}
	return l, nil
}

func (t *Transport) register(domain record.Name) {
	reply := t.naming.RegisterAsync(context.Background(), domain)
	t.registrations.Go(func() {
		var err error
		select {
		case err = <-reply:
		case <-t.closed:
			return
		}
		select {
		case t.results <- Registration{Domain: domain, Err: err}:
		case <-t.closed:
		}
	})
}

// ListenOn starts listening on addr and delivers accepted connections on
// Events under id.
func (t *Transport) ListenOn(id ListenerID, addr multiaddr.Multiaddr) error {
	t.mu.Lock()
	_, taken := t.listeners[id]
	_, pending := t.reserved[id]
	if taken || pending {
		t.mu.Unlock()
		return errors.Errorf("listener %d already exists", id)
	}
	t.reserved[id] = struct{}{}
	if id > t.nextID {
		t.nextID = id
	}
	t.mu.Unlock()
	defer func() {
		t.mu.Lock()
		delete(t.reserved, id)
		t.mu.Unlock()
	}()

	l, err := t.listen(id, addr)
	if err != nil {
		return err
	}
	go t.accept(id, l)
	return nil
}

func (t *Transport) accept(id ListenerID, l transport.Listener) {
	for {
		conn, err := l.Accept()
		if err != nil {
			if !t.hasListener(id) {
				return
			}
			t.emit(Event{ListenerID: id, Err: &Error{Op: "accept", Err: err}})
			return
		}
		if !t.emit(Event{ListenerID: id, Conn: conn}) {
			conn.Close()
			return
		}
	}
}

func (t *Transport) emit(ev Event) bool {
	select {
	case t.events <- ev:
		return true
	case <-t.closed:
		return false
	}
}

func (t *Transport) hasListener(id ListenerID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.listeners[id]
	return ok
}

// Listen implements transport.Transport. Closing the returned listener
// removes it.
func (t *Transport) Listen(laddr multiaddr.Multiaddr) (transport.Listener, error) {
	id := t.allocID()
	l, err := t.listen(id, laddr)
	if err != nil {
		return nil, err
	}
	return &listener{Listener: l, id: id, t: t}, nil
}

// RemoveListener closes the listener and reports whether it existed.
func (t *Transport) RemoveListener(id ListenerID) bool {
	ok, err := t.removeListener(id)
	if err != nil {
		zlog.Sugar().Warnf("closing listener %d: %v", id, err)
	}
	return ok
}

func (t *Transport) removeListener(id ListenerID) (bool, error) {
	t.mu.Lock()
	tr, ok := t.listeners[id]
	last := false
	if ok {
		delete(t.listeners, id)
		if tr.named {
			t.domains[tr.domain]--
			if t.domains[tr.domain] == 0 {
				delete(t.domains, tr.domain)
				last = true
			}
		}
	}
	t.mu.Unlock()
	if !ok {
		return false, nil
	}

	err := tr.listener.Close()
	if last && t.enableDeregister {
		domain := tr.domain
		t.registrations.Go(func() {
			if err := t.naming.Deregister(context.Background(), domain); err != nil {
				zlog.Sugar().Errorf("failed to deregister %s: %v", domain, err)
			}
		})
	}
	return true, err
}

// Dial resolves every /an component of raddr and dials the combinations in
// order, rightmost domain varying fastest, until one connects.
func (t *Transport) Dial(ctx context.Context, raddr multiaddr.Multiaddr, p peer.ID) (transport.CapableConn, error) {
	if !maddr.HasMarker(raddr) {
		return t.dialInner(ctx, raddr, p)
	}
	start, segments, err := maddr.SplitMarkers(raddr)
	if err != nil {
		return nil, err
	}

	candidates, err := t.resolveAll(ctx, segments)
	if err != nil {
		return nil, err
	}

	dialErr := &DialError{Addr: raddr}
	odometer := make([]int, len(segments))
	for {
		parts := make([]multiaddr.Multiaddr, 0, 1+2*len(segments))
		parts = append(parts, start)
		for i, seg := range segments {
			parts = append(parts, candidates[i][odometer[i]], seg.Rest)
		}
		addr := maddr.Join(parts...)

		conn, err := t.dialInner(ctx, addr, p)
		if err == nil {
			return conn, nil
		}
		dialErr.Attempts = append(dialErr.Attempts, Attempt{Addr: addr, Err: err})
		if ctx.Err() != nil || !advance(odometer, candidates) {
			return nil, dialErr
		}
	}
}

// advance steps the odometer and reports false once it wraps around.
func advance(odometer []int, candidates [][]multiaddr.Multiaddr) bool {
	for i := len(odometer) - 1; i >= 0; i-- {
		odometer[i]++
		if odometer[i] < len(candidates[i]) {
			return true
		}
		odometer[i] = 0
	}
	return false
}

type resolved struct {
	addrs []multiaddr.Multiaddr
	err   error
}

func (t *Transport) resolveAll(ctx context.Context, segments []maddr.Segment) ([][]multiaddr.Multiaddr, error) {
	results := iter.Map(segments, func(seg *maddr.Segment) resolved {
		addrs, err := t.naming.Resolve(ctx, seg.Domain)
		if err == nil && len(addrs) == 0 {
			err = ErrNoAddresses
		}
		if err != nil {
			return resolved{err: &ResolveError{Domain: seg.Domain, Err: err}}
		}
		return resolved{addrs: addrs}
	})

	candidates := make([][]multiaddr.Multiaddr, len(results))
	for i, r := range results {
		if r.err != nil {
			return nil, r.err
		}
		candidates[i] = r.addrs
	}
	return candidates, nil
}

func (t *Transport) dialInner(ctx context.Context, addr multiaddr.Multiaddr, p peer.ID) (transport.CapableConn, error) {
	if p == "" {
		if _, id := peer.SplitAddr(addr); id != "" {
			p = id
		}
	}
	t.innerMu.Lock()
	inner := t.inner
	t.innerMu.Unlock()
	return inner.Dial(ctx, addr, p)
}

// CanDial accepts every address with an /an component, since what it
// resolves to is unknown until dialing.
func (t *Transport) CanDial(addr multiaddr.Multiaddr) bool {
	if maddr.HasMarker(addr) {
		return true
	}
	t.innerMu.Lock()
	defer t.innerMu.Unlock()
	return t.inner.CanDial(addr)
}

func (t *Transport) Protocols() []int {
	t.innerMu.Lock()
	defer t.innerMu.Unlock()
	return append(t.inner.Protocols(), maddr.P_AN)
}

func (t *Transport) Proxy() bool {
	t.innerMu.Lock()
	defer t.innerMu.Unlock()
	return t.inner.Proxy()
}

// Close closes every listener and waits for pending registrations.
func (t *Transport) Close() error {
	var errs error
	t.closeOnce.Do(func() {
		close(t.closed)

		t.mu.Lock()
		listeners := t.listeners
		t.listeners = make(map[ListenerID]*tracked)
		t.domains = make(map[record.Name]int)
		t.mu.Unlock()

		for _, tr := range listeners {
			errs = multierr.Append(errs, tr.listener.Close())
		}
		t.registrations.Wait()
	})
	return errs
}

type listener struct {
	transport.Listener
	id ListenerID
	t  *Transport
}

func (l *listener) Close() error {
	_, err := l.t.removeListener(l.id)
	return err
}

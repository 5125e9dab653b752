package transport

import (
	"context"
	"net"
	"sync"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/transport"
	"github.com/multiformats/go-multiaddr"
	"github.com/pkg/errors"

	"gitlab.com/alternet/naming-service/naming/record"
)

type fakeConn struct {
	transport.CapableConn
	addr multiaddr.Multiaddr
	peer peer.ID
}

func (c *fakeConn) Close() error { return nil }

type dialCall struct {
	addr string
	peer peer.ID
}

// fakeTransport refuses every dial except to the addresses in accept.
type fakeTransport struct {
	mu        sync.Mutex
	accept    map[string]bool
	dials     []dialCall
	listens   []string
	listeners []*fakeListener
	// closeErr is returned by every listener's Close
	closeErr  error
}

func newFakeTransport(accept ...string) *fakeTransport {
	f := &fakeTransport{accept: map[string]bool{}}
	for _, a := range accept {
		f.accept[a] = true
	}
	return f
}

func (f *fakeTransport) Dial(_ context.Context, raddr multiaddr.Multiaddr, p peer.ID) (transport.CapableConn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dials = append(f.dials, dialCall{addr: raddr.String(), peer: p})
	if f.accept[raddr.String()] {
		return &fakeConn{addr: raddr, peer: p}, nil
	}
	return nil, errors.Errorf("connection refused by %s", raddr)
}

func (f *fakeTransport) CanDial(addr multiaddr.Multiaddr) bool {
	_, err := addr.ValueForProtocol(multiaddr.P_TCP)
	return err == nil
}

func (f *fakeTransport) Listen(laddr multiaddr.Multiaddr) (transport.Listener, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listens = append(f.listens, laddr.String())
	l := &fakeListener{addr: laddr, conns: make(chan transport.CapableConn, 1), closed: make(chan struct{}), closeErr: f.closeErr}
	f.listeners = append(f.listeners, l)
	return l, nil
}

func (f *fakeTransport) Protocols() []int { return []int{multiaddr.P_TCP} }

func (f *fakeTransport) Proxy() bool { return false }

func (f *fakeTransport) dialed() []dialCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]dialCall(nil), f.dials...)
}

type fakeListener struct {
	addr     multiaddr.Multiaddr
	closeErr error
	conns    chan transport.CapableConn
	once     sync.Once
	closed   chan struct{}
}

func (l *fakeListener) Accept() (transport.CapableConn, error) {
	select {
	case c := <-l.conns:
		return c, nil
	case <-l.closed:
		return nil, errors.New("listener closed")
	}
}

func (l *fakeListener) Close() error {
	l.once.Do(func() { close(l.closed) })
	return l.closeErr
}

func (l *fakeListener) isClosed() bool {
	select {
	case <-l.closed:
		return true
	default:
		return false
	}
}

func (l *fakeListener) Addr() net.Addr { return &net.TCPAddr{} }

func (l *fakeListener) Multiaddr() multiaddr.Multiaddr { return l.addr }

// fakeNaming answers from a fixed table.
type fakeNaming struct {
	mu           sync.Mutex
	addrs        map[string][]string
	failures     map[string]error
	registered   []string
	deregistered []string
}

func newFakeNaming() *fakeNaming {
	return &fakeNaming{addrs: map[string][]string{}, failures: map[string]error{}}
}

func (n *fakeNaming) Resolve(_ context.Context, name record.Name) ([]multiaddr.Multiaddr, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.failures[name.String()]; err != nil {
		return nil, err
	}
	var out []multiaddr.Multiaddr
	for _, a := range n.addrs[name.String()] {
		out = append(out, multiaddr.StringCast(a))
	}
	return out, nil
}

func (n *fakeNaming) RegisterAsync(_ context.Context, name record.Name) <-chan error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.registered = append(n.registered, name.String())
	reply := make(chan error, 1)
	reply <- n.failures[name.String()]
	return reply
}

func (n *fakeNaming) Deregister(_ context.Context, name record.Name) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.deregistered = append(n.deregistered, name.String())
	return nil
}

func (n *fakeNaming) calls() (registered, deregistered []string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.registered...), append([]string(nil), n.deregistered...)
}

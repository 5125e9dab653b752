package behaviour

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"
	"github.com/stretchr/testify/require"

	"gitlab.com/alternet/naming-service/naming/control"
	"gitlab.com/alternet/naming-service/naming/kad"
	"gitlab.com/alternet/naming-service/naming/record"
)

type node struct {
	key  crypto.PrivKey
	id   peer.ID
	addr multiaddr.Multiaddr
	ctl  *control.Control
	b    *Behaviour
}

func newKey(t *testing.T) (crypto.PrivKey, peer.ID) {
	t.Helper()
	priv, _, err := crypto.GenerateEd25519Key(rand.Reader)
	require.NoError(t, err)
	id, err := peer.IDFromPrivateKey(priv)
	require.NoError(t, err)
	return priv, id
}

// newNode starts a behaviour on dht and stops it when the test ends.
func newNode(t *testing.T, dht kad.DHT, opts ...func(*Config)) *node {
	t.Helper()
	key, id := newKey(t)
	ctl, queue := control.New(8)
	addr := multiaddr.StringCast(fmt.Sprintf("/ip4/127.0.0.1/tcp/4001/p2p/%s", id))

	cfg := Config{
		Key:      key,
		Requests: queue,
		DHT:      dht,
		Addrs:    func() []multiaddr.Multiaddr { return []multiaddr.Multiaddr{addr} },
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	b, err := New(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = b.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		ctl.Close()
		<-done
	})
	return &node{key: key, id: id, addr: addr, ctl: ctl, b: b}
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// stubDHT hands out query ids from ids and records the keys it was asked for.
type stubDHT struct {
	mu     sync.Mutex
	ids    []kad.QueryID
	gets   [][]byte
	puts   []kad.Record
	events chan kad.Event
}

func newStubDHT(ids ...kad.QueryID) *stubDHT {
	return &stubDHT{ids: ids, events: make(chan kad.Event)}
}

func (s *stubDHT) next() kad.QueryID {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.ids[0]
	if len(s.ids) > 1 {
		s.ids = s.ids[1:]
	}
	return id
}

func (s *stubDHT) GetRecord(_ context.Context, key []byte) kad.QueryID {
	s.mu.Lock()
	s.gets = append(s.gets, key)
	s.mu.Unlock()
	return s.next()
}

func (s *stubDHT) PutRecord(_ context.Context, rec kad.Record, _ kad.Quorum) (kad.QueryID, error) {
	s.mu.Lock()
	s.puts = append(s.puts, rec)
	s.mu.Unlock()
	return s.next(), nil
}

func (s *stubDHT) Events() <-chan kad.Event { return s.events }

func newStepBehaviour(t *testing.T, dht kad.DHT, opts ...func(*Config)) *Behaviour {
	t.Helper()
	key, _ := newKey(t)
	cfg := Config{Key: key, Requests: make(chan control.Request), DHT: dht}
	for _, opt := range opts {
		opt(&cfg)
	}
	b, err := New(cfg)
	require.NoError(t, err)
	return b
}

// pinRoot trusts owner for root without looking it up.
func pinRoot(root string, owner crypto.PrivKey) func(*Config) {
	return func(cfg *Config) {
		id, _ := peer.IDFromPrivateKey(owner)
		cfg.TrustedRoots = map[record.Name]peer.ID{record.MustParseName(root): id}
	}
}

func found(id kad.QueryID, rec kad.Record) *kad.QueryProgressed {
	return &kad.QueryProgressed{ID: id, Kind: kad.QueryGetRecord, Step: kad.Step{Count: 1}, Record: &rec}
}

func last(id kad.QueryID, err error) *kad.QueryProgressed {
	return &kad.QueryProgressed{ID: id, Kind: kad.QueryGetRecord, Step: kad.Step{Count: 2, Last: true}, Err: err}
}

// rootStored claims root for rootKey.
func rootStored(t *testing.T, rootKey crypto.PrivKey, root string) kad.Record {
	t.Helper()
	claim, err := record.Sign(rootKey, &record.RootRecord{Root: record.MustParseName(root), Addr: multiaddr.StringCast("/ip4/9.9.9.9/tcp/9")})
	require.NoError(t, err)
	return record.Publish(record.Chain{Record: claim.Generic()}, time.Time{})
}

// addrStored publishes addrs for a child of a root, leased by rootKey to a
// fresh key.
func addrStored(t *testing.T, rootKey crypto.PrivKey, name string, expires time.Time, addrs ...string) kad.Record {
	t.Helper()
	leafKey, leaf := newKey(t)
	n := record.MustParseName(name)

	lease, err := record.Sign(rootKey, &record.LeaseRecord{Subdomain: n, Leasee: leaf, Until: time.Now().Add(48 * time.Hour)})
	require.NoError(t, err)
	var mas []multiaddr.Multiaddr
	for _, a := range addrs {
		mas = append(mas, multiaddr.StringCast(a))
	}
	addr, err := record.Sign(leafKey, &record.AddrRecord{Domain: n, Addrs: mas})
	require.NoError(t, err)
	return record.Publish(record.Chain{Record: addr.Generic(), Leases: []record.Signed[*record.LeaseRecord]{lease}}, expires)
}

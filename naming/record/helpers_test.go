package record

import (
	"crypto/rand"
	"testing"
	"time"

	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"
	"github.com/stretchr/testify/require"
)

func newKey(t *testing.T) crypto.PrivKey {
	t.Helper()
	priv, _, err := crypto.GenerateEd25519Key(rand.Reader)
	require.NoError(t, err)
	return priv
}

func idOf(t *testing.T, priv crypto.PrivKey) peer.ID {
	t.Helper()
	id, err := peer.IDFromPrivateKey(priv)
	require.NoError(t, err)
	return id
}

func mustSign[T Record](t *testing.T, priv crypto.PrivKey, r T) Signed[T] {
	t.Helper()
	s, err := Sign(priv, r)
	require.NoError(t, err)
	return s
}

// chainFixture owns "an", leases "b.an" to mid and "a.b.an" to leaf.
type chainFixture struct {
	now  time.Time
	root crypto.PrivKey
	mid  crypto.PrivKey
	leaf crypto.PrivKey

	midLease  Signed[*LeaseRecord]
	leafLease Signed[*LeaseRecord]
}

func newChainFixture(t *testing.T) *chainFixture {
	t.Helper()
	f := &chainFixture{
		now:  time.Unix(1_700_000_000, 0).UTC(),
		root: newKey(t),
		mid:  newKey(t),
		leaf: newKey(t),
	}
	f.midLease = mustSign(t, f.root, &LeaseRecord{
		Subdomain: MustParseName("b.an"),
		Leasee:    idOf(t, f.mid),
		Until:     f.now.Add(48 * time.Hour),
	})
	f.leafLease = mustSign(t, f.mid, &LeaseRecord{
		Subdomain: MustParseName("a.b.an"),
		Leasee:    idOf(t, f.leaf),
		Until:     f.now.Add(24 * time.Hour),
	})
	return f
}

func (f *chainFixture) addrChain(t *testing.T) Chain {
	t.Helper()
	addr := mustSign(t, f.leaf, &AddrRecord{
		Domain: MustParseName("a.b.an"),
		Addrs: []multiaddr.Multiaddr{
			multiaddr.StringCast("/ip4/10.0.0.1/tcp/4001"),
			multiaddr.StringCast("/ip6/::1/udp/4001/quic-v1"),
		},
	})
	return Chain{Record: addr.Generic(), Leases: []Signed[*LeaseRecord]{f.leafLease, f.midLease}}
}

func (f *chainFixture) leafLeaseChain() Chain {
	return Chain{Record: f.leafLease.Generic(), Leases: []Signed[*LeaseRecord]{f.midLease}}
}

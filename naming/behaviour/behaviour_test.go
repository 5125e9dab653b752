package behaviour

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/test"
	"github.com/multiformats/go-multiaddr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/alternet/naming-service/naming/control"
	"gitlab.com/alternet/naming-service/naming/kad"
	"gitlab.com/alternet/naming-service/naming/record"
)

func TestRegisterAndResolveRoot(t *testing.T) {
	t.Parallel()

	dht := kad.NewMemoryDHT()
	defer dht.Close()
	owner := newNode(t, dht)
	reader := newNode(t, dht.Peer())
	ctx := testContext(t)
	an := record.MustParseName("an")

	require.NoError(t, owner.ctl.Register(ctx, an))
	assert.Equal(t, []record.Name{an}, owner.b.Claims())

	addrs, err := reader.ctl.Resolve(ctx, an)
	require.NoError(t, err)
	require.Len(t, addrs, 1)
	assert.True(t, owner.addr.Equal(addrs[0]))

	// registering again republishes
	require.NoError(t, owner.ctl.Register(ctx, an))
	assert.Len(t, dht.Records(record.StoreKey(record.KindRoot, an)), 1)

	err = reader.ctl.Register(ctx, an)
	assert.ErrorIs(t, err, ErrNameTaken)
}

func TestGrantAndRegisterSubdomain(t *testing.T) {
	t.Parallel()

	dht := kad.NewMemoryDHT()
	defer dht.Close()
	root := newNode(t, dht)
	mid := newNode(t, dht.Peer())
	leaf := newNode(t, dht.Peer())
	reader := newNode(t, dht.Peer())
	ctx := testContext(t)

	an := record.MustParseName("an")
	bAn := record.MustParseName("b.an")
	aBAn := record.MustParseName("a.b.an")

	assert.ErrorIs(t, root.ctl.Grant(ctx, bAn, mid.id, time.Now().Add(time.Hour)), ErrNotOwner)
	require.NoError(t, root.ctl.Register(ctx, an))
	require.NoError(t, root.ctl.Grant(ctx, bAn, mid.id, time.Now().Add(48*time.Hour)))
	require.Len(t, root.b.Grants(), 1)

	assert.ErrorIs(t, leaf.ctl.Register(ctx, bAn), ErrNotLeased)

	require.NoError(t, mid.ctl.Register(ctx, bAn))
	require.NoError(t, mid.ctl.Grant(ctx, aBAn, leaf.id, time.Now().Add(time.Hour)))
	require.NoError(t, leaf.ctl.Register(ctx, aBAn))

	for name, expected := range map[record.Name]multiaddr.Multiaddr{bAn: mid.addr, aBAn: leaf.addr} {
		addrs, err := reader.ctl.Resolve(ctx, name)
		require.NoError(t, err)
		require.Len(t, addrs, 1)
		assert.True(t, expected.Equal(addrs[0]), name.String())
	}

	stored := dht.Records(record.StoreKey(record.KindAddr, aBAn))
	require.Len(t, stored, 1)
	chain, err := record.DecodeAndValidate(stored[0], time.Now())
	require.NoError(t, err)
	assert.Equal(t, root.id, chain.Authority())
	assert.False(t, stored[0].Expires.After(time.Now().Add(time.Hour)))
}

func TestResolveOutcomes(t *testing.T) {
	t.Parallel()

	dht := kad.NewMemoryDHT()
	defer dht.Close()
	n := newNode(t, dht)
	ctx := testContext(t)

	rootKey, _ := newKey(t)
	dht.Put(rootStored(t, rootKey, "an"))
	valid := addrStored(t, rootKey, "ok.an", time.Now().Add(time.Hour), "/ip4/1.1.1.1/tcp/1")
	dht.Put(valid)

	garbage := kad.Record{
		Key:       record.StoreKey(record.KindAddr, record.MustParseName("bad.an")),
		Value:     append(record.StoreKey(record.KindAddr, record.MustParseName("bad.an")), 0x01, 0x02),
		Publisher: test.RandPeerIDFatal(t),
	}
	dht.Put(garbage)

	failure := errors.New("no peers in routing table")
	dht.Fail(record.StoreKey(record.KindAddr, record.MustParseName("down.an")), failure)

	addrs, err := n.ctl.Resolve(ctx, record.MustParseName("ok.an"))
	require.NoError(t, err)
	assert.Len(t, addrs, 1)

	addrs, err = n.ctl.Resolve(ctx, record.MustParseName("bad.an"))
	require.NoError(t, err)
	assert.Empty(t, addrs)

	addrs, err = n.ctl.Resolve(ctx, record.MustParseName("none.an"))
	require.NoError(t, err)
	assert.Empty(t, addrs)

	_, err = n.ctl.Resolve(ctx, record.MustParseName("down.an"))
	assert.ErrorIs(t, err, failure)

	assert.Zero(t, n.b.Pending())
}

func TestConcurrentResolves(t *testing.T) {
	t.Parallel()

	dht := kad.NewMemoryDHT()
	defer dht.Close()
	n := newNode(t, dht)
	ctx := testContext(t)

	rootKey, _ := newKey(t)
	dht.Put(rootStored(t, rootKey, "an"))
	names := []string{"a.an", "b.an", "c.an", "d.an"}
	for i, name := range names {
		dht.Put(addrStored(t, rootKey, name, time.Now().Add(time.Hour), fmt.Sprintf("/ip4/10.0.0.%d/tcp/1", i+1)))
	}

	var wg sync.WaitGroup
	for i, name := range names {
		i, name := i, name
		wg.Add(1)
		go func() {
			defer wg.Done()
			addrs, err := n.ctl.Resolve(ctx, record.MustParseName(name))
			if assert.NoError(t, err) && assert.Len(t, addrs, 1) {
				assert.Equal(t, fmt.Sprintf("/ip4/10.0.0.%d/tcp/1", i+1), addrs[0].String())
			}
		}()
	}
	wg.Wait()
}

func TestInterleavedCompletions(t *testing.T) {
	t.Parallel()

	rootKey, _ := newKey(t)
	dht := newStubDHT(1, 2)
	b := newStepBehaviour(t, dht, pinRoot("an", rootKey))
	ctx := context.Background()

	first, second := make(chan control.ResolveResponse, 1), make(chan control.ResolveResponse, 1)
	b.HandleRequest(ctx, &control.ResolveRequest{Name: record.MustParseName("one.an"), Reply: first})
	b.HandleRequest(ctx, &control.ResolveRequest{Name: record.MustParseName("two.an"), Reply: second})
	assert.Equal(t, 2, b.Pending())

	b.HandleEvent(ctx, found(2, addrStored(t, rootKey, "two.an", time.Now().Add(time.Hour), "/ip4/2.2.2.2/tcp/2")))
	b.HandleEvent(ctx, found(1, addrStored(t, rootKey, "one.an", time.Now().Add(time.Hour), "/ip4/1.1.1.1/tcp/1")))
	b.HandleEvent(ctx, last(2, nil))
	assert.Empty(t, first)
	b.HandleEvent(ctx, last(1, nil))
	assert.Zero(t, b.Pending())

	res := <-first
	require.NoError(t, res.Err)
	assert.Equal(t, "/ip4/1.1.1.1/tcp/1", res.Addrs[0].String())
	res = <-second
	require.NoError(t, res.Err)
	assert.Equal(t, "/ip4/2.2.2.2/tcp/2", res.Addrs[0].String())
}

func TestLatestExpiryWins(t *testing.T) {
	t.Parallel()

	rootKey, _ := newKey(t)
	dht := newStubDHT(1)
	b := newStepBehaviour(t, dht, pinRoot("an", rootKey))
	ctx := context.Background()

	reply := make(chan control.ResolveResponse, 1)
	b.HandleRequest(ctx, &control.ResolveRequest{Name: record.MustParseName("x.an"), Reply: reply})
	b.HandleEvent(ctx, found(1, addrStored(t, rootKey, "x.an", time.Now().Add(2*time.Hour), "/ip4/2.2.2.2/tcp/2")))
	b.HandleEvent(ctx, found(1, addrStored(t, rootKey, "x.an", time.Now().Add(time.Hour), "/ip4/1.1.1.1/tcp/1")))
	b.HandleEvent(ctx, last(1, errors.New("some peers timed out")))

	res := <-reply
	require.NoError(t, res.Err)
	assert.Equal(t, "/ip4/2.2.2.2/tcp/2", res.Addrs[0].String())
}

func TestResolveLeaseRecord(t *testing.T) {
	t.Parallel()

	rootKey, _ := newKey(t)
	dht := newStubDHT(1)
	b := newStepBehaviour(t, dht, pinRoot("an", rootKey))
	ctx := context.Background()

	lease, err := record.Sign(rootKey, &record.LeaseRecord{
		Subdomain: record.MustParseName("x.an"),
		Leasee:    test.RandPeerIDFatal(t),
		Until:     time.Now().Add(time.Hour),
	})
	require.NoError(t, err)

	reply := make(chan control.ResolveResponse, 1)
	b.HandleRequest(ctx, &control.ResolveRequest{Name: record.MustParseName("x.an"), Reply: reply})
	b.HandleEvent(ctx, found(1, record.Publish(record.Chain{Record: lease.Generic()}, time.Now().Add(time.Hour))))
	b.HandleEvent(ctx, last(1, nil))

	assert.ErrorIs(t, (<-reply).Err, ErrUnexpectedRecordKind)
}

func TestDuplicateQueryID(t *testing.T) {
	dht := newStubDHT(7)
	b := newStepBehaviour(t, dht)
	ctx := context.Background()

	first, second := make(chan control.ResolveResponse, 1), make(chan control.ResolveResponse, 1)
	b.HandleRequest(ctx, &control.ResolveRequest{Name: record.MustParseName("a.an"), Reply: first})
	b.HandleRequest(ctx, &control.ResolveRequest{Name: record.MustParseName("b.an"), Reply: second})
	assert.ErrorIs(t, (<-second).Err, ErrDuplicateQuery)
	assert.Equal(t, 1, b.Pending())

	Debug = true
	defer func() { Debug = false }()
	assert.Panics(t, func() {
		b.HandleRequest(ctx, &control.ResolveRequest{Name: record.MustParseName("c.an"), Reply: make(chan control.ResolveResponse, 1)})
	})

	b.HandleEvent(ctx, last(7, nil))
	res := <-first
	require.NoError(t, res.Err)
	assert.Empty(t, res.Addrs)
	assert.Zero(t, b.Pending())
}

func TestForwardsUnrelatedEvents(t *testing.T) {
	t.Parallel()

	dht := kad.NewMemoryDHT()
	defer dht.Close()
	n := newNode(t, dht)

	routing := &kad.RoutingUpdated{Peer: test.RandPeerIDFatal(t)}
	dht.Inject(routing)
	stray := &kad.QueryProgressed{ID: 9999, Kind: kad.QueryGetRecord, Step: kad.Step{Count: 1, Last: true}}
	dht.Inject(stray)

	got := map[kad.Event]bool{}
	for len(got) < 2 {
		select {
		case ev := <-n.b.Events():
			got[ev] = true
		case <-time.After(5 * time.Second):
			t.Fatal("events were not forwarded")
		}
	}
	assert.True(t, got[routing])
	assert.True(t, got[stray])
}

func TestDeregisterAndTrustedRoots(t *testing.T) {
	t.Parallel()

	dht := kad.NewMemoryDHT()
	defer dht.Close()
	_, stranger := newKey(t)
	pinned := record.MustParseName("pinned")
	n := newNode(t, dht, func(cfg *Config) {
		cfg.TrustedRoots = map[record.Name]peer.ID{pinned: stranger}
	})
	ctx := testContext(t)

	assert.ErrorIs(t, n.ctl.Register(ctx, pinned), record.ErrUntrustedRoot)

	an := record.MustParseName("an")
	require.NoError(t, n.ctl.Register(ctx, an))
	require.NoError(t, n.ctl.Deregister(ctx, an))
	// the queue is ordered, so a resolve answered means the deregister ran
	_, err := n.ctl.Resolve(ctx, an)
	require.NoError(t, err)
	assert.Empty(t, n.b.Claims())
}

func TestForgedChainIsIgnored(t *testing.T) {
	t.Parallel()

	dht := kad.NewMemoryDHT()
	defer dht.Close()
	root := newNode(t, dht)
	mid := newNode(t, dht.Peer())
	reader := newNode(t, dht.Peer())
	ctx := testContext(t)

	an := record.MustParseName("an")
	bAn := record.MustParseName("b.an")
	require.NoError(t, root.ctl.Register(ctx, an))
	require.NoError(t, root.ctl.Grant(ctx, bAn, mid.id, time.Now().Add(48*time.Hour)))
	require.NoError(t, mid.ctl.Register(ctx, bAn))

	// a stranger leases b.an to itself, expiring after the real record
	strangerKey, _ := newKey(t)
	dht.Put(addrStored(t, strangerKey, "b.an", time.Now().Add(record.RepublishInterval), "/ip4/6.6.6.6/tcp/666"))
	require.Len(t, dht.Records(record.StoreKey(record.KindAddr, bAn)), 2)

	addrs, err := reader.ctl.Resolve(ctx, bAn)
	require.NoError(t, err)
	require.Len(t, addrs, 1)
	assert.True(t, mid.addr.Equal(addrs[0]))

	// a stranger cannot claim a subdomain of a root it does not hold either
	leaf := newNode(t, dht.Peer())
	lease, err := record.Sign(strangerKey, &record.LeaseRecord{Subdomain: record.MustParseName("c.an"), Leasee: leaf.id, Until: time.Now().Add(time.Hour)})
	require.NoError(t, err)
	dht.Put(record.Publish(record.Chain{Record: lease.Generic()}, time.Now().Add(time.Hour)))
	assert.ErrorIs(t, leaf.ctl.Register(ctx, record.MustParseName("c.an")), ErrNotLeased)
}

func TestRootOwnerLookup(t *testing.T) {
	t.Parallel()

	ownerKey, _ := newKey(t)
	otherKey, _ := newKey(t)

	cases := map[string]struct {
		roots []kad.Record
		err   error
		addrs int
	}{
		"owner found": {
			roots: []kad.Record{rootStored(t, ownerKey, "an")},
			addrs: 1,
		},
		"unclaimed root": {},
		"contested root": {
			roots: []kad.Record{rootStored(t, ownerKey, "an"), rootStored(t, otherKey, "an")},
		},
		"lookup failure": {
			err: errors.New("routing table empty"),
		},
	}

	for name, tc := range cases {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			dht := newStubDHT(1, 2)
			b := newStepBehaviour(t, dht)
			ctx := context.Background()

			reply := make(chan control.ResolveResponse, 1)
			b.HandleRequest(ctx, &control.ResolveRequest{Name: record.MustParseName("x.an"), Reply: reply})
			b.HandleEvent(ctx, found(1, addrStored(t, ownerKey, "x.an", time.Now().Add(time.Hour), "/ip4/1.1.1.1/tcp/1")))
			b.HandleEvent(ctx, last(1, nil))
			assert.Empty(t, reply)
			assert.Equal(t, record.StoreKey(record.KindRoot, record.MustParseName("an")), dht.gets[1])

			for _, root := range tc.roots {
				b.HandleEvent(ctx, found(2, root))
			}
			b.HandleEvent(ctx, last(2, tc.err))
			assert.Zero(t, b.Pending())

			res := <-reply
			if tc.err != nil {
				assert.ErrorIs(t, res.Err, tc.err)
				return
			}
			require.NoError(t, res.Err)
			assert.Len(t, res.Addrs, tc.addrs)
		})
	}
}

func TestRootOwnerIsCached(t *testing.T) {
	t.Parallel()

	ownerKey, _ := newKey(t)
	dht := newStubDHT(1, 2, 3)
	b := newStepBehaviour(t, dht)
	ctx := context.Background()

	for i, id := range []kad.QueryID{1, 3} {
		reply := make(chan control.ResolveResponse, 1)
		b.HandleRequest(ctx, &control.ResolveRequest{Name: record.MustParseName("x.an"), Reply: reply})
		b.HandleEvent(ctx, found(id, addrStored(t, ownerKey, "x.an", time.Now().Add(time.Hour), "/ip4/1.1.1.1/tcp/1")))
		b.HandleEvent(ctx, last(id, nil))
		if i == 0 {
			b.HandleEvent(ctx, found(2, rootStored(t, ownerKey, "an")))
			b.HandleEvent(ctx, last(2, nil))
		}
		res := <-reply
		require.NoError(t, res.Err)
		assert.Len(t, res.Addrs, 1)
	}
	assert.Len(t, dht.gets, 3, "the second resolve reuses the owner")
}

func TestQueryFinishedTwice(t *testing.T) {
	dht := newStubDHT(4)
	b := newStepBehaviour(t, dht)
	ctx := context.Background()

	reply := make(chan control.ResolveResponse, 1)
	b.HandleRequest(ctx, &control.ResolveRequest{Name: record.MustParseName("a.an"), Reply: reply})
	b.HandleEvent(ctx, last(4, nil))
	require.NoError(t, (<-reply).Err)

	b.HandleEvent(ctx, last(4, nil))
	assert.Empty(t, b.Events(), "a second last step is not forwarded")

	Debug = true
	defer func() { Debug = false }()
	assert.Panics(t, func() { b.HandleEvent(ctx, last(4, nil)) })
}

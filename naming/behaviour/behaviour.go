// Package behaviour runs the naming protocol on top of a DHT. It turns
// control requests into DHT queries, matches query progress back to the
// request that started it and validates every record before answering.
package behaviour

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"gitlab.com/alternet/naming-service/naming/control"
	"gitlab.com/alternet/naming-service/naming/kad"
	"gitlab.com/alternet/naming-service/naming/record"
)

// Debug turns bookkeeping violations into panics.
var Debug bool

var (
	ErrNameTaken            = errors.New("name is claimed by another peer")
	ErrNotLeased            = errors.New("no valid lease names this peer")
	ErrNotOwner             = errors.New("base name is not held by this peer")
	ErrNoAddresses          = errors.New("no addresses to publish")
	ErrUnexpectedRecordKind = errors.New("resolved record carries no addresses")
	ErrDuplicateQuery       = errors.New("duplicate query id")
	ErrInvalidGrant         = errors.New("invalid grant")
	ErrRootUnclaimed        = errors.New("root name is not claimed")
	ErrRootContested        = errors.New("root name is claimed by several peers")
)

// rootOwnerTTL is how long a looked up root owner is reused.
const rootOwnerTTL = 10 * time.Minute

// doneWindow is how many removed query ids are remembered to catch a second
// last step.
const doneWindow = 256

type Config struct {
	Key      crypto.PrivKey
	Requests <-chan control.Request
	DHT      kad.DHT
	// Addrs lists the addresses published on register.
	Addrs func() []multiaddr.Multiaddr
	// Store persists claims and grants across restarts. Optional.
	Store Store
	// TrustedRoots pins root names to their owners. Optional.
	TrustedRoots map[record.Name]peer.ID
	Quorum       kad.Quorum
	Now          func() time.Time
}

type Behaviour struct {
	requests <-chan control.Request
	dht      kad.DHT
	key      crypto.PrivKey
	self     peer.ID
	addrs    func() []multiaddr.Multiaddr
	trusted  map[record.Name]peer.ID
	quorum   kad.Quorum
	now      func() time.Time

	mu      sync.Mutex
	pending map[kad.QueryID]pendingQuery
	done    [doneWindow]kad.QueryID
	owners  map[record.Name]rootOwner

	book   *book
	events chan kad.Event
}

func New(cfg Config) (*Behaviour, error) {
	if cfg.Key == nil || cfg.DHT == nil || cfg.Requests == nil {
		return nil, errors.New("behaviour needs a key, a DHT and a request queue")
	}
	self, err := peer.IDFromPrivateKey(cfg.Key)
	if err != nil {
		return nil, errors.Wrap(err, "deriving peer id")
	}
	b := &Behaviour{
		requests: cfg.Requests,
		dht:      cfg.DHT,
		key:      cfg.Key,
		self:     self,
		addrs:    cfg.Addrs,
		trusted:  cfg.TrustedRoots,
		quorum:   cfg.Quorum,
		now:      cfg.Now,
		pending:  make(map[kad.QueryID]pendingQuery),
		owners:   make(map[record.Name]rootOwner),
		book:     newBook(cfg.Store),
		events:   make(chan kad.Event, 32),
	}
	if b.addrs == nil {
		b.addrs = func() []multiaddr.Multiaddr { return nil }
	}
	if b.now == nil {
		b.now = time.Now
	}
	if b.quorum == 0 {
		b.quorum = kad.QuorumOne
	}
	return b, nil
}

func (b *Behaviour) Self() peer.ID { return b.self }

// Events carries the DHT events no pending query was waiting for.
func (b *Behaviour) Events() <-chan kad.Event { return b.events }

// Run processes requests and DHT events until ctx is done or the request
// queue is closed.
func (b *Behaviour) Run(ctx context.Context) error {
	dhtEvents := b.dht.Events()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req, ok := <-b.requests:
			if !ok {
				zlog.Info("request queue closed, stopping")
				return nil
			}
			b.HandleRequest(ctx, req)
		case ev := <-dhtEvents:
			b.HandleEvent(ctx, ev)
		}
	}
}

// HandleRequest starts the queries serving req.
func (b *Behaviour) HandleRequest(ctx context.Context, req control.Request) {
	switch r := req.(type) {
	case *control.ResolveRequest:
		b.resolve(ctx, r)
	case *control.RegisterRequest:
		b.register(ctx, r)
	case *control.DeregisterRequest:
		b.deregister(ctx, r)
	case *control.GrantRequest:
		b.grant(ctx, r)
	default:
		zlog.Sugar().Errorf("unknown control request %T", req)
	}
}

// HandleEvent feeds one DHT event to the query waiting for it, or forwards it.
func (b *Behaviour) HandleEvent(ctx context.Context, ev kad.Event) {
	qp, ok := ev.(*kad.QueryProgressed)
	if !ok {
		b.forward(ev)
		return
	}

	var q pendingQuery
	if qp.Step.Last {
		q, ok = b.untrack(qp.ID)
	} else {
		q, ok = b.lookup(qp.ID)
	}
	if !ok {
		if qp.Step.Last && b.finished(qp.ID) {
			if Debug {
				panic(fmt.Sprintf("query %d finished twice", qp.ID))
			}
			zlog.Sugar().Errorf("query %d finished twice, ignoring", qp.ID)
			return
		}
		b.forward(ev)
		return
	}

	if qp.Record != nil {
		q.progress(b, *qp.Record)
	}
	if qp.Step.Last {
		q.finish(ctx, b, qp.Err)
	}
}

func (b *Behaviour) forward(ev kad.Event) {
	select {
	case b.events <- ev:
	default:
		zlog.Warn("dropping unhandled dht event", zap.String("event", fmt.Sprintf("%T", ev)))
	}
}

func (b *Behaviour) track(id kad.QueryID, q pendingQuery) {
	b.mu.Lock()
	_, dup := b.pending[id]
	if !dup {
		b.pending[id] = q
	}
	b.mu.Unlock()

	if dup {
		if Debug {
			panic(fmt.Sprintf("query %d is already pending", id))
		}
		zlog.Sugar().Errorf("query %d is already pending, failing the new request", id)
		q.fail(errors.Wrapf(ErrDuplicateQuery, "query %d", id))
	}
}

func (b *Behaviour) lookup(id kad.QueryID) (pendingQuery, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	q, ok := b.pending[id]
	return q, ok
}

func (b *Behaviour) untrack(id kad.QueryID) (pendingQuery, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	q, ok := b.pending[id]
	if ok {
		delete(b.pending, id)
		b.done[id%doneWindow] = id
	}
	return q, ok
}

// finished reports whether id was among the last queries removed.
func (b *Behaviour) finished(id kad.QueryID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return id != 0 && b.done[id%doneWindow] == id
}

// Pending is the number of queries in flight.
func (b *Behaviour) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// validate decodes a record read from the DHT and checks it against the
// pinned roots.
func (b *Behaviour) validate(rec kad.Record) (record.Chain, error) {
	chain, err := record.DecodeAndValidate(rec, b.now())
	if err != nil {
		return record.Chain{}, err
	}
	if err := record.CheckAuthority(chain, b.trusted); err != nil {
		return record.Chain{}, err
	}
	return chain, nil
}

type rootOwner struct {
	id      peer.ID
	checked time.Time
}

// withRootOwner finds the peer holding root: the pinned owner, a recent
// lookup, or else the single signer of the valid root records in the DHT.
// then runs once, possibly before withRootOwner returns.
func (b *Behaviour) withRootOwner(ctx context.Context, root record.Name, then ownerFunc) {
	if owner, ok := b.trusted[root]; ok {
		then(ctx, owner, nil)
		return
	}
	b.mu.Lock()
	cached, ok := b.owners[root]
	b.mu.Unlock()
	if ok && b.now().Sub(cached.checked) < rootOwnerTTL {
		then(ctx, cached.id, nil)
		return
	}
	id := b.dht.GetRecord(ctx, record.StoreKey(record.KindRoot, root))
	b.track(id, &ownerLookup{root: root, then: then, owners: make(map[peer.ID]bool)})
}

func (b *Behaviour) cacheOwner(root record.Name, owner peer.ID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.owners[root] = rootOwner{id: owner, checked: b.now()}
}

// withTrusted keeps the candidates whose chain hangs from the owner of their
// root and hands the best of them to then. Root records are their own claim.
func (b *Behaviour) withTrusted(ctx context.Context, name record.Name, found []*candidate, then func(context.Context, *candidate, error)) {
	if len(found) == 0 || name.IsRoot() {
		then(ctx, best(found), nil)
		return
	}
	b.withRootOwner(ctx, name.Root(), func(ctx context.Context, owner peer.ID, err error) {
		if errors.Is(err, ErrRootUnclaimed) || errors.Is(err, ErrRootContested) {
			zlog.Warn("dropping records under an unowned root", zap.Stringer("name", name), zap.Error(err))
			then(ctx, nil, nil)
			return
		}
		if err != nil {
			then(ctx, nil, err)
			return
		}
		var kept []*candidate
		for _, c := range found {
			if got := c.chain.Authority(); got != owner {
				zlog.Warn("dropping record not issued by the root owner",
					zap.Stringer("name", name),
					zap.Stringer("owner", owner),
					zap.Stringer("authority", got))
				continue
			}
			kept = append(kept, c)
		}
		then(ctx, best(kept), nil)
	})
}

// resolveKey is where the addresses of name live: roots carry their own
// address, everything else an addr record.
func resolveKey(name record.Name) []byte {
	if name.IsRoot() {
		return record.StoreKey(record.KindRoot, name)
	}
	return record.StoreKey(record.KindAddr, name)
}

func (b *Behaviour) resolve(ctx context.Context, req *control.ResolveRequest) {
	id := b.dht.GetRecord(ctx, resolveKey(req.Name))
	zlog.Debug("resolving", zap.Stringer("request", req.ID), zap.Stringer("name", req.Name), zap.Uint64("query", uint64(id)))
	b.track(id, &resolveQuery{req: req})
}

func (b *Behaviour) register(ctx context.Context, req *control.RegisterRequest) {
	if owner, ok := b.trusted[req.Name.Root()]; ok && owner != b.self {
		req.Reply <- errors.Wrapf(record.ErrUntrustedRoot, "%s is pinned to %s", req.Name.Root(), owner)
		return
	}
	if req.Name.IsRoot() {
		id := b.dht.GetRecord(ctx, record.StoreKey(record.KindRoot, req.Name))
		b.track(id, &rootLookup{req: req})
		return
	}
	id := b.dht.GetRecord(ctx, record.StoreKey(record.KindLease, req.Name))
	b.track(id, &leaseLookup{req: req})
}

func (b *Behaviour) deregister(ctx context.Context, req *control.DeregisterRequest) {
	zlog.Info("dropping claim", zap.Stringer("request", req.ID), zap.Stringer("name", req.Name))
	b.book.drop(ctx, req.Name)
}

func (b *Behaviour) grant(ctx context.Context, req *control.GrantRequest) {
	now := b.now()
	base := req.Subdomain.BaseName()
	switch {
	case req.Subdomain.IsRoot():
		req.Reply <- errors.Wrap(ErrInvalidGrant, "roots cannot be leased")
		return
	case req.Leasee == "":
		req.Reply <- errors.Wrap(ErrInvalidGrant, "missing leasee")
		return
	case !now.Before(req.Until):
		req.Reply <- errors.Wrap(ErrInvalidGrant, "lease ends in the past")
		return
	}
	own, ok := b.book.chain(base)
	if !ok {
		req.Reply <- errors.Wrapf(ErrNotOwner, "%s", base)
		return
	}

	lease, err := record.Sign(b.key, &record.LeaseRecord{Subdomain: req.Subdomain, Leasee: req.Leasee, Until: req.Until})
	if err != nil {
		req.Reply <- errors.Wrap(err, "signing lease")
		return
	}
	chain := record.Chain{Record: lease.Generic(), Leases: own}
	g := Grant{Subdomain: req.Subdomain, Leasee: req.Leasee, Until: req.Until}
	b.publish(ctx, chain, capExpiry(now, req.Until), req.Reply, func(ctx context.Context) {
		b.book.addGrant(ctx, g)
	})
}

// publish puts chain into the DHT once it passes the checks any reader
// will apply, and replies when the put completes.
func (b *Behaviour) publish(ctx context.Context, chain record.Chain, expires time.Time, reply chan<- error, onSuccess func(context.Context)) {
	stored := record.Publish(chain, expires)
	if _, err := record.DecodeAndValidate(stored, b.now()); err != nil {
		reply <- errors.Wrap(err, "refusing to publish invalid record")
		return
	}
	id, err := b.dht.PutRecord(ctx, stored, b.quorum)
	if err != nil {
		reply <- errors.Wrap(err, "putting record")
		return
	}
	b.track(id, &putQuery{name: chain.Record.Signed.Name(), reply: reply, onSuccess: onSuccess})
}

// capExpiry bounds how long the DHT keeps a record that lasts until until.
func capExpiry(now, until time.Time) time.Time {
	limit := now.Add(record.RepublishInterval)
	if until.IsZero() || until.After(limit) {
		return limit
	}
	return until
}

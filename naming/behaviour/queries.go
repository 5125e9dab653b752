package behaviour

import (
	"context"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"gitlab.com/alternet/naming-service/naming/control"
	"gitlab.com/alternet/naming-service/naming/kad"
	"gitlab.com/alternet/naming-service/naming/record"
)

type pendingQuery interface {
	// progress sees every record the query finds.
	progress(b *Behaviour, rec kad.Record)
	// finish runs once, on the last step.
	finish(ctx context.Context, b *Behaviour, err error)
	// fail answers the request without a query.
	fail(err error)
}

// candidate is a validated record and the expiry it was stored with.
type candidate struct {
	chain   record.Chain
	expires time.Time
}

// newer prefers the record that stays valid longest. Records stored without
// expiry never expire.
func (c *candidate) newer(than *candidate) bool {
	if than == nil {
		return true
	}
	if c.expires.IsZero() {
		return !than.expires.IsZero()
	}
	return !than.expires.IsZero() && c.expires.After(than.expires)
}

func best(found []*candidate) *candidate {
	var b *candidate
	for _, c := range found {
		if c.newer(b) {
			b = c
		}
	}
	return b
}

func notFound(err error) bool {
	return err == nil || errors.Is(err, kad.ErrNotFound)
}

type resolveQuery struct {
	req   *control.ResolveRequest
	found []*candidate
}

func (q *resolveQuery) progress(b *Behaviour, rec kad.Record) {
	chain, err := b.validate(rec)
	if err != nil {
		zlog.Warn("dropping invalid record",
			zap.Stringer("request", q.req.ID),
			zap.Stringer("name", q.req.Name),
			zap.Stringer("publisher", rec.Publisher),
			zap.Error(err))
		return
	}
	q.found = append(q.found, &candidate{chain: chain, expires: rec.Expires})
}

func (q *resolveQuery) finish(ctx context.Context, b *Behaviour, err error) {
	b.withTrusted(ctx, q.req.Name, q.found, func(_ context.Context, best *candidate, trustErr error) {
		switch {
		case trustErr != nil:
			q.req.Reply <- control.ResolveResponse{Err: errors.Wrapf(trustErr, "resolving %s", q.req.Name)}
		case best != nil:
			addrs, err := best.chain.Addrs()
			if err != nil {
				q.req.Reply <- control.ResolveResponse{Err: errors.Wrapf(ErrUnexpectedRecordKind, "%s", q.req.Name)}
				return
			}
			q.req.Reply <- control.ResolveResponse{Addrs: addrs}
		case notFound(err):
			q.req.Reply <- control.ResolveResponse{Addrs: []multiaddr.Multiaddr{}}
		default:
			q.req.Reply <- control.ResolveResponse{Err: errors.Wrapf(err, "resolving %s", q.req.Name)}
		}
	})
}

func (q *resolveQuery) fail(err error) {
	q.req.Reply <- control.ResolveResponse{Err: err}
}

// rootLookup checks that nobody else holds a root before claiming it.
type rootLookup struct {
	req   *control.RegisterRequest
	taken error
}

func (q *rootLookup) progress(b *Behaviour, rec kad.Record) {
	chain, err := b.validate(rec)
	if err != nil {
		zlog.Debug("ignoring invalid root record", zap.Stringer("name", q.req.Name), zap.Error(err))
		return
	}
	if owner := chain.Authority(); owner != b.self {
		q.taken = errors.Wrapf(ErrNameTaken, "%s is held by %s", q.req.Name, owner)
	}
}

func (q *rootLookup) finish(ctx context.Context, b *Behaviour, err error) {
	if q.taken != nil {
		q.req.Reply <- q.taken
		return
	}
	if !notFound(err) {
		q.req.Reply <- errors.Wrapf(err, "looking up %s", q.req.Name)
		return
	}
	addrs := b.addrs()
	if len(addrs) == 0 {
		q.req.Reply <- ErrNoAddresses
		return
	}
	root, err := record.Sign(b.key, &record.RootRecord{Root: q.req.Name, Addr: addrs[0]})
	if err != nil {
		q.req.Reply <- errors.Wrap(err, "signing root record")
		return
	}
	name := q.req.Name
	b.publish(ctx, record.Chain{Record: root.Generic()}, time.Time{}, q.req.Reply, func(ctx context.Context) {
		b.book.claim(ctx, name, nil)
		b.cacheOwner(name, b.self)
	})
}

func (q *rootLookup) fail(err error) { q.req.Reply <- err }

// leaseLookup finds the lease delegating a subdomain to this peer, then
// publishes the addresses under it.
type leaseLookup struct {
	req   *control.RegisterRequest
	found []*candidate
}

func (q *leaseLookup) progress(b *Behaviour, rec kad.Record) {
	chain, err := b.validate(rec)
	if err != nil {
		zlog.Debug("ignoring invalid lease", zap.Stringer("name", q.req.Name), zap.Error(err))
		return
	}
	lease, ok := record.AsLease(chain.Record)
	if !ok || lease.Signed.Leasee != b.self {
		return
	}
	q.found = append(q.found, &candidate{chain: chain, expires: lease.Signed.Until})
}

func (q *leaseLookup) finish(ctx context.Context, b *Behaviour, err error) {
	b.withTrusted(ctx, q.req.Name, q.found, func(ctx context.Context, best *candidate, trustErr error) {
		if trustErr != nil {
			q.req.Reply <- errors.Wrapf(trustErr, "checking lease for %s", q.req.Name)
			return
		}
		q.publish(ctx, b, best, err)
	})
}

func (q *leaseLookup) publish(ctx context.Context, b *Behaviour, best *candidate, err error) {
	if best == nil {
		if notFound(err) {
			q.req.Reply <- errors.Wrapf(ErrNotLeased, "%s", q.req.Name)
		} else {
			q.req.Reply <- errors.Wrapf(err, "looking up lease for %s", q.req.Name)
		}
		return
	}
	addrs := b.addrs()
	if len(addrs) == 0 {
		q.req.Reply <- ErrNoAddresses
		return
	}

	lease, _ := record.AsLease(best.chain.Record)
	leases := append([]record.Signed[*record.LeaseRecord]{lease}, best.chain.Leases...)
	addr, err := record.Sign(b.key, &record.AddrRecord{Domain: q.req.Name, Addrs: addrs})
	if err != nil {
		q.req.Reply <- errors.Wrap(err, "signing addr record")
		return
	}
	chain := record.Chain{Record: addr.Generic(), Leases: leases}
	name := q.req.Name
	b.publish(ctx, chain, capExpiry(b.now(), chain.Until()), q.req.Reply, func(ctx context.Context) {
		b.book.claim(ctx, name, leases)
	})
}

func (q *leaseLookup) fail(err error) { q.req.Reply <- err }

type ownerFunc func(ctx context.Context, owner peer.ID, err error)

// ownerLookup reads the root records of a name to learn who holds it.
type ownerLookup struct {
	root   record.Name
	then   ownerFunc
	owners map[peer.ID]bool
}

func (q *ownerLookup) progress(b *Behaviour, rec kad.Record) {
	chain, err := b.validate(rec)
	if err != nil {
		zlog.Debug("ignoring invalid root record", zap.Stringer("name", q.root), zap.Error(err))
		return
	}
	if root, ok := chain.Record.Signed.(*record.RootRecord); ok && root.Root == q.root {
		q.owners[chain.Authority()] = true
	}
}

func (q *ownerLookup) finish(ctx context.Context, b *Behaviour, err error) {
	switch len(q.owners) {
	case 0:
		if !notFound(err) {
			q.then(ctx, "", errors.Wrapf(err, "looking up root %s", q.root))
			return
		}
		q.then(ctx, "", errors.Wrapf(ErrRootUnclaimed, "%s", q.root))
	case 1:
		for owner := range q.owners {
			b.cacheOwner(q.root, owner)
			q.then(ctx, owner, nil)
		}
	default:
		q.then(ctx, "", errors.Wrapf(ErrRootContested, "%s has %d owners", q.root, len(q.owners)))
	}
}

func (q *ownerLookup) fail(err error) { q.then(context.Background(), "", err) }

type putQuery struct {
	name      record.Name
	reply     chan<- error
	onSuccess func(context.Context)
}

func (q *putQuery) progress(*Behaviour, kad.Record) {}

func (q *putQuery) finish(ctx context.Context, _ *Behaviour, err error) {
	if err != nil {
		q.reply <- errors.Wrapf(err, "publishing %s", q.name)
		return
	}
	zlog.Info("published", zap.Stringer("name", q.name))
	if q.onSuccess != nil {
		q.onSuccess(ctx)
	}
	q.reply <- nil
}

func (q *putQuery) fail(err error) { q.reply <- err }

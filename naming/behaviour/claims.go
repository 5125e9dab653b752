package behaviour

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"gitlab.com/alternet/naming-service/naming/control"
	"gitlab.com/alternet/naming-service/naming/record"
)

// Grant is a lease this peer issued and keeps republishing until it ends.
type Grant struct {
	Subdomain record.Name
	Leasee    peer.ID
	Until     time.Time
}

// Store persists what this peer claimed and granted.
type Store interface {
	SaveClaim(ctx context.Context, name record.Name) error
	DeleteClaim(ctx context.Context, name record.Name) error
	Claims(ctx context.Context) ([]record.Name, error)
	SaveGrant(ctx context.Context, g Grant) error
	DeleteGrant(ctx context.Context, subdomain record.Name) error
	Grants(ctx context.Context) ([]Grant, error)
}

type claim struct {
	// leases link the name to its root, nil for roots. Unknown until the
	// name has been registered since start.
	leases     []record.Signed[*record.LeaseRecord]
	registered bool
}

type book struct {
	store Store

	mu     sync.Mutex
	claims map[record.Name]*claim
	grants map[record.Name]Grant
}

func newBook(store Store) *book {
	return &book{
		store:  store,
		claims: make(map[record.Name]*claim),
		grants: make(map[record.Name]Grant),
	}
}

func (bk *book) claim(ctx context.Context, name record.Name, leases []record.Signed[*record.LeaseRecord]) {
	bk.mu.Lock()
	bk.claims[name] = &claim{leases: leases, registered: true}
	bk.mu.Unlock()

	if bk.store != nil {
		if err := bk.store.SaveClaim(ctx, name); err != nil {
			zlog.Sugar().Errorf("failed to save claim %s: %v", name, err)
		}
	}
}

func (bk *book) drop(ctx context.Context, name record.Name) {
	bk.mu.Lock()
	delete(bk.claims, name)
	bk.mu.Unlock()

	if bk.store != nil {
		if err := bk.store.DeleteClaim(ctx, name); err != nil {
			zlog.Sugar().Errorf("failed to delete claim %s: %v", name, err)
		}
	}
}

// chain returns the leases proving this peer holds name.
func (bk *book) chain(name record.Name) ([]record.Signed[*record.LeaseRecord], bool) {
	bk.mu.Lock()
	defer bk.mu.Unlock()
	c, ok := bk.claims[name]
	if !ok || !c.registered {
		return nil, false
	}
	return c.leases, true
}

func (bk *book) addGrant(ctx context.Context, g Grant) {
	bk.mu.Lock()
	bk.grants[g.Subdomain] = g
	bk.mu.Unlock()

	if bk.store != nil {
		if err := bk.store.SaveGrant(ctx, g); err != nil {
			zlog.Sugar().Errorf("failed to save grant %s: %v", g.Subdomain, err)
		}
	}
}

// Claims lists the names this peer holds, sorted.
func (b *Behaviour) Claims() []record.Name {
	b.book.mu.Lock()
	defer b.book.mu.Unlock()
	names := make([]record.Name, 0, len(b.book.claims))
	for name := range b.book.claims {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i].String() < names[j].String() })
	return names
}

// Grants lists the leases this peer issued.
func (b *Behaviour) Grants() []Grant {
	b.book.mu.Lock()
	defer b.book.mu.Unlock()
	grants := make([]Grant, 0, len(b.book.grants))
	for _, g := range b.book.grants {
		grants = append(grants, g)
	}
	sort.Slice(grants, func(i, j int) bool { return grants[i].Subdomain.String() < grants[j].Subdomain.String() })
	return grants
}

// Restore loads the persisted claims and grants. They are republished on the
// next Republish.
func (b *Behaviour) Restore(ctx context.Context) error {
	if b.book.store == nil {
		return nil
	}
	names, err := b.book.store.Claims(ctx)
	if err != nil {
		return errors.Wrap(err, "loading claims")
	}
	grants, err := b.book.store.Grants(ctx)
	if err != nil {
		return errors.Wrap(err, "loading grants")
	}

	b.book.mu.Lock()
	defer b.book.mu.Unlock()
	for _, name := range names {
		if _, ok := b.book.claims[name]; !ok {
			b.book.claims[name] = &claim{}
		}
	}
	for _, g := range grants {
		b.book.grants[g.Subdomain] = g
	}
	zlog.Sugar().Infof("restored %d claims and %d grants", len(names), len(grants))
	return nil
}

// Republish registers every claim again, parents first, then reissues the
// grants that have not ended. Grants that ended are forgotten. It goes
// through ctl, so Run must be serving requests.
func (b *Behaviour) Republish(ctx context.Context, ctl *control.Control) error {
	claims := b.Claims()
	sort.SliceStable(claims, func(i, j int) bool { return len(claims[i].Labels()) < len(claims[j].Labels()) })

	var errs error
	for _, name := range claims {
		if err := ctl.Register(ctx, name); err != nil {
			zlog.Warn("republishing claim failed", zap.Stringer("name", name), zap.Error(err))
			errs = multierr.Append(errs, errors.Wrapf(err, "claim %s", name))
		}
	}

	now := b.now()
	for _, g := range b.Grants() {
		if !now.Before(g.Until) {
			b.forgetGrant(ctx, g.Subdomain)
			continue
		}
		if err := ctl.Grant(ctx, g.Subdomain, g.Leasee, g.Until); err != nil {
			zlog.Warn("republishing grant failed", zap.Stringer("subdomain", g.Subdomain), zap.Error(err))
			errs = multierr.Append(errs, errors.Wrapf(err, "grant %s", g.Subdomain))
		}
	}
	return errs
}

func (b *Behaviour) forgetGrant(ctx context.Context, subdomain record.Name) {
	b.book.mu.Lock()
	delete(b.book.grants, subdomain)
	b.book.mu.Unlock()

	if b.book.store != nil {
		if err := b.book.store.DeleteGrant(ctx, subdomain); err != nil {
			zlog.Sugar().Errorf("failed to delete grant %s: %v", subdomain, err)
		}
	}
}

// Package resolver serves .an names to go-multiaddr-dns, so that
// /dnsaddr/<name>.an resolves through the naming service.
package resolver

import (
	"context"
	"net"
	"strings"

	"github.com/multiformats/go-multiaddr"
	madns "github.com/multiformats/go-multiaddr-dns"
	"github.com/pkg/errors"

	"gitlab.com/alternet/naming-service/naming/record"
)

// Domain is the DNS suffix handled by the backend.
const Domain = "an"

const dnsaddrPrefix = "_dnsaddr."

type Naming interface {
	Resolve(ctx context.Context, name record.Name) ([]multiaddr.Multiaddr, error)
}

// Backend answers dnsaddr TXT lookups from the naming service. It has no
// IP addresses to give.
type Backend struct {
	naming Naming
}

var _ madns.BasicResolver = (*Backend)(nil)

func NewBackend(naming Naming) *Backend {
	return &Backend{naming: naming}
}

func (b *Backend) LookupIPAddr(context.Context, string) ([]net.IPAddr, error) {
	return nil, nil
}

func (b *Backend) LookupTXT(ctx context.Context, txt string) ([]string, error) {
	domain, ok := strings.CutPrefix(strings.TrimSuffix(txt, "."), dnsaddrPrefix)
	if !ok {
		return nil, nil
	}
	name, err := record.ParseName(domain)
	if err != nil {
		return nil, err
	}
	addrs, err := b.naming.Resolve(ctx, name)
	if err != nil {
		return nil, errors.Wrapf(err, "resolving %s", name)
	}
	records := make([]string, 0, len(addrs))
	for _, addr := range addrs {
		records = append(records, "dnsaddr="+addr.String())
	}
	return records, nil
}

// New returns a multiaddr resolver sending .an names to the naming service
// and everything else to the system resolver.
func New(naming Naming) (*madns.Resolver, error) {
	return madns.NewResolver(madns.WithDomainResolver(Domain, NewBackend(naming)))
}

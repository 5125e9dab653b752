package network

import (
	"context"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"gitlab.com/alternet/naming-service/naming/kad"
	"gitlab.com/alternet/naming-service/naming/maddr"
	"gitlab.com/alternet/naming-service/naming/record"
	"gitlab.com/alternet/naming-service/naming/transport"
	"gitlab.com/alternet/naming-service/network/libp2p"
)

// memory is a single-node network: records live in process memory and
// nothing is dialled. It lets the naming service run without peers.
type memory struct {
	dht     *kad.MemoryDHT
	naming  transport.Naming
	addrs   []multiaddr.Multiaddr
	domains []record.Name
}

func newMemory(cfg libp2p.Config) (*memory, error) {
	if cfg.PrivateKey == nil {
		return nil, errors.New("private key is nil")
	}
	self, err := peer.IDFromPrivateKey(cfg.PrivateKey)
	if err != nil {
		return nil, errors.Wrap(err, "deriving peer id")
	}
	p2p, err := multiaddr.NewComponent("p2p", self.String())
	if err != nil {
		return nil, errors.Wrap(err, "building /p2p component")
	}

	m := &memory{naming: cfg.Naming}
	for _, s := range cfg.ListenAddress {
		addr, err := multiaddr.NewMultiaddr(s)
		if err != nil {
			return nil, errors.Wrapf(err, "listen address %q", s)
		}
		// a named listen address is published under /p2p like libp2p does
		domain, rewritten, ok, err := maddr.ReplaceListenMarker(addr, p2p)
		if err != nil {
			return nil, err
		}
		if ok {
			m.domains = append(m.domains, domain)
			m.addrs = append(m.addrs, rewritten)
			continue
		}
		m.addrs = append(m.addrs, addr.Encapsulate(p2p))
	}
	if len(m.domains) > 0 && m.naming == nil {
		return nil, errors.New("naming control is nil")
	}
	return m, nil
}

func (m *memory) Init(context.Context) error {
	m.dht = kad.NewMemoryDHT()
	return nil
}

// Start registers the domains of named listen addresses. Registration
// results are only logged.
func (m *memory) Start(ctx context.Context) error {
	for _, domain := range m.domains {
		done := m.naming.RegisterAsync(ctx, domain)
		go func(domain record.Name) {
			if err := <-done; err != nil {
				zlog.Sugar().Errorf("registering %s: %v", domain, err)
				return
			}
			zlog.Info("registered listen domain", zap.String("domain", domain.String()))
		}(domain)
	}
	return nil
}

func (m *memory) Records() kad.DHT { return m.dht }

func (m *memory) PublishedAddrs() []multiaddr.Multiaddr { return m.addrs }

func (m *memory) Stop() error {
	if m.dht == nil {
		return nil
	}
	return m.dht.Close()
}

// Package libp2p runs the node: a libp2p host whose TCP transport
// understands /an addresses, and the Kademlia DHT naming records live in.
package libp2p

import (
	"context"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p"
	dht "github.com/libp2p/go-libp2p-kad-dht"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
	"github.com/libp2p/go-libp2p/core/routing"
	"github.com/libp2p/go-libp2p/core/transport"
	"github.com/libp2p/go-libp2p/p2p/net/connmgr"
	"github.com/libp2p/go-libp2p/p2p/protocol/circuitv2/relay"
	"github.com/libp2p/go-libp2p/p2p/security/noise"
	libp2ptls "github.com/libp2p/go-libp2p/p2p/security/tls"
	"github.com/libp2p/go-libp2p/p2p/transport/tcp"
	"github.com/multiformats/go-multiaddr"
	madns "github.com/multiformats/go-multiaddr-dns"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	bt "gitlab.com/alternet/naming-service/internal/background_tasks"
	"gitlab.com/alternet/naming-service/naming/kad"
	nametransport "gitlab.com/alternet/naming-service/naming/transport"
)

// Config contains the configuration for a Libp2p instance.
type Config struct {
	PrivateKey     crypto.PrivKey
	ListenAddress  []string
	BootstrapPeers []multiaddr.Multiaddr
	// Server nodes answer DHT queries and do not announce private addresses.
	Server       bool
	DHTPrefix    string
	QueryTimeout time.Duration

	Naming           nametransport.Naming
	EnableDeregister bool
	// Resolver, when set, replaces the host's multiaddr resolver so that
	// /dnsaddr lookups of .an names go through the naming service.
	Resolver *madns.Resolver

	Scheduler *bt.Scheduler
}

// Libp2p is a running node.
type Libp2p struct {
	Host      host.Host
	DHT       *dht.IpfsDHT
	Kad       *KadDHT
	Transport *nametransport.Transport

	bootstrapTask *bt.Task
	config        *Config
}

// New validates config. Init builds the host.
func New(config *Config) (*Libp2p, error) {
	if config == nil {
		return nil, errors.New("config is nil")
	}
	if config.PrivateKey == nil {
		return nil, errors.New("private key is nil")
	}
	if config.Naming == nil {
		return nil, errors.New("naming control is nil")
	}
	return &Libp2p{config: config}, nil
}

// Init creates the host, the DHT and the naming transport.
func (l *Libp2p) Init(ctx context.Context) error {
	h, idht, named, err := NewHost(ctx, l.config)
	if err != nil {
		zlog.Sugar().Error(err)
		return err
	}
	kadDHT, err := NewKadDHT(h, idht, l.config.QueryTimeout)
	if err != nil {
		return multierr.Combine(err, idht.Close(), h.Close())
	}

	l.Host = h
	l.DHT = idht
	l.Kad = kadDHT
	l.Transport = named
	return nil
}

// Start bootstraps the DHT and keeps the bootstrap connections up.
func (l *Libp2p) Start(ctx context.Context) error {
	if err := l.Bootstrap(ctx, l.config.BootstrapPeers); err != nil {
		zlog.Sugar().Errorf("failed to start network: %v", err)
		return err
	}
	if l.Transport != nil {
		go l.Transport.Run(ctx)
	}

	if l.config.Scheduler != nil {
		l.bootstrapTask = l.config.Scheduler.AddTask(&bt.Task{
			Name:        "DHT Bootstrap",
			Description: "Periodic task to reconnect to the bootstrap peers every 15 minutes",
			Function: func(interface{}) error {
				return l.Bootstrap(ctx, l.config.BootstrapPeers)
			},
			Triggers: []bt.Trigger{&bt.PeriodicTrigger{Interval: 15 * time.Minute}},
		})
	}
	return nil
}

// Bootstrap connects to every bootstrap peer at the same time.
func (l *Libp2p) Bootstrap(ctx context.Context, bootstrapPeers []multiaddr.Multiaddr) error {
	if err := l.DHT.Bootstrap(ctx); err != nil {
		return errors.Wrap(err, "failed to prepare this node for bootstrapping")
	}

	var wg sync.WaitGroup
	for _, addr := range bootstrapPeers {
		wg.Add(1)
		go func(peerAddr multiaddr.Multiaddr) {
			defer wg.Done()
			addrInfo, err := peer.AddrInfoFromP2pAddr(peerAddr)
			if err != nil {
				zlog.Sugar().Errorf("failed to convert multi addr to addr info %v - %v", peerAddr, err)
				return
			}
			if err := l.Host.Connect(ctx, *addrInfo); err != nil {
				zlog.Sugar().Errorf("failed to connect to bootstrap node %s - %v", addrInfo.ID.String(), err)
			} else {
				zlog.Sugar().Infof("connected to bootstrap node %s", addrInfo.ID.String())
			}
		}(addr)
	}
	wg.Wait()
	return nil
}

// GetMultiaddr returns the peer's multiaddrs, each ending in /p2p/<id>.
func (l *Libp2p) GetMultiaddr() ([]multiaddr.Multiaddr, error) {
	peerInfo := peer.AddrInfo{
		ID:    l.Host.ID(),
		Addrs: l.Host.Addrs(),
	}
	return peer.AddrInfoToP2pAddrs(&peerInfo)
}

// Records is the DHT capability naming queries go through.
func (l *Libp2p) Records() kad.DHT {
	return l.Kad
}

// PublishedAddrs is GetMultiaddr without the error, for the naming behaviour.
func (l *Libp2p) PublishedAddrs() []multiaddr.Multiaddr {
	addrs, err := l.GetMultiaddr()
	if err != nil {
		zlog.Sugar().Errorf("failed to list own addresses: %v", err)
		return nil
	}
	return addrs
}

// Stop performs a cleanup of any resources used in this package.
func (l *Libp2p) Stop() error {
	if l.bootstrapTask != nil {
		l.config.Scheduler.RemoveTask(l.bootstrapTask.ID)
	}
	var errs error
	if l.Kad != nil {
		errs = multierr.Append(errs, l.Kad.Close())
	}
	if l.DHT != nil {
		errs = multierr.Append(errs, l.DHT.Close())
	}
	if l.Host != nil {
		errs = multierr.Append(errs, l.Host.Close())
	}
	return errs
}

// NewHost builds the libp2p host. Its only direct transport is TCP wrapped
// by the naming transport, so listen and dial addresses may carry /an.
func NewHost(ctx context.Context, config *Config) (host.Host, *dht.IpfsDHT, *nametransport.Transport, error) {
	var (
		idht  *dht.IpfsDHT
		named *nametransport.Transport
	)

	self, err := peer.IDFromPrivateKey(config.PrivateKey)
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "deriving peer id")
	}

	connmgr, err := connmgr.NewConnManager(
		100, // Lowwater
		400, // HighWater,
		connmgr.WithGracePeriod(time.Minute),
	)
	if err != nil {
		zlog.Sugar().Errorf("Error Creating Connection Manager: %v", err)
		return nil, nil, nil, err
	}

	mode := dht.ModeAuto
	if config.Server {
		mode = dht.ModeServer
	}
	prefix := config.DHTPrefix
	if prefix == "" {
		prefix = "/" + namespace
	}
	dhtOpts := []dht.Option{
		dht.ProtocolPrefix(protocol.ID(prefix)),
		dht.NamespacedValidator(namespace, dhtValidator{now: time.Now}),
		dht.Mode(mode),
	}

	libp2pOpts := []libp2p.Option{
		libp2p.ListenAddrStrings(config.ListenAddress...),
		libp2p.Identity(config.PrivateKey),
		libp2p.Routing(func(h host.Host) (routing.PeerRouting, error) {
			idht, err = dht.New(ctx, h, dhtOpts...)
			return idht, err
		}),
		libp2p.DefaultPeerstore,
		libp2p.Security(libp2ptls.ID, libp2ptls.New),
		libp2p.Security(noise.ID, noise.New),
		libp2p.Transport(func(upgrader transport.Upgrader, rcmgr network.ResourceManager) (*nametransport.Transport, error) {
			inner, err := tcp.NewTCPTransport(upgrader, rcmgr)
			if err != nil {
				return nil, err
			}
			named = nametransport.New(nametransport.Config{
				Self:             self,
				Inner:            peerSuffixStripper{inner},
				Naming:           config.Naming,
				EnableDeregister: config.EnableDeregister,
			})
			return named, nil
		}),
		libp2p.EnableNATService(),
		libp2p.ConnectionManager(connmgr),
		libp2p.EnableRelay(),
		libp2p.EnableHolePunching(),
		libp2p.EnableRelayService(
			relay.WithResources(
				relay.Resources{
					MaxReservations:        256,
					MaxCircuits:            32,
					BufferSize:             4096,
					MaxReservationsPerPeer: 8,
					MaxReservationsPerIP:   16,
				},
			),
			relay.WithLimit(&relay.RelayLimit{
				Duration: 5 * time.Minute,
				Data:     1 << 21, // 2 MiB
			}),
		),
	}

	if config.Resolver != nil {
		libp2pOpts = append(libp2pOpts, libp2p.MultiaddrResolver(config.Resolver))
	}

	if config.Server {
		libp2pOpts = append(libp2pOpts,
			libp2p.AddrsFactory(makeAddrsFactory(defaultServerFilters)),
			libp2p.ConnectionGater((*filtersConnectionGater)(newFilters(defaultServerFilters))),
		)
	} else {
		libp2pOpts = append(libp2pOpts, libp2p.NATPortMap())
	}

	h, err := libp2p.New(libp2pOpts...)
	if err != nil {
		zlog.Sugar().Errorf("Couldn't Create Host: %v", err)
		return nil, nil, nil, err
	}

	zlog.Sugar().Infof("Self Peer Info %s -> %s", h.ID().String(), h.Addrs())

	return h, idht, named, nil
}

// peerSuffixStripper lets TCP handle addresses ending in /p2p/<id>, which
// the naming transport produces on both listen and dial.
type peerSuffixStripper struct {
	transport.Transport
}

func stripPeer(addr multiaddr.Multiaddr) multiaddr.Multiaddr {
	rest, last := multiaddr.SplitLast(addr)
	if last != nil && rest != nil && last.Protocol().Code == multiaddr.P_P2P {
		return rest
	}
	return addr
}

func (s peerSuffixStripper) Dial(ctx context.Context, raddr multiaddr.Multiaddr, p peer.ID) (transport.CapableConn, error) {
	return s.Transport.Dial(ctx, stripPeer(raddr), p)
}

func (s peerSuffixStripper) CanDial(addr multiaddr.Multiaddr) bool {
	return s.Transport.CanDial(stripPeer(addr))
}

func (s peerSuffixStripper) Listen(laddr multiaddr.Multiaddr) (transport.Listener, error) {
	return s.Transport.Listen(stripPeer(laddr))
}

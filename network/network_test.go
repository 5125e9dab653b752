package network

import (
	"context"
	"testing"

	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"
	"github.com/stretchr/testify/assert"

	"gitlab.com/alternet/naming-service/internal/background_tasks"
	"gitlab.com/alternet/naming-service/naming/control"
	"gitlab.com/alternet/naming-service/network/libp2p"
)

func TestNewNetwork(t *testing.T) {
	t.Parallel()

	priv, _, err := crypto.GenerateEd25519Key(nil)
	assert.NoError(t, err)
	ctl, _ := control.New(1)
	defer ctl.Close()

	cases := map[string]struct {
		config *Config
		expErr string
	}{
		"no config given": {
			expErr: "network configuration is nil",
		},
		"invalid network": {
			config: &Config{Type: "invalid-type"},
			expErr: "unsupported network type: invalid-type",
		},
		"nats network": {
			config: &Config{Type: NATSNetwork},
			expErr: "not implemented",
		},
		"libp2p without key": {
			config: &Config{Type: Libp2pNetwork},
			expErr: "private key is nil",
		},
		"memory without key": {
			config: &Config{Type: MemoryNetwork},
			expErr: "private key is nil",
		},
		"memory network": {
			config: &Config{
				Type:         MemoryNetwork,
				Libp2pConfig: libp2p.Config{PrivateKey: priv},
			},
		},
		"libp2p network": {
			config: &Config{
				Type: Libp2pNetwork,
				Libp2pConfig: libp2p.Config{
					PrivateKey:     priv,
					BootstrapPeers: []multiaddr.Multiaddr{},
					Server:         false,
					Scheduler:      background_tasks.NewScheduler(1),
					DHTPrefix:      "/alternet-test",
					ListenAddress:  []string{"/ip4/127.0.0.1/tcp/0"},
					Naming:         ctl,
				},
			},
		},
	}

	for name, tt := range cases {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			network, err := NewNetwork(tt.config)
			if tt.expErr != "" {
				assert.Nil(t, network)
				assert.EqualError(t, err, tt.expErr)
			} else {
				assert.NotNil(t, network)
				assert.NoError(t, err)
			}
		})
	}
}

func TestNetworkLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("starts a libp2p host")
	}
	t.Parallel()

	priv, _, err := crypto.GenerateEd25519Key(nil)
	assert.NoError(t, err)
	ctl, _ := control.New(1)
	defer ctl.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	network, err := NewNetwork(&Config{
		Type: Libp2pNetwork,
		Libp2pConfig: libp2p.Config{
			PrivateKey:    priv,
			ListenAddress: []string{"/ip4/127.0.0.1/tcp/0"},
			Naming:        ctl,
		},
	})
	assert.NoError(t, err)
	assert.NoError(t, network.Init(ctx))
	assert.NotNil(t, network.Records())
	assert.NotEmpty(t, network.PublishedAddrs())
	assert.NoError(t, network.Start(ctx))
	assert.NoError(t, network.Stop())
}

func TestMemoryNetwork(t *testing.T) {
	t.Parallel()

	priv, _, err := crypto.GenerateEd25519Key(nil)
	assert.NoError(t, err)
	self, err := peer.IDFromPrivateKey(priv)
	assert.NoError(t, err)

	n, err := NewNetwork(&Config{
		Type: MemoryNetwork,
		Libp2pConfig: libp2p.Config{
			PrivateKey:    priv,
			ListenAddress: []string{"/ip4/127.0.0.1/tcp/4001"},
		},
	})
	assert.NoError(t, err)

	ctx := context.Background()
	assert.NoError(t, n.Init(ctx))
	assert.NoError(t, n.Start(ctx))
	assert.NotNil(t, n.Records())

	addrs := n.PublishedAddrs()
	if assert.Len(t, addrs, 1) {
		assert.Equal(t, "/ip4/127.0.0.1/tcp/4001/p2p/"+self.String(), addrs[0].String())
	}
	assert.NoError(t, n.Stop())
}

func TestMemoryNetworkRegistersNamedListenAddrs(t *testing.T) {
	t.Parallel()

	priv, _, err := crypto.GenerateEd25519Key(nil)
	assert.NoError(t, err)
	self, err := peer.IDFromPrivateKey(priv)
	assert.NoError(t, err)
	ctl, requests := control.New(1)
	defer ctl.Close()

	n, err := NewNetwork(&Config{
		Type: MemoryNetwork,
		Libp2pConfig: libp2p.Config{
			PrivateKey:    priv,
			ListenAddress: []string{"/ip4/127.0.0.1/tcp/4001/an/node.an"},
			Naming:        ctl,
		},
	})
	assert.NoError(t, err)
	assert.Equal(t, "/ip4/127.0.0.1/tcp/4001/p2p/"+self.String(), n.PublishedAddrs()[0].String())

	ctx := context.Background()
	assert.NoError(t, n.Init(ctx))
	assert.NoError(t, n.Start(ctx))

	req, ok := (<-requests).(*control.RegisterRequest)
	if assert.True(t, ok) {
		assert.Equal(t, "node.an", req.Name.String())
		req.Reply <- nil
	}
	assert.NoError(t, n.Stop())
}

func TestMemoryNetworkRejectsBadListenAddrs(t *testing.T) {
	t.Parallel()

	priv, _, err := crypto.GenerateEd25519Key(nil)
	assert.NoError(t, err)

	cases := map[string]struct {
		addrs  []string
		expErr string
	}{
		"unparsable": {
			addrs:  []string{"nope"},
			expErr: `listen address "nope"`,
		},
		"named without control": {
			addrs:  []string{"/ip4/127.0.0.1/tcp/4001/an/node.an"},
			expErr: "naming control is nil",
		},
	}

	for name, tt := range cases {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			n, err := NewNetwork(&Config{
				Type:         MemoryNetwork,
				Libp2pConfig: libp2p.Config{PrivateKey: priv, ListenAddress: tt.addrs},
			})
			assert.Nil(t, n)
			assert.ErrorContains(t, err, tt.expErr)
		})
	}
}

// Package network selects the peer-to-peer stack the naming service runs on.
package network

import (
	"context"

	"github.com/multiformats/go-multiaddr"
	"github.com/pkg/errors"

	"gitlab.com/alternet/naming-service/naming/kad"
	"gitlab.com/alternet/naming-service/network/libp2p"
)

type NetworkType string

const (
	Libp2pNetwork NetworkType = "libp2p"
	MemoryNetwork NetworkType = "memory"
	NATSNetwork   NetworkType = "nats"
)

// Config selects and configures the network. The memory network only reads
// PrivateKey and ListenAddress from Libp2pConfig.
type Config struct {
	Type         NetworkType
	Libp2pConfig libp2p.Config
}

type Network interface {
	// Init builds the network without connecting to anyone
	Init(context.Context) error

	// Start joins the network
	Start(context context.Context) error

	// Records is the DHT naming records are stored in
	Records() kad.DHT

	// PublishedAddrs are the addresses this node announces under its names
	PublishedAddrs() []multiaddr.Multiaddr

	// Stop leaves the network and releases its resources
	Stop() error
}

// NewNetwork returns a new network given the configuration.
func NewNetwork(netConfig *Config) (Network, error) {
	if netConfig == nil {
		return nil, errors.New("network configuration is nil")
	}
	switch netConfig.Type {
	case Libp2pNetwork:
		ln, err := libp2p.New(&netConfig.Libp2pConfig)
		if err != nil {
			return nil, err
		}
		return ln, nil
	case MemoryNetwork:
		mn, err := newMemory(netConfig.Libp2pConfig)
		if err != nil {
			return nil, err
		}
		return mn, nil
	case NATSNetwork:
		return nil, errors.New("not implemented")
	default:
		return nil, errors.Errorf("unsupported network type: %s", netConfig.Type)
	}
}

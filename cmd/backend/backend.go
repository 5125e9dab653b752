// Package backend abstracts what the CLI needs from its surroundings so
// commands can be tested against mocks.
package backend

import (
	gonet "github.com/shirou/gopsutil/net"
)

// NetworkManager abstracts connection on ports
type NetworkManager interface {
	GetConnections(kind string) ([]gonet.ConnectionStat, error)
}

// Utility abstracts calls to the node's REST API
type Utility interface {
	ResponseBody(method, endpoint, query string, body []byte) ([]byte, error)
}

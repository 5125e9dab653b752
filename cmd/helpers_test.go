package cmd

import (
	"bytes"
	"fmt"
	"sync"

	gonet "github.com/shirou/gopsutil/net"
	"github.com/spf13/cobra"

	"gitlab.com/alternet/naming-service/internal/config"
)

// ========= MOCK IMPLEMENTATIONS ==========

type mockResponse struct {
	body []byte
	err  error
}

type MockUtilsService struct {
	mu        sync.Mutex
	responses map[string]mockResponse
	requests  map[string][]byte
}

// SetResponseFor is a helper method. It sets a mock response for a specific method and endpoint
func (mu *MockUtilsService) SetResponseFor(method, endpoint string, resp []byte) {
	mu.set(method, endpoint, mockResponse{body: resp})
}

// SetErrorFor makes the request for method and endpoint fail with err.
func (mu *MockUtilsService) SetErrorFor(method, endpoint string, err error) {
	mu.set(method, endpoint, mockResponse{err: err})
}

func (mu *MockUtilsService) set(method, endpoint string, resp mockResponse) {
	mu.mu.Lock()
	defer mu.mu.Unlock()
	if mu.responses == nil {
		mu.responses = make(map[string]mockResponse)
	}
	mu.responses[method+":"+endpoint] = resp
}

// RequestBody returns the body last sent to method and endpoint.
func (mu *MockUtilsService) RequestBody(method, endpoint string) []byte {
	mu.mu.Lock()
	defer mu.mu.Unlock()
	return mu.requests[method+":"+endpoint]
}

func (mu *MockUtilsService) ResponseBody(method, endpoint, query string, body []byte) ([]byte, error) {
	mu.mu.Lock()
	defer mu.mu.Unlock()

	key := method + ":" + endpoint
	if mu.requests == nil {
		mu.requests = make(map[string][]byte)
	}
	mu.requests[key] = body

	response, ok := mu.responses[key]
	if !ok {
		return nil, fmt.Errorf("no mock set for method: %s, endpoint: %s", method, endpoint)
	}
	return response.body, response.err
}

type MockConnection struct {
	conns []gonet.ConnectionStat
	err   error
}

func (mc *MockConnection) GetConnections(kind string) ([]gonet.ConnectionStat, error) {
	return mc.conns, mc.err
}

// ========= HELPERS ==========

// nodeListening reports the REST port as open.
func nodeListening() *MockConnection {
	return &MockConnection{conns: []gonet.ConnectionStat{
		{Status: "ESTABLISHED", Laddr: gonet.Addr{IP: "127.0.0.1", Port: 51000}},
		{Status: "LISTEN", Laddr: gonet.Addr{IP: "0.0.0.0", Port: uint32(config.GetConfig().Rest.Port)}},
	}}
}

func execute(cmd *cobra.Command, args ...string) (string, error) {
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

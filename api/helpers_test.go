package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"

	"gitlab.com/alternet/naming-service/naming/behaviour"
	"gitlab.com/alternet/naming-service/naming/record"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type grantCall struct {
	subdomain record.Name
	leasee    peer.ID
	until     time.Time
}

type fakeNaming struct {
	mu         sync.Mutex
	addrs      map[string][]multiaddr.Multiaddr
	err        error
	registered []record.Name
	removed    []record.Name
	grants     []grantCall
}

func (f *fakeNaming) Resolve(_ context.Context, name record.Name) ([]multiaddr.Multiaddr, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.addrs[name.String()], nil
}

func (f *fakeNaming) Register(_ context.Context, name record.Name) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.registered = append(f.registered, name)
	return nil
}

func (f *fakeNaming) Deregister(_ context.Context, name record.Name) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.removed = append(f.removed, name)
	return nil
}

func (f *fakeNaming) Grant(_ context.Context, subdomain record.Name, leasee peer.ID, until time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.grants = append(f.grants, grantCall{subdomain: subdomain, leasee: leasee, until: until})
	return nil
}

type fakeNode struct {
	self   peer.ID
	claims []record.Name
	grants []behaviour.Grant
}

func (f *fakeNode) Self() peer.ID             { return f.self }
func (f *fakeNode) Claims() []record.Name     { return f.claims }
func (f *fakeNode) Grants() []behaviour.Grant { return f.grants }

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestServer(naming *fakeNaming, node *fakeNode) *gin.Engine {
	s := NewServer(naming, node)
	s.now = func() time.Time { return testNow }
	return s.SetupRouter()
}

func serve(t *testing.T, router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func serveWithOrigin(router *gin.Engine, origin string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/self", nil)
	req.Header.Set("Origin", origin)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

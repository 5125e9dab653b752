package control

import (
	"time"

	"github.com/google/uuid"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"

	"gitlab.com/alternet/naming-service/naming/record"
)

// Request is one of *ResolveRequest, *RegisterRequest, *DeregisterRequest or
// *GrantRequest. Reply channels have room for exactly one value, so the
// receiver never blocks answering a caller that went away.
type Request interface {
	RequestID() uuid.UUID
	isRequest()
}

type ResolveRequest struct {
	ID    uuid.UUID
	Name  record.Name
	Reply chan<- ResolveResponse
}

type ResolveResponse struct {
	Addrs []multiaddr.Multiaddr
	Err   error
}

type RegisterRequest struct {
	ID    uuid.UUID
	Name  record.Name
	Reply chan<- error
}

// DeregisterRequest has no reply: it is done once it is queued.
type DeregisterRequest struct {
	ID   uuid.UUID
	Name record.Name
}

// GrantRequest delegates Subdomain, which must be a child of a name this
// node holds, to Leasee until Until.
type GrantRequest struct {
	ID        uuid.UUID
	Subdomain record.Name
	Leasee    peer.ID
	Until     time.Time
	Reply     chan<- error
}

func (r *ResolveRequest) RequestID() uuid.UUID    { return r.ID }
func (r *RegisterRequest) RequestID() uuid.UUID   { return r.ID }
func (r *DeregisterRequest) RequestID() uuid.UUID { return r.ID }
func (r *GrantRequest) RequestID() uuid.UUID      { return r.ID }

func (*ResolveRequest) isRequest()    {}
func (*RegisterRequest) isRequest()   {}
func (*DeregisterRequest) isRequest() {}
func (*GrantRequest) isRequest()      {}

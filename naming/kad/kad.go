// Package kad describes the DHT the naming behaviour runs on: asynchronous
// record queries whose progress arrives as events.
package kad

import (
	"context"
	"fmt"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/pkg/errors"

	"gitlab.com/alternet/naming-service/naming/record"
)

// Record is a value as the DHT stores it.
type Record = record.Stored

type QueryID uint64

// Quorum is the number of peers that must answer a query; zero means the
// implementation's default.
type Quorum int

const QuorumOne Quorum = 1

// ErrNotFound is reported on the last step of a GetRecord that saw no record.
var ErrNotFound = errors.New("record not found")

// DHT starts queries and reports their progress on Events. Every query
// produces zero or more QueryProgressed events and exactly one with
// Step.Last set.
type DHT interface {
	GetRecord(ctx context.Context, key []byte) QueryID
	PutRecord(ctx context.Context, rec Record, quorum Quorum) (QueryID, error)
	Events() <-chan Event
}

// Event is *QueryProgressed or *RoutingUpdated.
type Event interface {
	isEvent()
}

type QueryKind int

const (
	QueryGetRecord QueryKind = iota + 1
	QueryPutRecord
)

func (k QueryKind) String() string {
	switch k {
	case QueryGetRecord:
		return "get_record"
	case QueryPutRecord:
		return "put_record"
	}
	return "unknown"
}

type Step struct {
	Count int
	Last  bool
}

// QueryProgressed carries one result of a query. For GetRecord, Record is
// set on every step that found one. Err is only set on the last step.
type QueryProgressed struct {
	ID     QueryID
	Kind   QueryKind
	Step   Step
	Record *Record
	Err    error
}

// RoutingUpdated reports a change of the routing table.
type RoutingUpdated struct {
	Peer peer.ID
}

func (*QueryProgressed) isEvent() {}
func (*RoutingUpdated) isEvent()  {}

func (e *QueryProgressed) String() string {
	return fmt.Sprintf("%s query %d step %d (last: %t)", e.Kind, e.ID, e.Step.Count, e.Step.Last)
}

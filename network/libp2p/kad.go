package libp2p

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	dht "github.com/libp2p/go-libp2p-kad-dht"
	"github.com/libp2p/go-libp2p/core/event"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/pkg/errors"
	"github.com/sourcegraph/conc"

	"gitlab.com/alternet/naming-service/naming/kad"
)

const defaultQueryTimeout = time.Minute

// KadDHT runs naming queries on a Kademlia DHT. Every call starts a
// goroutine whose progress is reported on Events.
type KadDHT struct {
	dht          *dht.IpfsDHT
	queryTimeout time.Duration

	nextID  atomic.Uint64
	events  chan kad.Event
	queries conc.WaitGroup
	closed  chan struct{}
	once    sync.Once
	sub     event.Subscription
}

var _ kad.DHT = (*KadDHT)(nil)

// NewKadDHT wraps d. Connections of h are reported as routing updates.
func NewKadDHT(h host.Host, d *dht.IpfsDHT, queryTimeout time.Duration) (*KadDHT, error) {
	if queryTimeout <= 0 {
		queryTimeout = defaultQueryTimeout
	}
	k := &KadDHT{
		dht:          d,
		queryTimeout: queryTimeout,
		events:       make(chan kad.Event, 64),
		closed:       make(chan struct{}),
	}
	sub, err := h.EventBus().Subscribe(new(event.EvtPeerConnectednessChanged))
	if err != nil {
		return nil, errors.Wrap(err, "subscribing to connectedness events")
	}
	k.sub = sub
	go k.watchPeers()
	return k, nil
}

func (k *KadDHT) watchPeers() {
	for {
		select {
		case <-k.closed:
			return
		case e, ok := <-k.sub.Out():
			if !ok {
				return
			}
			evt := e.(event.EvtPeerConnectednessChanged)
			if evt.Connectedness == network.Connected {
				k.emit(&kad.RoutingUpdated{Peer: evt.Peer})
			}
		}
	}
}

func (k *KadDHT) Events() <-chan kad.Event { return k.events }

func (k *KadDHT) emit(ev kad.Event) {
	select {
	case k.events <- ev:
	case <-k.closed:
	}
}

// queryContext bounds a query by the timeout and by Close.
func (k *KadDHT) queryContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(parent, k.queryTimeout)
	go func() {
		select {
		case <-k.closed:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

func (k *KadDHT) GetRecord(ctx context.Context, key []byte) kad.QueryID {
	id := kad.QueryID(k.nextID.Add(1))
	k.queries.Go(func() {
		ctx, cancel := k.queryContext(ctx)
		defer cancel()

		values, err := k.dht.SearchValue(ctx, dhtKey(key))
		if err != nil {
			k.emit(&kad.QueryProgressed{ID: id, Kind: kad.QueryGetRecord, Step: kad.Step{Count: 1, Last: true}, Err: err})
			return
		}
		count := 0
		for value := range values {
			rec, err := unmarshalEnvelope(value)
			if err != nil {
				zlog.Sugar().Warnf("dropping undecodable envelope for query %d: %v", id, err)
				continue
			}
			count++
			k.emit(&kad.QueryProgressed{ID: id, Kind: kad.QueryGetRecord, Step: kad.Step{Count: count}, Record: &rec})
		}
		last := &kad.QueryProgressed{ID: id, Kind: kad.QueryGetRecord, Step: kad.Step{Count: count + 1, Last: true}}
		if count == 0 {
			last.Err = kad.ErrNotFound
		}
		k.emit(last)
	})
	return id
}

// PutRecord stores rec on the peers closest to its key. The DHT decides how
// many peers that is, so quorum is not enforced.
func (k *KadDHT) PutRecord(ctx context.Context, rec kad.Record, _ kad.Quorum) (kad.QueryID, error) {
	if len(rec.Key) == 0 {
		return 0, errors.New("record without key")
	}
	id := kad.QueryID(k.nextID.Add(1))
	value := marshalEnvelope(rec)
	k.queries.Go(func() {
		ctx, cancel := k.queryContext(ctx)
		defer cancel()

		err := k.dht.PutValue(ctx, dhtKey(rec.Key), value)
		k.emit(&kad.QueryProgressed{ID: id, Kind: kad.QueryPutRecord, Step: kad.Step{Count: 1, Last: true}, Err: err})
	})
	return id, nil
}

// Close stops event delivery and waits for running queries.
func (k *KadDHT) Close() error {
	k.once.Do(func() { close(k.closed) })
	err := k.sub.Close()
	k.queries.Wait()
	return err
}

package libp2p

import (
	"bytes"
	"time"

	p2precord "github.com/libp2p/go-libp2p-record"
	"github.com/pkg/errors"

	"gitlab.com/alternet/naming-service/naming/kad"
	"gitlab.com/alternet/naming-service/naming/record"
)

// dhtValidator keeps invalid naming records out of the local DHT store.
type dhtValidator struct {
	now func() time.Time
}

var _ p2precord.Validator = dhtValidator{}

func (d dhtValidator) Validate(key string, value []byte) error {
	storeKey, err := parseDHTKey(key)
	if err != nil {
		return err
	}
	rec, err := unmarshalEnvelope(value)
	if err != nil {
		return err
	}
	if !bytes.Equal(rec.Key, storeKey) {
		return errors.New("envelope key does not match dht key")
	}
	_, err = record.DecodeAndValidate(rec, d.now())
	return err
}

// Select prefers the record that expires last. Records without expiry
// never expire.
func (d dhtValidator) Select(_ string, values [][]byte) (int, error) {
	best := -1
	var bestRec kad.Record
	for i, value := range values {
		rec, err := unmarshalEnvelope(value)
		if err != nil {
			continue
		}
		if best < 0 || outlives(rec, bestRec) {
			best, bestRec = i, rec
		}
	}
	if best < 0 {
		return 0, errors.New("no decodable record to select")
	}
	return best, nil
}

func outlives(a, b kad.Record) bool {
	if a.Expires.IsZero() {
		return !b.Expires.IsZero()
	}
	return !b.Expires.IsZero() && a.Expires.After(b.Expires)
}

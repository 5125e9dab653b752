package libp2p

import (
	"encoding/hex"
	"strings"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"

	"gitlab.com/alternet/naming-service/naming/kad"
)

// The DHT stores plain values, so the publisher and expiry of a record
// travel with it in a small protobuf message:
//
//	message Envelope {
//	  bytes key = 1;
//	  bytes value = 2;
//	  bytes publisher = 3;
//	  int64 expires_unix_nano = 4; // absent when the record does not expire
//	}
const (
	fieldKey       protowire.Number = 1
	fieldValue     protowire.Number = 2
	fieldPublisher protowire.Number = 3
	fieldExpires   protowire.Number = 4
)

func marshalEnvelope(rec kad.Record) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldKey, protowire.BytesType)
	b = protowire.AppendBytes(b, rec.Key)
	b = protowire.AppendTag(b, fieldValue, protowire.BytesType)
	b = protowire.AppendBytes(b, rec.Value)
	b = protowire.AppendTag(b, fieldPublisher, protowire.BytesType)
	b = protowire.AppendBytes(b, []byte(rec.Publisher))
	if !rec.Expires.IsZero() {
		b = protowire.AppendTag(b, fieldExpires, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(rec.Expires.UnixNano()))
	}
	return b
}

func unmarshalEnvelope(b []byte) (kad.Record, error) {
	var rec kad.Record
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return kad.Record{}, errors.Wrap(protowire.ParseError(n), "envelope tag")
		}
		b = b[n:]

		switch {
		case num == fieldKey && typ == protowire.BytesType:
			rec.Key, n = protowire.ConsumeBytes(b)
		case num == fieldValue && typ == protowire.BytesType:
			rec.Value, n = protowire.ConsumeBytes(b)
		case num == fieldPublisher && typ == protowire.BytesType:
			var raw []byte
			raw, n = protowire.ConsumeBytes(b)
			if n >= 0 && len(raw) > 0 {
				id, err := peer.IDFromBytes(raw)
				if err != nil {
					return kad.Record{}, errors.Wrap(err, "envelope publisher")
				}
				rec.Publisher = id
			}
		case num == fieldExpires && typ == protowire.VarintType:
			var v uint64
			v, n = protowire.ConsumeVarint(b)
			rec.Expires = time.Unix(0, int64(v)).UTC()
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return kad.Record{}, errors.Wrapf(protowire.ParseError(n), "envelope field %d", num)
		}
		b = b[n:]
	}
	return rec, nil
}

// dhtKey maps a naming store key to its key in the DHT.
func dhtKey(storeKey []byte) string {
	return "/" + namespace + "/" + hex.EncodeToString(storeKey)
}

func parseDHTKey(key string) ([]byte, error) {
	rest, ok := strings.CutPrefix(key, "/"+namespace+"/")
	if !ok {
		return nil, errors.New("invalid key namespace")
	}
	return hex.DecodeString(rest)
}

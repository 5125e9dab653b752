// Package record implements the Alternet record model: the three record
// kinds, their canonical binary encoding and the validation of signed
// delegation chains read back from the DHT.
//
// Every record is signed. The encoded value starts with its own DHT key,
//
//	root:<root>     -> multiaddr          never expires
//	lease:<name>    -> peer id, until     signed by the owner of the base name
//	addr:<name>     -> [multiaddr]        followed by the lease chain up to the root
//
// and ends with the signer's public key and the signature over the fields.
package record

import (
	"time"

	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"
)

// RepublishInterval bounds how far in the future a stored record may expire.
const RepublishInterval = 24 * time.Hour

// ExpiredLeeway absorbs clock skew between the publisher and the reader.
const ExpiredLeeway = 5 * time.Second

type Kind int

const (
	KindRoot Kind = iota + 1
	KindLease
	KindAddr
)

func (k Kind) prefix() string {
	switch k {
	case KindRoot:
		return "root:"
	case KindLease:
		return "lease:"
	case KindAddr:
		return "addr:"
	}
	return ""
}

func (k Kind) String() string {
	switch k {
	case KindRoot:
		return "root"
	case KindLease:
		return "lease"
	case KindAddr:
		return "addr"
	}
	return "unknown"
}

// Record is one of *RootRecord, *LeaseRecord or *AddrRecord.
type Record interface {
	Kind() Kind
	// Name is the name the record is stored under.
	Name() Name
	encodeFields(w *writer)
}

type RootRecord struct {
	Root Name
	Addr multiaddr.Multiaddr
}

type LeaseRecord struct {
	Subdomain Name
	Leasee    peer.ID
	Until     time.Time
}

type AddrRecord struct {
	Domain Name
	Addrs  []multiaddr.Multiaddr
}

func (*RootRecord) Kind() Kind  { return KindRoot }
func (*LeaseRecord) Kind() Kind { return KindLease }
func (*AddrRecord) Kind() Kind  { return KindAddr }

func (r *RootRecord) Name() Name  { return r.Root }
func (r *LeaseRecord) Name() Name { return r.Subdomain }
func (r *AddrRecord) Name() Name  { return r.Domain }

// Signed binds a record to the key that signed its canonical encoding.
type Signed[T Record] struct {
	Signed    T
	PubKey    crypto.PubKey
	Signature []byte
}

// Signer is the peer identity derived from the signing key.
func (s Signed[T]) Signer() peer.ID {
	id, err := peer.IDFromPublicKey(s.PubKey)
	if err != nil {
		return ""
	}
	return id
}

// Generic widens a Signed[T] to Signed[Record].
func (s Signed[T]) Generic() Signed[Record] {
	return Signed[Record]{Signed: s.Signed, PubKey: s.PubKey, Signature: s.Signature}
}

// AsLease narrows a Signed[Record] holding a lease.
func AsLease(s Signed[Record]) (Signed[*LeaseRecord], bool) {
	lease, ok := s.Signed.(*LeaseRecord)
	if !ok {
		return Signed[*LeaseRecord]{}, false
	}
	return Signed[*LeaseRecord]{Signed: lease, PubKey: s.PubKey, Signature: s.Signature}, true
}

// Sign signs r with priv.
func Sign[T Record](priv crypto.PrivKey, r T) (Signed[T], error) {
	sig, err := priv.Sign(encodeRecordFields(r))
	if err != nil {
		return Signed[T]{}, err
	}
	return Signed[T]{Signed: r, PubKey: priv.GetPublic(), Signature: sig}, nil
}

// Chain is a validated record together with the leases linking its name to
// a root, innermost first.
type Chain struct {
	Record Signed[Record]
	Leases []Signed[*LeaseRecord]
}

// Authority is the signer of the topmost link: the owner of the root the
// chain hangs from.
func (c Chain) Authority() peer.ID {
	if len(c.Leases) == 0 {
		return c.Record.Signer()
	}
	return c.Leases[len(c.Leases)-1].Signer()
}

// Until is the earliest lease end in the chain, zero if it has no lease.
func (c Chain) Until() time.Time {
	var until time.Time
	if lease, ok := c.Record.Signed.(*LeaseRecord); ok {
		until = lease.Until
	}
	for _, lease := range c.Leases {
		if until.IsZero() || lease.Signed.Until.Before(until) {
			until = lease.Signed.Until
		}
	}
	return until
}

// Addrs extracts the addresses a resolver hands out for the chain.
func (c Chain) Addrs() ([]multiaddr.Multiaddr, error) {
	switch r := c.Record.Signed.(type) {
	case *RootRecord:
		return []multiaddr.Multiaddr{r.Addr}, nil
	case *AddrRecord:
		return r.Addrs, nil
	case *LeaseRecord:
		return nil, ErrUnexpectedRecordType
	}
	return nil, ErrUnknownRecordType
}

// Stored is a record as the DHT holds it.
type Stored struct {
	Key       []byte
	Value     []byte
	Publisher peer.ID
	// Expires is zero for records that never expire.
	Expires time.Time
}

// StoreKey is the DHT key for the record of the given kind and name. It is
// also the exact prefix of the encoded value.
func StoreKey(kind Kind, name Name) []byte {
	w := &writer{}
	w.string(kind.prefix() + name.String())
	return w.buf
}

// Publish encodes c into a record ready to be put into the DHT.
func Publish(c Chain, expires time.Time) Stored {
	return Stored{
		Key:       StoreKey(c.Record.Signed.Kind(), c.Record.Signed.Name()),
		Value:     EncodeChain(c),
		Publisher: c.Record.Signer(),
		Expires:   expires,
	}
}

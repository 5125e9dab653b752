package record

import (
	"bytes"
	"time"

	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"
	"github.com/multiformats/go-varint"
	"github.com/pkg/errors"
)

// All lengths and integers are unsigned LEB128 varints.

type writer struct {
	buf []byte
}

func (w *writer) uvarint(v uint64) {
	w.buf = append(w.buf, varint.ToUvarint(v)...)
}

func (w *writer) bytes(b []byte) {
	w.uvarint(uint64(len(b)))
	w.buf = append(w.buf, b...)
}

func (w *writer) string(s string) {
	w.uvarint(uint64(len(s)))
	w.buf = append(w.buf, s...)
}

func (w *writer) time(t time.Time) {
	secs := t.Unix()
	if secs < 0 {
		secs = 0
	}
	w.uvarint(uint64(secs))
	w.uvarint(uint64(t.Nanosecond()))
}

func (r *RootRecord) encodeFields(w *writer) {
	w.string(KindRoot.prefix() + r.Root.String())
	w.bytes(r.Addr.Bytes())
}

func (r *LeaseRecord) encodeFields(w *writer) {
	w.string(KindLease.prefix() + r.Subdomain.String())
	w.bytes([]byte(r.Leasee))
	w.time(r.Until)
}

func (r *AddrRecord) encodeFields(w *writer) {
	w.string(KindAddr.prefix() + r.Domain.String())
	w.uvarint(uint64(len(r.Addrs)))
	for _, addr := range r.Addrs {
		w.bytes(addr.Bytes())
	}
}

func encodeRecordFields(r Record) []byte {
	w := &writer{}
	r.encodeFields(w)
	return w.buf
}

func encodeSigned[T Record](w *writer, s Signed[T]) {
	s.Signed.encodeFields(w)
	// Marshalling only fails for unknown key types, which could not have signed.
	pub, _ := crypto.MarshalPublicKey(s.PubKey)
	w.bytes(pub)
	w.bytes(s.Signature)
}

// Encode returns the canonical encoding of a single signed record.
func Encode[T Record](s Signed[T]) []byte {
	w := &writer{}
	encodeSigned(w, s)
	return w.buf
}

// EncodeChain encodes the record followed by its leases, innermost first.
func EncodeChain(c Chain) []byte {
	w := &writer{}
	encodeSigned(w, c.Record)
	for _, lease := range c.Leases {
		encodeSigned(w, lease)
	}
	return w.buf
}

type reader struct {
	buf []byte
	off int
}

func (r *reader) remaining() int { return len(r.buf) - r.off }

func (r *reader) uvarint() (uint64, error) {
	v, n, err := varint.FromUvarint(r.buf[r.off:])
	if err != nil {
		return 0, decodeErr(err, "varint")
	}
	r.off += n
	return v, nil
}

func (r *reader) bytes() ([]byte, error) {
	n, err := r.uvarint()
	if err != nil {
		return nil, err
	}
	if n > uint64(r.remaining()) {
		return nil, decodeErr(errors.Errorf("length %d exceeds %d remaining bytes", n, r.remaining()), "bytes")
	}
	b := r.buf[r.off : r.off+int(n)]
	r.off += int(n)
	return b, nil
}

func (r *reader) time() (time.Time, error) {
	secs, err := r.uvarint()
	if err != nil {
		return time.Time{}, err
	}
	nanos, err := r.uvarint()
	if err != nil {
		return time.Time{}, err
	}
	if nanos >= uint64(time.Second) || secs > 1<<62 {
		return time.Time{}, decodeErr(errors.New("timestamp out of range"), "time")
	}
	return time.Unix(int64(secs), int64(nanos)).UTC(), nil
}

// key reads the key string and returns the name following prefix.
func (r *reader) key(kind Kind) (Name, error) {
	key, err := r.bytes()
	if err != nil {
		return Name{}, err
	}
	rest, ok := bytes.CutPrefix(key, []byte(kind.prefix()))
	if !ok {
		return Name{}, ErrUnexpectedRecordType
	}
	name, err := ParseName(string(rest))
	if err != nil {
		return Name{}, decodeErr(err, "name")
	}
	if name.String() != string(rest) {
		return Name{}, decodeErr(errors.Errorf("name %q is not canonical", rest), "name")
	}
	return name, nil
}

func (r *reader) multiaddr() (multiaddr.Multiaddr, error) {
	b, err := r.bytes()
	if err != nil {
		return nil, err
	}
	addr, err := multiaddr.NewMultiaddrBytes(bytes.Clone(b))
	if err != nil {
		return nil, decodeErr(err, "multiaddr")
	}
	return addr, nil
}

// peekKind looks at the key string without consuming it.
func (r *reader) peekKind() (Kind, error) {
	peek := &reader{buf: r.buf, off: r.off}
	key, err := peek.bytes()
	if err != nil {
		return 0, err
	}
	for _, kind := range []Kind{KindRoot, KindLease, KindAddr} {
		if bytes.HasPrefix(key, []byte(kind.prefix())) {
			return kind, nil
		}
	}
	return 0, ErrUnknownRecordType
}

func (r *reader) rootRecord() (*RootRecord, error) {
	root, err := r.key(KindRoot)
	if err != nil {
		return nil, err
	}
	if !root.IsRoot() {
		return nil, decodeErr(errors.Errorf("root record for non-root name %s", root), "root")
	}
	addr, err := r.multiaddr()
	if err != nil {
		return nil, err
	}
	return &RootRecord{Root: root, Addr: addr}, nil
}

func (r *reader) leaseRecord() (*LeaseRecord, error) {
	subdomain, err := r.key(KindLease)
	if err != nil {
		return nil, err
	}
	if subdomain.IsRoot() {
		return nil, decodeErr(errors.Errorf("lease for root name %s", subdomain), "lease")
	}
	raw, err := r.bytes()
	if err != nil {
		return nil, err
	}
	leasee, err := peer.IDFromBytes(raw)
	if err != nil {
		return nil, decodeErr(err, "leasee")
	}
	until, err := r.time()
	if err != nil {
		return nil, err
	}
	return &LeaseRecord{Subdomain: subdomain, Leasee: leasee, Until: until}, nil
}

func (r *reader) addrRecord() (*AddrRecord, error) {
	domain, err := r.key(KindAddr)
	if err != nil {
		return nil, err
	}
	n, err := r.uvarint()
	if err != nil {
		return nil, err
	}
	// every address takes at least one byte
	if n > uint64(r.remaining()) {
		return nil, decodeErr(errors.Errorf("%d addresses in %d bytes", n, r.remaining()), "addrs")
	}
	addrs := make([]multiaddr.Multiaddr, 0, n)
	for i := uint64(0); i < n; i++ {
		addr, err := r.multiaddr()
		if err != nil {
			return nil, err
		}
		addrs = append(addrs, addr)
	}
	return &AddrRecord{Domain: domain, Addrs: addrs}, nil
}

func (r *reader) record() (Record, error) {
	kind, err := r.peekKind()
	if err != nil {
		return nil, err
	}
	switch kind {
	case KindRoot:
		return r.rootRecord()
	case KindLease:
		return r.leaseRecord()
	case KindAddr:
		return r.addrRecord()
	}
	return nil, ErrUnknownRecordType
}

// signed reads the fields with decode, then the public key and signature,
// and verifies the signature over the bytes decode consumed.
func signed[T Record](r *reader, decode func() (T, error)) (Signed[T], error) {
	start := r.off
	rec, err := decode()
	if err != nil {
		return Signed[T]{}, err
	}
	fields := r.buf[start:r.off]

	raw, err := r.bytes()
	if err != nil {
		return Signed[T]{}, err
	}
	pub, err := crypto.UnmarshalPublicKey(raw)
	if err != nil {
		return Signed[T]{}, decodeErr(err, "public key")
	}
	sig, err := r.bytes()
	if err != nil {
		return Signed[T]{}, err
	}

	ok, err := pub.Verify(fields, sig)
	if err != nil || !ok {
		return Signed[T]{}, ErrInvalidSignature
	}
	return Signed[T]{Signed: rec, PubKey: pub, Signature: bytes.Clone(sig)}, nil
}

// Decode reads a single signed record and requires that nothing follows it.
// It checks the signature but none of the chain or expiry rules.
func Decode(value []byte) (Signed[Record], error) {
	r := &reader{buf: value}
	s, err := signed(r, r.record)
	if err != nil {
		return Signed[Record]{}, err
	}
	if r.remaining() != 0 {
		return Signed[Record]{}, ErrMoreData
	}
	return s, nil
}

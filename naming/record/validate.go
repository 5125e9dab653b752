package record

import (
	"bytes"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/pkg/errors"
)

// DecodeAndValidate decodes a record read from the DHT and checks that it
// can be trusted at now: the value is bound to its key, every link is
// signed, each lease was issued by the owner of the parent name to the
// signer of the link below it, and nothing has expired.
func DecodeAndValidate(stored Stored, now time.Time) (Chain, error) {
	if !bytes.HasPrefix(stored.Value, stored.Key) {
		return Chain{}, ErrKeyMismatch
	}
	hasExpiry := !stored.Expires.IsZero()
	if hasExpiry {
		if ttl := stored.Expires.Sub(now); ttl > RepublishInterval {
			return Chain{}, &TTLTooBigError{By: ttl - RepublishInterval}
		}
	}
	if stored.Publisher == "" {
		return Chain{}, ErrNoPublisher
	}

	r := &reader{buf: stored.Value}
	top, err := signed(r, r.record)
	if err != nil {
		return Chain{}, err
	}
	signer := top.Signer()
	if signer != stored.Publisher {
		return Chain{}, errors.Wrapf(ErrWrongSigner, "published by %s, signed by %s", stored.Publisher, signer)
	}

	var name Name
	switch rec := top.Signed.(type) {
	case *RootRecord:
		if hasExpiry {
			return Chain{}, ErrUnexpectedExpiry
		}
		name = rec.Root
	case *LeaseRecord:
		if !hasExpiry {
			return Chain{}, ErrNoExpiry
		}
		if elapsed := now.Sub(stored.Expires); elapsed > ExpiredLeeway {
			return Chain{}, &ExpiredError{By: elapsed}
		}
		if err := checkUntil(rec, now); err != nil {
			return Chain{}, err
		}
		name = rec.Subdomain.BaseName()
	case *AddrRecord:
		if rec.Domain.IsRoot() {
			return Chain{}, errors.Wrap(ErrChainNameMismatch, "addr record for a root name")
		}
		name = rec.Domain
	default:
		return Chain{}, ErrUnknownRecordType
	}

	chain := Chain{Record: top}
	for !name.IsRoot() {
		lease, err := signed(r, r.leaseRecord)
		if err != nil {
			return Chain{}, errors.Wrapf(err, "lease for %s", name)
		}
		if lease.Signed.Subdomain != name {
			return Chain{}, errors.Wrapf(ErrChainNameMismatch, "expected lease for %s, got %s", name, lease.Signed.Subdomain)
		}
		if lease.Signed.Leasee != signer {
			return Chain{}, errors.Wrapf(ErrWrongSigner, "%s leased to %s, signed by %s", name, lease.Signed.Leasee, signer)
		}
		if err := checkUntil(lease.Signed, now); err != nil {
			return Chain{}, err
		}
		chain.Leases = append(chain.Leases, lease)
		signer = lease.Signer()
		name = name.BaseName()
	}

	if r.remaining() != 0 {
		return Chain{}, ErrMoreData
	}
	return chain, nil
}

func checkUntil(lease *LeaseRecord, now time.Time) error {
	if now.Before(lease.Until) {
		return nil
	}
	return &ExpiredError{By: now.Sub(lease.Until)}
}

// CheckAuthority rejects chains that do not hang from the expected owner of
// their root name.
func CheckAuthority(c Chain, trusted map[Name]peer.ID) error {
	owner, ok := trusted[c.Record.Signed.Name().Root()]
	if !ok {
		return nil
	}
	if got := c.Authority(); got != owner {
		return errors.Wrapf(ErrUntrustedRoot, "%s is owned by %s, chain signed by %s", c.Record.Signed.Name().Root(), owner, got)
	}
	return nil
}

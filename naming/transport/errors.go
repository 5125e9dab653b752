package transport

import (
	"fmt"

	"github.com/multiformats/go-multiaddr"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"gitlab.com/alternet/naming-service/naming/maddr"
	"gitlab.com/alternet/naming-service/naming/record"
)

var (
	// ErrMultiaddrNotSupported is returned for listen addresses with more
	// than one /an component after the last relay hop.
	ErrMultiaddrNotSupported = maddr.ErrMultipleMarkers
	ErrNoAddresses           = errors.New("domain resolved to no addresses")
	ErrClosed                = errors.New("transport closed")
)

// ResolveError reports a domain of a dial address that could not be resolved.
type ResolveError struct {
	Domain record.Name
	Err    error
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("resolving %s: %v", e.Domain, e.Err)
}

func (e *ResolveError) Unwrap() error { return e.Err }

type Attempt struct {
	Addr multiaddr.Multiaddr
	Err  error
}

// DialError collects every failed attempt of a dial, in the order tried.
type DialError struct {
	Addr     multiaddr.Multiaddr
	Attempts []Attempt
}

func (e *DialError) Error() string {
	return fmt.Sprintf("dialing %s: all %d attempts failed: %v", e.Addr, len(e.Attempts), e.Unwrap())
}

func (e *DialError) Unwrap() error {
	errs := make([]error, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		errs = append(errs, errors.Wrapf(a.Err, "%s", a.Addr))
	}
	return multierr.Combine(errs...)
}

// Error is a failure of the wrapped transport.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

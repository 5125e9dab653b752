// Package maddr registers the /an multiaddr protocol, which stands in for
// the peer part of an address until the domain it names is resolved.
package maddr

import (
	"github.com/multiformats/go-multiaddr"
	"github.com/pkg/errors"

	"gitlab.com/alternet/naming-service/naming/record"
)

// P_AN is in the private use range of the multicodec table.
const P_AN = 0x3f6e

var protoAN = multiaddr.Protocol{
	Name:       "an",
	Code:       P_AN,
	VCode:      multiaddr.CodeToVarint(P_AN),
	Size:       multiaddr.LengthPrefixedVarSize,
	Transcoder: multiaddr.TranscoderDns,
}

func init() {
	if err := multiaddr.AddProtocol(protoAN); err != nil {
		panic(err)
	}
}

// ErrMultipleMarkers is returned for listen addresses naming more than one domain.
var ErrMultipleMarkers = errors.New("more than one /an component")

// Marker returns the single component /an/<name>.
func Marker(name record.Name) multiaddr.Multiaddr {
	c, err := multiaddr.NewComponent(protoAN.Name, name.String())
	if err != nil {
		// names are validated DNS names, which the transcoder accepts
		panic(err)
	}
	return c
}

// HasMarker reports whether addr contains an /an component.
func HasMarker(addr multiaddr.Multiaddr) bool {
	_, err := addr.ValueForProtocol(P_AN)
	return err == nil
}

func isMarker(c multiaddr.Multiaddr) bool {
	return c.Protocols()[0].Code == P_AN
}

func isCircuit(c multiaddr.Multiaddr) bool {
	return c.Protocols()[0].Code == multiaddr.P_CIRCUIT
}

func markerName(c multiaddr.Multiaddr) (record.Name, error) {
	v, err := c.ValueForProtocol(P_AN)
	if err != nil {
		return record.Name{}, err
	}
	return record.ParseName(v)
}

// Segment is one /an component of a dial address and everything up to the
// next one. Rest is nil when nothing follows.
type Segment struct {
	Domain record.Name
	Rest   multiaddr.Multiaddr
}

// Join joins the non-nil parts. It returns nil instead of an empty
// multiaddr, which cannot be printed.
func Join(parts ...multiaddr.Multiaddr) multiaddr.Multiaddr {
	nonEmpty := make([]multiaddr.Multiaddr, 0, len(parts))
	for _, p := range parts {
		if p != nil && len(p.Bytes()) > 0 {
			nonEmpty = append(nonEmpty, p)
		}
	}
	if len(nonEmpty) == 0 {
		return nil
	}
	return multiaddr.Join(nonEmpty...)
}

// SplitMarkers cuts addr at every /an component. Substituting an address for
// each segment's domain and joining start, substitute, rest, substitute, rest,
// ... with Join gives a dialable address. start is nil when addr begins with
// a marker.
func SplitMarkers(addr multiaddr.Multiaddr) (multiaddr.Multiaddr, []Segment, error) {
	var (
		start    []multiaddr.Multiaddr
		segments []Segment
		rest     []multiaddr.Multiaddr
	)
	flush := func() {
		if len(segments) > 0 {
			segments[len(segments)-1].Rest = Join(rest...)
		}
		rest = nil
	}
	for _, c := range multiaddr.Split(addr) {
		if !isMarker(c) {
			if len(segments) == 0 {
				start = append(start, c)
			} else {
				rest = append(rest, c)
			}
			continue
		}
		name, err := markerName(c)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "invalid domain in %s", addr)
		}
		flush()
		segments = append(segments, Segment{Domain: name})
	}
	flush()
	return Join(start...), segments, nil
}

// ReplaceListenMarker finds the /an component of a listen address at or after
// its last /p2p-circuit and swaps it for replacement. ok is false when there
// is none.
func ReplaceListenMarker(addr, replacement multiaddr.Multiaddr) (domain record.Name, out multiaddr.Multiaddr, ok bool, err error) {
	parts := multiaddr.Split(addr)
	from := 0
	for i, c := range parts {
		if isCircuit(c) {
			from = i
		}
	}
	at := -1
	for i := from; i < len(parts); i++ {
		if !isMarker(parts[i]) {
			continue
		}
		if at >= 0 {
			return record.Name{}, nil, false, errors.Wrapf(ErrMultipleMarkers, "%s", addr)
		}
		at = i
	}
	if at < 0 {
		return record.Name{}, addr, false, nil
	}
	domain, err = markerName(parts[at])
	if err != nil {
		return record.Name{}, nil, false, errors.Wrapf(err, "invalid domain in %s", addr)
	}
	rewritten := make([]multiaddr.Multiaddr, 0, len(parts))
	rewritten = append(rewritten, parts[:at]...)
	rewritten = append(rewritten, replacement)
	rewritten = append(rewritten, parts[at+1:]...)
	return domain, multiaddr.Join(rewritten...), true, nil
}

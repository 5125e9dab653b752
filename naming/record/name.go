package record

import (
	"strings"

	"github.com/miekg/dns"
	"github.com/pkg/errors"
	"golang.org/x/net/idna"
)

// Name is a case-folded ASCII domain name without the trailing dot.
// The zero value is not a valid name.
type Name struct {
	s string
}

var ErrInvalidName = errors.New("invalid domain name")

// ParseName normalises s (IDNA to ASCII, lower case, no trailing dot) and
// validates it as a DNS name.
func ParseName(s string) (Name, error) {
	ascii, err := idna.Lookup.ToASCII(strings.TrimSuffix(s, "."))
	if err != nil {
		return Name{}, errors.Wrapf(ErrInvalidName, "%q: %v", s, err)
	}
	ascii = strings.ToLower(ascii)
	if ascii == "" {
		return Name{}, errors.Wrap(ErrInvalidName, "empty name")
	}
	if _, ok := dns.IsDomainName(ascii); !ok {
		return Name{}, errors.Wrapf(ErrInvalidName, "%q", s)
	}
	for _, label := range strings.Split(ascii, ".") {
		if label == "" || len(label) > 63 || strings.ContainsAny(label, `\ `) {
			return Name{}, errors.Wrapf(ErrInvalidName, "%q: bad label", s)
		}
	}
	return Name{s: ascii}, nil
}

// MustParseName is ParseName for names known to be valid.
func MustParseName(s string) Name {
	n, err := ParseName(s)
	if err != nil {
		panic(err)
	}
	return n
}

func (n Name) String() string { return n.s }

func (n Name) IsZero() bool { return n.s == "" }

// IsRoot reports whether the name consists of a single label.
func (n Name) IsRoot() bool {
	return n.s != "" && !strings.Contains(n.s, ".")
}

// BaseName drops the leftmost label. The base name of a root is the root itself.
func (n Name) BaseName() Name {
	i := strings.IndexByte(n.s, '.')
	if i < 0 {
		return n
	}
	return Name{s: n.s[i+1:]}
}

// Root returns the rightmost label.
func (n Name) Root() Name {
	i := strings.LastIndexByte(n.s, '.')
	if i < 0 {
		return n
	}
	return Name{s: n.s[i+1:]}
}

func (n Name) Labels() []string {
	return dns.SplitDomainName(n.s)
}

// IsSubdomainOf reports whether n is a strict descendant of parent.
func (n Name) IsSubdomainOf(parent Name) bool {
	return parent.s != "" && len(n.s) > len(parent.s) && strings.HasSuffix(n.s, "."+parent.s)
}

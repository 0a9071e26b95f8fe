package ddns

import (
	"fmt"
	"net/netip"
	"strings"

	"github.com/pkg/errors"
)

var ErrInvalidVersion = errors.New("invalid ip version")

// IPVersion 地址族
type IPVersion int

const (
	V4 IPVersion = 4
	V6 IPVersion = 6
)

func ParseIPVersion(s string) (IPVersion, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "v4", "ipv4", "4":
		return V4, nil
	case "v6", "ipv6", "6":
		return V6, nil
	}
	return 0, errors.Wrapf(ErrInvalidVersion, "%q", s)
}

func (v IPVersion) String() string {
	switch v {
	case V4:
		return "v4"
	case V6:
		return "v6"
	}
	return fmt.Sprintf("IPVersion(%d)", int(v))
}

// RecordType returns the DNS record type carrying addresses of this family.
func (v IPVersion) RecordType() string {
	if v == V6 {
		return "AAAA"
	}
	return "A"
}

// Network returns the dial network suffix ("4" or "6") for this family.
func (v IPVersion) Network() string {
	if v == V6 {
		return "6"
	}
	return "4"
}

// Match reports whether addr belongs to this family.
func (v IPVersion) Match(addr netip.Addr) bool {
	switch v {
	case V4:
		return addr.Is4()
	case V6:
		return addr.Is6() && !addr.Is4In6()
	}
	return false
}

// Record is the unit of state: an optional IPv4 and an optional IPv6 address.
// An invalid (zero) netip.Addr marks the family as absent.
type Record struct {
	V4 netip.Addr
	V6 netip.Addr
}

func (r Record) Equal(o Record) bool {
	return r == o
}

func (r Record) IsEmpty() bool {
	return !r.V4.IsValid() && !r.V6.IsValid()
}

func (r Record) Get(v IPVersion) netip.Addr {
	if v == V6 {
		return r.V6
	}
	return r.V4
}

func (r *Record) Set(v IPVersion, addr netip.Addr) {
	if v == V6 {
		r.V6 = addr
		return
	}
	r.V4 = addr
}

// Versions lists the families present in r, v4 first.
func (r Record) Versions() []IPVersion {
	var vs []IPVersion
	if r.V4.IsValid() {
		vs = append(vs, V4)
	}
	if r.V6.IsValid() {
		vs = append(vs, V6)
	}
	return vs
}

func (r Record) Addrs() []netip.Addr {
	var addrs []netip.Addr
	for _, v := range r.Versions() {
		addrs = append(addrs, r.Get(v))
	}
	return addrs
}

func (r Record) String() string {
	return fmt.Sprintf("v4: %s, v6: %s", addrString(r.V4), addrString(r.V6))
}

func addrString(a netip.Addr) string {
	if !a.IsValid() {
		return "none"
	}
	return a.String()
}

package util

import (
	"bufio"
	"net/netip"
	"regexp"
	"strconv"
	"strings"

	"github.com/jxo-me/ddnsd/core/ddns"
	"github.com/pkg/errors"
)

// Ipv4Reg IPv4正则
var Ipv4Reg = regexp.MustCompile(`((25[0-5]|(2[0-4]|1{0,1}[0-9]){0,1}[0-9])\.){3,3}(25[0-5]|(2[0-4]|1{0,1}[0-9]){0,1}[0-9])`)

// Ipv6Reg IPv6正则
var Ipv6Reg = regexp.MustCompile(`((([0-9A-Fa-f]{1,4}:){7}([0-9A-Fa-f]{1,4}|:))|(([0-9A-Fa-f]{1,4}:){6}(:[0-9A-Fa-f]{1,4}|((25[0-5]|2[0-4]\d|1\d\d|[1-9]?\d)(\.(25[0-5]|2[0-4]\d|1\d\d|[1-9]?\d)){3})|:))|(([0-9A-Fa-f]{1,4}:){5}(((:[0-9A-Fa-f]{1,4}){1,2})|:((25[0-5]|2[0-4]\d|1\d\d|[1-9]?\d)(\.(25[0-5]|2[0-4]\d|1\d\d|[1-9]?\d)){3})|:))|(([0-9A-Fa-f]{1,4}:){4}(((:[0-9A-Fa-f]{1,4}){1,3})|((:[0-9A-Fa-f]{1,4})?:((25[0-5]|2[0-4]\d|1\d\d|[1-9]?\d)(\.(25[0-5]|2[0-4]\d|1\d\d|[1-9]?\d)){3}))|:))|(([0-9A-Fa-f]{1,4}:){3}(((:[0-9A-Fa-f]{1,4}){1,4})|((:[0-9A-Fa-f]{1,4}){0,2}:((25[0-5]|2[0-4]\d|1\d\d|[1-9]?\d)(\.(25[0-5]|2[0-4]\d|1\d\d|[1-9]?\d)){3}))|:))|(([0-9A-Fa-f]{1,4}:){2}(((:[0-9A-Fa-f]{1,4}){1,5})|((:[0-9A-Fa-f]{1,4}){0,3}:((25[0-5]|2[0-4]\d|1\d\d|[1-9]?\d)(\.(25[0-5]|2[0-4]\d|1\d\d|[1-9]?\d)){3}))|:))|(([0-9A-Fa-f]{1,4}:){1}(((:[0-9A-Fa-f]{1,4}){1,6})|((:[0-9A-Fa-f]{1,4}){0,4}:((25[0-5]|2[0-4]\d|1\d\d|[1-9]?\d)(\.(25[0-5]|2[0-4]\d|1\d\d|[1-9]?\d)){3}))|:))|(:(((:[0-9A-Fa-f]{1,4}){1,7})|((:[0-9A-Fa-f]{1,4}){0,5}:((25[0-5]|2[0-4]\d|1\d\d|[1-9]?\d)(\.(25[0-5]|2[0-4]\d|1\d\d|[1-9]?\d)){3}))|:)))`)

// FindAddr returns the first address of the given family in text. Lines that
// parse as an address on their own win over addresses embedded in other text.
func FindAddr(text string, version ddns.IPVersion) (netip.Addr, bool) {
	sc := bufio.NewScanner(strings.NewReader(text))
	for sc.Scan() {
		if addr, err := netip.ParseAddr(strings.TrimSpace(sc.Text())); err == nil && version.Match(addr) {
			return addr, true
		}
	}

	reg := Ipv4Reg
	if version == ddns.V6 {
		reg = Ipv6Reg
	}
	for _, s := range reg.FindAllString(text, -1) {
		if addr, err := netip.ParseAddr(s); err == nil && version.Match(addr) {
			return addr, true
		}
	}
	return netip.Addr{}, false
}

// MatchAddr picks one of addrs. An empty expr selects the first one, "@N"
// selects the N-th (1-based) and anything else is used as a regular expression.
// CheckMatch reports whether expr is usable by MatchAddr.
func CheckMatch(expr string) error {
	if expr == "" {
		return nil
	}
	if strings.HasPrefix(expr, "@") {
		if n, err := strconv.Atoi(expr[1:]); err == nil {
			if n < 1 {
				return errors.Errorf("invalid match %q, index starts at 1", expr)
			}
			return nil
		}
	}
	if _, err := regexp.Compile(expr); err != nil {
		return errors.Wrapf(err, "invalid match %q", expr)
	}
	return nil
}

func MatchAddr(addrs []netip.Addr, expr string) (netip.Addr, error) {
	if len(addrs) == 0 {
		return netip.Addr{}, errors.New("no address")
	}
	if expr == "" {
		return addrs[0], nil
	}
	if strings.HasPrefix(expr, "@") {
		if n, err := strconv.Atoi(expr[1:]); err == nil {
			if n < 1 {
				return netip.Addr{}, errors.Errorf("invalid match %q, index starts at 1", expr)
			}
			if n > len(addrs) {
				return netip.Addr{}, errors.Errorf("match %q: only %d address(es)", expr, len(addrs))
			}
			return addrs[n-1], nil
		}
	}
	reg, err := regexp.Compile(expr)
	if err != nil {
		return netip.Addr{}, errors.Wrapf(err, "invalid match %q", expr)
	}
	for _, addr := range addrs {
		if reg.MatchString(addr.String()) {
			return addr, nil
		}
	}
	return netip.Addr{}, errors.Errorf("no address matches %q", expr)
}

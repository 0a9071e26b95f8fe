package util

import (
	"net"
	"net/netip"

	"github.com/pkg/errors"
)

// NetInterface 本机网络
type NetInterface struct {
	Name    string
	Address []netip.Addr
}

// GetNetInterface 获得网卡地址, 仅包含处于 up 状态网卡上的公网单播地址
func GetNetInterface() (ipv4NetInterfaces []NetInterface, ipv6NetInterfaces []NetInterface, err error) {
	allNetInterfaces, err := net.Interfaces()
	if err != nil {
		return nil, nil, errors.Wrap(err, "list network interfaces")
	}

	for _, netInterface := range allNetInterfaces {
		if netInterface.Flags&net.FlagUp == 0 {
			continue
		}
		addrs, err := netInterface.Addrs()
		if err != nil {
			continue
		}
		ipv4, ipv6 := SplitAddrs(addrs)
		if len(ipv4) > 0 {
			ipv4NetInterfaces = append(ipv4NetInterfaces, NetInterface{Name: netInterface.Name, Address: ipv4})
		}
		if len(ipv6) > 0 {
			ipv6NetInterfaces = append(ipv6NetInterfaces, NetInterface{Name: netInterface.Name, Address: ipv6})
		}
	}
	return ipv4NetInterfaces, ipv6NetInterfaces, nil
}

// SplitAddrs keeps the global unicast addresses of addrs, split by family.
// Private ranges are kept, they are global unicast as well.
func SplitAddrs(addrs []net.Addr) (ipv4, ipv6 []netip.Addr) {
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok {
			continue
		}
		ip, ok := netip.AddrFromSlice(ipNet.IP)
		if !ok || !ip.IsGlobalUnicast() {
			continue
		}
		ip = ip.Unmap()
		if ip.Is4() {
			ipv4 = append(ipv4, ip)
		} else {
			ipv6 = append(ipv6, ip)
		}
	}
	return ipv4, ipv6
}

package ip

import (
	"fmt"
	"net"
	"strings"
)

// Find finds the first interface IPv4 address inside addressRange. An empty
// addressRange matches any non-loopback address. It returns nil, nil when no
// interface matches.
func Find(addressRange string) (net.IP, error) {
	var cidrNet *net.IPNet
	if addressRange != "" {
		_, n, err := net.ParseCIDR(addressRange)
		if err != nil {
			return nil, fmt.Errorf("bad address range %q: %w", addressRange, err)
		}
		cidrNet = n
	}

	address, err := net.InterfaceAddrs()
	if err != nil {
		return nil, fmt.Errorf("error getting ips: %w", err)
	}

	return match(address, cidrNet), nil
}

func match(address []net.Addr, cidrNet *net.IPNet) net.IP {
	for _, addr := range address {
		ipNet, ok := addr.(*net.IPNet)
		if !ok {
			continue
		}
		ip := ipNet.IP

		if strings.Contains(ip.String(), ":") {
			continue
		}

		if cidrNet == nil {
			if !ip.IsLoopback() {
				return ip
			}
			continue
		}

		if cidrNet.Contains(ip) {
			return ip
		}
	}

	return nil
}

package util

import (
	"fmt"
	"net"
	"strings"
)

// LocalIPs returns every unicast address assigned to an interface of this
// host, loopback included.
func LocalIPs() ([]net.IP, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil, fmt.Errorf("cannot list interface addresses: %w", err)
	}
	ips := make([]net.IP, 0, len(addrs))
	for _, addr := range addrs {
		var ip net.IP
		switch v := addr.(type) {
		case *net.IPNet:
			ip = v.IP
		case *net.IPAddr:
			ip = v.IP
		}
		if ip != nil {
			ips = append(ips, ip)
		}
	}
	return ips, nil
}

// PrimaryIP returns the first global unicast, non link-local IPv4 address,
// which is what LAN peers will most likely see us as.
func PrimaryIP() (net.IP, error) {
	ips, err := LocalIPs()
	if err != nil {
		return nil, err
	}
	for _, ip := range ips {
		if ip.IsLoopback() || ip.To4() == nil {
			continue
		}
		if ip.IsGlobalUnicast() && !strings.HasPrefix(ip.String(), "169.254.") {
			return ip, nil
		}
	}
	return nil, fmt.Errorf("no valid local IP found")
}

// ContainsIP reports whether ip is one of ips.
func ContainsIP(ips []net.IP, ip net.IP) bool {
	for _, candidate := range ips {
		if candidate.Equal(ip) {
			return true
		}
	}
	return false
}

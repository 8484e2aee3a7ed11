package util

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalIPsIncludesLoopback(t *testing.T) {
	ips, err := LocalIPs()
	require.NoError(t, err)

	if len(ips) == 0 {
		t.Skip("no interface addresses available in this environment")
	}
	assert.True(t, ContainsIP(ips, net.IPv4(127, 0, 0, 1)) || ContainsIP(ips, net.IPv6loopback),
		"expected a loopback address among %v", ips)
}

func TestContainsIP(t *testing.T) {
	ips := []net.IP{net.ParseIP("192.168.1.20"), net.ParseIP("fe80::1")}

	tests := []struct {
		name     string
		ip       net.IP
		expected bool
	}{
		{"IPv4 match", net.ParseIP("192.168.1.20"), true},
		{"IPv4 in 16-byte form", net.IPv4(192, 168, 1, 20), true},
		{"IPv6 match", net.ParseIP("fe80::1"), true},
		{"Different address", net.ParseIP("192.168.1.21"), false},
		{"Nil address", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ContainsIP(ips, tt.ip))
		})
	}
}

func TestPrimaryIP(t *testing.T) {
	ip, err := PrimaryIP()
	if err != nil {
		t.Skipf("no routable IPv4 address: %v", err)
	}
	assert.NotNil(t, ip.To4())
	assert.False(t, ip.IsLoopback())
}

package discovery

import (
	"context"
	"fmt"
	"net"
	"strconv"
)

const (
	DefaultServerType = "_myprotocol._tcp"
	DefaultDomain     = "local"

	// DescriptionKey is the TXT record key carrying the human readable description.
	DescriptionKey = "desc"
)

type ServiceInfo struct {
	Name        string // instance name
	Type        string // service name, e.g., "_myprotocol._tcp"
	Domain      string // domain, e.g., "local"
	Host        string // target host name, filled in by discovery
	Addr        net.IP // preferred address, filled in by discovery
	IPs         []net.IP
	Port        int
	Description string
	Text        map[string]string
}

// Key identifies a service instance independently of its addresses.
func (s ServiceInfo) Key() string {
	return fmt.Sprintf("%s:%s:%s", s.Name, s.Type, s.Domain)
}

// Address is the host:port to dial.
func (s ServiceInfo) Address() string {
	host := ""
	if s.Addr != nil {
		host = s.Addr.String()
	}
	return net.JoinHostPort(host, strconv.Itoa(s.Port))
}

// EventKind says what happened to a service instance.
type EventKind int

const (
	ServiceAdded EventKind = iota
	ServiceRemoved
)

func (k EventKind) String() string {
	switch k {
	case ServiceAdded:
		return "added"
	case ServiceRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// DiscoveryResult carries either one service event or a terminal error.
type DiscoveryResult struct {
	Kind    EventKind
	Service ServiceInfo
	Error   error
}

type Adapter interface {
	// Announce publishes service until ctx is cancelled.
	Announce(ctx context.Context, service ServiceInfo) error
	// Discover streams events for instances of service, a fully qualified
	// browse name such as "_myprotocol._tcp.local.". The channel is closed
	// once ctx is done or the lookup fails.
	Discover(ctx context.Context, service string) <-chan DiscoveryResult
}

package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/brutella/dnssd"
)

// MDNSAdapter implements Adapter with multicast DNS.
type MDNSAdapter struct {
	// Ifaces restricts announcement to the named interfaces. Empty means all.
	Ifaces []string
}

func (m *MDNSAdapter) Announce(ctx context.Context, serviceInfo ServiceInfo) error {
	text := make(map[string]string, len(serviceInfo.Text)+1)
	for k, v := range serviceInfo.Text {
		text[k] = v
	}
	if serviceInfo.Description != "" {
		text[DescriptionKey] = serviceInfo.Description
	}

	cfg := dnssd.Config{
		Name:   serviceInfo.Name,
		Type:   serviceInfo.Type,
		Domain: serviceInfo.Domain,
		// mdns will multicast to ip address, so we can leave it nil
		IPs:    nil,
		Text:   text,
		Port:   serviceInfo.Port,
		Ifaces: m.Ifaces,
	}

	service, err := dnssd.NewService(cfg)
	if err != nil {
		return fmt.Errorf("failed to create mDNS service: %w", err)
	}

	rp, err := dnssd.NewResponder()
	if err != nil {
		return fmt.Errorf("failed to create mDNS responder: %w", err)
	}

	if _, err = rp.Add(service); err != nil {
		return fmt.Errorf("failed to add mDNS service: %w", err)
	}

	slog.Info("Announcing service", "name", serviceInfo.Name, "type", serviceInfo.Type, "port", serviceInfo.Port)
	if err = rp.Respond(ctx); err != nil {
		// Context cancellation is not an error in normal operation
		if errors.Is(err, context.Canceled) {
			slog.Info("Shutting down mDNS responder")
			return nil
		}
		return fmt.Errorf("failed to respond to mDNS service: %w", err)
	}

	slog.Info("Shutting down mDNS responder")
	return nil
}

func (m *MDNSAdapter) Discover(ctx context.Context, service string) <-chan DiscoveryResult {
	var (
		state = newBrowseState()
		outCh = make(chan DiscoveryResult, 10)
	)

	send := func(result DiscoveryResult) {
		select {
		case outCh <- result:
		case <-ctx.Done():
		}
	}

	addFn := func(e dnssd.BrowseEntry) {
		if info, isNew := state.add(e); isNew {
			send(DiscoveryResult{Kind: ServiceAdded, Service: info})
		}
	}

	rmvFn := func(e dnssd.BrowseEntry) {
		if info, gone := state.remove(e); gone {
			send(DiscoveryResult{Kind: ServiceRemoved, Service: info})
		}
	}

	go func() {
		defer close(outCh)
		err := dnssd.LookupType(ctx, service, addFn, rmvFn)
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			send(DiscoveryResult{Error: fmt.Errorf("mDNS lookup failed: %w", err)})
		}
	}()

	return outCh
}

// browseState folds per-interface browse entries into one instance each. An
// instance stays known until every interface that reported it removed it.
type browseState struct {
	mu      sync.Mutex
	entries map[string]*browsedService
}

type browsedService struct {
	info   ServiceInfo
	ifaces map[string]struct{}
}

func newBrowseState() *browseState {
	return &browseState{entries: make(map[string]*browsedService)}
}

// add records e and reports whether its instance was not known before.
func (b *browseState) add(e dnssd.BrowseEntry) (ServiceInfo, bool) {
	info, ok := serviceFromEntry(e)
	if !ok {
		slog.Debug("Ignoring service without addresses", "name", e.Name, "iface", e.IfaceName)
		return ServiceInfo{}, false
	}
	key := info.Key()

	b.mu.Lock()
	defer b.mu.Unlock()
	if existing, seen := b.entries[key]; seen {
		// The same instance answered on another interface.
		existing.info.IPs = mergeIPs(existing.info.IPs, info.IPs)
		existing.ifaces[e.IfaceName] = struct{}{}
		return existing.info, false
	}
	b.entries[key] = &browsedService{
		info:   info,
		ifaces: map[string]struct{}{e.IfaceName: {}},
	}
	return info, true
}

// remove drops the interface of e and reports whether that was the last
// interface the instance was seen on.
func (b *browseState) remove(e dnssd.BrowseEntry) (ServiceInfo, bool) {
	key := ServiceInfo{Name: e.Name, Type: e.Type, Domain: e.Domain}.Key()

	b.mu.Lock()
	defer b.mu.Unlock()
	existing, seen := b.entries[key]
	if !seen {
		return ServiceInfo{}, false
	}
	delete(existing.ifaces, e.IfaceName)
	if len(existing.ifaces) > 0 {
		return ServiceInfo{}, false
	}
	delete(b.entries, key)
	return existing.info, true
}

func serviceFromEntry(e dnssd.BrowseEntry) (ServiceInfo, bool) {
	addr := preferredIP(e.IPs)
	if addr == nil {
		return ServiceInfo{}, false
	}
	return ServiceInfo{
		Name:        e.Name,
		Type:        e.Type,
		Domain:      e.Domain,
		Host:        e.Host,
		Addr:        addr,
		IPs:         append([]net.IP(nil), e.IPs...),
		Port:        e.Port,
		Description: e.Text[DescriptionKey],
		Text:        e.Text,
	}, true
}

// preferredIP picks the first IPv4 address, falling back to the first
// non link-local IPv6 one.
func preferredIP(ips []net.IP) net.IP {
	var fallback net.IP
	for _, ip := range ips {
		if ip.To4() != nil {
			return ip
		}
		if fallback == nil && !ip.IsLinkLocalUnicast() {
			fallback = ip
		}
	}
	return fallback
}

func mergeIPs(dst, src []net.IP) []net.IP {
	for _, ip := range src {
		found := false
		for _, existing := range dst {
			if existing.Equal(ip) {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, ip)
		}
	}
	return dst
}

// Package peer wires the listener, the mDNS announcer and watcher and the
// greeter into the lanGreeter sequence.
package peer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	dnssdlog "github.com/brutella/dnssd/log"
	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"

	"github.com/rescp17/lanGreeter/internal/app"
	appevents "github.com/rescp17/lanGreeter/internal/app_events"
	peerevents "github.com/rescp17/lanGreeter/internal/app_events/peer"
	"github.com/rescp17/lanGreeter/internal/config"
	"github.com/rescp17/lanGreeter/internal/util"
	"github.com/rescp17/lanGreeter/pkg/discovery"
	"github.com/rescp17/lanGreeter/pkg/receiver"
	"github.com/rescp17/lanGreeter/pkg/sender"
)

// App is the main application logic controller of a peer.
type App struct {
	cfg        *config.Config
	adapter    discovery.Adapter
	listener   *receiver.Listener
	greeter    *sender.Greeter
	registry   *app.Registry
	uiMessages chan tea.Msg            // App -> TUI
	appEvents  chan appevents.AppEvent // TUI -> App
	localIPs   func() ([]net.IP, error)
	bind       func(context.Context) (net.Addr, error)

	mu       sync.Mutex
	selfIPs  []net.IP
	selfPort int

	quit     chan struct{}
	quitOnce sync.Once
	greetWG  sync.WaitGroup // Track in-flight greetings
}

// NewApp creates a new peer application instance.
func NewApp(cfg *config.Config, adapter discovery.Adapter) *App {
	dnssdlog.Info.SetOutput(io.Discard)
	dnssdlog.Debug.SetOutput(io.Discard)

	a := &App{
		cfg:        cfg,
		adapter:    adapter,
		registry:   app.NewRegistry(),
		uiMessages: make(chan tea.Msg, 32),
		appEvents:  make(chan appevents.AppEvent),
		localIPs:   util.LocalIPs,
		selfPort:   cfg.Port,
		quit:       make(chan struct{}),
	}
	a.listener = receiver.NewListener(receiver.ListenerConfig{
		Addr:        cfg.ListenAddr(),
		ReadTimeout: cfg.ReadTimeout,
		Notify:      a.notify,
	})
	a.bind = a.listener.Listen
	a.greeter = sender.NewGreeter(sender.GreeterConfig{
		Message:     cfg.Greeting,
		DialTimeout: cfg.DialTimeout,
		Notify:      a.notify,
	})
	return a
}

// UIMessages returns the channel for the UI to listen on for updates.
func (a *App) UIMessages() <-chan tea.Msg {
	return a.uiMessages
}

// AppEvents returns a write-only channel for the TUI to send events to the app.
func (a *App) AppEvents() chan<- appevents.AppEvent {
	return a.appEvents
}

// Peers returns the current peer table.
func (a *App) Peers() []app.PeerState {
	return a.registry.Snapshot()
}

// InstanceName is the name this peer announces itself under.
func (a *App) InstanceName() string {
	return a.cfg.InstanceName
}

// Greeting is the text sent to every discovered peer.
func (a *App) Greeting() string {
	return a.greeter.Message()
}

// Run starts the listener, waits for it to bind (at most AnnounceDelay),
// then announces the service and watches for other instances. It returns
// when ctx is cancelled or the announcement fails.
func (a *App) Run(ctx context.Context) error {
	ips, err := a.localIPs()
	if err != nil {
		slog.Warn("Cannot determine local addresses, self detection relies on the instance name", "error", err)
	}
	a.mu.Lock()
	a.selfIPs = ips
	a.mu.Unlock()

	g, ctx := errgroup.WithContext(ctx)
	go func() {
		<-ctx.Done()
		a.quitOnce.Do(func() { close(a.quit) })
	}()
	bound := make(chan net.Addr, 1)

	g.Go(func() error {
		a.runListener(ctx, bound)
		return nil
	})

	g.Go(func() error {
		var addr net.Addr
		select {
		case <-ctx.Done():
			return nil
		case addr = <-bound:
			if addr == nil {
				// Nothing to advertise, but other peers can still be greeted.
				g.Go(func() error { return a.runDiscovery(ctx) })
				return nil
			}
		case <-time.After(a.cfg.AnnounceDelay):
			slog.Warn("Listener not bound yet, announcing anyway", "delay", a.cfg.AnnounceDelay)
		}

		g.Go(func() error { return a.runDiscovery(ctx) })
		g.Go(func() error { return a.runAnnouncement(ctx) })
		return nil
	})

	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case event := <-a.appEvents:
				switch e := event.(type) {
				case peerevents.GreetPeerEvent:
					a.greetPeer(ctx, e.Key)
				default:
					slog.Warn("Received unhandled app event", "event", event)
				}
			}
		}
	})

	err = g.Wait()
	// Wait for any in-flight greetings to finish
	a.greetWG.Wait()
	return err
}

func (a *App) runListener(ctx context.Context, bound chan<- net.Addr) {
	defer func() {
		if err := a.listener.Close(); err != nil {
			slog.Warn("Failed to close listener", "error", err)
		}
	}()

	addr, err := a.bind(ctx)
	if err != nil {
		bound <- nil
		a.sendAndLogError("Failed to start server", err)
		a.send(peerevents.ListenerClosedMsg{Err: err})
		return
	}
	if tcpAddr, ok := addr.(*net.TCPAddr); ok {
		a.mu.Lock()
		a.selfPort = tcpAddr.Port
		a.mu.Unlock()
	}
	bound <- addr
	a.send(peerevents.ServerStartedMsg{Addr: addr})

	greeting, err := a.listener.Serve(ctx)
	if err != nil {
		if ctx.Err() != nil {
			a.send(peerevents.ListenerClosedMsg{})
			return
		}
		a.sendAndLogError("Server failed", err)
		a.send(peerevents.ListenerClosedMsg{Err: err})
		return
	}
	a.send(peerevents.GreetingReceivedMsg{From: greeting.From, Message: greeting.Message})
	a.send(peerevents.ListenerClosedMsg{})
}

func (a *App) runAnnouncement(ctx context.Context) error {
	serviceInfo := discovery.ServiceInfo{
		Name:        a.cfg.InstanceName,
		Type:        a.cfg.ServiceType,
		Domain:      a.cfg.Domain,
		Port:        a.port(),
		Description: a.cfg.Description,
		Text:        a.cfg.Text,
	}
	a.send(peerevents.AnnouncedMsg{Name: serviceInfo.Name})
	if err := a.adapter.Announce(ctx, serviceInfo); err != nil {
		a.sendAndLogError("Failed to start mDNS announcement", err)
		// exit the app if we can't announce
		return err
	}
	return nil
}

// runDiscovery begins the process of finding other peers on the network.
func (a *App) runDiscovery(ctx context.Context) error {
	resultCh := a.adapter.Discover(ctx, a.cfg.ServiceQuery())
	for {
		select {
		case <-ctx.Done():
			return nil
		case result, ok := <-resultCh:
			if !ok {
				return nil
			}
			if result.Error != nil {
				a.sendAndLogError("Discovery stopped", result.Error)
				return nil
			}
			switch result.Kind {
			case discovery.ServiceAdded:
				a.handleServiceAdded(ctx, result.Service)
			case discovery.ServiceRemoved:
				a.handleServiceRemoved(result.Service)
			}
		}
	}
}

func (a *App) handleServiceAdded(ctx context.Context, svc discovery.ServiceInfo) {
	a.notify(fmt.Sprintf("Service resolved: %s.%s.%s. port:%d", svc.Name, svc.Type, svc.Domain, svc.Port))

	self := a.isSelf(svc)
	isNew := a.registry.Upsert(svc, self)
	a.publishPeers()

	if self {
		slog.Debug("Skipping own service", "name", svc.Name)
		return
	}
	if isNew {
		a.greetPeer(ctx, svc.Key())
	}
}

func (a *App) handleServiceRemoved(svc discovery.ServiceInfo) {
	a.notify("Service removed: " + svc.Name)
	a.registry.Remove(svc.Key())
	a.publishPeers()
}

// isSelf reports whether svc is this very process: either our instance name,
// or one of our addresses combined with our listener port.
func (a *App) isSelf(svc discovery.ServiceInfo) bool {
	if svc.Name == a.cfg.InstanceName {
		return true
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if svc.Port != a.selfPort {
		return false
	}
	for _, ip := range svc.IPs {
		if util.ContainsIP(a.selfIPs, ip) {
			return true
		}
	}
	return svc.Addr != nil && util.ContainsIP(a.selfIPs, svc.Addr)
}

func (a *App) port() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.selfPort
}

// greetPeer sends one greeting to a known peer in the background. Failures
// are reported and never retried.
func (a *App) greetPeer(ctx context.Context, key string) {
	state, ok := a.registry.Get(key)
	if !ok {
		slog.Warn("Asked to greet an unknown peer", "key", key)
		return
	}
	if !a.registry.BeginGreeting(key) {
		slog.Debug("Not greeting peer", "name", state.Service.Name, "status", state.Status.String())
		return
	}
	a.publishPeers()

	a.greetWG.Add(1)
	go func() {
		defer a.greetWG.Done()
		err := a.greeter.Greet(ctx, state.Service.Address())
		a.registry.FinishGreeting(key, err)
		if err != nil {
			a.sendAndLogError(fmt.Sprintf("Failed to greet %s", state.Service.Name), err)
		}
		a.publishPeers()
	}()
}

func (a *App) publishPeers() {
	a.send(peerevents.PeersUpdatedMsg{Peers: a.registry.Snapshot()})
}

func (a *App) notify(text string) {
	a.send(appevents.NotifyMsg{At: time.Now(), Text: text})
}

// sendAndLogError is a helper function to both log an error and send it to the UI.
func (a *App) sendAndLogError(baseMessage string, err error) {
	slog.Error(baseMessage, "error", err)
	a.send(appevents.ErrorMsg{Err: fmt.Errorf("%s: %w", baseMessage, err)})
}

// send delivers msg to the UI unless the app is shutting down.
func (a *App) send(msg tea.Msg) {
	select {
	case a.uiMessages <- msg:
	case <-a.quit:
	}
}

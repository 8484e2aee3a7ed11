package main

import (
	"context"
	"fmt"
	"io"
	"net"

	"golang.org/x/sync/errgroup"

	"github.com/rescp17/lanGreeter/internal/config"
	"github.com/rescp17/lanGreeter/internal/util"
	"github.com/rescp17/lanGreeter/pkg/discovery"
	"github.com/rescp17/lanGreeter/pkg/receiver"
	"github.com/rescp17/lanGreeter/pkg/sender"
)

func printer(w io.Writer) func(string) {
	return func(msg string) {
		fmt.Fprintln(w, util.Printable(msg))
	}
}

// greetOnce sends the configured greeting to addr.
func greetOnce(ctx context.Context, cfg *config.Config, addr string, w io.Writer) error {
	g := sender.NewGreeter(sender.GreeterConfig{
		Message:     cfg.Greeting,
		DialTimeout: cfg.DialTimeout,
		Notify:      printer(w),
	})
	return g.Greet(ctx, addr)
}

// listenOnce announces the service and serves a single greeting. The
// announcement is withdrawn as soon as the listener is done.
func listenOnce(ctx context.Context, cfg *config.Config, adapter discovery.Adapter, w io.Writer) error {
	l := receiver.NewListener(receiver.ListenerConfig{
		Addr:        cfg.ListenAddr(),
		ReadTimeout: cfg.ReadTimeout,
		Notify:      printer(w),
	})
	addr, err := l.Listen(ctx)
	if err != nil {
		return err
	}
	defer l.Close()

	port := cfg.Port
	if tcpAddr, ok := addr.(*net.TCPAddr); ok {
		port = tcpAddr.Port
	}

	announceCtx, stopAnnouncing := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(announceCtx)
	g.Go(func() error {
		return adapter.Announce(gctx, discovery.ServiceInfo{
			Name:        cfg.InstanceName,
			Type:        cfg.ServiceType,
			Domain:      cfg.Domain,
			Port:        port,
			Description: cfg.Description,
			Text:        cfg.Text,
		})
	})
	g.Go(func() error {
		defer stopAnnouncing()
		_, err := l.Serve(gctx)
		if err != nil && gctx.Err() != nil {
			return nil
		}
		return err
	})
	return g.Wait()
}

package ui

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"

	tea "github.com/charmbracelet/bubbletea"

	appevents "github.com/rescp17/lanGreeter/internal/app_events"
	"github.com/rescp17/lanGreeter/internal/util"
)

var primaryIP = util.PrimaryIP

// RunHeadless runs the app without a terminal UI and prints the activity
// log to w, one line per notification. It returns when the app stops.
func RunHeadless(ctx context.Context, appController AppController, w io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ip, err := primaryIP()
	if err != nil {
		slog.Warn("Cannot determine primary address", "error", err)
	}
	if _, err := fmt.Fprintln(w, headlessBanner(appController.InstanceName(), appController.Greeting(), ip)); err != nil {
		return fmt.Errorf("failed to write activity log: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- appController.Run(ctx)
	}()

	for {
		select {
		case err := <-errCh:
			return err
		case msg := <-appController.UIMessages():
			if line, ok := headlessLine(msg); ok {
				if _, err := fmt.Fprintln(w, line); err != nil {
					return fmt.Errorf("failed to write activity log: %w", err)
				}
			}
		}
	}
}

func headlessLine(msg tea.Msg) (string, bool) {
	switch msg := msg.(type) {
	case appevents.NotifyMsg:
		return fmt.Sprintf("%s %s", msg.At.Format("15:04:05"), util.Printable(msg.Text)), true
	case appevents.ErrorMsg:
		return "error: " + util.Printable(msg.Err.Error()), true
	default:
		return "", false
	}
}

func headlessBanner(name, greeting string, ip net.IP) string {
	where := ""
	if ip != nil {
		where = " on " + ip.String()
	}
	return fmt.Sprintf("Peer %s%s greets with %q", util.Printable(name), where, util.Printable(greeting))
}

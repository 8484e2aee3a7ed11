package peer

import (
	"net"

	"github.com/rescp17/lanGreeter/internal/app"
	appevents "github.com/rescp17/lanGreeter/internal/app_events"
)

// --- UI to App Events ---

// GreetPeerEvent asks the app to greet a known instance now.
type GreetPeerEvent struct {
	appevents.Event
	Key string
}

var _ appevents.AppEvent = GreetPeerEvent{}

// --- App to UI Messages ---

// ServerStartedMsg is sent once the listener is bound.
type ServerStartedMsg struct {
	appevents.UIMessage
	Addr net.Addr
}

// AnnouncedMsg is sent when the service record is being published.
type AnnouncedMsg struct {
	appevents.UIMessage
	Name string
}

// PeersUpdatedMsg carries the full peer table after any change.
type PeersUpdatedMsg struct {
	appevents.UIMessage
	Peers []app.PeerState
}

// GreetingReceivedMsg is sent when the single inbound greeting arrives.
type GreetingReceivedMsg struct {
	appevents.UIMessage
	From    net.Addr
	Message string
}

// ListenerClosedMsg is sent when the listener will not accept any more
// connections, with Err set when it stopped on a failure.
type ListenerClosedMsg struct {
	appevents.UIMessage
	Err error
}

package worker

import "github.com/retracehq/retrace/internal/worker/sse"

// SSENotifier pushes pipeline notifications to connected dashboards.
type SSENotifier struct {
	broadcaster *sse.Broadcaster
}

// NewSSENotifier creates a notifier backed by the given broadcaster.
func NewSSENotifier(b *sse.Broadcaster) *SSENotifier {
	return &SSENotifier{broadcaster: b}
}

func (n *SSENotifier) PermissionRequired() {
	n.broadcaster.Broadcast(sse.Notification{Type: sse.TypePermissionRequired})
}

func (n *SSENotifier) EventCreated(eventID int64) {
	n.broadcaster.Broadcast(sse.Notification{Type: sse.TypeEventCreated, EventID: eventID})
}

func (n *SSENotifier) EventUpdated(eventID int64) {
	n.broadcaster.Broadcast(sse.Notification{Type: sse.TypeEventUpdated, EventID: eventID})
}

func (n *SSENotifier) EventsChanged() {
	n.broadcaster.Broadcast(sse.Notification{Type: sse.TypeEventsChanged})
}

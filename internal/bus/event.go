package bus

import "time"

// Event kinds published by the sync core. The presentation layer
// subscribes by namespace prefix ("message.", "channel.", ...).
const (
	KindMessageAppended   = "message.appended"
	KindMessageUpdated    = "message.updated"
	KindMessageSendFailed = "message.send_failed"
	KindChannelStatus     = "channel.status_changed"
	KindChannelConnected  = "channel.connected"
	KindChannelDropped    = "channel.disconnected"
	KindOutboxDrained     = "outbox.drained"
	KindOutboxDropped     = "outbox.entry_dropped"
)

// Event is a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

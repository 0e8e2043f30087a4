package events

import "github.com/kelindar/event"

// SubscribeToChannel bridges callback subscriptions to a channel so SSE
// handlers can drive a select loop. Sends never block: when the channel
// is full the event is dropped, so a stalled SSE client cannot back up
// the dispatcher.
func SubscribeToChannel[T Event](bus *Bus, ch chan<- any) func() {
	return event.Subscribe(bus.dispatcher, func(e T) {
		select {
		case ch <- e:
		default:
		}
	})
}

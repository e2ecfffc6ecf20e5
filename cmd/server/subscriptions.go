package main

import (
	"github.com/rs/zerolog/log"

	"github.com/Brightline-Displays/beacon/internal/bus"
	livehub "github.com/Brightline-Displays/beacon/internal/hub"
	"github.com/Brightline-Displays/beacon/internal/push"
)

// registerSubscriptions wires every bus consumer in one place, at process
// start, so the full consumer graph is readable here and nowhere else.
func registerSubscriptions(b *bus.Bus, h *livehub.Hub, forwarder *push.Forwarder) {
	// broad mutations fan out to every live connection
	broadcastTopics := []string{
		bus.TopicScheduleCreated,
		bus.TopicScheduleUpdated,
		bus.TopicScheduleDeleted,
		bus.TopicDisplayOnline,
		bus.TopicDisplayOffline,
		bus.TopicDisplayErrorHigh,
		bus.TopicSettingsUpdated,
		bus.TopicSettingsFPCONChanged,
		bus.TopicSettingsLANChanged,
	}
	for _, topic := range broadcastTopics {
		t := topic
		b.Subscribe(t, func(ev bus.Event) {
			h.Broadcast(t, ev.Payload)
		})
	}

	// display-scoped events cast only to that display's connections
	b.Subscribe(bus.TopicScheduleTriggered, func(ev bus.Event) {
		payload, ok := ev.Payload.(bus.TriggeredPayload)
		if !ok {
			return
		}
		h.CastToDisplay(payload.DisplayID, bus.TopicScheduleTriggered, payload)
	})
	b.Subscribe(bus.TopicDisplayContentChanged, func(ev bus.Event) {
		payload, ok := ev.Payload.(bus.ContentChangedPayload)
		if !ok {
			return
		}
		h.CastToDisplay(payload.DisplayID, bus.TopicDisplayContentChanged, payload)
	})
	b.Subscribe(bus.TopicDisplayDebug, func(ev bus.Event) {
		payload, ok := ev.Payload.(bus.DisplayDebugPayload)
		if !ok {
			return
		}
		h.CastToDisplay(payload.DisplayID, bus.TopicDisplayDebug, payload)
	})

	// optional MQTT egress: content changes also go out on the display's
	// command topic
	if forwarder != nil {
		b.Subscribe(bus.TopicDisplayContentChanged, func(ev bus.Event) {
			payload, ok := ev.Payload.(bus.ContentChangedPayload)
			if !ok {
				return
			}
			if err := forwarder.SendToDisplay(payload.DisplayID, bus.TopicDisplayContentChanged, payload); err != nil {
				log.Warn().Err(err).Int("display_id", payload.DisplayID).Msg("MQTT forward failed")
			}
		})
	}
}

// Package push republishes display-scoped events to the MQTT command
// topics the display firmware listens on. It is an optional egress next to
// the SSE hub: displays behind flaky HTTP keepalives still get their
// content changes over the broker.
package push

import (
	"encoding/json"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"
)

type Forwarder struct {
	client mqtt.Client
}

// NewForwarder connects to the broker. The caller decides whether a broker
// is configured at all; a nil *Forwarder is a valid no-op egress.
func NewForwarder(brokerURL, clientID string) (*Forwarder, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(brokerURL)
	opts.SetClientID(clientID)
	opts.OnConnect = func(mqtt.Client) {
		log.Info().Str("broker", brokerURL).Msg("connected to MQTT broker")
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.Warn().Err(err).Msg("MQTT connection lost")
	}

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	return &Forwarder{client: client}, nil
}

func commandTopic(displayID int) string {
	return fmt.Sprintf("display/%d/commands", displayID)
}

// SendToDisplay publishes one event to the display's command topic at
// QoS 1. A nil forwarder drops silently.
func (f *Forwarder) SendToDisplay(displayID int, event string, payload any) error {
	if f == nil {
		return nil
	}
	body, err := json.Marshal(map[string]any{"event": event, "payload": payload})
	if err != nil {
		return err
	}
	token := f.client.Publish(commandTopic(displayID), 1, false, body)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("failed to publish to display %d: %w", displayID, token.Error())
	}
	return nil
}

// Close disconnects from the broker.
func (f *Forwarder) Close() {
	if f == nil {
		return
	}
	f.client.Disconnect(250)
}

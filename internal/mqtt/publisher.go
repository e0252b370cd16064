package mqtt

import (
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/i474232898/sg-weather/internal/log"
	"github.com/i474232898/sg-weather/internal/radar"
	"github.com/i474232898/sg-weather/internal/weather"
)

const publishTimeout = 10 * time.Second

// client is the subset of the paho client the publisher uses.
type client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	IsConnected() bool
	Disconnect(quiesce uint)
}

// Publisher pushes entities to an MQTT broker with Home Assistant discovery.
type Publisher struct {
	client  client
	builder Builder
	enabled bool

	// discovered holds object ids whose discovery config was already sent.
	discovered map[string]bool
}

type PublisherConfig struct {
	Broker          string
	ClientID        string
	Username        string
	Password        string
	TopicPrefix     string
	DiscoveryPrefix string
	Enabled         bool
}

// NewPublisher connects to the broker. A disabled config returns a
// publisher that drops everything.
func NewPublisher(cfg PublisherConfig, builder Builder) (*Publisher, error) {
	builder.TopicPrefix = cfg.TopicPrefix
	builder.DiscoveryPrefix = cfg.DiscoveryPrefix
	if !cfg.Enabled {
		return &Publisher{builder: builder}, nil
	}

	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetConnectionLostHandler(func(c paho.Client, err error) {
			log.Warnw("mqtt connection lost", "error", err)
		}).
		SetOnConnectHandler(func(c paho.Client) {
			log.Infow("mqtt connected", "broker", cfg.Broker)
		})

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	c := paho.NewClient(opts)
	token := c.Connect()
	if token.WaitTimeout(publishTimeout) && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	return newPublisher(c, builder), nil
}

func newPublisher(c client, builder Builder) *Publisher {
	return &Publisher{
		client:     c,
		builder:    builder,
		enabled:    true,
		discovered: make(map[string]bool),
	}
}

func (p *Publisher) send(m Message) error {
	token := p.client.Publish(m.Topic, 0, m.Retained, m.Payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish to %s timed out", m.Topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", m.Topic, err)
	}
	return nil
}

func (p *Publisher) publishEntity(e Entity) error {
	if !p.discovered[e.ObjectID] {
		d, err := p.builder.Discovery(e)
		if err != nil {
			return err
		}
		if err := p.send(d); err != nil {
			return err
		}
		p.discovered[e.ObjectID] = true
	}

	msgs, err := p.builder.StateMessages(e)
	if err != nil {
		return err
	}
	for _, m := range msgs {
		if err := p.send(m); err != nil {
			return err
		}
	}
	return nil
}

// PublishSnapshot publishes every entity the snapshot populates. A failure
// on one entity does not stop the others; the first error is returned.
func (p *Publisher) PublishSnapshot(s weather.Snapshot) error {
	if !p.enabled {
		return nil
	}

	var first error
	entities := p.builder.Entities(s)
	for _, e := range entities {
		if err := p.publishEntity(e); err != nil {
			log.Warnw("mqtt publish failed", "entity", e.EntityID(), "error", err)
			if first == nil {
				first = err
			}
		}
	}
	log.Debugw("mqtt snapshot published", "snapshot", s.ID, "entities", len(entities))
	return first
}

// PublishRadar publishes the rain map camera image.
func (p *Publisher) PublishRadar(f radar.Frame) error {
	if !p.enabled {
		return nil
	}
	return p.publishEntity(p.builder.RadarEntity(f))
}

func (p *Publisher) IsConnected() bool {
	if !p.enabled {
		return false
	}
	return p.client.IsConnected()
}

func (p *Publisher) Close() {
	if p.enabled && p.client != nil {
		p.client.Disconnect(1000)
	}
}

package bus

import (
	"strings"
	"time"

	"codeberg.org/mutker/dalybms-bridge/internal/errors"
)

const (
	DefaultBroker         = "tcp://localhost:1883"
	DefaultClientID       = "dalybms-bridge"
	DefaultQueueDepth     = 10
	DefaultPublishTimeout = 5 * time.Second
	DefaultConnectTimeout = 10 * time.Second

	disconnectQuiesce = 250 // ms
	topicSuffix       = "data"
)

type Config struct {
	Broker         string
	ClientID       string
	Username       string
	Password       string
	Topic          string
	QoS            byte
	Retain         bool
	QueueDepth     int
	PublishTimeout time.Duration
	ConnectTimeout time.Duration
}

func DefaultConfig(nodeName string) Config {
	return Config{
		Broker:         DefaultBroker,
		ClientID:       DefaultClientID,
		Topic:          Topic(nodeName),
		QueueDepth:     DefaultQueueDepth,
		PublishTimeout: DefaultPublishTimeout,
		ConnectTimeout: DefaultConnectTimeout,
	}
}

// Topic derives the output topic from the node name: "<node>/data".
func Topic(nodeName string) string {
	nodeName = strings.Trim(nodeName, "/")
	if nodeName == "" {
		return topicSuffix
	}
	return nodeName + "/" + topicSuffix
}

func (c Config) Validate() error {
	errFactory := errors.New()

	switch {
	case c.Broker == "":
		return errFactory.WithMessage(ErrInvalidConfig, "mqtt broker is required")
	case c.Topic == "":
		return errFactory.WithMessage(ErrInvalidConfig, "mqtt topic is required")
	case strings.ContainsAny(c.Topic, "+#"):
		return errFactory.WithMessage(ErrInvalidConfig, "mqtt topic must not contain wildcards")
	case c.QoS > 2:
		return errFactory.WithData(ErrInvalidConfig, struct {
			Field string
			Value byte
		}{"qos", c.QoS})
	case c.QueueDepth < 1:
		return errFactory.WithData(ErrInvalidConfig, struct {
			Field string
			Value int
		}{"queue_depth", c.QueueDepth})
	}

	return nil
}

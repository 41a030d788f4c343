// Package bus publishes battery records to an MQTT broker.
package bus

import (
	"context"
	"encoding/json"
	"sync"

	"codeberg.org/mutker/dalybms-bridge/internal/battery"
	"codeberg.org/mutker/dalybms-bridge/internal/errors"
	"codeberg.org/mutker/dalybms-bridge/internal/logger"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Client is the part of mqtt.Client the publisher uses.
type Client interface {
	Connect() mqtt.Token
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// Publisher queues encoded records on a bounded queue and sends them from
// Run. When the queue is full the oldest message is dropped.
type Publisher struct {
	client Client
	cfg    Config
	log    logger.Logger

	mu     sync.Mutex
	queue  chan []byte
	closed chan struct{}
	once   sync.Once
}

// New builds a Publisher for the configured broker. It does not connect;
// call Connect before Run.
func New(cfg Config, log logger.Logger) (*Publisher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(cfg.ConnectTimeout)
	opts.SetOrderMatters(true)

	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warn().Err(err).Str("broker", cfg.Broker).Msg("MQTT connection lost")
	})
	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		log.Info().Str("broker", cfg.Broker).Msg("Connected to MQTT broker")
	})
	opts.SetReconnectingHandler(func(_ mqtt.Client, _ *mqtt.ClientOptions) {
		log.Debug().Str("broker", cfg.Broker).Msg("Reconnecting to MQTT broker")
	})

	return NewWithClient(mqtt.NewClient(opts), cfg, log), nil
}

// Connect performs the initial connection to the broker. Reconnects after a
// lost connection are handled by the client; a failed initial connect is
// returned.
func (p *Publisher) Connect() error {
	errFactory := errors.New()

	token := p.client.Connect()
	if !token.WaitTimeout(p.cfg.ConnectTimeout) {
		return errFactory.New(ErrConnectFailed).WithData(p.cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return errFactory.Wrap(ErrConnectFailed, err)
	}

	return nil
}

// NewWithClient builds a Publisher around an already connected client.
func NewWithClient(client Client, cfg Config, log logger.Logger) *Publisher {
	depth := cfg.QueueDepth
	if depth < 1 {
		depth = DefaultQueueDepth
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = DefaultPublishTimeout
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}

	return &Publisher{
		client: client,
		cfg:    cfg,
		log:    log,
		queue:  make(chan []byte, depth),
		closed: make(chan struct{}),
	}
}

// Topic returns the topic records are published on.
func (p *Publisher) Topic() string {
	return p.cfg.Topic
}

// Publish encodes status and enqueues it. It does not wait for the broker.
func (p *Publisher) Publish(ctx context.Context, status battery.Status) error {
	errFactory := errors.New()

	select {
	case <-p.closed:
		return errFactory.New(ErrClosed)
	default:
	}
	if err := ctx.Err(); err != nil {
		return errFactory.Wrap(errors.ErrTimeout, err)
	}

	payload, err := json.Marshal(status.Message())
	if err != nil {
		return errFactory.Wrap(ErrEncodeFailed, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for {
		select {
		case p.queue <- payload:
			return nil
		default:
		}

		select {
		case <-p.queue:
			p.log.Warn().
				Int("queue_depth", cap(p.queue)).
				Str("topic", p.cfg.Topic).
				Msg("Publish queue full, dropped oldest message")
		default:
		}
	}
}

// Run sends queued messages until ctx is cancelled or the publisher is closed.
func (p *Publisher) Run(ctx context.Context) {
	p.log.Debug().Str("topic", p.cfg.Topic).Msg("MQTT publisher started")

	for {
		select {
		case <-ctx.Done():
			p.log.Debug().Msg("MQTT publisher stopped")
			return
		case <-p.closed:
			return
		case payload := <-p.queue:
			if err := p.send(payload); err != nil {
				p.log.Warn().Err(err).Str("topic", p.cfg.Topic).Msg("Failed to publish battery status")
			}
		}
	}
}

func (p *Publisher) send(payload []byte) error {
	errFactory := errors.New()

	token := p.client.Publish(p.cfg.Topic, p.cfg.QoS, p.cfg.Retain, payload)
	if !token.WaitTimeout(p.cfg.PublishTimeout) {
		return errFactory.New(ErrPublishTimeout).WithData(p.cfg.PublishTimeout)
	}
	if err := token.Error(); err != nil {
		return errFactory.Wrap(ErrPublishFailed, err)
	}

	return nil
}

// Close stops Run and disconnects from the broker.
func (p *Publisher) Close() error {
	p.once.Do(func() {
		close(p.closed)
		p.client.Disconnect(disconnectQuiesce)
		p.log.Info().Msg("MQTT publisher closed")
	})

	return nil
}

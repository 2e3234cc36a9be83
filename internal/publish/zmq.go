// Package publish fans control state out to other processes over ZeroMQ.
package publish

import (
	"context"
	"fmt"

	"github.com/pebbe/zmq4"

	"github.com/ayusman/fingertrain/internal/control"
	"github.com/ayusman/fingertrain/internal/logging"
)

// DefaultTopic prefixes every published message.
const DefaultTopic = "fingertrain.state"

// Config holds publisher settings. An empty Endpoint disables publishing.
type Config struct {
	Endpoint string `yaml:"endpoint" env:"ENDPOINT"`
	Topic    string `yaml:"topic" env:"TOPIC"`
}

// Publisher sends each control state as a two-part [topic, CBOR] message on
// a PUB socket.
type Publisher struct {
	socket *zmq4.Socket
	topic  string
	log    *logging.Logger
	sent   uint64
}

// NewPublisher binds a PUB socket to cfg.Endpoint.
func NewPublisher(cfg Config, log *logging.Logger) (*Publisher, error) {
	if log == nil {
		log = logging.Discard()
	}
	topic := cfg.Topic
	if topic == "" {
		topic = DefaultTopic
	}

	socket, err := zmq4.NewSocket(zmq4.PUB)
	if err != nil {
		return nil, fmt.Errorf("create pub socket: %w", err)
	}
	if err := socket.Bind(cfg.Endpoint); err != nil {
		_ = socket.Close()
		return nil, fmt.Errorf("bind %s: %w", cfg.Endpoint, err)
	}
	return &Publisher{socket: socket, topic: topic, log: log.With("endpoint", cfg.Endpoint)}, nil
}

// Publish sends one state.
func (p *Publisher) Publish(s control.State) error {
	payload, err := control.Encode(s, control.FormatCBOR)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if _, err := p.socket.Send(p.topic, zmq4.SNDMORE); err != nil {
		return fmt.Errorf("send topic: %w", err)
	}
	if _, err := p.socket.SendBytes(payload, 0); err != nil {
		return fmt.Errorf("send state: %w", err)
	}
	p.sent++
	return nil
}

// Sent returns how many states were published.
func (p *Publisher) Sent() uint64 { return p.sent }

// Run publishes every state change of cell until ctx is done, then closes
// the socket. The socket is only touched from this goroutine.
func (p *Publisher) Run(ctx context.Context, cell *control.Cell) error {
	states, cancel := cell.Subscribe()
	defer cancel()
	defer p.socket.Close()

	p.log.Info("publishing control state", "topic", p.topic)
	for {
		select {
		case <-ctx.Done():
			return nil
		case s, ok := <-states:
			if !ok {
				return nil
			}
			if err := p.Publish(s); err != nil {
				p.log.Warn("publish failed", "error", err)
			}
		}
	}
}

// Package mqtt publishes tag snapshots to a broker, one retained message
// per tag, grounded on the teacher's mqtt.Publisher connection-management
// style but without its write-subscription machinery (§4.11: publish is
// one-directional in this client).
package mqtt

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/amrhady2/go-logix-cip/logging"
	"github.com/amrhady2/go-logix-cip/logix"
)

// Config names the broker and the topic root tags publish under.
type Config struct {
	BrokerURL string
	ClientID  string
	RootTopic string
	Username  string
	Password  string
}

// Publisher is a publish.Sink backed by paho.mqtt.golang.
type Publisher struct {
	cfg    Config
	client pahomqtt.Client
	logger logging.Logger
	mu     sync.Mutex
}

// New connects to the broker named in cfg.
func New(cfg Config, logger logging.Logger) (*Publisher, error) {
	if logger == nil {
		logger = logging.NopLogger{}
	}
	opts := pahomqtt.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := pahomqtt.NewClient(opts)
	if tok := client.Connect(); tok.Wait() && tok.Error() != nil {
		return nil, fmt.Errorf("mqtt: connect %s: %w", cfg.BrokerURL, tok.Error())
	}
	return &Publisher{cfg: cfg, client: client, logger: logger}, nil
}

// Publish sends one retained message per tag to <root>/<plc>/<tag>.
func (p *Publisher) Publish(plcName string, values []logix.TagValue) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, v := range values {
		topic := fmt.Sprintf("%s/%s/%s", p.cfg.RootTopic, plcName, v.Name)
		msg := struct {
			Value     interface{} `json:"value"`
			Type      string      `json:"type"`
			Timestamp string      `json:"timestamp"`
		}{Value: v.Value, Type: v.Type.String(), Timestamp: v.Timestamp.Format(time.RFC3339Nano)}

		payload, err := json.Marshal(msg)
		if err != nil {
			p.logger.LogError("mqtt", err)
			continue
		}
		tok := p.client.Publish(topic, 0, true, payload)
		if tok.Wait() && tok.Error() != nil {
			p.logger.LogError("mqtt", tok.Error())
		}
	}
	return nil
}

// Close disconnects from the broker.
func (p *Publisher) Close() error {
	p.client.Disconnect(250)
	return nil
}

package events

import(
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type MQTTConfig struct {
	Broker   string        `yaml:"broker" koanf:"broker"`     // e.g. tcp://localhost:1883; empty disables MQTT
	ClientID string        `yaml:"client_id" koanf:"client_id"`
	Prefix   string        `yaml:"prefix" koanf:"prefix"`
	QoS      int           `yaml:"qos" koanf:"qos"`
	Timeout  time.Duration `yaml:"timeout" koanf:"timeout"`
}

func DefaultMQTTConfig() MQTTConfig {
	return MQTTConfig{
		ClientID: "hdr-bracket",
		Prefix:   "hdr-bracket",
		QoS:      1,
		Timeout:  5 * time.Second,
	}
}

// MQTTPublisher sends each event as JSON to <prefix>/<session>/<type>.
type MQTTPublisher struct {
	cfg    MQTTConfig
	client mqtt.Client
}

func NewMQTTPublisher(cfg MQTTConfig) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.SetKeepAlive(2 * time.Second)
	opts.SetPingTimeout(1 * time.Second)
	opts.SetConnectTimeout(cfg.Timeout)

	c := mqtt.NewClient(opts)
	if token := c.Connect(); token.WaitTimeout(cfg.Timeout) && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", cfg.Broker, token.Error())
	} else if !c.IsConnected() {
		return nil, fmt.Errorf("mqtt connect %s: timed out", cfg.Broker)
	}

	return &MQTTPublisher{cfg: cfg, client: c}, nil
}

func (p *MQTTPublisher)Topic(e Event) string {
	return fmt.Sprintf("%s/%s/%s", p.cfg.Prefix, e.Session, e.Type)
}

func (p *MQTTPublisher)Publish(e Event) error {
	msg, err := json.Marshal(e)
	if err != nil {
		return err
	}
	token := p.client.Publish(p.Topic(e), byte(p.cfg.QoS), false, msg)
	if !token.WaitTimeout(p.cfg.Timeout) {
		return fmt.Errorf("mqtt publish %s: timed out", p.Topic(e))
	}
	return token.Error()
}

func (p *MQTTPublisher)Close() error {
	p.client.Disconnect(250)
	return nil
}

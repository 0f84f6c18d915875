package switchbot

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/joshp123/gohome-switchbot/internal/config"
)

const mqttCommandTimeout = 30 * time.Second

// MQTTPublisher mirrors vacuum state to retained MQTT topics and accepts
// commands on <prefix>/vacuum/<device_id>/command.
type MQTTPublisher struct {
	client mqtt.Client
	prefix string
	logger *zap.Logger
}

type statePayload struct {
	State   State `json:"state"`
	Battery *int  `json:"battery"`
}

func NewMQTTPublisher(cfg *config.MQTTConfig, logger *zap.Logger) (*MQTTPublisher, error) {
	if cfg == nil {
		return nil, fmt.Errorf("mqtt config is required")
	}
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.PasswordFile != "" {
		password, err := config.ReadSecret(cfg.PasswordFile)
		if err != nil {
			return nil, err
		}
		opts.SetPassword(password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(10 * time.Second)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect mqtt: %w", token.Error())
	}
	return newMQTTPublisher(client, cfg.TopicPrefix, logger), nil
}

func newMQTTPublisher(client mqtt.Client, prefix string, logger *zap.Logger) *MQTTPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MQTTPublisher{
		client: client,
		prefix: strings.TrimRight(prefix, "/"),
		logger: logger.Named("switchbot.mqtt"),
	}
}

func (p *MQTTPublisher) stateTopic(deviceID string) string {
	return p.prefix + "/vacuum/" + deviceID + "/state"
}

func (p *MQTTPublisher) commandTopic() string {
	return p.prefix + "/vacuum/+/command"
}

// Observe publishes a state change. Delivery is not awaited.
func (p *MQTTPublisher) Observe(device Device, state VacuumState) {
	payload, err := json.Marshal(statePayload{State: state.State, Battery: state.Battery})
	if err != nil {
		p.logger.Warn("encode mqtt state", zap.Error(err))
		return
	}
	p.client.Publish(p.stateTopic(device.ID), 1, true, payload)
}

// HandleCommands subscribes to command topics and forwards them to hub.
func (p *MQTTPublisher) HandleCommands(hub *Hub) error {
	token := p.client.Subscribe(p.commandTopic(), 1, func(_ mqtt.Client, msg mqtt.Message) {
		deviceID, cmd, ok := p.parseCommand(msg.Topic(), msg.Payload())
		if !ok {
			return
		}
		vacuum, found := hub.Vacuum(deviceID)
		if !found {
			p.logger.Debug("mqtt command for unknown vacuum", zap.String("device_id", deviceID))
			return
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), mqttCommandTimeout)
			defer cancel()
			if err := vacuum.SendCommand(ctx, cmd); err != nil {
				p.logger.Warn("mqtt vacuum command failed",
					zap.String("device_id", deviceID),
					zap.String("command", string(cmd)),
					zap.Error(err),
				)
			}
		}()
	})
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("subscribe %s: %w", p.commandTopic(), token.Error())
	}
	return nil
}

func (p *MQTTPublisher) parseCommand(topic string, payload []byte) (string, Command, bool) {
	rest, ok := strings.CutPrefix(topic, p.prefix+"/vacuum/")
	if !ok {
		return "", "", false
	}
	deviceID, ok := strings.CutSuffix(rest, "/command")
	if !ok || deviceID == "" || strings.Contains(deviceID, "/") {
		return "", "", false
	}
	switch strings.ToLower(strings.TrimSpace(string(payload))) {
	case "start":
		return deviceID, CommandStart, true
	case "stop", "pause":
		return deviceID, CommandStop, true
	case "return_to_base", "dock":
		return deviceID, CommandDock, true
	default:
		return "", "", false
	}
}

func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}

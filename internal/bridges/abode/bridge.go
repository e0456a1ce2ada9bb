package abode

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/abode-bridge/internal/device"
	"github.com/nerrad567/abode-bridge/internal/infrastructure/mqtt"
)

// commandTimeout bounds one command, including the bulb debounce window.
const commandTimeout = 15 * time.Second

// Logger is the logging interface used by the bridge.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// MQTTClient is the subset of *mqtt.Client the bridge uses.
type MQTTClient interface {
	Publisher
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// Core is the bridge core as seen by the MQTT host.
// *platform.Platform satisfies it.
type Core interface {
	StatusSource
	ApplyLocalCommand(ctx context.Context, id string, cmd device.Command) error
}

// Options holds everything NewBridge needs.
type Options struct {
	MQTT    MQTTClient
	Core    Core
	Topics  mqtt.Topics
	QoS     byte
	Version string

	// HealthInterval defaults to 30 seconds.
	HealthInterval time.Duration

	Logger Logger
}

// Bridge mirrors device state onto MQTT and applies commands received there.
//
// It implements platform.Host. All methods are safe for concurrent use.
type Bridge struct {
	mqtt   MQTTClient
	core   Core
	topics mqtt.Topics
	qos    byte
	health *HealthReporter
	logger Logger

	ctx       context.Context
	ctxCancel context.CancelFunc
	wg        sync.WaitGroup
	stopOnce  sync.Once
}

// NewBridge creates a bridge. Call Start to subscribe and begin health reporting.
func NewBridge(opts Options) (*Bridge, error) {
	if opts.MQTT == nil {
		return nil, fmt.Errorf("%w: MQTT client", ErrMissingDependency)
	}
	if opts.Core == nil {
		return nil, fmt.Errorf("%w: core", ErrMissingDependency)
	}
	if opts.Topics == (mqtt.Topics{}) {
		opts.Topics = mqtt.NewTopics("")
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Bridge{
		mqtt:   opts.MQTT,
		core:   opts.Core,
		topics: opts.Topics,
		qos:    opts.QoS,
		health: NewHealthReporter(HealthReporterConfig{
			Topic:     opts.Topics.Health(),
			Version:   opts.Version,
			Interval:  opts.HealthInterval,
			Publisher: opts.MQTT,
			Source:    opts.Core,
			Logger:    opts.Logger,
		}),
		logger:    opts.Logger,
		ctx:       ctx,
		ctxCancel: cancel,
	}, nil
}

// Name identifies the host in logs.
func (b *Bridge) Name() string { return "mqtt" }

// Start subscribes to device commands and starts health reporting.
func (b *Bridge) Start(ctx context.Context) error {
	if err := b.health.PublishStarting(); err != nil {
		b.logger.Warn("failed to publish starting status", "error", err)
	}

	topic := b.topics.AllCommands()
	if err := b.mqtt.Subscribe(topic, b.qos, b.handleCommand); err != nil {
		return fmt.Errorf("subscribe to commands: %w", err)
	}
	b.logger.Info("subscribed to commands", "topic", topic)

	b.health.Start(ctx)
	return nil
}

// Stop cancels in-flight commands and publishes a final health status.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		b.ctxCancel()
		b.wg.Wait()
		b.health.Stop()
	})
}

// Register publishes the initial state of a discovered device.
func (b *Bridge) Register(m device.Model) error {
	return b.publishState(m.State())
}

// Update publishes refreshed device state.
func (b *Bridge) Update(st device.State) {
	if err := b.publishState(st); err != nil {
		b.logger.Warn("failed to publish device state", "id", st.ID, "error", err)
	}
}

func (b *Bridge) publishState(st device.State) error {
	payload, err := json.Marshal(NewStateMessage(st))
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	return b.mqtt.Publish(b.topics.State(st.ID), payload, b.qos, true)
}

// handleCommand runs on the MQTT client's goroutine. The command itself is
// applied on the bridge's own context so shutdown aborts it.
func (b *Bridge) handleCommand(topic string, payload []byte) error {
	id, ok := b.topics.DeviceFromCommand(topic)
	if !ok {
		return fmt.Errorf("%w: %s", ErrInvalidTopic, topic)
	}

	var msg CommandMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		b.publishAck(id, "", fmt.Errorf("%w: %w", device.ErrInvalidCommand, err))
		return nil
	}

	cmd, err := device.ParseCommand(payload)
	if err != nil {
		b.publishAck(id, msg.ID, err)
		return nil
	}

	b.logger.Info("received command", "id", id, "command", cmd.String(), "command_id", msg.ID, "source", msg.Source)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()

		ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
		defer cancel()

		err := b.core.ApplyLocalCommand(ctx, id, cmd)
		if err != nil {
			b.logger.Warn("command failed", "id", id, "command", cmd.String(), "error", err)
		}
		b.publishAck(id, msg.ID, err)
	}()
	return nil
}

func (b *Bridge) publishAck(deviceID, commandID string, cmdErr error) {
	payload, err := json.Marshal(NewAckMessage(deviceID, commandID, cmdErr))
	if err != nil {
		b.logger.Error("failed to marshal ack", "error", err)
		return
	}
	if err := b.mqtt.Publish(b.topics.Ack(deviceID), payload, b.qos, false); err != nil {
		b.logger.Warn("failed to publish ack", "id", deviceID, "error", err)
	}
}

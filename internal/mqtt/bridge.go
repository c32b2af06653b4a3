package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/zberg/go-flexismart/internal/coordinator"
	"github.com/zberg/go-flexismart/internal/entity"
)

// Publisher is the part of Client the bridge needs.
type Publisher interface {
	Publish(topic string, payload []byte, retained bool) error
	Subscribe(topic string, handler MessageHandler) error
}

// Devices gives access to the polled modules. *coordinator.Hub implements it.
type Devices interface {
	Devices() []*coordinator.DeviceCoordinator
	Device(key coordinator.ModuleKey) (*coordinator.DeviceCoordinator, bool)
	UpdateDateTime(ctx context.Context) error
}

// Bridge mirrors coordinator state to Home Assistant and executes commands
// received from it.
type Bridge struct {
	pub      Publisher
	topics   Topics
	devices  Devices
	actions  *entity.Actions
	extended bool
	logger   *slog.Logger

	mu         sync.Mutex
	ctx        context.Context
	gateway    *coordinator.Coordinator[coordinator.GatewayInfo]
	discovered map[coordinator.ModuleKey]bool
}

// NewBridge creates a bridge. extended enables the anti-freeze entity.
func NewBridge(pub Publisher, topics Topics, devices Devices, actions *entity.Actions, extended bool, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Bridge{
		pub:        pub,
		topics:     topics,
		devices:    devices,
		actions:    actions,
		extended:   extended,
		logger:     logger,
		ctx:        context.Background(),
		discovered: make(map[coordinator.ModuleKey]bool),
	}
}

// Start subscribes to the command topics. Commands run with ctx.
func (b *Bridge) Start(ctx context.Context) error {
	b.mu.Lock()
	b.ctx = ctx
	b.mu.Unlock()

	if err := b.pub.Subscribe(b.topics.HeaterCommandFilter(), b.handleHeaterCommand); err != nil {
		return fmt.Errorf("subscribe heater commands: %w", err)
	}
	if err := b.pub.Subscribe(b.topics.GatewayUpdateDateTime(), b.handleUpdateDateTime); err != nil {
		return fmt.Errorf("subscribe gateway commands: %w", err)
	}
	return nil
}

// AttachGateway publishes the gateway entity after every gateway update.
func (b *Bridge) AttachGateway(c *coordinator.Coordinator[coordinator.GatewayInfo]) {
	b.mu.Lock()
	b.gateway = c
	b.mu.Unlock()
	c.Subscribe(func() { b.logError(b.PublishGateway()) })
}

// AddDevice publishes the module after every poll.
func (b *Bridge) AddDevice(dc *coordinator.DeviceCoordinator) {
	dc.Subscribe(func() { b.logError(b.PublishDevice(dc)) })
}

// RemoveDevice deletes the module's entities from Home Assistant.
func (b *Bridge) RemoveDevice(key coordinator.ModuleKey) {
	b.mu.Lock()
	delete(b.discovered, key)
	b.mu.Unlock()

	id := ObjectID(key)
	b.logError(b.pub.Publish(b.topics.HeaterAvailability(key), []byte(PayloadOffline), true))
	for _, component := range []string{componentClimate, componentSwitch, componentNumber} {
		b.logError(b.pub.Publish(b.topics.Discovery(component, "flexismart_"+id), nil, true))
	}
}

// Republish sends discovery and state of everything again, e.g. after a
// broker reconnect.
func (b *Bridge) Republish() {
	b.mu.Lock()
	clear(b.discovered)
	gw := b.gateway
	b.mu.Unlock()

	if gw != nil {
		b.logError(b.PublishGateway())
	}
	for _, dc := range b.devices.Devices() {
		b.logError(b.PublishDevice(dc))
	}
}

// PublishDevice publishes discovery (once), state and availability of a
// module. Nothing is published before the first successful poll.
func (b *Bridge) PublishDevice(dc *coordinator.DeviceCoordinator) error {
	c, ok := entity.ClimateFromDevice(dc)
	if !ok {
		return nil
	}
	key := dc.Key()

	b.mu.Lock()
	first := !b.discovered[key]
	b.discovered[key] = true
	b.mu.Unlock()

	if first {
		if err := b.publishHeaterDiscovery(key, c); err != nil {
			b.mu.Lock()
			delete(b.discovered, key)
			b.mu.Unlock()
			return err
		}
	}

	if err := b.publishJSON(b.topics.HeaterState(key), c); err != nil {
		return err
	}
	return b.pub.Publish(b.topics.HeaterAvailability(key), []byte(availability(c.Available)), true)
}

func (b *Bridge) publishHeaterDiscovery(key coordinator.ModuleKey, c entity.Climate) error {
	id := "flexismart_" + ObjectID(key)
	if err := b.publishJSON(b.topics.Discovery(componentClimate, id), b.topics.ClimateDiscovery(key, c)); err != nil {
		return err
	}
	if err := b.publishJSON(b.topics.Discovery(componentSwitch, id), b.topics.WindowDetectionDiscovery(key, c)); err != nil {
		return err
	}
	if !b.extended {
		return nil
	}
	return b.publishJSON(b.topics.Discovery(componentNumber, id), b.topics.AntiFreezeDiscovery(key, c))
}

// PublishGateway publishes the gateway entity.
func (b *Bridge) PublishGateway() error {
	b.mu.Lock()
	c := b.gateway
	b.mu.Unlock()
	if c == nil {
		return nil
	}

	g := entity.GatewayFromCoordinator(c)
	if err := b.publishJSON(b.topics.Discovery(componentBinarySensor, "flexismart_gateway"), b.topics.GatewayConnectivityDiscovery(g)); err != nil {
		return err
	}
	if err := b.publishJSON(b.topics.Discovery(componentButton, "flexismart_gateway"), b.topics.GatewayClockDiscovery(g)); err != nil {
		return err
	}
	if err := b.publishJSON(b.topics.GatewayState(), g); err != nil {
		return err
	}
	return b.pub.Publish(b.topics.GatewayAvailability(), []byte(availability(g.Available)), true)
}

func (b *Bridge) publishJSON(topic string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", topic, err)
	}
	return b.pub.Publish(topic, payload, true)
}

func (b *Bridge) commandContext() (context.Context, context.CancelFunc) {
	b.mu.Lock()
	ctx := b.ctx
	b.mu.Unlock()
	return context.WithTimeout(ctx, coordinator.DefaultRequestTimeout)
}

func (b *Bridge) handleHeaterCommand(topic string, payload []byte) error {
	key, command, err := b.topics.ParseHeaterCommand(topic)
	if err != nil {
		return err
	}
	dc, ok := b.devices.Device(key)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDevice, key)
	}
	c, ok := entity.ClimateFromDevice(dc)
	if !ok {
		return fmt.Errorf("%w: %s has no data yet", ErrUnknownDevice, key)
	}

	ctx, cancel := b.commandContext()
	defer cancel()

	value := strings.TrimSpace(string(payload))
	switch command {
	case CommandTemperature:
		t, perr := strconv.ParseFloat(value, 64)
		if perr != nil {
			return fmt.Errorf("%w: temperature %q", ErrInvalidPayload, value)
		}
		_, err = b.actions.SetTemperature(ctx, c, t)
	case CommandPresetMode:
		err = b.actions.SetPresetMode(ctx, c, value)
	case CommandWindowOpenDetection:
		var enabled bool
		switch strings.ToUpper(value) {
		case payloadOn:
			enabled = true
		case payloadOff:
		default:
			return fmt.Errorf("%w: window open detection %q", ErrInvalidPayload, value)
		}
		err = b.actions.SetWindowOpenDetection(ctx, c, enabled)
	case CommandAntiFreezeTemperature:
		t, perr := strconv.ParseFloat(value, 64)
		if perr != nil || t != float64(int(t)) {
			return fmt.Errorf("%w: anti-freeze temperature %q", ErrInvalidPayload, value)
		}
		err = b.actions.SetAntiFreezeTemperature(ctx, c, int(t))
	default:
		return fmt.Errorf("%w: unknown command %q", ErrInvalidTopic, command)
	}
	if err != nil {
		return err
	}

	dc.RequestRefresh()
	return nil
}

func (b *Bridge) handleUpdateDateTime(string, []byte) error {
	ctx, cancel := b.commandContext()
	defer cancel()
	return b.devices.UpdateDateTime(ctx)
}

func (b *Bridge) logError(err error) {
	if err != nil {
		b.logger.Warn("mqtt publish failed", "error", err)
	}
}

func availability(available bool) string {
	if available {
		return PayloadOnline
	}
	return PayloadOffline
}

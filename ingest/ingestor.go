package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"energy-server/entities"
	"energy-server/usecases"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

const (
	KindStatus = "status"
	KindTick   = "tick"
)

var ErrBadTopic = errors.New("unrecognised topic")

// DeviceService is the part of the device use case the ingestor drives.
type DeviceService interface {
	SetDeviceStatus(ctx context.Context, userID, id, status string) (*entities.Device, error)
	UpdateEnergyUsage(ctx context.Context, userID, id string) (*usecases.UsageUpdate, error)
}

// Topic identifies the device a telemetry message is about.
type Topic struct {
	UserID   string
	DeviceID string
	Kind     string
}

// ParseTopic splits energy/<userId>/devices/<deviceId>/<kind>.
func ParseTopic(topic string) (Topic, error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 5 || parts[0] != "energy" || parts[2] != "devices" {
		return Topic{}, fmt.Errorf("%w: %q", ErrBadTopic, topic)
	}
	t := Topic{UserID: parts[1], DeviceID: parts[3], Kind: parts[4]}
	if t.UserID == "" || t.DeviceID == "" {
		return Topic{}, fmt.Errorf("%w: %q", ErrBadTopic, topic)
	}
	switch t.Kind {
	case KindStatus, KindTick:
		return t, nil
	}
	return Topic{}, fmt.Errorf("%w: unknown kind %q", ErrBadTopic, t.Kind)
}

type statusPayload struct {
	Status string `json:"status"`
}

type Ingestor struct {
	devices DeviceService
	log     zerolog.Logger
	timeout time.Duration
}

func NewIngestor(devices DeviceService, log zerolog.Logger) *Ingestor {
	return &Ingestor{
		devices: devices,
		log:     log,
		timeout: 10 * time.Second,
	}
}

// HandleMessage applies a single telemetry message.
func (i *Ingestor) HandleMessage(ctx context.Context, topic string, payload []byte) error {
	t, err := ParseTopic(topic)
	if err != nil {
		return err
	}

	switch t.Kind {
	case KindStatus:
		var p statusPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("decode status payload: %w", err)
		}
		d, err := i.devices.SetDeviceStatus(ctx, t.UserID, t.DeviceID, p.Status)
		if err != nil {
			return fmt.Errorf("set status: %w", err)
		}
		i.log.Debug().Str("device_id", d.ID).Str("status", string(d.Status)).Msg("device status applied")
	case KindTick:
		res, err := i.devices.UpdateEnergyUsage(ctx, t.UserID, t.DeviceID)
		if err != nil {
			return fmt.Errorf("update usage: %w", err)
		}
		i.log.Debug().
			Str("device_id", t.DeviceID).
			Float64("energy_consumed", res.EnergyConsumed).
			Bool("skipped", res.Skipped).
			Msg("device usage updated")
	}
	return nil
}

// Handler adapts HandleMessage to a paho callback. Errors are logged.
func (i *Ingestor) Handler(ctx context.Context) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		mctx, cancel := context.WithTimeout(ctx, i.timeout)
		defer cancel()

		if err := i.HandleMessage(mctx, msg.Topic(), msg.Payload()); err != nil {
			i.log.Error().Err(err).Str("topic", msg.Topic()).Msg("ingest failed")
		}
	}
}

// Subscribe registers the ingestor on topic and waits for the broker ack.
func (i *Ingestor) Subscribe(ctx context.Context, client mqtt.Client, topic string) error {
	token := client.Subscribe(topic, 1, i.Handler(ctx))
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("subscribe %s: %w", topic, token.Error())
	}
	i.log.Info().Str("topic", topic).Msg("subscribed")
	return nil
}

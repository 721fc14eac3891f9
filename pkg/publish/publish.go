// Package publish mirrors received readings to message brokers.
package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/itohio/gohrm/pkg/config"
	"github.com/itohio/gohrm/pkg/heartrate"
	"go.uber.org/zap"
)

// Reading is the JSON document published per received reading.
type Reading struct {
	Timestamp time.Time `json:"timestamp"`
	HeartRate int       `json:"heart_rate"`
	Zone      string    `json:"zone"`
	Touch     bool      `json:"touch"`
	Hydrated  bool      `json:"hydrated"`
	Connected bool      `json:"connected"`
}

// NewReading fills the derived fields.
func NewReading(now time.Time, bpm int, touch, hydrated, connected bool) Reading {
	return Reading{
		Timestamp: now,
		HeartRate: bpm,
		Zone:      heartrate.Classify(bpm).String(),
		Touch:     touch,
		Hydrated:  hydrated,
		Connected: connected,
	}
}

// Marshal encodes r as JSON.
func (r Reading) Marshal() ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal reading: %w", err)
	}
	return data, nil
}

// Publisher delivers readings somewhere.
type Publisher interface {
	Publish(ctx context.Context, r Reading) error
	Close() error
}

// Multi publishes to every publisher and joins the errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, r Reading) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, p := range m {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// FromConfig connects the configured publishers. Nothing configured yields an
// empty Multi. On error the already connected publishers are closed.
func FromConfig(cfg config.PublishConfig, log *zap.Logger) (Multi, error) {
	if log == nil {
		log = zap.NewNop()
	}

	var out Multi
	if cfg.NATS.URL != "" {
		p, err := DialNATS(cfg.NATS, log)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if cfg.MQTT.Broker != "" {
		p, err := DialMQTT(cfg.MQTT, log)
		if err != nil {
			_ = out.Close()
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

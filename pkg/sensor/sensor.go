// Package sensor provides the sensing node's inputs: an optical PPG sensor
// and a touch pad, real or simulated.
package sensor

import (
	"errors"
	"fmt"
	"time"

	"github.com/itohio/gohrm/pkg/config"
	"go.uber.org/zap"
)

// ErrNotFound is returned when the optical sensor does not answer.
var ErrNotFound = errors.New("sensor not found")

// Optical returns the latest infrared amplitude.
type Optical interface {
	IR() (uint32, error)
}

// Touch reports whether the touch pad is pressed.
type Touch interface {
	Touched() bool
}

// Device is an optical sensor that needs probing and configuration.
type Device interface {
	Optical
	Probe() error
	Configure() error
}

// None is the optical sensor of a node running without one.
// It always reads zero, which is below any presence threshold.
type None struct{}

func (None) IR() (uint32, error) { return 0, nil }

// Policy controls start-up when the optical sensor is missing.
type Policy struct {
	Attempts int
	Delay    time.Duration
	Halt     bool                // return ErrNotFound instead of running degraded
	Sleep    func(time.Duration) // defaults to time.Sleep
}

// PolicyFromConfig builds a Policy from the sensor configuration.
func PolicyFromConfig(cfg config.SensorConfig) Policy {
	return Policy{
		Attempts: cfg.InitAttempts,
		Delay:    cfg.InitDelay,
		Halt:     cfg.OnMissing == config.OnMissingHalt,
	}
}

// Init probes and configures dev, retrying up to Attempts times with Delay
// in between. It returns dev when it is ready. When every attempt fails it
// returns ErrNotFound if the policy halts, or None to run degraded.
func Init(dev Device, p Policy, log *zap.Logger) (Optical, error) {
	if log == nil {
		log = zap.NewNop()
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = 1
	}

	var err error
	for i := 1; i <= attempts; i++ {
		if err = dev.Probe(); err == nil {
			if err = dev.Configure(); err == nil {
				log.Info("optical sensor ready", zap.Int("attempt", i))
				return dev, nil
			}
		}
		log.Warn("optical sensor not ready", zap.Int("attempt", i), zap.Int("of", attempts), zap.Error(err))
		if i < attempts {
			sleep(p.Delay)
		}
	}

	if p.Halt {
		return nil, fmt.Errorf("%w after %d attempts: %v", ErrNotFound, attempts, err)
	}
	log.Warn("running without optical sensor, heart rate reads zero")
	return None{}, nil
}

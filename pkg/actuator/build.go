package actuator

import (
	"time"

	"github.com/itohio/gohrm/pkg/config"
)

// Outputs are the physical outputs of an actuator node.
type Outputs struct {
	LED   Pin
	Coils [4]Pin
	// Burster replaces the built-in SequenceBurster in blocking mode.
	Burster Burster
	// Sleep is used by the built-in SequenceBurster; nil means time.Sleep.
	Sleep func(time.Duration)
}

// New builds a controller with the mover selected by cfg.Mode.
func New(cfg config.ActuatorConfig, out Outputs) *Controller {
	stepper := NewStepper(out.Coils[0], out.Coils[1], out.Coils[2], out.Coils[3])

	var mover Mover
	switch cfg.Mode {
	case config.ModeBlocking:
		drv := out.Burster
		if drv == nil {
			drv = &SequenceBurster{Stepper: stepper, Delay: cfg.BlockingStepDelay, Sleep: out.Sleep}
		}
		mover = NewBlockingMover(drv, cfg.BlockingSteps)
	default:
		mover = NewIncrementalMover(stepper, cfg.TotalSteps, cfg.StepInterval)
	}

	return NewController(cfg, NewBlinker(out.LED, cfg.BlinkInterval, cfg.BlinkToggles), mover)
}

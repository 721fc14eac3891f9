package main

import (
	"fmt"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
	"github.com/itohio/gohrm/pkg/actuator"
)

// statusView is the row of labels under the trend.
type statusView struct {
	link      *widget.Label
	heartRate *widget.Label
	hydration *widget.Label
	threshold *widget.Label
	motor     *widget.Label
	dropped   *widget.Label
}

func newStatusView() *statusView {
	v := &statusView{
		link:      widget.NewLabel(""),
		heartRate: widget.NewLabel(""),
		hydration: widget.NewLabel(""),
		threshold: widget.NewLabel(""),
		motor:     widget.NewLabel(""),
		dropped:   widget.NewLabel(""),
	}
	v.reset()
	return v
}

func (v *statusView) content() fyne.CanvasObject {
	return container.NewHBox(v.link, v.heartRate, v.hydration, v.threshold, v.motor, v.dropped)
}

// update shows st. Call it on the main thread.
func (v *statusView) update(st status) {
	v.link.SetText(fmt.Sprintf("Link: %s", st.Link))

	r := st.Reading
	if r.Connected && r.HeartRate > 0 {
		v.heartRate.SetText(fmt.Sprintf("HR: %d (%s)", r.HeartRate, r.Zone))
	} else {
		v.heartRate.SetText("HR: --")
	}

	switch {
	case !r.Connected:
		v.hydration.SetText("Hydration: --")
	case r.Hydrated:
		v.hydration.SetText("Hydration: yes")
	default:
		v.hydration.SetText("Hydration: no")
	}

	v.threshold.SetText(fmt.Sprintf("Threshold: %s", thresholdText(r.Threshold)))
	v.motor.SetText(fmt.Sprintf("Motor: %d", st.Position))
	v.dropped.SetText(fmt.Sprintf("Dropped: %d/%d", st.Malformed, st.Dropped))
}

// reset shows the disconnected state.
func (v *statusView) reset() {
	v.update(status{})
	v.link.SetText("Link: disconnected")
}

func thresholdText(s actuator.State) string {
	if s == actuator.StateHigh {
		return "above"
	}
	if s == actuator.StateLow {
		return "below"
	}
	return "--"
}

// updateLED updates the LED indicator's visual state.
func updateLED(btn *widget.Button, on bool) {
	if on {
		btn.Importance = widget.HighImportance
	} else {
		btn.Importance = widget.MediumImportance
	}
	btn.Refresh()
}

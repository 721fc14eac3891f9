package main

import (
	"fmt"
	"strconv"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
	"github.com/itohio/gohrm/pkg/config"
	"github.com/itohio/gohrm/pkg/link"
)

// showSettingsDialog displays a settings dialog with tabs for all configuration options.
// Changes apply on the next connect.
func showSettingsDialog(state *appState) {
	tabs := container.NewAppTabs(
		createLinkTab(state),
		createSerialTab(state),
		createActuatorTab(state),
		createDisplayTab(state),
		createPublishTab(state),
		createMockTab(state),
	)

	content := container.NewBorder(nil, nil, nil, nil, tabs)
	content.Resize(fyne.NewSize(600, 500))

	d := dialog.NewCustom("Settings", "Close", content, state.window)
	d.Resize(fyne.NewSize(600, 500))
	d.Show()
}

// saveConfig validates and writes the configuration. old is restored when
// validation fails.
func saveConfig(state *appState, old config.Config) {
	if err := state.cfg.Validate(); err != nil {
		*state.cfg = old
		dialog.ShowError(fmt.Errorf("invalid settings: %w", err), state.window)
		return
	}
	if err := state.cfg.Save(state.configPath); err != nil {
		dialog.ShowError(fmt.Errorf("failed to save config: %w", err), state.window)
	}
}

func parseDuration(entry *widget.Entry, dst *time.Duration) {
	if d, err := time.ParseDuration(entry.Text); err == nil {
		*dst = d
	}
}

func parseInt(entry *widget.Entry, dst *int) {
	if v, err := strconv.Atoi(entry.Text); err == nil {
		*dst = v
	}
}

// createLinkTab creates the Link configuration tab.
func createLinkTab(state *appState) *container.TabItem {
	profiles := map[string][2]string{
		"Hydration": {config.HydrationServiceUUID, config.HydrationCharacteristicUUID},
		"Basic":     {config.BasicServiceUUID, config.BasicCharacteristicUUID},
	}
	profileSelect := widget.NewSelect([]string{"Hydration", "Basic"}, nil)
	for name, p := range profiles {
		if p[0] == state.cfg.Link.ServiceUUID {
			profileSelect.SetSelected(name)
		}
	}

	formatSelect := widget.NewSelect([]string{config.FormatTagged, config.FormatCSV, config.FormatBare}, nil)
	formatSelect.SetSelected(state.cfg.Link.Format)

	nameEntry := widget.NewEntry()
	nameEntry.SetText(state.cfg.Link.LocalName)

	retryEntry := widget.NewEntry()
	retryEntry.SetText(state.cfg.Link.RetryInterval.String())

	scanEntry := widget.NewEntry()
	scanEntry.SetText(state.cfg.Link.ScanTimeout.String())

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Profile", Widget: profileSelect},
			{Text: "Payload Format", Widget: formatSelect},
			{Text: "Local Name", Widget: nameEntry},
			{Text: "Retry Interval", Widget: retryEntry},
			{Text: "Scan Timeout", Widget: scanEntry},
		},
		OnSubmit: func() {
			old := *state.cfg
			if p, ok := profiles[profileSelect.Selected]; ok {
				state.cfg.Link.ServiceUUID = p[0]
				state.cfg.Link.CharacteristicUUID = p[1]
			}
			if formatSelect.Selected != "" {
				state.cfg.Link.Format = formatSelect.Selected
			}
			state.cfg.Link.LocalName = nameEntry.Text
			parseDuration(retryEntry, &state.cfg.Link.RetryInterval)
			parseDuration(scanEntry, &state.cfg.Link.ScanTimeout)
			saveConfig(state, old)
		},
	}

	return container.NewTabItem("Link", form)
}

// createSerialTab creates the Serial configuration tab.
func createSerialTab(state *appState) *container.TabItem {
	ports, err := link.Ports()
	portOptions := []string{}
	portMap := make(map[string]string) // Map display name to actual port name

	if err == nil {
		for _, port := range ports {
			displayName := port.Name
			if port.Description != "" && port.Description != port.Name {
				displayName = fmt.Sprintf("%s (%s)", port.Name, port.Description)
			}
			portOptions = append(portOptions, displayName)
			portMap[displayName] = port.Name
		}
	}

	// Add current port if not in list
	currentPort := state.cfg.Serial.Port
	currentDisplay := currentPort
	found := false
	for _, opt := range portOptions {
		if portMap[opt] == currentPort {
			currentDisplay = opt
			found = true
			break
		}
	}
	if !found && currentPort != "" {
		portOptions = append(portOptions, currentPort)
		portMap[currentPort] = currentPort
	}

	portSelect := widget.NewSelect(portOptions, nil)
	if currentDisplay != "" {
		portSelect.SetSelected(currentDisplay)
	}

	baudEntry := widget.NewEntry()
	baudEntry.SetText(strconv.Itoa(state.cfg.Serial.BaudRate))

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Serial Port", Widget: portSelect},
			{Text: "Baud Rate", Widget: baudEntry},
		},
		OnSubmit: func() {
			old := *state.cfg
			if portSelect.Selected != "" {
				selectedPort := portMap[portSelect.Selected]
				if selectedPort == "" {
					selectedPort = portSelect.Selected
				}
				state.cfg.Serial.Port = selectedPort
			}
			parseInt(baudEntry, &state.cfg.Serial.BaudRate)
			saveConfig(state, old)
		},
	}

	return container.NewTabItem("Serial", form)
}

// createActuatorTab creates the Actuator configuration tab.
func createActuatorTab(state *appState) *container.TabItem {
	triggerSelect := widget.NewSelect([]string{config.TriggerHeartRate, config.TriggerTouch}, nil)
	triggerSelect.SetSelected(state.cfg.Actuator.Trigger)

	thresholdEntry := widget.NewEntry()
	thresholdEntry.SetText(strconv.Itoa(state.cfg.Actuator.Threshold))

	dwellEntry := widget.NewEntry()
	dwellEntry.SetText(state.cfg.Actuator.Dwell.String())

	modeSelect := widget.NewSelect([]string{config.ModeIncremental, config.ModeBlocking}, nil)
	modeSelect.SetSelected(state.cfg.Actuator.Mode)

	stepsEntry := widget.NewEntry()
	stepsEntry.SetText(strconv.Itoa(state.cfg.Actuator.TotalSteps))

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Trigger", Widget: triggerSelect},
			{Text: "Threshold (BPM)", Widget: thresholdEntry},
			{Text: "Dwell", Widget: dwellEntry},
			{Text: "Motor Mode", Widget: modeSelect},
			{Text: "Total Steps", Widget: stepsEntry},
		},
		OnSubmit: func() {
			old := *state.cfg
			if triggerSelect.Selected != "" {
				state.cfg.Actuator.Trigger = triggerSelect.Selected
			}
			if modeSelect.Selected != "" {
				state.cfg.Actuator.Mode = modeSelect.Selected
			}
			parseInt(thresholdEntry, &state.cfg.Actuator.Threshold)
			parseDuration(dwellEntry, &state.cfg.Actuator.Dwell)
			parseInt(stepsEntry, &state.cfg.Actuator.TotalSteps)
			saveConfig(state, old)
			state.trendWidget.Refresh()
		},
	}

	return container.NewTabItem("Actuator", form)
}

// createDisplayTab creates the Display configuration tab.
func createDisplayTab(state *appState) *container.TabItem {
	historyEntry := widget.NewEntry()
	historyEntry.SetText(strconv.Itoa(state.cfg.Display.HistorySize))

	refreshEntry := widget.NewEntry()
	refreshEntry.SetText(state.cfg.Display.RefreshInterval.String())

	minEntry := widget.NewEntry()
	minEntry.SetText(strconv.Itoa(state.cfg.Display.GraphMinBPM))

	maxEntry := widget.NewEntry()
	maxEntry.SetText(strconv.Itoa(state.cfg.Display.GraphMaxBPM))

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "History Size", Widget: historyEntry},
			{Text: "Refresh Interval", Widget: refreshEntry},
			{Text: "Graph Min (BPM)", Widget: minEntry},
			{Text: "Graph Max (BPM)", Widget: maxEntry},
		},
		OnSubmit: func() {
			old := *state.cfg
			parseInt(historyEntry, &state.cfg.Display.HistorySize)
			parseDuration(refreshEntry, &state.cfg.Display.RefreshInterval)
			parseInt(minEntry, &state.cfg.Display.GraphMinBPM)
			parseInt(maxEntry, &state.cfg.Display.GraphMaxBPM)
			saveConfig(state, old)
			state.trendWidget.Refresh()
		},
	}

	return container.NewTabItem("Display", form)
}

// createPublishTab creates the Publish configuration tab.
func createPublishTab(state *appState) *container.TabItem {
	natsURLEntry := widget.NewEntry()
	natsURLEntry.SetPlaceHolder("nats://localhost:4222")
	natsURLEntry.SetText(state.cfg.Publish.NATS.URL)

	natsSubjectEntry := widget.NewEntry()
	natsSubjectEntry.SetText(state.cfg.Publish.NATS.Subject)

	mqttBrokerEntry := widget.NewEntry()
	mqttBrokerEntry.SetPlaceHolder("tcp://localhost:1883")
	mqttBrokerEntry.SetText(state.cfg.Publish.MQTT.Broker)

	mqttTopicEntry := widget.NewEntry()
	mqttTopicEntry.SetText(state.cfg.Publish.MQTT.Topic)

	mqttQoSSelect := widget.NewSelect([]string{"0", "1", "2"}, nil)
	mqttQoSSelect.SetSelected(strconv.Itoa(int(state.cfg.Publish.MQTT.QoS)))

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "NATS URL", Widget: natsURLEntry},
			{Text: "NATS Subject", Widget: natsSubjectEntry},
			{Text: "MQTT Broker", Widget: mqttBrokerEntry},
			{Text: "MQTT Topic", Widget: mqttTopicEntry},
			{Text: "MQTT QoS", Widget: mqttQoSSelect},
		},
		OnSubmit: func() {
			old := *state.cfg
			state.cfg.Publish.NATS.URL = natsURLEntry.Text
			state.cfg.Publish.NATS.Subject = natsSubjectEntry.Text
			state.cfg.Publish.MQTT.Broker = mqttBrokerEntry.Text
			state.cfg.Publish.MQTT.Topic = mqttTopicEntry.Text
			if qos, err := strconv.Atoi(mqttQoSSelect.Selected); err == nil {
				state.cfg.Publish.MQTT.QoS = byte(qos)
			}
			saveConfig(state, old)
		},
	}

	return container.NewTabItem("Publish", form)
}

// createMockTab creates the simulated sensing node configuration tab.
func createMockTab(state *appState) *container.TabItem {
	bpmEntry := widget.NewEntry()
	bpmEntry.SetText(fmt.Sprintf("%.0f", state.cfg.Mock.BPM))

	noiseEntry := widget.NewEntry()
	noiseEntry.SetText(fmt.Sprintf("%.1f", state.cfg.Mock.Noise))

	amplitudeEntry := widget.NewEntry()
	amplitudeEntry.SetText(fmt.Sprintf("%.1f", state.cfg.Mock.Amplitude))

	touchPeriodEntry := widget.NewEntry()
	touchPeriodEntry.SetText(state.cfg.Mock.TouchPeriod.String())

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Heart Rate (BPM)", Widget: bpmEntry},
			{Text: "Noise (sensor units)", Widget: noiseEntry},
			{Text: "Pulse Amplitude (sensor units)", Widget: amplitudeEntry},
			{Text: "Touch Period", Widget: touchPeriodEntry},
		},
		OnSubmit: func() {
			old := *state.cfg
			if bpm, err := strconv.ParseFloat(bpmEntry.Text, 64); err == nil {
				state.cfg.Mock.BPM = bpm
			}
			if noise, err := strconv.ParseFloat(noiseEntry.Text, 64); err == nil {
				state.cfg.Mock.Noise = noise
			}
			if amp, err := strconv.ParseFloat(amplitudeEntry.Text, 64); err == nil {
				state.cfg.Mock.Amplitude = amp
			}
			parseDuration(touchPeriodEntry, &state.cfg.Mock.TouchPeriod)
			saveConfig(state, old)
		},
	}

	return container.NewTabItem("Mock", form)
}

package main

import (
	"flag"
	"fmt"
	"log"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/itohio/gohrm/pkg/config"
	"github.com/itohio/gohrm/pkg/history"
	"github.com/itohio/gohrm/pkg/logging"
	"github.com/itohio/gohrm/pkg/publish"
	"github.com/itohio/gohrm/pkg/scope"
	"go.uber.org/zap"
)

// recordWindow is how much history the dashboard keeps.
const recordWindow = 10 * time.Minute

func main() {
	var (
		portFlag   = flag.String("p", "", "Serial port override (e.g., COM3 or /dev/ttyACM0)")
		configFlag = flag.String("config", "config.yaml", "Configuration file path")
		modeFlag   = flag.String("mode", modeBLE, "Connection mode: ble, serial or mock")
	)
	flag.Parse()

	cfg, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *portFlag != "" {
		cfg.Serial.Port = *portFlag
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, "hrm")
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	application := app.NewWithID("com.itohio.gohrm")

	window := application.NewWindow("Heart Rate Monitor")
	window.Resize(fyne.NewSize(1000, 600))
	window.CenterOnScreen()

	state := &appState{
		cfg:        cfg,
		configPath: *configFlag,
		mode:       *modeFlag,
		window:     window,
		log:        logger,
	}
	state.trendWidget = scope.New(cfg)

	toolbar := createToolbar(state)
	state.status = newStatusView()

	window.SetContent(container.NewBorder(
		toolbar,
		state.status.content(),
		nil,
		nil,
		state.trendWidget,
	))
	window.SetOnClosed(func() {
		disconnect(state)
	})
	window.ShowAndRun()
}

// appState holds the application state.
type appState struct {
	cfg         *config.Config
	configPath  string
	mode        string
	window      fyne.Window
	log         *zap.Logger
	trendWidget *scope.TrendWidget
	recorder    *history.Recorder
	status      *statusView
	connectBtn  *widget.Button
	ledBtn      *widget.Button
	mockSlider  *widget.Slider
	session     *session // nil when disconnected

	// Throttling for trend updates
	lastUpdateTime time.Time
	updateMu       sync.Mutex
}

// newRecorder creates a recorder for the current configuration and wires
// it to the trend widget. A new one is made on every connect so settings
// changes take effect.
func newRecorder(state *appState) *history.Recorder {
	rec := history.NewRecorder(recordWindow, state.cfg.Actuator.Threshold, state.cfg.Actuator.Dwell)

	// ~60 FPS at most
	const updateInterval = 16 * time.Millisecond
	rec.OnUpdate(func(points []history.Point, episodes []history.Episode) {
		state.updateMu.Lock()
		now := time.Now()
		if now.Sub(state.lastUpdateTime) < updateInterval {
			state.updateMu.Unlock()
			return
		}
		state.lastUpdateTime = now
		state.updateMu.Unlock()

		fyne.Do(func() {
			state.trendWidget.UpdateData(points, episodes)
		})
	})
	return rec
}

// createToolbar creates the toolbar with Connect, Settings, the LED
// indicator and, in mock mode, the simulated heart rate slider.
func createToolbar(state *appState) fyne.CanvasObject {
	connectBtn := widget.NewButtonWithIcon("", theme.LoginIcon(), func() {
		handleConnect(state)
	})
	state.connectBtn = connectBtn

	settingsBtn := widget.NewButtonWithIcon("", theme.SettingsIcon(), func() {
		showSettingsDialog(state)
	})

	modeLabel := widget.NewLabel(fmt.Sprintf("Mode: %s", state.mode))

	// The LED mirrors the display node's indicator; it is not clickable.
	ledBtn := widget.NewButtonWithIcon("LED", theme.RadioButtonIcon(), nil)
	ledBtn.Disable()
	state.ledBtn = ledBtn

	right := container.NewHBox(ledBtn)
	if state.mode == modeMock {
		slider := widget.NewSlider(40, 180)
		slider.Step = 1
		slider.SetValue(state.cfg.Mock.BPM)
		sliderLabel := widget.NewLabel(fmt.Sprintf("%.0f BPM", state.cfg.Mock.BPM))
		slider.OnChanged = func(v float64) {
			sliderLabel.SetText(fmt.Sprintf("%.0f BPM", v))
			if state.session != nil && state.session.mock != nil {
				state.session.mock.SetBPM(v)
			}
		}
		state.mockSlider = slider
		right = container.NewHBox(container.NewGridWrap(fyne.NewSize(200, slider.MinSize().Height), slider), sliderLabel, ledBtn)
	}

	return container.NewBorder(
		nil,
		nil,
		container.NewHBox(connectBtn, settingsBtn, modeLabel),
		right,
		nil,
	)
}

// handleConnect handles the connect/disconnect button click.
func handleConnect(state *appState) {
	if state.session != nil {
		disconnect(state)
		state.connectBtn.SetIcon(theme.LoginIcon())
		state.log.Info("disconnected", zap.String("mode", state.mode))
		return
	}

	pub, err := publish.FromConfig(state.cfg.Publish, state.log.Named("publish"))
	if err != nil {
		// Mirrors are optional; the dashboard still runs without them.
		dialog.ShowError(fmt.Errorf("failed to start publishers: %w", err), state.window)
	}

	// The node keeps its own copy; the settings dialog edits state.cfg.
	cfg := *state.cfg
	state.recorder = newRecorder(state)
	state.trendWidget.Clear()

	s, err := openSession(&cfg, state.mode, state.recorder, pub, state.log, func(st status) {
		fyne.Do(func() {
			state.status.update(st)
			updateLED(state.ledBtn, st.LED)
		})
	})
	if err != nil {
		_ = pub.Close()
		dialog.ShowError(fmt.Errorf("failed to connect (%s): %w", state.mode, err), state.window)
		return
	}
	if s.mock != nil && state.mockSlider != nil {
		s.mock.SetBPM(state.mockSlider.Value)
	}
	state.session = s
	state.connectBtn.SetIcon(theme.LogoutIcon())
	state.log.Info("connecting", zap.String("mode", state.mode))
}

// disconnect closes the running session, if any.
func disconnect(state *appState) {
	if state.session == nil {
		return
	}
	state.session.close()
	if state.session.pub != nil {
		if err := state.session.pub.Close(); err != nil {
			state.log.Warn("closing publishers", zap.Error(err))
		}
	}
	state.session = nil
	state.status.reset()
	updateLED(state.ledBtn, false)
}

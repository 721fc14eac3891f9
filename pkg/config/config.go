package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
	"tinygo.org/x/bluetooth"
)

// Well-known service/characteristic pairs. Client and server must agree.
const (
	// BasicServiceUUID carries the "<bpm>,<touch>,<motor>" payload.
	BasicServiceUUID        = "5e581872-a389-465c-98cd-dbc5dc8e04c1"
	BasicCharacteristicUUID = "144f76b9-5840-4455-b89f-c7589a1e6756"

	// HydrationServiceUUID carries the "HR:<bpm>,HYD:<0|1>" payload.
	HydrationServiceUUID        = "153d58a2-6e5d-46b3-8df2-7288b3ef3c4e"
	HydrationCharacteristicUUID = "537a9060-3f8a-4cd9-86ce-a9cd306bc3cb"
)

// Payload formats.
const (
	FormatBare   = "bare"
	FormatCSV    = "csv"
	FormatTagged = "tagged"
)

// Actuator trigger sources.
const (
	TriggerHeartRate = "heart_rate"
	TriggerTouch     = "touch"
)

// Motor modes.
const (
	ModeIncremental = "incremental"
	ModeBlocking    = "blocking"
)

// Sensor-missing policies.
const (
	OnMissingDegraded = "degraded"
	OnMissingHalt     = "halt"
)

// Config represents the application configuration.
type Config struct {
	HeartRate HeartRateConfig `yaml:"heart_rate"`
	Sensor    SensorConfig    `yaml:"sensor"`
	Link      LinkConfig      `yaml:"link"`
	Actuator  ActuatorConfig  `yaml:"actuator"`
	Display   DisplayConfig   `yaml:"display"`
	Serial    SerialConfig    `yaml:"serial"`
	Publish   PublishConfig   `yaml:"publish"`
	Log       LogConfig       `yaml:"log"`
	Mock      MockConfig      `yaml:"mock"`
}

// HeartRateConfig contains beat detection and averaging parameters.
type HeartRateConfig struct {
	PresenceThreshold uint32        `yaml:"presence_threshold"` // IR level below which no finger is assumed
	RateSize          int           `yaml:"rate_size"`          // Circular buffer capacity
	IncludeEmptySlots bool          `yaml:"include_empty_slots"`
	MinBPM            int           `yaml:"min_bpm"`
	MaxBPM            int           `yaml:"max_bpm"`
	SummaryWindow     time.Duration `yaml:"summary_window"`
}

// SensorConfig contains sensor start-up and sampling parameters.
type SensorConfig struct {
	InitAttempts    int           `yaml:"init_attempts"`
	InitDelay       time.Duration `yaml:"init_delay"`
	OnMissing       string        `yaml:"on_missing"`
	TouchDebounce   time.Duration `yaml:"touch_debounce"`
	I2CAddress      uint16        `yaml:"i2c_address"`
	MaxReadFailures int           `yaml:"max_read_failures"` // consecutive read errors that clear the heart rate
}

// LinkConfig contains wireless link parameters.
type LinkConfig struct {
	ServiceUUID        string        `yaml:"service_uuid"`
	CharacteristicUUID string        `yaml:"characteristic_uuid"`
	LocalName          string        `yaml:"local_name"`
	Format             string        `yaml:"format"`
	NotifyInterval     time.Duration `yaml:"notify_interval"`
	HeartbeatInterval  time.Duration `yaml:"heartbeat_interval"`
	RetryInterval      time.Duration `yaml:"retry_interval"`
	FailureBackoff     time.Duration `yaml:"failure_backoff"`
	ScanTimeout        time.Duration `yaml:"scan_timeout"`
	ReadvertiseDelay   time.Duration `yaml:"readvertise_delay"`
}

// ActuatorConfig contains threshold and output parameters.
type ActuatorConfig struct {
	Trigger           string        `yaml:"trigger"`
	Threshold         int           `yaml:"threshold"`
	Dwell             time.Duration `yaml:"dwell"` // Minimum time between motor moves
	Mode              string        `yaml:"mode"`
	TotalSteps        int           `yaml:"total_steps"`
	StepInterval      time.Duration `yaml:"step_interval"`
	BlockingSteps     int           `yaml:"blocking_steps"`
	BlockingStepDelay time.Duration `yaml:"blocking_step_delay"`
	BlinkInterval     time.Duration `yaml:"blink_interval"`
	BlinkToggles      int           `yaml:"blink_toggles"`
}

// DisplayConfig contains trend display parameters.
type DisplayConfig struct {
	HistorySize     int           `yaml:"history_size"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	MinuteInterval  time.Duration `yaml:"minute_interval"`
	GraphMinBPM     int           `yaml:"graph_min_bpm"`
	GraphMaxBPM     int           `yaml:"graph_max_bpm"`
}

// SerialConfig contains serial port configuration.
type SerialConfig struct {
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baud_rate"`
}

// PublishConfig contains optional reading mirrors.
type PublishConfig struct {
	NATS NATSConfig `yaml:"nats"`
	MQTT MQTTConfig `yaml:"mqtt"`
}

// NATSConfig contains NATS publisher configuration. Empty URL disables it.
type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// MQTTConfig contains MQTT publisher configuration. Empty broker disables it.
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Topic    string `yaml:"topic"`
	QoS      byte   `yaml:"qos"`
}

// LogConfig contains logger configuration.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console or json
}

// MockConfig contains simulated sensing node configuration.
type MockConfig struct {
	BPM         float64       `yaml:"bpm"`
	Noise       float64       `yaml:"noise"`       // Noise amplitude (sensor units)
	SampleRate  time.Duration `yaml:"sample_rate"` // Sample period
	DCLevel     float64       `yaml:"dc_level"`    // IR level with finger present
	Amplitude   float64       `yaml:"amplitude"`   // Pulse amplitude (sensor units)
	TouchPeriod time.Duration `yaml:"touch_period"`
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	return &Config{
		HeartRate: HeartRateConfig{
			PresenceThreshold: 50000,
			RateSize:          4,
			IncludeEmptySlots: false,
			MinBPM:            20,
			MaxBPM:            255,
			SummaryWindow:     5 * time.Second,
		},
		Sensor: SensorConfig{
			InitAttempts:    5,
			InitDelay:       time.Second,
			OnMissing:       OnMissingDegraded,
			TouchDebounce:   50 * time.Millisecond,
			I2CAddress:      0x57,
			MaxReadFailures: 3,
		},
		Link: LinkConfig{
			ServiceUUID:        HydrationServiceUUID,
			CharacteristicUUID: HydrationCharacteristicUUID,
			LocalName:          "HR_Monitor",
			Format:             FormatTagged,
			NotifyInterval:     100 * time.Millisecond,
			HeartbeatInterval:  2 * time.Second,
			RetryInterval:      5 * time.Second,
			FailureBackoff:     time.Second,
			ScanTimeout:        5 * time.Second,
			ReadvertiseDelay:   500 * time.Millisecond,
		},
		Actuator: ActuatorConfig{
			Trigger:           TriggerHeartRate,
			Threshold:         70,
			Dwell:             time.Second,
			Mode:              ModeIncremental,
			TotalSteps:        160,
			StepInterval:      5 * time.Millisecond,
			BlockingSteps:     200,
			BlockingStepDelay: 10 * time.Millisecond,
			BlinkInterval:     250 * time.Millisecond,
			BlinkToggles:      4, // two visible blinks
		},
		Display: DisplayConfig{
			HistorySize:     60,
			RefreshInterval: time.Second,
			MinuteInterval:  time.Minute,
			GraphMinBPM:     40,
			GraphMaxBPM:     180,
		},
		Serial: SerialConfig{
			Port:     "/dev/ttyACM0", // "COM3" on Windows
			BaudRate: 115200,
		},
		Publish: PublishConfig{
			NATS: NATSConfig{Subject: "hrm.readings"},
			MQTT: MQTTConfig{ClientID: "gohrm", Topic: "hrm/readings"},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Mock: MockConfig{
			BPM:         72,
			Noise:       50,
			SampleRate:  10 * time.Millisecond,
			DCLevel:     100000,
			Amplitude:   400,
			TouchPeriod: 10 * time.Second,
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ensureDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks identifiers and enumerations.
func (c *Config) Validate() error {
	if _, err := bluetooth.ParseUUID(c.Link.ServiceUUID); err != nil {
		return fmt.Errorf("invalid service uuid %q: %w", c.Link.ServiceUUID, err)
	}
	if _, err := bluetooth.ParseUUID(c.Link.CharacteristicUUID); err != nil {
		return fmt.Errorf("invalid characteristic uuid %q: %w", c.Link.CharacteristicUUID, err)
	}

	switch c.Link.Format {
	case FormatBare, FormatCSV, FormatTagged:
	default:
		return fmt.Errorf("invalid payload format %q", c.Link.Format)
	}

	switch c.Actuator.Trigger {
	case TriggerHeartRate, TriggerTouch:
	default:
		return fmt.Errorf("invalid actuator trigger %q", c.Actuator.Trigger)
	}

	switch c.Actuator.Mode {
	case ModeIncremental, ModeBlocking:
	default:
		return fmt.Errorf("invalid motor mode %q", c.Actuator.Mode)
	}

	switch c.Sensor.OnMissing {
	case OnMissingDegraded, OnMissingHalt:
	default:
		return fmt.Errorf("invalid sensor policy %q", c.Sensor.OnMissing)
	}

	if c.HeartRate.MinBPM >= c.HeartRate.MaxBPM {
		return fmt.Errorf("invalid bpm band [%d, %d]", c.HeartRate.MinBPM, c.HeartRate.MaxBPM)
	}

	return nil
}

// ensureDefaults ensures that all required fields have default values if missing.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.HeartRate.PresenceThreshold == 0 {
		c.HeartRate.PresenceThreshold = def.HeartRate.PresenceThreshold
	}
	if c.HeartRate.RateSize <= 0 {
		c.HeartRate.RateSize = def.HeartRate.RateSize
	}
	if c.HeartRate.MinBPM == 0 {
		c.HeartRate.MinBPM = def.HeartRate.MinBPM
	}
	if c.HeartRate.MaxBPM == 0 {
		c.HeartRate.MaxBPM = def.HeartRate.MaxBPM
	}
	if c.HeartRate.SummaryWindow == 0 {
		c.HeartRate.SummaryWindow = def.HeartRate.SummaryWindow
	}

	if c.Sensor.InitAttempts <= 0 {
		c.Sensor.InitAttempts = def.Sensor.InitAttempts
	}
	if c.Sensor.InitDelay == 0 {
		c.Sensor.InitDelay = def.Sensor.InitDelay
	}
	if c.Sensor.OnMissing == "" {
		c.Sensor.OnMissing = def.Sensor.OnMissing
	}
	if c.Sensor.TouchDebounce == 0 {
		c.Sensor.TouchDebounce = def.Sensor.TouchDebounce
	}
	if c.Sensor.I2CAddress == 0 {
		c.Sensor.I2CAddress = def.Sensor.I2CAddress
	}
	if c.Sensor.MaxReadFailures <= 0 {
		c.Sensor.MaxReadFailures = def.Sensor.MaxReadFailures
	}

	if c.Link.ServiceUUID == "" {
		c.Link.ServiceUUID = def.Link.ServiceUUID
	}
	if c.Link.CharacteristicUUID == "" {
		c.Link.CharacteristicUUID = def.Link.CharacteristicUUID
	}
	if c.Link.LocalName == "" {
		c.Link.LocalName = def.Link.LocalName
	}
	if c.Link.Format == "" {
		c.Link.Format = def.Link.Format
	}
	if c.Link.NotifyInterval == 0 {
		c.Link.NotifyInterval = def.Link.NotifyInterval
	}
	if c.Link.HeartbeatInterval == 0 {
		c.Link.HeartbeatInterval = def.Link.HeartbeatInterval
	}
	if c.Link.RetryInterval == 0 {
		c.Link.RetryInterval = def.Link.RetryInterval
	}
	if c.Link.FailureBackoff == 0 {
		c.Link.FailureBackoff = def.Link.FailureBackoff
	}
	if c.Link.ScanTimeout == 0 {
		c.Link.ScanTimeout = def.Link.ScanTimeout
	}
	if c.Link.ReadvertiseDelay == 0 {
		c.Link.ReadvertiseDelay = def.Link.ReadvertiseDelay
	}

	if c.Actuator.Trigger == "" {
		c.Actuator.Trigger = def.Actuator.Trigger
	}
	if c.Actuator.Threshold == 0 {
		c.Actuator.Threshold = def.Actuator.Threshold
	}
	if c.Actuator.Dwell == 0 {
		c.Actuator.Dwell = def.Actuator.Dwell
	}
	if c.Actuator.Mode == "" {
		c.Actuator.Mode = def.Actuator.Mode
	}
	if c.Actuator.TotalSteps == 0 {
		c.Actuator.TotalSteps = def.Actuator.TotalSteps
	}
	if c.Actuator.StepInterval == 0 {
		c.Actuator.StepInterval = def.Actuator.StepInterval
	}
	if c.Actuator.BlockingSteps == 0 {
		c.Actuator.BlockingSteps = def.Actuator.BlockingSteps
	}
	if c.Actuator.BlockingStepDelay == 0 {
		c.Actuator.BlockingStepDelay = def.Actuator.BlockingStepDelay
	}
	if c.Actuator.BlinkInterval == 0 {
		c.Actuator.BlinkInterval = def.Actuator.BlinkInterval
	}
	if c.Actuator.BlinkToggles == 0 {
		c.Actuator.BlinkToggles = def.Actuator.BlinkToggles
	}

	if c.Display.HistorySize <= 0 {
		c.Display.HistorySize = def.Display.HistorySize
	}
	if c.Display.RefreshInterval == 0 {
		c.Display.RefreshInterval = def.Display.RefreshInterval
	}
	if c.Display.MinuteInterval == 0 {
		c.Display.MinuteInterval = def.Display.MinuteInterval
	}
	if c.Display.GraphMinBPM == 0 {
		c.Display.GraphMinBPM = def.Display.GraphMinBPM
	}
	if c.Display.GraphMaxBPM == 0 {
		c.Display.GraphMaxBPM = def.Display.GraphMaxBPM
	}

	if c.Serial.Port == "" {
		c.Serial.Port = def.Serial.Port
	}
	if c.Serial.BaudRate == 0 {
		c.Serial.BaudRate = def.Serial.BaudRate
	}

	if c.Publish.NATS.Subject == "" {
		c.Publish.NATS.Subject = def.Publish.NATS.Subject
	}
	if c.Publish.MQTT.ClientID == "" {
		c.Publish.MQTT.ClientID = def.Publish.MQTT.ClientID
	}
	if c.Publish.MQTT.Topic == "" {
		c.Publish.MQTT.Topic = def.Publish.MQTT.Topic
	}

	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = def.Log.Format
	}

	if c.Mock.BPM == 0 {
		c.Mock.BPM = def.Mock.BPM
	}
	if c.Mock.SampleRate == 0 {
		c.Mock.SampleRate = def.Mock.SampleRate
	}
	if c.Mock.DCLevel == 0 {
		c.Mock.DCLevel = def.Mock.DCLevel
	}
	if c.Mock.Amplitude == 0 {
		c.Mock.Amplitude = def.Mock.Amplitude
	}
	if c.Mock.TouchPeriod == 0 {
		c.Mock.TouchPeriod = def.Mock.TouchPeriod
	}
}

package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.NotNil(t, cfg)
	assert.Equal(t, uint32(50000), cfg.HeartRate.PresenceThreshold)
	assert.Equal(t, 4, cfg.HeartRate.RateSize)
	assert.False(t, cfg.HeartRate.IncludeEmptySlots)
	assert.Equal(t, 20, cfg.HeartRate.MinBPM)
	assert.Equal(t, 255, cfg.HeartRate.MaxBPM)
	assert.Equal(t, HydrationServiceUUID, cfg.Link.ServiceUUID)
	assert.Equal(t, HydrationCharacteristicUUID, cfg.Link.CharacteristicUUID)
	assert.Equal(t, FormatTagged, cfg.Link.Format)
	assert.Equal(t, 5*time.Second, cfg.Link.RetryInterval)
	assert.Equal(t, 70, cfg.Actuator.Threshold)
	assert.Equal(t, time.Second, cfg.Actuator.Dwell)
	assert.Equal(t, ModeIncremental, cfg.Actuator.Mode)
	assert.Equal(t, 4, cfg.Actuator.BlinkToggles)
	assert.Equal(t, 115200, cfg.Serial.BaudRate)
	assert.Equal(t, OnMissingDegraded, cfg.Sensor.OnMissing)
	assert.Equal(t, 3, cfg.Sensor.MaxReadFailures)
	require.NoError(t, cfg.Validate())
}

func TestLoad_FileNotExists(t *testing.T) {
	cfg, err := Load("nonexistent.yaml")
	require.NoError(t, err)
	assert.NotNil(t, cfg)
	assert.Equal(t, "/dev/ttyACM0", cfg.Serial.Port)
}

func TestLoad_ValidYAML(t *testing.T) {
	tmpfile, err := os.CreateTemp("", "test_config_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	yamlContent := `
heart_rate:
  presence_threshold: 40000
  rate_size: 8
  include_empty_slots: true
  min_bpm: 30
  max_bpm: 220

link:
  service_uuid: "5e581872-a389-465c-98cd-dbc5dc8e04c1"
  characteristic_uuid: "144f76b9-5840-4455-b89f-c7589a1e6756"
  format: csv
  retry_interval: 3s

actuator:
  trigger: touch
  threshold: 60
  dwell: 5s
  mode: blocking

serial:
  port: "COM4"

sensor:
  i2c_address: 0x57
  on_missing: halt
`

	_, err = tmpfile.WriteString(yamlContent)
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())

	cfg, err := Load(tmpfile.Name())
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	assert.Equal(t, uint32(40000), cfg.HeartRate.PresenceThreshold)
	assert.Equal(t, 8, cfg.HeartRate.RateSize)
	assert.True(t, cfg.HeartRate.IncludeEmptySlots)
	assert.Equal(t, 30, cfg.HeartRate.MinBPM)
	assert.Equal(t, 220, cfg.HeartRate.MaxBPM)
	assert.Equal(t, BasicServiceUUID, cfg.Link.ServiceUUID)
	assert.Equal(t, FormatCSV, cfg.Link.Format)
	assert.Equal(t, 3*time.Second, cfg.Link.RetryInterval)
	assert.Equal(t, TriggerTouch, cfg.Actuator.Trigger)
	assert.Equal(t, 60, cfg.Actuator.Threshold)
	assert.Equal(t, 5*time.Second, cfg.Actuator.Dwell)
	assert.Equal(t, ModeBlocking, cfg.Actuator.Mode)
	assert.Equal(t, "COM4", cfg.Serial.Port)
	assert.Equal(t, uint16(0x57), cfg.Sensor.I2CAddress)
	assert.Equal(t, OnMissingHalt, cfg.Sensor.OnMissing)
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpfile, err := os.CreateTemp("", "test_config_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	_, err = tmpfile.WriteString("invalid: yaml: content: [")
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())

	cfg, err := Load(tmpfile.Name())
	assert.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoad_PartialYAML(t *testing.T) {
	tmpfile, err := os.CreateTemp("", "test_config_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	yamlContent := `
serial:
  port: "/dev/ttyUSB1"
`

	_, err = tmpfile.WriteString(yamlContent)
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())

	cfg, err := Load(tmpfile.Name())
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyUSB1", cfg.Serial.Port)
	assert.Equal(t, 115200, cfg.Serial.BaudRate)      // default
	assert.Equal(t, 4, cfg.HeartRate.RateSize)        // default
	assert.Equal(t, 70, cfg.Actuator.Threshold)       // default
	assert.Equal(t, FormatTagged, cfg.Link.Format)    // default
	assert.Equal(t, 60, cfg.Display.HistorySize)      // default
	assert.Equal(t, "hrm.readings", cfg.Publish.NATS.Subject)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "bad service uuid", content: "link:\n  service_uuid: \"not-a-uuid\"\n"},
		{name: "bad format", content: "link:\n  format: json\n"},
		{name: "bad trigger", content: "actuator:\n  trigger: sound\n"},
		{name: "bad mode", content: "actuator:\n  mode: servo\n"},
		{name: "bad policy", content: "sensor:\n  on_missing: ignore\n"},
		{name: "inverted band", content: "heart_rate:\n  min_bpm: 200\n  max_bpm: 100\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpfile, err := os.CreateTemp("", "test_config_*.yaml")
			require.NoError(t, err)
			defer os.Remove(tmpfile.Name())

			_, err = tmpfile.WriteString(tt.content)
			require.NoError(t, err)
			require.NoError(t, tmpfile.Close())

			cfg, err := Load(tmpfile.Name())
			assert.Error(t, err)
			assert.Nil(t, cfg)
		})
	}
}

func TestSave(t *testing.T) {
	cfg := Default()
	cfg.Serial.Port = "/dev/ttyUSB0"
	cfg.Actuator.Threshold = 65
	cfg.Link.Format = FormatBare

	tmpfile, err := os.CreateTemp("", "test_save_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	err = cfg.Save(tmpfile.Name())
	require.NoError(t, err)

	loaded, err := Load(tmpfile.Name())
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB0", loaded.Serial.Port)
	assert.Equal(t, 65, loaded.Actuator.Threshold)
	assert.Equal(t, FormatBare, loaded.Link.Format)
	assert.Equal(t, cfg.Link.RetryInterval, loaded.Link.RetryInterval)
}

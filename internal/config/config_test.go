package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// Service defaults
	if cfg.Service.Principal != "svc-eeg-action" {
		t.Errorf("expected default principal 'svc-eeg-action', got %s", cfg.Service.Principal)
	}
	if cfg.Service.GRPCPort != "50051" {
		t.Errorf("expected default port '50051', got %s", cfg.Service.GRPCPort)
	}

	// Calibration defaults
	if cfg.Calibration.PrepareDelay != 3*time.Second {
		t.Errorf("expected default prepare delay 3s, got %v", cfg.Calibration.PrepareDelay)
	}
	if cfg.Calibration.ActionWindow != 5*time.Second {
		t.Errorf("expected default action window 5s, got %v", cfg.Calibration.ActionWindow)
	}
	if cfg.Conditioner.Threshold != 10 {
		t.Errorf("expected default threshold 10, got %v", cfg.Conditioner.Threshold)
	}

	if cfg.Signal.Source != "simulated" {
		t.Errorf("expected default source 'simulated', got %s", cfg.Signal.Source)
	}
	if cfg.Model.Provider != "mock" {
		t.Errorf("expected default model provider 'mock', got %s", cfg.Model.Provider)
	}
	if cfg.Kafka.Enabled {
		t.Error("expected Kafka disabled by default")
	}
	if cfg.Store.Driver != "sqlite" {
		t.Errorf("expected default store driver 'sqlite', got %s", cfg.Store.Driver)
	}

	// Observability defaults
	if cfg.Observability.LogLevel != "info" {
		t.Errorf("expected default log level 'info', got %s", cfg.Observability.LogLevel)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	t.Setenv("SERVICE_PRINCIPAL", "custom-principal")
	t.Setenv("GRPC_PORT", "9999")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("SIGNAL_SOURCE", "serial")
	t.Setenv("SERIAL_BAUD_RATE", "57600")
	t.Setenv("MODEL_PROVIDER", "artifact")
	t.Setenv("MODEL_ARTIFACT_PATH", "/models/eeg.json")
	t.Setenv("CALIBRATION_PREPARE_DELAY", "1s")
	t.Setenv("CALIBRATION_ACTION_WINDOW", "2500ms")
	t.Setenv("CONDITIONER_THRESHOLD", "12.5")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("MQTT_QOS", "0")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Service.Principal != "custom-principal" {
		t.Errorf("expected principal 'custom-principal', got %s", cfg.Service.Principal)
	}
	if cfg.Service.GRPCPort != "9999" {
		t.Errorf("expected port '9999', got %s", cfg.Service.GRPCPort)
	}
	if cfg.Observability.LogLevel != "debug" {
		t.Errorf("expected log level 'debug', got %s", cfg.Observability.LogLevel)
	}
	if cfg.Signal.Source != "serial" || cfg.Signal.BaudRate != 57600 {
		t.Errorf("unexpected signal config: %+v", cfg.Signal)
	}
	if cfg.Model.Provider != "artifact" || cfg.Model.ArtifactPath != "/models/eeg.json" {
		t.Errorf("unexpected model config: %+v", cfg.Model)
	}
	if cfg.Calibration.PrepareDelay != time.Second {
		t.Errorf("expected prepare delay 1s, got %v", cfg.Calibration.PrepareDelay)
	}
	if cfg.Calibration.ActionWindow != 2500*time.Millisecond {
		t.Errorf("expected action window 2.5s, got %v", cfg.Calibration.ActionWindow)
	}
	if cfg.Conditioner.Threshold != 12.5 {
		t.Errorf("expected threshold 12.5, got %v", cfg.Conditioner.Threshold)
	}
	if !cfg.Kafka.Enabled {
		t.Error("expected Kafka enabled")
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "k2:9092" {
		t.Errorf("unexpected brokers: %v", cfg.Kafka.Brokers)
	}
	if cfg.MQTT.QoS != 0 {
		t.Errorf("expected QoS 0, got %d", cfg.MQTT.QoS)
	}
}

func TestLoad_InvalidValues_FallbackToDefaults(t *testing.T) {
	t.Setenv("SERIAL_BAUD_RATE", "fast")
	t.Setenv("CALIBRATION_PREPARE_DELAY", "soon")
	t.Setenv("CONDITIONER_THRESHOLD", "high")
	t.Setenv("KAFKA_ENABLED", "maybe")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Signal.BaudRate != 115200 {
		t.Errorf("expected default baud rate on invalid input, got %d", cfg.Signal.BaudRate)
	}
	if cfg.Calibration.PrepareDelay != 3*time.Second {
		t.Errorf("expected default prepare delay on invalid input, got %v", cfg.Calibration.PrepareDelay)
	}
	if cfg.Conditioner.Threshold != 10 {
		t.Errorf("expected default threshold on invalid input, got %v", cfg.Conditioner.Threshold)
	}
	if cfg.Kafka.Enabled {
		t.Error("expected default Kafka enabled on invalid input")
	}
}

func TestLoad_FileOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eeg.toml")
	content := `
[calibration]
prepare_delay = "4s"
action_window = "6s"

[conditioner]
threshold = 8.0

[kafka]
enabled = true
brokers = ["file-broker:9092"]

[store]
driver = "mysql"
dsn = "user:pass@tcp(db:3306)/eeg"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("CALIBRATION_ACTION_WINDOW", "7s") // env wins over file

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Calibration.PrepareDelay != 4*time.Second {
		t.Errorf("expected prepare delay from file, got %v", cfg.Calibration.PrepareDelay)
	}
	if cfg.Calibration.ActionWindow != 7*time.Second {
		t.Errorf("expected action window from env, got %v", cfg.Calibration.ActionWindow)
	}
	if cfg.Conditioner.Threshold != 8 {
		t.Errorf("expected threshold from file, got %v", cfg.Conditioner.Threshold)
	}
	if !cfg.Kafka.Enabled || cfg.Kafka.Brokers[0] != "file-broker:9092" {
		t.Errorf("unexpected kafka config: %+v", cfg.Kafka)
	}
	if cfg.Store.Driver != "mysql" {
		t.Errorf("expected store driver from file, got %s", cfg.Store.Driver)
	}
	// Untouched sections keep defaults
	if cfg.Service.GRPCPort != "50051" {
		t.Errorf("expected default port, got %s", cfg.Service.GRPCPort)
	}
}

func TestLoad_FileMissingIsIgnored(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "absent.toml"))
	if _, err := Load(); err != nil {
		t.Errorf("expected missing file to be ignored, got %v", err)
	}
}

func TestLoad_FileInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	os.WriteFile(path, []byte("[calibration\nprepare_delay ="), 0o644)
	t.Setenv("CONFIG_FILE", path)

	if _, err := Load(); err == nil {
		t.Error("expected decode error")
	}
}

func TestLoad_KafkaPrincipal_FallsBackToServicePrincipal(t *testing.T) {
	t.Setenv("SERVICE_PRINCIPAL", "my-service")
	t.Setenv("KAFKA_PRINCIPAL", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Kafka.Principal != "my-service" {
		t.Errorf("expected Kafka principal to fall back to service principal, got %s", cfg.Kafka.Principal)
	}
}

func TestEnvOrDefaultBool(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		def      bool
		expected bool
	}{
		{"true string", "true", false, true},
		{"false string", "false", true, false},
		{"1", "1", false, true},
		{"0", "0", true, false},
		{"TRUE uppercase", "TRUE", false, true},
		{"invalid", "invalid", true, true},
		{"empty", "", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := "TEST_BOOL_VAR"
			t.Setenv(key, tt.envValue)

			got := envOrDefaultBool(key, tt.def)
			if got != tt.expected {
				t.Errorf("envOrDefaultBool(%s, %v) = %v, want %v", tt.envValue, tt.def, got, tt.expected)
			}
		})
	}
}

func TestEnvOrDefaultList(t *testing.T) {
	def := []string{"default:9092"}
	tests := []struct {
		name     string
		envValue string
		expected []string
	}{
		{"unset", "", def},
		{"single", "a:1", []string{"a:1"}},
		{"spaces and blanks", " a:1 , ,b:2 ", []string{"a:1", "b:2"}},
		{"only separators", ",,", def},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_LIST_VAR", tt.envValue)
			got := envOrDefaultList("TEST_LIST_VAR", def)
			if len(got) != len(tt.expected) {
				t.Fatalf("expected %v, got %v", tt.expected, got)
			}
			for i := range got {
				if got[i] != tt.expected[i] {
					t.Errorf("expected %v, got %v", tt.expected, got)
				}
			}
		})
	}
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Configuration holds all service settings. Values come from defaults, then
// the optional TOML file named by CONFIG_FILE, then environment variables.
type Configuration struct {
	Service       ServiceConfig       `toml:"service"`
	Observability ObservabilityConfig `toml:"observability"`
	Signal        SignalConfig        `toml:"signal"`
	Model         ModelConfig         `toml:"model"`
	Calibration   CalibrationConfig   `toml:"calibration"`
	Conditioner   ConditionerConfig   `toml:"conditioner"`
	Kafka         KafkaConfig         `toml:"kafka"`
	MQTT          MQTTConfig          `toml:"mqtt"`
	Store         StoreConfig         `toml:"store"`
	Clock         ClockConfig         `toml:"clock"`
	Assets        AssetsConfig        `toml:"assets"`
}

type ServiceConfig struct {
	Principal   string `toml:"principal"`
	GRPCPort    string `toml:"grpc_port"`
	HTTPPort    string `toml:"http_port"`
	Environment string `toml:"environment"`
}

type ObservabilityConfig struct {
	LogLevel    string `toml:"log_level"`
	LogFormat   string `toml:"log_format"`
	MetricsPort string `toml:"metrics_port"`
}

// SignalConfig selects the electrode source.
type SignalConfig struct {
	Source     string        `toml:"source"` // simulated or serial
	SerialPort string        `toml:"serial_port"`
	BaudRate   uint          `toml:"baud_rate"`
	Latency    time.Duration `toml:"latency"` // simulated acquisition time
	Seed       uint64        `toml:"seed"`    // simulated seed, 0 for time-based
}

// ModelConfig selects the classifier.
type ModelConfig struct {
	Provider     string `toml:"provider"` // mock or artifact
	ArtifactPath string `toml:"artifact_path"`
}

type CalibrationConfig struct {
	PrepareDelay time.Duration `toml:"prepare_delay"`
	ActionWindow time.Duration `toml:"action_window"`
	ReadTimeout  time.Duration `toml:"read_timeout"`
	SinkTimeout  time.Duration `toml:"sink_timeout"`
}

type ConditionerConfig struct {
	Threshold float64 `toml:"threshold"`
}

type KafkaConfig struct {
	Enabled         bool     `toml:"enabled"`
	Brokers         []string `toml:"brokers"`
	TopicSession    string   `toml:"topic_session"`
	TopicPrediction string   `toml:"topic_prediction"`
	TopicAction     string   `toml:"topic_action"`
	Principal       string   `toml:"principal"`
	// ActionSink also delivers predicted actions to TopicAction.
	ActionSink bool `toml:"action_sink"`
}

type MQTTConfig struct {
	Enabled  bool          `toml:"enabled"`
	Broker   string        `toml:"broker"`
	ClientID string        `toml:"client_id"`
	Topic    string        `toml:"topic"`
	QoS      int           `toml:"qos"`
	Timeout  time.Duration `toml:"timeout"`
}

type StoreConfig struct {
	Enabled bool   `toml:"enabled"`
	Driver  string `toml:"driver"` // sqlite or mysql
	DSN     string `toml:"dsn"`
}

// ClockConfig enables NTP-corrected timestamps when Server is set.
type ClockConfig struct {
	NTPServer string        `toml:"ntp_server"`
	Timeout   time.Duration `toml:"timeout"`
}

type AssetsConfig struct {
	CueDir string `toml:"cue_dir"`
}

// Defaults returns the built-in configuration.
func Defaults() *Configuration {
	return &Configuration{
		Service: ServiceConfig{
			Principal: "svc-eeg-action",
			GRPCPort:  "50051",
			HTTPPort:  "8080",
		},
		Observability: ObservabilityConfig{
			LogLevel:    "info",
			LogFormat:   "json",
			MetricsPort: "9090",
		},
		Signal: SignalConfig{
			Source:     "simulated",
			SerialPort: "/dev/ttyUSB0",
			BaudRate:   115200,
		},
		Model: ModelConfig{
			Provider:     "mock",
			ArtifactPath: "models/eeg_classifier.json",
		},
		Calibration: CalibrationConfig{
			PrepareDelay: 3 * time.Second,
			ActionWindow: 5 * time.Second,
			ReadTimeout:  2 * time.Second,
			SinkTimeout:  2 * time.Second,
		},
		Conditioner: ConditionerConfig{Threshold: 10},
		Kafka: KafkaConfig{
			Brokers:         []string{"localhost:9092"},
			TopicSession:    "eeg.calibration.session",
			TopicPrediction: "eeg.calibration.prediction",
			TopicAction:     "eeg.action.dispatched",
		},
		MQTT: MQTTConfig{
			Broker:   "tcp://localhost:1883",
			ClientID: "eeg-action-service",
			Topic:    "eeg/action",
			QoS:      1,
			Timeout:  5 * time.Second,
		},
		Store: StoreConfig{
			Enabled: true,
			Driver:  "sqlite",
			DSN:     "data/eeg.db",
		},
		Clock:  ClockConfig{Timeout: 2 * time.Second},
		Assets: AssetsConfig{CueDir: "assets/cues"},
	}
}

// Load builds the configuration. Invalid environment values fall back to
// the file or default value; an unreadable config file is an error.
func Load() (*Configuration, error) {
	cfg := Defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}
	applyEnv(cfg)

	if cfg.Kafka.Principal == "" {
		cfg.Kafka.Principal = cfg.Service.Principal
	}
	return cfg, nil
}

// loadFile decodes a TOML file over cfg. A missing file is not an error.
func loadFile(path string, cfg *Configuration) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to stat config: %w", err)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode config: %w", err)
	}
	return nil
}

func applyEnv(cfg *Configuration) {
	cfg.Service.Principal = envOrDefault("SERVICE_PRINCIPAL", cfg.Service.Principal)
	cfg.Service.GRPCPort = envOrDefault("GRPC_PORT", cfg.Service.GRPCPort)
	cfg.Service.HTTPPort = envOrDefault("HTTP_PORT", cfg.Service.HTTPPort)
	cfg.Service.Environment = envOrDefault("ENV", cfg.Service.Environment)

	cfg.Observability.LogLevel = envOrDefault("LOG_LEVEL", cfg.Observability.LogLevel)
	cfg.Observability.LogFormat = envOrDefault("LOG_FORMAT", cfg.Observability.LogFormat)
	cfg.Observability.MetricsPort = envOrDefault("METRICS_PORT", cfg.Observability.MetricsPort)

	cfg.Signal.Source = envOrDefault("SIGNAL_SOURCE", cfg.Signal.Source)
	cfg.Signal.SerialPort = envOrDefault("SERIAL_PORT", cfg.Signal.SerialPort)
	cfg.Signal.BaudRate = uint(envOrDefaultInt("SERIAL_BAUD_RATE", int(cfg.Signal.BaudRate)))
	cfg.Signal.Latency = envOrDefaultDuration("SIGNAL_LATENCY", cfg.Signal.Latency)
	cfg.Signal.Seed = uint64(envOrDefaultInt("SIGNAL_SEED", int(cfg.Signal.Seed)))

	cfg.Model.Provider = envOrDefault("MODEL_PROVIDER", cfg.Model.Provider)
	cfg.Model.ArtifactPath = envOrDefault("MODEL_ARTIFACT_PATH", cfg.Model.ArtifactPath)

	cfg.Calibration.PrepareDelay = envOrDefaultDuration("CALIBRATION_PREPARE_DELAY", cfg.Calibration.PrepareDelay)
	cfg.Calibration.ActionWindow = envOrDefaultDuration("CALIBRATION_ACTION_WINDOW", cfg.Calibration.ActionWindow)
	cfg.Calibration.ReadTimeout = envOrDefaultDuration("DEVICE_READ_TIMEOUT", cfg.Calibration.ReadTimeout)
	cfg.Calibration.SinkTimeout = envOrDefaultDuration("SINK_TIMEOUT", cfg.Calibration.SinkTimeout)

	cfg.Conditioner.Threshold = envOrDefaultFloat("CONDITIONER_THRESHOLD", cfg.Conditioner.Threshold)

	cfg.Kafka.Enabled = envOrDefaultBool("KAFKA_ENABLED", cfg.Kafka.Enabled)
	cfg.Kafka.Brokers = envOrDefaultList("KAFKA_BROKERS", cfg.Kafka.Brokers)
	cfg.Kafka.TopicSession = envOrDefault("KAFKA_TOPIC_SESSION", cfg.Kafka.TopicSession)
	cfg.Kafka.TopicPrediction = envOrDefault("KAFKA_TOPIC_PREDICTION", cfg.Kafka.TopicPrediction)
	cfg.Kafka.TopicAction = envOrDefault("KAFKA_TOPIC_ACTION", cfg.Kafka.TopicAction)
	cfg.Kafka.Principal = envOrDefault("KAFKA_PRINCIPAL", cfg.Kafka.Principal)
	cfg.Kafka.ActionSink = envOrDefaultBool("KAFKA_ACTION_SINK", cfg.Kafka.ActionSink)

	cfg.MQTT.Enabled = envOrDefaultBool("MQTT_ENABLED", cfg.MQTT.Enabled)
	cfg.MQTT.Broker = envOrDefault("MQTT_BROKER", cfg.MQTT.Broker)
	cfg.MQTT.ClientID = envOrDefault("MQTT_CLIENT_ID", cfg.MQTT.ClientID)
	cfg.MQTT.Topic = envOrDefault("MQTT_TOPIC", cfg.MQTT.Topic)
	cfg.MQTT.QoS = envOrDefaultInt("MQTT_QOS", cfg.MQTT.QoS)
	cfg.MQTT.Timeout = envOrDefaultDuration("MQTT_TIMEOUT", cfg.MQTT.Timeout)

	cfg.Store.Enabled = envOrDefaultBool("STORE_ENABLED", cfg.Store.Enabled)
	cfg.Store.Driver = envOrDefault("STORE_DRIVER", cfg.Store.Driver)
	cfg.Store.DSN = envOrDefault("STORE_DSN", cfg.Store.DSN)

	cfg.Clock.NTPServer = envOrDefault("NTP_SERVER", cfg.Clock.NTPServer)
	cfg.Clock.Timeout = envOrDefaultDuration("NTP_TIMEOUT", cfg.Clock.Timeout)

	cfg.Assets.CueDir = envOrDefault("CUE_ASSET_DIR", cfg.Assets.CueDir)
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func envOrDefaultFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envOrDefaultBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// envOrDefaultList splits a comma-separated value, dropping empty items.
func envOrDefaultList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Locale is the only language the assistant listens and speaks in.
const Locale = "ta-IN"

type TelemetryConfig struct {
	LogLevel     string `yaml:"log_level"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	OTLPInsecure bool   `yaml:"otlp_insecure"`
}

// Level parses LogLevel, defaulting to info when it is empty.
func (t TelemetryConfig) Level() (slog.Level, error) {
	var level slog.Level
	if strings.TrimSpace(t.LogLevel) == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(t.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("telemetry.log_level: %w", err)
	}
	return level, nil
}

type HTTPConfig struct {
	Bind      string `yaml:"bind"`
	Port      int    `yaml:"port"`
	StaticDir string `yaml:"static_dir"`
}

type Config struct {
	RuntimeName string           `yaml:"runtime_name"`
	Environment string           `yaml:"environment"`
	HTTP        HTTPConfig       `yaml:"http"`
	Telemetry   TelemetryConfig  `yaml:"telemetry"`
	Bus         BusConfig        `yaml:"bus"`
	EventStore  EventStoreConfig `yaml:"event_store"`
	STT         STTConfig        `yaml:"stt"`
	TTS         TTSConfig        `yaml:"tts"`
	Catalog     CatalogConfig    `yaml:"catalog"`
	UI          UIConfig         `yaml:"ui"`
}

type BusConfig struct {
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	StoreDir       string   `yaml:"store_dir"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type EventStoreConfig struct {
	Path          string `yaml:"path"`
	RetentionMode string `yaml:"retention_mode"`
	RetentionDays int    `yaml:"retention_days"`
	MaxSessions   int    `yaml:"max_sessions"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

type STTConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Mode       string `yaml:"mode"` // mock, exec
	Command    string `yaml:"command"`
	ModelPath  string `yaml:"model_path"`
	Language   string `yaml:"language"`
	SampleRate int    `yaml:"sample_rate"`
	Channels   int    `yaml:"channels"`
	MaxCapture int    `yaml:"max_capture_ms"`
	MockPhrase string `yaml:"mock_phrase"`
}

type TTSConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Mode            string `yaml:"mode"` // mock, exec
	Command         string `yaml:"command"`
	Voice           string `yaml:"voice"`
	SampleRate      int    `yaml:"sample_rate"`
	Channels        int    `yaml:"channels"`
	ChunkDurationMS int    `yaml:"chunk_duration_ms"`
	Target          string `yaml:"target"`
}

type CatalogConfig struct {
	BaseURL           string `yaml:"base_url"`
	TimeoutMS         int    `yaml:"timeout_ms"`
	BreakerFailures   int    `yaml:"breaker_failures"`
	BreakerCooldownMS int    `yaml:"breaker_cooldown_ms"`
}

type UIConfig struct {
	PreviewMedia   string `yaml:"preview_media"`
	PreviewCloseMS int    `yaml:"preview_close_ms"`
}

func Default() Config {
	return Config{
		RuntimeName: "kadai-runtime",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "0.0.0.0",
			Port: 8080,
		},
		Telemetry: TelemetryConfig{
			LogLevel:     "info",
			OTLPEndpoint: "",
			OTLPInsecure: true,
		},
		Bus: BusConfig{
			Embedded:       true,
			Port:           4222,
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		EventStore: EventStoreConfig{
			Path:          "./data/kadai-events.db",
			RetentionMode: "session",
			RetentionDays: 30,
			MaxSessions:   10000,
		},
		STT: STTConfig{
			Enabled:    false,
			Mode:       "mock",
			Language:   Locale,
			SampleRate: 16000,
			Channels:   1,
			MaxCapture: 15000,
		},
		TTS: TTSConfig{
			Enabled:         false,
			Mode:            "mock",
			Voice:           Locale,
			SampleRate:      22050,
			Channels:        1,
			ChunkDurationMS: 400,
			Target:          "kiosk",
		},
		Catalog: CatalogConfig{
			BaseURL:           "https://grocery-ai-backend.onrender.com/api",
			TimeoutMS:         10000,
			BreakerFailures:   5,
			BreakerCooldownMS: 30000,
		},
		UI: UIConfig{
			PreviewMedia:   "/videos/small-video.mp4",
			PreviewCloseMS: 300,
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.RuntimeName, "KADAI_RUNTIME_NAME")
	overrideString(&cfg.Environment, "KADAI_RUNTIME_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "KADAI_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "KADAI_HTTP_PORT")
	overrideString(&cfg.HTTP.StaticDir, "KADAI_HTTP_STATIC_DIR")
	overrideString(&cfg.Telemetry.LogLevel, "KADAI_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "KADAI_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "KADAI_TELEMETRY_OTLP_INSECURE")
	overrideBool(&cfg.Bus.Embedded, "KADAI_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "KADAI_BUS_PORT")
	overrideString(&cfg.Bus.StoreDir, "KADAI_BUS_STORE_DIR")
	overrideStringSlice(&cfg.Bus.Servers, "KADAI_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "KADAI_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "KADAI_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "KADAI_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "KADAI_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "KADAI_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.EventStore.Path, "KADAI_EVENT_STORE_PATH")
	overrideString(&cfg.EventStore.RetentionMode, "KADAI_EVENT_STORE_RETENTION_MODE")
	overrideInt(&cfg.EventStore.RetentionDays, "KADAI_EVENT_STORE_RETENTION_DAYS")
	overrideInt(&cfg.EventStore.MaxSessions, "KADAI_EVENT_STORE_MAX_SESSIONS")
	overrideBool(&cfg.EventStore.VacuumOnStart, "KADAI_EVENT_STORE_VACUUM_ON_START")
	overrideBool(&cfg.STT.Enabled, "KADAI_STT_ENABLED")
	overrideString(&cfg.STT.Mode, "KADAI_STT_MODE")
	overrideString(&cfg.STT.Command, "KADAI_STT_COMMAND")
	overrideString(&cfg.STT.ModelPath, "KADAI_STT_MODEL_PATH")
	overrideString(&cfg.STT.Language, "KADAI_STT_LANGUAGE")
	overrideInt(&cfg.STT.SampleRate, "KADAI_STT_SAMPLE_RATE")
	overrideInt(&cfg.STT.Channels, "KADAI_STT_CHANNELS")
	overrideInt(&cfg.STT.MaxCapture, "KADAI_STT_MAX_CAPTURE_MS")
	overrideString(&cfg.STT.MockPhrase, "KADAI_STT_MOCK_PHRASE")
	overrideBool(&cfg.TTS.Enabled, "KADAI_TTS_ENABLED")
	overrideString(&cfg.TTS.Mode, "KADAI_TTS_MODE")
	overrideString(&cfg.TTS.Command, "KADAI_TTS_COMMAND")
	overrideString(&cfg.TTS.Voice, "KADAI_TTS_VOICE")
	overrideInt(&cfg.TTS.SampleRate, "KADAI_TTS_SAMPLE_RATE")
	overrideInt(&cfg.TTS.Channels, "KADAI_TTS_CHANNELS")
	overrideInt(&cfg.TTS.ChunkDurationMS, "KADAI_TTS_CHUNK_DURATION_MS")
	overrideString(&cfg.TTS.Target, "KADAI_TTS_TARGET")
	overrideString(&cfg.Catalog.BaseURL, "KADAI_CATALOG_BASE_URL")
	overrideInt(&cfg.Catalog.TimeoutMS, "KADAI_CATALOG_TIMEOUT_MS")
	overrideInt(&cfg.Catalog.BreakerFailures, "KADAI_CATALOG_BREAKER_FAILURES")
	overrideInt(&cfg.Catalog.BreakerCooldownMS, "KADAI_CATALOG_BREAKER_COOLDOWN_MS")
	overrideString(&cfg.UI.PreviewMedia, "KADAI_UI_PREVIEW_MEDIA")
	overrideInt(&cfg.UI.PreviewCloseMS, "KADAI_UI_PREVIEW_CLOSE_MS")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func validate(cfg Config) error {
	if cfg.RuntimeName == "" {
		return errors.New("runtime_name must not be empty")
	}
	if _, err := cfg.Telemetry.Level(); err != nil {
		return err
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if cfg.Bus.Embedded {
		if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
			return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
		}
	} else {
		if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	if cfg.EventStore.Path == "" {
		return errors.New("event_store.path must not be empty")
	}
	switch cfg.EventStore.RetentionMode {
	case "ephemeral", "session", "persistent":
		// ok
	default:
		return errors.New("event_store.retention_mode must be one of ephemeral|session|persistent")
	}
	if cfg.EventStore.RetentionDays < 0 {
		return errors.New("event_store.retention_days must be >= 0")
	}
	if cfg.STT.Enabled {
		switch cfg.STT.Mode {
		case "mock", "exec":
		default:
			return errors.New("stt.mode must be one of mock|exec")
		}
		if cfg.STT.SampleRate <= 0 {
			return errors.New("stt.sample_rate must be positive")
		}
		if cfg.STT.Channels <= 0 {
			return errors.New("stt.channels must be positive")
		}
		if cfg.STT.Mode == "exec" && cfg.STT.Command == "" {
			return errors.New("stt.command must be set when mode=exec")
		}
	}
	if cfg.STT.Language != "" && cfg.STT.Language != Locale {
		return fmt.Errorf("stt.language must be %s", Locale)
	}
	if cfg.TTS.Enabled {
		switch cfg.TTS.Mode {
		case "mock", "exec":
		default:
			return errors.New("tts.mode must be one of mock|exec")
		}
		if cfg.TTS.Mode == "exec" && cfg.TTS.Command == "" {
			return errors.New("tts.command must be set when mode=exec")
		}
		if cfg.TTS.SampleRate <= 0 {
			return errors.New("tts.sample_rate must be positive")
		}
		if cfg.TTS.Channels <= 0 {
			return errors.New("tts.channels must be positive")
		}
	}
	if cfg.TTS.Voice != "" && cfg.TTS.Voice != Locale {
		return fmt.Errorf("tts.voice must be %s", Locale)
	}
	if cfg.Catalog.BaseURL == "" {
		return errors.New("catalog.base_url must not be empty")
	}
	if cfg.Catalog.TimeoutMS <= 0 {
		return errors.New("catalog.timeout_ms must be positive")
	}
	if cfg.Catalog.BreakerFailures < 0 {
		return errors.New("catalog.breaker_failures must be >= 0")
	}
	if cfg.UI.PreviewCloseMS < 0 {
		return errors.New("ui.preview_close_ms must be >= 0")
	}
	return nil
}

package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	logs "github.com/danmuck/thriftsniff/internal/logging"
	"github.com/danmuck/thriftsniff/internal/protocol"
)

const DefaultPath = "thriftsniff.toml"

type Config struct {
	Log      LogConfig      `toml:"log"`
	Capture  CaptureConfig  `toml:"capture"`
	Decoder  DecoderConfig  `toml:"decoder"`
	Pipeline PipelineConfig `toml:"pipeline"`
	Admin    AdminConfig    `toml:"admin"`
	Schema   SchemaConfig   `toml:"schema"`
	Sinks    SinksConfig    `toml:"sinks"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

type CaptureConfig struct {
	Interface   string `toml:"interface"`
	Port        int    `toml:"port"`
	PcapFile    string `toml:"pcap_file"`
	Snaplen     int    `toml:"snaplen"`
	Promiscuous bool   `toml:"promiscuous"`
	BPF         string `toml:"bpf"`
	Timeout     string `toml:"timeout"`
}

type DecoderConfig struct {
	MaxDepth     int    `toml:"max_depth"`
	RequireStop  bool   `toml:"require_stop"`
	CompactSeqID string `toml:"compact_seq_id"`
	MaxPayload   int    `toml:"max_payload"`
}

type PipelineConfig struct {
	Workers int `toml:"workers"`
	Queue   int `toml:"queue"`
}

type AdminConfig struct {
	Enabled     bool     `toml:"enabled"`
	Addr        string   `toml:"addr"`
	CORSOrigins []string `toml:"cors_origins"`
	Token       string   `toml:"token"`
}

type SchemaConfig struct {
	Builtin bool   `toml:"builtin"`
	File    string `toml:"file"`
}

type SinksConfig struct {
	Report ReportSinkConfig `toml:"report"`
	Log    LogSinkConfig    `toml:"log"`
	NATS   NATSSinkConfig   `toml:"nats"`
	Redis  RedisSinkConfig  `toml:"redis"`
}

type ReportSinkConfig struct {
	Enabled bool `toml:"enabled"`
	HexDump bool `toml:"hexdump"`
}

type LogSinkConfig struct {
	Enabled bool `toml:"enabled"`
}

type NATSSinkConfig struct {
	Enabled bool   `toml:"enabled"`
	URL     string `toml:"url"`
	Subject string `toml:"subject"`
}

type RedisSinkConfig struct {
	Enabled     bool   `toml:"enabled"`
	Addr        string `toml:"addr"`
	DB          int    `toml:"db"`
	KeyPrefix   string `toml:"key_prefix"`
	RecentLimit int    `toml:"recent_limit"`
}

func Default() Config {
	return Config{
		Log: LogConfig{Level: "info"},
		Capture: CaptureConfig{
			Port:        9090,
			Snaplen:     65535,
			Promiscuous: true,
			Timeout:     "500ms",
		},
		Decoder: DecoderConfig{
			MaxDepth:     protocol.DefaultMaxDepth,
			CompactSeqID: "zigzag",
			MaxPayload:   16 << 20,
		},
		Pipeline: PipelineConfig{Workers: 4, Queue: 256},
		Admin:    AdminConfig{Addr: "127.0.0.1:9464"},
		Schema:   SchemaConfig{Builtin: true},
		Sinks: SinksConfig{
			Report: ReportSinkConfig{Enabled: true, HexDump: true},
			NATS:   NATSSinkConfig{URL: "nats://127.0.0.1:4222", Subject: "thriftsniff"},
			Redis:  RedisSinkConfig{Addr: "127.0.0.1:6379", KeyPrefix: "thriftsniff", RecentLimit: 100},
		},
	}
}

// Load decodes path over Default and validates the result. Unknown keys
// are an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if err := loadToml(path, &cfg); err != nil {
		return Config{}, err
	}
	if err := Validate(cfg); err != nil {
		return Config{}, fmt.Errorf("config invalid (%s): %w", path, err)
	}
	logs.Debugf("config.Load path=%s port=%d workers=%d", path, cfg.Capture.Port, cfg.Pipeline.Workers)
	return cfg, nil
}

// LoadOptional behaves like Load but returns Default when path does not
// exist.
func LoadOptional(path string) (Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return Load(path)
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	dec := toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return fmt.Errorf("config parse failed (%s): %s", path, strict.String())
		}
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func Validate(cfg Config) error {
	if _, ok := logs.ParseLevel(cfg.Log.Level); !ok && strings.TrimSpace(cfg.Log.Level) != "" {
		return fmt.Errorf("log.level %q is not a level", cfg.Log.Level)
	}
	if err := ValidateCapture(cfg.Capture); err != nil {
		return fmt.Errorf("capture: %w", err)
	}
	if err := ValidateDecoder(cfg.Decoder); err != nil {
		return fmt.Errorf("decoder: %w", err)
	}
	if cfg.Pipeline.Workers < 0 || cfg.Pipeline.Queue < 0 {
		return fmt.Errorf("pipeline: workers and queue must not be negative")
	}
	if cfg.Admin.Enabled && strings.TrimSpace(cfg.Admin.Addr) == "" {
		return fmt.Errorf("admin: addr is required when enabled")
	}
	if err := ValidateSinks(cfg.Sinks); err != nil {
		return fmt.Errorf("sinks: %w", err)
	}
	return nil
}

func ValidateCapture(cfg CaptureConfig) error {
	if cfg.Port < 0 || cfg.Port > 65535 {
		return fmt.Errorf("port %d out of range", cfg.Port)
	}
	if cfg.Snaplen < 0 {
		return fmt.Errorf("snaplen must not be negative")
	}
	if strings.TrimSpace(cfg.Timeout) != "" {
		if _, err := time.ParseDuration(cfg.Timeout); err != nil {
			return fmt.Errorf("timeout: %w", err)
		}
	}
	return nil
}

func ValidateDecoder(cfg DecoderConfig) error {
	if cfg.MaxDepth < 1 || cfg.MaxDepth > 1024 {
		return fmt.Errorf("max_depth %d must be within 1..1024", cfg.MaxDepth)
	}
	if _, ok := protocol.ParseSeqIDEncoding(cfg.CompactSeqID); !ok {
		return fmt.Errorf("compact_seq_id %q must be zigzag or varint", cfg.CompactSeqID)
	}
	if cfg.MaxPayload < 0 {
		return fmt.Errorf("max_payload must not be negative")
	}
	return nil
}

func ValidateSinks(cfg SinksConfig) error {
	if cfg.NATS.Enabled {
		if strings.TrimSpace(cfg.NATS.URL) == "" {
			return fmt.Errorf("nats.url is required when enabled")
		}
		if strings.TrimSpace(cfg.NATS.Subject) == "" {
			return fmt.Errorf("nats.subject is required when enabled")
		}
	}
	if cfg.Redis.Enabled {
		if strings.TrimSpace(cfg.Redis.Addr) == "" {
			return fmt.Errorf("redis.addr is required when enabled")
		}
		if cfg.Redis.DB < 0 || cfg.Redis.RecentLimit < 0 {
			return fmt.Errorf("redis.db and redis.recent_limit must not be negative")
		}
	}
	return nil
}

package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"bandwidth-guard/internal/model"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig marks configuration that must stop the process at startup
var ErrInvalidConfig = errors.New("invalid configuration")

const DefaultConfigFile = "configs/bandwidth_guard.yaml"

// Environment variables read by ApplyEnv
const (
	EnvInfluxDBURL   = "BWGUARD_INFLUXDB_URL"
	EnvInfluxDBToken = "BWGUARD_INFLUXDB_TOKEN"
	EnvInfluxDBOrg   = "BWGUARD_INFLUXDB_ORG"
	EnvRedisAddr     = "BWGUARD_REDIS_ADDR"
	EnvRedisPassword = "BWGUARD_REDIS_PASSWORD"
	EnvLogLevel      = "BWGUARD_LOG_LEVEL"
)

type Config struct {
	Monitor     MonitorConfig         `yaml:"monitor" json:"monitor"`
	Thresholds  model.ThresholdConfig `yaml:"thresholds" json:"thresholds"`
	Alerting    AlertingConfig        `yaml:"alerting" json:"alerting"`
	Prometheus  PrometheusConfig      `yaml:"prometheus" json:"prometheus"`
	InfluxDB    InfluxDBConfig        `yaml:"influxdb" json:"influxdb"`
	Redis       RedisConfig           `yaml:"redis" json:"redis"`
	API         APIConfig             `yaml:"api" json:"api"`
	Connections ConnectionsConfig     `yaml:"connections" json:"connections"`
	Logging     LoggingConfig         `yaml:"logging" json:"logging"`
}

// MonitorConfig is expressed in seconds; a zero duration runs until stopped
type MonitorConfig struct {
	IntervalSeconds float64 `yaml:"interval_seconds" json:"interval_seconds"`
	DurationSeconds float64 `yaml:"duration_seconds" json:"duration_seconds"`
}

func (m MonitorConfig) Interval() time.Duration {
	return secondsToDuration(m.IntervalSeconds)
}

func (m MonitorConfig) Duration() time.Duration {
	return secondsToDuration(m.DurationSeconds)
}

type AlertingConfig struct {
	CooldownSeconds    float64       `yaml:"cooldown_seconds" json:"cooldown_seconds"`
	SinkTimeoutSeconds float64       `yaml:"sink_timeout_seconds" json:"sink_timeout_seconds"`
	Channels           AlertChannels `yaml:"channels" json:"channels"`
}

func (a AlertingConfig) Cooldown() time.Duration {
	return secondsToDuration(a.CooldownSeconds)
}

func (a AlertingConfig) SinkTimeout() time.Duration {
	return secondsToDuration(a.SinkTimeoutSeconds)
}

type AlertChannels struct {
	Log bool `yaml:"log" json:"log"`
}

type PrometheusConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	Port    int  `yaml:"port" json:"port"`
}

type InfluxDBConfig struct {
	Enabled         bool              `yaml:"enabled" json:"enabled"`
	URL             string            `yaml:"url" json:"url"`
	Token           string            `yaml:"token" json:"token"`
	Org             string            `yaml:"org" json:"org"`
	Bucket          string            `yaml:"bucket" json:"bucket"`
	BatchSize       uint              `yaml:"batch_size" json:"batch_size"`
	FlushIntervalMs uint              `yaml:"flush_interval_ms" json:"flush_interval_ms"`
	Tags            map[string]string `yaml:"tags,omitempty" json:"tags,omitempty"`
}

type RedisConfig struct {
	Enabled    bool   `yaml:"enabled" json:"enabled"`
	Addr       string `yaml:"addr" json:"addr"`
	Password   string `yaml:"password" json:"password"`
	DB         int    `yaml:"db" json:"db"`
	Prefix     string `yaml:"prefix" json:"prefix"`
	TTLSeconds int    `yaml:"ttl_seconds" json:"ttl_seconds"`
}

type APIConfig struct {
	Enabled     bool `yaml:"enabled" json:"enabled"`
	Port        int  `yaml:"port" json:"port"`
	HistorySize int  `yaml:"history_size" json:"history_size"`
}

type ConnectionsConfig struct {
	Enabled         bool `yaml:"enabled" json:"enabled"`
	Limit           int  `yaml:"limit" json:"limit"`
	LookupTimeoutMs int  `yaml:"lookup_timeout_ms" json:"lookup_timeout_ms"`
}

type LoggingConfig struct {
	Level    string `yaml:"level" json:"level"`
	Format   string `yaml:"format" json:"format"`
	FilePath string `yaml:"file_path" json:"file_path"`
}

// GetDefaultConfig returns the configuration used when nothing overrides it
func GetDefaultConfig() *Config {
	return &Config{
		Monitor: MonitorConfig{
			IntervalSeconds: 1.0,
		},
		Thresholds: model.ThresholdConfig{
			UploadMbps:   50.0,
			DownloadMbps: 100.0,
		},
		Alerting: AlertingConfig{
			SinkTimeoutSeconds: 2.0,
			Channels: AlertChannels{
				Log: true,
			},
		},
		Prometheus: PrometheusConfig{
			Port: 8000,
		},
		InfluxDB: InfluxDBConfig{
			URL:             "http://localhost:8086",
			Bucket:          "network_metrics",
			BatchSize:       10,
			FlushIntervalMs: 10_000,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			Prefix:     "bandwidth",
			TTLSeconds: 60,
		},
		API: APIConfig{
			Port:        8080,
			HistorySize: 300,
		},
		Connections: ConnectionsConfig{
			Limit:           5,
			LookupTimeoutMs: 500,
		},
		Logging: LoggingConfig{
			Level:  "INFO",
			Format: "text",
		},
	}
}

// LoadConfig reads a YAML or JSON config file on top of the defaults.
// The format follows the file extension; unknown extensions try YAML first.
func LoadConfig(filename string) (*Config, error) {
	if filename == "" {
		return nil, fmt.Errorf("config file path is empty")
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", filename, err)
	}

	config := GetDefaultConfig()

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, config)
	case ".json":
		err = json.Unmarshal(data, config)
	default:
		if err = yaml.Unmarshal(data, config); err != nil {
			config = GetDefaultConfig()
			err = json.Unmarshal(data, config)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", filename, err)
	}

	return config, nil
}

// ApplyEnv loads envFile (if it exists) into the process environment and
// then overrides credentials and endpoints from BWGUARD_* variables.
// Variables already set in the environment win over the file.
func (c *Config) ApplyEnv(envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	}
	c.applyEnv(os.LookupEnv)
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	set(EnvInfluxDBURL, &c.InfluxDB.URL)
	set(EnvInfluxDBToken, &c.InfluxDB.Token)
	set(EnvInfluxDBOrg, &c.InfluxDB.Org)
	set(EnvRedisAddr, &c.Redis.Addr)
	set(EnvRedisPassword, &c.Redis.Password)
	set(EnvLogLevel, &c.Logging.Level)
}

// Validate reports every startup-fatal problem at once
func (c *Config) Validate() error {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...)))
	}

	if !finite(c.Monitor.IntervalSeconds) || c.Monitor.IntervalSeconds <= 0 {
		invalid("interval must be positive, got %v", c.Monitor.IntervalSeconds)
	}
	if !finite(c.Monitor.DurationSeconds) || c.Monitor.DurationSeconds < 0 {
		invalid("duration must not be negative, got %v", c.Monitor.DurationSeconds)
	}
	if !finite(c.Thresholds.UploadMbps) || c.Thresholds.UploadMbps < 0 {
		invalid("upload threshold must not be negative, got %v", c.Thresholds.UploadMbps)
	}
	if !finite(c.Thresholds.DownloadMbps) || c.Thresholds.DownloadMbps < 0 {
		invalid("download threshold must not be negative, got %v", c.Thresholds.DownloadMbps)
	}
	if !finite(c.Alerting.CooldownSeconds) || c.Alerting.CooldownSeconds < 0 {
		invalid("alert cooldown must not be negative, got %v", c.Alerting.CooldownSeconds)
	}
	if !finite(c.Alerting.SinkTimeoutSeconds) || c.Alerting.SinkTimeoutSeconds < 0 {
		invalid("sink timeout must not be negative, got %v", c.Alerting.SinkTimeoutSeconds)
	}

	if c.Prometheus.Enabled && !validPort(c.Prometheus.Port) {
		invalid("prometheus port out of range: %d", c.Prometheus.Port)
	}

	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			invalid("influxdb url is required when influxdb is enabled")
		}
		if c.InfluxDB.Token == "" {
			invalid("influxdb token is required when influxdb is enabled (set %s)", EnvInfluxDBToken)
		}
		if c.InfluxDB.Org == "" {
			invalid("influxdb org is required when influxdb is enabled (set %s)", EnvInfluxDBOrg)
		}
		if c.InfluxDB.Bucket == "" {
			invalid("influxdb bucket is required when influxdb is enabled")
		}
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		invalid("redis address is required when redis is enabled")
	}

	if c.API.Enabled {
		if !validPort(c.API.Port) {
			invalid("api port out of range: %d", c.API.Port)
		}
		if c.Prometheus.Enabled && c.API.Port == c.Prometheus.Port {
			invalid("api and prometheus cannot share port %d", c.API.Port)
		}
	}

	if c.Connections.Enabled && c.Connections.Limit <= 0 {
		invalid("connections limit must be positive, got %d", c.Connections.Limit)
	}

	if _, err := ParseLevel(c.Logging.Level); err != nil {
		invalid("%v", err)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		invalid("unknown log format %q", c.Logging.Format)
	}

	return errors.Join(errs...)
}

// finite rejects NaN and the infinities
func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func validPort(port int) bool {
	return port > 0 && port <= 65535
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}

// PortAddr formats a listen address for all interfaces
func PortAddr(port int) string {
	return ":" + strconv.Itoa(port)
}

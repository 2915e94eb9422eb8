package main

import (
	"flag"
	"io"

	"bandwidth-guard/internal/utils"
)

type cliFlags struct {
	configFile  string
	envFile     string
	showVersion bool

	interval          float64
	duration          float64
	uploadThreshold   float64
	downloadThreshold float64
	cooldown          float64

	prometheus     bool
	prometheusPort int

	influxdb       bool
	influxdbURL    string
	influxdbToken  string
	influxdbOrg    string
	influxdbBucket string

	redis     bool
	redisAddr string

	api         bool
	apiPort     int
	connections bool

	logLevel string

	// names of the flags given on the command line
	set map[string]bool
}

// parseFlags parses args into a fresh flag set. Defaults shown in -help
// come from the built-in configuration; only flags actually given override
// the config file.
func parseFlags(args []string, output io.Writer) (*cliFlags, error) {
	def := utils.GetDefaultConfig()
	f := &cliFlags{set: make(map[string]bool)}

	fs := flag.NewFlagSet("bandwidth-guard", flag.ContinueOnError)
	fs.SetOutput(output)

	fs.StringVar(&f.configFile, "config", utils.DefaultConfigFile, "Configuration file path (YAML or JSON)")
	fs.StringVar(&f.envFile, "env-file", ".env", "Environment file with BWGUARD_* credentials")
	fs.BoolVar(&f.showVersion, "version", false, "Print version information and exit")

	fs.Float64Var(&f.interval, "interval", def.Monitor.IntervalSeconds, "Sampling interval in seconds")
	fs.Float64Var(&f.duration, "duration", def.Monitor.DurationSeconds, "Total monitoring duration in seconds (0 runs until stopped)")
	fs.Float64Var(&f.uploadThreshold, "upload-threshold", def.Thresholds.UploadMbps, "Upload alert threshold in Mbps")
	fs.Float64Var(&f.downloadThreshold, "download-threshold", def.Thresholds.DownloadMbps, "Download alert threshold in Mbps")
	fs.Float64Var(&f.cooldown, "cooldown", def.Alerting.CooldownSeconds, "Minimum seconds between repeat alerts during one overage (0 alerts every tick)")

	fs.BoolVar(&f.prometheus, "prometheus", def.Prometheus.Enabled, "Enable the Prometheus exporter")
	fs.IntVar(&f.prometheusPort, "prometheus-port", def.Prometheus.Port, "Prometheus exporter port")

	fs.BoolVar(&f.influxdb, "influxdb", def.InfluxDB.Enabled, "Enable InfluxDB export")
	fs.StringVar(&f.influxdbURL, "influxdb-url", def.InfluxDB.URL, "InfluxDB URL")
	fs.StringVar(&f.influxdbToken, "influxdb-token", "", "InfluxDB token (or "+utils.EnvInfluxDBToken+")")
	fs.StringVar(&f.influxdbOrg, "influxdb-org", "", "InfluxDB organization (or "+utils.EnvInfluxDBOrg+")")
	fs.StringVar(&f.influxdbBucket, "influxdb-bucket", def.InfluxDB.Bucket, "InfluxDB bucket")

	fs.BoolVar(&f.redis, "redis", def.Redis.Enabled, "Enable Redis publishing")
	fs.StringVar(&f.redisAddr, "redis-addr", def.Redis.Addr, "Redis address")

	fs.BoolVar(&f.api, "api", def.API.Enabled, "Enable the HTTP API")
	fs.IntVar(&f.apiPort, "api-port", def.API.Port, "HTTP API port")
	fs.BoolVar(&f.connections, "connections", def.Connections.Enabled, "Report active connections on ticks with traffic")

	fs.StringVar(&f.logLevel, "log-level", def.Logging.Level, "Log level (DEBUG, INFO, WARN, ERROR)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	fs.Visit(func(fl *flag.Flag) {
		f.set[fl.Name] = true
	})

	return f, nil
}

// apply copies the explicitly given flags onto cfg
func (f *cliFlags) apply(cfg *utils.Config) {
	overrides := map[string]func(){
		"interval":           func() { cfg.Monitor.IntervalSeconds = f.interval },
		"duration":           func() { cfg.Monitor.DurationSeconds = f.duration },
		"upload-threshold":   func() { cfg.Thresholds.UploadMbps = f.uploadThreshold },
		"download-threshold": func() { cfg.Thresholds.DownloadMbps = f.downloadThreshold },
		"cooldown":           func() { cfg.Alerting.CooldownSeconds = f.cooldown },
		"prometheus":         func() { cfg.Prometheus.Enabled = f.prometheus },
		"prometheus-port":    func() { cfg.Prometheus.Port = f.prometheusPort },
		"influxdb":           func() { cfg.InfluxDB.Enabled = f.influxdb },
		"influxdb-url":       func() { cfg.InfluxDB.URL = f.influxdbURL },
		"influxdb-token":     func() { cfg.InfluxDB.Token = f.influxdbToken },
		"influxdb-org":       func() { cfg.InfluxDB.Org = f.influxdbOrg },
		"influxdb-bucket":    func() { cfg.InfluxDB.Bucket = f.influxdbBucket },
		"redis":              func() { cfg.Redis.Enabled = f.redis },
		"redis-addr":         func() { cfg.Redis.Addr = f.redisAddr },
		"api":                func() { cfg.API.Enabled = f.api },
		"api-port":           func() { cfg.API.Port = f.apiPort },
		"connections":        func() { cfg.Connections.Enabled = f.connections },
		"log-level":          func() { cfg.Logging.Level = f.logLevel },
	}

	for name, override := range overrides {
		if f.set[name] {
			override()
		}
	}
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"bandwidth-guard/internal/alert"
	"bandwidth-guard/internal/api"
	"bandwidth-guard/internal/api/handlers"
	"bandwidth-guard/internal/api/storage"
	"bandwidth-guard/internal/client"
	"bandwidth-guard/internal/monitor"
	"bandwidth-guard/internal/pipeline"
	"bandwidth-guard/internal/rules"
	"bandwidth-guard/internal/utils"

	"github.com/prometheus/common/version"
	"github.com/sirupsen/logrus"
)

const (
	programName  = "bandwidth-guard"
	closeTimeout = 5 * time.Second
)

func main() {
	flags, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(2)
	}

	if flags.showVersion {
		fmt.Println(version.Print(programName))
		return
	}

	if err := run(flags); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", programName, err)
		os.Exit(1)
	}
}

// loadConfig layers defaults, the config file, the environment and the
// command line, in that order, and validates the result
func loadConfig(f *cliFlags) (*utils.Config, error) {
	cfg, err := utils.LoadConfig(f.configFile)
	if err != nil {
		// the default config path is optional
		if f.set["config"] || !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		cfg = utils.GetDefaultConfig()
	}

	if err := cfg.ApplyEnv(f.envFile); err != nil {
		return nil, err
	}
	f.apply(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(f *cliFlags) error {
	cfg, err := loadConfig(f)
	if err != nil {
		return err
	}

	logger, err := utils.NewLogger(cfg.Logging)
	if err != nil {
		return err
	}

	logger.Infof("Bandwidth Guard %s", version.Info())
	logger.Infof("Thresholds: upload %.2f Mbps, download %.2f Mbps", cfg.Thresholds.UploadMbps, cfg.Thresholds.DownloadMbps)

	dispatcher := pipeline.NewDispatcher(cfg.Alerting.SinkTimeout(), logger)
	servers, err := registerSinks(dispatcher, cfg, logger)
	if err != nil {
		closeSinks(dispatcher, logger)
		return err
	}

	evaluator := rules.NewThresholdEvaluator(cfg.Thresholds, cfg.Alerting.Cooldown())
	processor := pipeline.NewProcessor(evaluator, dispatcher, logger)
	if cfg.Connections.Enabled {
		lookupTimeout := time.Duration(cfg.Connections.LookupTimeoutMs) * time.Millisecond
		processor.SetConnectionSource(client.NewConnectionLister(cfg.Connections.Limit, lookupTimeout))
	}

	mon, err := monitor.New(client.NewHostSampler(), processor, monitor.Config{
		Interval: cfg.Monitor.Interval(),
		Duration: cfg.Monitor.Duration(),
	}, logger)
	if err != nil {
		closeSinks(dispatcher, logger)
		return err
	}

	for _, srv := range servers {
		if err := srv.Listen(); err != nil {
			closeSinks(dispatcher, logger)
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serverCtx, stopServers := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	for _, srv := range servers {
		wg.Add(1)
		go func(srv *api.Server) {
			defer wg.Done()
			if err := srv.Serve(serverCtx); err != nil {
				logger.Errorf("HTTP server error: %v", err)
			}
		}(srv)
	}

	err = mon.Run(ctx)

	stopServers()
	wg.Wait()

	if err != nil {
		return err
	}
	logger.Infof("Monitoring stopped after %d ticks (%d skipped)", mon.Ticks(), mon.SkippedTicks())
	return nil
}

// registerSinks creates every enabled sink and the HTTP servers exposing them
func registerSinks(d *pipeline.Dispatcher, cfg *utils.Config, logger *logrus.Logger) ([]*api.Server, error) {
	var (
		servers []*api.Server
		metrics http.Handler
	)

	if cfg.Alerting.Channels.Log {
		d.RegisterSink(alert.NewLogSink(logger))
	}

	if cfg.Prometheus.Enabled {
		promSink, err := alert.NewPrometheusSink(logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create Prometheus exporter: %w", err)
		}
		d.RegisterSink(promSink)
		metrics = promSink.Handler()

		router := api.NewRouter(api.RouterOptions{Metrics: metrics})
		servers = append(servers, api.NewServer("prometheus", utils.PortAddr(cfg.Prometheus.Port), router, logger))
	}

	if cfg.InfluxDB.Enabled {
		influxSink, err := alert.NewInfluxDBSink(alert.InfluxDBConfig{
			URL:             cfg.InfluxDB.URL,
			Token:           cfg.InfluxDB.Token,
			Org:             cfg.InfluxDB.Org,
			Bucket:          cfg.InfluxDB.Bucket,
			BatchSize:       cfg.InfluxDB.BatchSize,
			FlushIntervalMs: cfg.InfluxDB.FlushIntervalMs,
			Tags:            cfg.InfluxDB.Tags,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create InfluxDB sink: %w", err)
		}
		d.RegisterSink(influxSink)
	}

	if cfg.Redis.Enabled {
		redisSink, err := alert.NewRedisSink(alert.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
			TTL:      time.Duration(cfg.Redis.TTLSeconds) * time.Second,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create Redis sink: %w", err)
		}
		d.RegisterSink(redisSink)
	}

	if cfg.API.Enabled {
		store := storage.NewStorage(cfg.API.HistorySize, logger)
		d.RegisterSink(store)

		h := handlers.NewHandlers(store, cfg.Thresholds, logger)
		router := api.NewRouter(api.RouterOptions{Handlers: h, Metrics: metrics})
		servers = append(servers, api.NewServer("api", utils.PortAddr(cfg.API.Port), router, logger))
	}

	if len(d.Sinks()) == 0 {
		logger.Warn("No sinks enabled, measurements will not be reported")
	}

	return servers, nil
}

func closeSinks(d *pipeline.Dispatcher, logger *logrus.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if err := d.Close(ctx); err != nil {
		logger.Errorf("Error closing sinks: %v", err)
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"sbjtask/internal/job"
	"sbjtask/internal/logx"
	"sbjtask/internal/metrics"
	"sbjtask/internal/sched"
)

func main() {
	app := &cli.App{
		Name:  "ticksched",
		Usage: "run the firmware subsystems on the " + sched.DefaultKind.String() + " backend",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Value: "config.yml", Usage: "YAML config path"},
			&cli.DurationFlag{Name: "duration", Aliases: []string{"d"}, Usage: "stop after this long (0 = until interrupted)"},
			&cli.StringFlag{Name: "log-level", Usage: "override log_level from the config"},
			&cli.StringFlag{Name: "csv", Usage: "override csv_log from the config"},
			&cli.StringFlag{Name: "metrics-addr", Usage: "override metrics_addr from the config"},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	// Read the configuration
	cfg, err := sched.Load(c.String("config"))
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	if v := c.String("log-level"); v != "" {
		cfg.LogLevel = v
	}
	if v := c.String("csv"); v != "" {
		cfg.CSVLog = v
	}
	if v := c.String("metrics-addr"); v != "" {
		cfg.MetricsAddr = v
	}

	log := logx.NewConsole(cfg.LogLevel, os.Stdout)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if d := c.Duration("duration"); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	monitor := sched.NewMonitor(log, 1024)
	if cfg.CSVLog != "" {
		if err := monitor.EnableCSVLogging(cfg.CSVLog); err != nil {
			return cli.Exit(fmt.Sprintf("csv log: %v", err), 1)
		}
	}
	monitorDone := make(chan struct{})
	go func() {
		defer close(monitorDone)
		_ = monitor.Run(ctx)
	}()

	reg := prom.NewRegistry()
	exporter, err := metrics.NewExporter("sbjtask", reg, metrics.ExporterOptions{})
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	if cfg.MetricsAddr != "" {
		srv := serveMetrics(cfg.MetricsAddr, reg, log)
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = srv.Shutdown(sctx)
		}()
	}

	clock := sched.NewTickClock(1)
	clock.Start(time.Duration(cfg.TickMS) * time.Millisecond)
	defer clock.Stop()

	backend := sched.NewDefault(ctx, cfg,
		sched.WithLogger(log),
		sched.WithMetrics(exporter),
		sched.WithEvents(monitor.Events()),
		sched.WithClock(clock),
	)
	log.Info().
		Str("backend", backend.Kind().String()).
		Str("run", monitor.RunID()).
		Int("tick_ms", cfg.TickMS).
		Msg("starting subsystems")

	lighting := job.NewLighting(backend, &simLux{start: time.Now()}, log)
	wifi := job.NewWifi(backend, "SBJ", simConnector{}, func() {
		log.Info().Msg("clock resync after connect")
	}, log)

	var polls atomic.Int64
	ble := job.NewBLEPoller(backend, func() { polls.Add(1) }, cfg.Schedule("ble", job.BLESchedule()))

	var reading atomic.Int64
	dock := job.NewDockSensor(backend, func() int {
		return int(reading.Add(3) % 40)
	}, func(d job.Docked) {
		log.Info().Str("docked", d.String()).Msg("dock state changed")
	}, cfg.Schedule("dock", job.DockSchedule()))

	lighting.Begin()
	wifi.Begin()
	ble.Begin()
	dock.Begin()

	err = sched.RunLoop(ctx, backend, time.Duration(cfg.PumpMS)*time.Millisecond, nil)
	<-monitorDone

	log.Info().
		Float64("lux", lighting.Lux()).
		Bool("wifi_ok", wifi.OK()).
		Int64("ble_polls", polls.Load()).
		Str("docked", dock.Detected().String()).
		Msg("stopped")

	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return cli.Exit(err.Error(), 1)
	}
	return nil
}

func serveMetrics(addr string, reg *prom.Registry, log zerolog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("addr", addr).Msg("metrics server failed")
		}
	}()
	return srv
}

// simLux stands in for the light sensor: a slow sine around 300 lux.
type simLux struct {
	start time.Time
}

func (s *simLux) Begin() bool { return true }

func (s *simLux) ReadLux() float64 {
	t := time.Since(s.start).Seconds()
	return 300 + 200*math.Sin(t/10)
}

// simConnector pretends the stored credentials work.
type simConnector struct{}

func (simConnector) AutoConnect(string) bool {
	time.Sleep(50 * time.Millisecond)
	return true
}

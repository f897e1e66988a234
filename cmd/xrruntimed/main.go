// Command xrruntimed hosts an Instance against the device fixture and the
// in-process fake compositor: the demo host process of SPEC_FULL.md
// section 2, used in place of a real C ABI loader and a real graphics
// backend.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ixrcore/runtime/internal/calibration"
	"github.com/ixrcore/runtime/internal/compositor"
	"github.com/ixrcore/runtime/internal/compositor/fake"
	"github.com/ixrcore/runtime/internal/config"
	"github.com/ixrcore/runtime/internal/device/fixture"
	"github.com/ixrcore/runtime/internal/instance"
	"github.com/ixrcore/runtime/internal/logger"
	"github.com/ixrcore/runtime/internal/metrics"
	"github.com/ixrcore/runtime/internal/profile/template"
	"github.com/ixrcore/runtime/internal/telemetry"
	"github.com/ixrcore/runtime/internal/xrtypes"
)

var (
	version = "dev"
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "xrruntimed",
	Short: "xrruntimed hosts a runtime Instance against a fixture device and a fake compositor",
	Long: `xrruntimed loads a runtime configuration, fills in a System from a YAML
device fixture in place of a real tracking driver, attaches an in-process
fake compositor in place of a real graphics backend, and drives one demo
session through its lifecycle so an operator can see the wiring work.

Use --config to point at a configuration file; all settings may also be
overridden with XRRUNTIME_<SECTION>_<KEY> environment variables.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to config file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "xrruntimed: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile, viper.New())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetryShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "xrruntimed",
		ServiceVersion: version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(ctx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}()

	var reg *metrics.Metrics
	var metricsSrv *http.Server
	if cfg.Metrics.Enabled {
		registry := prometheus.NewRegistry()
		reg = metrics.New(registry)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		metricsSrv = &http.Server{Addr: fmt.Sprintf(":%d", cfg.Metrics.Port), Handler: mux}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server error", "error", err)
			}
		}()
		logger.Info("metrics server listening", "port", cfg.Metrics.Port)
	}

	var calib *calibration.Store
	if cfg.Calibration.Enabled {
		calib, err = calibration.Open(cfg.Calibration.DBPath)
		if err != nil {
			return fmt.Errorf("open calibration store: %w", err)
		}
		defer calib.Close()
	}

	fixtureDir, fixtureFile := filepath.Split(cfg.Fixture.Path)
	if fixtureDir == "" {
		fixtureDir = "."
	}
	set, err := fixture.Load(os.DirFS(fixtureDir), fixtureFile)
	if err != nil {
		return fmt.Errorf("load device fixture: %w", err)
	}
	prober := fixture.NewProber(set)

	templates, err := template.LoadShippedTemplates()
	if err != nil {
		return fmt.Errorf("load shipped interaction profile templates: %w", err)
	}

	compFac := fake.NewFactory(fake.Config{})

	inst, err := instance.New(prober, compFac, instance.Config{
		DefaultIPDMeters:        cfg.System.DefaultIPDMeters,
		ViewConfig:              xrtypes.ViewConfigStereo,
		BlendModes:              []compositor.BlendMode{compositor.BlendOpaque},
		Calibration:             calib,
		Metrics:                 reg,
		LogFrameTiming:          cfg.Session.LogFrameTiming,
		ForceTimelineSemaphores: cfg.Session.ForceTimelineSemaphores,
	}, templates)
	if err != nil {
		return fmt.Errorf("create instance: %w", err)
	}
	logger.Info("instance created", "ipd_meters", cfg.System.DefaultIPDMeters, "devices", len(set.Devices))

	sess, err := inst.CreateSession()
	if err != nil {
		return fmt.Errorf("create demo session: %w", err)
	}
	if err := sess.BeginSession(ctx); err != nil {
		return fmt.Errorf("begin demo session: %w", err)
	}
	if _, _, err := sess.WaitFrame(ctx); err != nil {
		logger.Error("demo waitFrame failed", "error", err)
	}
	logger.Info("demo session running, press Ctrl+C to stop")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	signal.Stop(sigCh)
	logger.Info("shutdown signal received")

	if err := sess.RequestExitSession(); err != nil {
		logger.Error("request exit session failed", "error", err)
	}
	if err := sess.EndSession(ctx); err != nil {
		logger.Error("end session failed", "error", err)
	}
	if err := inst.DestroySession(sess); err != nil {
		logger.Error("destroy session failed", "error", err)
	}
	if err := inst.Destroy(); err != nil {
		logger.Error("destroy instance failed", "error", err)
	}

	if metricsSrv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown error", "error", err)
		}
	}

	return nil
}

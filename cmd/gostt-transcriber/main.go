package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chaz8081/gostt-transcriber/internal/config"
	"github.com/chaz8081/gostt-transcriber/internal/metrics"
	"github.com/chaz8081/gostt-transcriber/internal/models"
	"github.com/chaz8081/gostt-transcriber/internal/store"
	"github.com/chaz8081/gostt-transcriber/internal/transcribe"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const usage = `usage: gostt-transcriber [-config path] <command> [args]

commands:
  transcribe [-model size] <file>     transcribe an audio file with whisper
  analyze <file>                      pitch and loudness report for a file
  recognize <file>                    hosted recognition with offline fallback
  record [-model size]                capture from the microphone, then transcribe
  models download <size>              fetch whisper weights into models_dir
  score <reference.txt> <transcript>  word error rate of a transcript
`

func main() {
	// CLI flags
	configPath := flag.String("config", "", "path to config file (default: ~/.config/gostt-transcriber/model_settings.json)")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	// Load configuration
	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config validation: %v", err)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: config.ParseLogLevel(cfg.LogLevel),
	})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		log.Fatalf("startup: %v", err)
	}

	cmd, args := flag.Arg(0), flag.Args()[1:]
	err = a.run(ctx, cmd, args)
	a.close()

	if err != nil {
		if errors.Is(err, errUsage) {
			flag.Usage()
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads the config from the specified path, or from the default
// path, writing defaults there on first run.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		path = config.DefaultConfigPath()
	}
	cfg, created, err := config.LoadOrCreate(path)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	if created {
		log.Printf("Default config written to %s", path)
	}
	return cfg, nil
}

// app holds the components shared by every subcommand.
type app struct {
	cfg     *config.Config
	metrics *metrics.Metrics
	store   store.Store
	device  models.Device
	cache   *transcribe.ModelCache

	metricsSrv *http.Server
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg, metrics: metrics.New(nil)}

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		a.metricsSrv = &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			if err := a.metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("metrics server failed", "addr", cfg.MetricsAddr, "error", err)
			}
		}()
		slog.Info("metrics endpoint listening", "addr", cfg.MetricsAddr)
	}

	device, err := models.DetectDevice(cfg.Device)
	if err != nil {
		return nil, err
	}
	a.device = device

	st, err := store.Open(ctx, cfg.Store, cfg.RecordsDir())
	if err != nil {
		// Records are optional; the pipelines still run without them.
		slog.Warn("record store unavailable", "backend", cfg.Store.Backend, "error", err)
	}
	a.store = st

	a.cache = transcribe.NewModelCache(transcribe.NewWhisperLoader(cfg.ModelsDir), a.metrics)

	slog.Debug("startup complete", "device", device, "models_dir", cfg.ModelsDir, "storage_dir", cfg.StorageDir)
	return a, nil
}

func (a *app) close() {
	a.cache.Clear()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if a.store != nil {
		if err := a.store.Close(ctx); err != nil {
			slog.Warn("closing record store", "error", err)
		}
	}
	if a.metricsSrv != nil {
		_ = a.metricsSrv.Shutdown(ctx)
	}
}

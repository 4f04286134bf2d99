package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"nnevald/internal/config"
	"nnevald/internal/httpapi"
	"nnevald/internal/nn"
	"nnevald/internal/registry"
	"nnevald/internal/session"
	"nnevald/internal/tablebase"
)

func main() {
	// Flags with environment variable defaults
	defaultAddr := ":8080"
	if v := os.Getenv("NNEVALD_ADDR"); v != "" {
		defaultAddr = v
	}
	defaultDir := "~/networks"
	if v := os.Getenv("NNEVALD_NETWORKS_DIR"); v != "" {
		defaultDir = v
	}
	addr := flag.String("addr", defaultAddr, "HTTP listen address, e.g. :8080")
	networksDir := flag.String("networks-dir", defaultDir, "Directory to scan for *.nnwb weight files")
	maxBatch := flag.Int("max-batch", 0, "Default per-session batch capacity (0=built-in default)")
	tbCache := flag.Int("tablebase-cache", 0, "Tablebase probe cache entries (0=no cache)")
	configPath := flag.String("config", os.Getenv("NNEVALD_CONFIG"), "Optional config file (toml/yaml/json)")
	logLevel := flag.String("log-level", os.Getenv("NNEVALD_LOG_LEVEL"), "Log level: debug, info, error, off")
	flag.Parse()

	logger := newLogger(*logLevel)
	httpapi.SetLogger(logger)

	defPrecision := nn.PrecisionAuto
	defFusion := nn.FusionAuto
	if *configPath != "" {
		cfg, err := config.Load(*configPath)
		if err != nil {
			logger.Fatal().Err(err).Str("path", *configPath).Msg("load config")
		}
		// Flags left at their defaults yield to the config file.
		if cfg.Addr != "" && *addr == defaultAddr {
			*addr = cfg.Addr
		}
		if cfg.NetworksDir != "" && *networksDir == defaultDir {
			*networksDir = cfg.NetworksDir
		}
		if cfg.MaxBatch > 0 && *maxBatch == 0 {
			*maxBatch = cfg.MaxBatch
		}
		if cfg.TablebaseCache > 0 && *tbCache == 0 {
			*tbCache = cfg.TablebaseCache
		}
		if defPrecision, err = nn.ParsePrecision(cfg.Precision); err != nil {
			logger.Fatal().Err(err).Msg("config precision")
		}
		if defFusion, err = nn.ParseFusion(cfg.Fusion); err != nil {
			logger.Fatal().Err(err).Msg("config fusion")
		}
	}
	if *maxBatch < 0 || *maxBatch > nn.MaxBatchLimit {
		logger.Fatal().Int("max_batch", *maxBatch).Msg("max batch out of range")
	}

	reg, err := registry.LoadDir(*networksDir)
	if err != nil {
		logger.Fatal().Err(err).Str("dir", *networksDir).Msg("load networks")
	}

	// Only the noop prober ships today; the cache sits in front of whichever
	// prober is configured.
	var prober tablebase.Prober = tablebase.NoopProber{}
	if *tbCache > 0 {
		prober = tablebase.NewCachedProber(prober, *tbCache)
	}

	table := session.NewTable(session.Config{
		Registry:         reg,
		DefaultMaxBatch:  *maxBatch,
		DefaultPrecision: defPrecision,
		DefaultFusion:    defFusion,
		Events:           session.NewZerologPublisher(logger),
		Tablebase:        prober,
	})
	defer table.Close()

	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	httpapi.SetBaseContext(baseCtx)

	mux := httpapi.NewMux(table)
	srv := &http.Server{Addr: *addr, Handler: mux}

	go func() {
		logger.Info().Str("addr", *addr).Str("networks_dir", *networksDir).
			Int("networks", len(reg)).Msg("nnevald listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	// Graceful shutdown (Ctrl+C / SIGTERM)
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	cancelBase()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown")
	}
}

func newLogger(level string) zerolog.Logger {
	lvl := zerolog.InfoLevel
	switch level {
	case "debug":
		lvl = zerolog.DebugLevel
	case "error":
		lvl = zerolog.ErrorLevel
	case "off":
		lvl = zerolog.Disabled
	}
	return zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger()
}

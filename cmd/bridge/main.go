package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"bsrBridge/internal/app/runtime"
	"bsrBridge/internal/infrastructure/config"
	"bsrBridge/internal/infrastructure/telemetry"
)

const version = "0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	setupLogger(cfg.LogLevel, cfg.LogFormat)

	telemetry.Init()
	shutdownTracing, err := telemetry.InitTracing(cfg.OTLPEndpoint, "bsr-bridge", version)
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdownTracing()

	run, err := runtime.Start(ctx, runtime.Options{Config: cfg, Logger: slog.Default()})
	if err != nil {
		slog.Error("bridge start failed", slog.Any("err", err))
		os.Exit(1)
	}

	<-ctx.Done()

	if err := run.Stop(); err != nil {
		slog.Error("bridge stop failed", slog.Any("err", err))
	}
	slog.Info("bridge apagado")
}

// setupLogger: level=info y format=text por defecto.
func setupLogger(level, format string) {
	lvl := slog.LevelInfo
	unknown := false
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
	default:
		unknown = true
	}

	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	if unknown {
		slog.Warn("unknown LOG_LEVEL, using info", slog.String("value", level))
	}
	slog.Info("logger initialized", slog.String("level", lvl.String()), slog.String("format", format))
}

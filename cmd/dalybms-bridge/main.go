package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"codeberg.org/mutker/dalybms-bridge/internal/battery"
	"codeberg.org/mutker/dalybms-bridge/internal/bus"
	"codeberg.org/mutker/dalybms-bridge/internal/config"
	"codeberg.org/mutker/dalybms-bridge/internal/dalybms"
	"codeberg.org/mutker/dalybms-bridge/internal/errors"
	"codeberg.org/mutker/dalybms-bridge/internal/logger"
	"codeberg.org/mutker/dalybms-bridge/internal/metrics"
	"codeberg.org/mutker/dalybms-bridge/internal/node"
	"codeberg.org/mutker/dalybms-bridge/internal/pid"
	"github.com/spf13/pflag"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.LogLevel, logger.IsService())
	logger.Debug().Str("log_level", cfg.LogLevel).Msg("Config loaded")

	pidFile := pid.New("")
	if err := pidFile.Write(); err != nil {
		var appErr errors.Error
		if errors.As(err, &appErr) {
			logger.FatalWithCode(appErr).Str("pid_file", pidFile.Path()).Msg("Cannot start")
		}
		logger.Fatal().Str("error_code", errors.CodeOf(err).String()).Err(err).Msg("Cannot start")
	}

	err = run(cfg)

	if rmErr := pidFile.Remove(); rmErr != nil {
		logger.Error().Err(rmErr).Msg("Failed to remove PID file")
	}

	if err != nil {
		var appErr errors.Error
		if errors.As(err, &appErr) {
			logger.FatalWithCode(appErr).Msg("Exiting")
		}
		logger.Fatal().Str("error_code", errors.CodeOf(err).String()).Err(err).Msg("Exiting")
	}

	logger.Info().Msg("Exiting...")
}

func run(cfg *config.Config) error {
	errFactory := errors.New()
	log := logger.Default()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	driver := dalybms.New(
		dalybms.WithAddress(cfg.BMSAddress),
		dalybms.WithRetries(cfg.RequestRetries),
		dalybms.WithLogger(log),
	)

	// The metrics service and the node refer to each other: the node records
	// cycle outcomes, the collector reads the node's record on scrape.
	var n *node.Node
	svc, err := metrics.NewService(cfg.MetricsConfig(), metrics.SnapshotFunc(func() battery.Status {
		return n.Snapshot()
	}), log)
	if err != nil {
		return errFactory.Wrap(errors.ErrInitApp, err)
	}

	publisher, err := bus.New(cfg.BusConfig(), log)
	if err != nil {
		return errFactory.Wrap(errors.ErrInitApp, err)
	}

	n = node.New(driver, publisher,
		node.WithLogger(log),
		node.WithRecorder(svc),
		node.WithFrameID(cfg.FrameID),
		node.WithIntervals(cfg.ReadInterval, cfg.PublishInterval),
	)
	n.Configure(cfg.SerialPort)

	if err := n.Connect(); err != nil {
		return errFactory.Wrap(errors.ErrConnectBMS, err)
	}
	defer func() {
		if err := n.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to disconnect from BMS")
		}
	}()

	if err := publisher.Connect(); err != nil {
		return errFactory.Wrap(errors.ErrConnectBus, err)
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close MQTT publisher")
		}
	}()

	if err := svc.Start(ctx); err != nil {
		return errFactory.Wrap(errors.ErrInitApp, err)
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to stop metrics service")
		}
	}()

	go publisher.Run(ctx)

	logger.Info().
		Str("port", n.SerialPort()).
		Str("topic", publisher.Topic()).
		Msg("Bridge started")

	if err := n.Run(ctx); err != nil {
		return errFactory.Wrap(errors.ErrMainLoop, err)
	}

	return nil
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal.")
	cancel()
}

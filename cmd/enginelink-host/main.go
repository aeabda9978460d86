// Command enginelink-host launches the native engine and keeps the IPC
// channel open until interrupted, logging every engine event it receives.
// CLI arguments after "--" are passed through to the engine untouched.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/mediafx/enginelink"
	"github.com/mediafx/enginelink/config"
	"github.com/mediafx/enginelink/logging"
	"github.com/mediafx/enginelink/wire"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "enginelink-host:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", "", "path to YAML config file")
		enginePath = flag.String("engine", "", "engine binary (overrides config)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *enginePath != "" {
		cfg.Engine.Path = *enginePath
	}
	if cfg.Engine.Path == "" {
		return errors.New("no engine binary configured (set --engine or engine.path)")
	}

	log, err := logging.Setup(cfg.Log)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ch, err := enginelink.Open(ctx, enginelink.Options{
		EnginePath:     cfg.Engine.Path,
		EngineArgs:     append(cfg.Engine.Args, flag.Args()...),
		AcceptTimeout:  cfg.Channel.AcceptTimeout,
		Limits:         wire.Limits{MaxFrame: cfg.Channel.MaxFrameBytes},
		DispatchBuffer: cfg.Channel.DispatchBuffer,
		Logger:         log,
	})
	if err != nil {
		return err
	}
	defer ch.Close()

	for _, category := range []string{
		enginelink.CategoryPlayerEvent,
		enginelink.CategoryPlaylistEvent,
		enginelink.CategoryStreamEvent,
		enginelink.CategoryUpdateEvent,
		enginelink.CategoryApplicationEvent,
	} {
		category := category
		ch.Subscribe(category, func(ev *wire.Envelope) {
			log.Info("engine event",
				zap.String("category", category),
				zap.Int("payload_bytes", len(ev.Payload)))
		})
	}

	log.Info("engine link open", zap.String("engine", cfg.Engine.Path))

	select {
	case <-ctx.Done():
		log.Info("shutting down")
		return nil
	case <-ch.Done():
		err := ch.Err()
		if errors.Is(err, enginelink.ErrEngineExited) {
			// Connection loss is distinct from an ordinary failure so the
			// caller can prompt for a restart.
			return fmt.Errorf("engine connection lost: %w", err)
		}
		return err
	}
}

// gpio-debounce blinks an LED while toggled by a debounced push button.
//
// The button is an input, the LED an output. Each debounced edge on the
// button starts or stops the blinker.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/yvesf/pigpio-tool/cmd"
	"github.com/yvesf/pigpio-tool/pkg/blinker"
	"github.com/yvesf/pigpio-tool/pkg/config"
	"github.com/yvesf/pigpio-tool/pkg/localgpio"
	"github.com/yvesf/pigpio-tool/pkg/pigpio"
)

var (
	flagConfig = flag.String("config", "", "TOML config file")
	flagButton = flag.Int("button", -1, "Button gpio, overrides the config")
	flagLED    = flag.Int("led", -1, "LED gpio, overrides the config")
	flagLocal  = flag.Bool("local", false, "Drive the local gpio chip instead of pigpiod")
)

var errDaemonGone = errors.New("pigpiod connection lost")

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cmd.CommonInit(ctx)
	if err := run(ctx); err != nil {
		log.Error().Err(err).Msg("failed")
		os.Exit(1)
	}
	log.Info().Msg("shutdown")
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(*flagConfig)
	if err != nil {
		return cfg, err
	}
	if *flagConfig == "" || cmd.AddressSet() {
		cfg.Address = cmd.Address()
	}
	if *flagButton >= 0 {
		cfg.Button = uint(*flagButton)
	}
	if *flagLED >= 0 {
		cfg.LED = uint(*flagLED)
	}
	return cfg, cfg.Validate()
}

func run(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var (
		board pigpio.Board
		lost  <-chan struct{}
	)
	if *flagLocal {
		chip, err := localgpio.Open(cfg.Chip)
		if err != nil {
			return err
		}
		board = chip
	} else {
		client := cmd.Connect(ctx, cfg.Address)
		board = client
		lost = client.Done()
	}
	defer board.Close()

	b := blinker.New(board, cfg.LED, cfg.BlinkPeriod.Duration)
	defer b.Stop()

	if _, err := subscribe(ctx, board, cfg, b); err != nil {
		return err
	}
	log.Info().Uint("button", cfg.Button).Uint("led", cfg.LED).Msg("waiting for button presses")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		select {
		case <-lost:
			return errDaemonGone
		case <-gctx.Done():
			return nil
		}
	})
	return g.Wait()
}

// subscribe configures both pins and registers the button handler.
func subscribe(ctx context.Context, board pigpio.Board, cfg config.Config, b *blinker.Blinker) (*pigpio.Callback, error) {
	edge, err := cfg.ParsedEdge()
	if err != nil {
		return nil, err
	}
	pull, err := cfg.ParsedPull()
	if err != nil {
		return nil, err
	}

	if err := board.SetMode(ctx, cfg.Button, pigpio.ModeInput); err != nil {
		return nil, fmt.Errorf("failed to configure button gpio %d: %w", cfg.Button, err)
	}
	if pull != pigpio.PullOff {
		if err := board.SetPullUpDown(ctx, cfg.Button, pull); err != nil {
			return nil, fmt.Errorf("failed to set pull %v on gpio %d: %w", pull, cfg.Button, err)
		}
	}
	if err := board.SetMode(ctx, cfg.LED, pigpio.ModeOutput); err != nil {
		return nil, fmt.Errorf("failed to configure led gpio %d: %w", cfg.LED, err)
	}

	handler := onButton(ctx, b)
	if cfg.Debounce.Duration > 0 {
		handler = pigpio.Debounce(cfg.Debounce.Duration, handler)
	}
	cb, err := board.AddCallback(ctx, cfg.Button, edge, handler)
	if err != nil {
		return nil, fmt.Errorf("failed to watch button: %w", err)
	}
	return cb, nil
}

func onButton(ctx context.Context, b *blinker.Blinker) pigpio.CallbackFunc {
	return func(gpio uint, level pigpio.Level, tick uint32) {
		log.Info().Uint("gpio", gpio).Stringer("level", level).Uint32("tick", tick).Msg("on_input")
		if level == pigpio.Timeout {
			return
		}
		b.Toggle(ctx)
	}
}

// gpio-write drives a single output, holds the level and exits.
//
//	gpio-write [-hold 3s] [-local] <gpio> <level>
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/yvesf/pigpio-tool/cmd"
	"github.com/yvesf/pigpio-tool/pkg/config"
	"github.com/yvesf/pigpio-tool/pkg/localgpio"
	"github.com/yvesf/pigpio-tool/pkg/pigpio"
	"github.com/yvesf/pigpio-tool/pkg/timemock"
)

var (
	flagHold  = flag.Duration("hold", 3*time.Second, "How long to keep the level before exiting")
	flagLocal = flag.Bool("local", false, "Drive the local gpio chip instead of pigpiod")
	flagChip  = flag.String("chip", config.Default().Chip, "gpio chip used with -local")
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cmd.CommonInit(ctx)
	gpio, level, err := parseArgs(flag.Args())
	if err != nil {
		log.Fatal().Err(err).Msg("usage: gpio-write [flags] <gpio> <level>")
	}

	var board pigpio.Board
	if *flagLocal {
		board, err = localgpio.Open(*flagChip)
		if err != nil {
			log.Fatal().Err(err).Str("chip", *flagChip).Msg("failed to open gpio chip")
		}
	} else {
		board = cmd.Connect(ctx, cmd.Address())
	}
	defer board.Close()

	if err := hold(ctx, board, gpio, level, *flagHold); err != nil {
		log.Error().Err(err).Msg("failed")
		return
	}
	log.Info().Uint("gpio", gpio).Stringer("level", level).Msg("released")
}

func parseArgs(args []string) (uint, pigpio.Level, error) {
	if len(args) != 2 {
		return 0, 0, fmt.Errorf("expected 2 arguments, got %d", len(args))
	}
	gpio, err := strconv.ParseUint(args[0], 10, 8)
	if err != nil || gpio > pigpio.MaxGPIO {
		return 0, 0, fmt.Errorf("invalid gpio %q", args[0])
	}
	level, err := pigpio.ParseLevel(args[1])
	if err != nil {
		return 0, 0, err
	}
	return uint(gpio), level, nil
}

// hold switches gpio to output, writes level and waits for d or ctx.
func hold(ctx context.Context, board pigpio.Board, gpio uint, level pigpio.Level, d time.Duration) error {
	if err := board.SetMode(ctx, gpio, pigpio.ModeOutput); err != nil {
		return fmt.Errorf("set mode of gpio %d: %w", gpio, err)
	}
	if err := board.Write(ctx, gpio, level); err != nil {
		return fmt.Errorf("write gpio %d: %w", gpio, err)
	}
	log.Info().Uint("gpio", gpio).Stringer("level", level).Dur("hold", d).Msg("written")

	select {
	case <-ctx.Done():
	case <-timemock.After(d):
	}
	return nil
}

// pigs-shell is an interactive shell for pigpiod.
//
// Arguments are executed as a single command, without arguments a
// prompt is started.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/google/shlex"
	"github.com/peterh/liner"
	"github.com/rs/zerolog/log"

	"github.com/yvesf/pigpio-tool/cmd"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cmd.CommonInit(ctx)

	client := cmd.Connect(ctx, cmd.Address())
	defer func() {
		if err := client.Close(); err != nil {
			log.Error().Err(err).Msg("close failed")
		}
	}()
	s := newShell(client, os.Stdout)

	// if arguments passed then execute as command
	if args := flag.Args(); len(args) > 0 {
		if err := execute(ctx, s, args); err != nil {
			log.Error().Err(err).Msg("failed")
		}
		return
	}

	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)
	line.SetCompleter(func(line string) (c []string) {
		for _, comm := range commands {
			if strings.HasPrefix(comm.command, line) {
				c = append(c, comm.command)
			}
		}
		return c
	})

	for ctx.Err() == nil {
		if response, err := line.Prompt("pigs> "); err == nil {
			inputTokens, err := shlex.Split(response)
			if err != nil {
				log.Error().Err(err).Msg("failed to parse input")
				continue
			}
			if len(inputTokens) == 0 {
				continue
			}
			if len(inputTokens) == 1 && inputTokens[0] == `quit` {
				cancel()
				break
			}
			err = execute(ctx, s, inputTokens)
			if err != nil {
				fmt.Printf("Error: %v\n", err)
			}
			if err == nil {
				line.AppendHistory(response)
			}
			if client.Err() != nil {
				log.Error().Err(client.Err()).Msg("pigpiod connection lost")
				break
			}
		} else if errors.Is(err, liner.ErrPromptAborted) {
			fmt.Printf("Send EOF (CTRL-D) or execute 'quit' to exit\n")
			continue
		} else if errors.Is(err, io.EOF) {
			fmt.Printf("\n")
			cancel()
			break
		} else {
			log.Error().Err(err).Msg("error reading line")
		}
	}
	log.Info().Msg("start shutdown")
}

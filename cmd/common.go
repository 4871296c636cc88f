package cmd

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/bsm/openmetrics"
	"github.com/bsm/openmetrics/omhttp"
	"github.com/mattn/go-colorable"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/yvesf/pigpio-tool/pkg/pigpio"
)

var (
	flagAddress     = flag.String("address", DefaultAddress(), "host:port of pigpiod (env PIGPIO_ADDR, PIGPIO_PORT)")
	flagTimeout     = flag.Duration("timeout", pigpio.DefaultTimeout, "Timeout of a single pigpiod command")
	flagDebug       = flag.Bool("debug", false, "Set log level to debug")
	flagTrace       = flag.Bool("trace", false, "Set log level to trace (overrides -debug)")
	flagMetricsHTTP = flag.String("metricsHTTP", "", "Address of a http server serving metrics under /metrics")
)

// DefaultAddress follows the environment variables of the pigpio tools.
func DefaultAddress() string {
	host := os.Getenv("PIGPIO_ADDR")
	if host == "" {
		host = "localhost"
	}
	port := os.Getenv("PIGPIO_PORT")
	if port == "" {
		port = "8888"
	}
	return net.JoinHostPort(host, port)
}

// Address returns the -address flag, flag.Parse must have been called.
func Address() string {
	return *flagAddress
}

// AddressSet reports whether -address was given on the command line.
func AddressSet() bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "address" {
			set = true
		}
	})
	return set
}

// CommonInit parses the flags and sets up logging and the metrics endpoint.
func CommonInit(ctx context.Context) {
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *flagDebug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	if *flagTrace {
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        colorable.NewColorable(os.Stderr),
		TimeFormat: time.RFC3339,
	})

	// Metrics HTTP endpoint
	if *flagMetricsHTTP != `` {
		mux := http.NewServeMux()
		mux.Handle("/metrics", omhttp.NewHandler(openmetrics.DefaultRegistry()))

		var lc net.ListenConfig
		ln, err := lc.Listen(ctx, "tcp", *flagMetricsHTTP)
		if err != nil {
			log.Fatal().Err(err).Str("addr", *flagMetricsHTTP).Msg("Listen on http failed")
		}

		srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			err := srv.Serve(ln)
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatal().Err(err).Msg("http server failed")
			}
		}()
		go func() {
			<-ctx.Done()
			_ = srv.Close()
		}()
	}
}

// Connect opens the pigpiod connection at address or exits.
func Connect(ctx context.Context, address string) *pigpio.Client {
	client, err := pigpio.Connect(ctx, address, pigpio.WithTimeout(*flagTimeout))
	if err != nil {
		log.Fatal().Err(err).Str("address", address).Msg("failed to connect to pigpiod")
	}
	log.Info().Str("address", address).Msg("connected")
	return client
}

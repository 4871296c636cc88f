package pigpio

import "github.com/bsm/openmetrics"

var (
	metricCommands = openmetrics.DefaultRegistry().Counter(openmetrics.Desc{
		Name:   "pigpio_commands",
		Help:   "Commands sent to pigpiod",
		Labels: []string{"cmd"},
	})
	metricCommandErrors = openmetrics.DefaultRegistry().Counter(openmetrics.Desc{
		Name:   "pigpio_command_errors",
		Help:   "Commands that failed with an error code or an i/o error",
		Labels: []string{"cmd"},
	})
	metricNotifications = openmetrics.DefaultRegistry().Counter(openmetrics.Desc{
		Name: "pigpio_notifications",
		Help: "Reports received on the notification socket",
	})
	metricCallbacks = openmetrics.DefaultRegistry().Counter(openmetrics.Desc{
		Name:   "pigpio_callbacks",
		Help:   "Callback invocations",
		Labels: []string{"gpio"},
	})
)

// config loads the optional TOML file of the gpio tools.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/yvesf/pigpio-tool/pkg/pigpio"
)

// Duration decodes "200ms" style strings.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

type Config struct {
	Address     string   `toml:"address"`
	Chip        string   `toml:"chip"`
	Button      uint     `toml:"button"`
	LED         uint     `toml:"led"`
	BlinkPeriod Duration `toml:"blink_period"`
	Debounce    Duration `toml:"debounce"`
	Edge        string   `toml:"edge"`
	Pull        string   `toml:"pull"`
}

func Default() Config {
	return Config{
		Address:     "localhost:8888",
		Chip:        "gpiochip0",
		Button:      18,
		LED:         21,
		BlinkPeriod: Duration{200 * time.Millisecond},
		Debounce:    Duration{pigpio.DefaultDebounce},
		Edge:        "rising",
		Pull:        "off",
	}
}

// Load reads path on top of the defaults. An empty path returns the
// defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %v: %w", path, err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	var errs []error
	if c.Button > pigpio.MaxUserGPIO {
		errs = append(errs, fmt.Errorf("button gpio %d not 0-%d", c.Button, pigpio.MaxUserGPIO))
	}
	if c.LED > pigpio.MaxGPIO {
		errs = append(errs, fmt.Errorf("led gpio %d not 0-%d", c.LED, pigpio.MaxGPIO))
	}
	if c.BlinkPeriod.Duration <= 0 {
		errs = append(errs, errors.New("blink_period must be positive"))
	}
	if c.Debounce.Duration < 0 {
		errs = append(errs, errors.New("debounce must not be negative"))
	}
	if _, err := c.ParsedEdge(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.ParsedPull(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil
	}
	msg := "invalid config:"
	for _, e := range errs {
		msg += " " + e.Error() + ";"
	}
	return errors.New(msg[:len(msg)-1])
}

func (c Config) ParsedEdge() (pigpio.Edge, error) {
	return pigpio.ParseEdge(c.Edge)
}

func (c Config) ParsedPull() (pigpio.Pull, error) {
	return pigpio.ParsePull(c.Pull)
}

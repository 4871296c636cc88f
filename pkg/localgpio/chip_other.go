//go:build !linux

package localgpio

import (
	"context"

	"github.com/yvesf/pigpio-tool/pkg/pigpio"
)

// Chip is a stub for platforms without the GPIO character device.
type Chip struct{}

var _ pigpio.Board = (*Chip)(nil)

func Open(string) (*Chip, error) {
	return nil, ErrNotSupported
}

func (c *Chip) SetMode(context.Context, uint, pigpio.Mode) error {
	return ErrNotSupported
}

func (c *Chip) SetPullUpDown(context.Context, uint, pigpio.Pull) error {
	return ErrNotSupported
}

func (c *Chip) Read(context.Context, uint) (pigpio.Level, error) {
	return 0, ErrNotSupported
}

func (c *Chip) Write(context.Context, uint, pigpio.Level) error {
	return ErrNotSupported
}

func (c *Chip) AddCallback(context.Context, uint, pigpio.Edge, pigpio.CallbackFunc) (*pigpio.Callback, error) {
	return nil, ErrNotSupported
}

func (c *Chip) Close() error {
	return nil
}

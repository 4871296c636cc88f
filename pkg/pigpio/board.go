package pigpio

import "context"

// Board is the set of pin operations the tools need. It is implemented by
// Client and by local GPIO backends.
type Board interface {
	SetMode(ctx context.Context, gpio uint, mode Mode) error
	SetPullUpDown(ctx context.Context, gpio uint, pull Pull) error
	Read(ctx context.Context, gpio uint) (Level, error)
	Write(ctx context.Context, gpio uint, level Level) error
	AddCallback(ctx context.Context, gpio uint, edge Edge, fn CallbackFunc) (*Callback, error)
	Close() error
}

var _ Board = (*Client)(nil)

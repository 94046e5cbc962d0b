package machine

import (
	"context"

	"github.com/mastercactapus/odorrig/motor"
)

// An Adapter represents the minimal motor controller interface.
type Adapter interface {
	SendAndAwait(ctx context.Context, cmd motor.Command, token string) error
	GetPosition(ctx context.Context) (int64, error)
	SetPosition(ctx context.Context, pos int64) (string, error)
	EmergencyStop() error
}

var _ Adapter = &motor.Conn{}

package engine

import (
	"context"

	"github.com/docker/docker/api/types/container"
)

// Ops is the set of engine operations the rest of the dispatcher depends
// on. It exists so tests can substitute a fake engine without a real
// container daemon; *Client is the only production implementation.
type Ops interface {
	Ping(ctx context.Context) error
	Create(ctx context.Context, name string, platform *string, cfg *container.Config, namespace string) (*CreateResult, error)
	Start(ctx context.Context, name string) error
	Inspect(ctx context.Context, name string) (*InspectResult, error)
	Get(ctx context.Context, name string, namespace string) (*Summary, error)
	CountActive(ctx context.Context, namespace string) (int, error)
	GetPending(ctx context.Context, namespace string) ([]Summary, error)
	GetExited(ctx context.Context, namespace string) ([]Summary, error)
	Remove(ctx context.Context, name string) error
	Events(ctx context.Context, namespace string) (<-chan Event, <-chan error)
}

var _ Ops = (*Client)(nil)

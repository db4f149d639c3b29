package store

import (
	"context"

	"github.com/OFFIS-RIT/mt2n/pkg/common"
)

// GraphStorage persists finished graphs. Every graph is stored under its
// RunID; saving is all or nothing.
type GraphStorage interface {
	SaveGraph(ctx context.Context, g *common.Graph) error
}

// RunLocker runs fn while no other process works on the same run id.
type RunLocker interface {
	WithRunLock(ctx context.Context, runID string, fn func(ctx context.Context) error) error
}

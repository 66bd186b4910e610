package store

import (
	"context"

	"github.com/yuzuleung/sun-visualization/internal/sun"
)

// ResolveRoster returns the cached roster when it is still live. Otherwise it
// builds one from source and caches it. fromCache reports which path was taken.
func (c *DatasetCache) ResolveRoster(ctx context.Context, source func() []sun.City) (roster sun.Roster, fromCache bool) {
	if r, ok := c.GetRoster(ctx); ok && len(r.Cities) > 0 {
		return r, true
	}
	roster = sun.NewRoster(source())
	if err := c.PutRoster(ctx, roster); err != nil {
		c.logger.Warn("failed to cache roster", "error", err)
	}
	return roster, false
}

package main

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/solar-router/internal/config"
	"github.com/sells-group/solar-router/internal/inventory"
	"github.com/sells-group/solar-router/internal/qualify"
)

// engineEnv holds the inventory store and qualification engine shared by
// the qualify, batch and serve commands.
type engineEnv struct {
	Store  inventory.Store
	Engine *qualify.Engine
}

// Close releases the inventory connection.
func (e *engineEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEngine validates cfg for mode, opens the inventory and builds the
// engine. Callers should defer env.Close().
func initEngine(ctx context.Context, c *config.Config, mode string) (*engineEnv, error) {
	if err := c.Validate(mode); err != nil {
		return nil, err
	}

	st, err := openInventory(ctx, c)
	if err != nil {
		return nil, err
	}

	engine, err := qualify.Build(c, st)
	if err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "build engine")
	}

	return &engineEnv{Store: st, Engine: engine}, nil
}

// openInventory opens the configured store. The memory driver starts empty,
// so it is seeded from the platform file on every start; persistent drivers
// are seeded with "inventory seed".
func openInventory(ctx context.Context, c *config.Config) (inventory.Store, error) {
	st, err := inventory.Open(ctx, c.Inventory)
	if err != nil {
		return nil, eris.Wrap(err, "open inventory")
	}

	if isMemoryDriver(c.Inventory.Driver) {
		if _, err := inventory.Seed(ctx, st, c.Reference.PlatformsPath); err != nil {
			_ = st.Close()
			return nil, err
		}
		return st, nil
	}

	zap.L().Info("inventory store opened", zap.String("driver", c.Inventory.Driver))
	return st, nil
}

func isMemoryDriver(driver string) bool {
	return driver == "" || strings.EqualFold(driver, inventory.DriverMemory)
}

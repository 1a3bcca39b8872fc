package patcher

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/udisondev/urnpatch/internal/config"
	"github.com/udisondev/urnpatch/internal/data"
	"github.com/udisondev/urnpatch/internal/regionmap"
)

// LoadHandlers builds one handler per configured worldspace.
// Metadata files are read concurrently; maps are then parsed one by one in
// config order so form IDs are allocated deterministically.
func LoadHandlers(ctx context.Context, worldspaces []config.WorldspaceConfig, ids regionmap.FormKeyAllocator, opts ...regionmap.Option) ([]*Handler, error) {
	tables := make([]*data.RegionTable, len(worldspaces))

	g, gctx := errgroup.WithContext(ctx)
	for i, ws := range worldspaces {
		if ws.RegionFile == "" {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			table, err := data.LoadRegionTable(ws.RegionFile)
			if err != nil {
				return fmt.Errorf("worldspace %s: %w", ws.Name, err)
			}
			tables[i] = table
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	handlers := make([]*Handler, 0, len(worldspaces))
	for i, ws := range worldspaces {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		m, err := regionmap.ParseFile(ws.MapFile, ws.FormKey, tables[i], ids, opts...)
		if err != nil {
			return nil, fmt.Errorf("worldspace %s: %w", ws.Name, err)
		}
		handlers = append(handlers, NewHandler(ws.Name, m))
	}

	return handlers, nil
}

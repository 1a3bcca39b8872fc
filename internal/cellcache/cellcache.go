// Package cellcache publishes parsed cell indexes to Redis so other tools can
// resolve cell → regions without parsing map files.
//
// Layout per worldspace (prefix defaults to "urn"):
//
//	<prefix>:<worldspace>:cells    hash  "x,y" → ["000800:Patch.esp","000801:Patch.esp"]
//	<prefix>:<worldspace>:regions  hash  editor ID → form key
package cellcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/udisondev/urnpatch/internal/config"
	"github.com/udisondev/urnpatch/internal/model"
	"github.com/udisondev/urnpatch/internal/regionmap"
)

// Cache writes and reads cell indexes in Redis.
type Cache struct {
	rdb    *redis.Client
	prefix string
}

// New creates a Cache over an existing client.
func New(rdb *redis.Client, prefix string) *Cache {
	if prefix == "" {
		prefix = "urn"
	}
	return &Cache{rdb: rdb, prefix: prefix}
}

// Open connects to Redis using cfg and pings it.
func Open(ctx context.Context, cfg config.RedisConfig) (*Cache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close() //nolint:errcheck
		return nil, fmt.Errorf("pinging redis %s: %w", cfg.Addr, err)
	}
	return New(rdb, cfg.KeyPrefix), nil
}

// Close closes the underlying client.
func (c *Cache) Close() error {
	return c.rdb.Close()
}

// CellsKey returns the hash key holding the cell index of worldspace.
func (c *Cache) CellsKey(worldspace model.FormKey) string {
	return c.prefix + ":" + worldspace.String() + ":cells"
}

// RegionsKey returns the hash key holding editor ID → form key of worldspace.
func (c *Cache) RegionsKey(worldspace model.FormKey) string {
	return c.prefix + ":" + worldspace.String() + ":regions"
}

// SaveRegionMap replaces the cached index of the map's worldspace atomically
// (MULTI/EXEC pipeline).
func (c *Cache) SaveRegionMap(ctx context.Context, m *regionmap.RegionMap) error {
	ws := m.Worldspace()
	cellsKey, regionsKey := c.CellsKey(ws), c.RegionsKey(ws)

	cells := make(map[string]any, m.CellCount())
	for _, p := range m.Cells() {
		val, err := EncodeFormKeys(RegionFormKeys(m.Lookup(p)))
		if err != nil {
			return fmt.Errorf("cell %v of %s: %w", p, ws, err)
		}
		cells[CellField(p)] = val
	}
	all := m.Regions()
	regions := make(map[string]any, len(all))
	for _, rg := range all {
		regions[rg.EditorID()] = rg.FormKey().String()
	}

	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, cellsKey, regionsKey)
		if len(cells) > 0 {
			pipe.HSet(ctx, cellsKey, cells)
		}
		if len(regions) > 0 {
			pipe.HSet(ctx, regionsKey, regions)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("caching cells of %s: %w", ws, err)
	}

	slog.Info("cell index cached", "worldspace", ws.String(), "cells", len(cells), "key", cellsKey)
	return nil
}

// Lookup returns the cached region form keys of a cell; nil when the cell is
// not cached.
func (c *Cache) Lookup(ctx context.Context, worldspace model.FormKey, p regionmap.Point) ([]model.FormKey, error) {
	val, err := c.rdb.HGet(ctx, c.CellsKey(worldspace), CellField(p)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading cell %v of %s: %w", p, worldspace, err)
	}
	return DecodeFormKeys(val)
}

// FormKeyOf returns the cached form key of an editor ID.
func (c *Cache) FormKeyOf(ctx context.Context, worldspace model.FormKey, editorID string) (model.FormKey, bool, error) {
	val, err := c.rdb.HGet(ctx, c.RegionsKey(worldspace), editorID).Result()
	if errors.Is(err, redis.Nil) {
		return model.NullFormKey, false, nil
	}
	if err != nil {
		return model.NullFormKey, false, fmt.Errorf("reading region %s of %s: %w", editorID, worldspace, err)
	}
	k, err := model.ParseFormKey(val)
	if err != nil {
		return model.NullFormKey, false, err
	}
	return k, true, nil
}

// CellField formats a cell coordinate as a hash field: "x,y".
func CellField(p regionmap.Point) string {
	return strconv.Itoa(int(p.X)) + "," + strconv.Itoa(int(p.Y))
}

// EncodeFormKeys encodes form keys as a JSON array of "ID:Plugin" strings,
// keeping order. Plugin names may contain any separator character.
func EncodeFormKeys(keys []model.FormKey) (string, error) {
	if keys == nil {
		keys = []model.FormKey{}
	}
	b, err := json.Marshal(keys)
	if err != nil {
		return "", fmt.Errorf("encoding form keys: %w", err)
	}
	return string(b), nil
}

// RegionFormKeys returns the form keys of regions, in order.
func RegionFormKeys(regions []*regionmap.Region) []model.FormKey {
	keys := make([]model.FormKey, len(regions))
	for i, rg := range regions {
		keys[i] = rg.FormKey()
	}
	return keys
}

// DecodeFormKeys parses a value written by EncodeFormKeys.
func DecodeFormKeys(s string) ([]model.FormKey, error) {
	keys := []model.FormKey{}
	if err := json.Unmarshal([]byte(s), &keys); err != nil {
		return nil, fmt.Errorf("decoding form keys %q: %w", s, err)
	}
	return keys, nil
}

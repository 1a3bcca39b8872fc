package db

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/udisondev/urnpatch/internal/model"
	"github.com/udisondev/urnpatch/internal/regionmap"
	"github.com/udisondev/urnpatch/internal/world"
)

// RegionRepository stores parsed region maps in PostgreSQL.
type RegionRepository struct {
	pool *pgxpool.Pool
}

// NewRegionRepository creates a new region repository.
func NewRegionRepository(pool *pgxpool.Pool) *RegionRepository {
	return &RegionRepository{pool: pool}
}

// RegionRow is the DB transfer object for a region header.
type RegionRow struct {
	FormKey     model.FormKey
	Worldspace  model.FormKey
	EditorID    string
	DisplayName string
	Color       model.Color
	Priority    uint8
	Flags       regionmap.DataFlags
}

// SaveRegionMap replaces everything stored for the map's worldspace with the
// map's regions, areas, points and cell links, in one transaction.
func (r *RegionRepository) SaveRegionMap(ctx context.Context, m *regionmap.RegionMap) error {
	worldspace := m.Worldspace().String()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	// Каскадно удаляет areas/points/cells старых регионов этого worldspace.
	if _, err := tx.Exec(ctx, `DELETE FROM region_cells WHERE worldspace = $1`, worldspace); err != nil {
		return fmt.Errorf("delete cells of %s: %w", worldspace, err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM regions WHERE worldspace = $1`, worldspace); err != nil {
		return fmt.Errorf("delete regions of %s: %w", worldspace, err)
	}

	regions := m.Regions()
	if len(regions) > 0 {
		batch := &pgx.Batch{}
		for _, rg := range regions {
			batch.Queue(
				`INSERT INTO regions
				 (plugin, form_id, worldspace, editor_id, display_name, color, priority, flags)
				 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
				rg.FormKey().Mod, int32(rg.FormKey().ID), worldspace, rg.EditorID(),
				rg.DisplayName(), rg.Color().Hex(), int16(rg.Priority()), int16(rg.Flags()),
			)
		}
		br := tx.SendBatch(ctx, batch)
		for _, rg := range regions {
			if _, err := br.Exec(); err != nil {
				br.Close() //nolint:errcheck
				return fmt.Errorf("insert region %s: %w", rg.EditorID(), err)
			}
		}
		if err := br.Close(); err != nil {
			return fmt.Errorf("close region batch: %w", err)
		}
	}

	var areaRows, pointRows [][]any
	for _, rg := range regions {
		key := rg.FormKey()
		for ai, area := range rg.Areas() {
			areaRows = append(areaRows, []any{key.Mod, int32(key.ID), int16(ai), int32(area.EdgeFallOff)})
			for pi, pt := range area.Points {
				pointRows = append(pointRows, []any{key.Mod, int32(key.ID), int16(ai), int32(pi), pt.X, pt.Y})
			}
		}
	}

	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"region_areas"},
		[]string{"plugin", "form_id", "area_index", "edge_fall_off"},
		pgx.CopyFromRows(areaRows),
	); err != nil {
		return fmt.Errorf("copy region areas of %s: %w", worldspace, err)
	}

	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"region_points"},
		[]string{"plugin", "form_id", "area_index", "point_index", "x", "y"},
		pgx.CopyFromRows(pointRows),
	); err != nil {
		return fmt.Errorf("copy region points of %s: %w", worldspace, err)
	}

	var cellRows [][]any
	for _, c := range m.Cells() {
		for pos, rg := range m.Lookup(c) {
			cellRows = append(cellRows, []any{worldspace, c.X, c.Y, int16(pos), rg.FormKey().Mod, int32(rg.FormKey().ID)})
		}
	}

	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"region_cells"},
		[]string{"worldspace", "cell_x", "cell_y", "position", "plugin", "form_id"},
		pgx.CopyFromRows(cellRows),
	); err != nil {
		return fmt.Errorf("copy region cells of %s: %w", worldspace, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit region map of %s: %w", worldspace, err)
	}

	slog.Info("region map saved",
		"worldspace", worldspace,
		"regions", len(regions),
		"points", len(pointRows),
		"cell_links", len(cellRows),
	)
	return nil
}

// FormKeyReserver accepts the keys regions already own.
// Declared in the consuming package per Go interface conventions.
type FormKeyReserver interface {
	Mod() string
	Reserve(worldspace model.FormKey, editorID string, key model.FormKey) error
}

// Compile-time check.
var _ FormKeyReserver = (*world.FormIDAllocator)(nil)

// ReserveFormKeys hands every stored region key of the reserver's plugin to
// it, so regions keep their form IDs between runs. Returns the number of
// reserved keys.
func (r *RegionRepository) ReserveFormKeys(ctx context.Context, ids FormKeyReserver) (int, error) {
	plugin := ids.Mod()
	rows, err := r.pool.Query(ctx,
		`SELECT worldspace, editor_id, form_id FROM regions
		 WHERE plugin = $1 ORDER BY form_id`, plugin)
	if err != nil {
		return 0, fmt.Errorf("query form keys of %s: %w", plugin, err)
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		var (
			worldspace string
			editorID   string
			formID     int32
		)
		if err := rows.Scan(&worldspace, &editorID, &formID); err != nil {
			return n, fmt.Errorf("scan form key row: %w", err)
		}
		ws, err := model.ParseFormKey(worldspace)
		if err != nil {
			return n, fmt.Errorf("region %s: worldspace: %w", editorID, err)
		}
		if err := ids.Reserve(ws, editorID, model.NewFormKey(uint32(formID), plugin)); err != nil {
			return n, fmt.Errorf("region %s in %s: %w", editorID, ws, err)
		}
		n++
	}
	if err := rows.Err(); err != nil {
		return n, fmt.Errorf("iterate form key rows: %w", err)
	}

	slog.Debug("stored form keys reserved", "plugin", plugin, "count", n)
	return n, nil
}

// LoadRegions returns the stored region headers of worldspace, ordered by form ID.
func (r *RegionRepository) LoadRegions(ctx context.Context, worldspace model.FormKey) ([]RegionRow, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT plugin, form_id, editor_id, display_name, color, priority, flags
		 FROM regions WHERE worldspace = $1 ORDER BY form_id`, worldspace.String())
	if err != nil {
		return nil, fmt.Errorf("query regions of %s: %w", worldspace, err)
	}
	defer rows.Close()

	var result []RegionRow
	for rows.Next() {
		var (
			row      RegionRow
			formID   int32
			color    string
			priority int16
			flags    int16
		)
		if err := rows.Scan(&row.FormKey.Mod, &formID, &row.EditorID, &row.DisplayName, &color, &priority, &flags); err != nil {
			return nil, fmt.Errorf("scan region row: %w", err)
		}
		row.FormKey.ID = uint32(formID)
		row.Worldspace = worldspace
		row.Priority = uint8(priority)
		row.Flags = regionmap.DataFlags(flags)
		if row.Color, err = model.ParseColor(color); err != nil {
			return nil, fmt.Errorf("region %s: %w", row.EditorID, err)
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate region rows: %w", err)
	}
	return result, nil
}

// LoadCells returns the stored cell → region links of worldspace, each list
// in its original order.
func (r *RegionRepository) LoadCells(ctx context.Context, worldspace model.FormKey) (map[regionmap.Point][]model.FormKey, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT cell_x, cell_y, plugin, form_id
		 FROM region_cells WHERE worldspace = $1
		 ORDER BY cell_y, cell_x, position`, worldspace.String())
	if err != nil {
		return nil, fmt.Errorf("query cells of %s: %w", worldspace, err)
	}
	defer rows.Close()

	cells := make(map[regionmap.Point][]model.FormKey)
	for rows.Next() {
		var (
			p      regionmap.Point
			plugin string
			formID int32
		)
		if err := rows.Scan(&p.X, &p.Y, &plugin, &formID); err != nil {
			return nil, fmt.Errorf("scan cell row: %w", err)
		}
		cells[p] = append(cells[p], model.NewFormKey(uint32(formID), plugin))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cell rows: %w", err)
	}
	return cells, nil
}

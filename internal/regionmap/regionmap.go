// Package regionmap parses worldspace region map files and indexes the
// regions they declare by cell coordinate.
//
// A map file has two INI-like sections:
//
//	[RegionAreas]
//	Forest = [(1,1)(2,2)(3,1)]
//
//	[HoldMap]
//	(1,1) = ["Forest"]
//
// RegionAreas declares every region polygon in cell units; HoldMap assigns
// declared regions to cells. A HoldMap entry may only name regions that
// RegionAreas declares.
package regionmap

import (
	"cmp"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"slices"

	"github.com/udisondev/urnpatch/internal/model"
)

// MetadataSource supplies display metadata for regions.
// Declared in the consuming package per Go interface conventions.
type MetadataSource interface {
	// RegionInfo looks the editor ID up case-insensitively.
	RegionInfo(editorID string) (RegionInfo, bool)
}

// FormKeyAllocator hands out region identifiers. The same worldspace and
// editor ID must resolve to the same key every time.
type FormKeyAllocator interface {
	FormKeyFor(worldspace model.FormKey, editorID string) (model.FormKey, error)
}

// Option configures Parse.
type Option func(*parser)

// WithLogger sets the logger that receives parse warnings.
func WithLogger(l *slog.Logger) Option {
	return func(p *parser) {
		if l != nil {
			p.log = l
		}
	}
}

// RegionMap is the parsed content of one map file.
// It is immutable once Parse returns and safe for concurrent readers.
type RegionMap struct {
	worldspace model.FormKey
	regions    []*Region
	byEditorID map[string]*Region
	cells      map[Point][]*Region
}

// Parse reads a map document and builds the RegionMap of worldspace.
// meta may be nil, in which case every region gets default metadata.
// Any fatal error is returned as *FormatError and no map is produced.
func Parse(r io.Reader, worldspace model.FormKey, meta MetadataSource, ids FormKeyAllocator, opts ...Option) (*RegionMap, error) {
	if ids == nil {
		return nil, fmt.Errorf("parse region map: nil form key allocator")
	}

	p := &parser{
		m: &RegionMap{
			worldspace: worldspace,
			byEditorID: make(map[string]*Region),
			cells:      make(map[Point][]*Region),
		},
		meta: meta,
		ids:  ids,
		log:  slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}

	sections, err := SplitSections(r)
	if err != nil {
		return nil, fmt.Errorf("parse region map: %w", err)
	}

	// Порядок важен: HoldMap ссылается на регионы из RegionAreas.
	if err := p.parseRegionAreas(sections[SectionRegionAreas]); err != nil {
		return nil, err
	}
	if err := p.parseHoldMap(sections[SectionHoldMap]); err != nil {
		return nil, err
	}

	return p.m, nil
}

// ParseFile opens path and parses it with Parse.
func ParseFile(path string, worldspace model.FormKey, meta MetadataSource, ids FormKeyAllocator, opts ...Option) (*RegionMap, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening region map %s: %w", path, err)
	}
	defer f.Close()

	m, err := Parse(f, worldspace, meta, ids, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Worldspace returns the worldspace this map belongs to.
func (m *RegionMap) Worldspace() model.FormKey { return m.worldspace }

// Regions returns all regions in the order they were first declared.
// The result is a fresh slice.
func (m *RegionMap) Regions() []*Region { return slices.Clone(m.regions) }

// Region returns the region with the exact editor ID.
func (m *RegionMap) Region(editorID string) (*Region, bool) {
	r, ok := m.byEditorID[editorID]
	return r, ok
}

// CellCount returns the number of mapped cells.
func (m *RegionMap) CellCount() int { return len(m.cells) }

// Cells returns every mapped coordinate, sorted by Y then X.
func (m *RegionMap) Cells() []Point {
	pts := make([]Point, 0, len(m.cells))
	for p := range m.cells {
		pts = append(pts, p)
	}
	slices.SortFunc(pts, func(a, b Point) int {
		if c := cmp.Compare(a.Y, b.Y); c != 0 {
			return c
		}
		return cmp.Compare(a.X, b.X)
	})
	return pts
}

// Lookup returns the regions assigned to the cell at coord, in file order.
// The result is a fresh slice; it is empty when the cell is not mapped.
func (m *RegionMap) Lookup(coord Point) []*Region {
	regions := m.cells[coord]
	out := make([]*Region, len(regions))
	copy(out, regions)
	return out
}

// RegionsAt returns the regions of the cell containing the world-unit point
// (x, y) whose polygons contain that point.
func (m *RegionMap) RegionsAt(x, y float64) []*Region {
	var result []*Region
	for _, r := range m.cells[CellAt(x, y)] {
		if r.Contains(x, y) {
			result = append(result, r)
		}
	}
	return result
}

// CellAt returns the cell coordinate containing the world-unit point (x, y).
func CellAt(x, y float64) Point {
	return Point{
		X: int32(math.Floor(x / CellSize)),
		Y: int32(math.Floor(y / CellSize)),
	}
}

// parser holds the state of one Parse call.
type parser struct {
	m    *RegionMap
	meta MetadataSource
	ids  FormKeyAllocator
	log  *slog.Logger
}

package regionmap

import (
	"slices"

	"github.com/udisondev/urnpatch/internal/model"
)

const (
	// EdgeFallOff is the fall-off distance, in world units, of every generated area.
	EdgeFallOff uint32 = 1024

	// DefaultPriority is used when a region has no metadata entry.
	DefaultPriority uint8 = 60
)

// DataFlags are the region data flags written with the map entry.
type DataFlags uint8

// FlagOverride makes the region's map name override lower-priority regions.
const FlagOverride DataFlags = 1 << 0

// RegionInfo is the display metadata of a region, keyed by editor ID in the
// metadata source.
type RegionInfo struct {
	DisplayName string
	Color       model.Color
	Priority    uint8
}

// RegionArea is one polygon of a region.
type RegionArea struct {
	EdgeFallOff uint32
	Points      []PointF
}

// Region is a named polygonal area of one worldspace.
// Created once per editor ID during Parse and never modified afterwards.
type Region struct {
	formKey    model.FormKey
	worldspace model.FormKey
	editorID   string
	info       RegionInfo
	flags      DataFlags
	areas      []RegionArea
}

// FormKey returns the identifier allocated for the region.
func (r *Region) FormKey() model.FormKey { return r.formKey }

// Worldspace returns the worldspace the region belongs to.
func (r *Region) Worldspace() model.FormKey { return r.worldspace }

// EditorID returns the unique, case-sensitive region name.
func (r *Region) EditorID() string { return r.editorID }

// DisplayName returns the map name, or "" when the region has none.
func (r *Region) DisplayName() string { return r.info.DisplayName }

// Color returns the map color.
func (r *Region) Color() model.Color { return r.info.Color }

// Priority returns the map data priority.
func (r *Region) Priority() uint8 { return r.info.Priority }

// Flags returns the region data flags.
func (r *Region) Flags() DataFlags { return r.flags }

// Areas returns a copy of the region polygons.
func (r *Region) Areas() []RegionArea {
	areas := make([]RegionArea, len(r.areas))
	for i, a := range r.areas {
		areas[i] = RegionArea{EdgeFallOff: a.EdgeFallOff, Points: slices.Clone(a.Points)}
	}
	return areas
}

// Contains reports whether the world-unit point (x, y) lies inside any area.
// Points on an edge count as inside.
func (r *Region) Contains(x, y float64) bool {
	for i := range r.areas {
		if polygonContains(r.areas[i].Points, x, y) {
			return true
		}
	}
	return false
}

// polygonContains: ray casting (чётно-нечётное правило), граница считается внутри.
func polygonContains(pts []PointF, x, y float64) bool {
	n := len(pts)
	if n < 3 {
		return false
	}

	count := 0
	j := n - 1
	for i := range n {
		if (pts[i].Y > y) != (pts[j].Y > y) {
			slope := (x-pts[i].X)*(pts[j].Y-pts[i].Y) - (pts[j].X-pts[i].X)*(y-pts[i].Y)
			if slope == 0 {
				return true
			}
			if (slope < 0) != (pts[j].Y-pts[i].Y < 0) {
				count++
			}
		} else if pts[i].Y == y && pts[j].Y == y &&
			x >= min(pts[i].X, pts[j].X) && x <= max(pts[i].X, pts[j].X) {
			// горизонтальное ребро
			return true
		}
		j = i
	}

	return count%2 == 1
}

// Package patcher connects parsed region maps to the worldspaces they belong
// to and hands them to persistence sinks.
package patcher

import (
	"github.com/udisondev/urnpatch/internal/model"
	"github.com/udisondev/urnpatch/internal/regionmap"
)

// Handler applies one region map to its worldspace.
type Handler struct {
	name string
	m    *regionmap.RegionMap
}

// NewHandler creates a handler for the worldspace of m.
func NewHandler(name string, m *regionmap.RegionMap) *Handler {
	return &Handler{name: name, m: m}
}

// Name returns the worldspace display name from config.
func (h *Handler) Name() string { return h.name }

// RegionMap returns the parsed map.
func (h *Handler) RegionMap() *regionmap.RegionMap { return h.m }

// Worldspace returns the worldspace the handler applies to.
func (h *Handler) Worldspace() model.FormKey { return h.m.Worldspace() }

// AppliesTo reports whether the handler owns worldspace.
func (h *Handler) AppliesTo(worldspace model.FormKey) bool {
	return h.m.Worldspace() == worldspace
}

// RegionsForCell returns the form keys of the regions to attach to the cell
// record at coord, in map order. Empty when the cell isn't mapped.
func (h *Handler) RegionsForCell(coord regionmap.Point) []model.FormKey {
	regions := h.m.Lookup(coord)
	keys := make([]model.FormKey, len(regions))
	for i, r := range regions {
		keys[i] = r.FormKey()
	}
	return keys
}

package testutil

import (
	"strings"
	"testing"

	"github.com/udisondev/urnpatch/internal/data"
	"github.com/udisondev/urnpatch/internal/model"
	"github.com/udisondev/urnpatch/internal/regionmap"
	"github.com/udisondev/urnpatch/internal/world"
)

// Fixtures содержит общие тестовые данные для пакетов patcher, db и cellcache.
var Fixtures = struct {
	Plugin     string
	Tamriel    model.FormKey
	Solstheim  model.FormKey
	MapDoc     string // two regions, three cells
	RegionYAML string
}{
	Plugin:    "Test.esp",
	Tamriel:   model.NewFormKey(0x3C, "Skyrim.esm"),
	Solstheim: model.NewFormKey(0x800, "Dragonborn.esm"),
	MapDoc: strings.Join([]string{
		"; test map",
		"[RegionAreas]",
		"urnWhiterun = [(0,0)(4,0)(4,4)(0,4)]",
		"urnRift = [(2,-2)(6,-2)(6,2)(2,2)]",
		"",
		"[HoldMap]",
		`(0,0) = ["urnWhiterun"]`,
		`(3,1) = ["urnWhiterun", "urnRift"]`,
		`(5,-1) = ["urnRift"]`,
	}, "\n"),
	RegionYAML: `
regions:
  - editor_id: urnWhiterun
    name: Whiterun Hold
    color: "#C8A050"
    priority: 60
  - editor_id: urnRift
    name: The Rift
    color: [200, 80, 20]
    priority: 61
`,
}

// ParseFixtureMap parses Fixtures.MapDoc for worldspace with a fresh allocator.
func ParseFixtureMap(tb testing.TB, worldspace model.FormKey, alloc *world.FormIDAllocator) *regionmap.RegionMap {
	tb.Helper()

	meta, err := data.ParseRegionTable(strings.NewReader(Fixtures.RegionYAML))
	if err != nil {
		tb.Fatalf("parsing fixture metadata: %v", err)
	}
	if alloc == nil {
		alloc = world.NewFormIDAllocator(Fixtures.Plugin, 0)
	}

	m, err := regionmap.Parse(strings.NewReader(Fixtures.MapDoc), worldspace, meta, alloc)
	if err != nil {
		tb.Fatalf("parsing fixture map: %v", err)
	}
	return m
}

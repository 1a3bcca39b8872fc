package regionmap

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/urnpatch/internal/model"
)

var tamriel = model.NewFormKey(0x3C, "Skyrim.esm")

// seqAllocator выдаёт последовательные FormKey начиная с 0x800,
// повторный запрос той же пары возвращает тот же ключ.
type seqAllocator struct {
	next     uint32
	assigned map[string]model.FormKey
}

func (a *seqAllocator) FormKeyFor(worldspace model.FormKey, editorID string) (model.FormKey, error) {
	id := worldspace.String() + "/" + editorID
	if k, ok := a.assigned[id]; ok {
		return k, nil
	}
	if a.assigned == nil {
		a.assigned = make(map[string]model.FormKey)
	}
	k := model.NewFormKey(0x800+a.next, "Test.esp")
	a.next++
	a.assigned[id] = k
	return k, nil
}

// failingAllocator отказывает после limit выданных ключей.
type failingAllocator struct {
	seqAllocator
	limit uint32
}

func (a *failingAllocator) FormKeyFor(worldspace model.FormKey, editorID string) (model.FormKey, error) {
	if a.next >= a.limit {
		return model.NullFormKey, errAllocator
	}
	return a.seqAllocator.FormKeyFor(worldspace, editorID)
}

var errAllocator = errors.New("no form ids left")

// metaTable: регистронезависимый MetadataSource для тестов.
type metaTable map[string]RegionInfo

func (m metaTable) RegionInfo(editorID string) (RegionInfo, bool) {
	info, ok := m[strings.ToLower(editorID)]
	return info, ok
}

var testMeta = metaTable{
	"forest": {DisplayName: "The Forest", Color: model.Color{R: 0x2A, G: 0x7F, B: 0x3B}, Priority: 70},
	"swamp":  {DisplayName: "Swamp", Priority: 50},
}

func parseString(t *testing.T, doc string, opts ...Option) (*RegionMap, error) {
	t.Helper()
	return Parse(strings.NewReader(doc), tamriel, testMeta, &seqAllocator{}, opts...)
}

func editorIDs(regions []*Region) []string {
	ids := make([]string, 0, len(regions))
	for _, r := range regions {
		ids = append(ids, r.EditorID())
	}
	return ids
}

func TestParseMinimal(t *testing.T) {
	m, err := parseString(t, "[RegionAreas]\nForest = [(1,1)(2,2)(3,1)]\n[HoldMap]\n(1,1) = [\"Forest\"]")
	require.NoError(t, err)

	require.Len(t, m.Regions(), 1)
	forest := m.Regions()[0]
	assert.Equal(t, "Forest", forest.EditorID())
	assert.Equal(t, "The Forest", forest.DisplayName())
	assert.Equal(t, model.Color{R: 0x2A, G: 0x7F, B: 0x3B}, forest.Color())
	assert.Equal(t, uint8(70), forest.Priority())
	assert.Equal(t, FlagOverride, forest.Flags())
	assert.Equal(t, tamriel, forest.Worldspace())
	assert.Equal(t, model.NewFormKey(0x800, "Test.esp"), forest.FormKey())

	require.Len(t, forest.Areas(), 1)
	area := forest.Areas()[0]
	assert.Equal(t, EdgeFallOff, area.EdgeFallOff)
	assert.Equal(t, []PointF{{4096, 4096}, {8192, 8192}, {12288, 4096}}, area.Points)

	assert.Equal(t, []string{"Forest"}, editorIDs(m.Lookup(Point{1, 1})))
	assert.Equal(t, 1, m.CellCount())
	assert.Equal(t, tamriel, m.Worldspace())
}

func TestParseUndeclaredRegion(t *testing.T) {
	_, err := parseString(t, "[RegionAreas]\nForest = [(1,1)(2,2)(3,1)]\n[HoldMap]\n(1,1) = [\"Swamp\"]")
	require.ErrorIs(t, err, ErrUnknownRegion)

	var fe *FormatError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "Swamp", fe.Key)
	assert.Equal(t, 4, fe.Line)
	assert.Equal(t, SectionHoldMap, fe.Section)
	assert.Contains(t, err.Error(), "Swamp")
	assert.Contains(t, err.Error(), "line 4")
}

func TestParseMalformedCoordinateIsSkipped(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	doc := "[RegionAreas]\nForest = [(1,1)(2,2)(3,1)]\n[HoldMap]\n(1,x) = [\"Forest\"]\n(2,2) = [\"Forest\"]"
	m, err := parseString(t, doc, WithLogger(logger))
	require.NoError(t, err)

	assert.Equal(t, []Point{{2, 2}}, m.Cells())
	assert.Empty(t, m.Lookup(Point{1, 0}))
	assert.Contains(t, logs.String(), "invalid coordinate")
	assert.Contains(t, logs.String(), "line=4")
}

func TestParseDuplicateRegionFirstWins(t *testing.T) {
	doc := "[RegionAreas]\nForest = [(1,1)(2,2)(3,1)]\nForest = [(5,5)(6,6)(7,5)]\n[HoldMap]\n(1,1) = [\"Forest\"]"
	m, err := parseString(t, doc)
	require.NoError(t, err)

	require.Len(t, m.Regions(), 1)
	assert.Equal(t, []PointF{{4096, 4096}, {8192, 8192}, {12288, 4096}}, m.Regions()[0].Areas()[0].Points)
}

func TestParseNoRegionData(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"hold map only", "[HoldMap]\n(1,1) = [\"Forest\"]\n"},
		{"empty region section", "[RegionAreas]\n; nothing yet\n[HoldMap]\n(1,1) = [\"Forest\"]\n"},
		{"empty document", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := parseString(t, tt.doc)
			require.ErrorIs(t, err, ErrNoRegionData)
			assert.Nil(t, m)
		})
	}
}

func TestParseInvalidPolygonPoint(t *testing.T) {
	doc := "[RegionAreas]\nForest = [(1,1)(2,2)(3,1)]\nMarsh = [(1,1)(1-2,3)]\n[HoldMap]\n(1,1) = [\"Forest\"]"
	m, err := parseString(t, doc)
	require.ErrorIs(t, err, ErrInvalidPoint)
	assert.Nil(t, m, "no partial map on fatal error")

	var fe *FormatError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, 3, fe.Line)
	assert.Equal(t, "Marsh", fe.Key)
	assert.Equal(t, "(1-2,3)", fe.Text)
	assert.Equal(t, SectionRegionAreas, fe.Section)
}

func TestParseDuplicateCell(t *testing.T) {
	doc := "[RegionAreas]\nForest = [(1,1)(2,2)(3,1)]\n[HoldMap]\n(1,1) = [\"Forest\"]\n(1,1) = [\"Forest\"]"
	_, err := parseString(t, doc)
	require.ErrorIs(t, err, ErrDuplicateCell)

	var fe *FormatError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, 5, fe.Line)
	assert.Equal(t, "(1,1)", fe.Key)
}

func TestParseMissingMetadataUsesDefaults(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	doc := "[RegionAreas]\nUnknownHold = [(0,0)(1,0)(1,1)]\n[HoldMap]\n(0,0) = [\"UnknownHold\"]"
	m, err := parseString(t, doc, WithLogger(logger))
	require.NoError(t, err)

	r, ok := m.Region("UnknownHold")
	require.True(t, ok)
	assert.Empty(t, r.DisplayName())
	assert.Equal(t, model.Color{}, r.Color())
	assert.Equal(t, DefaultPriority, r.Priority())
	assert.Contains(t, logs.String(), "region=UnknownHold")
}

func TestParseMetadataCaseInsensitiveNamesCaseSensitive(t *testing.T) {
	doc := "[RegionAreas]\nFOREST = [(0,0)(1,0)(1,1)]\nForest = [(2,2)(3,2)(3,3)]\n[HoldMap]\n(0,0) = [\"FOREST\", \"Forest\"]\n(1,1) = [\"forest\"]"
	_, err := parseString(t, doc)
	require.ErrorIs(t, err, ErrUnknownRegion, "lookup by editor ID is case-sensitive")

	doc = "[RegionAreas]\nFOREST = [(0,0)(1,0)(1,1)]\nForest = [(2,2)(3,2)(3,3)]\n[HoldMap]\n(0,0) = [\"FOREST\", \"Forest\"]"
	m, err := parseString(t, doc)
	require.NoError(t, err)

	assert.Equal(t, []string{"FOREST", "Forest"}, editorIDs(m.Regions()))
	for _, r := range m.Regions() {
		assert.Equal(t, "The Forest", r.DisplayName(), "metadata matched case-insensitively for %s", r.EditorID())
	}
	assert.Equal(t, []string{"FOREST", "Forest"}, editorIDs(m.Lookup(Point{0, 0})))
}

func TestParseNameListVariants(t *testing.T) {
	doc := strings.Join([]string{
		"[RegionAreas]",
		"Forest = [(0,0)(4,0)(4,4)(0,4)]",
		"Swamp = [(2,2)(6,2)(6,6)(2,6)]",
		"[HoldMap]",
		`(0,0) = ["Forest", "Swamp"]`,
		`(1,1) = ["Swamp",,"Forest",""]`,
		`(-2,3) = []`,
		`(4,4) = [Forest]`,
		`no equals sign here`,
	}, "\n")

	m, err := parseString(t, doc)
	require.NoError(t, err)

	assert.Equal(t, []string{"Forest", "Swamp"}, editorIDs(m.Lookup(Point{0, 0})))
	assert.Equal(t, []string{"Swamp", "Forest"}, editorIDs(m.Lookup(Point{1, 1})))
	assert.Equal(t, []string{"Forest"}, editorIDs(m.Lookup(Point{4, 4})), "unquoted names are accepted")

	empty := m.Lookup(Point{-2, 3})
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
	assert.Equal(t, []Point{{0, 0}, {1, 1}, {-2, 3}, {4, 4}}, m.Cells())
}

func TestLookupAbsentAndCopy(t *testing.T) {
	m, err := parseString(t, "[RegionAreas]\nForest = [(1,1)(2,2)(3,1)]\n[HoldMap]\n(1,1) = [\"Forest\"]")
	require.NoError(t, err)

	missing := m.Lookup(Point{99, 99})
	assert.NotNil(t, missing)
	assert.Empty(t, missing)

	got := m.Lookup(Point{1, 1})
	got[0] = nil
	assert.NotNil(t, m.Lookup(Point{1, 1})[0], "Lookup returns a copy")
}

func TestParseIdempotent(t *testing.T) {
	doc := strings.Join([]string{
		"[RegionAreas]",
		"Forest = [(0,0)(4,0)(4,4)(0,4)]",
		"Swamp = [(-2,-2)(6,-2)(6,6)]",
		"[HoldMap]",
		`(0,0) = ["Forest", "Swamp"]`,
		`(1,1) = ["Swamp"]`,
		`(-1,-1) = ["Swamp"]`,
	}, "\n")

	first, err := parseString(t, doc)
	require.NoError(t, err)
	second, err := parseString(t, doc)
	require.NoError(t, err)

	require.Equal(t, editorIDs(first.Regions()), editorIDs(second.Regions()))
	for i := range first.Regions() {
		assert.Equal(t, first.Regions()[i].Areas(), second.Regions()[i].Areas())
		assert.Equal(t, first.Regions()[i].FormKey(), second.Regions()[i].FormKey())
	}

	require.Equal(t, first.Cells(), second.Cells())
	for _, c := range first.Cells() {
		assert.Equal(t, editorIDs(first.Lookup(c)), editorIDs(second.Lookup(c)), "cell %v", c)
	}
}

func TestReferentialIntegrity(t *testing.T) {
	doc := strings.Join([]string{
		"[RegionAreas]",
		"Forest = [(0,0)(4,0)(4,4)(0,4)]",
		"Swamp = [(2,2)(6,2)(6,6)(2,6)]",
		"Plains = [(8,8)(9,8)(9,9)]",
		"[HoldMap]",
		`(0,0) = ["Forest"]`,
		`(2,2) = ["Forest", "Swamp"]`,
		`(8,8) = ["Plains", "Swamp"]`,
	}, "\n")

	m, err := parseString(t, doc)
	require.NoError(t, err)

	for _, c := range m.Cells() {
		for _, ref := range m.Lookup(c) {
			assert.Contains(t, m.Regions(), ref, "cell %v references a region outside the catalog", c)
			byName, ok := m.Region(ref.EditorID())
			require.True(t, ok)
			assert.Same(t, byName, ref)
		}
	}
}

func TestRegionsAt(t *testing.T) {
	doc := strings.Join([]string{
		"[RegionAreas]",
		"Forest = [(0,0)(2,0)(2,2)(0,2)]",
		"Swamp = [(1,1)(3,1)(3,3)(1,3)]",
		"[HoldMap]",
		`(1,1) = ["Forest", "Swamp"]`,
		`(0,0) = ["Forest"]`,
	}, "\n")

	m, err := parseString(t, doc)
	require.NoError(t, err)

	// (1.5, 1.5) клетки: внутри обоих полигонов.
	assert.Equal(t, []string{"Forest", "Swamp"}, editorIDs(m.RegionsAt(1.5*CellSize, 1.5*CellSize)))
	// (1.1, 1.9) клетки: внутри обоих, в той же ячейке.
	assert.Equal(t, []string{"Forest", "Swamp"}, editorIDs(m.RegionsAt(1.1*CellSize, 1.9*CellSize)))
	assert.Equal(t, []string{"Forest"}, editorIDs(m.RegionsAt(100, 100)))
	assert.Empty(t, m.RegionsAt(-100, -100), "unmapped cell")
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tamriel.ini")
	require.NoError(t, os.WriteFile(path, []byte("[RegionAreas]\nForest = [(1,1)(2,2)(3,1)]\n[HoldMap]\n(1,1) = [\"Forest\"]\n"), 0o644))

	m, err := ParseFile(path, tamriel, testMeta, &seqAllocator{})
	require.NoError(t, err)
	assert.Len(t, m.Regions(), 1)

	_, err = ParseFile(filepath.Join(t.TempDir(), "missing.ini"), tamriel, testMeta, &seqAllocator{})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParseNilAllocator(t *testing.T) {
	_, err := Parse(strings.NewReader(""), tamriel, testMeta, nil)
	assert.Error(t, err)
}

func TestParseNilMetadata(t *testing.T) {
	m, err := Parse(strings.NewReader("[RegionAreas]\nA = [(0,0)(1,0)(1,1)]\n"), tamriel, nil, &seqAllocator{},
		WithLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))))
	require.NoError(t, err)
	assert.Equal(t, DefaultPriority, m.Regions()[0].Priority())
	assert.Zero(t, m.CellCount())
}

func TestParseSameAllocatorKeepsFormKeys(t *testing.T) {
	doc := "[RegionAreas]\nForest = [(0,0)(1,0)(1,1)]\nSwamp = [(2,2)(3,2)(3,3)]\n"
	ids := &seqAllocator{}

	first, err := Parse(strings.NewReader(doc), tamriel, testMeta, ids)
	require.NoError(t, err)
	second, err := Parse(strings.NewReader("[RegionAreas]\nSwamp = [(2,2)(3,2)(3,3)]\nForest = [(0,0)(1,0)(1,1)]\n"), tamriel, testMeta, ids)
	require.NoError(t, err)

	for _, r := range first.Regions() {
		again, ok := second.Region(r.EditorID())
		require.True(t, ok)
		assert.Equal(t, r.FormKey(), again.FormKey(), "%s keeps its key when lines move", r.EditorID())
	}
}

func TestParseAllocatorFailure(t *testing.T) {
	doc := "[RegionAreas]\nForest = [(0,0)(1,0)(1,1)]\nSwamp = [(2,2)(3,2)(3,3)]\n[HoldMap]\n(0,0) = [\"Forest\"]\n"

	m, err := Parse(strings.NewReader(doc), tamriel, testMeta, &failingAllocator{limit: 1})
	require.ErrorIs(t, err, errAllocator)
	assert.Nil(t, m)
	assert.Contains(t, err.Error(), "line 3")
	assert.Contains(t, err.Error(), "Swamp")
}

func TestAccessorsReturnCopies(t *testing.T) {
	m, err := parseString(t, "[RegionAreas]\nForest = [(1,1)(2,2)(3,1)]\nSwamp = [(5,5)(6,6)(7,5)]\n")
	require.NoError(t, err)

	regions := m.Regions()
	regions[0] = nil
	assert.NotNil(t, m.Regions()[0], "Regions returns a copy")

	forest, ok := m.Region("Forest")
	require.True(t, ok)
	areas := forest.Areas()
	areas[0].Points[0] = PointF{X: -1, Y: -1}
	areas[0].EdgeFallOff = 0
	assert.Equal(t, PointF{X: 4096, Y: 4096}, forest.Areas()[0].Points[0], "polygon points are copied")
	assert.Equal(t, EdgeFallOff, forest.Areas()[0].EdgeFallOff)
	assert.True(t, forest.Contains(1.5*CellSize, 1.4*CellSize))
}

// Запускать с -race: карта читается из многих горутин без блокировок.
func TestRegionMapConcurrentReaders(t *testing.T) {
	doc := strings.Join([]string{
		"[RegionAreas]",
		"Forest = [(0,0)(2,0)(2,2)(0,2)]",
		"Swamp = [(1,1)(3,1)(3,3)(1,3)]",
		"[HoldMap]",
		`(0,0) = ["Forest"]`,
		`(1,1) = ["Forest", "Swamp"]`,
		`(2,2) = ["Swamp"]`,
	}, "\n")

	m, err := parseString(t, doc)
	require.NoError(t, err)

	want := make(map[Point][]string)
	for _, c := range m.Cells() {
		want[c] = editorIDs(m.Lookup(c))
	}
	wantAt := editorIDs(m.RegionsAt(1.5*CellSize, 1.5*CellSize))

	const readers, rounds = 16, 200
	var wg sync.WaitGroup
	for range readers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range rounds {
				for c, names := range want {
					if got := editorIDs(m.Lookup(c)); !slices.Equal(got, names) {
						t.Errorf("Lookup(%v) = %v, want %v", c, got, names)
						return
					}
				}
				if got := editorIDs(m.RegionsAt(1.5*CellSize, 1.5*CellSize)); !slices.Equal(got, wantAt) {
					t.Errorf("RegionsAt = %v, want %v", got, wantAt)
					return
				}
				if _, ok := m.Region("Swamp"); !ok {
					t.Error("Region(Swamp) not found")
					return
				}
				_ = m.Cells()
				_ = m.Regions()
			}
		}()
	}
	wg.Wait()
}

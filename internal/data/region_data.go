package data

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/udisondev/urnpatch/internal/model"
	"github.com/udisondev/urnpatch/internal/regionmap"
)

// ErrEmptyEditorID is returned for a metadata entry without an editor ID.
var ErrEmptyEditorID = errors.New("region metadata entry without editor_id")

// regionDef: метаданные одного региона из YAML-файла.
type regionDef struct {
	EditorID string      `yaml:"editor_id"`
	Name     string      `yaml:"name"`
	Color    regionColor `yaml:"color"`
	Priority *uint8      `yaml:"priority"`
}

type regionFile struct {
	Regions []regionDef `yaml:"regions"`
}

// regionColor accepts either "#RRGGBB" or a [r, g, b] sequence.
type regionColor model.Color

// UnmarshalYAML implements yaml.Unmarshaler.
func (c *regionColor) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		parsed, err := model.ParseColor(node.Value)
		if err != nil {
			return fmt.Errorf("line %d: %w", node.Line, err)
		}
		*c = regionColor(parsed)
		return nil
	case yaml.SequenceNode:
		var rgb []int
		if err := node.Decode(&rgb); err != nil {
			return fmt.Errorf("line %d: color components: %w", node.Line, err)
		}
		if len(rgb) != 3 {
			return fmt.Errorf("line %d: color needs 3 components, got %d", node.Line, len(rgb))
		}
		for _, v := range rgb {
			if v < 0 || v > 255 {
				return fmt.Errorf("line %d: color component %d out of range 0-255", node.Line, v)
			}
		}
		*c = regionColor(model.Color{R: uint8(rgb[0]), G: uint8(rgb[1]), B: uint8(rgb[2])})
		return nil
	default:
		return fmt.Errorf("line %d: color must be \"#RRGGBB\" or [r, g, b]", node.Line)
	}
}

// RegionTable holds region display metadata keyed by editor ID.
// Lookups are case-insensitive; the first entry of a name wins.
type RegionTable struct {
	byName map[string]regionmap.RegionInfo
	count  int
}

// Compile-time check.
var _ regionmap.MetadataSource = (*RegionTable)(nil)

// LoadRegionTable reads region metadata from a YAML file.
func LoadRegionTable(path string) (*RegionTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening region metadata %s: %w", path, err)
	}
	defer f.Close()

	table, err := ParseRegionTable(f)
	if err != nil {
		return nil, fmt.Errorf("region metadata %s: %w", path, err)
	}

	slog.Info("loaded region metadata", "path", path, "regions", table.Len())
	return table, nil
}

// ParseRegionTable decodes a region metadata document:
//
//	regions:
//	  - editor_id: urnRegionWhiterun
//	    name: Whiterun Hold
//	    color: "#C8A050"
//	    priority: 60
//
// priority defaults to regionmap.DefaultPriority when omitted.
func ParseRegionTable(r io.Reader) (*RegionTable, error) {
	var file regionFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decoding yaml: %w", err)
	}

	table := &RegionTable{byName: make(map[string]regionmap.RegionInfo, len(file.Regions))}
	for i, def := range file.Regions {
		name := strings.TrimSpace(def.EditorID)
		if name == "" {
			return nil, fmt.Errorf("entry %d: %w", i, ErrEmptyEditorID)
		}

		key := strings.ToLower(name)
		if _, dup := table.byName[key]; dup {
			slog.Warn("duplicate region metadata entry ignored", "editor_id", name, "entry", i)
			continue
		}

		priority := regionmap.DefaultPriority
		if def.Priority != nil {
			priority = *def.Priority
		}

		table.byName[key] = regionmap.RegionInfo{
			DisplayName: def.Name,
			Color:       model.Color(def.Color),
			Priority:    priority,
		}
		table.count++
	}

	return table, nil
}

// RegionInfo implements regionmap.MetadataSource.
func (t *RegionTable) RegionInfo(editorID string) (regionmap.RegionInfo, bool) {
	if t == nil {
		return regionmap.RegionInfo{}, false
	}
	info, ok := t.byName[strings.ToLower(editorID)]
	return info, ok
}

// Len returns the number of distinct entries.
func (t *RegionTable) Len() int {
	if t == nil {
		return 0
	}
	return t.count
}

package regionmap

import (
	"fmt"
	"strings"
)

// parseRegionAreas creates one Region per distinct editor ID in the
// [RegionAreas] section. The first declaration of a name wins; later lines
// with the same name are ignored.
func (p *parser) parseRegionAreas(sec *Section) error {
	if sec == nil {
		return nil
	}

	for _, line := range sec.Lines {
		key, value, ok := strings.Cut(line.Text, "=")
		if !ok {
			continue
		}
		editorID := strings.TrimSpace(key)
		value = strings.Trim(value, "[] \n")

		var points []PointF
		for _, raw := range ExtractPoints(value) {
			pt, err := ParsePoint(raw)
			if err != nil {
				return &FormatError{
					Section: sec.Name,
					Line:    line.No,
					Key:     editorID,
					Text:    raw,
					Err:     ErrInvalidPoint,
				}
			}
			points = append(points, Scale(pt))
		}

		if _, exists := p.m.byEditorID[editorID]; exists {
			continue
		}

		formKey, err := p.ids.FormKeyFor(p.m.worldspace, editorID)
		if err != nil {
			return fmt.Errorf("[%s] line %d: form key for %q: %w", sec.Name, line.No, editorID, err)
		}

		region := &Region{
			formKey:    formKey,
			worldspace: p.m.worldspace,
			editorID:   editorID,
			info:       p.regionInfo(editorID, line.No),
			flags:      FlagOverride,
			areas: []RegionArea{
				{EdgeFallOff: EdgeFallOff, Points: points},
			},
		}

		p.m.regions = append(p.m.regions, region)
		p.m.byEditorID[editorID] = region
	}

	return nil
}

// regionInfo returns the metadata for editorID, or defaults when the source
// has no entry for it.
func (p *parser) regionInfo(editorID string, line int) RegionInfo {
	if p.meta != nil {
		if info, ok := p.meta.RegionInfo(editorID); ok {
			return info
		}
	}

	p.log.Warn("region has no metadata, using defaults",
		"region", editorID,
		"line", line,
		"priority", DefaultPriority,
	)
	return RegionInfo{Priority: DefaultPriority}
}

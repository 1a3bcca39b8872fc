package regionmap

import "strings"

// parseHoldMap fills the cell index from the [HoldMap] section.
// Must run after parseRegionAreas: every name is resolved against the regions
// declared there.
func (p *parser) parseHoldMap(sec *Section) error {
	if len(p.m.regions) == 0 {
		startLine := 0
		if sec != nil {
			startLine = sec.StartLine
		}
		return &FormatError{Section: SectionHoldMap, Line: startLine, Err: ErrNoRegionData}
	}
	if sec == nil {
		return nil
	}

	for _, line := range sec.Lines {
		key, value, ok := strings.Cut(line.Text, "=")
		if !ok {
			continue
		}

		coord, err := ParsePoint(removeAll(key, "() "))
		if err != nil {
			p.log.Warn("skipping line with invalid coordinate",
				"section", sec.Name,
				"line", line.No,
				"text", line.Text,
			)
			continue
		}

		names := splitNames(value)
		regions := make([]*Region, 0, len(names))
		for _, name := range names {
			region, ok := p.m.byEditorID[name]
			if !ok {
				return &FormatError{
					Section: sec.Name,
					Line:    line.No,
					Key:     name,
					Err:     ErrUnknownRegion,
				}
			}
			regions = append(regions, region)
		}

		if _, dup := p.m.cells[coord]; dup {
			return &FormatError{
				Section: sec.Name,
				Line:    line.No,
				Key:     coord.String(),
				Err:     ErrDuplicateCell,
			}
		}
		p.m.cells[coord] = regions
	}

	return nil
}

// splitNames parses `["A", "B", ...]` into its non-empty, unquoted elements.
func splitNames(value string) []string {
	value = strings.Trim(strings.TrimSpace(value), "[]")

	var names []string
	for _, elem := range strings.Split(value, ",") {
		name := strings.Trim(elem, "\" \t\r\n")
		if name != "" {
			names = append(names, name)
		}
	}
	return names
}

// removeAll drops every rune of cutset from s.
func removeAll(s, cutset string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(cutset, r) {
			return -1
		}
		return r
	}, s)
}

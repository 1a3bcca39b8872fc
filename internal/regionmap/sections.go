package regionmap

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"unicode"
)

// SectionName identifies a recognized [Header] of the map file.
type SectionName string

const (
	// SectionRegionAreas holds the polygon of every region: `Name = [(x,y)(x,y)...]`.
	// Also accepted as [Regions].
	SectionRegionAreas SectionName = "RegionAreas"
	// SectionHoldMap maps cell coordinates to region names: `(x,y) = ["A","B"]`.
	SectionHoldMap SectionName = "HoldMap"
)

// sectionAliases maps lowercased header text to its section.
var sectionAliases = map[string]SectionName{
	"regionareas": SectionRegionAreas,
	"regions":     SectionRegionAreas,
	"holdmap":     SectionHoldMap,
}

// commentMarkers start a line comment.
const commentMarkers = ";#"

// Line is one normalized content line and its 1-based position in the source.
type Line struct {
	No   int
	Text string
}

// Section is the accumulated content of one header. A header may appear
// several times; StartLine is where it first appeared.
type Section struct {
	Name      SectionName
	StartLine int
	Lines     []Line
}

// SplitSections reads the whole document and partitions its content lines by
// section. Comments and all whitespace are removed from every line; lines
// under unrecognized headers are dropped.
func SplitSections(r io.Reader) (map[SectionName]*Section, error) {
	sections := make(map[SectionName]*Section, len(sectionAliases))
	var current *Section

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	ln := 0
	for sc.Scan() {
		ln++

		line := normalizeLine(sc.Text())
		if line == "" {
			continue
		}

		if header, ok := headerName(line); ok {
			name, known := sectionAliases[strings.ToLower(header)]
			if !known {
				current = nil
				continue
			}
			sec, exists := sections[name]
			if !exists {
				sec = &Section{Name: name, StartLine: ln}
				sections[name] = sec
			}
			current = sec
			continue
		}

		if current != nil {
			current.Lines = append(current.Lines, Line{No: ln, Text: line})
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading map at line %d: %w", ln+1, err)
	}

	return sections, nil
}

// normalizeLine strips a trailing comment and every whitespace rune.
func normalizeLine(s string) string {
	if i := strings.IndexAny(s, commentMarkers); i != -1 {
		s = s[:i]
	}
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// headerName returns the text between the first '[' and the following ']'
// when the line is a header. Lines containing '=' are always content.
func headerName(line string) (string, bool) {
	if strings.Contains(line, "=") {
		return "", false
	}
	open := strings.IndexByte(line, '[')
	if open == -1 {
		return "", false
	}
	closing := strings.IndexByte(line[open+1:], ']')
	if closing == -1 {
		return "", false
	}
	return line[open+1 : open+1+closing], true
}

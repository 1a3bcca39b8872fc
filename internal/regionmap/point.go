package regionmap

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// CellSize is the number of world units along one side of a cell.
// Polygon points in the map file are written in cell units and scaled by it.
const CellSize = 4096

// Point is an integer cell coordinate. Comparable, used as a map key.
type Point struct {
	X, Y int32
}

func (p Point) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}

// PointF is a polygon vertex in world units.
type PointF struct {
	X, Y float64
}

// Scale converts a cell coordinate into world units.
func Scale(p Point) PointF {
	return PointF{X: float64(p.X) * CellSize, Y: float64(p.Y) * CellSize}
}

// pointPattern matches a parenthesized pair like "(12,-3)". It is looser than
// ParsePoint: "(1-2,3)" matches here and is then rejected by ParsePoint.
var pointPattern = regexp.MustCompile(`\([\-0-9]+,[\-0-9]+\)`)

// ExtractPoints returns the leftmost non-overlapping point substrings of s, in order.
func ExtractPoints(s string) []string {
	return pointPattern.FindAllString(s, -1)
}

// ParsePoint parses "x,y" or "(x,y)" where x and y are decimal int32 values
// with an optional leading '-'. The caller strips whitespace.
func ParsePoint(s string) (Point, error) {
	body := s
	if strings.HasPrefix(body, "(") && strings.HasSuffix(body, ")") && len(body) >= 2 {
		body = body[1 : len(body)-1]
	}

	xs, ys, ok := strings.Cut(body, ",")
	if !ok {
		return Point{}, fmt.Errorf("%w %q: missing comma", ErrInvalidPoint, s)
	}

	x, err := parseCoord(xs)
	if err != nil {
		return Point{}, fmt.Errorf("%w %q: x: %v", ErrInvalidPoint, s, err)
	}
	y, err := parseCoord(ys)
	if err != nil {
		return Point{}, fmt.Errorf("%w %q: y: %v", ErrInvalidPoint, s, err)
	}

	return Point{X: x, Y: y}, nil
}

// parseCoord принимает только [-]digits, без '+' и пробелов (strconv их пропускает).
func parseCoord(s string) (int32, error) {
	digits := strings.TrimPrefix(s, "-")
	if digits == "" {
		return 0, fmt.Errorf("empty component")
	}
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return 0, fmt.Errorf("unexpected character %q", digits[i])
		}
	}

	v, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, err
	}
	return int32(v), nil
}

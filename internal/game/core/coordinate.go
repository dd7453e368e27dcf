package core

import "fmt"

// Field is a cell position. (0,0) is the top-left corner regardless of whose turn it is.
type Field struct {
	X, Y int
}

func NewField(x, y int) Field {
	return Field{X: x, Y: y}
}

// FromIndex creates a field from a row-major index
func FromIndex(idx, width int) Field {
	return Field{X: idx % width, Y: idx / width}
}

// IsValid checks if the field is within the given bounds
func (f Field) IsValid(width, height int) bool {
	return f.X >= 0 && f.X < width && f.Y >= 0 && f.Y < height
}

func (f Field) ToIndex(width int) int {
	return f.Y*width + f.X
}

func (f Field) Add(o Offset) Field {
	return Field{X: f.X + o.DX, Y: f.Y + o.DY}
}

// IsNeighbour reports whether other is one of the 8 surrounding cells.
func (f Field) IsNeighbour(other Field) bool {
	dx, dy := other.X-f.X, other.Y-f.Y
	if dx == 0 && dy == 0 {
		return false
	}
	return dx >= -1 && dx <= 1 && dy >= -1 && dy <= 1
}

func (f Field) String() string {
	return fmt.Sprintf("(%d,%d)", f.X, f.Y)
}

// Offset is a single step between neighbouring fields.
type Offset struct {
	DX, DY int
}

// WalkOffsets lists the 8 walk directions clockwise from north. The position in this
// slice is the walk slot used by the action index.
var WalkOffsets = [8]Offset{
	{0, -1},  // N
	{1, -1},  // NE
	{1, 0},   // E
	{1, 1},   // SE
	{0, 1},   // S
	{-1, 1},  // SW
	{-1, 0},  // W
	{-1, -1}, // NW
}

// WalkSlot returns the index in WalkOffsets for a step from one field to another.
func WalkSlot(from, to Field) (int, bool) {
	o := Offset{DX: to.X - from.X, DY: to.Y - from.Y}
	for i, w := range WalkOffsets {
		if w == o {
			return i, true
		}
	}
	return -1, false
}

// Direction is a light propagation direction. The values match Sun orientations.
type Direction int

const (
	Up Direction = iota
	Right
	Down
	Left
	DirNone Direction = -1
)

var directionOffsets = [4]Offset{
	Up:    {0, -1},
	Right: {1, 0},
	Down:  {0, 1},
	Left:  {-1, 0},
}

func (d Direction) Offset() Offset {
	if d < Up || d > Left {
		return Offset{}
	}
	return directionOffsets[d]
}

func (d Direction) Opposite() Direction {
	if d == DirNone {
		return DirNone
	}
	return (d + 2) % 4
}

func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Right:
		return "right"
	case Down:
		return "down"
	case Left:
		return "left"
	default:
		return "none"
	}
}

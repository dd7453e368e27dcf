package core

import (
	"fmt"
	"strings"
)

const (
	DefaultWidth  = 7
	DefaultHeight = 6
	// MaxSide bounds both board dimensions.
	MaxSide = 64
)

// Board is an H×W grid of pieces stored row-major. Boards are treated as values by the
// engine: every operation that changes a position works on a Clone.
type Board struct {
	W, H  int
	cells []Piece
}

func NewBoard(w, h int) *Board {
	if w <= 0 || h <= 0 {
		panic(fmt.Sprintf("invalid board size %dx%d", w, h))
	}
	b := &Board{W: w, H: h, cells: make([]Piece, w*h)}
	for i := range b.cells {
		b.cells[i].Owner = OwnerNone
	}
	return b
}

func (b *Board) Idx(x, y int) int      { return y*b.W + x }
func (b *Board) XY(idx int) (int, int) { return idx % b.W, idx / b.W }

// InBounds checks if coordinates are within board boundaries
func (b *Board) InBounds(x, y int) bool {
	return x >= 0 && x < b.W && y >= 0 && y < b.H
}

func (b *Board) Contains(f Field) bool { return b.InBounds(f.X, f.Y) }

// At returns the piece on a field; off-board fields read as empty.
func (b *Board) At(f Field) Piece {
	if !b.Contains(f) {
		return Piece{Owner: OwnerNone}
	}
	return b.cells[b.Idx(f.X, f.Y)]
}

// Set replaces the piece on a field. Setting an empty piece clears the cell.
func (b *Board) Set(f Field, p Piece) {
	if !b.Contains(f) {
		panic(fmt.Sprintf("set outside board: %s on %dx%d", f, b.W, b.H))
	}
	if p.IsEmpty() {
		p = Piece{Owner: OwnerNone}
	}
	b.cells[b.Idx(f.X, f.Y)] = p
}

func (b *Board) Clear(f Field) { b.Set(f, Piece{}) }

func (b *Board) Clone() *Board {
	nb := &Board{W: b.W, H: b.H, cells: make([]Piece, len(b.cells))}
	copy(nb.cells, b.cells)
	return nb
}

func (b *Board) Equal(other *Board) bool {
	if other == nil || b.W != other.W || b.H != other.H {
		return false
	}
	for i := range b.cells {
		if b.cells[i] != other.cells[i] {
			return false
		}
	}
	return true
}

// ForEach visits every occupied field in row-major order.
func (b *Board) ForEach(fn func(Field, Piece)) {
	for i, p := range b.cells {
		if p.IsEmpty() {
			continue
		}
		x, y := b.XY(i)
		fn(Field{X: x, Y: y}, p)
	}
}

// Find returns the fields holding pieces of the given owner and kind.
func (b *Board) Find(owner Owner, kind Kind) []Field {
	var out []Field
	b.ForEach(func(f Field, p Piece) {
		if p.Owner == owner && p.Kind == kind {
			out = append(out, f)
		}
	})
	return out
}

// Count returns how many pieces of the owner and kind are on the board.
func (b *Board) Count(owner Owner, kind Kind) int {
	return len(b.Find(owner, kind))
}

// Swapped reports whether Camaxtli's home corner is the top-left one. The piece on (0,0)
// decides; if that cell is empty the first Sun found decides by its half of the board.
func (b *Board) Swapped() bool {
	if p := b.cells[0]; !p.IsEmpty() {
		return p.Owner == Camaxtli
	}
	for i, p := range b.cells {
		if p.Kind != Sun {
			continue
		}
		_, y := b.XY(i)
		topHalf := y < b.H/2
		return topHalf == (p.Owner == Camaxtli)
	}
	return false
}

// HomeTopLeft reports whether the owner's home corner is (0,0).
func (b *Board) HomeTopLeft(owner Owner) bool {
	return b.Swapped() == (owner == Camaxtli)
}

// Codes returns the packed integer grid, indexed [y][x].
func (b *Board) Codes() [][]int {
	out := make([][]int, b.H)
	for y := 0; y < b.H; y++ {
		row := make([]int, b.W)
		for x := 0; x < b.W; x++ {
			row[x] = b.cells[b.Idx(x, y)].Code()
		}
		out[y] = row
	}
	return out
}

// BoardFromCodes builds a board from a packed [y][x] grid.
func BoardFromCodes(codes [][]int) (*Board, error) {
	if len(codes) == 0 || len(codes[0]) == 0 {
		return nil, fmt.Errorf("empty grid: %w", ErrInvalidCode)
	}
	h, w := len(codes), len(codes[0])
	b := NewBoard(w, h)
	for y, row := range codes {
		if len(row) != w {
			return nil, fmt.Errorf("row %d has %d cells, want %d: %w", y, len(row), w, ErrInvalidCode)
		}
		for x, code := range row {
			p, err := PieceFromCode(code)
			if err != nil {
				return nil, err
			}
			b.Set(Field{X: x, Y: y}, p)
		}
	}
	return b, nil
}

// String renders the board one rank per line, for logs and test failures.
func (b *Board) String() string {
	var sb strings.Builder
	for y := 0; y < b.H; y++ {
		for x := 0; x < b.W; x++ {
			p := b.cells[b.Idx(x, y)]
			if p.IsEmpty() {
				sb.WriteString(" ..")
				continue
			}
			sb.WriteString(" " + p.String())
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

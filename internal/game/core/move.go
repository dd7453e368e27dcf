package core

import "fmt"

// MoveKind tags the variant of a Move.
type MoveKind int

const (
	MoveWalk MoveKind = iota
	MoveRotation
)

func (k MoveKind) String() string {
	if k == MoveRotation {
		return "rotation"
	}
	return "walk"
}

// Move is either a walk (Piece from From to To, swapping with any occupant) or a
// rotation (Piece on From becomes Result, same owner and kind).
type Move struct {
	Kind   MoveKind
	Piece  Piece
	From   Field
	To     Field
	Result Piece
}

func NewWalk(p Piece, from, to Field) Move {
	return Move{Kind: MoveWalk, Piece: p, From: from, To: to}
}

func NewRotation(p Piece, at Field, orientation int) Move {
	return Move{Kind: MoveRotation, Piece: p, From: at, To: at, Result: p.WithOrientation(orientation)}
}

func (m Move) IsWalk() bool     { return m.Kind == MoveWalk }
func (m Move) IsRotation() bool { return m.Kind == MoveRotation }

func (m Move) String() string {
	if m.IsRotation() {
		return fmt.Sprintf("rotate %s%s->%d", m.Piece, m.From, m.Result.Orientation)
	}
	return fmt.Sprintf("walk %s%s->%s", m.Piece, m.From, m.To)
}

// Validate checks the structural preconditions of a move against a board: fields in range,
// the moving piece present and owned, and rotations keeping kind and owner. Rule legality
// (zones, adjacency targets, allowed orientations) belongs to the rules package.
func (m Move) Validate(b *Board, owner Owner) error {
	if !owner.Valid() {
		return ErrInvalidOwner
	}
	if !b.Contains(m.From) || !b.Contains(m.To) {
		return ErrInvalidField
	}
	on := b.At(m.From)
	if on.IsEmpty() {
		return ErrEmptyField
	}
	if on != m.Piece {
		return ErrPieceChanged
	}
	if on.Owner != owner {
		return ErrNotOwned
	}
	switch m.Kind {
	case MoveWalk:
		if !m.From.IsNeighbour(m.To) {
			return ErrIllegalMove
		}
	case MoveRotation:
		if m.From != m.To || m.Result.Kind != m.Piece.Kind || m.Result.Owner != m.Piece.Owner ||
			m.Result.Orientation == m.Piece.Orientation {
			return ErrIllegalMove
		}
		if m.Result.Orientation < 0 || m.Result.Orientation >= m.Piece.Kind.Orientations() {
			return ErrIllegalMove
		}
	default:
		return ErrIllegalMove
	}
	return nil
}

// Apply performs the move on the board in place. Walking onto an occupied field swaps
// the two pieces. Callers validate first.
func (m Move) Apply(b *Board) {
	switch m.Kind {
	case MoveWalk:
		displaced := b.At(m.To)
		b.Set(m.To, m.Piece)
		b.Set(m.From, displaced)
	case MoveRotation:
		b.Set(m.From, m.Result)
	}
}

package rules

import (
	"fmt"

	"github.com/mitchelldurbincs/tonatiuh/internal/game/core"
)

// MoveValidator generates and checks legal moves. It holds no state; one value can be
// shared between goroutines.
type MoveValidator struct{}

func NewMoveValidator() *MoveValidator {
	return &MoveValidator{}
}

// SunOrientations returns the two orientations a Sun may face from its home corner.
// A Sun at home top-left faces into the board to the right or down, the other Sun up
// or left.
func SunOrientations(b *core.Board, owner core.Owner) [2]int {
	if b.HomeTopLeft(owner) {
		return [2]int{int(core.Right), int(core.Down)}
	}
	return [2]int{int(core.Up), int(core.Left)}
}

// LegalRotations lists the orientations the piece on f may turn to. The current
// orientation is never included.
func (v *MoveValidator) LegalRotations(b *core.Board, f core.Field) []int {
	p := b.At(f)
	switch p.Kind {
	case core.Sun:
		allowed := SunOrientations(b, p.Owner)
		var out []int
		for _, o := range allowed {
			if o != p.Orientation {
				out = append(out, o)
			}
		}
		return out
	case core.Reflector:
		return []int{1 - p.Orientation}
	case core.Angler:
		out := make([]int, 0, 3)
		for o := 0; o < 4; o++ {
			if o != p.Orientation {
				out = append(out, o)
			}
		}
		return out
	}
	return nil
}

// NextOrientation is the single rotation step used by the Sun and Reflector toggles and
// the Angler's clockwise quarter turn. ok is false for pieces that cannot rotate.
func (v *MoveValidator) NextOrientation(b *core.Board, f core.Field) (int, bool) {
	p := b.At(f)
	switch p.Kind {
	case core.Sun:
		allowed := SunOrientations(b, p.Owner)
		if p.Orientation == allowed[0] {
			return allowed[1], true
		}
		return allowed[0], true
	case core.Reflector:
		return 1 - p.Orientation, true
	case core.Angler:
		return (p.Orientation + 1) % 4, true
	}
	return 0, false
}

// LegalWalks lists the destinations the piece on f may walk to. Kings, Walls and
// Anglers need an empty neighbour; a Reflector may also step onto a Wall or Angler of
// either side, swapping places with it. No piece may end on an opponent's zone.
func (v *MoveValidator) LegalWalks(b *core.Board, f core.Field) []core.Field {
	return v.legalWalks(b, ZonesFor(b), f)
}

func (v *MoveValidator) legalWalks(b *core.Board, z Zones, f core.Field) []core.Field {
	p := b.At(f)
	if p.IsEmpty() || p.Kind == core.Sun {
		return nil
	}
	var out []core.Field
	for _, o := range core.WalkOffsets {
		to := f.Add(o)
		if !b.Contains(to) {
			continue
		}
		target := b.At(to)
		if !target.IsEmpty() {
			if p.Kind != core.Reflector {
				continue
			}
			if target.Kind != core.Wall && target.Kind != core.Angler {
				continue
			}
			if !z.Allows(target.Owner, f) {
				continue
			}
		}
		if !z.Allows(p.Owner, to) {
			continue
		}
		out = append(out, to)
	}
	return out
}

// LegalMoves lists every legal move of owner: for each of its pieces in row-major order,
// walks in walk-slot order followed by rotations in ascending orientation.
func (v *MoveValidator) LegalMoves(b *core.Board, owner core.Owner) []core.Move {
	z := ZonesFor(b)
	var moves []core.Move
	b.ForEach(func(f core.Field, p core.Piece) {
		if p.Owner == owner {
			moves = v.appendPieceMoves(moves, b, z, f)
		}
	})
	return moves
}

// PieceMoves lists the legal moves of the piece on f in the same order LegalMoves uses.
func (v *MoveValidator) PieceMoves(b *core.Board, f core.Field) []core.Move {
	return v.appendPieceMoves(nil, b, ZonesFor(b), f)
}

func (v *MoveValidator) appendPieceMoves(moves []core.Move, b *core.Board, z Zones, f core.Field) []core.Move {
	p := b.At(f)
	for _, to := range v.legalWalks(b, z, f) {
		moves = append(moves, core.NewWalk(p, f, to))
	}
	for _, o := range v.LegalRotations(b, f) {
		moves = append(moves, core.NewRotation(p, f, o))
	}
	return moves
}

// HasLegalMove reports whether owner can move at all, stopping at the first hit.
func (v *MoveValidator) HasLegalMove(b *core.Board, owner core.Owner) bool {
	z := ZonesFor(b)
	found := false
	b.ForEach(func(f core.Field, p core.Piece) {
		if found || p.Owner != owner {
			return
		}
		found = len(v.legalWalks(b, z, f)) > 0 || len(v.LegalRotations(b, f)) > 0
	})
	return found
}

// IsLegal checks a move for owner against the structural preconditions and the rules.
// The returned error wraps one of the core sentinel errors.
func (v *MoveValidator) IsLegal(b *core.Board, m core.Move, owner core.Owner) error {
	if err := m.Validate(b, owner); err != nil {
		return core.WrapMoveError(owner, m, err)
	}
	switch m.Kind {
	case core.MoveWalk:
		for _, to := range v.LegalWalks(b, m.From) {
			if to == m.To {
				return nil
			}
		}
		target := b.At(m.To)
		if !target.IsEmpty() {
			return core.WrapMoveError(owner, m, fmt.Errorf("%s cannot move onto %s: %w", m.Piece.Kind, target, core.ErrIllegalMove))
		}
		return core.WrapMoveError(owner, m, fmt.Errorf("%s cannot walk to %s: %w", m.Piece.Kind, m.To, core.ErrIllegalMove))
	case core.MoveRotation:
		for _, o := range v.LegalRotations(b, m.From) {
			if o == m.Result.Orientation {
				return nil
			}
		}
		return core.WrapMoveError(owner, m, fmt.Errorf("orientation %d not allowed for %s: %w", m.Result.Orientation, m.Piece.Kind, core.ErrIllegalMove))
	}
	return core.WrapMoveError(owner, m, core.ErrIllegalMove)
}

package rules

import (
	"fmt"

	"github.com/mitchelldurbincs/tonatiuh/internal/game/core"
)

// ActionsPerField is the number of action slots per cell: 8 walk directions followed by
// the 4 rotation targets.
const ActionsPerField = 12

const rotationBase = len(core.WalkOffsets)

// ActionSpace maps moves to flat action indices for one board size.
// Index = (y*W + x) * 12 + slot
// - slots 0..7: walk in core.WalkOffsets order (N, NE, E, SE, S, SW, W, NW)
// - slots 8..11: rotate to orientation slot-8
type ActionSpace struct {
	W, H     int
	excluded []bool
}

// NewActionSpace precomputes the exclusion list: walk slots that would leave the grid
// and can therefore never be legal.
func NewActionSpace(w, h int) *ActionSpace {
	s := &ActionSpace{W: w, H: h, excluded: make([]bool, w*h*ActionsPerField)}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			f := core.NewField(x, y)
			for slot, o := range core.WalkOffsets {
				if !f.Add(o).IsValid(w, h) {
					s.excluded[s.index(f, slot)] = true
				}
			}
		}
	}
	return s
}

// Size is the total number of action indices, legal or not.
func (s *ActionSpace) Size() int { return s.W * s.H * ActionsPerField }

func (s *ActionSpace) index(f core.Field, slot int) int {
	return f.ToIndex(s.W)*ActionsPerField + slot
}

// Excluded reports whether idx is structurally impossible on this board size.
func (s *ActionSpace) Excluded(idx int) bool {
	return idx < 0 || idx >= len(s.excluded) || s.excluded[idx]
}

// ExcludedIndices lists every structurally impossible index in ascending order.
func (s *ActionSpace) ExcludedIndices() []int {
	var out []int
	for i, ex := range s.excluded {
		if ex {
			out = append(out, i)
		}
	}
	return out
}

// MoveToIndex returns the action index of a move.
func (s *ActionSpace) MoveToIndex(m core.Move) (int, error) {
	if !m.From.IsValid(s.W, s.H) {
		return 0, fmt.Errorf("move %s: %w", m, core.ErrInvalidField)
	}
	switch m.Kind {
	case core.MoveWalk:
		slot, ok := core.WalkSlot(m.From, m.To)
		if !ok || !m.To.IsValid(s.W, s.H) {
			return 0, fmt.Errorf("move %s: %w", m, core.ErrIllegalMove)
		}
		return s.index(m.From, slot), nil
	case core.MoveRotation:
		o := m.Result.Orientation
		if o < 0 || o > 3 {
			return 0, fmt.Errorf("move %s: %w", m, core.ErrIllegalMove)
		}
		return s.index(m.From, rotationBase+o), nil
	}
	return 0, fmt.Errorf("move %s: %w", m, core.ErrIllegalMove)
}

// MoveFromIndex decodes idx into a move for owner on the board. The move is checked
// against the rules; an index that does not name a legal move returns an error wrapping
// core.ErrIllegalMove or one of the other core sentinels.
func (s *ActionSpace) MoveFromIndex(b *core.Board, owner core.Owner, idx int, v *MoveValidator) (core.Move, error) {
	if idx < 0 || idx >= s.Size() {
		return core.Move{}, fmt.Errorf("action %d out of range: %w", idx, core.ErrIllegalMove)
	}
	if s.excluded[idx] {
		return core.Move{}, fmt.Errorf("action %d leaves the board: %w", idx, core.ErrIllegalMove)
	}
	from := core.FromIndex(idx/ActionsPerField, s.W)
	slot := idx % ActionsPerField
	p := b.At(from)

	var m core.Move
	if slot < rotationBase {
		m = core.NewWalk(p, from, from.Add(core.WalkOffsets[slot]))
	} else {
		if p.IsEmpty() || slot-rotationBase >= p.Kind.Orientations() {
			return core.Move{}, fmt.Errorf("action %d rotates %s: %w", idx, p, core.ErrIllegalMove)
		}
		m = core.NewRotation(p, from, slot-rotationBase)
	}
	if err := v.IsLegal(b, m, owner); err != nil {
		return core.Move{}, err
	}
	return m, nil
}

// LegalIndices returns the indices of owner's legal moves, in LegalMoves order.
func (s *ActionSpace) LegalIndices(b *core.Board, owner core.Owner, v *MoveValidator) []int {
	moves := v.LegalMoves(b, owner)
	out := make([]int, 0, len(moves))
	for _, m := range moves {
		if idx, err := s.MoveToIndex(m); err == nil {
			out = append(out, idx)
		}
	}
	return out
}

// LegalActionMask returns a flattened boolean mask over the whole action space with true
// on the indices of owner's legal moves.
func (s *ActionSpace) LegalActionMask(b *core.Board, owner core.Owner, v *MoveValidator) []bool {
	mask := make([]bool, s.Size())
	for _, idx := range s.LegalIndices(b, owner, v) {
		mask[idx] = true
	}
	return mask
}

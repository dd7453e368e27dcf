package search

import (
	"sort"

	"github.com/mitchelldurbincs/tonatiuh/internal/game/core"
)

// kindRank orders pieces for expansion. Mirrors change the ray most, so they are tried
// first and tighten the bounds early; King moves come last.
func kindRank(k core.Kind) int {
	switch k {
	case core.Reflector, core.Angler:
		return 0
	case core.Wall, core.Sun:
		return 1
	default:
		return 2
	}
}

// orderedMoves returns owner's legal moves, sorted by kindRank when pruning. The sort
// is stable so equal ranks keep row-major order.
func (e *Engine) orderedMoves(b *core.Board, owner core.Owner) []core.Move {
	moves := e.validator.LegalMoves(b, owner)
	if e.opts.Pruning {
		sort.SliceStable(moves, func(i, j int) bool {
			return kindRank(moves[i].Piece.Kind) < kindRank(moves[j].Piece.Kind)
		})
	}
	return moves
}

// orderedPieces returns the fields of owner's pieces sorted by kindRank.
func orderedPieces(b *core.Board, owner core.Owner) []core.Field {
	var fields []core.Field
	b.ForEach(func(f core.Field, p core.Piece) {
		if p.Owner == owner {
			fields = append(fields, f)
		}
	})
	sort.SliceStable(fields, func(i, j int) bool {
		return kindRank(b.At(fields[i]).Kind) < kindRank(b.At(fields[j]).Kind)
	})
	return fields
}

// eachChild calls visit for owner's moves in search order until visit returns false or
// an error. With PerPieceOrdering a piece's moves are only generated once the previous
// piece has been fully expanded.
func (e *Engine) eachChild(b *core.Board, owner core.Owner, visit func(core.Move) (bool, error)) error {
	if !e.opts.PerPieceOrdering {
		for _, m := range e.orderedMoves(b, owner) {
			more, err := visit(m)
			if err != nil || !more {
				return err
			}
		}
		return nil
	}
	for _, f := range orderedPieces(b, owner) {
		for _, m := range e.validator.PieceMoves(b, f) {
			more, err := visit(m)
			if err != nil || !more {
				return err
			}
		}
	}
	return nil
}

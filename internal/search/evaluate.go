package search

import (
	"encoding/binary"
	"hash/fnv"

	"github.com/mitchelldurbincs/tonatiuh/internal/game"
	"github.com/mitchelldurbincs/tonatiuh/internal/game/core"
)

// evaluate scores the position an outcome left behind from root's point of view. The
// move's own reward is not included; callers add it.
func (e *Engine) evaluate(r *run, out game.Outcome, root core.Owner) int {
	w := e.opts.Weights
	score := w.Hop * out.Hops()
	if out.Mover != root {
		score = -score
	}
	score += e.position(out.Board, root) - e.position(out.Board, root.Opponent())
	if e.opts.JitterMax > 0 {
		score += e.jitter(r, out)
	}
	return score
}

// jitter returns an amount in [0, JitterMax] that depends only on the run's salt and
// the position, so pruned and unpruned passes see the same value for the same leaf.
func (e *Engine) jitter(r *run, out game.Outcome) int {
	h := fnv.New64a()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], r.salt)
	_, _ = h.Write(buf[:])
	_, _ = h.Write([]byte{byte(out.Mover)})
	out.Board.ForEach(func(f core.Field, p core.Piece) {
		code := p.Code()
		_, _ = h.Write([]byte{byte(f.X), byte(f.Y), byte(code), byte(code >> 8)})
	})
	return int(h.Sum64() % uint64(e.opts.JitterMax+1))
}

// position is the King-safety and flank score of one side.
func (e *Engine) position(b *core.Board, owner core.Owner) int {
	w := e.opts.Weights
	topLeft := b.HomeTopLeft(owner)
	score := 0

	backRank, farFile := b.H-1, 1
	if topLeft {
		backRank, farFile = 0, b.W-2
	}

	if kings := b.Find(owner, core.King); len(kings) == 1 {
		k := kings[0]
		if k.Y == backRank {
			score += w.BackRankKing
		}
		for _, o := range core.WalkOffsets {
			if p := b.At(k.Add(o)); !p.IsEmpty() && p.Owner == owner {
				score += w.KingNeighbour
			}
		}
	}

	onFile := 0
	for y := 0; y < b.H; y++ {
		p := b.At(core.NewField(farFile, y))
		if p.Owner == owner && p.Kind != core.Sun {
			onFile++
		}
	}
	if onFile == 1 {
		score += w.Flank
	}
	return score
}

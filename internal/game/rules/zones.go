package rules

import "github.com/mitchelldurbincs/tonatiuh/internal/game/core"

// Zones marks the cells reserved for one side. The player whose home corner is the
// top-left one owns the whole first file plus the two corners of the second-to-last
// file; the other player owns the mirror image.
type Zones struct {
	w, h    int
	topLeft core.Owner
}

// ZonesFor reads the orientation of the board once. Zones stay valid for as long as the
// home corners do, which is the whole game because Suns never leave their cell.
func ZonesFor(b *core.Board) Zones {
	topLeft := core.Nanahuatzin
	if b.Swapped() {
		topLeft = core.Camaxtli
	}
	return Zones{w: b.W, h: b.H, topLeft: topLeft}
}

// Owner returns whose zone f lies in, or OwnerNone for open cells.
func (z Zones) Owner(f core.Field) core.Owner {
	edge := f.Y == 0 || f.Y == z.h-1
	switch {
	case f.X == 0, f.X == z.w-2 && edge:
		return z.topLeft
	case f.X == z.w-1, f.X == 1 && edge:
		return z.topLeft.Opponent()
	}
	return core.OwnerNone
}

// Allows reports whether a piece of owner may stand on f.
func (z Zones) Allows(owner core.Owner, f core.Field) bool {
	zo := z.Owner(f)
	return zo == core.OwnerNone || zo == owner
}

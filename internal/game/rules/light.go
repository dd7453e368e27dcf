package rules

import "github.com/mitchelldurbincs/tonatiuh/internal/game/core"

// Segment is one cell the ray passed through. The first segment is the Sun's own cell
// and has no incoming direction; a segment whose outgoing direction is DirNone ends the
// path on the piece standing there.
type Segment struct {
	Field core.Field
	In    core.Direction
	Out   core.Direction
}

// Hit names the piece that stopped the ray.
type Hit struct {
	Field core.Field
	Piece core.Piece
}

// LightResult describes one resolved ray. At most one of Destroyed and Blocked is set;
// neither is set when the ray left the board.
type LightResult struct {
	Segments  []Segment
	Destroyed *Hit
	Blocked   *Hit
}

// Hops is the number of segments on the path.
func (r LightResult) Hops() int { return len(r.Segments) }

// reflectorTurn[orientation][incoming] for the two-sided mirror. Orientation 0 is '/',
// orientation 1 is '\'.
var reflectorTurn = [2][4]core.Direction{
	{core.Right, core.Up, core.Left, core.Down},
	{core.Left, core.Down, core.Right, core.Up},
}

// anglerTurn[orientation][incoming] for the one-sided mirror. DirNone marks the
// unprotected sides; light from there destroys the Angler.
var anglerTurn = [4][4]core.Direction{
	{core.DirNone, core.DirNone, core.Right, core.Up},
	{core.Right, core.DirNone, core.DirNone, core.Down},
	{core.Left, core.Down, core.DirNone, core.DirNone},
	{core.DirNone, core.Up, core.Left, core.DirNone},
}

type lightEffect int

const (
	lightPass lightEffect = iota
	lightTurn
	lightBlock
	lightDestroy
)

// interact decides what a piece does to a ray travelling in direction d.
func interact(p core.Piece, d core.Direction) (lightEffect, core.Direction) {
	switch p.Kind {
	case core.KindNone:
		return lightPass, d
	case core.Sun:
		return lightBlock, core.DirNone
	case core.Reflector:
		return lightTurn, reflectorTurn[p.Orientation&1][d]
	case core.Angler:
		out := anglerTurn[p.Orientation&3][d]
		if out == core.DirNone {
			return lightDestroy, core.DirNone
		}
		return lightTurn, out
	}
	return lightDestroy, core.DirNone
}

// LightResolver traces the ray fired by a Sun.
type LightResolver struct{}

func NewLightResolver() *LightResolver {
	return &LightResolver{}
}

// Resolve traces a ray starting on the start cell and heading in dir. The start cell is
// the first segment and its own piece is never hit. A start outside the board or an
// undefined direction is an invariant violation, and so is a path longer than four
// passes over every cell.
func (l *LightResolver) Resolve(b *core.Board, start core.Field, dir core.Direction) (LightResult, error) {
	if !b.Contains(start) {
		return LightResult{}, core.Invariantf("light starts off board at %s", start)
	}
	if dir < core.Up || dir > core.Left {
		return LightResult{}, core.Invariantf("light from %s has no direction", start)
	}

	res := LightResult{Segments: []Segment{{Field: start, In: core.DirNone, Out: dir}}}
	cur, d := start, dir
	for steps := 0; steps < 4*b.W*b.H; steps++ {
		next := cur.Add(d.Offset())
		if !b.Contains(next) {
			return res, nil
		}
		p := b.At(next)
		effect, out := interact(p, d)
		switch effect {
		case lightPass, lightTurn:
			res.Segments = append(res.Segments, Segment{Field: next, In: d, Out: out})
			cur, d = next, out
		case lightBlock:
			res.Segments = append(res.Segments, Segment{Field: next, In: d, Out: core.DirNone})
			res.Blocked = &Hit{Field: next, Piece: p}
			return res, nil
		case lightDestroy:
			res.Segments = append(res.Segments, Segment{Field: next, In: d, Out: core.DirNone})
			res.Destroyed = &Hit{Field: next, Piece: p}
			return res, nil
		}
	}
	return LightResult{}, core.Invariantf("light from %s did not terminate", start)
}

// ResolveFrom fires the owner's Sun. A board with no Sun or more than one Sun for the
// owner is an invariant violation.
func (l *LightResolver) ResolveFrom(b *core.Board, owner core.Owner) (LightResult, error) {
	suns := b.Find(owner, core.Sun)
	if len(suns) != 1 {
		return LightResult{}, core.Invariantf("%s has %d suns", owner, len(suns))
	}
	start := suns[0]
	return l.Resolve(b, start, b.At(start).Facing())
}

// ApplyLight removes the destroyed piece, if any, from the board in place.
func ApplyLight(b *core.Board, res LightResult) {
	if res.Destroyed != nil {
		b.Clear(res.Destroyed.Field)
	}
}

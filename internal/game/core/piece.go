package core

import "fmt"

// Owner identifies one of the two players.
type Owner int

const (
	OwnerNone   Owner = -1
	Camaxtli    Owner = 0 // player A, codes < 100
	Nanahuatzin Owner = 1 // player B, codes >= 100
)

// Opponent returns the other player. OwnerNone has no opponent.
func (o Owner) Opponent() Owner {
	switch o {
	case Camaxtli:
		return Nanahuatzin
	case Nanahuatzin:
		return Camaxtli
	default:
		return OwnerNone
	}
}

func (o Owner) Valid() bool { return o == Camaxtli || o == Nanahuatzin }

func (o Owner) String() string {
	switch o {
	case Camaxtli:
		return "Camaxtli"
	case Nanahuatzin:
		return "Nanahuatzin"
	default:
		return "none"
	}
}

// Kind is the piece type, stored as the units digit of a packed code.
type Kind int

const (
	KindNone Kind = iota
	Sun
	King
	Wall
	Reflector
	Angler
)

var kindNames = [...]string{"none", "sun", "king", "wall", "reflector", "angler"}

func (k Kind) String() string {
	if k < KindNone || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// Orientations returns how many distinct orientations the kind can hold.
func (k Kind) Orientations() int {
	switch k {
	case Sun, Angler:
		return 4
	case Reflector:
		return 2
	case King, Wall:
		return 1
	default:
		return 0
	}
}

// Piece is the unpacked form of a board code. The zero value is an empty cell.
type Piece struct {
	Owner       Owner
	Kind        Kind
	Orientation int
}

// NewPiece builds a piece, panicking on values that cannot be packed.
func NewPiece(owner Owner, kind Kind, orientation int) Piece {
	p := Piece{Owner: owner, Kind: kind, Orientation: orientation}
	if _, err := PieceFromCode(p.Code()); err != nil || !owner.Valid() {
		panic(fmt.Sprintf("invalid piece %s %s orientation %d", owner, kind, orientation))
	}
	return p
}

func (p Piece) IsEmpty() bool { return p.Kind == KindNone }

// Code packs the piece as owner*100 + orientation*10 + kind.
func (p Piece) Code() int {
	if p.IsEmpty() {
		return 0
	}
	base := 0
	if p.Owner == Nanahuatzin {
		base = 100
	}
	return base + p.Orientation*10 + int(p.Kind)
}

// PieceFromCode unpacks a board code.
func PieceFromCode(code int) (Piece, error) {
	if code == 0 {
		return Piece{Owner: OwnerNone}, nil
	}
	if code < 0 || code >= 200 {
		return Piece{}, fmt.Errorf("code %d: %w", code, ErrInvalidCode)
	}
	owner := Camaxtli
	if code >= 100 {
		owner = Nanahuatzin
	}
	rest := code % 100
	kind := Kind(rest % 10)
	orientation := rest / 10
	if kind < Sun || kind > Angler || orientation >= kind.Orientations() {
		return Piece{}, fmt.Errorf("code %d: %w", code, ErrInvalidCode)
	}
	return Piece{Owner: owner, Kind: kind, Orientation: orientation}, nil
}

// WithOrientation returns a copy of the piece facing the given orientation.
func (p Piece) WithOrientation(orientation int) Piece {
	p.Orientation = orientation
	return p
}

// Facing is the direction a Sun emits in for its orientation.
func (p Piece) Facing() Direction {
	if p.Kind != Sun {
		return DirNone
	}
	return Direction(p.Orientation)
}

func (p Piece) String() string {
	if p.IsEmpty() {
		return "."
	}
	return fmt.Sprintf("%c%d", p.Letter(), p.Orientation)
}

// Letter is the notation letter: lowercase for Nanahuatzin, uppercase for Camaxtli.
func (p Piece) Letter() byte {
	var c byte
	switch p.Kind {
	case Sun:
		c = 's'
	case King:
		c = 'k'
	case Wall:
		c = 'w'
	case Reflector:
		c = 'r'
	case Angler:
		c = 'a'
	default:
		return '.'
	}
	if p.Owner == Camaxtli {
		c -= 'a' - 'A'
	}
	return c
}

// KindFromLetter resolves a notation letter to its owner and kind.
func KindFromLetter(c byte) (Owner, Kind, bool) {
	owner := Nanahuatzin
	if c >= 'A' && c <= 'Z' {
		owner = Camaxtli
		c += 'a' - 'A'
	}
	switch c {
	case 's':
		return owner, Sun, true
	case 'k':
		return owner, King, true
	case 'w':
		return owner, Wall, true
	case 'r':
		return owner, Reflector, true
	case 'a':
		return owner, Angler, true
	}
	return OwnerNone, KindNone, false
}

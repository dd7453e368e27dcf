package experience

import (
	"github.com/mitchelldurbincs/tonatiuh/internal/game/core"
	"github.com/mitchelldurbincs/tonatiuh/internal/game/rules"
)

// Layer layout, repeated for Camaxtli then Nanahuatzin. Each layer is a binary H×W
// plane marking the cells holding exactly that owner, kind and orientation.
const (
	LayerSun       = 0 // 4 orientations
	LayerKing      = 4
	LayerWall      = 5
	LayerReflector = 6 // 2 orientations
	LayerAngler    = 8 // 4 orientations
	LayersPerOwner = 12
	NumLayers      = 2 * LayersPerOwner
)

var kindBase = map[core.Kind]int{
	core.Sun:       LayerSun,
	core.King:      LayerKing,
	core.Wall:      LayerWall,
	core.Reflector: LayerReflector,
	core.Angler:    LayerAngler,
}

// LayerIndex returns the layer a piece is drawn on.
func LayerIndex(p core.Piece) (int, bool) {
	if p.IsEmpty() || !p.Owner.Valid() {
		return 0, false
	}
	base, ok := kindBase[p.Kind]
	if !ok {
		return 0, false
	}
	// King and Wall carry no meaningful orientation and share one layer each.
	orientation := 0
	if p.Kind.Orientations() > 1 {
		orientation = p.Orientation
	}
	return int(p.Owner)*LayersPerOwner + base + orientation, true
}

// Serializer converts boards to tensor representations
type Serializer struct {
	spaces    map[[2]int]*rules.ActionSpace
	validator *rules.MoveValidator
}

// NewSerializer creates a new board serializer
func NewSerializer() *Serializer {
	return &Serializer{
		spaces:    make(map[[2]int]*rules.ActionSpace),
		validator: rules.NewMoveValidator(),
	}
}

// BoardToTensor encodes b as NumLayers planes, laid out [layer][y][x].
func (s *Serializer) BoardToTensor(b *core.Board) []float32 {
	tensor := make([]float32, NumLayers*b.H*b.W)
	b.ForEach(func(f core.Field, p core.Piece) {
		if layer, ok := LayerIndex(p); ok {
			tensor[s.getChannelIndex(layer, f.X, f.Y, b.W, b.H)] = 1
		}
	})
	return tensor
}

// BatchBoardToTensor encodes several boards.
func (s *Serializer) BatchBoardToTensor(boards []*core.Board) [][]float32 {
	out := make([][]float32, len(boards))
	for i, b := range boards {
		out[i] = s.BoardToTensor(b)
	}
	return out
}

// ActionSpace returns the cached action space for a board size. Not safe for
// concurrent use.
func (s *Serializer) ActionSpace(w, h int) *rules.ActionSpace {
	key := [2]int{w, h}
	space, ok := s.spaces[key]
	if !ok {
		space = rules.NewActionSpace(w, h)
		s.spaces[key] = space
	}
	return space
}

// GenerateActionMask creates a boolean mask of legal action indices for owner.
func (s *Serializer) GenerateActionMask(b *core.Board, owner core.Owner) []bool {
	return s.ActionSpace(b.W, b.H).LegalActionMask(b, owner, s.validator)
}

// LegalActions lists owner's legal action indices in ascending order.
func (s *Serializer) LegalActions(b *core.Board, owner core.Owner) []int {
	return s.ActionSpace(b.W, b.H).LegalIndices(b, owner, s.validator)
}

// GetTensorShape returns the shape of the tensor representation
func (s *Serializer) GetTensorShape(boardWidth, boardHeight int) []int32 {
	return []int32{NumLayers, int32(boardHeight), int32(boardWidth)}
}

// TensorSize is the flattened length of one encoded board.
func TensorSize(boardWidth, boardHeight int) int {
	return NumLayers * boardWidth * boardHeight
}

// getChannelIndex calculates the index in the flattened tensor for a specific layer and position
func (s *Serializer) getChannelIndex(channel, x, y, width, height int) int {
	// Layout: [channel][height][width] in row-major order
	return channel*height*width + y*width + x
}

package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestField_FromIndexToIndex(t *testing.T) {
	tests := []struct {
		name  string
		index int
		width int
		field Field
	}{
		{"TopLeft", 0, 7, Field{0, 0}},
		{"TopRight", 6, 7, Field{6, 0}},
		{"SecondRow", 7, 7, Field{0, 1}},
		{"BottomRight", 41, 7, Field{6, 5}},
		{"Legacy", 79, 10, Field{9, 7}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.field, FromIndex(tt.index, tt.width))
			assert.Equal(t, tt.index, tt.field.ToIndex(tt.width))
		})
	}
}

func TestField_IsNeighbour(t *testing.T) {
	center := NewField(3, 3)
	for _, o := range WalkOffsets {
		assert.True(t, center.IsNeighbour(center.Add(o)), "offset %+v", o)
	}
	assert.False(t, center.IsNeighbour(center))
	assert.False(t, center.IsNeighbour(NewField(5, 3)))
}

func TestWalkSlot(t *testing.T) {
	from := NewField(2, 2)
	for i, o := range WalkOffsets {
		slot, ok := WalkSlot(from, from.Add(o))
		assert.True(t, ok)
		assert.Equal(t, i, slot)
	}
	_, ok := WalkSlot(from, NewField(4, 4))
	assert.False(t, ok)
}

func TestDirection(t *testing.T) {
	assert.Equal(t, Offset{0, -1}, Up.Offset())
	assert.Equal(t, Offset{1, 0}, Right.Offset())
	assert.Equal(t, Down, Up.Opposite())
	assert.Equal(t, Right, Left.Opposite())
	assert.Equal(t, DirNone, DirNone.Opposite())
	assert.Equal(t, Offset{}, DirNone.Offset())
	assert.Equal(t, "left", Left.String())
}

// Package atlas plans how shadow maps share one square depth texture.
//
// The atlas is cut into an S×S grid where S grows in steps with the number of
// shadow casters, so a frame with few casters keeps large tiles. Tiles are
// handed out row-major in the order casters are encountered.
package atlas

import (
	"errors"
	"fmt"

	"github.com/gekko3d/dithered/rt/core"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	// MaxSplit is the largest grid dimension; 4×4 tiles cover 16 lights.
	MaxSplit = 4
	// ScissorInset is the border kept free on every side of a tile so
	// filtering never samples a neighbouring tile.
	ScissorInset = 4
	// MinTileSize is the smallest tile that leaves a non-empty scissor.
	MinTileSize = 2*ScissorInset + 1
)

var ErrDegenerateTile = errors.New("atlas: tile too small for scissor inset")

// SplitFor returns the grid dimension for a number of shadow tiles.
func SplitFor(tiles int) int {
	switch {
	case tiles <= 1:
		return 1
	case tiles <= 4:
		return 2
	case tiles <= 9:
		return 3
	default:
		return MaxSplit
	}
}

// Validate rejects atlas sizes whose tiles would leave an empty scissor at
// any split. It is meant to run once, before the frame loop.
func Validate(atlasSize int) error {
	if tile := atlasSize / MaxSplit; tile < MinTileSize {
		return fmt.Errorf("%w: atlas %d gives %dpx tiles at split %d, need at least %d",
			ErrDegenerateTile, atlasSize, tile, MaxSplit, MinTileSize)
	}
	return nil
}

// Tile is one grid cell of the atlas.
type Tile struct {
	Index  int
	Column int
	Row    int
	Split  int
	// Viewport is the pixel region the shadow map renders into.
	Viewport core.Rect
	// Scissor is Viewport inset by ScissorInset on every side.
	Scissor core.Rect
	// Offset is the texture-space origin of the tile, (Column/S, Row/S).
	Offset mgl32.Vec2
	// Scale is the texture-space size of the tile, 1/S.
	Scale float32
}

// Plan is the grid layout for one frame.
type Plan struct {
	Split     int
	AtlasSize int
	TileSize  int
	Tiles     int
}

// NewPlan lays out tiles shadow maps on an atlas of atlasSize texels.
func NewPlan(atlasSize, tiles int) (Plan, error) {
	split := SplitFor(tiles)
	p := Plan{
		Split:     split,
		AtlasSize: atlasSize,
		TileSize:  atlasSize / split,
		Tiles:     tiles,
	}
	if p.TileSize < MinTileSize {
		return Plan{}, fmt.Errorf("%w: %dpx tiles at split %d", ErrDegenerateTile, p.TileSize, split)
	}
	return p, nil
}

// Capacity is the number of cells in the grid.
func (p Plan) Capacity() int {
	return p.Split * p.Split
}

// TileScale is the texture-space size of a tile.
func (p Plan) TileScale() float32 {
	return 1 / float32(p.Split)
}

// Tile returns the cell at a row-major index.
func (p Plan) Tile(index int) Tile {
	col := index % p.Split
	row := index / p.Split
	size := float32(p.TileSize)
	viewport := core.Rect{
		X:      float32(col) * size,
		Y:      float32(row) * size,
		Width:  size,
		Height: size,
	}
	scale := p.TileScale()
	return Tile{
		Index:    index,
		Column:   col,
		Row:      row,
		Split:    p.Split,
		Viewport: viewport,
		Scissor:  viewport.Inset(ScissorInset),
		Offset:   mgl32.Vec2{float32(col) * scale, float32(row) * scale},
		Scale:    scale,
	}
}

// Allocator hands out tiles of a plan in encounter order. A tile is only
// consumed by Next, so a light that turns out not to need one keeps the
// next light on the same cell.
type Allocator struct {
	plan Plan
	next int
}

func NewAllocator(plan Plan) *Allocator {
	return &Allocator{plan: plan}
}

func (a *Allocator) Plan() Plan {
	return a.plan
}

// Used is the number of tiles handed out so far.
func (a *Allocator) Used() int {
	return a.next
}

// Next returns the next free tile, or false when the grid is full.
func (a *Allocator) Next() (Tile, bool) {
	if a.next >= a.plan.Capacity() {
		return Tile{}, false
	}
	t := a.plan.Tile(a.next)
	a.next++
	return t, true
}

// Package shadow builds the matrices that take a world-space position to its
// texel in a light's shadow atlas tile.
package shadow

import (
	"github.com/gekko3d/dithered/rt/atlas"
	"github.com/gekko3d/dithered/rt/core"
	"github.com/go-gl/mathgl/mgl32"
)

// Encoding selects where the tile placement of a shadow lives.
type Encoding int

const (
	// EncodingTileMatrix bakes the tile scale/offset into each matrix.
	// ShadowData.z keeps the directional marker.
	EncodingTileMatrix Encoding = iota
	// EncodingTileOffset keeps matrices tile-agnostic and stores the tile
	// origin in ShadowData.zw; shading applies the global tile scale.
	EncodingTileOffset
)

func (e Encoding) String() string {
	switch e {
	case EncodingTileMatrix:
		return "tile-matrix"
	case EncodingTileOffset:
		return "tile-offset"
	}
	return "unknown"
}

// ClipToTexture maps clip space [-1,1] to texture space [0,1] on x, y and z.
var ClipToTexture = mgl32.Mat4{
	0.5, 0, 0, 0,
	0, 0.5, 0, 0,
	0, 0, 0.5, 0,
	0.5, 0.5, 0.5, 1,
}

// ReverseZ negates the projection row that produces clip z, for devices
// whose depth buffer runs from 1 at the near plane to 0 at the far plane.
func ReverseZ(proj mgl32.Mat4) mgl32.Mat4 {
	for col := 0; col < 4; col++ {
		proj.Set(2, col, -proj.At(2, col))
	}
	return proj
}

// TileScaleOffset maps texture space [0,1] into the tile at (col, row) of a
// split×split grid.
func TileScaleOffset(col, row, split int) mgl32.Mat4 {
	s := 1 / float32(split)
	return mgl32.Mat4{
		s, 0, 0, 0,
		0, s, 0, 0,
		0, 0, 1, 0,
		float32(col) * s, float32(row) * s, 0, 1,
	}
}

type Composer struct {
	ReversedZ bool
	Encoding  Encoding
}

// WorldToShadow composes tile · clipToTexture · proj · view for a tile of
// the atlas, following the composer's encoding.
func (c Composer) WorldToShadow(m core.ShadowMatrices, tile atlas.Tile) mgl32.Mat4 {
	proj := m.Proj
	if c.ReversedZ {
		proj = ReverseZ(proj)
	}
	worldToShadow := ClipToTexture.Mul4(proj.Mul4(m.View))
	if c.Encoding == EncodingTileMatrix {
		worldToShadow = TileScaleOffset(tile.Column, tile.Row, tile.Split).Mul4(worldToShadow)
	}
	return worldToShadow
}

// ShadowData returns data with the tile placement applied for the offset
// encoding. The matrix encoding leaves it untouched.
func (c Composer) ShadowData(data mgl32.Vec4, tile atlas.Tile) mgl32.Vec4 {
	if c.Encoding == EncodingTileOffset {
		data[2] = tile.Offset.X()
		data[3] = tile.Offset.Y()
	}
	return data
}

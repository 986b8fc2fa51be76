package gpu

import (
	"encoding/binary"
	"math"

	"github.com/gekko3d/dithered/rt/core"
	"github.com/go-gl/mathgl/mgl32"
)

const maxLights = 16

// LightBlock offsets, in bytes. Every member is vec4 aligned so the block
// can be bound as a WGSL uniform struct without padding rules.
const (
	offsetColors                = 0
	offsetDirectionsOrPositions = offsetColors + maxLights*16
	offsetAttenuations          = offsetDirectionsOrPositions + maxLights*16
	offsetSpotDirections        = offsetAttenuations + maxLights*16
	offsetShadowData            = offsetSpotDirections + maxLights*16
	offsetWorldToShadow         = offsetShadowData + maxLights*16
	offsetShadowMapSize         = offsetWorldToShadow + maxLights*64
	offsetGlobalShadowData      = offsetShadowMapSize + 16
	offsetLightIndices          = offsetGlobalShadowData + 16
	offsetShadowBias            = offsetLightIndices + 16
	offsetKeywords              = offsetShadowBias + 4

	LightBlockSize = offsetLightIndices + 32
)

// KeywordMask is the bit set of enabled shader keywords.
type KeywordMask uint32

const (
	KeywordShadowsHard KeywordMask = 1 << iota
	KeywordShadowsSoft
	KeywordVertexSecondaryLights
)

func keywordBit(k core.Keyword) KeywordMask {
	switch k {
	case core.KeywordShadowsHard:
		return KeywordShadowsHard
	case core.KeywordShadowsSoft:
		return KeywordShadowsSoft
	case core.KeywordVertexSecondaryLights:
		return KeywordVertexSecondaryLights
	}
	return 0
}

// LightBlock mirrors the lighting uniform buffer read by forward shading.
type LightBlock struct {
	Colors                     [maxLights]mgl32.Vec4
	DirectionsOrPositions      [maxLights]mgl32.Vec4
	Attenuations               [maxLights]mgl32.Vec4
	SpotDirections             [maxLights]mgl32.Vec4
	ShadowData                 [maxLights]mgl32.Vec4
	WorldToShadow              [maxLights]mgl32.Mat4
	ShadowMapSize              mgl32.Vec4
	GlobalShadowData           mgl32.Vec4
	LightIndicesOffsetAndCount mgl32.Vec4
	ShadowBias                 float32
	Keywords                   KeywordMask
}

// setVector stores a global vector. It reports false for ids the block
// does not hold.
func (b *LightBlock) setVector(props *core.Properties, id core.PropertyID, v mgl32.Vec4) bool {
	switch id {
	case props.ShadowMapSize:
		b.ShadowMapSize = v
	case props.GlobalShadowData:
		b.GlobalShadowData = v
	case props.LightIndicesOffsetAndCount:
		b.LightIndicesOffsetAndCount = v
	default:
		return false
	}
	return true
}

func (b *LightBlock) setVectorArray(props *core.Properties, id core.PropertyID, values []mgl32.Vec4) bool {
	var dst *[maxLights]mgl32.Vec4
	switch id {
	case props.VisibleLightColors:
		dst = &b.Colors
	case props.VisibleLightDirectionsOrPositions:
		dst = &b.DirectionsOrPositions
	case props.VisibleLightAttenuations:
		dst = &b.Attenuations
	case props.VisibleLightSpotDirections:
		dst = &b.SpotDirections
	case props.ShadowData:
		dst = &b.ShadowData
	default:
		return false
	}
	n := copy(dst[:], values)
	clear(dst[n:])
	return true
}

func (b *LightBlock) setMatrixArray(props *core.Properties, id core.PropertyID, values []mgl32.Mat4) bool {
	if id != props.WorldToShadowMatrices {
		return false
	}
	n := copy(b.WorldToShadow[:], values)
	clear(b.WorldToShadow[n:])
	return true
}

func (b *LightBlock) setKeyword(k core.Keyword, enabled bool) bool {
	bit := keywordBit(k)
	if bit == 0 {
		return false
	}
	if enabled {
		b.Keywords |= bit
	} else {
		b.Keywords &^= bit
	}
	return true
}

// Bytes encodes the block little-endian in the layout above.
func (b *LightBlock) Bytes() []byte {
	buf := make([]byte, LightBlockSize)
	putVec4 := func(offset int, v mgl32.Vec4) {
		for i, f := range v {
			binary.LittleEndian.PutUint32(buf[offset+i*4:], math.Float32bits(f))
		}
	}
	putVec4s := func(offset int, vs *[maxLights]mgl32.Vec4) {
		for i := range vs {
			putVec4(offset+i*16, vs[i])
		}
	}

	putVec4s(offsetColors, &b.Colors)
	putVec4s(offsetDirectionsOrPositions, &b.DirectionsOrPositions)
	putVec4s(offsetAttenuations, &b.Attenuations)
	putVec4s(offsetSpotDirections, &b.SpotDirections)
	putVec4s(offsetShadowData, &b.ShadowData)
	for i, m := range b.WorldToShadow {
		// mgl32 matrices are column-major, as WGSL expects.
		for j, f := range m {
			binary.LittleEndian.PutUint32(buf[offsetWorldToShadow+i*64+j*4:], math.Float32bits(f))
		}
	}
	putVec4(offsetShadowMapSize, b.ShadowMapSize)
	putVec4(offsetGlobalShadowData, b.GlobalShadowData)
	putVec4(offsetLightIndices, b.LightIndicesOffsetAndCount)
	binary.LittleEndian.PutUint32(buf[offsetShadowBias:], math.Float32bits(b.ShadowBias))
	binary.LittleEndian.PutUint32(buf[offsetKeywords:], uint32(b.Keywords))
	return buf
}

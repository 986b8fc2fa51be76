// Package lighting packs visible lights into the fixed-size arrays read by
// forward shading and decides which of them cast shadows.
package lighting

import (
	"math"

	"github.com/gekko3d/dithered/rt/core"
	"github.com/go-gl/mathgl/mgl32"
)

// MaxVisibleLights is the number of lights shading evaluates per object.
const MaxVisibleLights = 16

const (
	// minRangeSqr keeps 1/range² finite for zero-range lights.
	minRangeSqr = 0.00001
	// innerConeRatio places the smooth inner cone at tan(inner) = 46/64 tan(outer).
	innerConeRatio = 46.0 / 64.0
	// minAngleRange bounds the spot fade slope for razor-thin cones.
	minAngleRange = 0.001
)

// Arrays is a fixed-capacity arena reused every frame. Entries are only
// meaningful for indices below Count; everything above is zero after Pack.
type Arrays struct {
	Colors                [MaxVisibleLights]mgl32.Vec4
	DirectionsOrPositions [MaxVisibleLights]mgl32.Vec4
	Attenuations          [MaxVisibleLights]mgl32.Vec4
	SpotDirections        [MaxVisibleLights]mgl32.Vec4
	ShadowData            [MaxVisibleLights]mgl32.Vec4

	// Count is the number of packed lights, at most MaxVisibleLights.
	Count int
	// Overflow is the number of visible lights that did not fit.
	Overflow int
	// ShadowTileCount is the number of lights that passed shadow eligibility.
	ShadowTileCount int
}

// ShadowCasterQuery reports whether anything casts a shadow for a light.
type ShadowCasterQuery interface {
	ShadowCasterBounds(lightIndex int) (core.AABB, bool)
}

// Pack fills a from lights in visibility order, truncated to
// MaxVisibleLights. Entries past the packed count are zeroed.
func Pack(a *Arrays, lights []core.VisibleLight, casters ShadowCasterQuery) {
	a.Count = min(len(lights), MaxVisibleLights)
	a.Overflow = len(lights) - a.Count
	a.ShadowTileCount = 0

	for i := 0; i < a.Count; i++ {
		light := &lights[i]
		a.Colors[i] = light.FinalColor

		attenuation := mgl32.Vec4{0, 0, 0, 1}
		var spotDirection, shadow mgl32.Vec4

		switch light.Type {
		case core.LightTypeDirectional:
			a.DirectionsOrPositions[i] = light.Forward().Mul(-1).Vec4(0)
			var eligible bool
			shadow, eligible = a.configureShadow(i, light, casters)
			if eligible {
				shadow[2] = 1
			}
		case core.LightTypePoint, core.LightTypeSpot:
			a.DirectionsOrPositions[i] = light.Position().Vec4(1)
			attenuation[0] = PointAttenuation(light.Range)
			if light.Type == core.LightTypeSpot {
				spotDirection = light.Forward().Mul(-1).Vec4(0)
				attenuation[2], attenuation[3] = SpotFade(light.SpotAngle)
				shadow, _ = a.configureShadow(i, light, casters)
			}
		}

		a.Attenuations[i] = attenuation
		a.SpotDirections[i] = spotDirection
		a.ShadowData[i] = shadow
	}

	for i := a.Count; i < MaxVisibleLights; i++ {
		a.Colors[i] = mgl32.Vec4{}
		a.DirectionsOrPositions[i] = mgl32.Vec4{}
		a.Attenuations[i] = mgl32.Vec4{}
		a.SpotDirections[i] = mgl32.Vec4{}
		a.ShadowData[i] = mgl32.Vec4{}
	}
}

// configureShadow returns the shadow data of an eligible light and counts
// it. Ineligible lights get zero shadow data.
func (a *Arrays) configureShadow(index int, light *core.VisibleLight, casters ShadowCasterQuery) (mgl32.Vec4, bool) {
	if light.Shadows == core.ShadowsNone || casters == nil {
		return mgl32.Vec4{}, false
	}
	if _, ok := casters.ShadowCasterBounds(index); !ok {
		return mgl32.Vec4{}, false
	}

	a.ShadowTileCount++
	shadow := mgl32.Vec4{light.ShadowStrength, 0, 0, 0}
	if light.Shadows == core.ShadowsSoft {
		shadow[1] = 1
	}
	return shadow, true
}

// Demote turns a shadow caster back into an unshadowed light.
func (a *Arrays) Demote(index int) {
	a.ShadowData[index][0] = 0
}

// CastsShadows reports whether the packed light at index still owns a shadow.
func (a *Arrays) CastsShadows(index int) bool {
	return a.ShadowData[index].X() > 0
}

// ClearShadows zeroes the shadow data of every packed light.
func (a *Arrays) ClearShadows() {
	for i := range a.ShadowData {
		a.ShadowData[i] = mgl32.Vec4{}
	}
}

// PointAttenuation returns 1/range², with the range clamped away from zero.
func PointAttenuation(lightRange float32) float32 {
	return 1 / max(lightRange*lightRange, minRangeSqr)
}

// SpotFade returns the z and w attenuation terms of a spot cone so that
// saturate(dot(spotDir, lightDir)*z + w) fades from the inner to the outer
// cone. spotAngle is the full cone angle in degrees.
func SpotFade(spotAngle float32) (scale, offset float32) {
	outerRad := float64(mgl32.DegToRad(0.5 * spotAngle))
	outerCos := math.Cos(outerRad)
	outerTan := math.Tan(outerRad)
	innerCos := math.Cos(math.Atan(innerConeRatio * outerTan))

	angleRange := max(innerCos-outerCos, minAngleRange)
	scale = float32(1 / angleRange)
	offset = float32(-outerCos) * scale
	return scale, offset
}

// ExcludeOverflow marks every light past MaxVisibleLights as contributing to
// no object. It returns the updated map and the number of entries touched.
func ExcludeOverflow(indexMap []int) ([]int, int) {
	if len(indexMap) <= MaxVisibleLights {
		return indexMap, 0
	}
	for i := MaxVisibleLights; i < len(indexMap); i++ {
		indexMap[i] = core.NoLight
	}
	return indexMap, len(indexMap) - MaxVisibleLights
}

// Configure packs the visible lights of a cull result and, when more lights
// are visible than fit, writes the clamped light index map back to it.
func Configure(a *Arrays, cull core.CullResult) {
	lights := cull.VisibleLights()
	Pack(a, lights, cull)
	if a.Overflow == 0 {
		return
	}

	// One entry per visible light; a longer host map is cut so only
	// [MaxVisibleLights, len(lights)) is excluded.
	indexMap := cull.LightIndexMap()
	if len(indexMap) > len(lights) {
		indexMap = indexMap[:len(lights)]
	}
	for i := len(indexMap); i < len(lights); i++ {
		indexMap = append(indexMap, i)
	}
	indexMap, _ = ExcludeOverflow(indexMap)
	cull.SetLightIndexMap(indexMap)
}

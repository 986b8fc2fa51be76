package core

import "sync"

// PropertyID is a process-wide handle for a named shader global.
type PropertyID int32

const (
	VisibleLightColors                = "_VisibleLightColors"
	VisibleLightDirectionsOrPositions = "_VisibleLightDirectionsOrPositions"
	VisibleLightAttenuations          = "_VisibleLightAttenuations"
	VisibleLightSpotDirections        = "_VisibleLightSpotDirections"
	LightIndicesOffsetAndCount        = "unity_LightIndicesOffsetAndCount"
	ShadowMap                         = "_ShadowMap"
	WorldToShadowMatrices             = "_WorldToShadowMatrices"
	ShadowBias                        = "_ShadowBias"
	ShadowData                        = "_ShadowData"
	ShadowMapSize                     = "_ShadowMapSize"
	GlobalShadowData                  = "_GlobalShadowData"
)

// Properties holds the resolved handles. It is never mutated after creation.
type Properties struct {
	VisibleLightColors                PropertyID
	VisibleLightDirectionsOrPositions PropertyID
	VisibleLightAttenuations          PropertyID
	VisibleLightSpotDirections        PropertyID
	LightIndicesOffsetAndCount        PropertyID
	ShadowMap                         PropertyID
	WorldToShadowMatrices             PropertyID
	ShadowBias                        PropertyID
	ShadowData                        PropertyID
	ShadowMapSize                     PropertyID
	GlobalShadowData                  PropertyID

	names []string
}

// Name returns the shader name behind id, or "" for an unknown id.
func (p *Properties) Name(id PropertyID) string {
	if id < 0 || int(id) >= len(p.names) {
		return ""
	}
	return p.names[id]
}

// PropertyIDs returns the lookup table, building it on first use.
var PropertyIDs = sync.OnceValue(func() *Properties {
	p := &Properties{}
	register := func(name string) PropertyID {
		p.names = append(p.names, name)
		return PropertyID(len(p.names) - 1)
	}
	p.VisibleLightColors = register(VisibleLightColors)
	p.VisibleLightDirectionsOrPositions = register(VisibleLightDirectionsOrPositions)
	p.VisibleLightAttenuations = register(VisibleLightAttenuations)
	p.VisibleLightSpotDirections = register(VisibleLightSpotDirections)
	p.LightIndicesOffsetAndCount = register(LightIndicesOffsetAndCount)
	p.ShadowMap = register(ShadowMap)
	p.WorldToShadowMatrices = register(WorldToShadowMatrices)
	p.ShadowBias = register(ShadowBias)
	p.ShadowData = register(ShadowData)
	p.ShadowMapSize = register(ShadowMapSize)
	p.GlobalShadowData = register(GlobalShadowData)
	return p
})

// Keyword is a shader feature flag toggled per camera.
type Keyword string

const (
	KeywordShadowsHard           Keyword = "_SHADOWS_HARD"
	KeywordShadowsSoft           Keyword = "_SHADOWS_SOFT"
	KeywordVertexSecondaryLights Keyword = "_VERTEX_SECONDARY_LIGHTS"
)

package dithered

// FrameState is the step a camera render is in.
type FrameState int

const (
	StateIdle FrameState = iota
	StateCulling
	StateLightPacking
	StateShadowPass
	StateSkipShadows
	StateOpaquePass
	StateSkyboxPass
	StateTransparentPass
	StateSubmit
)

var frameStateNames = [...]string{
	StateIdle:            "Idle",
	StateCulling:         "Culling",
	StateLightPacking:    "LightPacking",
	StateShadowPass:      "ShadowPass",
	StateSkipShadows:     "SkipShadows",
	StateOpaquePass:      "OpaquePass",
	StateSkyboxPass:      "SkyboxPass",
	StateTransparentPass: "TransparentPass",
	StateSubmit:          "Submit",
}

func (s FrameState) String() string {
	if s < 0 || int(s) >= len(frameStateNames) {
		return "Unknown"
	}
	return frameStateNames[s]
}

// StateObserver is called on every frame state transition.
type StateObserver func(from, to FrameState)

func (p *Pipeline) changeState(to FrameState) {
	from := p.state
	p.state = to
	if p.observer != nil {
		p.observer(from, to)
	}
}

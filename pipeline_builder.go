package dithered

import (
	"errors"
	"fmt"

	"github.com/gekko3d/dithered/rt/atlas"
	"github.com/gekko3d/dithered/rt/core"
	"github.com/gekko3d/dithered/rt/shadow"
)

var (
	ErrInvalidShadowMapSize  = errors.New("invalid shadow map size")
	ErrInvalidShadowDistance = errors.New("invalid shadow distance")
	ErrMissingHost           = errors.New("host culler and atlas allocator are required")
)

// ShadowMapSize is the edge length of the shadow atlas in texels.
type ShadowMapSize int

const (
	ShadowMap256  ShadowMapSize = 256
	ShadowMap512  ShadowMapSize = 512
	ShadowMap1024 ShadowMapSize = 1024
	ShadowMap2048 ShadowMapSize = 2048
	ShadowMap4096 ShadowMapSize = 4096
)

func (s ShadowMapSize) Valid() bool {
	switch s {
	case ShadowMap256, ShadowMap512, ShadowMap1024, ShadowMap2048, ShadowMap4096:
		return true
	}
	return false
}

// Settings are fixed for the lifetime of a Pipeline.
type Settings struct {
	ShadowMapSize         ShadowMapSize
	ShadowDistance        float32
	DynamicBatching       bool
	Instancing            bool
	SecondaryVertexLights bool
	// ReversedZ is set when the device writes depth 1 at the near plane.
	ReversedZ      bool
	ShadowEncoding shadow.Encoding
	// DevelopmentMode enables the editor hook.
	DevelopmentMode bool
}

func DefaultSettings() Settings {
	return Settings{
		ShadowMapSize:   ShadowMap1024,
		ShadowDistance:  100,
		DynamicBatching: true,
		Instancing:      true,
		ShadowEncoding:  shadow.EncodingTileMatrix,
	}
}

func (s Settings) Validate() error {
	if !s.ShadowMapSize.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidShadowMapSize, s.ShadowMapSize)
	}
	if !(s.ShadowDistance > 0) {
		return fmt.Errorf("%w: %v", ErrInvalidShadowDistance, s.ShadowDistance)
	}
	if err := atlas.Validate(int(s.ShadowMapSize)); err != nil {
		return err
	}
	return nil
}

type PipelineBuilder struct {
	settings  Settings
	logger    Logger
	editor    core.EditorHook
	observer  StateObserver
	culler    core.Culler
	allocator core.AtlasAllocator
}

func NewPipelineBuilder() *PipelineBuilder {
	return &PipelineBuilder{settings: DefaultSettings()}
}

func (b *PipelineBuilder) UseSettings(settings Settings) *PipelineBuilder {
	b.settings = settings
	return b
}

func (b *PipelineBuilder) UseShadowMapSize(size ShadowMapSize) *PipelineBuilder {
	b.settings.ShadowMapSize = size
	return b
}

func (b *PipelineBuilder) UseShadowDistance(distance float32) *PipelineBuilder {
	b.settings.ShadowDistance = distance
	return b
}

func (b *PipelineBuilder) UseDynamicBatching(enabled bool) *PipelineBuilder {
	b.settings.DynamicBatching = enabled
	return b
}

func (b *PipelineBuilder) UseInstancing(enabled bool) *PipelineBuilder {
	b.settings.Instancing = enabled
	return b
}

func (b *PipelineBuilder) UseSecondaryVertexLights(enabled bool) *PipelineBuilder {
	b.settings.SecondaryVertexLights = enabled
	return b
}

func (b *PipelineBuilder) UseReversedZ(enabled bool) *PipelineBuilder {
	b.settings.ReversedZ = enabled
	return b
}

func (b *PipelineBuilder) UseShadowEncoding(encoding shadow.Encoding) *PipelineBuilder {
	b.settings.ShadowEncoding = encoding
	return b
}

func (b *PipelineBuilder) UseDevelopmentMode(enabled bool) *PipelineBuilder {
	b.settings.DevelopmentMode = enabled
	return b
}

func (b *PipelineBuilder) UseLogger(logger Logger) *PipelineBuilder {
	b.logger = logger
	return b
}

func (b *PipelineBuilder) UseEditorHook(hook core.EditorHook) *PipelineBuilder {
	b.editor = hook
	return b
}

func (b *PipelineBuilder) UseStateObserver(observer StateObserver) *PipelineBuilder {
	b.observer = observer
	return b
}

// UseHost sets the culling and atlas collaborators of the host renderer.
func (b *PipelineBuilder) UseHost(culler core.Culler, allocator core.AtlasAllocator) *PipelineBuilder {
	b.culler = culler
	b.allocator = allocator
	return b
}

// Build validates the settings. Nothing is checked again per frame.
func (b *PipelineBuilder) Build() (*Pipeline, error) {
	if err := b.settings.Validate(); err != nil {
		return nil, fmt.Errorf("failed to build pipeline: %w", err)
	}
	if b.culler == nil || b.allocator == nil {
		return nil, fmt.Errorf("failed to build pipeline: %w", ErrMissingHost)
	}
	logger := b.logger
	if logger == nil {
		logger = NewNopLogger()
	}
	return &Pipeline{
		settings:  b.settings,
		logger:    logger,
		editor:    b.editor,
		observer:  b.observer,
		culler:    b.culler,
		allocator: b.allocator,
		profiler:  NewProfiler(),
		composer: shadow.Composer{
			ReversedZ: b.settings.ReversedZ,
			Encoding:  b.settings.ShadowEncoding,
		},
		props: core.PropertyIDs(),
	}, nil
}

package dithered

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProfiler_ScopesAccumulate(t *testing.T) {
	p := NewProfiler()

	p.BeginScope(ScopeCull)
	time.Sleep(time.Millisecond)
	p.EndScope(ScopeCull)
	first := p.Scopes[ScopeCull]

	p.BeginScope(ScopeCull)
	p.EndScope(ScopeCull)

	assert.GreaterOrEqual(t, p.Scopes[ScopeCull], first)
	assert.Equal(t, []string{ScopeCull}, p.Order)

	p.EndScope(ScopeDraw)
	assert.Zero(t, p.Scopes[ScopeDraw], "ending a scope that never began records nothing")
}

func TestProfiler_ResetKeepsOrder(t *testing.T) {
	p := NewProfiler()
	p.BeginScope(ScopeLights)
	p.EndScope(ScopeLights)
	p.BeginScope(ScopeShadows)
	p.EndScope(ScopeShadows)
	p.AddCount(CountCameras, 2)
	p.AddCount(CountCameras, 1)
	p.SetCount(CountShadowTiles, 4)
	assert.Equal(t, 3, p.Counts[CountCameras])

	p.Reset()

	assert.Equal(t, []string{ScopeLights, ScopeShadows}, p.Order)
	assert.Zero(t, p.Scopes[ScopeLights])
	assert.Zero(t, p.Counts[CountCameras])
	assert.Zero(t, p.Counts[CountShadowTiles])
}

func TestProfiler_StatsString(t *testing.T) {
	p := NewProfiler()
	p.BeginScope(ScopeCull)
	p.EndScope(ScopeCull)
	p.SetCount(CountVisibleLights, 3)
	p.SetCount(CountCameras, 1)

	s := p.StatsString()

	assert.Contains(t, s, "Timings (CPU):")
	assert.Contains(t, s, "Cull")
	assert.Contains(t, s, "VisibleLights  : 3")
	assert.Less(t, strings.Index(s, CountCameras), strings.Index(s, CountVisibleLights), "counters are sorted")
}

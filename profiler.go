package dithered

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"
)

// Profiler scopes timed by the pipeline.
const (
	ScopeCull    = "Cull"
	ScopeLights  = "Lights"
	ScopeShadows = "Shadows"
	ScopeDraw    = "Draw"
)

// Profiler counters updated by the pipeline.
const (
	CountVisibleLights  = "VisibleLights"
	CountOverflowLights = "OverflowLights"
	CountShadowTiles    = "ShadowTiles"
	CountDemotedShadows = "DemotedShadows"
	CountCameras        = "Cameras"
)

type Profiler struct {
	Scopes     map[string]time.Duration
	StartTimes map[string]time.Time
	Counts     map[string]int
	Order      []string
}

func NewProfiler() *Profiler {
	return &Profiler{
		Scopes:     make(map[string]time.Duration),
		StartTimes: make(map[string]time.Time),
		Counts:     make(map[string]int),
		Order:      make([]string, 0),
	}
}

func (p *Profiler) BeginScope(name string) {
	p.StartTimes[name] = time.Now()
	if !slices.Contains(p.Order, name) {
		p.Order = append(p.Order, name)
	}
}

// EndScope adds the time since BeginScope to the scope, so a scope entered
// once per camera sums over the frame.
func (p *Profiler) EndScope(name string) {
	if start, ok := p.StartTimes[name]; ok {
		p.Scopes[name] += time.Since(start)
		delete(p.StartTimes, name)
	}
}

func (p *Profiler) SetCount(name string, count int) {
	p.Counts[name] = count
}

func (p *Profiler) AddCount(name string, delta int) {
	p.Counts[name] += delta
}

// Reset clears times and counters but keeps the scope order.
func (p *Profiler) Reset() {
	for k := range p.Scopes {
		p.Scopes[k] = 0
	}
	for k := range p.Counts {
		p.Counts[k] = 0
	}
	clear(p.StartTimes)
}

func (p *Profiler) StatsString() string {
	var sb strings.Builder

	sb.WriteString("Timings (CPU):\n")
	for _, name := range p.Order {
		ms := float64(p.Scopes[name].Microseconds()) / 1000.0
		sb.WriteString(fmt.Sprintf("  %-15s: %.2f ms\n", name, ms))
	}

	sb.WriteString("\nStats:\n")
	keys := make([]string, 0, len(p.Counts))
	for k := range p.Counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		sb.WriteString(fmt.Sprintf("  %-15s: %d\n", k, p.Counts[k]))
	}

	return sb.String()
}

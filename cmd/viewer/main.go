package main

import (
	"flag"
	"runtime"

	"github.com/gekko3d/dithered"
	"github.com/gekko3d/dithered/rt/shadow"
	"github.com/go-gl/glfw/v3.3/glfw"
)

func init() {
	runtime.LockOSThread()
}

func main() {
	debug := flag.Bool("debug", false, "Log frame state transitions and shadow demotions")
	mapSize := flag.Int("shadow-map", int(dithered.ShadowMap1024), "Shadow atlas size (256, 512, 1024, 2048 or 4096)")
	distance := flag.Float64("shadow-distance", 100, "Directional shadow distance")
	reversedZ := flag.Bool("reversed-z", false, "Render with a reversed depth buffer")
	tileOffsets := flag.Bool("tile-offsets", false, "Carry atlas tile offsets in shadow data instead of the matrices")
	vertexLights := flag.Bool("vertex-lights", false, "Enable the secondary vertex lights keyword")
	stats := flag.Int("stats", 0, "Print profiler stats every N frames")
	flag.Parse()

	logger := dithered.NewDefaultLogger("viewer", *debug)

	settings := dithered.DefaultSettings()
	settings.ShadowMapSize = dithered.ShadowMapSize(*mapSize)
	settings.ShadowDistance = float32(*distance)
	settings.ReversedZ = *reversedZ
	settings.SecondaryVertexLights = *vertexLights
	if *tileOffsets {
		settings.ShadowEncoding = shadow.EncodingTileOffset
	}

	if err := glfw.Init(); err != nil {
		panic(err)
	}
	defer glfw.Terminate()

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	window, err := glfw.CreateWindow(1280, 720, "Dithered", nil, nil)
	if err != nil {
		panic(err)
	}
	defer window.Destroy()

	application := NewApp(window, logger)
	application.StatsEvery = *stats
	if err := application.Init(settings); err != nil {
		logger.Errorf("Init failed: %v", err)
		return
	}
	defer application.Release()

	window.SetFramebufferSizeCallback(func(w *glfw.Window, width, height int) {
		application.Resize(width, height)
	})
	window.SetKeyCallback(func(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
		if key == glfw.KeyEscape && action == glfw.Press {
			w.SetShouldClose(true)
		}
	})

	for !window.ShouldClose() {
		glfw.PollEvents()
		application.Update()
		application.Render()
	}
}

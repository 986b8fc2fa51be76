package shaders

import (
	_ "embed"
)

//go:embed boxes.wgsl
var BoxesWGSL string

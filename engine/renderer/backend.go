package renderer

import (
	"github.com/spaghettifunk/kiwi/engine/config"
)

// RendererBackend is implemented by each graphics API.
type RendererBackend interface {
	Initialize(appName string, appWidth, appHeight uint32) error
	Shutdown() error
	Resized(width, height uint32) error
	// BeginFrame returns an error satisfying core.IsFrameNotReady when this
	// tick should be skipped.
	BeginFrame(deltaTime float64) error
	EndFrame(deltaTime float64) error
	ApplySettings(cfg config.RendererConfig)
}

package engine

import (
	"github.com/spaghettifunk/kiwi/engine/config"
	"github.com/spaghettifunk/kiwi/engine/renderer/metadata"
)

// Game is the application plugged into the engine loop. Hooks left nil are
// skipped.
type Game struct {
	Config       *config.Config
	State        interface{}
	FnBoot       Boot
	FnInitialize Initialize
	FnUpdate     Update
	FnRender     Render
	FnOnResize   OnResize
	FnShutdown   Shutdown
}

type Boot func() error
type Initialize func() error
type Update func(deltaTime float64) error
type Render func(packet *metadata.RenderPacket, deltaTime float64) error
type OnResize func(width uint32, height uint32) error
type Shutdown func() error

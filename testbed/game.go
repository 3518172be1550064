package testbed

import (
	"github.com/spaghettifunk/kiwi/engine"
	"github.com/spaghettifunk/kiwi/engine/config"
	"github.com/spaghettifunk/kiwi/engine/core"
	"github.com/spaghettifunk/kiwi/engine/renderer/metadata"
)

// How often the testbed reports the frame counter, in seconds.
const reportInterval = 5.0

type TestGame struct {
	*engine.Game
}

type gameState struct {
	width  uint32
	height uint32

	sinceReport float64
	lastFrame   uint64
}

func NewTestGame(cfg *config.Config) *TestGame {
	tg := &TestGame{
		Game: &engine.Game{
			Config: cfg,
			State:  &gameState{},
		},
	}

	tg.FnBoot = tg.Boot
	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnRender = tg.Render
	tg.FnOnResize = tg.OnResize
	tg.FnShutdown = tg.Shutdown

	return tg
}

func (g *TestGame) Boot() error {
	core.LogInfo("booting testbed...")
	return nil
}

func (g *TestGame) Initialize() error {
	core.LogDebug("TestGame Initialize fn....")
	state := g.State.(*gameState)
	state.width = g.Config.Application.Width
	state.height = g.Config.Application.Height
	return nil
}

func (g *TestGame) Update(deltaTime float64) error {
	g.State.(*gameState).sinceReport += deltaTime
	return nil
}

func (g *TestGame) Render(packet *metadata.RenderPacket, deltaTime float64) error {
	state := g.State.(*gameState)
	packet.DeltaTime = deltaTime

	if state.sinceReport >= reportInterval {
		core.LogInfo("frame %d, %d frames in the last %.1fs at %dx%d",
			packet.FrameNumber, packet.FrameNumber-state.lastFrame, state.sinceReport, state.width, state.height)
		state.sinceReport = 0
		state.lastFrame = packet.FrameNumber
	}
	return nil
}

func (g *TestGame) OnResize(width uint32, height uint32) error {
	state := g.State.(*gameState)

	state.width = width
	state.height = height
	return nil
}

func (g *TestGame) Shutdown() error {
	core.LogInfo("testbed shutting down")
	return nil
}

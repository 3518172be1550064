package engine

import (
	"fmt"
	"sync/atomic"

	"github.com/spaghettifunk/kiwi/engine/config"
	"github.com/spaghettifunk/kiwi/engine/core"
	"github.com/spaghettifunk/kiwi/engine/platform"
	"github.com/spaghettifunk/kiwi/engine/renderer"
	"github.com/spaghettifunk/kiwi/engine/renderer/metadata"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently booting up
	EngineStageBooting
	// Engine completed boot process and is ready to be initialized
	EngineStageBootComplete
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

type Engine struct {
	currentStage Stage
	gameInstance *Game
	isRunning    atomic.Bool
	isSuspended  bool
	events       *core.EventBus
	input        *core.Input
	platform     *platform.Platform
	renderer     *renderer.Renderer
	width        uint32
	height       uint32
	clock        *core.Clock
	metrics      *core.Metrics
	lastTime     float64

	configPath string
	watcher    *config.Watcher
	// Configurations reloaded by the watcher goroutine, applied by the loop.
	reloads chan *config.Config
}

// New boots the engine for g. When configPath is not empty the file is watched
// and changes are applied while running.
func New(g *Game, configPath string) (*Engine, error) {
	if g.Config == nil {
		g.Config = config.Default()
	}
	if err := g.Config.Validate(); err != nil {
		return nil, err
	}
	core.SetLogLevel(core.ParseLogLevel(g.Config.Application.LogLevel))

	e := &Engine{
		currentStage: EngineStageBooting,
		gameInstance: g,
		clock:        core.NewClock(),
		metrics:      core.NewMetrics(),
		isSuspended:  false,
		width:        g.Config.Application.Width,
		height:       g.Config.Application.Height,
		lastTime:     0,
		configPath:   configPath,
		reloads:      make(chan *config.Config, 1),
	}
	e.isRunning.Store(true)

	e.events = core.NewEventBus()
	e.input = core.NewInput(e.events)
	e.platform = platform.New(e.events, e.input)

	if g.FnBoot != nil {
		if err := g.FnBoot(); err != nil {
			core.LogError("game failed to boot: %s", err)
			return nil, err
		}
	}

	e.currentStage = EngineStageBootComplete
	return e, nil
}

func (e *Engine) Initialize() error {
	if e.currentStage != EngineStageBootComplete {
		return fmt.Errorf("engine cannot be initialized in stage %d", e.currentStage)
	}
	e.currentStage = EngineStageInitializing
	appConfig := e.gameInstance.Config.Application

	e.registerHandlers()

	if err := e.platform.Startup(appConfig.Name, appConfig.PosX, appConfig.PosY, appConfig.Width, appConfig.Height); err != nil {
		return err
	}

	kind, err := renderer.ParseBackendType(e.gameInstance.Config.Renderer.Backend)
	if err != nil {
		return err
	}
	r, err := renderer.New(kind, e.gameInstance.Config.Renderer, e.platform)
	if err != nil {
		return err
	}
	e.renderer = r

	// The window may have been created at a different size than requested.
	e.width, e.height = e.platform.FramebufferSize()
	if err := e.renderer.Initialize(appConfig.Name, e.width, e.height); err != nil {
		core.LogError("failed to initialize renderer: %s", err)
		return err
	}

	if e.configPath != "" {
		w, err := config.Watch(e.configPath, e.queueReload)
		if err != nil {
			core.LogWarn("configuration hot reload disabled: %s", err)
		} else {
			e.watcher = w
		}
	}

	if e.gameInstance.FnInitialize != nil {
		if err := e.gameInstance.FnInitialize(); err != nil {
			return err
		}
	}
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(e.width, e.height); err != nil {
			return err
		}
	}

	e.currentStage = EngineStageInitialized
	return nil
}

func (e *Engine) registerHandlers() {
	e.events.Register(core.EVENT_CODE_APPLICATION_QUIT, e.onEvent)
	e.events.Register(core.EVENT_CODE_KEY_PRESSED, e.onKey)
	e.events.Register(core.EVENT_CODE_KEY_RELEASED, e.onKey)
	e.events.Register(core.EVENT_CODE_RESIZED, e.onResized)
	e.events.Register(core.EVENT_CODE_CONFIG_RELOADED, e.onConfigReloaded)
}

func (e *Engine) Run() error {
	e.currentStage = EngineStageRunning
	e.clock.Start()
	e.clock.Update()

	e.lastTime = e.clock.Elapsed()

	var targetFrameSeconds float64 = 1.0 / 60.0

	for e.isRunning.Load() {
		if !e.platform.PumpMessages() {
			e.isRunning.Store(false)
		}
		e.applyReloads()

		if !e.isSuspended {
			// Update clock and get delta time.
			e.clock.Update()

			var currentTime float64 = e.clock.Elapsed()
			var delta float64 = (currentTime - e.lastTime)
			var frameStartTime float64 = e.platform.GetAbsoluteTime()

			if e.gameInstance.FnUpdate != nil {
				if err := e.gameInstance.FnUpdate(delta); err != nil {
					core.LogError("Game update failed, shutting down.")
					e.isRunning.Store(false)
					return err
				}
			}

			packet := &metadata.RenderPacket{
				DeltaTime:   delta,
				FrameNumber: e.renderer.FrameNumber,
			}

			// Call the game's render routine.
			if e.gameInstance.FnRender != nil {
				if err := e.gameInstance.FnRender(packet, delta); err != nil {
					core.LogError("Game render failed, shutting down.")
					e.isRunning.Store(false)
					return err
				}
			}

			if err := e.renderer.DrawFrame(packet); err != nil {
				e.isRunning.Store(false)
				return err
			}

			// Figure out how long the frame took and, if below
			var frameEndTime float64 = e.platform.GetAbsoluteTime()
			var frameElapsedTime float64 = frameEndTime - frameStartTime
			e.metrics.Update(frameElapsedTime)
			var remainingSeconds float64 = targetFrameSeconds - frameElapsedTime

			if remainingSeconds > 0 {
				remainingMS := (remainingSeconds * 1000)
				// If there is time left, give it back to the OS.
				limitFrames := false
				if remainingMS > 0 && limitFrames {
					e.platform.Sleep(remainingMS - 1)
				}
			}

			// NOTE: Input update/state copying should always be handled
			// after any input should be recorded; I.E. before this line.
			// As a safety, input is the last thing to be updated before
			// this frame ends.
			e.input.Update(delta)

			// Update last time
			e.lastTime = currentTime
		}
	}

	core.LogInfo("Average frame time %.3fms, %.0f FPS.", e.metrics.FrameTime(), e.metrics.FPS())
	return nil
}

// Quit asks the loop to stop after the current tick. Safe from any goroutine.
func (e *Engine) Quit() {
	e.isRunning.Store(false)
}

func (e *Engine) Shutdown() error {
	e.currentStage = EngineStageShuttingDown

	if e.watcher != nil {
		if err := e.watcher.Close(); err != nil {
			core.LogWarn("failed to stop configuration watcher: %s", err)
		}
		e.watcher = nil
	}
	if e.gameInstance.FnShutdown != nil {
		if err := e.gameInstance.FnShutdown(); err != nil {
			core.LogError("game shutdown failed: %s", err)
		}
	}
	if e.renderer != nil {
		if err := e.renderer.Shutdown(); err != nil {
			return err
		}
		e.renderer = nil
	}
	e.events.Shutdown()
	return e.platform.Shutdown()
}

// GetFramebufferSize returns the width and height (in this order)
// of the application Framebuffer
func (e *Engine) GetFramebufferSize() (uint32, uint32) {
	return e.width, e.height
}

// queueReload runs on the watcher goroutine. Only the latest configuration is
// kept until the loop picks it up.
func (e *Engine) queueReload(cfg *config.Config) {
	for {
		select {
		case e.reloads <- cfg:
			return
		default:
			select {
			case <-e.reloads:
			default:
			}
		}
	}
}

func (e *Engine) applyReloads() {
	select {
	case cfg := <-e.reloads:
		e.events.Fire(core.EventContext{
			Type: core.EVENT_CODE_CONFIG_RELOADED,
			Data: cfg,
		})
	default:
	}
}

func (e *Engine) onEvent(context core.EventContext) bool {
	switch context.Type {
	case core.EVENT_CODE_APPLICATION_QUIT:
		core.LogInfo("EVENT_CODE_APPLICATION_QUIT received, shutting down.")
		e.isRunning.Store(false)
		return true
	}
	return false
}

func (e *Engine) onKey(context core.EventContext) bool {
	ke, ok := context.Data.(*core.KeyEvent)
	if !ok {
		core.LogError("wrong event associated with the event type `%d`", context.Type)
		return false
	}

	if context.Type == core.EVENT_CODE_KEY_PRESSED && ke.KeyCode == core.KEY_ESCAPE {
		// NOTE: Technically firing an event to itself, but there may be other listeners.
		e.events.Fire(core.EventContext{
			Type: core.EVENT_CODE_APPLICATION_QUIT,
		})
		// Block anything else from processing this.
		return true
	}
	core.LogDebug("key 0x%02x event %d", ke.KeyCode, context.Type)
	return false
}

func (e *Engine) onResized(context core.EventContext) bool {
	se, ok := context.Data.(*core.SystemEvent)
	if !ok {
		core.LogError("wrong event associated with the event type `%d`", context.Type)
		return false
	}

	width := se.WindowWidth
	height := se.WindowHeight

	// Check if different. If so, trigger a resize event.
	if width == e.width && height == e.height {
		return false
	}
	e.width = width
	e.height = height

	core.LogDebug("Window resize: %d, %d", width, height)

	// The backend keeps the size either way so that it never builds a
	// swapchain for a zero sized surface.
	if e.renderer != nil {
		if err := e.renderer.OnResized(width, height); err != nil {
			core.LogError(err.Error())
		}
	}

	// Handle minimization
	if width == 0 || height == 0 {
		core.LogInfo("Window minimized, suspending application.")
		e.isSuspended = true
		return true
	}
	if e.isSuspended {
		core.LogInfo("Window restored, resuming application.")
		e.isSuspended = false
	}
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(width, height); err != nil {
			core.LogError(err.Error())
		}
	}
	return false
}

func (e *Engine) onConfigReloaded(context core.EventContext) bool {
	cfg, ok := context.Data.(*config.Config)
	if !ok {
		core.LogError("wrong event associated with the event type `%d`", context.Type)
		return false
	}
	core.SetLogLevel(core.ParseLogLevel(cfg.Application.LogLevel))
	if cfg.Renderer.Backend != e.gameInstance.Config.Renderer.Backend {
		core.LogWarn("renderer backend changes need a restart, keeping %q", e.gameInstance.Config.Renderer.Backend)
	}
	if e.renderer != nil {
		e.renderer.ApplySettings(cfg.Renderer)
	}
	e.gameInstance.Config.Application.LogLevel = cfg.Application.LogLevel
	e.gameInstance.Config.Renderer.ClearColour = cfg.Renderer.ClearColour
	e.gameInstance.Config.Renderer.ClearDepth = cfg.Renderer.ClearDepth
	e.gameInstance.Config.Renderer.ClearStencil = cfg.Renderer.ClearStencil
	e.gameInstance.Config.Renderer.PreferMailbox = cfg.Renderer.PreferMailbox
	e.gameInstance.Config.Renderer.FrameTimeoutMS = cfg.Renderer.FrameTimeoutMS
	return false
}

package vulkan

import (
	"fmt"
	"math"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/kiwi/engine/config"
	"github.com/spaghettifunk/kiwi/engine/core"
	"github.com/spaghettifunk/kiwi/engine/memory"
)

type VulkanRenderer struct {
	surfaces    SurfaceSource
	config      config.RendererConfig
	FrameNumber uint64
	context     *VulkanContext

	// Size requested by the last resize, applied on the next recreation.
	cachedFramebufferWidth  uint32
	cachedFramebufferHeight uint32
}

func New(cfg config.RendererConfig, surfaces SurfaceSource, driver Driver) *VulkanRenderer {
	return &VulkanRenderer{
		surfaces: surfaces,
		config:   cfg,
		context: &VulkanContext{
			Driver:        driver,
			Arena:         memory.NewArena(cfg.ArenaSize),
			Allocator:     nil,
			PreferMailbox: cfg.PreferMailbox,
		},
	}
}

func (vr *VulkanRenderer) Initialize(appName string, appWidth, appHeight uint32) error {
	context := vr.context

	vr.cachedFramebufferWidth = appWidth
	vr.cachedFramebufferHeight = appHeight
	context.FramebufferWidth = appWidth
	context.FramebufferHeight = appHeight

	if err := createInstance(context, appName, vr.surfaces.RequiredExtensionNames(), vr.config.Validation); err != nil {
		return err
	}

	core.LogDebug("Creating Vulkan surface...")
	surface, err := vr.surfaces.CreateSurface(context.Instance)
	if err != nil {
		return fmt.Errorf("failed to create platform surface: %w", err)
	}
	context.Surface = surface
	core.LogDebug("Vulkan surface created.")

	if err := DeviceCreate(context, NewPhysicalDeviceRequirements(vr.config.Device)); err != nil {
		return err
	}

	sc, err := SwapchainCreate(context, context.FramebufferWidth, context.FramebufferHeight)
	if err != nil {
		return err
	}
	context.Swapchain = sc
	context.FramebufferWidth = sc.Extent.Width
	context.FramebufferHeight = sc.Extent.Height

	clear := vr.config.ClearColour
	rp, err := RenderpassCreate(
		context,
		0, 0, float32(context.FramebufferWidth), float32(context.FramebufferHeight),
		clear[0], clear[1], clear[2], clear[3],
		vr.config.ClearDepth,
		vr.config.ClearStencil)
	if err != nil {
		return err
	}
	context.MainRenderpass = rp

	if err := vr.regenerateFramebuffers(); err != nil {
		return err
	}
	if err := vr.createCommandBuffers(); err != nil {
		return err
	}

	fs, err := FrameSyncCreate(context, sc.MaxFramesInFlight, sc.ImageCount)
	if err != nil {
		return err
	}
	context.Sync = fs
	context.FramebufferSizeLastGeneration = context.FramebufferSizeGeneration

	core.LogInfo("Vulkan renderer initialized successfully.")
	core.LogDebug(context.Arena.Report())
	return nil
}

// Shutdown waits for the device to go idle and releases everything in the
// reverse order of creation. It is safe after a partial Initialize.
func (vr *VulkanRenderer) Shutdown() error {
	context := vr.context
	device := context.Device

	if device != nil && device.LogicalDevice != nil {
		if res := context.Driver.DeviceWaitIdle(device.LogicalDevice); !VulkanResultIsSuccess(res) {
			core.LogWarn("vkDeviceWaitIdle failed during shutdown: %s", VulkanResultString(res, true))
		}

		if context.Sync != nil {
			core.LogDebug("Destroying sync objects...")
			context.Sync.Destroy(context)
			context.Sync = nil
		}

		vr.freeCommandBuffers()
		vr.destroyFramebuffers()

		if context.MainRenderpass != nil {
			core.LogDebug("Destroying main renderpass...")
			context.MainRenderpass.RenderpassDestroy(context)
			context.MainRenderpass = nil
		}

		if context.Swapchain != nil {
			core.LogDebug("Destroying swapchain...")
			context.Swapchain.SwapchainDestroy(context)
			context.Swapchain = nil
		}
	}

	core.LogDebug("Destroying Vulkan device...")
	DeviceDestroy(context)

	if context.Surface != nil {
		core.LogDebug("Destroying Vulkan surface...")
		context.Driver.DestroySurface(context.Instance, context.Surface, context.Allocator)
		context.Surface = nil
	}

	destroyInstance(context)
	context.Arena.Clear()
	return nil
}

// Resized records the new framebuffer size. The swapchain is rebuilt by the
// next BeginFrame.
func (vr *VulkanRenderer) Resized(width, height uint32) error {
	vr.cachedFramebufferWidth = width
	vr.cachedFramebufferHeight = height
	vr.context.FramebufferSizeGeneration++

	core.LogInfo("Vulkan renderer backend->resized: w/h/gen: %d/%d/%d", width, height, vr.context.FramebufferSizeGeneration)
	return nil
}

// ApplySettings takes the hot-reloadable part of the renderer configuration.
// A new present mode preference rebuilds the swapchain on the next frame.
func (vr *VulkanRenderer) ApplySettings(cfg config.RendererConfig) {
	vr.config.ClearColour = cfg.ClearColour
	vr.config.ClearDepth = cfg.ClearDepth
	vr.config.ClearStencil = cfg.ClearStencil
	vr.config.FrameTimeoutMS = cfg.FrameTimeoutMS
	vr.config.PreferMailbox = cfg.PreferMailbox

	context := vr.context
	if context.MainRenderpass != nil {
		context.MainRenderpass.SetClearColour(cfg.ClearColour)
		context.MainRenderpass.Depth = cfg.ClearDepth
		context.MainRenderpass.Stencil = cfg.ClearStencil
	}
	if cfg.PreferMailbox != context.PreferMailbox {
		context.PreferMailbox = cfg.PreferMailbox
		context.FramebufferSizeGeneration++
		core.LogInfo("Present mode preference changed, swapchain will be recreated.")
	}
}

func (vr *VulkanRenderer) frameTimeout() uint64 {
	if vr.config.FrameTimeoutMS == 0 {
		return math.MaxUint64
	}
	return vr.config.FrameTimeoutMS * 1_000_000
}

// BeginFrame prepares the next swapchain image and leaves its command buffer
// recording inside the main render pass. core.ErrSwapchainBooting and
// core.ErrFrameSkipped mean no frame was started this tick.
func (vr *VulkanRenderer) BeginFrame(deltaTime float64) error {
	context := vr.context
	device := context.Device

	// Check if recreating swap chain and boot out.
	if context.RecreatingSwapchain {
		if res := context.Driver.DeviceWaitIdle(device.LogicalDevice); !VulkanResultIsSuccess(res) {
			return resultError("vkDeviceWaitIdle", res)
		}
		core.LogInfo("Recreating swapchain, booting.")
		return fmt.Errorf("%w: %w", core.ErrSwapchainBooting, ErrRecreationInProgress)
	}

	// Check if the framebuffer has been resized. If so, a new swapchain must be created.
	if context.RecreationPending() {
		if res := context.Driver.DeviceWaitIdle(device.LogicalDevice); !VulkanResultIsSuccess(res) {
			return resultError("vkDeviceWaitIdle", res)
		}
		// A failed attempt (for example a minimized window) leaves the
		// generations apart so the next frame tries again.
		if _, err := vr.recreateSwapchain(); err != nil {
			return err
		}
		core.LogInfo("Resized, booting.")
		return core.ErrSwapchainBooting
	}

	// Wait for the execution of the current frame to complete. The fence being free will allow this one to move on.
	if !context.Sync.WaitForFrameSlot(context, context.CurrentFrame, vr.frameTimeout()) {
		core.LogWarn("In-flight fence wait failure, skipping frame.")
		return core.ErrFrameSkipped
	}

	// Acquire the next image from the swap chain. The frame's image-available
	// semaphore is waited on by the queue submission.
	imageIndex, recreate, err := context.Sync.AcquireNextImage(context, context.CurrentFrame, math.MaxUint64)
	if err != nil {
		return err
	}
	if recreate {
		context.FramebufferSizeGeneration++
		core.LogInfo("Swapchain out of date on acquire, booting.")
		return core.ErrSwapchainBooting
	}
	context.ImageIndex = imageIndex

	// Begin recording commands.
	commandBuffer := context.GraphicsCommandBuffers[context.ImageIndex]
	if err := commandBuffer.Reset(); err != nil {
		return err
	}
	if err := commandBuffer.Begin(context, false, false, false); err != nil {
		return err
	}

	// Dynamic state. The negative height flips Y so that +Y points up.
	viewport := vk.Viewport{
		X:        0.0,
		Y:        float32(context.FramebufferHeight),
		Width:    float32(context.FramebufferWidth),
		Height:   -float32(context.FramebufferHeight),
		MinDepth: 0.0,
		MaxDepth: 1.0,
	}

	// Scissor
	scissor := vk.Rect2D{
		Offset: vk.Offset2D{
			X: 0,
			Y: 0,
		},
		Extent: vk.Extent2D{
			Width:  context.FramebufferWidth,
			Height: context.FramebufferHeight,
		},
	}

	context.Driver.CmdSetViewport(commandBuffer.Handle, 0, 1, []vk.Viewport{viewport})
	context.Driver.CmdSetScissor(commandBuffer.Handle, 0, 1, []vk.Rect2D{scissor})

	context.MainRenderpass.W = float32(context.FramebufferWidth)
	context.MainRenderpass.H = float32(context.FramebufferHeight)

	// Begin the render pass.
	return context.MainRenderpass.RenderpassBegin(context, commandBuffer, context.Swapchain.Framebuffers[context.ImageIndex].Handle)
}

// EndFrame closes the frame opened by BeginFrame, submits it and presents.
func (vr *VulkanRenderer) EndFrame(deltaTime float64) error {
	context := vr.context
	commandBuffer := context.GraphicsCommandBuffers[context.ImageIndex]

	if err := context.MainRenderpass.RenderpassEnd(context, commandBuffer); err != nil {
		return err
	}
	if err := commandBuffer.End(context); err != nil {
		return err
	}

	// Make sure the previous frame is not using this image (i.e. its fence is being waited on)
	if !context.Sync.WaitForImage(context, context.ImageIndex, math.MaxUint64) {
		return fmt.Errorf("failed waiting for swapchain image %d to be released", context.ImageIndex)
	}

	// Mark the image as in-use by this frame.
	context.Sync.MarkImageInUse(context.ImageIndex, context.CurrentFrame)

	// Reset the fence for use on the next frame
	if err := context.Sync.ResetFrameFence(context, context.CurrentFrame); err != nil {
		return err
	}

	submitInfo := vk.SubmitInfo{
		SType: vk.StructureTypeSubmitInfo,
		// Command buffer(s) to be executed.
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{commandBuffer.Handle},
		// The semaphore(s) to be signaled when the queue is complete.
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{context.Sync.QueueCompleteSemaphores[context.CurrentFrame]},
		// Wait semaphore ensures that the operation cannot begin until the image is available.
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{context.Sync.ImageAvailableSemaphores[context.CurrentFrame]},
		// VK_PIPELINE_STAGE_COLOR_ATTACHMENT_OUTPUT_BIT prevents subsequent colour attachment
		// writes from executing until the semaphore signals (i.e. one frame is presented at a time)
		PWaitDstStageMask: []vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)},
	}

	fence := context.Sync.InFlightFences[context.CurrentFrame]
	if res := context.Driver.QueueSubmit(context.Device.GraphicsQueue, 1, []vk.SubmitInfo{submitInfo}, fence.Handle); res != vk.Success {
		return resultError("vkQueueSubmit", res)
	}
	if err := commandBuffer.UpdateSubmitted(); err != nil {
		return err
	}

	// Give the image back to the swapchain.
	recreate, err := context.Swapchain.Present(
		context,
		context.Device.PresentQueue,
		context.Sync.QueueCompleteSemaphores[context.CurrentFrame],
		context.ImageIndex)
	if err != nil {
		return err
	}
	if recreate {
		// Swapchain is out of date or suboptimal. Rebuild on the next frame.
		context.FramebufferSizeGeneration++
		core.LogDebug("Swapchain out of date on present, recreation pending.")
	}

	// Increment (and loop) the index.
	context.CurrentFrame = (context.CurrentFrame + 1) % context.Sync.MaxFramesInFlight
	vr.FrameNumber++

	return nil
}

func (vr *VulkanRenderer) createCommandBuffers() error {
	context := vr.context
	buffers, err := memory.Alloc[*VulkanCommandBuffer](context.Arena, int(context.Swapchain.ImageCount), memory.TagRenderer)
	if err != nil {
		return err
	}
	context.GraphicsCommandBuffers = buffers
	for i := range context.GraphicsCommandBuffers {
		cb, err := NewVulkanCommandBuffer(context, context.Device.GraphicsCommandPool, true)
		if err != nil {
			return err
		}
		context.GraphicsCommandBuffers[i] = cb
	}

	core.LogDebug("Vulkan command buffers created.")
	return nil
}

func (vr *VulkanRenderer) freeCommandBuffers() {
	context := vr.context
	for _, cb := range context.GraphicsCommandBuffers {
		if cb != nil {
			cb.Free(context, context.Device.GraphicsCommandPool)
		}
	}
	if err := memory.Free(context.Arena, context.GraphicsCommandBuffers, memory.TagRenderer); err != nil {
		core.LogWarn("command buffers: %s", err)
	}
	context.GraphicsCommandBuffers = nil
}

func (vr *VulkanRenderer) regenerateFramebuffers() error {
	context := vr.context
	swapchain := context.Swapchain
	framebuffers, err := memory.Alloc[*VulkanFramebuffer](context.Arena, int(swapchain.ImageCount), memory.TagSwapchain)
	if err != nil {
		return err
	}
	swapchain.Framebuffers = framebuffers

	for i := 0; i < int(swapchain.ImageCount); i++ {
		// TODO: make this dynamic based on the currently configured attachments
		attachments := []vk.ImageView{
			swapchain.Views[i],
			swapchain.DepthAttachment.View,
		}
		fb, err := FramebufferCreate(context, context.MainRenderpass, swapchain.Extent.Width, swapchain.Extent.Height, attachments)
		if err != nil {
			return err
		}
		swapchain.Framebuffers[i] = fb
	}
	return nil
}

func (vr *VulkanRenderer) destroyFramebuffers() {
	context := vr.context
	swapchain := context.Swapchain
	if swapchain == nil {
		return
	}
	for _, fb := range swapchain.Framebuffers {
		if fb != nil {
			fb.Destroy(context)
		}
	}
	if err := memory.Free(context.Arena, swapchain.Framebuffers, memory.TagSwapchain); err != nil {
		core.LogWarn("framebuffers: %s", err)
	}
	swapchain.Framebuffers = nil
}

// recreateSwapchain rebuilds the swapchain at the cached size together with
// everything that depends on it. It reports false without touching anything
// when a recreation is already running or the size is zero.
func (vr *VulkanRenderer) recreateSwapchain() (bool, error) {
	context := vr.context

	// If already being recreated, do not try again.
	if context.RecreatingSwapchain {
		core.LogDebug("recreateSwapchain called when already recreating. Booting.")
		return false, nil
	}

	// Detect if the window is too small to be drawn to
	if vr.cachedFramebufferWidth == 0 || vr.cachedFramebufferHeight == 0 {
		core.LogDebug("recreateSwapchain called when window is < 1 in a dimension. Booting.")
		return false, nil
	}

	// Mark as recreating if the dimensions are valid.
	context.RecreatingSwapchain = true
	defer func() { context.RecreatingSwapchain = false }()

	// Wait for any operations to complete.
	if res := context.Driver.DeviceWaitIdle(context.Device.LogicalDevice); !VulkanResultIsSuccess(res) {
		return false, resultError("vkDeviceWaitIdle", res)
	}

	// Clear these out just in case.
	context.Sync.ResetImageOwners()

	vr.freeCommandBuffers()
	vr.destroyFramebuffers()

	sc, err := context.Swapchain.SwapchainRecreate(context, vr.cachedFramebufferWidth, vr.cachedFramebufferHeight)
	if err != nil {
		return false, err
	}
	context.Swapchain = sc

	// Sync the framebuffer size with the swapchain.
	context.FramebufferWidth = sc.Extent.Width
	context.FramebufferHeight = sc.Extent.Height

	renderpass := context.MainRenderpass
	if !renderpass.Matches(sc.ImageFormat.Format, context.Device.DepthFormat) {
		core.LogInfo("Surface formats changed, rebuilding the main renderpass.")
		renderpass.RenderpassDestroy(context)
		rp, err := RenderpassCreate(
			context,
			0, 0, float32(context.FramebufferWidth), float32(context.FramebufferHeight),
			renderpass.R, renderpass.G, renderpass.B, renderpass.A,
			renderpass.Depth,
			renderpass.Stencil)
		if err != nil {
			return false, err
		}
		context.MainRenderpass = rp
	}
	context.MainRenderpass.X = 0
	context.MainRenderpass.Y = 0
	context.MainRenderpass.W = float32(context.FramebufferWidth)
	context.MainRenderpass.H = float32(context.FramebufferHeight)

	if err := vr.regenerateFramebuffers(); err != nil {
		return false, err
	}
	if err := vr.createCommandBuffers(); err != nil {
		return false, err
	}

	if context.Sync.MaxFramesInFlight != sc.MaxFramesInFlight {
		core.LogInfo("Frames in flight changed from %d to %d, rebuilding sync objects.", context.Sync.MaxFramesInFlight, sc.MaxFramesInFlight)
		context.Sync.Destroy(context)
		fs, err := FrameSyncCreate(context, sc.MaxFramesInFlight, sc.ImageCount)
		if err != nil {
			return false, err
		}
		context.Sync = fs
	} else if err := context.Sync.ResizeImageTable(context, sc.ImageCount); err != nil {
		return false, err
	}

	// Update framebuffer size generation.
	context.FramebufferSizeLastGeneration = context.FramebufferSizeGeneration

	return true, nil
}
